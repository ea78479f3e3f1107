package testlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const prefix = `E:\workspace\TestSikuli\Test`

func TestParseFailures(t *testing.T) {
	log := strings.Join([]string{
		`Running 4 tests`,
		`PASS  E:\workspace\TestSikuli\Test\open_project.sikuli`,
		`FAIL  E:\workspace\TestSikuli\Test\import\csv_import.sikuli`,
		`fail: timeout E:/workspace/TestSikuli/Test/viewer/rotate.sikuli`,
		"\x1b[31mFAIL\x1b[0m e:\\workspace\\testsikuli\\test\\export.sikuli",
		`  FAIL indented lines are not failures`,
		`Failed to start? FAILURE_SUMMARY`,
		`Done`,
	}, "\n")

	got, err := ParseFailures(strings.NewReader(log), prefix)
	if err != nil {
		t.Fatalf("ParseFailures() error = %v", err)
	}

	want := []string{
		`import\csv_import.sikuli`,
		`viewer/rotate.sikuli`,
		`export.sikuli`,
		`FAILURE_SUMMARY`,
	}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("ParseFailures() = %q, want %q", got, want)
	}
}

func TestParseFailures_Empty(t *testing.T) {
	got, err := ParseFailures(strings.NewReader(""), prefix)
	if err != nil {
		t.Fatalf("ParseFailures() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ParseFailures(empty) = %v", got)
	}
}

func TestStripPrefix(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		prefix string
		want   string
	}{
		{"backslashes", `E:\workspace\TestSikuli\Test\foo\bar.py`, prefix, `foo\bar.py`},
		{"mixed separators", `E:\workspace\TestSikuli/Test\foo.py`, prefix, `foo.py`},
		{"case", `e:\WORKSPACE\testsikuli\test\foo.py`, prefix, `foo.py`},
		{"other path", `C:\elsewhere\foo.py`, prefix, `C:\elsewhere\foo.py`},
		{"no prefix", `foo.py`, "", `foo.py`},
		{"prefix only", prefix, prefix, prefix},
		{"shorter than prefix", `E:\ws`, prefix, `E:\ws`},
		{"sibling directory", `E:\workspace\TestSikuli\Testing\foo.py`, prefix, `E:\workspace\TestSikuli\Testing\foo.py`},
		{"prefix with trailing separator", `E:\workspace\TestSikuli\Test\foo.py`, prefix + `\`, `foo.py`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripPrefix(tt.id, tt.prefix); got != tt.want {
				t.Errorf("StripPrefix(%q) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	got := Merge([]string{"a", "b"}, []string{"b", "c", "a", "d"})
	if strings.Join(got, ",") != "a,b,c,d" {
		t.Errorf("Merge() = %v", got)
	}
	if got := Merge(nil, nil); len(got) != 0 {
		t.Errorf("Merge(nil, nil) = %v", got)
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	os.WriteFile(path, []byte("FAIL x\\Test\\a.sikuli\r\nPASS b\r\n"), 0o644)

	got, err := ParseFile(path, `x\Test`)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if len(got) != 1 || got[0] != "a.sikuli" {
		t.Errorf("ParseFile() = %q", got)
	}

	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing.txt"), ""); err == nil {
		t.Error("ParseFile(missing) returned no error")
	}
}
