package mcp

import "testing"

func TestStripTimestamps(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "ISO timestamp with T separator",
			input:    "2016-11-24T17:00:05.123Z [error] FindFailed: login.png",
			expected: "[error] FindFailed: login.png",
		},
		{
			name:     "ISO timestamp with space separator",
			input:    "2016-11-24 17:00:05,123 [log] CLICK on L(512,384)",
			expected: "[log] CLICK on L(512,384)",
		},
		{
			name:     "timestamp with timezone offset",
			input:    "2016-11-24T17:00:05+01:00 [error] FindFailed: login.png",
			expected: "[error] FindFailed: login.png",
		},
		{
			name:     "no timestamp",
			input:    "[error] FindFailed: login.png",
			expected: "[error] FindFailed: login.png",
		},
		{
			name:     "timestamp mid-line preserved",
			input:    "installer built 2016-11-24T17:00:05Z from GA-7",
			expected: "installer built 2016-11-24T17:00:05Z from GA-7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := stripTimestamps(tt.input)
			if result != tt.expected {
				t.Errorf("stripTimestamps(%q) = %q, expected %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestMaskHashes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "git SHA",
			input:    "HEAD is now at 1a2b3c4d5e6f7890abcdef1234567890abcdef12 Merge GA-7",
			expected: "HEAD is now at <HASH> Merge GA-7",
		},
		{
			name:     "short hex preserved",
			input:    "Installer exited with 0x1234",
			expected: "Installer exited with 0x1234",
		},
		{
			name:     "no hashes",
			input:    "App window not found",
			expected: "App window not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := maskHashes(tt.input)
			if result != tt.expected {
				t.Errorf("maskHashes(%q) = %q, expected %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestCompressPath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "long unix path",
			input:    "/tmp/sikulibot/suite/tests/login/login.py:45",
			expected: ".../login.py:45",
		},
		{
			name:     "windows path with drive letter",
			input:    `FAIL C:\sikulibot\suite\tests\login.sikuli`,
			expected: "FAIL .../login.sikuli",
		},
		{
			name:     "mixed separators",
			input:    `C:\Users\bot/suite/tests/export.sikuli`,
			expected: ".../export.sikuli",
		},
		{
			name:     "short path preserved",
			input:    "tests/login.sikuli - fail",
			expected: "tests/login.sikuli - fail",
		},
		{
			name:     "no path",
			input:    "App window not found",
			expected: "App window not found",
		},
		{
			name:     "multiple paths",
			input:    "/a/b/c/one.py:1 imports /d/e/f/two.py:2",
			expected: ".../one.py:1 imports .../two.py:2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := compressPath(tt.input)
			if result != tt.expected {
				t.Errorf("compressPath(%q) = %q, expected %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFindCommonPrefix(t *testing.T) {
	tests := []struct {
		name     string
		lines    []string
		expected string
	}{
		{
			name: "runner prefix",
			lines: []string{
				"[sikulix.runner.TestRunner] [log] starting login.sikuli",
				"[sikulix.runner.TestRunner] [log] starting export.sikuli",
				"[sikulix.runner.TestRunner] [log] starting import.sikuli",
			},
			expected: "[sikulix.runner.TestRunner] [log] starting ",
		},
		{
			name: "no common prefix",
			lines: []string{
				"starting suite",
				"clicking button",
				"suite done",
			},
			expected: "",
		},
		{
			name: "short common prefix ignored",
			lines: []string{
				"[log] CLICK",
				"[log] TYPE",
			},
			expected: "",
		},
		{
			name:     "empty lines",
			lines:    []string{},
			expected: "",
		},
		{
			name:     "single line",
			lines:    []string{"[log] one line only"},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := findCommonPrefix(tt.lines)
			if result != tt.expected {
				t.Errorf("findCommonPrefix() = %q, expected %q", result, tt.expected)
			}
		})
	}
}

func TestRemoveCommonPrefix(t *testing.T) {
	lines := []string{
		"[sikulix.runner.TestRunner] running login.sikuli",
		"[sikulix.runner.TestRunner] running export.sikuli",
		"[sikulix.runner.TestRunner] running import.sikuli",
	}

	result := removeCommonPrefix(lines)

	expected := []string{
		"... login.sikuli",
		"... export.sikuli",
		"... import.sikuli",
	}

	if len(result) != len(expected) {
		t.Fatalf("len = %d, expected %d", len(result), len(expected))
	}

	for i, line := range result {
		if line != expected[i] {
			t.Errorf("line[%d] = %q, expected %q", i, line, expected[i])
		}
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"multiple spaces", "FAIL    login.sikuli", "FAIL login.sikuli"},
		{"tabs", "FAIL\tlogin.sikuli", "FAIL login.sikuli"},
		{"leading and trailing", "   FAIL login.sikuli \r", "FAIL login.sikuli"},
		{"already normalized", "FAIL login.sikuli", "FAIL login.sikuli"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := normalizeWhitespace(tt.input)
			if result != tt.expected {
				t.Errorf("normalizeWhitespace(%q) = %q, expected %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestCompressLine(t *testing.T) {
	input := "2016-11-24 17:00:05,123 \x1b[31m[error]\x1b[0m  FindFailed in C:\\sikulibot\\suite\\tests\\login.sikuli"
	want := "[error] FindFailed in .../login.sikuli"

	if got := CompressLine(input); got != want {
		t.Errorf("CompressLine() = %q, want %q", got, want)
	}
}

func TestCompressLog(t *testing.T) {
	lines := []string{
		"[log] waiting for window",
		"[log] waiting for window",
		"",
		"2016-11-24 17:00:05,123 [log] waiting for window",
		"[error] FindFailed",
		"   ",
		"[log] waiting for window",
	}

	got := CompressLog(lines)
	want := []string{
		"[log] waiting for window (x3)",
		"[error] FindFailed",
		"[log] waiting for window",
	}

	if len(got) != len(want) {
		t.Fatalf("CompressLog() = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if out := CompressLog(nil); out != nil {
		t.Errorf("CompressLog(nil) = %q, want nil", out)
	}
}

func TestFailureRoot(t *testing.T) {
	tests := []struct {
		name     string
		ids      []string
		wantRoot string
		wantRest []string
	}{
		{
			name:     "windows suite dir",
			ids:      []string{`C:\suite\tests\login.sikuli`, `C:\suite\tests\export.sikuli`},
			wantRoot: `C:\suite\tests\`,
			wantRest: []string{"login.sikuli", "export.sikuli"},
		},
		{
			name:     "shared name prefix cut at separator",
			ids:      []string{"/suite/login_a.sikuli", "/suite/login_b.sikuli"},
			wantRoot: "/suite/",
			wantRest: []string{"login_a.sikuli", "login_b.sikuli"},
		},
		{
			name:     "no shared directory",
			ids:      []string{"login.sikuli", "export.sikuli"},
			wantRoot: "",
			wantRest: []string{"login.sikuli", "export.sikuli"},
		},
		{
			name:     "single id",
			ids:      []string{`C:\suite\login.sikuli`},
			wantRoot: "",
			wantRest: []string{`C:\suite\login.sikuli`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, rest := failureRoot(tt.ids)
			if root != tt.wantRoot {
				t.Errorf("root = %q, want %q", root, tt.wantRoot)
			}
			if len(rest) != len(tt.wantRest) {
				t.Fatalf("rest = %q, want %q", rest, tt.wantRest)
			}
			for i := range rest {
				if rest[i] != tt.wantRest[i] {
					t.Errorf("rest[%d] = %q, want %q", i, rest[i], tt.wantRest[i])
				}
			}
		})
	}
}
