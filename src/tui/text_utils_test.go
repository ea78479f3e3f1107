package tui

import (
	"strings"
	"testing"
)

func TestWrap_ShortText(t *testing.T) {
	result := Wrap("login failed", 20)

	if result != "login failed" {
		t.Errorf("expected 'login failed', got '%s'", result)
	}
}

func TestWrap_ExactWidth(t *testing.T) {
	// exactly the length
	result := Wrap("login failed", 12)

	if result != "login failed" {
		t.Errorf("expected 'login failed', got '%s'", result)
	}
}

func TestWrap_MultipleLines(t *testing.T) {
	text := "FindFailed: can not find login.png in the region of the main window"
	width := 15
	result := Wrap(text, width)

	lines := strings.Split(result, "\n")
	if len(lines) < 2 {
		t.Errorf("expected several lines, got %q", result)
	}
	for i, line := range lines {
		if lineWidth := VisualWidth(line); lineWidth > width {
			t.Errorf("line %d exceeds width %d: width=%d, content='%s'", i, width, lineWidth, line)
		}
	}
}

func TestWrap_LongWord(t *testing.T) {
	text := `C:\Users\sikulibot\AppData\Local\Temp\sikulibot\suite\tests\login_dialog.sikuli`
	width := 40

	result := Wrap(text, width)
	lines := strings.Split(result, "\n")

	if len(lines) < 2 {
		t.Errorf("expected long word to be broken into multiple lines, got %d lines", len(lines))
	}

	for i, line := range lines {
		if lineWidth := VisualWidth(line); lineWidth > width {
			t.Errorf("line %d exceeds width %d: width=%d, content='%s'", i, width, lineWidth, line)
		}
	}

	// Breaking mid-word keeps every character
	if reconstructed := strings.ReplaceAll(result, "\n", ""); reconstructed != text {
		t.Errorf("content was modified during wrapping\nexpected: %s\ngot:      %s", text, reconstructed)
	}
}

func TestWrap_MultiByteCharacters(t *testing.T) {
	text := "Fehler beim Öffnen 世界 of the project dialog ✗ and more text"
	width := 25

	lines := strings.Split(Wrap(text, width), "\n")

	for i, line := range lines {
		if lineWidth := VisualWidth(line); lineWidth > width {
			t.Errorf("line %d exceeds width %d: width=%d, content='%s'", i, width, lineWidth, line)
		}
	}
}

func TestWrap_EdgeCases(t *testing.T) {
	if result := Wrap("", 20); result != "" {
		t.Errorf("expected empty string, got '%s'", result)
	}
	if result := Wrap("login failed", 0); result != "login failed" {
		t.Errorf("expected original text for zero width, got '%s'", result)
	}
}

func TestTruncate(t *testing.T) {
	text := "Geoscience ANALYST_GA-7_setup"
	maxLen := 10

	withEllipsis := Truncate(text, maxLen, true)
	if VisualWidth(withEllipsis) > maxLen || !strings.HasSuffix(withEllipsis, "...") {
		t.Errorf("Truncate(ellipsis) = '%s'", withEllipsis)
	}

	without := Truncate(text, maxLen, false)
	if VisualWidth(without) > maxLen || strings.HasSuffix(without, "...") {
		t.Errorf("Truncate(no ellipsis) = '%s'", without)
	}

	if got := Truncate(text, 0, true); got != "" {
		t.Errorf("Truncate(0) = '%s', want empty", got)
	}
}

func TestTruncateAndPad(t *testing.T) {
	for _, text := range []string{"GA-7", "Geoscience ANALYST_GA-7_setup", "世界"} {
		result := TruncateAndPad(text, 10, true)
		if width := VisualWidth(result); width != 10 {
			t.Errorf("TruncateAndPad(%q) width = %d, want 10: '%s'", text, width, result)
		}
	}
}
