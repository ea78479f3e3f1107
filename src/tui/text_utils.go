package tui

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

const ellipsisText = "..."

// VisualWidth returns the display width of text. Wide runes count twice.
func VisualWidth(s string) int {
	return runewidth.StringWidth(s)
}

// Truncate cuts s, trimmed, to at most maxLen columns. With ellipsis the cut
// is marked with "..." when there is room for it.
func Truncate(s string, maxLen int, ellipsis bool) string {
	s = strings.TrimSpace(s)
	switch {
	case maxLen <= 0:
		return ""
	case VisualWidth(s) <= maxLen:
		return s
	case ellipsis && maxLen > len(ellipsisText):
		return runewidth.Truncate(s, maxLen-len(ellipsisText), "") + ellipsisText
	default:
		return runewidth.Truncate(s, maxLen, "")
	}
}

// TruncateAndPad truncates s and pads it to exactly width columns.
func TruncateAndPad(s string, width int, ellipsis bool) string {
	return runewidth.FillRight(Truncate(s, width, ellipsis), width)
}

// Wrap fits text into width columns. Existing line breaks are kept, lines
// are filled word by word, and words wider than width (test paths, mostly)
// are split after a path separator when one fits, else mid-word.
func Wrap(text string, width int) string {
	if width <= 0 || text == "" {
		return text
	}

	var out []string
	for _, line := range strings.Split(text, "\n") {
		out = append(out, wrapLine(line, width)...)
	}
	return strings.Join(out, "\n")
}

func wrapLine(line string, width int) []string {
	var lines []string
	var cur strings.Builder
	curWidth := 0

	flush := func() {
		if curWidth > 0 {
			lines = append(lines, cur.String())
			cur.Reset()
			curWidth = 0
		}
	}

	for _, word := range strings.Fields(line) {
		w := VisualWidth(word)
		if w > width {
			flush()
			chunks := splitWord(word, width)
			lines = append(lines, chunks[:len(chunks)-1]...)
			last := chunks[len(chunks)-1]
			cur.WriteString(last)
			curWidth = VisualWidth(last)
			continue
		}
		if curWidth > 0 && curWidth+1+w > width {
			flush()
		}
		if curWidth > 0 {
			cur.WriteByte(' ')
			curWidth++
		}
		cur.WriteString(word)
		curWidth += w
	}
	flush()

	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}

// splitWord breaks word into pieces no wider than width.
func splitWord(word string, width int) []string {
	var chunks []string
	for VisualWidth(word) > width {
		head := runewidth.Truncate(word, width, "")
		if i := strings.LastIndexAny(head, `\/`); i > 0 {
			head = head[:i+1]
		}
		if head == "" {
			// a single rune wider than width
			r := []rune(word)
			head = string(r[0])
		}
		chunks = append(chunks, head)
		word = word[len(head):]
	}
	return append(chunks, word)
}
