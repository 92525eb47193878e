package telegram

import (
	"strings"
	"testing"
)

func TestSplitTextShortPassthrough(t *testing.T) {
	t.Parallel()
	got := splitText("hello", 100)
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("splitText = %v", got)
	}
}

func TestSplitTextPrefersNewlines(t *testing.T) {
	t.Parallel()
	lines := make([]string, 0, 40)
	for i := 0; i < 40; i++ {
		lines = append(lines, strings.Repeat("x", 10))
	}
	s := strings.Join(lines, "\n")

	chunks := splitText(s, 100)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len([]rune(c)) > 100 {
			t.Fatalf("chunk %d has %d runes, over the limit", i, len([]rune(c)))
		}
		for _, line := range strings.Split(c, "\n") {
			if line != strings.Repeat("x", 10) {
				t.Fatalf("chunk %d split mid-line: %q", i, line)
			}
		}
	}
}

func TestSplitTextHardCutWithoutNewlines(t *testing.T) {
	t.Parallel()
	s := strings.Repeat("a", 250)
	chunks := splitText(s, 100)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if joined := strings.Join(chunks, ""); joined != s {
		t.Fatalf("chunks lost content: %d runes, want %d", len(joined), len(s))
	}
}
