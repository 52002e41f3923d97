package text

import (
	"testing"
	"unicode"
)

func TestFindStartOfNextWord(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  int
		want int
	}{
		{"start of quick", "The quick fox", 4, 10},
		{"mid word", "The quick fox", 6, 10},
		{"on whitespace", "The quick fox", 3, 4},
		{"from zero", "The quick fox", 0, 4},
		{"last word", "The quick fox", 11, 13},
		{"at end", "The quick fox", 13, 13},
		{"past end clamps", "The quick fox", 40, 13},
		{"negative clamps", "The quick fox", -3, 4},
		{"trailing whitespace", "fox   ", 1, 6},
		{"empty", "", 0, 0},
		{"newline gap", "one\n\ntwo", 0, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindStartOfNextWord([]rune(tt.text), tt.pos)
			if got != tt.want {
				t.Errorf("FindStartOfNextWord(%q, %d) = %d, want %d", tt.text, tt.pos, got, tt.want)
			}
		})
	}
}

func TestFindStartOfPreviousWord(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  int
		want int
	}{
		// From the first letter of a word the caret moves to the start of
		// the word before it, not to the document start.
		{"start of fox", "The quick fox", 10, 4},
		{"start of quick", "The quick fox", 4, 0},
		{"mid quick", "The quick fox", 6, 0},
		{"at end", "The quick fox", 13, 4},
		{"past end clamps", "The quick fox", 99, 4},
		{"at zero", "The quick fox", 0, 0},
		{"first word", "The quick fox", 2, 0},
		{"leading whitespace", "  ab cd", 5, 2},
		{"trailing whitespace", "ab cd  ", 7, 3},
		{"empty", "", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindStartOfPreviousWord([]rune(tt.text), tt.pos)
			if got != tt.want {
				t.Errorf("FindStartOfPreviousWord(%q, %d) = %d, want %d", tt.text, tt.pos, got, tt.want)
			}
		})
	}
}

func TestWordRoundTripNeverAdvances(t *testing.T) {
	docs := []string{
		"The quick fox",
		"  leading and trailing  ",
		"one\ntwo\n\nthree four",
		"single",
		"a b c d e",
		"héllo wörld ünïcode",
		"",
		"   ",
	}

	for _, doc := range docs {
		runes := []rune(doc)
		for s := 0; s <= len(runes); s++ {
			next := FindStartOfNextWord(runes, s)
			if next < s {
				t.Errorf("%q: next(%d) = %d moved backwards", doc, s, next)
			}
			back := FindStartOfPreviousWord(runes, next)
			if back > s {
				t.Errorf("%q: prev(next(%d)=%d) = %d, want <= %d", doc, s, next, back, s)
			}
		}
	}
}

func TestFindStartOfPreviousParagraph(t *testing.T) {
	doc := "Para one.\n\nPara two here.\n"

	tests := []struct {
		name string
		pos  int
		want int
	}{
		{"mid second paragraph", 15, 11},
		{"start of second paragraph", 11, 0},
		{"blank line", 10, 0},
		{"mid first paragraph", 4, 0},
		{"at zero", 0, 0},
		{"after trailing newline", 26, 11},
		{"past end clamps", 100, 11},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindStartOfPreviousParagraph([]rune(doc), tt.pos)
			if got != tt.want {
				t.Errorf("FindStartOfPreviousParagraph(%d) = %d, want %d", tt.pos, got, tt.want)
			}
		})
	}
}

func TestFindStartOfPreviousParagraph_Indented(t *testing.T) {
	doc := "First.\n  Second."
	// Caret on the first visible character of an indented paragraph counts
	// as the paragraph start.
	if got := FindStartOfPreviousParagraph([]rune(doc), 9); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
	if got := FindStartOfPreviousParagraph([]rune(doc), 12); got != 7 {
		t.Errorf("got %d, want 7", got)
	}
}

func TestFindStartOfNextParagraph(t *testing.T) {
	doc := "Para one.\n\nPara two here.\n"

	tests := []struct {
		pos  int
		want int
	}{
		{0, 11},
		{5, 11},
		{9, 11},
		{11, 26},
		{26, 26},
	}

	for _, tt := range tests {
		got := FindStartOfNextParagraph([]rune(doc), tt.pos)
		if got != tt.want {
			t.Errorf("FindStartOfNextParagraph(%d) = %d, want %d", tt.pos, got, tt.want)
		}
	}
}

func TestWordAt(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  int
		want Selection
	}{
		{"start of word", "Hello world", 0, Selection{0, 5}},
		{"mid word", "Hello world", 8, Selection{6, 5}},
		{"end of word", "Hello world", 4, Selection{0, 5}},
		{"on space", "Hello world", 5, Selection{6, 5}},
		{"at end", "Hello world", 11, Selection{11, 0}},
		{"past end", "Hello world", 20, Selection{11, 0}},
		{"trailing space only", "Hello   ", 6, Selection{8, 0}},
		{"empty", "", 0, Selection{0, 0}},
		{"punctuation stays in run", "end. Next", 2, Selection{0, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WordAt([]rune(tt.text), tt.pos)
			if got != tt.want {
				t.Errorf("WordAt(%q, %d) = %+v, want %+v", tt.text, tt.pos, got, tt.want)
			}
		})
	}
}

func TestWordAtNeverSplitsRun(t *testing.T) {
	docs := []string{"The quick fox", " a  bb   ccc ", "line\nbreak\ttab", "x"}

	for _, doc := range docs {
		runes := []rune(doc)
		for p := 0; p <= len(runes)+1; p++ {
			sel := WordAt(runes, p)
			if sel.Start < 0 || sel.End() > len(runes) {
				t.Fatalf("%q: WordAt(%d) = %+v out of range", doc, p, sel)
			}
			if sel.Length == 0 {
				continue
			}
			if sel.Start > 0 && !unicode.IsSpace(runes[sel.Start-1]) {
				t.Errorf("%q: WordAt(%d) = %+v starts inside a run", doc, p, sel)
			}
			if sel.End() < len(runes) && !unicode.IsSpace(runes[sel.End()]) {
				t.Errorf("%q: WordAt(%d) = %+v ends inside a run", doc, p, sel)
			}
			for _, r := range runes[sel.Start:sel.End()] {
				if unicode.IsSpace(r) {
					t.Errorf("%q: WordAt(%d) = %+v contains whitespace", doc, p, sel)
				}
			}
		}
	}
}
