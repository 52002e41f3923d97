package text

import "unicode"

// Positions are rune offsets. A position equal to len(text) is valid and
// means "after the last character".

func clampPos(text []rune, pos int) int {
	if pos < 0 {
		return 0
	}
	if pos > len(text) {
		return len(text)
	}
	return pos
}

func isSpace(r rune) bool {
	return unicode.IsSpace(r)
}

// FindStartOfPreviousWord skips back over the part of the word left of the
// caret, the whitespace before it, and the word before that, returning the
// start of that word.
func FindStartOfPreviousWord(text []rune, pos int) int {
	p := clampPos(text, pos)
	for p > 0 && !isSpace(text[p-1]) {
		p--
	}
	for p > 0 && isSpace(text[p-1]) {
		p--
	}
	for p > 0 && !isSpace(text[p-1]) {
		p--
	}
	return p
}

// FindStartOfNextWord skips forward over the current word and the following
// whitespace gap. Returns len(text) when there is no next word.
func FindStartOfNextWord(text []rune, pos int) int {
	p := clampPos(text, pos)
	for p < len(text) && !isSpace(text[p]) {
		p++
	}
	for p < len(text) && isSpace(text[p]) {
		p++
	}
	return p
}

// FindStartOfPreviousParagraph returns the start of the current paragraph
// when the caret is inside it, or the start of the paragraph before when the
// caret already sits at a paragraph start.
func FindStartOfPreviousParagraph(text []rune, pos int) int {
	p := clampPos(text, pos)

	start := lineStart(text, p)
	if firstNonSpace(text, start) < p {
		return start
	}

	p = start
	for p > 0 && isSpace(text[p-1]) {
		p--
	}
	return lineStart(text, p)
}

// FindStartOfNextParagraph returns the first non-blank position after the
// current paragraph's line break, or len(text).
func FindStartOfNextParagraph(text []rune, pos int) int {
	p := clampPos(text, pos)
	for p < len(text) && text[p] != '\n' {
		p++
	}
	for p < len(text) && isSpace(text[p]) {
		p++
	}
	return p
}

// WordAt returns the run to highlight for a caret at pos: the containing
// non-whitespace run, or the next run when pos is on whitespace. At or past
// the end it returns a caret at len(text).
func WordAt(text []rune, pos int) Selection {
	p := clampPos(text, pos)
	if p >= len(text) {
		return Selection{Start: len(text)}
	}

	start := p
	if isSpace(text[start]) {
		for start < len(text) && isSpace(text[start]) {
			start++
		}
	} else {
		for start > 0 && !isSpace(text[start-1]) {
			start--
		}
	}

	end := start
	for end < len(text) && !isSpace(text[end]) {
		end++
	}
	return Selection{Start: start, Length: end - start}
}

func lineStart(text []rune, p int) int {
	for p > 0 && text[p-1] != '\n' {
		p--
	}
	return p
}

func firstNonSpace(text []rune, p int) int {
	for p < len(text) && isSpace(text[p]) && text[p] != '\n' {
		p++
	}
	return p
}
