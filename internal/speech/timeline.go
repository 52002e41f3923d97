package speech

import (
	"sort"
	"unicode"
)

// Span is a rune range of the spoken text.
type Span struct {
	Offset int
	Length int
}

// Timeline spreads the playback duration across the words of a text, each
// word weighted by its length plus a pause for the gap that follows it.
// Synthesizers that report no word boundaries are tracked through it.
type Timeline struct {
	spans []Span
	ends  []float64
}

const (
	gapWeight         = 1.0
	sentencePauseBump = 2.0
)

// NewTimeline builds a timeline for text.
func NewTimeline(text string) *Timeline {
	runes := []rune(text)
	tl := &Timeline{}

	var total float64
	i := 0
	for i < len(runes) {
		for i < len(runes) && unicode.IsSpace(runes[i]) {
			i++
		}
		if i >= len(runes) {
			break
		}
		start := i
		for i < len(runes) && !unicode.IsSpace(runes[i]) {
			i++
		}

		weight := float64(i-start) + gapWeight
		if isSentenceEnd(runes[i-1]) {
			weight += sentencePauseBump
		}
		total += weight

		tl.spans = append(tl.spans, Span{Offset: start, Length: i - start})
		tl.ends = append(tl.ends, total)
	}

	for k := range tl.ends {
		tl.ends[k] /= total
	}
	return tl
}

// Len returns the number of words.
func (t *Timeline) Len() int {
	return len(t.spans)
}

// Span returns the i-th word span.
func (t *Timeline) Span(i int) Span {
	return t.spans[i]
}

// IndexAt returns the word being spoken at fraction (0..1) of the
// playback, or -1 for an empty timeline.
func (t *Timeline) IndexAt(fraction float64) int {
	if len(t.spans) == 0 {
		return -1
	}
	if fraction <= 0 {
		return 0
	}
	idx := sort.SearchFloat64s(t.ends, fraction)
	if idx >= len(t.spans) {
		return len(t.spans) - 1
	}
	// Exactly on a boundary belongs to the next word.
	if t.ends[idx] == fraction && idx+1 < len(t.spans) {
		idx++
	}
	return idx
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', ';', ':', '…':
		return true
	}
	return false
}
