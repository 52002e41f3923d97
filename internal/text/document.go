// Package text holds the document buffer and the caret/word/paragraph
// scanners used to navigate it.
package text

// Reason tags who mutated the document or its selection.
type Reason int

const (
	// ReasonUser is a mutation caused by the person using the reader.
	ReasonUser Reason = iota
	// ReasonProgress is a highlight written while following speech progress.
	ReasonProgress
	// ReasonInternal is any other write made by the reader itself.
	ReasonInternal
)

func (r Reason) String() string {
	switch r {
	case ReasonUser:
		return "user"
	case ReasonProgress:
		return "progress"
	case ReasonInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Selection is a rune range into the document. Length 0 is a caret.
type Selection struct {
	Start  int `json:"start"`
	Length int `json:"length"`
}

// End returns the offset just past the selection.
func (s Selection) End() int {
	return s.Start + s.Length
}

// IsCaret reports whether the selection is empty.
func (s Selection) IsCaret() bool {
	return s.Length == 0
}

// SelectionListener is notified after every selection change.
type SelectionListener func(sel Selection, reason Reason)

// TextListener is notified after every text replacement.
type TextListener func(reason Reason)

// Document is a mutable rune buffer with a selection. It is not safe for
// concurrent use; all access happens on the reader's loop goroutine.
type Document struct {
	text        []rune
	sel         Selection
	onSelection []SelectionListener
	onText      []TextListener
}

// NewDocument creates a document holding s with a caret at 0.
func NewDocument(s string) *Document {
	return &Document{text: []rune(s)}
}

// OnSelectionChanged registers a selection listener.
func (d *Document) OnSelectionChanged(fn SelectionListener) {
	d.onSelection = append(d.onSelection, fn)
}

// OnTextChanged registers a text listener.
func (d *Document) OnTextChanged(fn TextListener) {
	d.onText = append(d.onText, fn)
}

// Text returns the document contents.
func (d *Document) Text() string {
	return string(d.text)
}

// Runes returns the document contents as runes. Callers must not modify the
// returned slice.
func (d *Document) Runes() []rune {
	return d.text
}

// Len returns the document length in runes.
func (d *Document) Len() int {
	return len(d.text)
}

// Selection returns the current selection.
func (d *Document) Selection() Selection {
	return d.sel
}

// Slice returns text[start:], clamping start into range.
func (d *Document) Slice(start int) string {
	return string(d.text[clampPos(d.text, start):])
}

// SetText replaces the whole document. The selection is clamped to the new
// length without notifying selection listeners; text listeners fire.
func (d *Document) SetText(s string, reason Reason) {
	d.text = []rune(s)
	d.sel = d.Clamp(d.sel)
	for _, fn := range d.onText {
		fn(reason)
	}
}

// Insert places s at the caret, replacing any selected range, and leaves
// the caret after the inserted text.
func (d *Document) Insert(s string, reason Reason) {
	sel := d.Clamp(d.sel)
	ins := []rune(s)

	out := make([]rune, 0, len(d.text)-sel.Length+len(ins))
	out = append(out, d.text[:sel.Start]...)
	out = append(out, ins...)
	out = append(out, d.text[sel.End():]...)

	d.text = out
	d.sel = Selection{Start: sel.Start + len(ins)}
	for _, fn := range d.onText {
		fn(reason)
	}
}

// Select sets the selection, clamped into the document, and notifies
// selection listeners with reason.
func (d *Document) Select(sel Selection, reason Reason) {
	d.sel = d.Clamp(sel)
	for _, fn := range d.onSelection {
		fn(d.sel, reason)
	}
}

// Clamp forces sel inside [0, Len()].
func (d *Document) Clamp(sel Selection) Selection {
	start := clampPos(d.text, sel.Start)
	length := sel.Length
	if length < 0 {
		length = 0
	}
	if start+length > len(d.text) {
		length = len(d.text) - start
	}
	return Selection{Start: start, Length: length}
}
