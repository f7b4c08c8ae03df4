// Package surface reads and rewrites the text of a chat composition
// element without owning it. A Document is the host page; an Element is a
// live node in it. The Adapter composes the element primitives into the
// locate, read and write operations the rest of proseai uses, hiding the
// difference between plain inputs and rich contenteditable regions.
package surface

import (
	"context"
	"strings"
)

// Kind classifies a composition element.
type Kind int

const (
	KindUnknown Kind = iota
	// KindPlainValue is an input or textarea; its text is the value property.
	KindPlainValue
	// KindRichEditable is a contenteditable region; its text is the
	// rendered text, never the markup.
	KindRichEditable
)

func (k Kind) String() string {
	switch k {
	case KindPlainValue:
		return "plain"
	case KindRichEditable:
		return "rich"
	default:
		return "unknown"
	}
}

// Event types dispatched on write-back.
const (
	EventBeforeInput = "beforeinput"
	EventInput       = "input"
	EventChange      = "change"
)

// InputTypeInsertText is the inputType carried by beforeinput and input.
const InputTypeInsertText = "insertText"

// Event is a synthetic DOM event. InputType and Data are set for
// InputEvents only; change is a plain Event.
type Event struct {
	Type      string
	InputType string
	Data      string
}

// Document is the page a composition element lives in.
type Document interface {
	// Query returns the connected nodes matching a CSS selector, in
	// document order.
	Query(ctx context.Context, selector string) ([]Element, error)
}

// Element is an observed, never owned, reference to a live node.
// Implementations must tolerate the node disappearing at any time.
type Element interface {
	Kind() Kind
	Connected(ctx context.Context) bool
	Editable(ctx context.Context) bool

	Value(ctx context.Context) (string, error)
	// SetValue uses the native value setter so framework-managed inputs
	// observe the change.
	SetValue(ctx context.Context, v string) error
	RenderedText(ctx context.Context) (string, error)
	SetTextContent(ctx context.Context, text string) error

	Focus(ctx context.Context) error
	SelectAll(ctx context.Context) error
	// InsertText runs the native insert-text editing command over the
	// current selection. ok is the command's own success report.
	InsertText(ctx context.Context, text string) (ok bool, err error)
	Dispatch(ctx context.Context, ev Event) error
	CaretToEnd(ctx context.Context) error

	SameNode(other Element) bool
}

// Normalize folds the differences browsers introduce when reporting text
// back: CRLF line endings, non-breaking spaces, and trailing newlines that
// contenteditable adds after a final block.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimRight(s, "\n")
}

// Equivalent reports whether two texts read the same after Normalize.
func Equivalent(a, b string) bool { return Normalize(a) == Normalize(b) }

// Alive reports whether el is non-nil and still connected.
func Alive(ctx context.Context, el Element) bool {
	return el != nil && el.Connected(ctx)
}
