// Package memdom is an in-memory surface.Document. Nodes are matched by
// exact selector strings, and the native insert-text command can be told to
// misbehave the ways real editors do.
package memdom

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/hazyhaar/proseai/surface"
)

// NativeMode selects how InsertText behaves.
type NativeMode int

const (
	// NativeOK replaces the selection and reports success.
	NativeOK NativeMode = iota
	// NativeUnavailable changes nothing and reports failure.
	NativeUnavailable
	// NativeReportsFalse replaces the selection but reports failure.
	NativeReportsFalse
	// NativeAppends ignores the selection and appends, reporting success.
	NativeAppends
	// NativeErrors returns an error without changing anything.
	NativeErrors
)

// ErrDetached is returned by operations on a removed node.
var ErrDetached = errors.New("memdom: node is not connected")

// Document is a flat list of nodes. It is safe for concurrent use.
type Document struct {
	mu    sync.Mutex
	nodes []*Node
	seq   int
	// QueryErr, when set, is returned by every Query.
	QueryErr error
	onChange func()
}

// OnStructureChange registers fn to run after nodes are added or removed,
// the way a MutationObserver would fire.
func (d *Document) OnStructureChange(fn func()) {
	d.mu.Lock()
	d.onChange = fn
	d.mu.Unlock()
}

func (d *Document) notify() {
	d.mu.Lock()
	fn := d.onChange
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// New returns an empty document.
func New() *Document { return &Document{} }

// Node is one element. Exported fields are configuration; use the methods to
// inspect state.
type Node struct {
	doc       *Document
	id        int
	kind      surface.Kind
	selectors []string

	connected bool
	editable  bool
	native    NativeMode

	content     string
	selectedAll bool
	caret       int
	focused     bool

	events []surface.Event
	ops    []string
}

// Option configures a node at creation.
type Option func(*Node)

// WithText sets the initial content.
func WithText(s string) Option { return func(n *Node) { n.content = s; n.caret = len(s) } }

// WithNative sets the native insert behaviour.
func WithNative(m NativeMode) Option { return func(n *Node) { n.native = m } }

// ReadOnly marks the node as not editable.
func ReadOnly() Option { return func(n *Node) { n.editable = false } }

// AddPlain appends an input or textarea matched by selectors.
func (d *Document) AddPlain(selectors []string, opts ...Option) *Node {
	return d.add(surface.KindPlainValue, selectors, opts)
}

// AddRich appends a contenteditable region matched by selectors.
func (d *Document) AddRich(selectors []string, opts ...Option) *Node {
	return d.add(surface.KindRichEditable, selectors, opts)
}

func (d *Document) add(kind surface.Kind, selectors []string, opts []Option) *Node {
	defer d.notify()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	n := &Node{
		doc:       d,
		id:        d.seq,
		kind:      kind,
		selectors: append([]string(nil), selectors...),
		connected: true,
		editable:  true,
	}
	for _, o := range opts {
		o(n)
	}
	d.nodes = append(d.nodes, n)
	return n
}

// Remove detaches n from the document.
func (d *Document) Remove(n *Node) {
	defer d.notify()
	d.mu.Lock()
	defer d.mu.Unlock()
	n.connected = false
	d.nodes = slices.DeleteFunc(d.nodes, func(x *Node) bool { return x == n })
}

// Clear detaches every node, as a navigation would.
func (d *Document) Clear() {
	defer d.notify()
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, n := range d.nodes {
		n.connected = false
	}
	d.nodes = nil
}

// Query implements surface.Document.
func (d *Document) Query(_ context.Context, selector string) ([]surface.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.QueryErr != nil {
		return nil, d.QueryErr
	}
	var out []surface.Element
	for _, n := range d.nodes {
		if slices.Contains(n.selectors, selector) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (n *Node) String() string {
	return fmt.Sprintf("memdom#%d(%s)", n.id, n.kind)
}

// Text returns the current content.
func (n *Node) Text() string {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	return n.content
}

// SetContent changes the content as a user typing would, without events.
func (n *Node) SetContent(s string) {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	n.content = s
	n.caret = len(s)
	n.selectedAll = false
}

// Events returns the events dispatched on the node so far.
func (n *Node) Events() []surface.Event {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	return append([]surface.Event(nil), n.events...)
}

// Ops returns the primitive operations applied so far, in order.
func (n *Node) Ops() []string {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	return append([]string(nil), n.ops...)
}

// Caret returns the caret offset in bytes.
func (n *Node) Caret() int {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	return n.caret
}

// Focused reports whether the node holds focus.
func (n *Node) Focused() bool {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	return n.focused
}

// ResetLog clears recorded events and ops.
func (n *Node) ResetLog() {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	n.events = nil
	n.ops = nil
}

func (n *Node) Kind() surface.Kind { return n.kind }

func (n *Node) Connected(context.Context) bool {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	return n.connected
}

func (n *Node) Editable(context.Context) bool {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	return n.editable
}

func (n *Node) Value(context.Context) (string, error) {
	return n.read(surface.KindPlainValue)
}

func (n *Node) RenderedText(context.Context) (string, error) {
	return n.read(surface.KindRichEditable)
}

func (n *Node) read(want surface.Kind) (string, error) {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	if !n.connected {
		return "", ErrDetached
	}
	if n.kind != want {
		return "", fmt.Errorf("memdom: %s node has no %s text", n.kind, want)
	}
	return n.content, nil
}

func (n *Node) SetValue(_ context.Context, v string) error {
	return n.mutate("setValue", func() error {
		if n.kind != surface.KindPlainValue {
			return fmt.Errorf("memdom: setValue on %s node", n.kind)
		}
		n.replaceAll(v)
		return nil
	})
}

func (n *Node) SetTextContent(_ context.Context, text string) error {
	return n.mutate("setTextContent", func() error {
		if n.kind != surface.KindRichEditable {
			return fmt.Errorf("memdom: setTextContent on %s node", n.kind)
		}
		n.replaceAll(text)
		return nil
	})
}

func (n *Node) Focus(context.Context) error {
	return n.mutate("focus", func() error {
		n.focused = true
		return nil
	})
}

func (n *Node) SelectAll(context.Context) error {
	return n.mutate("selectAll", func() error {
		n.selectedAll = true
		return nil
	})
}

func (n *Node) InsertText(_ context.Context, text string) (bool, error) {
	var ok bool
	err := n.mutate("insertText", func() error {
		switch n.native {
		case NativeUnavailable:
			ok = false
		case NativeErrors:
			return errors.New("memdom: execCommand threw")
		case NativeAppends:
			n.content += text
			n.caret = len(n.content)
			n.selectedAll = false
			ok = true
		case NativeReportsFalse:
			n.insert(text)
			ok = false
		default:
			n.insert(text)
			ok = true
		}
		return nil
	})
	return ok, err
}

func (n *Node) Dispatch(_ context.Context, ev surface.Event) error {
	return n.mutate("dispatch:"+ev.Type, func() error {
		n.events = append(n.events, ev)
		return nil
	})
}

func (n *Node) CaretToEnd(context.Context) error {
	return n.mutate("caretToEnd", func() error {
		n.caret = len(n.content)
		n.selectedAll = false
		return nil
	})
}

func (n *Node) SameNode(other surface.Element) bool {
	o, ok := other.(*Node)
	return ok && o == n
}

func (n *Node) mutate(op string, fn func() error) error {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	if !n.connected {
		return ErrDetached
	}
	n.ops = append(n.ops, op)
	return fn()
}

// insert replaces the selection, or inserts at the caret when nothing is
// selected. Caller holds the lock.
func (n *Node) insert(text string) {
	if n.selectedAll {
		n.replaceAll(text)
		return
	}
	c := min(max(n.caret, 0), len(n.content))
	var b strings.Builder
	b.WriteString(n.content[:c])
	b.WriteString(text)
	b.WriteString(n.content[c:])
	n.content = b.String()
	n.caret = c + len(text)
}

func (n *Node) replaceAll(s string) {
	n.content = s
	n.caret = len(s)
	n.selectedAll = false
}
