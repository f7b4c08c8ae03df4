// Package cdpdom implements surface.Document over a live Chrome page. Each
// element primitive is a single Runtime.callFunctionOn against the node.
package cdpdom

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/proseai/surface"
)

// Document is a page seen through the surface interfaces.
type Document struct {
	page *rod.Page
}

// New wraps page.
func New(page *rod.Page) *Document { return &Document{page: page} }

// Query returns the elements matching selector that are plain inputs or
// contenteditable regions. Other matches are skipped.
func (d *Document) Query(ctx context.Context, selector string) ([]surface.Element, error) {
	els, err := d.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("cdpdom: query %q: %w", selector, err)
	}
	out := make([]surface.Element, 0, len(els))
	for _, el := range els {
		e, err := wrap(ctx, el)
		if err != nil {
			continue
		}
		if e.kind != surface.KindUnknown {
			out = append(out, e)
		}
	}
	return out, nil
}

// Element is one live node.
type Element struct {
	el      *rod.Element
	kind    surface.Kind
	backend proto.DOMBackendNodeID
}

func wrap(ctx context.Context, el *rod.Element) (*Element, error) {
	node, err := el.Context(ctx).Describe(0, false)
	if err != nil {
		return nil, err
	}
	res, err := el.Context(ctx).Eval(jsKind)
	if err != nil {
		return nil, err
	}
	kind := surface.KindUnknown
	switch res.Value.Str() {
	case "plain":
		kind = surface.KindPlainValue
	case "rich":
		kind = surface.KindRichEditable
	}
	return &Element{el: el, kind: kind, backend: node.BackendNodeID}, nil
}

func (e *Element) Kind() surface.Kind { return e.kind }

func (e *Element) Connected(ctx context.Context) bool {
	res, err := e.eval(ctx, jsConnected)
	return err == nil && res.Value.Bool()
}

func (e *Element) Editable(ctx context.Context) bool {
	res, err := e.eval(ctx, jsEditable)
	return err == nil && res.Value.Bool()
}

func (e *Element) Value(ctx context.Context) (string, error) {
	res, err := e.eval(ctx, jsValue)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (e *Element) SetValue(ctx context.Context, v string) error {
	_, err := e.eval(ctx, jsSetValue, v)
	return err
}

func (e *Element) RenderedText(ctx context.Context) (string, error) {
	res, err := e.eval(ctx, jsRenderedText)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (e *Element) SetTextContent(ctx context.Context, text string) error {
	_, err := e.eval(ctx, jsSetTextContent, text)
	return err
}

func (e *Element) Focus(ctx context.Context) error {
	_, err := e.eval(ctx, jsFocus)
	return err
}

func (e *Element) SelectAll(ctx context.Context) error {
	_, err := e.eval(ctx, jsSelectAll)
	return err
}

func (e *Element) InsertText(ctx context.Context, text string) (bool, error) {
	res, err := e.eval(ctx, jsInsertText, text)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

func (e *Element) Dispatch(ctx context.Context, ev surface.Event) error {
	_, err := e.eval(ctx, jsDispatch, ev.Type, ev.InputType, ev.Data)
	return err
}

func (e *Element) CaretToEnd(ctx context.Context) error {
	_, err := e.eval(ctx, jsCaretToEnd)
	return err
}

// SameNode compares backend node ids, which survive re-querying.
func (e *Element) SameNode(other surface.Element) bool {
	o, ok := other.(*Element)
	return ok && o.backend == e.backend
}

// Rod returns the underlying element.
func (e *Element) Rod() *rod.Element { return e.el }

func (e *Element) eval(ctx context.Context, js string, args ...any) (*proto.RuntimeRemoteObject, error) {
	res, err := e.el.Context(ctx).Eval(js, args...)
	if err != nil {
		return nil, fmt.Errorf("cdpdom: %w", err)
	}
	return res, nil
}
