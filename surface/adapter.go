package surface

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hazyhaar/proseai/platform"
)

// Adapter locates, reads and writes composition elements in one Document.
type Adapter struct {
	doc    Document
	logger *slog.Logger
}

// NewAdapter wraps doc. A nil logger uses slog.Default().
func NewAdapter(doc Document, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{doc: doc, logger: logger}
}

// Locate tries the profile's primary locator, then its fallbacks in order.
// The first connected, editable match wins. Query errors are logged and
// count as a miss.
func (a *Adapter) Locate(ctx context.Context, p platform.Profile) (Element, bool) {
	for _, loc := range p.Locators() {
		els, err := a.doc.Query(ctx, loc.Selector)
		if err != nil {
			a.logger.Debug("surface: query failed", "platform", p.ID, "selector", loc.Selector, "error", err)
			continue
		}
		if !loc.AnyEditable && len(els) > 1 {
			els = els[:1]
		}
		for _, el := range els {
			if el.Connected(ctx) && el.Editable(ctx) {
				return el, true
			}
		}
	}
	return nil, false
}

// ReadText returns the element's current text: the value of a plain input,
// the rendered text of a rich region.
func (a *Adapter) ReadText(ctx context.Context, el Element) (string, bool) {
	if !Alive(ctx, el) {
		return "", false
	}
	var (
		s   string
		err error
	)
	switch el.Kind() {
	case KindPlainValue:
		s, err = el.Value(ctx)
	case KindRichEditable:
		s, err = el.RenderedText(ctx)
		s = strings.ReplaceAll(s, "\u00a0", " ")
	default:
		return "", false
	}
	if err != nil {
		a.logger.Debug("surface: read failed", "kind", el.Kind(), "error", err)
		return "", false
	}
	return strings.ReplaceAll(s, "\r\n", "\n"), true
}

// WriteText replaces the element's whole content with text so the host
// page's editor state follows. The sequence is fixed: focus, select all,
// beforeinput, native insert, read-back check, direct overwrite when the
// native path failed or produced anything but text, input, change, caret to
// end. Repeated calls with the same text leave exactly one copy. Empty text
// clears the element.
func (a *Adapter) WriteText(ctx context.Context, el Element, text string) bool {
	if !Alive(ctx, el) {
		return false
	}
	kind := el.Kind()
	if kind != KindPlainValue && kind != KindRichEditable {
		return false
	}
	log := a.logger.With("kind", kind, "len", len(text))

	if err := el.Focus(ctx); err != nil {
		log.Debug("surface: focus failed", "error", err)
	}
	if err := el.SelectAll(ctx); err != nil {
		log.Debug("surface: select all failed", "error", err)
	}
	if err := el.Dispatch(ctx, Event{Type: EventBeforeInput, InputType: InputTypeInsertText, Data: text}); err != nil {
		log.Debug("surface: beforeinput failed", "error", err)
	}

	if !a.nativeInsert(ctx, el, text, log) {
		if err := a.overwrite(ctx, el, text); err != nil {
			log.Warn("surface: overwrite failed", "error", err)
			return false
		}
	}

	if err := el.Dispatch(ctx, Event{Type: EventInput, InputType: InputTypeInsertText, Data: text}); err != nil {
		log.Debug("surface: input event failed", "error", err)
	}
	if err := el.Dispatch(ctx, Event{Type: EventChange}); err != nil {
		log.Debug("surface: change event failed", "error", err)
	}
	if err := el.CaretToEnd(ctx); err != nil {
		log.Debug("surface: caret failed", "error", err)
	}

	got, ok := a.ReadText(ctx, el)
	if !ok || !Equivalent(got, text) {
		log.Warn("surface: content differs after write", "read_len", len(got))
		return false
	}
	return true
}

// nativeInsert reports whether the native editing command left exactly text
// in the element.
func (a *Adapter) nativeInsert(ctx context.Context, el Element, text string, log *slog.Logger) bool {
	ok, err := el.InsertText(ctx, text)
	if err != nil {
		log.Debug("surface: native insert failed", "error", err)
		return false
	}
	if !ok {
		return false
	}
	got, readOK := a.ReadText(ctx, el)
	return readOK && Equivalent(got, text)
}

func (a *Adapter) overwrite(ctx context.Context, el Element, text string) error {
	if el.Kind() == KindPlainValue {
		return el.SetValue(ctx, text)
	}
	return el.SetTextContent(ctx, text)
}
