// Package overlay injects the trigger button and tone panel into a chat
// page and relays the user's clicks back over a CDP binding.
package overlay

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/proseai/panel"
	"github.com/hazyhaar/proseai/pilot/internal/cdpdom"
	"github.com/hazyhaar/proseai/rewrite"
	"github.com/hazyhaar/proseai/surface"
)

//go:embed overlay.js
var overlayJS string

// Binding is the page function the overlay calls.
const Binding = "__proseai"

// Event kinds.
const (
	KindTone     = "tone"
	KindMutation = "mutation"
)

// Event is one message from the page.
type Event struct {
	Kind string `json:"kind"`
	Tone string `json:"tone,omitempty"`
}

// ErrForeignElement is returned by Attach for elements from another
// Document implementation.
var ErrForeignElement = errors.New("overlay: element is not a page element")

// Overlay drives the injected UI of one page.
type Overlay struct {
	page   *rod.Page
	logger *slog.Logger
	events chan Event

	once sync.Once
}

// Install adds the binding, injects the overlay now and on every new
// document, and starts relaying binding calls until ctx is done.
func Install(ctx context.Context, page *rod.Page, tones []rewrite.Tone, logger *slog.Logger) (*Overlay, error) {
	if logger == nil {
		logger = slog.Default()
	}
	list, err := json.Marshal(tones)
	if err != nil {
		return nil, err
	}
	script := overlayJS + "\nwindow.__proseaiOverlay.install(" + string(list) + ");\n"

	if err := (proto.RuntimeAddBinding{Name: Binding}).Call(page); err != nil {
		return nil, fmt.Errorf("overlay: add binding: %w", err)
	}
	if _, err := page.EvalOnNewDocument(script); err != nil {
		return nil, fmt.Errorf("overlay: register script: %w", err)
	}

	o := &Overlay{page: page, logger: logger, events: make(chan Event, 16)}
	wait := page.Context(ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != Binding {
			return
		}
		var ev Event
		if err := json.Unmarshal([]byte(e.Payload), &ev); err != nil {
			logger.Warn("overlay: bad binding payload", "error", err)
			return
		}
		o.deliver(ctx, ev)
	})
	go func() {
		wait()
		o.once.Do(func() { close(o.events) })
	}()

	if _, err := page.Context(ctx).Eval("() => {\n" + script + "}"); err != nil {
		return nil, fmt.Errorf("overlay: inject: %w", err)
	}
	return o, nil
}

// deliver drops mutation signals when the consumer lags; tone clicks wait.
func (o *Overlay) deliver(ctx context.Context, ev Event) {
	if ev.Kind == KindMutation {
		select {
		case o.events <- ev:
		default:
		}
		return
	}
	select {
	case o.events <- ev:
	case <-ctx.Done():
	}
}

// Events is closed when the page goes away or the install ctx ends.
func (o *Overlay) Events() <-chan Event { return o.events }

// Attach anchors the trigger button to el.
func (o *Overlay) Attach(ctx context.Context, el surface.Element) error {
	ce, ok := el.(*cdpdom.Element)
	if !ok {
		return ErrForeignElement
	}
	_, err := ce.Rod().Context(ctx).Eval(`() => window.__proseaiOverlay && window.__proseaiOverlay.attach(this)`)
	if err != nil {
		return fmt.Errorf("overlay: attach: %w", err)
	}
	return nil
}

// Detach removes the trigger from the current element.
func (o *Overlay) Detach(ctx context.Context) {
	o.call(ctx, `() => window.__proseaiOverlay && window.__proseaiOverlay.detach()`)
}

func (o *Overlay) ShowStatus(ctx context.Context, st panel.Status) {
	o.call(ctx, `(m, k) => window.__proseaiOverlay && window.__proseaiOverlay.status(m, k)`, st.Message, string(st.Kind))
}

func (o *Overlay) ClearStatus(ctx context.Context) {
	o.call(ctx, `() => window.__proseaiOverlay && window.__proseaiOverlay.clearStatus()`)
}

func (o *Overlay) Hide(ctx context.Context) {
	o.call(ctx, `() => window.__proseaiOverlay && window.__proseaiOverlay.hide()`)
}

func (o *Overlay) call(ctx context.Context, js string, args ...any) {
	if _, err := o.page.Context(ctx).Eval(js, args...); err != nil {
		o.logger.Debug("overlay: eval failed", "error", err)
	}
}
