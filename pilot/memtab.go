package pilot

import (
	"context"
	"sync"

	"github.com/hazyhaar/proseai/panel"
	"github.com/hazyhaar/proseai/pilot/internal/overlay"
	"github.com/hazyhaar/proseai/platform"
	"github.com/hazyhaar/proseai/surface"
	"github.com/hazyhaar/proseai/surface/memdom"
)

// MemOpener opens in-memory pages for dry runs and tests. Each page holds
// one rich composer matched by the profile's primary selector.
type MemOpener struct {
	// Text seeds every new composer.
	Text string

	mu   sync.Mutex
	tabs map[string]*MemTab
}

// Open implements TabOpener.
func (o *MemOpener) Open(_ context.Context, p platform.Profile) (Tab, error) {
	doc := memdom.New()
	ov := NewMemOverlay()
	doc.OnStructureChange(ov.Mutate)
	node := doc.AddRich([]string{p.Primary.Selector}, memdom.WithText(o.Text))
	t := &MemTab{doc: doc, overlay: ov, Composer: node}

	o.mu.Lock()
	if o.tabs == nil {
		o.tabs = make(map[string]*MemTab)
	}
	o.tabs[p.ID] = t
	o.mu.Unlock()
	return t, nil
}

// Tab returns the last page opened for a platform.
func (o *MemOpener) Tab(id string) (*MemTab, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.tabs[id]
	return t, ok
}

// MemTab is an in-memory page.
type MemTab struct {
	doc      *memdom.Document
	overlay  *MemOverlay
	Composer *memdom.Node
}

func (t *MemTab) Document() surface.Document { return t.doc }
func (t *MemTab) Overlay() Overlay           { return t.overlay }

// Doc returns the page document for direct manipulation.
func (t *MemTab) Doc() *memdom.Document { return t.doc }

// MemOverlay returns the page overlay.
func (t *MemTab) MemOverlay() *MemOverlay { return t.overlay }

// Close ends the overlay event stream.
func (t *MemTab) Close() error {
	t.overlay.close()
	return nil
}

// MemOverlay records what the panel shows and lets callers click tones.
type MemOverlay struct {
	events chan Event
	once   sync.Once

	mu       sync.Mutex
	attached surface.Element
	statuses []panel.Status
	hidden   int
	changed  chan struct{}
}

// NewMemOverlay returns an overlay with no element attached.
func NewMemOverlay() *MemOverlay {
	return &MemOverlay{events: make(chan Event, 16), changed: make(chan struct{})}
}

// Select clicks a tone.
func (o *MemOverlay) Select(tone string) {
	o.send(Event{Kind: overlay.KindTone, Tone: tone}, true)
}

// Mutate signals a structural change of the page.
func (o *MemOverlay) Mutate() {
	o.send(Event{Kind: overlay.KindMutation}, false)
}

func (o *MemOverlay) send(ev Event, wait bool) {
	defer func() { _ = recover() }() // send on closed channel after Close
	if wait {
		o.events <- ev
		return
	}
	select {
	case o.events <- ev:
	default:
	}
}

func (o *MemOverlay) close() { o.once.Do(func() { close(o.events) }) }

func (o *MemOverlay) Events() <-chan Event { return o.events }

func (o *MemOverlay) Attach(_ context.Context, el surface.Element) error {
	o.update(func() { o.attached = el })
	return nil
}

func (o *MemOverlay) Detach(context.Context) {
	o.update(func() { o.attached = nil })
}

func (o *MemOverlay) ShowStatus(_ context.Context, st panel.Status) {
	o.update(func() { o.statuses = append(o.statuses, st) })
}

func (o *MemOverlay) ClearStatus(context.Context) {}

func (o *MemOverlay) Hide(context.Context) {
	o.update(func() { o.hidden++ })
}

// Attached returns the element the trigger is anchored to.
func (o *MemOverlay) Attached() surface.Element {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.attached
}

// Statuses returns every status shown so far.
func (o *MemOverlay) Statuses() []panel.Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]panel.Status(nil), o.statuses...)
}

// Wait blocks until cond holds for the overlay or ctx ends.
func (o *MemOverlay) Wait(ctx context.Context, cond func(o *MemOverlay) bool) error {
	for {
		o.mu.Lock()
		ch := o.changed
		o.mu.Unlock()
		if cond(o) {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (o *MemOverlay) update(fn func()) {
	o.mu.Lock()
	fn()
	close(o.changed)
	o.changed = make(chan struct{})
	o.mu.Unlock()
}
