// Package tracker keeps a panel attached to the live composition element of
// one page. Chat apps remount their composer on conversation switch, so the
// element is looked up again on every structural change and on a slow tick.
package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/proseai/platform"
	"github.com/hazyhaar/proseai/surface"
)

// DefaultInterval is the timed re-check period.
const DefaultInterval = 2 * time.Second

// Locator finds the composition element for a profile. *surface.Adapter
// satisfies it.
type Locator interface {
	Locate(ctx context.Context, p platform.Profile) (surface.Element, bool)
}

// Attacher is bound to the current element. Attach is called once per new
// element, Detach once before the element is replaced or dropped.
type Attacher interface {
	Attach(ctx context.Context, el surface.Element) error
	Detach(ctx context.Context)
}

// Config wires a Tracker. Locator and Attacher are required.
type Config struct {
	Locator  Locator
	Profile  platform.Profile
	Attacher Attacher
	Interval time.Duration
	// Debounce coalesces bursts of Notify calls. Zero reconciles at once.
	Debounce time.Duration
	Logger   *slog.Logger
}

// Stats counts tracker activity.
type Stats struct {
	Passes   int64
	Attaches int64
	Detaches int64
}

// Tracker reconciles the attached element with what the page shows.
type Tracker struct {
	cfg    Config
	notify chan struct{}

	// pass serializes Reconcile and Reset, including the Attacher calls.
	pass sync.Mutex

	mu      sync.Mutex
	current surface.Element
	stats   Stats
}

// New creates a Tracker. Nothing is located until Reconcile or Run.
func New(cfg Config) *Tracker {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	cfg.Logger = cfg.Logger.With("platform", cfg.Profile.ID)
	return &Tracker{cfg: cfg, notify: make(chan struct{}, 1)}
}

// Notify signals a structural change of the page. It never blocks; signals
// arriving before the next pass are merged.
func (t *Tracker) Notify() {
	select {
	case t.notify <- struct{}{}:
	default:
	}
}

// Current returns the attached element, nil when none.
func (t *Tracker) Current() surface.Element {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Stats returns a snapshot of the counters.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// Run reconciles once, then on every Notify and every Interval until ctx is
// done. On exit the current element is detached.
func (t *Tracker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.cfg.Interval)
	defer ticker.Stop()
	defer t.Reset(context.WithoutCancel(ctx))

	t.Reconcile(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.Reconcile(ctx)
		case <-t.notify:
			if t.cfg.Debounce > 0 {
				timer := time.NewTimer(t.cfg.Debounce)
				select {
				case <-ctx.Done():
					timer.Stop()
					return nil
				case <-timer.C:
				}
				select {
				case <-t.notify:
				default:
				}
			}
			t.Reconcile(ctx)
		}
	}
}

// Reconcile runs one discovery pass. A located element that is not the
// current node (by identity, not content) replaces it; a vanished element
// is detached.
func (t *Tracker) Reconcile(ctx context.Context) {
	t.pass.Lock()
	defer t.pass.Unlock()

	el, found := t.cfg.Locator.Locate(ctx, t.cfg.Profile)

	t.mu.Lock()
	t.stats.Passes++
	cur := t.current
	t.mu.Unlock()

	switch {
	case !found && cur == nil:
		return
	case found && cur != nil && cur.SameNode(el):
		return
	}

	if cur != nil {
		t.detach(ctx)
	}
	if !found {
		t.cfg.Logger.DebugContext(ctx, "tracker: element gone")
		return
	}
	if err := t.cfg.Attacher.Attach(ctx, el); err != nil {
		t.cfg.Logger.WarnContext(ctx, "tracker: attach failed", "error", err)
		return
	}
	t.mu.Lock()
	t.current = el
	t.stats.Attaches++
	t.mu.Unlock()
	t.cfg.Logger.DebugContext(ctx, "tracker: attached", "kind", el.Kind())
}

// Reset detaches and forgets the current element. The next pass attaches
// from scratch.
func (t *Tracker) Reset(ctx context.Context) {
	t.pass.Lock()
	defer t.pass.Unlock()

	t.mu.Lock()
	cur := t.current
	t.mu.Unlock()
	if cur != nil {
		t.detach(ctx)
	}
}

func (t *Tracker) detach(ctx context.Context) {
	t.cfg.Attacher.Detach(ctx)
	t.mu.Lock()
	t.current = nil
	t.stats.Detaches++
	t.mu.Unlock()
}
