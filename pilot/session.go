package pilot

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/proseai/idgen"
	"github.com/hazyhaar/proseai/kit"
	"github.com/hazyhaar/proseai/panel"
	"github.com/hazyhaar/proseai/pilot/internal/overlay"
	"github.com/hazyhaar/proseai/platform"
	"github.com/hazyhaar/proseai/surface"
	"github.com/hazyhaar/proseai/tracker"
)

// ErrPageClosed is returned by Session.Run when the overlay event stream
// ends before ctx.
var ErrPageClosed = errors.New("pilot: page closed")

// Event is a message from the injected UI.
type Event = overlay.Event

// Overlay is the injected UI of one page: the panel view plus the trigger
// anchored to the current element.
type Overlay interface {
	panel.View
	Attach(ctx context.Context, el surface.Element) error
	Detach(ctx context.Context)
	// Events is closed when the page goes away.
	Events() <-chan Event
}

// SessionConfig wires one page. Document, Overlay and Rewriter are required.
type SessionConfig struct {
	Profile  platform.Profile
	Document surface.Document
	Overlay  Overlay
	Rewriter panel.Rewriter
	Settings panel.Settings
	Interval time.Duration
	Debounce time.Duration
	NewID    idgen.Generator
	Logger   *slog.Logger
}

// Session binds a panel to the composition element of one page and keeps
// it bound while the page remounts its composer.
type Session struct {
	cfg     SessionConfig
	panel   *panel.Controller
	tracker *tracker.Tracker
	logger  *slog.Logger
}

// NewSession builds the panel and tracker for one page.
func NewSession(cfg SessionConfig) *Session {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	logger := cfg.Logger.With("platform", cfg.Profile.ID)
	adapter := surface.NewAdapter(cfg.Document, logger)
	ctl := panel.New(panel.Config{
		Surface:  adapter,
		Rewriter: cfg.Rewriter,
		Settings: cfg.Settings,
		View:     cfg.Overlay,
		Logger:   logger,
		NewID:    cfg.NewID,
	})
	s := &Session{cfg: cfg, panel: ctl, logger: logger}
	s.tracker = tracker.New(tracker.Config{
		Locator:  adapter,
		Profile:  cfg.Profile,
		Attacher: binding{overlay: cfg.Overlay, panel: ctl},
		Interval: cfg.Interval,
		Debounce: cfg.Debounce,
		Logger:   cfg.Logger,
	})
	return s
}

// Panel returns the session's panel controller.
func (s *Session) Panel() *panel.Controller { return s.panel }

// Tracker returns the session's tracker.
func (s *Session) Tracker() *tracker.Tracker { return s.tracker }

// Run tracks the element and serves overlay events until ctx is done or
// the page closes. Rewrites in flight are waited for.
func (s *Session) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	// Cancel before the wait: the tracker returns only on ctx done.
	ctx, cancel := context.WithCancel(kit.WithPlatform(ctx, s.cfg.Profile.ID))
	defer cancel()

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.tracker.Run(ctx)
	}()

	events := s.cfg.Overlay.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return ErrPageClosed
			}
			switch ev.Kind {
			case overlay.KindMutation:
				s.tracker.Notify()
			case overlay.KindTone:
				wg.Add(1)
				go func(tone string) {
					defer wg.Done()
					s.selectTone(ctx, tone)
				}(ev.Tone)
			default:
				s.logger.Debug("pilot: unknown overlay event", "kind", ev.Kind)
			}
		}
	}
}

// newTraceID tags each tone click; the HTTP route forwards it to the API.
var newTraceID = idgen.Prefixed("trc_", idgen.Default)

func (s *Session) selectTone(ctx context.Context, tone string) {
	ctx = kit.WithTraceID(ctx, newTraceID())
	err := s.panel.SelectTone(ctx, tone)
	switch {
	case err == nil:
	case errors.Is(err, panel.ErrBusy):
		s.logger.Debug("pilot: tone ignored, rewrite in flight", "tone", tone)
	default:
		s.logger.Info("pilot: rewrite not applied", "tone", tone, "error", err)
	}
}

// Reload drops the current element and looks it up again.
func (s *Session) Reload(ctx context.Context) {
	s.tracker.Reset(ctx)
	s.tracker.Notify()
}

// binding attaches the overlay first so a page that rejects the trigger
// leaves the panel unbound and the tracker retries.
type binding struct {
	overlay Overlay
	panel   *panel.Controller
}

func (b binding) Attach(ctx context.Context, el surface.Element) error {
	if err := b.overlay.Attach(ctx, el); err != nil {
		return err
	}
	return b.panel.Attach(ctx, el)
}

func (b binding) Detach(ctx context.Context) {
	b.panel.Detach(ctx)
	b.overlay.Detach(ctx)
}
