// Package pilot drives a browser so the rewrite panel is available on every
// enabled chat platform. It opens one tab per selected platform, keeps a
// Session running in each, and follows settings and profile changes
// without a restart.
package pilot

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/proseai/idgen"
	"github.com/hazyhaar/proseai/panel"
	"github.com/hazyhaar/proseai/platform"
	"github.com/hazyhaar/proseai/settings"
	"github.com/hazyhaar/proseai/surface"
)

// Tab is one open page.
type Tab interface {
	Document() surface.Document
	Overlay() Overlay
	Close() error
}

// TabOpener opens a page for a platform.
type TabOpener interface {
	Open(ctx context.Context, p platform.Profile) (Tab, error)
}

// SettingsStore is the subset of *settings.Store the pilot uses.
type SettingsStore interface {
	panel.Settings
	Get(ctx context.Context) (settings.Settings, error)
	Watch(ctx context.Context, interval time.Duration, fn func(context.Context, settings.Settings) error)
}

// Config wires a Pilot. Opener, Settings and Rewriter are required.
type Config struct {
	Opener   TabOpener
	Settings SettingsStore
	Rewriter panel.Rewriter
	Registry *platform.Registry

	// ProfilesFile, when set, is watched and reloaded into the registry.
	ProfilesFile string

	Interval     time.Duration
	Debounce     time.Duration
	SettingsPoll time.Duration
	// ReopenDelay spaces retries of a tab whose page closed.
	ReopenDelay time.Duration

	// OnEndpoint runs when the apiEndpoint setting changes, before the
	// sessions are reloaded.
	OnEndpoint func(ctx context.Context, endpoint string) error

	NewID  idgen.Generator
	Logger *slog.Logger
}

type running struct {
	session *Session
	tab     Tab
	cancel  context.CancelFunc
	done    chan struct{}
}

// Pilot owns the sessions.
type Pilot struct {
	cfg Config

	mu       sync.Mutex
	reg      *platform.Registry
	sessions map[string]*running
	applied  settings.Settings
	started  bool

	// runCtx is the Run context, sessions derive from it.
	runCtx context.Context
	group  *errgroup.Group
}

// New creates a Pilot. Nothing opens until Run.
func New(cfg Config) *Pilot {
	if cfg.Registry == nil {
		cfg.Registry = platform.Default()
	}
	if cfg.SettingsPoll <= 0 {
		cfg.SettingsPoll = time.Second
	}
	if cfg.ReopenDelay <= 0 {
		cfg.ReopenDelay = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pilot{cfg: cfg, reg: cfg.Registry, sessions: make(map[string]*running)}
}

// Run applies the current settings, then follows settings and profile
// changes until ctx is cancelled. All tabs are closed on return.
func (p *Pilot) Run(ctx context.Context) error {
	st, err := p.cfg.Settings.Get(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	p.mu.Lock()
	p.runCtx, p.group = gctx, g
	p.mu.Unlock()
	defer p.closeAll()

	p.Apply(gctx, st)

	g.Go(func() error {
		p.cfg.Settings.Watch(gctx, p.cfg.SettingsPoll, func(ctx context.Context, st settings.Settings) error {
			p.Apply(ctx, st)
			return nil
		})
		return nil
	})
	if p.cfg.ProfilesFile != "" {
		g.Go(func() error {
			return WatchProfiles(gctx, p.cfg.ProfilesFile, p.cfg.Logger, func(reg *platform.Registry) {
				p.SetRegistry(gctx, reg)
			})
		})
	}
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Active returns the platform IDs with a running session, sorted.
func (p *Pilot) Active() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.sessions))
	for id := range p.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Session returns the running session for a platform.
func (p *Pilot) Session(id string) (*Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.sessions[id]
	if !ok {
		return nil, false
	}
	return r.session, true
}

// desired lists the platforms that should have a session: none before
// onboarding, otherwise the selected ones the registry knows.
func desired(st settings.Settings, reg *platform.Registry) []platform.Profile {
	if !st.OnboardingCompleted {
		return nil
	}
	var out []platform.Profile
	for _, id := range st.SelectedPlatforms {
		if prof, ok := reg.Get(id); ok {
			out = append(out, prof)
		}
	}
	return out
}

// Apply brings the sessions in line with st. A changed endpoint reloads
// the sessions that stay.
func (p *Pilot) Apply(ctx context.Context, st settings.Settings) {
	p.mu.Lock()
	prev, first := p.applied, !p.started
	p.applied, p.started = st, true
	reg := p.reg
	p.mu.Unlock()

	endpointChanged := !first && prev.APIEndpoint != st.APIEndpoint
	if (first || endpointChanged) && p.cfg.OnEndpoint != nil {
		if err := p.cfg.OnEndpoint(ctx, st.APIEndpoint); err != nil {
			p.cfg.Logger.Error("pilot: endpoint update failed", "endpoint", st.APIEndpoint, "error", err)
		}
	}
	kept := p.reconcile(ctx, desired(st, reg), nil)
	if endpointChanged {
		for _, r := range kept {
			r.session.Reload(ctx)
		}
	}
}

// SetRegistry swaps the platform registry. Sessions whose profile changed
// are restarted so they pick up the new locators.
func (p *Pilot) SetRegistry(ctx context.Context, reg *platform.Registry) {
	p.mu.Lock()
	old := p.reg
	p.reg = reg
	st := p.applied
	p.mu.Unlock()

	restart := make(map[string]bool)
	for _, prof := range reg.All() {
		if was, ok := old.Get(prof.ID); !ok || !sameProfile(was, prof) {
			restart[prof.ID] = true
		}
	}
	p.cfg.Logger.Info("pilot: profiles reloaded", "platforms", len(reg.All()), "changed", len(restart))
	p.reconcile(ctx, desired(st, reg), restart)
}

// Reopen closes every tab and opens them again, after a browser restart.
func (p *Pilot) Reopen(ctx context.Context) {
	p.mu.Lock()
	st, reg := p.applied, p.reg
	all := make(map[string]bool, len(p.sessions))
	for id := range p.sessions {
		all[id] = true
	}
	p.mu.Unlock()
	p.reconcile(ctx, desired(st, reg), all)
}

// reconcile stops sessions not in want or listed in restart, then starts
// the missing ones. It returns the sessions left running untouched.
func (p *Pilot) reconcile(ctx context.Context, want []platform.Profile, restart map[string]bool) []*running {
	wanted := make(map[string]bool, len(want))
	for _, prof := range want {
		wanted[prof.ID] = true
	}

	p.mu.Lock()
	var stop []*running
	var kept []*running
	for id, r := range p.sessions {
		if !wanted[id] || restart[id] {
			stop = append(stop, r)
			delete(p.sessions, id)
		} else {
			kept = append(kept, r)
		}
	}
	p.mu.Unlock()

	for _, r := range stop {
		p.stop(r)
	}
	for _, prof := range want {
		p.mu.Lock()
		_, exists := p.sessions[prof.ID]
		p.mu.Unlock()
		if !exists {
			p.start(ctx, prof)
		}
	}
	return kept
}

func (p *Pilot) start(ctx context.Context, prof platform.Profile) {
	log := p.cfg.Logger.With("platform", prof.ID)
	tab, err := p.cfg.Opener.Open(ctx, prof)
	if err != nil {
		log.Error("pilot: open tab failed", "url", prof.URL, "error", err)
		return
	}
	sess := NewSession(SessionConfig{
		Profile:  prof,
		Document: tab.Document(),
		Overlay:  tab.Overlay(),
		Rewriter: p.cfg.Rewriter,
		Settings: p.cfg.Settings,
		Interval: p.cfg.Interval,
		Debounce: p.cfg.Debounce,
		NewID:    p.cfg.NewID,
		Logger:   p.cfg.Logger,
	})

	p.mu.Lock()
	parent := p.runCtx
	if parent == nil {
		parent = ctx
	}
	sctx, cancel := context.WithCancel(parent)
	r := &running{session: sess, tab: tab, cancel: cancel, done: make(chan struct{})}
	p.sessions[prof.ID] = r
	g := p.group
	p.mu.Unlock()

	run := func() error {
		defer close(r.done)
		err := sess.Run(sctx)
		if errors.Is(err, ErrPageClosed) {
			log.Warn("pilot: page closed")
			p.reopenLater(sctx, parent, prof, r)
		}
		return nil
	}
	if g != nil {
		g.Go(run)
	} else {
		go run()
	}
	log.Info("pilot: session started", "url", prof.URL)
}

// reopenLater replaces r after ReopenDelay if it is still the registered
// session for prof. Stopping r in the meantime cancels sctx.
func (p *Pilot) reopenLater(sctx, ctx context.Context, prof platform.Profile, r *running) {
	select {
	case <-sctx.Done():
		return
	case <-time.After(p.cfg.ReopenDelay):
	}
	p.mu.Lock()
	cur, ok := p.sessions[prof.ID]
	if !ok || cur != r {
		p.mu.Unlock()
		return
	}
	delete(p.sessions, prof.ID)
	p.mu.Unlock()
	_ = r.tab.Close()
	p.start(ctx, prof)
}

func (p *Pilot) stop(r *running) {
	r.cancel()
	<-r.done
	if err := r.tab.Close(); err != nil {
		p.cfg.Logger.Debug("pilot: close tab", "error", err)
	}
}

func (p *Pilot) closeAll() {
	p.mu.Lock()
	all := make([]*running, 0, len(p.sessions))
	for id, r := range p.sessions {
		all = append(all, r)
		delete(p.sessions, id)
	}
	p.mu.Unlock()
	for _, r := range all {
		p.stop(r)
	}
}

func sameProfile(a, b platform.Profile) bool {
	if a.URL != b.URL || a.Name != b.Name {
		return false
	}
	return slices.Equal(a.Locators(), b.Locators()) && slices.Equal(a.Origins, b.Origins)
}
