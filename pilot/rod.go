package pilot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/proseai/pilot/internal/browser"
	"github.com/hazyhaar/proseai/pilot/internal/cdpdom"
	"github.com/hazyhaar/proseai/pilot/internal/config"
	"github.com/hazyhaar/proseai/pilot/internal/overlay"
	"github.com/hazyhaar/proseai/platform"
	"github.com/hazyhaar/proseai/rewrite"
	"github.com/hazyhaar/proseai/surface"
)

// Browser opens platform tabs in a real Chrome.
type Browser struct {
	mgr    *browser.Manager
	logger *slog.Logger
}

// StartBrowser launches or connects Chrome as cfg describes. The recycle
// monitor stops with ctx.
func StartBrowser(ctx context.Context, cfg config.BrowserConfig, logger *slog.Logger) (*Browser, error) {
	if logger == nil {
		logger = slog.Default()
	}
	mgr := browser.NewManager(browser.Config{
		RemoteURL:       cfg.Remote,
		Headless:        cfg.Mode == config.ModeHeadless,
		XvfbDisplay:     cfg.XvfbDisplay,
		UserDataDir:     cfg.UserDataDir,
		RecycleInterval: cfg.RecycleInterval,
		BlockResources:  cfg.BlockResources,
		Logger:          logger,
	})
	if _, err := mgr.Start(ctx); err != nil {
		return nil, err
	}
	return &Browser{mgr: mgr, logger: logger}, nil
}

// OnRecycle registers fn to run after Chrome restarts. Open tabs are gone
// by then.
func (b *Browser) OnRecycle(fn func()) {
	b.mgr.OnRecycle(func(*rod.Browser) { fn() })
}

// Close shuts Chrome down.
func (b *Browser) Close() error { return b.mgr.Close() }

// Open navigates a new tab to the platform and injects the overlay.
func (b *Browser) Open(ctx context.Context, p platform.Profile) (Tab, error) {
	page, err := b.mgr.OpenPage(ctx, p.URL)
	if err != nil {
		return nil, err
	}
	tctx, cancel := context.WithCancel(ctx)
	ov, err := overlay.Install(tctx, page, rewrite.Tones(), b.logger.With("platform", p.ID))
	if err != nil {
		cancel()
		_ = page.Close()
		return nil, fmt.Errorf("pilot: %s: %w", p.ID, err)
	}

	// A tab the user closes ends the overlay stream.
	if rb := b.mgr.Browser(); rb != nil {
		go rb.Context(tctx).EachEvent(func(e *proto.TargetTargetDestroyed) bool {
			if e.TargetID == page.TargetID {
				cancel()
				return true
			}
			return false
		})()
	}
	return &rodTab{page: page, doc: cdpdom.New(page), overlay: ov, cancel: cancel}, nil
}

type rodTab struct {
	page    *rod.Page
	doc     *cdpdom.Document
	overlay *overlay.Overlay
	cancel  context.CancelFunc
	once    sync.Once
}

func (t *rodTab) Document() surface.Document { return t.doc }
func (t *rodTab) Overlay() Overlay           { return t.overlay }

func (t *rodTab) Close() error {
	var err error
	t.once.Do(func() {
		t.cancel()
		err = t.page.Close()
	})
	return err
}
