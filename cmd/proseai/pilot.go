package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/proseai/connectivity"
	"github.com/hazyhaar/proseai/kit"
	"github.com/hazyhaar/proseai/panel"
	"github.com/hazyhaar/proseai/pilot"
	"github.com/hazyhaar/proseai/platform"
	"github.com/hazyhaar/proseai/rewrite"
	"github.com/hazyhaar/proseai/rewriteapi"
)

var (
	pilotConfig string
	dryRun      bool
	dryText     string
	dryTone     string
)

var pilotCmd = &cobra.Command{
	Use:   "pilot",
	Short: "Drive Chrome and offer the rewrite panel on the enabled chat apps",
	Long: `Open one tab per selected platform and keep the rewrite panel bound to
its message box. Nothing opens until onboarding is completed:

  proseai settings set selectedApps whatsapp,linkedin
  proseai settings set onboardingCompleted true

--dry-run replaces Chrome with in-memory pages: each enabled platform gets a
composer holding --text, --tone is clicked once, and the results are printed.`,
	RunE: runPilot,
}

func init() {
	f := pilotCmd.Flags()
	f.StringVar(&pilotConfig, "config", env("PILOT_CONFIG", ""), "pilot.yaml path")
	f.BoolVar(&dryRun, "dry-run", false, "use in-memory pages instead of Chrome")
	f.StringVar(&dryText, "text", "hey can u send me the report by tmrw", "composer text for --dry-run")
	f.StringVar(&dryTone, "tone", rewrite.DefaultTone, "tone clicked in --dry-run")
}

func runPilot(cmd *cobra.Command, args []string) error {
	ctx := kit.WithTransport(cmd.Context(), "pilot")
	fc, err := pilot.LoadConfig(pilotConfig)
	if err != nil {
		return err
	}
	if pilotConfig != "" && !cmd.Flags().Changed("settings-db") {
		settingsDB = fc.Settings
	}
	if fc.Metrics != "" && !cmd.Flags().Changed("metrics-db") {
		metricsDB = fc.Metrics
	}

	reg := platform.Default()
	if fc.Profiles != "" {
		if reg, err = platform.LoadFile(fc.Profiles); err != nil {
			return err
		}
	}

	db, store, err := openSettings()
	if err != nil {
		return err
	}
	defer db.Close()

	rewriter, onEndpoint, closeRoute, err := pilotRewriter(ctx, db, fc)
	if err != nil {
		return err
	}
	defer closeRoute()

	var opener pilot.TabOpener
	var mem *pilot.MemOpener
	var browser *pilot.Browser
	if dryRun {
		mem = &pilot.MemOpener{Text: dryText}
		opener = mem
	} else {
		browser, err = pilot.StartBrowser(ctx, fc.Browser, logger)
		if err != nil {
			return err
		}
		defer browser.Close()
		opener = browser
	}

	p := pilot.New(pilot.Config{
		Opener:       opener,
		Settings:     store,
		Rewriter:     rewriter,
		Registry:     reg,
		ProfilesFile: fc.Profiles,
		Interval:     fc.RescanInterval,
		Debounce:     fc.MutationDebounce,
		SettingsPoll: fc.SettingsPoll,
		OnEndpoint:   onEndpoint,
		Logger:       logger,
	})
	if browser != nil {
		browser.OnRecycle(func() { p.Reopen(ctx) })
	}
	if !dryRun {
		return p.Run(ctx)
	}
	return runDry(ctx, p, mem, cmd)
}

// pilotRewriter routes rewrites through connectivity: in-process when the
// route is local, to the API otherwise. The returned func follows the
// apiEndpoint setting when the config names no fixed endpoint.
func pilotRewriter(ctx context.Context, db *sql.DB, fc *pilot.FileConfig) (panel.Rewriter, func(context.Context, string) error, func(), error) {
	router := connectivity.New(
		connectivity.WithLogger(logger),
		connectivity.WithMiddleware(connectivity.Recovery(logger), connectivity.Logging(logger),
			connectivity.Timeout(rewrite.DefaultTimeout+5*time.Second)),
	)
	router.RegisterTransport(connectivity.StrategyHTTP, connectivity.HTTPFactory(connectivity.HTTPOptions{AllowLoopback: true}))

	closers := []func(){func() { router.Close() }}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if fc.Rewrite.Route == pilot.RouteLocal {
		mdb, err := openMetrics()
		if err != nil {
			return nil, nil, nil, err
		}
		svc, rec := newService(mdb)
		closers = append(closers, func() { rec.Close(); mdb.Close() })
		router.RegisterLocal(rewriteapi.ServiceName, rewriteapi.LocalHandler(svc))
	}

	onEndpoint := func(ctx context.Context, setting string) error {
		if fc.Rewrite.Route == pilot.RouteLocal {
			return rewriteapi.SetRoute(ctx, db, router, "")
		}
		endpoint := fc.Rewrite.Endpoint
		if endpoint == "" {
			endpoint = setting
		}
		if !rewriteapi.CheckHealth(ctx, &http.Client{Timeout: 5 * time.Second}, endpoint) {
			logger.Warn("pilot: rewrite API not reachable", "endpoint", endpoint)
		}
		return rewriteapi.SetRoute(ctx, db, router, endpoint)
	}

	// Edits to the routes table from another process apply too.
	wctx, cancel := context.WithCancel(ctx)
	closers = append(closers, cancel)
	go router.Watch(wctx, db, fc.SettingsPoll)

	return rewriteapi.NewClient(router, logger), onEndpoint, closeAll, nil
}

// runDry clicks dryTone once on every enabled platform and prints what each
// composer holds afterwards.
func runDry(ctx context.Context, p *pilot.Pilot, mem *pilot.MemOpener, cmd *cobra.Command) error {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	deadline := time.Now().Add(5 * time.Second)
	for len(p.Active()) == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	active := p.Active()
	if len(active) == 0 {
		return fmt.Errorf("no platform enabled: complete onboarding and select apps first")
	}

	out := cmd.OutOrStdout()
	for _, id := range active {
		tab, ok := mem.Tab(id)
		if !ok {
			continue
		}
		ov := tab.MemOverlay()
		wctx, wcancel := context.WithTimeout(ctx, rewrite.DefaultTimeout+10*time.Second)
		if err := ov.Wait(wctx, func(o *pilot.MemOverlay) bool { return o.Attached() != nil }); err != nil {
			wcancel()
			fmt.Fprintf(out, "%s: composer not found\n", id)
			continue
		}
		before := len(ov.Statuses())
		ov.Select(dryTone)
		var final panel.Status
		err := ov.Wait(wctx, func(o *pilot.MemOverlay) bool {
			st := o.Statuses()
			if len(st) <= before {
				return false
			}
			final = st[len(st)-1]
			return final.Kind != panel.StatusLoading
		})
		wcancel()
		switch {
		case err != nil:
			fmt.Fprintf(out, "%s: %v\n", id, err)
		case final.Kind == panel.StatusSuccess:
			fmt.Fprintf(out, "%s: %s\n", id, tab.Composer.Text())
		default:
			fmt.Fprintf(out, "%s: %s\n", id, final.Message)
		}
	}
	return nil
}
