package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/proseai/kit"
	"github.com/hazyhaar/proseai/observability"
	"github.com/hazyhaar/proseai/rewrite"
	"github.com/hazyhaar/proseai/rewriteapi"
	"github.com/hazyhaar/proseai/shield"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the rewrite API",
	Long: `Serve POST/GET/OPTIONS /api/rewrite on PORT (default 3000).

Provider keys come from GEMINI_API_KEY, OPENAI_API_KEY and CLAUDE_API_KEY.
With MCP_TRANSPORT=stdio the rewrite_text and list_tones tools are also
served on stdin/stdout.`,
	RunE: runServe,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the rewrite tools over MCP on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openMetrics()
		if err != nil {
			return err
		}
		defer db.Close()
		svc, rec := newService(db)
		defer rec.Close()
		return serveMCP(cmd.Context(), svc)
	},
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", env("PORT", "3000"), "listen port")
}

// newService builds the provider-backed service recording into db. Close
// the recorder before db.
func newService(db *sql.DB) (*rewrite.Service, *observability.Recorder) {
	rec := observability.NewRecorder(db, logger)
	svc := rewrite.NewService(rewrite.WithLogger(logger), rewrite.WithRecorder(rec))
	if len(svc.Providers()) == 0 {
		logger.Warn("no provider key configured", "hint", rewrite.MsgNoAPIKey)
	}
	return svc, rec
}

func serveMCP(ctx context.Context, svc *rewrite.Service) error {
	srv := mcp.NewServer(&mcp.Implementation{Name: rewriteapi.APIName, Version: rewriteapi.APIVersion}, nil)
	rewriteapi.RegisterMCP(srv, svc, rewriteapi.WithLogger(logger))
	logger.Info("mcp: serving on stdio")
	return srv.Run(kit.WithTransport(ctx, "mcp"), &mcp.StdioTransport{})
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	db, err := openMetrics()
	if err != nil {
		return err
	}
	defer db.Close()
	svc, rec := newService(db)
	defer rec.Close()

	rl := shield.NewRateLimiter(ctx, db)
	go func() {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				rl.GC()
				rl.Reload(ctx)
			}
		}
	}()

	if env("MCP_TRANSPORT", "") == "stdio" {
		go func() {
			if err := serveMCP(ctx, svc); err != nil && ctx.Err() == nil {
				logger.Error("mcp", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              ":" + servePort,
		Handler:           rewriteapi.NewHandler(rewriteapi.HandlerConfig{Rewriter: svc, RateLimiter: rl, Logger: logger}),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", servePort, "providers", svc.Providers())
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("server stopped")
	return nil
}
