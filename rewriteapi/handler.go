package rewriteapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/proseai/idgen"
	"github.com/hazyhaar/proseai/kit"
	"github.com/hazyhaar/proseai/rewrite"
	"github.com/hazyhaar/proseai/shield"
)

type endpointConfig struct {
	logger *slog.Logger
	now    func() time.Time
}

// EndpointOption configures Endpoint and NewHandler.
type EndpointOption func(*endpointConfig)

// WithLogger sets the call logger.
func WithLogger(l *slog.Logger) EndpointOption {
	return func(c *endpointConfig) { c.logger = l }
}

// WithClock overrides the response timestamp source.
func WithClock(now func() time.Time) EndpointOption {
	return func(c *endpointConfig) { c.now = now }
}

// HandlerConfig wires the HTTP API.
type HandlerConfig struct {
	Rewriter Rewriter
	// RateLimiter is optional.
	RateLimiter *shield.RateLimiter
	Logger      *slog.Logger
	Now         func() time.Time
	NewID       idgen.Generator
}

// NewHandler returns the chi router serving /api/rewrite and /health behind
// the shield API stack.
func NewHandler(cfg HandlerConfig) http.Handler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = idgen.RequestID
	}
	ep := Endpoint(cfg.Rewriter, WithLogger(cfg.Logger), WithClock(cfg.Now))

	r := chi.NewRouter()
	for _, mw := range shield.DefaultAPIStack(cfg.RateLimiter, cfg.Logger) {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get(Path, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, NewInfo(cfg.Now()))
	})

	r.Options(Path, func(w http.ResponseWriter, _ *http.Request) {
		shield.SetCORSHeaders(w, shield.DefaultCORS())
		writeJSON(w, http.StatusOK, struct{}{})
	})

	r.Post(Path, func(w http.ResponseWriter, r *http.Request) {
		log := shield.GetLogger(r.Context())
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Warn("rewriteapi: bad body", "error", err)
			writeUnexpected(w, cfg.Now())
			return
		}

		ctx := kit.WithTransport(r.Context(), "http")
		if kit.GetRequestID(ctx) == "" {
			ctx = kit.WithRequestID(ctx, cfg.NewID())
		}
		out, err := ep(ctx, &req)
		if err != nil {
			log.Error("rewriteapi: endpoint failed", "error", err)
			writeUnexpected(w, cfg.Now())
			return
		}
		resp := out.(*Response)
		writeJSON(w, resp.Status(), resp)
	})

	return r
}

func writeUnexpected(w http.ResponseWriter, now time.Time) {
	writeJSON(w, http.StatusInternalServerError, &Response{
		Error:     rewrite.MsgUnknown,
		Timestamp: now.UnixMilli(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
