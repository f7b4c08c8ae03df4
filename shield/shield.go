// Package shield provides the HTTP middleware stack of the rewrite API:
// security headers, CORS, JSON body limits, request tracing, and per-IP
// rate limiting.
//
//	r := chi.NewRouter()
//	for _, mw := range shield.DefaultAPIStack(rl, logger) {
//	    r.Use(mw)
//	}
package shield

import (
	"log/slog"
	"net/http"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// DefaultAPIStack returns the middleware stack for the rewrite API, ordered
// HeadToGet → SecurityHeaders → CORS → MaxJSONBody → TraceID → rate limit.
// A nil limiter skips rate limiting. Request loggers derive from logger.
func DefaultAPIStack(rl *RateLimiter, logger *slog.Logger) []func(http.Handler) http.Handler {
	stack := []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(APIHeaders()),
		CORS(DefaultCORS()),
		MaxJSONBody(64 * 1024),
		TraceID(logger),
	}
	if rl != nil {
		stack = append(stack, rl.Middleware)
	}
	return stack
}
