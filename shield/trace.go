package shield

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/proseai/idgen"
	"github.com/hazyhaar/proseai/kit"
)

// Correlation headers. The pilot's HTTP route sends both, so one rewrite
// keeps its trace and request ids from the tone click to the provider call.
const (
	TraceHeader   = "X-Trace-ID"
	RequestHeader = "X-Request-ID"
)

const maxInboundID = 64

var newTraceID = idgen.Prefixed("trc_", idgen.Default)

// TraceID tags each request with a trace id, reusing a well-formed inbound
// X-Trace-ID. A well-formed X-Request-ID is carried into the context too.
// The trace id is echoed in the response and bound, with method and path,
// to a per-request logger derived from base (slog.Default() when nil).
func TraceID(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := r.Header.Get(TraceHeader)
			if !validID(traceID) {
				traceID = newTraceID()
			}
			ctx := kit.WithTraceID(r.Context(), traceID)
			if id := r.Header.Get(RequestHeader); validID(id) {
				ctx = kit.WithRequestID(ctx, id)
			}
			w.Header().Set(TraceHeader, traceID)

			logger := base.With("trace_id", traceID, "method", r.Method, "path", r.URL.Path)
			ctx = context.WithValue(ctx, LoggerKey, logger)
			logger.Debug("request")

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// validID accepts short ids made of letters, digits, '-' and '_', which
// covers idgen output and keeps header junk out of the logs.
func validID(s string) bool {
	if s == "" || len(s) > maxInboundID {
		return false
	}
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

// GetLogger returns the per-request logger, or slog.Default().
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
