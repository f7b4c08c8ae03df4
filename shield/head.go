package shield

import (
	"net/http"
	"strconv"
)

// HeadToGet answers HEAD through the GET routes, so uptime checks against
// /health and /api/rewrite need no routes of their own. The GET body is
// counted, never sent, and reported as Content-Length when the handler set
// none.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		r.Method = http.MethodGet
		hw := &headWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(hw, r)
		hw.flush()
	})
}

// headWriter holds the status line back until the handler returns, when
// the body length is known.
type headWriter struct {
	http.ResponseWriter
	status int
	n      int
}

func (w *headWriter) WriteHeader(status int) { w.status = status }

func (w *headWriter) Write(p []byte) (int, error) {
	w.n += len(p)
	return len(p), nil
}

func (w *headWriter) flush() {
	h := w.Header()
	if h.Get("Content-Length") == "" && w.status != http.StatusNoContent && w.status != http.StatusNotModified {
		h.Set("Content-Length", strconv.Itoa(w.n))
	}
	w.ResponseWriter.WriteHeader(w.status)
}
