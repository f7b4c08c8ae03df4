package shield

import "net/http"

// CORSConfig lists the values echoed in CORS response headers.
type CORSConfig struct {
	AllowOrigin  string
	AllowMethods string
	AllowHeaders string
}

// DefaultCORS allows any origin; the overlay calls the API from inside
// third-party chat pages.
func DefaultCORS() CORSConfig {
	return CORSConfig{
		AllowOrigin:  "*",
		AllowMethods: "GET, POST, OPTIONS",
		AllowHeaders: "Content-Type, Authorization",
	}
}

// CORS sets the CORS headers on every response. Preflight requests are
// passed on so routes can answer OPTIONS themselves.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			SetCORSHeaders(w, cfg)
			next.ServeHTTP(w, r)
		})
	}
}

// SetCORSHeaders writes cfg onto w.
func SetCORSHeaders(w http.ResponseWriter, cfg CORSConfig) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", cfg.AllowOrigin)
	h.Set("Access-Control-Allow-Methods", cfg.AllowMethods)
	h.Set("Access-Control-Allow-Headers", cfg.AllowHeaders)
}
