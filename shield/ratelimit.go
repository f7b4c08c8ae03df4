package shield

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig is the rule for one "METHOD /path" endpoint.
type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
	Enabled     bool
}

type bucket struct {
	mu      sync.Mutex
	count   int
	resetAt time.Time
}

// RateLimiter is a fixed-window, per-IP, per-endpoint limiter. Each rewrite
// spends provider quota, so POST /api/rewrite is limited by default. A nil
// db leaves the rule set empty until SetRule is called.
type RateLimiter struct {
	db      *sql.DB
	mu      sync.RWMutex
	rules   map[string]RateLimitConfig
	buckets sync.Map
	now     func() time.Time
}

// NewRateLimiter loads rules from the rate_limits table of db.
func NewRateLimiter(ctx context.Context, db *sql.DB) *RateLimiter {
	rl := &RateLimiter{db: db, rules: make(map[string]RateLimitConfig), now: time.Now}
	if db != nil {
		rl.Reload(ctx)
	}
	return rl
}

// SetRule installs or replaces the rule for endpoint.
func (rl *RateLimiter) SetRule(endpoint string, cfg RateLimitConfig) {
	rl.mu.Lock()
	rl.rules[endpoint] = cfg
	rl.mu.Unlock()
}

// Reload replaces the rule set with the rate_limits table contents.
func (rl *RateLimiter) Reload(ctx context.Context) {
	rows, err := rl.db.QueryContext(ctx, `SELECT endpoint, max_requests, window_seconds, enabled FROM rate_limits`)
	if err != nil {
		slog.Warn("ratelimit: failed to load rules", "error", err)
		return
	}
	defer rows.Close()

	rules := make(map[string]RateLimitConfig)
	for rows.Next() {
		var (
			endpoint      string
			cfg           RateLimitConfig
			windowSeconds int
			enabled       int
		)
		if err := rows.Scan(&endpoint, &cfg.MaxRequests, &windowSeconds, &enabled); err != nil {
			continue
		}
		cfg.Window = time.Duration(windowSeconds) * time.Second
		cfg.Enabled = enabled == 1
		rules[endpoint] = cfg
	}

	rl.mu.Lock()
	rl.rules = rules
	rl.mu.Unlock()
	slog.Debug("ratelimit: rules loaded", "count", len(rules))
}

// GC drops expired buckets.
func (rl *RateLimiter) GC() {
	now := rl.now()
	rl.buckets.Range(func(key, value any) bool {
		b := value.(*bucket)
		b.mu.Lock()
		expired := now.After(b.resetAt)
		b.mu.Unlock()
		if expired {
			rl.buckets.Delete(key)
		}
		return true
	})
}

// Allow reports whether ip may call endpoint now, counting the call.
func (rl *RateLimiter) Allow(ip, endpoint string) bool {
	rl.mu.RLock()
	cfg, ok := rl.rules[endpoint]
	rl.mu.RUnlock()
	if !ok || !cfg.Enabled {
		return true
	}

	now := rl.now()
	v, _ := rl.buckets.LoadOrStore(ip+" "+endpoint, &bucket{resetAt: now.Add(cfg.Window)})
	b := v.(*bucket)
	b.mu.Lock()
	defer b.mu.Unlock()
	if now.After(b.resetAt) {
		b.count = 0
		b.resetAt = now.Add(cfg.Window)
	}
	b.count++
	return b.count <= cfg.MaxRequests
}

// Middleware answers 429 with a JSON error once the window is exhausted.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.Method + " " + r.URL.Path
		ip := ExtractIP(r)
		if rl.Allow(ip, endpoint) {
			next.ServeHTTP(w, r)
			return
		}

		GetLogger(r.Context()).Warn("ratelimit: request blocked", "ip", ip, "endpoint", endpoint)
		rl.mu.RLock()
		window := rl.rules[endpoint].Window
		rl.mu.RUnlock()
		w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"success":   false,
			"error":     "Too many requests, please wait",
			"timestamp": time.Now().UnixMilli(),
		})
	})
}

// ExtractIP returns the client IP from X-Forwarded-For or RemoteAddr.
func ExtractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
