package connectivity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hazyhaar/proseai/horosafe"
	"github.com/hazyhaar/proseai/kit"
)

// httpConfig is the per-route config JSON.
type httpConfig struct {
	TimeoutMs    int64  `json:"timeout_ms"`
	Path         string `json:"path"`
	AllowPrivate bool   `json:"allow_private"`
}

// HTTPOptions tunes HTTPFactory.
type HTTPOptions struct {
	// Client overrides the HTTP client; its Timeout is replaced per route.
	Client *http.Client
	// AllowLoopback accepts localhost endpoints. The default rewrite API
	// runs on localhost:3000, so callers usually set it.
	AllowLoopback bool
}

// HTTPFactory creates Handlers that POST the JSON payload to endpoint plus
// the route's optional "path" config. Trace and request ids from the context
// travel as X-Trace-ID and X-Request-ID. Non-2xx responses become
// *StatusError.
//
//	router.RegisterTransport("http", connectivity.HTTPFactory(connectivity.HTTPOptions{AllowLoopback: true}))
func HTTPFactory(opts HTTPOptions) TransportFactory {
	return func(endpoint string, config json.RawMessage) (Handler, func(), error) {
		var cfg httpConfig
		if len(config) > 0 {
			if err := json.Unmarshal(config, &cfg); err != nil {
				return nil, nil, fmt.Errorf("connectivity/http: config: %w", err)
			}
		}

		target := strings.TrimRight(endpoint, "/") + cfg.Path
		if _, err := horosafe.ValidateEndpoint(target, horosafe.EndpointPolicy{
			AllowLoopback: opts.AllowLoopback,
			AllowPrivate:  cfg.AllowPrivate,
		}); err != nil {
			return nil, nil, fmt.Errorf("connectivity/http: %w", err)
		}

		timeout := 30 * time.Second
		if cfg.TimeoutMs > 0 {
			timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
		}
		client := &http.Client{Timeout: timeout}
		if opts.Client != nil {
			c := *opts.Client
			c.Timeout = timeout
			client = &c
		}

		handler := func(ctx context.Context, payload []byte) ([]byte, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
			if err != nil {
				return nil, fmt.Errorf("connectivity/http: create request: %w", err)
			}
			req.Header.Set("Content-Type", "application/json")
			if id := kit.GetTraceID(ctx); id != "" {
				req.Header.Set("X-Trace-ID", id)
			}
			if id := kit.GetRequestID(ctx); id != "" {
				req.Header.Set("X-Request-ID", id)
			}

			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("connectivity/http: do request: %w", err)
			}
			defer resp.Body.Close()

			body, err := horosafe.LimitedReadAll(resp.Body, horosafe.MaxResponseBody)
			if err != nil {
				return nil, fmt.Errorf("connectivity/http: read response: %w", err)
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return nil, &StatusError{Endpoint: target, Status: resp.StatusCode, Body: body}
			}
			return body, nil
		}

		return handler, client.CloseIdleConnections, nil
	}
}
