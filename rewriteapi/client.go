package rewriteapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hazyhaar/proseai/connectivity"
	"github.com/hazyhaar/proseai/kit"
	"github.com/hazyhaar/proseai/rewrite"
)

// Client messages.
const (
	MsgRequestFailed = "API request failed"
	MsgClientFailed  = "Failed to rewrite text"
)

// Client sends rewrites through a connectivity router, so the service may be
// in-process or a remote API. It satisfies panel.Rewriter.
type Client struct {
	router  *connectivity.Router
	service string
	logger  *slog.Logger
}

// NewClient calls ServiceName on router. A nil logger uses slog.Default().
func NewClient(router *connectivity.Router, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{router: router, service: ServiceName, logger: logger}
}

// Rewrite forwards text and tone. Transport failures and non-2xx replies
// come back as a failed Result with provider "none" when no provider was
// reached.
func (c *Client) Rewrite(ctx context.Context, req rewrite.Request) rewrite.Result {
	payload, err := json.Marshal(Request{Text: req.Text, Tone: req.Tone, Provider: req.Provider})
	if err != nil {
		return rewrite.Result{Error: MsgClientFailed, Provider: rewrite.ProviderNone}
	}
	if req.RequestID != "" {
		ctx = kit.WithRequestID(ctx, req.RequestID)
	}

	body, err := c.router.Call(ctx, c.service, payload)
	var se *connectivity.StatusError
	if errors.As(err, &se) {
		body, err = se.Body, nil
	}
	if err != nil {
		c.logger.WarnContext(ctx, "rewriteapi: call failed", "request_id", req.RequestID, "error", err)
		return rewrite.Result{Error: MsgClientFailed, Provider: rewrite.ProviderNone}
	}

	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		c.logger.WarnContext(ctx, "rewriteapi: bad reply", "request_id", req.RequestID, "error", err)
		return rewrite.Result{Error: MsgClientFailed, Provider: rewrite.ProviderNone}
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = MsgRequestFailed
		}
		provider := resp.Provider
		if provider == "" {
			provider = rewrite.ProviderNone
		}
		return rewrite.Result{Error: msg, Provider: provider}
	}
	return rewrite.Result{Success: true, RewrittenText: resp.RewrittenText, Provider: resp.Provider}
}

// CheckHealth reports whether GET {endpoint}/api/rewrite answers 2xx.
func CheckHealth(ctx context.Context, client *http.Client, endpoint string) bool {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(endpoint, "/")+Path, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
