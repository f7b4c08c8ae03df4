// Package rewriteapi exposes the rewrite service over HTTP (POST/GET/OPTIONS
// /api/rewrite), over MCP, and as a connectivity handler. All three share
// Process, so validation and status codes are the same everywhere.
package rewriteapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/hazyhaar/proseai/kit"
	"github.com/hazyhaar/proseai/rewrite"
)

// ServiceName is the connectivity route name of the rewrite service.
const ServiceName = "proseai_rewrite"

// Path is the HTTP route of the rewrite API.
const Path = "/api/rewrite"

// API identity reported by GET /api/rewrite.
const (
	APIName    = "ProseAI Rewrite API"
	APIVersion = "1.0.0"
)

// MsgAPIError is returned when a provider failed without a message.
const MsgAPIError = "AI service error. Please try again."

// Rewriter is satisfied by *rewrite.Service.
type Rewriter interface {
	Rewrite(ctx context.Context, req rewrite.Request) rewrite.Result
}

// Request is the POST body. Text is decoded loosely so a non-string value
// is reported as missing text rather than a decode failure.
type Request struct {
	Text     any    `json:"text"`
	Tone     string `json:"tone"`
	Provider string `json:"provider,omitempty"`
}

// Response is the POST reply.
type Response struct {
	Success       bool   `json:"success"`
	RewrittenText string `json:"rewrittenText,omitempty"`
	Error         string `json:"error,omitempty"`
	Provider      string `json:"provider,omitempty"`
	Timestamp     int64  `json:"timestamp"`

	status int
}

// Status is the HTTP status matching the response.
func (r *Response) Status() int {
	if r.status != 0 {
		return r.status
	}
	if r.Success {
		return http.StatusOK
	}
	return http.StatusInternalServerError
}

// ToolFailed marks unsuccessful responses as MCP tool errors.
func (r *Response) ToolFailed() bool { return !r.Success }

// Info is the GET reply.
type Info struct {
	Name               string   `json:"name"`
	Version            string   `json:"version"`
	AvailableTones     []string `json:"availableTones"`
	SupportedProviders []string `json:"supportedProviders"`
	MaxTextLength      int      `json:"maxTextLength"`
	Timestamp          int64    `json:"timestamp"`
}

// NewInfo describes the API at now.
func NewInfo(now time.Time) Info {
	return Info{
		Name:               APIName,
		Version:            APIVersion,
		AvailableTones:     rewrite.ToneIDs(),
		SupportedProviders: []string{rewrite.ProviderGemini, rewrite.ProviderOpenAI, rewrite.ProviderClaude},
		MaxTextLength:      rewrite.MaxTextLength,
		Timestamp:          now.UnixMilli(),
	}
}

// Process validates req and runs the rewrite. Validation failures are 400
// and never reach a provider; provider failures are 500.
func Process(ctx context.Context, rw Rewriter, req Request, now func() time.Time) *Response {
	text, _ := req.Text.(string)
	if err := rewrite.ValidateInput(text, req.Tone); err != nil {
		var ve *rewrite.ValidationError
		msg := err.Error()
		if errors.As(err, &ve) {
			msg = ve.Message
		}
		return &Response{Error: msg, Timestamp: now().UnixMilli(), status: http.StatusBadRequest}
	}

	res := rw.Rewrite(ctx, rewrite.Request{
		Text:      strings.TrimSpace(text),
		Tone:      req.Tone,
		Provider:  req.Provider,
		RequestID: kit.GetRequestID(ctx),
	})
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = MsgAPIError
		}
		return &Response{Error: msg, Provider: res.Provider, Timestamp: now().UnixMilli(), status: http.StatusInternalServerError}
	}
	return &Response{
		Success:       true,
		RewrittenText: res.RewrittenText,
		Provider:      res.Provider,
		Timestamp:     now().UnixMilli(),
		status:        http.StatusOK,
	}
}

// Endpoint wraps Process as a kit.Endpoint taking *Request, with panic
// recovery and call logging.
func Endpoint(rw Rewriter, opts ...EndpointOption) kit.Endpoint {
	cfg := endpointConfig{now: time.Now}
	for _, o := range opts {
		o(&cfg)
	}
	ep := func(ctx context.Context, req any) (any, error) {
		r, ok := req.(*Request)
		if !ok {
			return nil, errors.New("rewriteapi: unexpected request type")
		}
		return Process(ctx, rw, *r, cfg.now), nil
	}
	return kit.Chain(kit.Recover("rewrite"), kit.Logging(cfg.logger, "rewrite"))(ep)
}
