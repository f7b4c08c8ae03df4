// Package rewrite turns text into the same text in another tone by calling
// one of several language model APIs.
//
// A Service owns a provider table (gemini, openai, claude) and the
// configured credentials. Rewrite never returns an error: every failure is
// folded into a Result with Success false and a user-facing message.
package rewrite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/proseai/idgen"
	"github.com/hazyhaar/proseai/kit"
	"github.com/hazyhaar/proseai/observability"
)

// Request is one rewrite call. Provider and APIKey are optional.
type Request struct {
	Text      string `json:"text"`
	Tone      string `json:"tone"`
	Provider  string `json:"provider,omitempty"`
	APIKey    string `json:"apiKey,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// Result is the outcome of a rewrite.
type Result struct {
	Success       bool   `json:"success"`
	RewrittenText string `json:"rewrittenText,omitempty"`
	Error         string `json:"error,omitempty"`
	Provider      string `json:"provider"`
}

// EventRecorder receives one event per finished rewrite.
type EventRecorder interface {
	RecordRewrite(ctx context.Context, ev observability.RewriteEvent)
}

// Service dispatches rewrites to providers.
type Service struct {
	providers map[string]Provider
	creds     Credentials
	logger    *slog.Logger
	recorder  EventRecorder
	newID     idgen.Generator
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithProvider adds or replaces the provider registered under p.Name().
func WithProvider(p Provider) Option {
	return func(s *Service) { s.providers[p.Name()] = p }
}

// WithCredentials sets the configured credentials. Without it, or with a
// nil slice, NewService reads CredentialsFromEnv.
func WithCredentials(c Credentials) Option {
	return func(s *Service) { s.creds = c }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithRecorder records one event per rewrite.
func WithRecorder(r EventRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithIDGenerator sets the generator for requests that carry no ID.
func WithIDGenerator(g idgen.Generator) Option {
	return func(s *Service) { s.newID = g }
}

// NewService creates a Service with the three public providers.
func NewService(opts ...Option) *Service {
	s := &Service{
		providers: map[string]Provider{
			ProviderGemini: NewGemini(GeminiConfig{}),
			ProviderOpenAI: NewOpenAI(HTTPConfig{}),
			ProviderClaude: NewClaude(HTTPConfig{}),
		},
		logger: slog.Default(),
		newID:  idgen.RequestID,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.creds == nil {
		s.creds = CredentialsFromEnv()
	}
	return s
}

// Providers lists the configured provider names in priority order.
func (s *Service) Providers() []string { return s.creds.Providers() }

// Rewrite validates req, picks one provider and returns its normalized
// completion.
func (s *Service) Rewrite(ctx context.Context, req Request) Result {
	if req.RequestID == "" {
		req.RequestID = s.newID()
	}
	start := s.now()
	res, outcome := s.rewrite(ctx, req)

	attrs := []any{
		"request_id", req.RequestID,
		"provider", res.Provider,
		"tone", req.Tone,
		"text_len", len(req.Text),
		"outcome", outcome,
		"duration_ms", s.now().Sub(start).Milliseconds(),
	}
	if id := kit.GetTraceID(ctx); id != "" {
		attrs = append(attrs, "trace_id", id)
	}
	if pl := kit.GetPlatform(ctx); pl != "" {
		attrs = append(attrs, "platform", pl)
	}
	s.logger.InfoContext(ctx, "rewrite: done", attrs...)
	if s.recorder != nil {
		s.recorder.RecordRewrite(ctx, observability.RewriteEvent{
			RequestID: req.RequestID,
			Source:    source(ctx),
			Provider:  res.Provider,
			Tone:      req.Tone,
			TextLen:   len(req.Text),
			Outcome:   outcome,
			Duration:  s.now().Sub(start),
		})
	}
	return res
}

func (s *Service) rewrite(ctx context.Context, req Request) (Result, string) {
	fail := func(provider, msg, outcome string) (Result, string) {
		if provider == "" {
			provider = ProviderNone
		}
		return Result{Success: false, Error: msg, Provider: provider}, outcome
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return fail(req.Provider, MsgInvalidInput, observability.OutcomeValidationError)
	}
	if !IsValidTone(req.Tone) {
		msg := "Invalid tone: must be one of " + strings.Join(ToneIDs(), ", ")
		return fail(req.Provider, msg, observability.OutcomeValidationError)
	}

	cred, err := SelectProvider(Credential{Provider: req.Provider, Key: req.APIKey}, s.creds)
	if errors.Is(err, ErrNoCredential) {
		return fail(ProviderNone, MsgNoAPIKey, observability.OutcomeValidationError)
	}
	p, ok := s.providers[cred.Provider]
	if !ok {
		msg := fmt.Sprintf("Unsupported provider: %s. Use 'gemini', 'openai', or 'claude'.", cred.Provider)
		return fail(cred.Provider, msg, observability.OutcomeValidationError)
	}

	out, err := s.complete(ctx, p, cred.Key, BuildPrompt(text, req.Tone))
	if err != nil {
		s.logger.WarnContext(ctx, "rewrite: provider failed",
			"request_id", req.RequestID, "provider", cred.Provider, "error", err)
		return fail(cred.Provider, err.Error(), observability.OutcomeProviderError)
	}
	clean, ok := normalizeOutput(out)
	if !ok {
		return fail(cred.Provider, invalidFormat(cred.Provider).Error(), observability.OutcomeProviderError)
	}
	return Result{Success: true, RewrittenText: clean, Provider: cred.Provider}, observability.OutcomeSuccess
}

// complete calls p and turns a panic into an error.
func (s *Service) complete(ctx context.Context, p Provider, key string, prompt Prompt) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &providerError{provider: p.Name(), message: fmt.Sprint(r)}
		}
	}()
	return p.Complete(ctx, key, prompt)
}

func source(ctx context.Context) string {
	switch t := kit.GetTransport(ctx); t {
	case "http":
		return "api"
	default:
		return t
	}
}
