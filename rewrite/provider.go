package rewrite

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// DefaultTimeout bounds one provider call.
const DefaultTimeout = 30 * time.Second

// Provider completes a rewrite prompt with one model API.
type Provider interface {
	// Name is the provider key used in requests and results.
	Name() string
	// Complete returns the raw completion text for p.
	Complete(ctx context.Context, apiKey string, p Prompt) (string, error)
}

// providerError is a failed provider call. Error() is the user-facing
// message.
type providerError struct {
	provider string
	status   int
	message  string
}

func (e *providerError) Error() string {
	return fmt.Sprintf("%s API failed: %s", displayName(e.provider), e.message)
}

func invalidFormat(provider string) *providerError {
	return &providerError{
		provider: provider,
		message:  fmt.Sprintf("Invalid response format from %s API", displayName(provider)),
	}
}

func displayName(provider string) string {
	switch provider {
	case ProviderGemini:
		return "Gemini"
	case ProviderOpenAI:
		return "OpenAI"
	case ProviderClaude:
		return "Claude"
	}
	return provider
}

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: DefaultTimeout}
}
