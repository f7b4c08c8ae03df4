package rewrite

import (
	"errors"
	"os"
	"strings"
)

// Provider names.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
	ProviderNone   = "none"
)

// ErrNoCredential is returned by SelectProvider when nothing is configured.
var ErrNoCredential = errors.New("rewrite: no provider credential configured")

// Credential is one provider API key.
type Credential struct {
	Provider string
	Key      string
}

// Credentials is ordered by priority: Gemini, OpenAI, Claude.
type Credentials []Credential

var envKeys = []struct{ provider, env string }{
	{ProviderGemini, "GEMINI_API_KEY"},
	{ProviderOpenAI, "OPENAI_API_KEY"},
	{ProviderClaude, "CLAUDE_API_KEY"},
}

// CredentialsFromEnv reads GEMINI_API_KEY, OPENAI_API_KEY and CLAUDE_API_KEY.
func CredentialsFromEnv() Credentials {
	return CredentialsFrom(os.Getenv)
}

// CredentialsFrom reads the provider keys through lookup, in priority order.
func CredentialsFrom(lookup func(string) string) Credentials {
	var out Credentials
	for _, e := range envKeys {
		if k := strings.TrimSpace(lookup(e.env)); k != "" {
			out = append(out, Credential{Provider: e.provider, Key: k})
		}
	}
	return out
}

// Lookup returns the credential configured for provider.
func (c Credentials) Lookup(provider string) (Credential, bool) {
	for _, cr := range c {
		if cr.Provider == provider {
			return cr, true
		}
	}
	return Credential{}, false
}

// Providers lists the configured provider names in priority order.
func (c Credentials) Providers() []string {
	out := make([]string, len(c))
	for i, cr := range c {
		out[i] = cr.Provider
	}
	return out
}

// SelectProvider picks exactly one credential. An explicit provider with an
// explicit key is used as is. An explicit provider without a key is pinned
// when configured has a key for it. Otherwise the first configured
// credential wins.
func SelectProvider(explicit Credential, configured Credentials) (Credential, error) {
	if explicit.Provider != "" && explicit.Key != "" {
		return explicit, nil
	}
	if explicit.Provider != "" {
		if cr, ok := configured.Lookup(explicit.Provider); ok {
			return cr, nil
		}
	}
	if len(configured) > 0 {
		return configured[0], nil
	}
	return Credential{}, ErrNoCredential
}
