package rewrite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hazyhaar/proseai/horosafe"
)

// Public endpoints of the HTTP providers.
const (
	OpenAIURL = "https://api.openai.com/v1/chat/completions"
	ClaudeURL = "https://api.anthropic.com/v1/messages"

	OpenAIModel = "gpt-3.5-turbo"
	ClaudeModel = "claude-3-haiku-20240307"

	anthropicVersion = "2023-06-01"
)

// codec translates between a Prompt and one provider's JSON wire format.
type codec struct {
	build   func(model string, p Prompt) any
	headers func(apiKey string) map[string]string
	parse   func(body []byte) (string, bool)
}

// HTTPConfig configures an HTTP provider. Zero values use the public
// endpoint and model.
type HTTPConfig struct {
	URL        string
	Model      string
	HTTPClient *http.Client
}

type httpProvider struct {
	name  string
	cfg   HTTPConfig
	codec codec
}

func (h *httpProvider) Name() string { return h.name }

func (h *httpProvider) Complete(ctx context.Context, apiKey string, p Prompt) (string, error) {
	body, err := json.Marshal(h.codec.build(h.cfg.Model, p))
	if err != nil {
		return "", fmt.Errorf("rewrite: %s: encode: %w", h.name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return "", &providerError{provider: h.name, message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range h.codec.headers(apiKey) {
		req.Header.Set(k, v)
	}

	resp, err := h.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", &providerError{provider: h.name, message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := horosafe.LimitedReadAll(resp.Body, horosafe.MaxResponseBody)
	if err != nil {
		return "", &providerError{provider: h.name, status: resp.StatusCode, message: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &providerError{provider: h.name, status: resp.StatusCode, message: errorMessage(resp.StatusCode, data)}
	}
	text, ok := h.codec.parse(data)
	if !ok {
		return "", invalidFormat(h.name)
	}
	return text, nil
}

// errorMessage extracts error.message from a provider error body.
func errorMessage(status int, data []byte) string {
	var env struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(data, &env) == nil && env.Error.Message != "" {
		return env.Error.Message
	}
	return fmt.Sprintf("Request failed with status code %d", status)
}

func newHTTPProvider(name string, cfg HTTPConfig, defURL, defModel string, c codec) Provider {
	if cfg.URL == "" {
		cfg.URL = defURL
	}
	if cfg.Model == "" {
		cfg.Model = defModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = defaultHTTPClient()
	}
	return &httpProvider{name: name, cfg: cfg, codec: c}
}

// NewOpenAI returns the OpenAI chat completions provider.
func NewOpenAI(cfg HTTPConfig) Provider {
	return newHTTPProvider(ProviderOpenAI, cfg, OpenAIURL, OpenAIModel, openAICodec)
}

// NewClaude returns the Anthropic messages provider.
func NewClaude(cfg HTTPConfig) Provider {
	return newHTTPProvider(ProviderClaude, cfg, ClaudeURL, ClaudeModel, claudeCodec)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

var openAICodec = codec{
	build: func(model string, p Prompt) any {
		return struct {
			Model       string        `json:"model"`
			Messages    []chatMessage `json:"messages"`
			Temperature float64       `json:"temperature"`
			MaxTokens   int           `json:"max_tokens"`
		}{
			Model: model,
			Messages: []chatMessage{
				{Role: "system", Content: p.System},
				{Role: "user", Content: p.User},
			},
			Temperature: 0.7,
			MaxTokens:   500,
		}
	},
	headers: func(key string) map[string]string {
		return map[string]string{"Authorization": "Bearer " + key}
	},
	parse: func(body []byte) (string, bool) {
		var out struct {
			Choices []struct {
				Message chatMessage `json:"message"`
			} `json:"choices"`
		}
		if json.Unmarshal(body, &out) != nil || len(out.Choices) == 0 {
			return "", false
		}
		return out.Choices[0].Message.Content, out.Choices[0].Message.Content != ""
	},
}

var claudeCodec = codec{
	build: func(model string, p Prompt) any {
		return struct {
			Model     string        `json:"model"`
			MaxTokens int           `json:"max_tokens"`
			Messages  []chatMessage `json:"messages"`
		}{
			Model:     model,
			MaxTokens: 1024,
			Messages:  []chatMessage{{Role: "user", Content: p.Combined()}},
		}
	},
	headers: func(key string) map[string]string {
		return map[string]string{
			"x-api-key":         key,
			"anthropic-version": anthropicVersion,
		}
	},
	parse: func(body []byte) (string, bool) {
		var out struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		}
		if json.Unmarshal(body, &out) != nil || len(out.Content) == 0 {
			return "", false
		}
		return out.Content[0].Text, out.Content[0].Text != ""
	},
}
