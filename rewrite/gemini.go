package rewrite

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"google.golang.org/genai"
)

// GeminiModel is the default Gemini model.
const GeminiModel = "gemini-2.5-flash"

// GeminiConfig configures the Gemini provider. Zero values use the public
// endpoint and GeminiModel.
type GeminiConfig struct {
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

type geminiProvider struct {
	cfg GeminiConfig

	// newClient is genai.NewClient; tests count calls through it.
	newClient func(context.Context, *genai.ClientConfig) (*genai.Client, error)

	mu      sync.Mutex
	clients map[string]*genai.Client
}

// NewGemini returns the Gemini provider backed by google.golang.org/genai.
// One client is kept per API key.
func NewGemini(cfg GeminiConfig) Provider {
	if cfg.Model == "" {
		cfg.Model = GeminiModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = defaultHTTPClient()
	}
	return &geminiProvider{cfg: cfg, newClient: genai.NewClient, clients: make(map[string]*genai.Client)}
}

func (g *geminiProvider) Name() string { return ProviderGemini }

func (g *geminiProvider) client(ctx context.Context, apiKey string) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.clients[apiKey]; ok {
		return c, nil
	}
	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.cfg.HTTPClient,
	}
	if g.cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: g.cfg.BaseURL}
	}
	c, err := g.newClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	g.clients[apiKey] = c
	return c, nil
}

func (g *geminiProvider) Complete(ctx context.Context, apiKey string, p Prompt) (string, error) {
	client, err := g.client(ctx, apiKey)
	if err != nil {
		return "", &providerError{provider: ProviderGemini, message: err.Error()}
	}

	resp, err := client.Models.GenerateContent(ctx, g.cfg.Model, genai.Text(p.User), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(p.System, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.7),
		TopK:              genai.Ptr[float32](40),
		TopP:              genai.Ptr[float32](0.95),
		MaxOutputTokens:   1024,
		SafetySettings:    geminiSafety(),
	})
	if err != nil {
		return "", geminiError(err)
	}
	text := resp.Text()
	if text == "" {
		return "", invalidFormat(ProviderGemini)
	}
	return text, nil
}

func geminiSafety() []*genai.SafetySetting {
	cats := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}
	out := make([]*genai.SafetySetting, len(cats))
	for i, c := range cats {
		out[i] = &genai.SafetySetting{Category: c, Threshold: genai.HarmBlockThresholdBlockNone}
	}
	return out
}

func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return &providerError{provider: ProviderGemini, status: apiErr.Code, message: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr.Message != "" {
		return &providerError{provider: ProviderGemini, status: apiErrPtr.Code, message: apiErrPtr.Message}
	}
	return &providerError{provider: ProviderGemini, message: err.Error()}
}
