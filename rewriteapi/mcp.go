package rewriteapi

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/proseai/kit"
	"github.com/hazyhaar/proseai/rewrite"
)

// RegisterMCP registers rewrite_text and list_tones on srv. A rewrite that
// fails validation or at the provider returns its Response body flagged as
// a tool error.
func RegisterMCP(srv *mcp.Server, rw Rewriter, opts ...EndpointOption) {
	registerRewriteTool(srv, rw, opts)
	registerTonesTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func registerRewriteTool(srv *mcp.Server, rw Rewriter, opts []EndpointOption) {
	tool := &mcp.Tool{
		Name:        "rewrite_text",
		Description: "Rewrite English text in one of six tones (professional, friendly, casual, comedy, polite, confident).",
		InputSchema: inputSchema(map[string]any{
			"text":     map[string]any{"type": "string", "description": "Text to rewrite (max 5000 characters)"},
			"tone":     map[string]any{"type": "string", "enum": rewrite.ToneIDs()},
			"provider": map[string]any{"type": "string", "enum": []string{"gemini", "openai", "claude"}},
		}, []string{"text", "tone"}),
	}

	decode := func(args json.RawMessage) (any, error) {
		var r Request
		if err := json.Unmarshal(args, &r); err != nil {
			return nil, err
		}
		return &r, nil
	}

	kit.RegisterMCPTool(srv, tool, Endpoint(rw, opts...), decode)
}

func registerTonesTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "list_tones",
		Description: "List the available rewrite tones with label, description, icon and color.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		return map[string]any{"tones": rewrite.Tones()}, nil
	}

	decode := func(json.RawMessage) (any, error) { return nil, nil }

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
