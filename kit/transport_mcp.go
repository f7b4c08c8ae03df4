package kit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/proseai/idgen"
)

// MCPDecoder turns the arguments of a tool call into the endpoint request.
type MCPDecoder func(args json.RawMessage) (any, error)

// ToolFailure is implemented by responses that report a failed operation
// in their body, such as a rewrite the provider refused. The body is still
// sent as JSON but the tool result is flagged IsError, so a host model
// never pastes an error reply as rewritten text.
type ToolFailure interface {
	ToolFailed() bool
}

// mcpTraceID tags each tool call the way shield.TraceID tags HTTP requests.
var mcpTraceID = idgen.Prefixed("mcp_", idgen.Default)

// RegisterMCPTool exposes endpoint as an MCP tool. Each call runs with
// transport "mcp" and a fresh trace id. Decode and endpoint errors become
// tool errors, not protocol errors.
func RegisterMCPTool(srv *mcp.Server, tool *mcp.Tool, endpoint Endpoint, decode MCPDecoder) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := json.RawMessage(req.Params.Arguments)
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		in, err := decode(args)
		if err != nil {
			return toolError(fmt.Errorf("invalid arguments: %w", err)), nil
		}

		ctx = WithTraceID(WithTransport(ctx, "mcp"), mcpTraceID())
		resp, err := endpoint(ctx, in)
		if err != nil {
			return toolError(err), nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			return toolError(fmt.Errorf("marshal: %w", err)), nil
		}
		failed := false
		if f, ok := resp.(ToolFailure); ok {
			failed = f.ToolFailed()
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
			IsError: failed,
		}, nil
	})
}

func toolError(err error) *mcp.CallToolResult {
	var res mcp.CallToolResult
	res.SetError(err)
	return &res
}
