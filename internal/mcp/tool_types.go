package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/chatforge/chatforge/internal/tools"
)

// ErrToolNotFound indicates the server does not expose the requested tool.
var ErrToolNotFound = errors.New("tool not found")

// ToolDescriptor is the MCP tools/list item shape.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"inputSchema"`
}

// ToolResult is the text outcome of a tools/call.
type ToolResult struct {
	Text    string
	IsError bool
}

// Session is a live connection to one MCP server.
type Session interface {
	ListTools(ctx context.Context) ([]ToolDescriptor, error)
	CallTool(ctx context.Context, name string, arguments map[string]any) (ToolResult, error)
	Close() error
}

// Connector opens sessions for tool bindings.
type Connector interface {
	Connect(ctx context.Context, binding tools.Binding) (Session, error)
}

func convertSDKTools(items []*sdkmcp.Tool) []ToolDescriptor {
	out := make([]ToolDescriptor, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		name := strings.TrimSpace(item.Name)
		if name == "" {
			continue
		}
		out = append(out, ToolDescriptor{
			Name:        name,
			Description: strings.TrimSpace(item.Description),
			InputSchema: normalizeInputSchema(item.InputSchema),
		})
	}
	return out
}

func normalizeInputSchema(raw any) map[string]any {
	if schema, ok := raw.(map[string]any); ok && schema != nil {
		return schema
	}
	if raw != nil {
		if payload, err := json.Marshal(raw); err == nil {
			var schema map[string]any
			if err := json.Unmarshal(payload, &schema); err == nil && schema != nil {
				return schema
			}
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

// resultText joins the text parts of a call result. Non-text parts are
// rendered as JSON so the model still sees them.
func resultText(result *sdkmcp.CallToolResult) ToolResult {
	if result == nil {
		return ToolResult{Text: "ok"}
	}
	parts := make([]string, 0, len(result.Content))
	for _, c := range result.Content {
		switch v := c.(type) {
		case *sdkmcp.TextContent:
			parts = append(parts, v.Text)
		default:
			if payload, err := json.Marshal(v); err == nil {
				parts = append(parts, string(payload))
			}
		}
	}
	if len(parts) == 0 && result.StructuredContent != nil {
		if payload, err := json.Marshal(result.StructuredContent); err == nil {
			parts = append(parts, string(payload))
		}
	}
	text := strings.TrimSpace(strings.Join(parts, "\n"))
	if text == "" {
		if result.IsError {
			text = "tool execution failed"
		} else {
			text = "ok"
		}
	}
	return ToolResult{Text: text, IsError: result.IsError}
}
