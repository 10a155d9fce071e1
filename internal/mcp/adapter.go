package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"quill/internal/tool"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolAdapter presents one MCP server tool through the registry's Tool
// interface. Names are prefixed with the server name so tools from
// different servers cannot collide.
type ToolAdapter struct {
	client  *Client
	mcpTool *mcp.Tool
	name    string
}

func NewToolAdapter(client *Client, mcpTool *mcp.Tool) *ToolAdapter {
	return &ToolAdapter{
		client:  client,
		mcpTool: mcpTool,
		name:    fmt.Sprintf("%s_%s", client.Name(), mcpTool.Name),
	}
}

func (a *ToolAdapter) Name() string {
	return a.name
}

// Description keeps the server's own text and tags its origin, so the
// model can tell external tools from builtins.
func (a *ToolAdapter) Description() string {
	desc := a.mcpTool.Description
	if desc == "" {
		desc = fmt.Sprintf("Tool provided by the %s MCP server", a.client.Name())
	}
	return fmt.Sprintf("%s\n\n[MCP Server: %s]", desc, a.client.Name())
}

func (a *ToolAdapter) BestPractices() string {
	return ""
}

// Parameters converts the server's input schema to the registry's map
// form. The SDK declares the schema as `any`, so the conversion goes
// through JSON; servers with no schema or an unconvertible one get an
// empty object schema.
func (a *ToolAdapter) Parameters() map[string]any {
	if a.mcpTool.InputSchema == nil {
		return emptyObjectSchema()
	}

	if schema, ok := a.mcpTool.InputSchema.(map[string]any); ok {
		return schema
	}

	raw, err := json.Marshal(a.mcpTool.InputSchema)
	if err != nil {
		return emptyObjectSchema()
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return emptyObjectSchema()
	}
	return schema
}

func emptyObjectSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func (a *ToolAdapter) Execute(ctx context.Context, params json.RawMessage) (*tool.Result, error) {
	var args map[string]any
	if err := json.Unmarshal(params, &args); err != nil {
		return &tool.Result{
			Success: false,
			Error:   fmt.Sprintf("invalid parameters: %v", err),
		}, nil
	}

	result, err := a.client.CallTool(ctx, a.mcpTool.Name, args)
	if err != nil {
		return &tool.Result{
			Success: false,
			Error:   fmt.Sprintf("MCP tool call failed: %v", err),
		}, nil
	}

	if result.IsError {
		msg := contentText(result.Content)
		if msg == "" {
			msg = "MCP tool returned an error"
		}
		return &tool.Result{
			Success: false,
			Error:   msg,
		}, nil
	}

	return &tool.Result{
		Success: true,
		Output:  contentText(result.Content),
		Data: map[string]any{
			"mcp_server": a.client.Name(),
			"mcp_tool":   a.mcpTool.Name,
		},
	}, nil
}

// contentText flattens an MCP content list to text. Non-text content is
// named rather than dropped so the model knows something was there.
func contentText(content []mcp.Content) string {
	var parts []string
	for _, item := range content {
		switch c := item.(type) {
		case *mcp.TextContent:
			parts = append(parts, c.Text)
		case *mcp.ImageContent:
			parts = append(parts, fmt.Sprintf("[Image: %s]", c.MIMEType))
		case *mcp.AudioContent:
			parts = append(parts, fmt.Sprintf("[Audio: %s]", c.MIMEType))
		default:
			raw, err := json.Marshal(item)
			if err != nil {
				parts = append(parts, fmt.Sprintf("[Unknown content type: %T]", item))
				continue
			}
			parts = append(parts, string(raw))
		}
	}
	return strings.Join(parts, "\n")
}
