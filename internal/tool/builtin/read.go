package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"quill/internal/tool"
)

type ReadTool struct{}

func NewReadTool() *ReadTool {
	return &ReadTool{}
}

func (t *ReadTool) Name() string {
	return "read"
}

func (t *ReadTool) Description() string {
	return "Read contents of a file, optionally a line range"
}

func (t *ReadTool) BestPractices() string {
	return `**Read Tool**:
1. Read a file before editing it
2. Use offset and limit for large files instead of reading everything`
}

func (t *ReadTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_path": map[string]any{
				"type":        "string",
				"description": "Path to the file to read",
			},
			"offset": map[string]any{
				"type":        "number",
				"description": "Line number to start reading from (1-based, default: 1)",
			},
			"limit": map[string]any{
				"type":        "number",
				"description": "Maximum number of lines to read (default: all)",
			},
		},
		"required": []string{"file_path"},
	}
}

func (t *ReadTool) Execute(ctx context.Context, params json.RawMessage) (*tool.Result, error) {
	var p struct {
		FilePath string `json:"file_path"`
		Offset   int    `json:"offset"`
		Limit    int    `json:"limit"`
	}

	if err := json.Unmarshal(params, &p); err != nil {
		return &tool.Result{
			Success: false,
			Error:   fmt.Sprintf("invalid parameters: %v", err),
		}, nil
	}

	content, err := os.ReadFile(p.FilePath)
	if err != nil {
		return &tool.Result{
			Success: false,
			Error:   fmt.Sprintf("failed to read file: %v", err),
		}, nil
	}

	if p.Offset <= 0 && p.Limit <= 0 {
		return &tool.Result{
			Success: true,
			Output:  string(content),
		}, nil
	}

	lines := strings.Split(string(content), "\n")

	start := 0
	if p.Offset > 0 {
		start = p.Offset - 1
	}
	if start >= len(lines) {
		return &tool.Result{
			Success: false,
			Error:   fmt.Sprintf("offset %d is beyond end of file (%d lines)", p.Offset, len(lines)),
		}, nil
	}

	end := len(lines)
	if p.Limit > 0 && start+p.Limit < end {
		end = start + p.Limit
	}

	return &tool.Result{
		Success: true,
		Output:  strings.Join(lines[start:end], "\n"),
		Data: map[string]any{
			"total_lines": len(lines),
			"start_line":  start + 1,
			"end_line":    end,
		},
	}, nil
}
