package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"quill/internal/tool"
)

type EditTool struct{}

func NewEditTool() *EditTool {
	return &EditTool{}
}

func (t *EditTool) Name() string {
	return "edit"
}

func (t *EditTool) Description() string {
	return "Replace an exact string in a file"
}

func (t *EditTool) BestPractices() string {
	return `**Edit Tool**:
1. Read the file first so old_string matches exactly, including whitespace
2. old_string must be unique in the file unless replace_all is set
3. Include surrounding lines in old_string to make it unique`
}

func (t *EditTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_path": map[string]any{
				"type":        "string",
				"description": "Path to the file to edit",
			},
			"old_string": map[string]any{
				"type":        "string",
				"description": "Exact text to replace",
			},
			"new_string": map[string]any{
				"type":        "string",
				"description": "Replacement text",
			},
			"replace_all": map[string]any{
				"type":        "boolean",
				"description": "Replace every occurrence (default: false)",
			},
		},
		"required": []string{"file_path", "old_string", "new_string"},
	}
}

func (t *EditTool) Execute(ctx context.Context, params json.RawMessage) (*tool.Result, error) {
	var p struct {
		FilePath   string `json:"file_path"`
		OldString  string `json:"old_string"`
		NewString  string `json:"new_string"`
		ReplaceAll bool   `json:"replace_all"`
	}

	if err := json.Unmarshal(params, &p); err != nil {
		return &tool.Result{
			Success: false,
			Error:   fmt.Sprintf("invalid parameters: %v", err),
		}, nil
	}

	if p.OldString == "" {
		return &tool.Result{
			Success: false,
			Error:   "old_string cannot be empty (use the write tool to create files)",
		}, nil
	}
	if p.OldString == p.NewString {
		return &tool.Result{
			Success: false,
			Error:   "old_string and new_string are identical",
		}, nil
	}

	content, err := os.ReadFile(p.FilePath)
	if err != nil {
		return &tool.Result{
			Success: false,
			Error:   fmt.Sprintf("failed to read file: %v", err),
		}, nil
	}

	text := string(content)
	count := strings.Count(text, p.OldString)

	if count == 0 {
		return &tool.Result{
			Success: false,
			Error:   fmt.Sprintf("old_string not found in %s", p.FilePath),
		}, nil
	}
	if count > 1 && !p.ReplaceAll {
		return &tool.Result{
			Success: false,
			Error:   fmt.Sprintf("old_string appears %d times in %s; make it unique or set replace_all", count, p.FilePath),
		}, nil
	}

	replaced := count
	if p.ReplaceAll {
		text = strings.ReplaceAll(text, p.OldString, p.NewString)
	} else {
		text = strings.Replace(text, p.OldString, p.NewString, 1)
		replaced = 1
	}

	// Preserve the file's permissions
	mode := fs.FileMode(0644)
	if info, err := os.Stat(p.FilePath); err == nil {
		mode = info.Mode()
	}

	if err := os.WriteFile(p.FilePath, []byte(text), mode); err != nil {
		return &tool.Result{
			Success: false,
			Error:   fmt.Sprintf("failed to write file: %v", err),
		}, nil
	}

	return &tool.Result{
		Success: true,
		Output:  fmt.Sprintf("Replaced %d occurrence(s) in %s", replaced, p.FilePath),
		Data: map[string]any{
			"replacements": replaced,
		},
	}, nil
}
