package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"quill/internal/tool"
)

// maxGlobMatches caps the listing so a broad pattern cannot flood the
// conversation. The count in Data is still the full total.
const maxGlobMatches = 100

type GlobTool struct{}

func NewGlobTool() *GlobTool {
	return &GlobTool{}
}

func (t *GlobTool) Name() string {
	return "glob"
}

func (t *GlobTool) Description() string {
	return "Find files matching a glob pattern, including ** for recursive matches"
}

func (t *GlobTool) BestPractices() string {
	return ""
}

func (t *GlobTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"pattern": map[string]any{
				"type":        "string",
				"description": "Glob pattern (e.g., '*.go', 'src/**/*.ts')",
			},
			"path": map[string]any{
				"type":        "string",
				"description": "Base path to search (default: current directory)",
			},
		},
		"required": []string{"pattern"},
	}
}

func (t *GlobTool) Execute(ctx context.Context, params json.RawMessage) (*tool.Result, error) {
	var p struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
	}

	if err := json.Unmarshal(params, &p); err != nil {
		return &tool.Result{
			Success: false,
			Error:   fmt.Sprintf("invalid parameters: %v", err),
		}, nil
	}

	if p.Pattern == "" {
		return &tool.Result{
			Success: false,
			Error:   "pattern cannot be empty",
		}, nil
	}

	basePath := p.Path
	if basePath == "" {
		basePath = "."
	}

	fullPattern := filepath.Join(basePath, p.Pattern)

	matches, err := doublestar.FilepathGlob(fullPattern, doublestar.WithFilesOnly())
	if err != nil {
		return &tool.Result{
			Success: false,
			Error:   fmt.Sprintf("glob failed: %v", err),
		}, nil
	}

	if len(matches) == 0 {
		return &tool.Result{
			Success: true,
			Output:  "No files found",
			Data: map[string]any{
				"count": 0,
				"files": []string{},
			},
		}, nil
	}

	// Sort for deterministic output
	sort.Strings(matches)

	total := len(matches)
	listed := matches
	if total > maxGlobMatches {
		listed = matches[:maxGlobMatches]
	}

	output := strings.Join(listed, "\n")
	if total > len(listed) {
		output += fmt.Sprintf("\n... and %d more (narrow the pattern)", total-len(listed))
	}

	return &tool.Result{
		Success: true,
		Output:  output,
		Data: map[string]any{
			"count": total,
			"files": matches,
		},
	}, nil
}
