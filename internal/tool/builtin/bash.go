package builtin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"quill/internal/tool"
)

// BashTool runs shell commands in the session's working directory.
type BashTool struct {
	workdir string
}

// NewBashTool creates a bash tool rooted at workdir. An empty workdir
// inherits the process working directory.
func NewBashTool(workdir string) *BashTool {
	return &BashTool{workdir: workdir}
}

func (t *BashTool) Name() string {
	return "bash"
}

func (t *BashTool) Description() string {
	return "Execute a bash command"
}

func (t *BashTool) BestPractices() string {
	return `**Bash Tool**:
1. Prefer the read, grep and glob tools for inspecting files
2. Quote paths that may contain spaces`
}

func (t *BashTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "The bash command to execute",
			},
			"timeout": map[string]any{
				"type":        "number",
				"description": "Timeout in milliseconds (default: 120000)",
			},
		},
		"required": []string{"command"},
	}
}

func (t *BashTool) Execute(ctx context.Context, params json.RawMessage) (*tool.Result, error) {
	var p struct {
		Command string `json:"command"`
		Timeout int    `json:"timeout"`
	}

	if err := json.Unmarshal(params, &p); err != nil {
		return &tool.Result{
			Success: false,
			Error:   fmt.Sprintf("invalid parameters: %v", err),
		}, nil
	}

	if p.Command == "" {
		return &tool.Result{
			Success: false,
			Error:   "command cannot be empty",
		}, nil
	}

	// Default timeout: 2 minutes
	timeout := 120000
	if p.Timeout > 0 {
		timeout = p.Timeout
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Millisecond)
	defer cancel()

	cmd := exec.CommandContext(ctx, "bash", "-c", p.Command)
	cmd.Dir = t.workdir
	output, err := cmd.CombinedOutput()

	if err != nil {
		// A killed process reports an opaque signal error; name the
		// timeout so the model can retry with a larger one.
		msg := err.Error()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			msg = fmt.Sprintf("command timed out after %dms", timeout)
		}
		return &tool.Result{
			Success: false,
			Output:  string(output),
			Error:   msg,
		}, nil
	}

	return &tool.Result{
		Success: true,
		Output:  string(output),
	}, nil
}
