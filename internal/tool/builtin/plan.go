package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"quill/internal/tool"
)

// Tool names the agent intercepts instead of dispatching normally. The
// agent pauses the turn for plan review or switches its own mode; the
// Execute methods below only run as a fallback when no interception
// happens (for example in a sub-agent without a plan gate).
const (
	SubmitPlanToolName    = "submit_plan"
	EnterPlanModeToolName = "enter_plan_mode"
)

// SubmitPlanTool lets the model present a plan for user review
type SubmitPlanTool struct{}

func NewSubmitPlanTool() *SubmitPlanTool {
	return &SubmitPlanTool{}
}

func (t *SubmitPlanTool) Name() string {
	return SubmitPlanToolName
}

func (t *SubmitPlanTool) Description() string {
	return `Present your implementation plan for review before making changes.

Use this in plan mode once you have explored enough to write a concrete
plan. The plan should be a short numbered list of the steps you will take.`
}

func (t *SubmitPlanTool) BestPractices() string {
	return ""
}

func (t *SubmitPlanTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"plan": map[string]any{
				"type":        "string",
				"description": "The plan as markdown, typically a numbered list of steps",
			},
		},
		"required": []string{"plan"},
	}
}

func (t *SubmitPlanTool) Execute(ctx context.Context, params json.RawMessage) (*tool.Result, error) {
	var p struct {
		Plan string `json:"plan"`
	}

	if err := json.Unmarshal(params, &p); err != nil {
		return &tool.Result{
			Success: false,
			Error:   fmt.Sprintf("invalid parameters: %v", err),
		}, nil
	}

	if p.Plan == "" {
		return &tool.Result{
			Success: false,
			Error:   "plan cannot be empty",
		}, nil
	}

	return &tool.Result{
		Success: true,
		Output:  "Plan recorded.",
		Data: map[string]any{
			"plan": p.Plan,
		},
	}, nil
}

// EnterPlanModeTool lets the model ask to switch into plan mode before
// starting a larger piece of work
type EnterPlanModeTool struct{}

func NewEnterPlanModeTool() *EnterPlanModeTool {
	return &EnterPlanModeTool{}
}

func (t *EnterPlanModeTool) Name() string {
	return EnterPlanModeToolName
}

func (t *EnterPlanModeTool) Description() string {
	return `Switch into plan mode to design an approach before making changes.

Use this when the task is large or ambiguous enough that the user should
approve a plan first. In plan mode only read-only tools are available.`
}

func (t *EnterPlanModeTool) BestPractices() string {
	return ""
}

func (t *EnterPlanModeTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"reason": map[string]any{
				"type":        "string",
				"description": "Why planning first helps (optional)",
			},
		},
	}
}

func (t *EnterPlanModeTool) Execute(ctx context.Context, params json.RawMessage) (*tool.Result, error) {
	return &tool.Result{
		Success: true,
		Output:  "Entered plan mode. Explore with read-only tools, then submit a plan with submit_plan.",
	}, nil
}
