package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"quill/internal/logger"
	"quill/internal/tool"
)

// nestingDepthKey is the context key for tracking nesting depth
type contextKey string

const nestingDepthKey contextKey = "nesting_depth"

// MaxNestingDepth is the maximum allowed depth for sub-agent calls
const MaxNestingDepth = 3

// SubAgentReport is what a finished sub-agent hands back to the caller.
type SubAgentReport struct {
	Result    string
	Turns     int
	ToolCalls int
}

// SubAgentRunner spawns and runs a one-shot sub-agent of the given type.
type SubAgentRunner interface {
	RunTask(ctx context.Context, agentType, task string, maxTurns int) (*SubAgentReport, error)
}

// TaskTool launches specialized sub-agents
type TaskTool struct {
	runner SubAgentRunner
	logger *logger.Logger
}

// NewTaskTool creates a new Task tool
func NewTaskTool(runner SubAgentRunner, log *logger.Logger) *TaskTool {
	if log == nil {
		log = logger.NewLogger(nil, logger.LevelInfo)
	}
	return &TaskTool{
		runner: runner,
		logger: log,
	}
}

func (t *TaskTool) Name() string {
	return "task"
}

func (t *TaskTool) Description() string {
	return "Launch a specialized sub-agent to handle a specific task"
}

func (t *TaskTool) BestPractices() string {
	return `**Task Tool**:
1. Use explore agents for open-ended searching, plan agents for design, execute agents for contained changes
2. Give the sub-agent everything it needs in the task text; it does not see your conversation`
}

func (t *TaskTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"agent_type": map[string]any{
				"type":        "string",
				"description": "Type of agent to spawn (explore, plan, execute)",
				"enum":        []string{"explore", "plan", "execute"},
			},
			"task": map[string]any{
				"type":        "string",
				"description": "Task description for the sub-agent",
			},
			"description": map[string]any{
				"type":        "string",
				"description": "Short description of what this sub-agent will do (3-5 words)",
			},
			"max_turns": map[string]any{
				"type":        "number",
				"description": "Maximum turns for sub-agent (optional, defaults to agent type default)",
			},
		},
		"required": []string{"agent_type", "task", "description"},
	}
}

func (t *TaskTool) Execute(ctx context.Context, params json.RawMessage) (*tool.Result, error) {
	var p struct {
		AgentType   string `json:"agent_type"`
		Task        string `json:"task"`
		Description string `json:"description"`
		MaxTurns    int    `json:"max_turns"`
	}

	if err := json.Unmarshal(params, &p); err != nil {
		return &tool.Result{
			Success: false,
			Error:   fmt.Sprintf("invalid parameters: %v", err),
		}, nil
	}

	if t.runner == nil {
		return &tool.Result{
			Success: false,
			Error:   "sub-agents are not available",
		}, nil
	}

	depth := getNestingDepth(ctx)
	if depth >= MaxNestingDepth {
		return &tool.Result{
			Success: false,
			Error:   fmt.Sprintf("maximum nesting depth (%d) exceeded", MaxNestingDepth),
		}, nil
	}

	t.logger.Info("Launching %s sub-agent: %s", p.AgentType, p.Description)

	subCtx := context.WithValue(ctx, nestingDepthKey, depth+1)

	report, err := t.runner.RunTask(subCtx, p.AgentType, p.Task, p.MaxTurns)
	if err != nil {
		return &tool.Result{
			Success: false,
			Error:   fmt.Sprintf("sub-agent failed: %v", err),
		}, nil
	}

	t.logger.Info("Sub-agent completed: %s", p.Description)

	resultText := fmt.Sprintf("[%s agent: %s]\n\n%s",
		p.AgentType, p.Description, report.Result)

	return &tool.Result{
		Success: true,
		Output:  resultText,
		Data: map[string]any{
			"agent_type": p.AgentType,
			"tool_calls": report.ToolCalls,
			"turns":      report.Turns,
		},
	}, nil
}

// getNestingDepth retrieves the current nesting depth from context
func getNestingDepth(ctx context.Context) int {
	if depth, ok := ctx.Value(nestingDepthKey).(int); ok {
		return depth
	}
	return 0
}
