package agent

import (
	"context"
	"fmt"

	"quill/internal/llm"
	"quill/internal/logger"
	"quill/internal/tool"
	"quill/internal/tool/builtin"
)

// AgentType defines the type of specialized sub-agent
type AgentType string

const (
	AgentTypeExplore AgentType = "explore"
	AgentTypePlan    AgentType = "plan"
	AgentTypeExecute AgentType = "execute"
)

// Factory builds one-shot sub-agents that share the parent's client and
// tool implementations but run with their own registry, prompt and budget.
// It backs the task tool.
type Factory struct {
	client   llm.Client
	registry *tool.Registry
	log      *logger.Logger
	workdir  string
	pricing  Pricing
}

func NewFactory(client llm.Client, registry *tool.Registry, log *logger.Logger, workdir string, pricing Pricing) *Factory {
	return &Factory{
		client:   client,
		registry: registry,
		log:      log,
		workdir:  workdir,
		pricing:  pricing,
	}
}

// CreateAgent creates a sub-agent of the specified type
func (f *Factory) CreateAgent(agentType AgentType) (*Agent, error) {
	switch agentType {
	case AgentTypeExplore:
		return f.createExploreAgent()
	case AgentTypePlan:
		return f.createPlanAgent()
	case AgentTypeExecute:
		return f.createExecuteAgent()
	default:
		return nil, fmt.Errorf("unknown agent type: %s", agentType)
	}
}

// filteredRegistry builds a registry holding only the named tools, carrying
// their policies over from the parent registry.
func (f *Factory) filteredRegistry(agentType AgentType, names []string) (*tool.Registry, error) {
	registry := tool.NewRegistry()
	for _, name := range names {
		capability, err := f.registry.Capability(name)
		if err != nil {
			return nil, fmt.Errorf("%s agent requires tool '%s' but it's not registered: %w", agentType, name, err)
		}
		if err := registry.RegisterWithPolicy(capability.Tool, capability.Permission, capability.ReadOnly); err != nil {
			return nil, fmt.Errorf("failed to register tool '%s' for %s agent: %w", name, agentType, err)
		}
	}
	return registry, nil
}

// subConfig is the shared shape of every sub-agent: auto-approved, not
// streaming, never compacting. Budgets and temperature vary per type.
func (f *Factory) subConfig(temperature float32, maxTurns int) Config {
	return Config{
		Mode:        ModeAutoApprove,
		Workdir:     f.workdir,
		Temperature: temperature,
		MaxTurns:    maxTurns,
		Pricing:     f.pricing,
		Gate:        nil,
		PlanGate:    nil,
	}
}

// createExploreAgent creates an exploration-focused agent with read-only tools
func (f *Factory) createExploreAgent() (*Agent, error) {
	registry, err := f.filteredRegistry(AgentTypeExplore, []string{"read", "glob", "grep", "bash"})
	if err != nil {
		return nil, err
	}

	sub := New(f.client, registry, f.log, f.subConfig(0.3, 15))
	sub.setTaskPrompt(explorePrompt)
	return sub, nil
}

// createPlanAgent creates a planning-focused agent with limited tools
func (f *Factory) createPlanAgent() (*Agent, error) {
	registry, err := f.filteredRegistry(AgentTypePlan, []string{"read", "glob", "grep"})
	if err != nil {
		return nil, err
	}

	sub := New(f.client, registry, f.log, f.subConfig(0.5, 10))
	sub.setTaskPrompt(planPrompt)
	return sub, nil
}

// createExecuteAgent creates an execution-focused agent with all tools
// except task, so sub-agents cannot multiply sideways.
func (f *Factory) createExecuteAgent() (*Agent, error) {
	names := make([]string, 0)
	for _, t := range f.registry.List() {
		if t.Name() == "task" {
			continue
		}
		names = append(names, t.Name())
	}

	registry, err := f.filteredRegistry(AgentTypeExecute, names)
	if err != nil {
		return nil, err
	}

	sub := New(f.client, registry, f.log, f.subConfig(0.5, 20))
	sub.setTaskPrompt(executePrompt)
	return sub, nil
}

// RunTask spawns a sub-agent, runs the task to completion, and reports what
// it produced. Budget stops are not errors here: the partial result is
// still worth returning to the parent conversation.
func (f *Factory) RunTask(ctx context.Context, agentType, task string, maxTurns int) (*builtin.SubAgentReport, error) {
	sub, err := f.CreateAgent(AgentType(agentType))
	if err != nil {
		return nil, err
	}
	if maxTurns > 0 {
		sub.config.MaxTurns = maxTurns
	}

	result, err := sub.Run(ctx, task)
	if err != nil {
		cle, ok := IsConversationLimit(err)
		if !ok {
			return nil, err
		}
		result = cle.Content
		if result == "" {
			result = "(sub-agent reached its turn limit without a final response)"
		}
	}

	stats := sub.Stats()
	return &builtin.SubAgentReport{
		Result:    result,
		Turns:     stats.Steps,
		ToolCalls: stats.ToolCalls,
	}, nil
}

const explorePrompt = `You are an expert codebase exploration agent.

Your goal is to efficiently explore and understand codebases. You have
access to read-only tools:
- read: Read file contents
- glob: Find files matching patterns
- grep: Search for content in files
- bash: Execute read-only commands (ls, find, cat, etc.)

Best practices:
1. Start with glob to find relevant files
2. Use grep to search for specific patterns
3. Read files to understand implementation details
4. Be thorough but efficient

Always provide clear summaries of your findings.`

const planPrompt = `You are an expert software architect and planning agent.

Your goal is to create detailed, actionable implementation plans. You can
read and search files to understand the current codebase state.

When creating plans:
1. Break down tasks into clear steps
2. Identify critical files to be modified
3. Consider architectural trade-offs
4. Anticipate potential issues

Output your plan in a structured markdown format with:
- **Overview**: High-level summary
- **Implementation Steps**: Numbered, actionable steps
- **Files to Modify**: List with descriptions
- **Testing Strategy**: How to verify the implementation`

const executePrompt = `You are an expert implementation agent focused on careful,
precise code changes.

Your goal is to implement changes accurately and safely with the tools you
have been given.

Best practices:
1. Always read files before modifying them
2. Make incremental changes and verify
3. Use glob/grep to understand context
4. Be careful with destructive operations

Focus on correctness and safety over speed.`
