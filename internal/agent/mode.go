package agent

import (
	"fmt"
	"strings"
)

// AgentMode controls how tool calls are gated during a turn.
type AgentMode string

const (
	// ModeInteractive asks the approval gate before each tool call whose
	// permission class is "ask".
	ModeInteractive AgentMode = "interactive"
	// ModeAutoApprove runs every permitted tool call without asking.
	ModeAutoApprove AgentMode = "auto-approve"
	// ModePlan restricts the agent to read-only tools until a plan is
	// submitted and approved.
	ModePlan AgentMode = "plan"
)

// Valid reports whether m is a known mode.
func (m AgentMode) Valid() bool {
	switch m {
	case ModeInteractive, ModeAutoApprove, ModePlan:
		return true
	}
	return false
}

// ParseMode converts user input (config values, /mode arguments) to a mode.
func ParseMode(s string) (AgentMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "interactive", "default", "":
		return ModeInteractive, nil
	case "auto-approve", "auto", "yolo":
		return ModeAutoApprove, nil
	case "plan":
		return ModePlan, nil
	}
	return "", fmt.Errorf("unknown mode %q (interactive, auto-approve, plan)", s)
}

// NextMode cycles interactive -> auto-approve -> plan -> interactive. Used
// by the /mode command without an argument.
func NextMode(m AgentMode) AgentMode {
	switch m {
	case ModeInteractive:
		return ModeAutoApprove
	case ModeAutoApprove:
		return ModePlan
	default:
		return ModeInteractive
	}
}

const basePrompt = `You are a coding assistant working in the user's repository.

You converse with the user and use tools to read, search, and change files
and to run commands. Keep responses concise and grounded in what the tools
actually returned.

Best practices:
1. Read files before editing them
2. Prefer small, targeted edits over full-file rewrites
3. Use glob and grep to locate code instead of guessing paths
4. Report errors honestly instead of working around them silently`

const interactiveBlock = `The user approves tool calls one by one. If a call is denied, do not retry
it; ask the user how to proceed.`

const autoApproveBlock = `Tool calls run without per-call confirmation. Be conservative: make the
smallest change that satisfies the request and double-check destructive
commands before running them.`

const planBlock = `You are in plan mode. Only read-only tools are available; do not attempt to
edit files or run commands that change state.

1. Explore the codebase until you understand the task
2. Write a concrete plan as a short numbered list
3. Submit it with the submit_plan tool and wait for the user's review
4. If the plan is rejected, revise it using the feedback and submit again`

// RenderSystemPrompt builds the system message content for a mode. Pure:
// same inputs produce the same text, so the mode setter can decide whether
// index 0 actually needs replacing.
func RenderSystemPrompt(mode AgentMode, workdir, bestPractices string) string {
	var sb strings.Builder
	sb.WriteString(basePrompt)

	if workdir != "" {
		sb.WriteString(fmt.Sprintf("\n\nWorking directory: %s", workdir))
	}

	sb.WriteString("\n\n")
	switch mode {
	case ModeAutoApprove:
		sb.WriteString(autoApproveBlock)
	case ModePlan:
		sb.WriteString(planBlock)
	default:
		sb.WriteString(interactiveBlock)
	}

	if bestPractices != "" {
		sb.WriteString("\n\n")
		sb.WriteString(bestPractices)
	}

	return sb.String()
}
