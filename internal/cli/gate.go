package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"quill/internal/approval"
)

// TerminalGate asks for tool approval on the terminal: y runs the call
// once, a grants the tool standing permission, anything else rejects
// with optional feedback for the model.
type TerminalGate struct {
	input  *Input
	writer io.Writer
}

// NewTerminalGate creates a gate that prompts on w and reads answers
// from input.
func NewTerminalGate(input *Input, w io.Writer) *TerminalGate {
	return &TerminalGate{input: input, writer: w}
}

func (g *TerminalGate) Request(ctx context.Context, req *approval.Request) (approval.Decision, string, error) {
	fmt.Fprintf(g.writer, "\n\033[33m⚠️  Tool '%s' requires approval:\033[0m\n", req.ToolName)
	if args := formatArgs(req.Args); args != "" {
		fmt.Fprintf(g.writer, "    %s\n", args)
	}
	fmt.Fprintf(g.writer, "\nAllow? [y]es / [a]lways / [N]o: ")

	line, err := g.input.ReadLine(ctx)
	if err != nil {
		return approval.RejectOnce, "", err
	}

	switch strings.TrimSpace(strings.ToLower(line)) {
	case "y", "yes":
		fmt.Fprintf(g.writer, "\033[32m✓ Allowed\033[0m\n\n")
		return approval.AllowOnce, "", nil
	case "a", "always":
		fmt.Fprintf(g.writer, "\033[32m✓ Allowed for the rest of the session\033[0m\n\n")
		return approval.AllowAlways, "", nil
	default:
		fmt.Fprintf(g.writer, "\033[31m✗ Denied\033[0m\n")
		fmt.Fprintf(g.writer, "Feedback for the model (enter to skip): ")
		feedback, err := g.input.ReadLine(ctx)
		if err != nil {
			return approval.RejectOnce, "", err
		}
		fmt.Fprintln(g.writer)
		return approval.RejectOnce, strings.TrimSpace(feedback), nil
	}
}

// TerminalPlanGate shows a submitted plan and asks how to proceed:
// approve with per-call approval, approve and auto-run, or send it back
// with feedback.
type TerminalPlanGate struct {
	input    *Input
	writer   io.Writer
	renderer *Renderer
}

// NewTerminalPlanGate creates a plan gate that renders the plan through
// renderer and prompts on w.
func NewTerminalPlanGate(input *Input, w io.Writer, renderer *Renderer) *TerminalPlanGate {
	return &TerminalPlanGate{input: input, writer: w, renderer: renderer}
}

func (g *TerminalPlanGate) Review(ctx context.Context, plan string) (approval.PlanDecision, string, error) {
	fmt.Fprintf(g.writer, "\n\033[36m━━━ Proposed plan ━━━\033[0m\n")
	if g.renderer != nil {
		fmt.Fprint(g.writer, g.renderer.Markdown(plan))
	} else {
		fmt.Fprintln(g.writer, plan)
	}
	fmt.Fprintf(g.writer, "\033[36m━━━━━━━━━━━━━━━━━━━━━\033[0m\n")
	fmt.Fprintf(g.writer, "Approve? [y]es, approve each step / [a]uto, run without approvals / [N]o, ask for changes: ")

	line, err := g.input.ReadLine(ctx)
	if err != nil {
		return approval.PlanRevise, "", err
	}

	switch strings.TrimSpace(strings.ToLower(line)) {
	case "y", "yes":
		fmt.Fprintf(g.writer, "\033[32m✓ Plan approved\033[0m\n\n")
		return approval.PlanApproveManual, "", nil
	case "a", "auto":
		fmt.Fprintf(g.writer, "\033[32m✓ Plan approved, auto-approving tool calls\033[0m\n\n")
		return approval.PlanApproveAuto, "", nil
	default:
		fmt.Fprintf(g.writer, "What should change? (enter to skip): ")
		feedback, err := g.input.ReadLine(ctx)
		if err != nil {
			return approval.PlanRevise, "", err
		}
		fmt.Fprintln(g.writer)
		return approval.PlanRevise, strings.TrimSpace(feedback), nil
	}
}

// formatArgs renders tool call arguments for an approval prompt, trimmed
// to a size that keeps the prompt readable.
func formatArgs(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" || s == "{}" {
		return ""
	}
	if r := []rune(s); len(r) > 400 {
		s = string(r[:400]) + "..."
	}
	return s
}
