package approval

import (
	"context"
	"encoding/json"
	"fmt"
)

// Decision is the outcome of an approval request.
type Decision string

const (
	// AllowOnce permits this call only.
	AllowOnce Decision = "allow-once"
	// AllowAlways permits this call and grants the tool standing permission.
	AllowAlways Decision = "allow-always"
	// RejectOnce skips this call.
	RejectOnce Decision = "reject-once"
	// RejectAlways skips this call and blocks the tool from asking again.
	RejectAlways Decision = "reject-always"
)

// Allowed reports whether the decision permits execution.
func (d Decision) Allowed() bool {
	return d == AllowOnce || d == AllowAlways
}

// Persistent reports whether the decision changes the tool's standing policy.
func (d Decision) Persistent() bool {
	return d == AllowAlways || d == RejectAlways
}

// Request describes one proposed tool call awaiting a decision.
type Request struct {
	ToolName string
	Args     json.RawMessage
	CallID   string
}

// Gate decides whether a proposed tool call may run. Request blocks until
// the user (or policy) answers, or ctx is cancelled.
type Gate interface {
	Request(ctx context.Context, req *Request) (Decision, string, error)
}

// GateFunc adapts a function to the Gate interface.
type GateFunc func(ctx context.Context, req *Request) (Decision, string, error)

func (f GateFunc) Request(ctx context.Context, req *Request) (Decision, string, error) {
	return f(ctx, req)
}

// AutoGate approves every request without asking.
type AutoGate struct{}

func (AutoGate) Request(ctx context.Context, req *Request) (Decision, string, error) {
	return AllowOnce, "", nil
}

// PlanDecision is the outcome of a plan review.
type PlanDecision string

const (
	// PlanApproveAuto accepts the plan and lets the agent execute it
	// without further approval prompts.
	PlanApproveAuto PlanDecision = "approve-auto"
	// PlanApproveManual accepts the plan but keeps per-call approval on.
	PlanApproveManual PlanDecision = "approve-manual"
	// PlanRevise sends the plan back with feedback.
	PlanRevise PlanDecision = "revise"
)

// PlanGate reviews a plan the agent proposes before leaving plan mode.
type PlanGate interface {
	Review(ctx context.Context, plan string) (PlanDecision, string, error)
}

// PlanGateFunc adapts a function to the PlanGate interface.
type PlanGateFunc func(ctx context.Context, plan string) (PlanDecision, string, error)

func (f PlanGateFunc) Review(ctx context.Context, plan string) (PlanDecision, string, error) {
	return f(ctx, plan)
}

// DeclineReason frames a user rejection as tool output. The model sees this
// in place of a real result and should ask for guidance rather than retry.
func DeclineReason(feedback string) string {
	if feedback == "" {
		feedback = "User denied tool execution"
	}
	return fmt.Sprintf("Tool execution was DENIED by user. Reason: %s. Please ask the user for guidance on how to proceed.", feedback)
}

// InterruptReason frames calls skipped because the user interrupted the
// turn. Distinct from a decline so the model does not ask for permission
// again on resume.
const InterruptReason = "Tool execution was cancelled by user interrupt. Do not retry; wait for the user's next instruction."

// PlanModeReason frames a call blocked because plan mode only permits
// read-only tools.
func PlanModeReason(toolName string) string {
	return fmt.Sprintf("Tool %s was not executed: plan mode permits read-only tools only. Continue exploring, then present your plan with submit_plan.", toolName)
}

// DisabledReason frames a call to a tool whose permission class is never.
func DisabledReason(toolName string) string {
	return fmt.Sprintf("Tool %s is disabled by policy and cannot be executed.", toolName)
}
