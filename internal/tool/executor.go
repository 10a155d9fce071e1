package tool

import (
	"context"
	"fmt"
	"time"

	"quill/internal/llm"
)

// Executor runs tool calls one at a time. Calls are executed strictly in
// the order the model emitted them so that results line up with requests.
type Executor struct {
	registry *Registry
}

func NewExecutor(registry *Registry) *Executor {
	return &Executor{
		registry: registry,
	}
}

// EmptyOutputPlaceholder is returned when a tool produces no output.
// This ensures LLM APIs (which require non-empty content) don't fail with 400 errors.
const EmptyOutputPlaceholder = "(Tool executed successfully with no output)"

// ExecuteOne runs a single tool call and times it. Failures never surface
// as Go errors; a missing tool or an execution error becomes a failed
// Result so the conversation can continue with the model seeing it.
func (e *Executor) ExecuteOne(ctx context.Context, tc *llm.ToolCall) *CallResult {
	startTime := time.Now()

	t, err := e.registry.Get(tc.Function.Name)
	if err != nil {
		return &CallResult{
			ToolName:  tc.Function.Name,
			CallID:    tc.ID,
			Params:    []byte(tc.Function.Arguments),
			Result:    &Result{Success: false, Error: err.Error()},
			StartTime: startTime,
			EndTime:   time.Now(),
		}
	}

	result, err := t.Execute(ctx, []byte(tc.Function.Arguments))
	if err != nil {
		return &CallResult{
			ToolName:  tc.Function.Name,
			CallID:    tc.ID,
			Params:    []byte(tc.Function.Arguments),
			Result:    &Result{Success: false, Error: err.Error()},
			StartTime: startTime,
			EndTime:   time.Now(),
		}
	}

	// Ensure non-empty output for LLM APIs that require non-empty content
	if result.Output == "" {
		result.Output = EmptyOutputPlaceholder
	}

	return &CallResult{
		ToolName:  tc.Function.Name,
		CallID:    tc.ID,
		Params:    []byte(tc.Function.Arguments),
		Result:    result,
		StartTime: startTime,
		EndTime:   time.Now(),
	}
}

// Skip builds the result for a call that was never run. The reason text is
// what the model sees in place of tool output.
func Skip(tc *llm.ToolCall, reason string) *CallResult {
	now := time.Now()
	return &CallResult{
		ToolName:   tc.Function.Name,
		CallID:     tc.ID,
		Params:     []byte(tc.Function.Arguments),
		Result:     &Result{Success: false, Output: reason, Error: reason},
		Skipped:    true,
		SkipReason: reason,
		StartTime:  now,
		EndTime:    now,
	}
}

// MessageContent renders the result as the content of the tool message
// appended to history. There is exactly one such message per call.
func (r *CallResult) MessageContent() string {
	if r.Result == nil {
		return EmptyOutputPlaceholder
	}
	if r.Result.Success {
		if r.Result.Output == "" {
			return EmptyOutputPlaceholder
		}
		return r.Result.Output
	}
	if r.Result.Output != "" {
		return r.Result.Output
	}
	return fmt.Sprintf("Error: %s", r.Result.Error)
}
