package tool

import (
	"context"
	"encoding/json"
	"time"
)

// Tool defines the interface that all tools must implement
type Tool interface {
	// Name returns the unique identifier for this tool
	Name() string

	// Description returns a brief description of what this tool does
	Description() string

	// BestPractices returns usage guidelines for this tool
	// Returns empty string if no special guidance is needed
	BestPractices() string

	// Parameters returns the JSON schema for the tool's parameters
	Parameters() map[string]any

	// Execute runs the tool with the given parameters
	Execute(ctx context.Context, params json.RawMessage) (*Result, error)
}

// Permission classifies how a tool call is gated before execution.
type Permission string

const (
	// PermissionAlways runs without asking.
	PermissionAlways Permission = "always"
	// PermissionAsk requires approval for each call.
	PermissionAsk Permission = "ask"
	// PermissionNever is rejected without asking.
	PermissionNever Permission = "never"
)

// ValidPermission reports whether p is one of the known permission classes.
func ValidPermission(p Permission) bool {
	switch p {
	case PermissionAlways, PermissionAsk, PermissionNever:
		return true
	}
	return false
}

type Result struct {
	Success bool
	Output  string
	Error   string
	Data    map[string]any
}

type CallResult struct {
	ToolName   string
	CallID     string
	Params     json.RawMessage
	Result     *Result
	Skipped    bool
	SkipReason string
	StartTime  time.Time
	EndTime    time.Time
}

// Duration is the wall time the call took.
func (r *CallResult) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}
