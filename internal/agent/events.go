package agent

import (
	"time"
)

// EventType tags what a turn event describes.
type EventType string

const (
	// EventAssistant carries one completed assistant round trip.
	EventAssistant EventType = "assistant"
	// EventToolCall announces a tool call the moment it is fully assembled.
	EventToolCall EventType = "tool_call"
	// EventToolResult reports the outcome of one tool call, including
	// rejections and interrupts (those are marked skipped).
	EventToolResult EventType = "tool_result"
	// EventModeChanged reports the agent switching modes mid-turn.
	EventModeChanged EventType = "mode_changed"
	// EventError ends a turn abnormally.
	EventError EventType = "error"
	// EventDone ends a turn normally and carries the final assistant text.
	EventDone EventType = "done"
)

// Event is the single tagged struct delivered on the channel returned by
// Act. Exactly one of the payload pointers matches Type. The json tags let
// headless formatters marshal events directly.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	Assistant  *AssistantInfo  `json:"assistant,omitempty"`
	ToolCall   *ToolCallInfo   `json:"tool_call,omitempty"`
	ToolResult *ToolResultInfo `json:"tool_result,omitempty"`

	// Mode is set on mode_changed events.
	Mode AgentMode `json:"mode,omitempty"`

	// Error is set on error events.
	Error string `json:"error,omitempty"`

	// Final is set on done events: the last assistant text of the turn.
	Final string `json:"final,omitempty"`

	// err carries the typed error for in-process consumers (Run). The
	// string form above is what serializes.
	err error
}

// Err returns the typed error behind an error event, nil otherwise.
func (e Event) Err() error {
	return e.err
}

// AssistantInfo describes one completed assistant round trip.
type AssistantInfo struct {
	Content          string `json:"content,omitempty"`
	Reason           string `json:"reason,omitempty"`
	StoppedByLimit   bool   `json:"stopped_by_limit,omitempty"`
	PromptTokens     int    `json:"prompt_tokens,omitempty"`
	CompletionTokens int    `json:"completion_tokens,omitempty"`
}

// ToolCallInfo describes a tool call the model proposed.
type ToolCallInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

// ToolResultInfo describes the resolution of one tool call.
type ToolResultInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Output     string `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`
	Skipped    bool   `json:"skipped,omitempty"`
	SkipReason string `json:"skip_reason,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

func newEvent(t EventType) Event {
	return Event{Type: t, Timestamp: time.Now()}
}

func assistantEvent(info *AssistantInfo) Event {
	ev := newEvent(EventAssistant)
	ev.Assistant = info
	return ev
}

func toolCallEvent(id, name, args string) Event {
	ev := newEvent(EventToolCall)
	ev.ToolCall = &ToolCallInfo{ID: id, Name: name, Arguments: args}
	return ev
}

func toolResultEvent(info *ToolResultInfo) Event {
	ev := newEvent(EventToolResult)
	ev.ToolResult = info
	return ev
}

func modeChangedEvent(mode AgentMode) Event {
	ev := newEvent(EventModeChanged)
	ev.Mode = mode
	return ev
}

func errorEvent(err error) Event {
	ev := newEvent(EventError)
	ev.Error = err.Error()
	ev.err = err
	return ev
}

func doneEvent(final string) Event {
	ev := newEvent(EventDone)
	ev.Final = final
	return ev
}
