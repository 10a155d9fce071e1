package llm

import "time"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one turn's worth of conversational content. Histories hold
// pointers so that replacing the system prompt in place is observable to
// callers comparing identity.
type Message struct {
	Role Role `json:"role"`

	// Content is the textual content of the message.
	Content string `json:"content"`

	// Reason carries provider "thinking"/reasoning output when present.
	Reason string `json:"reason,omitempty"`

	// ThinkingSignature is an opaque provider token that must be sent back
	// verbatim to replay a thinking block in a later request.
	ThinkingSignature string `json:"thinking_signature,omitempty"`

	ToolCalls []*ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a RoleTool message back to the assistant tool call
	// it answers. Always set on tool messages.
	ToolCallID string `json:"tool_call_id,omitempty"`

	Name      string    `json:"name,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Clone returns a deep copy. Used when a snapshot must not alias history.
func (m *Message) Clone() *Message {
	out := *m
	if len(m.ToolCalls) > 0 {
		out.ToolCalls = make([]*ToolCall, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			c := *tc
			if tc.Function != nil {
				f := *tc.Function
				c.Function = &f
			}
			out.ToolCalls[i] = &c
		}
	}
	return &out
}

type ToolCall struct {
	ID       string        `json:"id"`
	Type     string        `json:"type"`
	Function *FunctionCall `json:"function"`
}

type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type StopReason string

const (
	StopReasonStop      StopReason = "stop"
	StopReasonLength    StopReason = "length"
	StopReasonToolCalls StopReason = "tool_calls"
)

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates another usage report into this one.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}
