package llm

import "context"

// Client abstracts a chat-completion provider. Implementations normalize the
// provider's wire format into Message/Delta so the agent core never sees
// provider-specific types.
type Client interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	ChatStream(ctx context.Context, req *ChatRequest) (StreamReader, error)

	// CountTokens reports how many prompt tokens the request would consume.
	// Implementations may estimate when the provider has no counting endpoint.
	CountTokens(ctx context.Context, req *ChatRequest) (int, error)

	Provider() string
	Model() string
}

type ChatRequest struct {
	Messages    []*Message
	Tools       []*ToolDefinition
	Temperature float32
	MaxTokens   int

	// ToolChoice is "" (provider default), "auto", "none", or "required".
	ToolChoice string
}

type ChatResponse struct {
	Message    Message
	StopReason StopReason
	Usage      Usage
}

type ToolDefinition struct {
	Type     string
	Function *FunctionDef
}

type FunctionDef struct {
	Name        string
	Description string
	Parameters  map[string]any
}

type StreamReader interface {
	Recv() (*Delta, error)
	Close() error
}

// Delta is one normalized streaming chunk. Tool-call fragments arrive keyed
// by index; ClosedCalls lists indexes whose call is complete as of this chunk
// (providers with explicit block-stop events report them here, others leave
// completion to the accumulator).
type Delta struct {
	Role      Role
	Reason    string
	Signature string
	Content   string

	ToolCalls   []*ToolCallDelta
	ClosedCalls []int

	// FinishReason is set on the chunk that ends the message, "" before then.
	FinishReason StopReason

	// Usage is set when the provider reports token counts mid-stream or at
	// the end; either side may be zero until the final report.
	Usage *Usage

	Done bool
}

// ToolCallDelta is a fragment of a streamed tool call. Name and Arguments
// accumulate across fragments sharing an Index.
type ToolCallDelta struct {
	Index     int
	ID        string
	Type      string
	Name      string
	Arguments string
}
