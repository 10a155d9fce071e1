package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"quill/internal/llm"
)

const (
	defaultCompactThreshold = 0.6
	defaultMinMessages      = 10

	summaryMarker = "[Conversation summary]"
)

const summaryPrompt = `You are summarizing a conversation between a user and a coding assistant so
the conversation can continue with less context.

Preserve, in order of importance:
1. The user's goal and any constraints they stated
2. Decisions made and why
3. Files read or changed, with their paths
4. Commands run and their outcomes
5. Open problems and what was about to happen next

Write a compact summary in plain prose. Do not invent details.`

// Compactor shrinks a conversation by replacing its older half with a
// model-written summary. The newer half stays verbatim so recent exchanges
// keep their full fidelity.
type Compactor struct {
	client        llm.Client
	contextWindow int
	threshold     float64
	minMessages   int
}

type CompactorOption func(*Compactor)

// WithThreshold sets the share of the context window that triggers
// compaction. Values outside (0, 1] are ignored.
func WithThreshold(t float64) CompactorOption {
	return func(c *Compactor) {
		if t > 0 && t <= 1 {
			c.threshold = t
		}
	}
}

// WithMinMessages sets the history length below which compaction is a
// no-op.
func WithMinMessages(n int) CompactorOption {
	return func(c *Compactor) {
		if n > 0 {
			c.minMessages = n
		}
	}
}

func NewCompactor(client llm.Client, contextWindow int, opts ...CompactorOption) *Compactor {
	c := &Compactor{
		client:        client,
		contextWindow: contextWindow,
		threshold:     defaultCompactThreshold,
		minMessages:   defaultMinMessages,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EstimateTokens approximates history size at four characters per token.
// Close enough for a compaction trigger; exact counts come from the
// provider when available.
func EstimateTokens(history []*llm.Message) int {
	chars := 0
	for _, m := range history {
		chars += len(m.Content) + len(m.Reason)
		for _, tc := range m.ToolCalls {
			if tc.Function != nil {
				chars += len(tc.Function.Name) + len(tc.Function.Arguments)
			}
		}
	}
	return chars / 4
}

// ShouldCompact reports whether the history has grown past the threshold
// share of the context window. Short conversations never compact.
func (c *Compactor) ShouldCompact(history []*llm.Message) bool {
	if len(history) < c.minMessages {
		return false
	}
	return float64(EstimateTokens(history)) > c.threshold*float64(c.contextWindow)
}

// Compact replaces the older half of history with a summary message and
// returns the shortened slice. On error the input is untouched, so the
// caller keeps the full conversation.
func (c *Compactor) Compact(ctx context.Context, history []*llm.Message) ([]*llm.Message, error) {
	if len(history) < c.minMessages {
		return history, nil
	}

	// The tail must not open with tool results whose call was summarized
	// away, so the split advances past them and keeps each call/result
	// pair on one side.
	split := len(history) / 2
	for split < len(history) && history[split].Role == llm.RoleTool {
		split++
	}
	if split >= len(history) {
		return history, nil
	}

	head := history[1:split]
	tail := history[split:]

	summary, err := c.summarize(ctx, head)
	if err != nil {
		return nil, fmt.Errorf("compaction failed: %w", err)
	}

	compacted := make([]*llm.Message, 0, len(tail)+2)
	compacted = append(compacted, history[0])
	compacted = append(compacted, &llm.Message{
		Role:      llm.RoleUser,
		Content:   summaryMarker + "\n\n" + summary,
		Timestamp: time.Now(),
	})
	compacted = append(compacted, tail...)
	return compacted, nil
}

func (c *Compactor) summarize(ctx context.Context, msgs []*llm.Message) (string, error) {
	var transcript strings.Builder
	for _, m := range msgs {
		transcript.WriteString(string(m.Role))
		transcript.WriteString(": ")
		transcript.WriteString(m.Content)
		for _, tc := range m.ToolCalls {
			if tc.Function != nil {
				fmt.Fprintf(&transcript, "\n[called %s with %s]", tc.Function.Name, tc.Function.Arguments)
			}
		}
		transcript.WriteString("\n\n")
	}

	resp, err := c.client.Chat(ctx, &llm.ChatRequest{
		Messages: []*llm.Message{
			{Role: llm.RoleSystem, Content: summaryPrompt},
			{Role: llm.RoleUser, Content: "Summarize this conversation:\n\n" + transcript.String()},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Message.Content) == "" {
		return "", fmt.Errorf("model returned an empty summary")
	}
	return resp.Message.Content, nil
}
