package agent

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"quill/internal/llm"
)

func chatHistory(pairs int) []*llm.Message {
	history := []*llm.Message{{Role: llm.RoleSystem, Content: "system prompt"}}
	for i := 0; i < pairs; i++ {
		history = append(history,
			&llm.Message{Role: llm.RoleUser, Content: fmt.Sprintf("question %d", i)},
			&llm.Message{Role: llm.RoleAssistant, Content: fmt.Sprintf("answer %d", i)},
		)
	}
	return history
}

func TestEstimateTokens(t *testing.T) {
	history := []*llm.Message{
		{Role: llm.RoleUser, Content: strings.Repeat("a", 400)},
		{Role: llm.RoleAssistant, Content: strings.Repeat("b", 400), ToolCalls: []*llm.ToolCall{
			{Function: &llm.FunctionCall{Name: "read", Arguments: strings.Repeat("c", 196)}},
		}},
	}

	// 400 + 400 + 4 + 196 = 1000 chars, at 4 chars per token.
	if got := EstimateTokens(history); got != 250 {
		t.Errorf("Expected 250 tokens, got %d", got)
	}
}

func TestCompactor_ShouldCompact(t *testing.T) {
	c := NewCompactor(nil, 1000)

	short := chatHistory(2)
	if c.ShouldCompact(short) {
		t.Error("Expected no compaction for short conversations")
	}

	big := chatHistory(10)
	for _, m := range big[1:] {
		m.Content = strings.Repeat("x", 400)
	}
	if !c.ShouldCompact(big) {
		t.Errorf("Expected compaction above threshold (estimate %d)", EstimateTokens(big))
	}

	small := chatHistory(10)
	if c.ShouldCompact(small) {
		t.Errorf("Expected no compaction below threshold (estimate %d)", EstimateTokens(small))
	}
}

func TestCompactor_TooShortIsNoOp(t *testing.T) {
	client := &fakeClient{}
	c := NewCompactor(client, 1000)

	history := chatHistory(3)
	out, err := c.Compact(context.Background(), history)
	if err != nil {
		t.Fatalf("Compact failed: %v", err)
	}
	if len(out) != len(history) {
		t.Errorf("Expected untouched history, got %d messages", len(out))
	}
	if len(client.requests()) != 0 {
		t.Error("Expected no model call for a short history")
	}
}

func TestCompactor_ReplacesOlderHalf(t *testing.T) {
	client := &fakeClient{steps: []step{respond("summary of early work")}}
	c := NewCompactor(client, 1000)

	history := chatHistory(8)
	out, err := c.Compact(context.Background(), history)
	if err != nil {
		t.Fatalf("Compact failed: %v", err)
	}

	if out[0] != history[0] {
		t.Error("Expected system message preserved")
	}
	if out[1].Role != llm.RoleUser || !strings.HasPrefix(out[1].Content, "[Conversation summary]") {
		t.Errorf("Expected summary as second message, got %s %q", out[1].Role, out[1].Content)
	}
	if !strings.Contains(out[1].Content, "summary of early work") {
		t.Errorf("Expected model summary included, got %q", out[1].Content)
	}
	if len(out) >= len(history) {
		t.Errorf("Expected shorter history, got %d >= %d", len(out), len(history))
	}

	// The newest messages survive verbatim.
	last := out[len(out)-1]
	if last != history[len(history)-1] {
		t.Error("Expected tail preserved by identity")
	}
}

func TestCompactor_SplitKeepsCallResultPairs(t *testing.T) {
	client := &fakeClient{steps: []step{respond("summary")}}
	c := NewCompactor(client, 1000)

	// Position the midpoint inside a run of tool results.
	history := []*llm.Message{
		{Role: llm.RoleSystem, Content: "s"},
		{Role: llm.RoleUser, Content: "u1"},
		{Role: llm.RoleAssistant, Content: "a1"},
		{Role: llm.RoleUser, Content: "u2"},
		{Role: llm.RoleAssistant, Content: "a2", ToolCalls: []*llm.ToolCall{
			{ID: "c1", Function: &llm.FunctionCall{Name: "read", Arguments: "{}"}},
			{ID: "c2", Function: &llm.FunctionCall{Name: "grep", Arguments: "{}"}},
		}},
		{Role: llm.RoleTool, Content: "r1", ToolCallID: "c1", Name: "read"},
		{Role: llm.RoleTool, Content: "r2", ToolCallID: "c2", Name: "grep"},
		{Role: llm.RoleAssistant, Content: "a3"},
		{Role: llm.RoleUser, Content: "u3"},
		{Role: llm.RoleAssistant, Content: "a4"},
	}

	out, err := c.Compact(context.Background(), history)
	if err != nil {
		t.Fatalf("Compact failed: %v", err)
	}

	// The message after the summary must not be an orphaned tool result.
	if out[2].Role == llm.RoleTool {
		t.Errorf("Expected tail to start on a non-tool message, got %s", out[2].Role)
	}
	for i, m := range out {
		if m.Role != llm.RoleTool {
			continue
		}
		if i == 0 || (out[i-1].Role != llm.RoleTool && len(out[i-1].ToolCalls) == 0) {
			t.Errorf("Tool result at %d has no preceding call", i)
		}
	}
}

func TestCompactor_EmptySummaryIsError(t *testing.T) {
	client := &fakeClient{steps: []step{respond("   ")}}
	c := NewCompactor(client, 1000)

	if _, err := c.Compact(context.Background(), chatHistory(8)); err == nil {
		t.Error("Expected error for empty summary")
	}
}
