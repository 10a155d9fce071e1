package agent

import (
	"strings"

	"quill/internal/llm"
)

// accumulator stitches streamed deltas back into a complete assistant
// message. Tool-call fragments are keyed by index; a call completes exactly
// once, on whichever comes first:
//
//   - the provider reports its index in ClosedCalls,
//   - a fragment arrives for a different index,
//   - the stream finishes.
//
// onCall fires at that moment, so the caller can surface calls before the
// stream ends.
type accumulator struct {
	role      llm.Role
	content   strings.Builder
	reason    strings.Builder
	signature strings.Builder

	calls     map[int]*callBuilder
	order     []int
	built     map[int]*llm.ToolCall
	completed map[int]bool
	current   int

	finish llm.StopReason
	usage  llm.Usage

	onCall func(*llm.ToolCall)
}

type callBuilder struct {
	id   string
	typ  string
	name strings.Builder
	args strings.Builder
}

func newAccumulator(onCall func(*llm.ToolCall)) *accumulator {
	return &accumulator{
		calls:     make(map[int]*callBuilder),
		built:     make(map[int]*llm.ToolCall),
		completed: make(map[int]bool),
		current:   -1,
		onCall:    onCall,
	}
}

func (a *accumulator) feed(d *llm.Delta) {
	if d.Role != "" {
		a.role = d.Role
	}
	a.content.WriteString(d.Content)
	a.reason.WriteString(d.Reason)
	a.signature.WriteString(d.Signature)

	for _, frag := range d.ToolCalls {
		// Providers without block-stop events start the next call's fragments
		// directly; that first fragment closes the previous call.
		if a.current >= 0 && a.current != frag.Index {
			a.complete(a.current)
		}
		a.current = frag.Index

		cb, ok := a.calls[frag.Index]
		if !ok {
			cb = &callBuilder{}
			a.calls[frag.Index] = cb
			a.order = append(a.order, frag.Index)
		}
		if frag.ID != "" {
			cb.id = frag.ID
		}
		if frag.Type != "" {
			cb.typ = frag.Type
		}
		cb.name.WriteString(frag.Name)
		cb.args.WriteString(frag.Arguments)
	}

	for _, index := range d.ClosedCalls {
		a.complete(index)
	}

	if d.FinishReason != "" {
		a.finish = d.FinishReason
	}
	if d.Usage != nil {
		mergeUsage(&a.usage, d.Usage)
	}
}

// complete builds the tool call at index and fires onCall. Safe to invoke
// more than once per index; only the first invocation does anything.
func (a *accumulator) complete(index int) {
	if a.completed[index] {
		return
	}
	cb, ok := a.calls[index]
	if !ok {
		return
	}
	a.completed[index] = true

	typ := cb.typ
	if typ == "" {
		typ = "function"
	}
	tc := &llm.ToolCall{
		ID:   cb.id,
		Type: typ,
		Function: &llm.FunctionCall{
			Name:      cb.name.String(),
			Arguments: cb.args.String(),
		},
	}
	a.built[index] = tc

	if a.onCall != nil {
		a.onCall(tc)
	}
}

// message closes any still-open calls and assembles the final assistant
// message with calls in first-seen order.
func (a *accumulator) message() (*llm.Message, llm.StopReason) {
	for _, index := range a.order {
		a.complete(index)
	}

	role := a.role
	if role == "" {
		role = llm.RoleAssistant
	}

	msg := &llm.Message{
		Role:              role,
		Content:           a.content.String(),
		Reason:            a.reason.String(),
		ThinkingSignature: a.signature.String(),
	}
	for _, index := range a.order {
		msg.ToolCalls = append(msg.ToolCalls, a.built[index])
	}

	finish := a.finish
	if finish == "" {
		if len(msg.ToolCalls) > 0 {
			finish = llm.StopReasonToolCalls
		} else {
			finish = llm.StopReasonStop
		}
	}
	return msg, finish
}

// finalUsage returns the merged usage, deriving the total when the provider
// reported prompt and completion tokens separately without one.
func (a *accumulator) finalUsage() llm.Usage {
	u := a.usage
	if u.TotalTokens == 0 {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	return u
}

// mergeUsage folds a streamed usage report into the running total. Reports
// are cumulative per field and may arrive split across chunks, so each field
// keeps its maximum.
func mergeUsage(dst *llm.Usage, u *llm.Usage) {
	if u.PromptTokens > dst.PromptTokens {
		dst.PromptTokens = u.PromptTokens
	}
	if u.CompletionTokens > dst.CompletionTokens {
		dst.CompletionTokens = u.CompletionTokens
	}
	if u.TotalTokens > dst.TotalTokens {
		dst.TotalTokens = u.TotalTokens
	}
}
