package agent

import "quill/internal/llm"

// Pricing holds per-million-token prices in USD for cost accounting.
// Zero values disable cost tracking (SessionCost stays 0).
type Pricing struct {
	InputPerMTok  float64 `yaml:"input_per_mtok"`
	OutputPerMTok float64 `yaml:"output_per_mtok"`
}

// Cost returns the USD cost of a single usage report under this pricing.
func (p Pricing) Cost(u llm.Usage) float64 {
	return float64(u.PromptTokens)/1e6*p.InputPerMTok +
		float64(u.CompletionTokens)/1e6*p.OutputPerMTok
}

// Stats accumulates turn and session counters. A copy is returned to
// callers; the agent owns the mutable instance.
type Stats struct {
	// Steps counts completed round trips across the session.
	Steps int `json:"steps"`
	// ToolCalls counts tool executions, including skipped ones.
	ToolCalls int `json:"tool_calls"`

	SessionPromptTokens     int `json:"session_prompt_tokens"`
	SessionCompletionTokens int `json:"session_completion_tokens"`
	SessionTotalTokens      int `json:"session_total_tokens"`

	// LastPromptTokens and LastCompletionTokens describe the most recent
	// round trip only.
	LastPromptTokens     int `json:"last_prompt_tokens"`
	LastCompletionTokens int `json:"last_completion_tokens"`

	// SessionCost is the accumulated USD cost under the configured pricing.
	SessionCost float64 `json:"session_cost"`

	// ContextTokens estimates the current history size. Refreshed after
	// each turn when the backend supports counting.
	ContextTokens int `json:"context_tokens"`
}

func (s *Stats) recordUsage(u llm.Usage, p Pricing) {
	s.Steps++
	s.SessionPromptTokens += u.PromptTokens
	s.SessionCompletionTokens += u.CompletionTokens
	s.SessionTotalTokens += u.TotalTokens
	s.LastPromptTokens = u.PromptTokens
	s.LastCompletionTokens = u.CompletionTokens
	s.SessionCost += p.Cost(u)
}
