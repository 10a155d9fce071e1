package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"quill/internal/approval"
	"quill/internal/llm"
	"quill/internal/logger"
	"quill/internal/tool"
	"quill/internal/tool/builtin"
)

// Config carries the tunables and collaborators for one agent.
type Config struct {
	Mode    AgentMode
	Workdir string

	Temperature float32
	MaxTokens   int

	// MaxTurns caps round trips per Act call, 0 means unlimited.
	MaxTurns int
	// MaxPrice caps the session cost in USD, 0 means unlimited. Requires
	// Pricing to be set to have any effect.
	MaxPrice float64
	Pricing  Pricing

	Streaming bool

	// ContextWindow is the model's context size in tokens. AutoCompact
	// summarizes the conversation when it grows past a share of it.
	ContextWindow int
	AutoCompact   bool
	// CompactThreshold overrides the default trigger share of the context
	// window, CompactMinMessages the history length floor. Zero keeps the
	// defaults.
	CompactThreshold   float64
	CompactMinMessages int

	// Gate approves tool calls in interactive mode. Nil approves
	// everything, so interactive callers must supply one.
	Gate approval.Gate
	// PlanGate reviews plans submitted from plan mode. Nil accepts plans
	// and keeps per-call approval on.
	PlanGate approval.PlanGate
}

// Agent drives the conversation loop: send history to the model, surface
// its reply as events, gate and execute the tool calls it makes, and
// repeat until a reply has no calls left.
//
// One operation runs at a time. Act, Compact, Clear and RestoreHistory
// return ErrBusy instead of queueing when another is in flight.
type Agent struct {
	client   llm.Client
	registry *tool.Registry
	executor *tool.Executor
	gate     approval.Gate
	planGate approval.PlanGate
	log      *logger.Logger
	config   Config

	compactor *Compactor

	running atomic.Bool
	state   atomic.Int32

	mu             sync.Mutex
	mode           AgentMode
	history        []*llm.Message
	stats          Stats
	lastCompactLen int
}

func New(client llm.Client, registry *tool.Registry, log *logger.Logger, config Config) *Agent {
	if !config.Mode.Valid() {
		config.Mode = ModeInteractive
	}
	if log == nil {
		log = logger.NewLogger(io.Discard, logger.LevelError)
	}

	gate := config.Gate
	if gate == nil {
		gate = approval.AutoGate{}
	}
	planGate := config.PlanGate
	if planGate == nil {
		planGate = approval.PlanGateFunc(func(ctx context.Context, plan string) (approval.PlanDecision, string, error) {
			return approval.PlanApproveManual, "", nil
		})
	}

	var copts []CompactorOption
	if config.CompactThreshold > 0 {
		copts = append(copts, WithThreshold(config.CompactThreshold))
	}
	if config.CompactMinMessages > 0 {
		copts = append(copts, WithMinMessages(config.CompactMinMessages))
	}

	a := &Agent{
		client:    client,
		registry:  registry,
		executor:  tool.NewExecutor(registry),
		gate:      gate,
		planGate:  planGate,
		log:       log,
		config:    config,
		compactor: NewCompactor(client, config.ContextWindow, copts...),
		mode:      config.Mode,
	}
	a.history = []*llm.Message{a.systemMessage(config.Mode)}
	return a
}

func (a *Agent) systemMessage(mode AgentMode) *llm.Message {
	return &llm.Message{
		Role:      llm.RoleSystem,
		Content:   RenderSystemPrompt(mode, a.config.Workdir, a.registry.GetToolBestPractices()),
		Timestamp: time.Now(),
	}
}

// setTaskPrompt replaces the system prompt with a task-specific one. The
// factory uses this for sub-agents, whose instructions come from their type
// rather than the interactive mode blocks.
func (a *Agent) setTaskPrompt(prompt string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	content := prompt
	if a.config.Workdir != "" {
		content += fmt.Sprintf("\n\nWorking directory: %s", a.config.Workdir)
	}
	if bp := a.registry.GetToolBestPractices(); bp != "" {
		content += "\n\n" + bp
	}
	a.history[0] = &llm.Message{Role: llm.RoleSystem, Content: content, Timestamp: time.Now()}
}

// Act starts one turn and returns its event channel. The channel is
// unbuffered: the turn advances only as the caller consumes events, and it
// closes when the turn ends. An empty prompt resumes from the existing
// history without adding a user message.
func (a *Agent) Act(ctx context.Context, prompt string) (<-chan Event, error) {
	if !a.running.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}

	if prompt != "" {
		a.mu.Lock()
		a.history = append(a.history, &llm.Message{
			Role:      llm.RoleUser,
			Content:   prompt,
			Timestamp: time.Now(),
		})
		a.mu.Unlock()
	}

	events := make(chan Event)
	go a.runTurn(ctx, events)
	return events, nil
}

// Run drives a whole turn and returns the final assistant text. Budget
// stops surface as *ConversationLimitError with the partial text inside.
func (a *Agent) Run(ctx context.Context, prompt string) (string, error) {
	events, err := a.Act(ctx, prompt)
	if err != nil {
		return "", err
	}

	var final string
	var turnErr error
	for ev := range events {
		switch ev.Type {
		case EventDone:
			final = ev.Final
		case EventError:
			turnErr = ev.Err()
		}
	}
	return final, turnErr
}

func (a *Agent) runTurn(ctx context.Context, events chan<- Event) {
	endState := StateIdle
	defer func() {
		a.setState(endState)
		a.running.Store(false)
		close(events)
	}()

	a.maybeAutoCompact(ctx)

	turns := 0
	var lastAssistant string

	for {
		if cle := a.budgetStop(turns, lastAssistant); cle != nil {
			a.send(ctx, events, assistantEvent(&AssistantInfo{
				Content:        cle.Content,
				StoppedByLimit: true,
			}))
			a.send(ctx, events, errorEvent(cle))
			return
		}

		a.setState(StateAwaitingBackend)
		msg, stop, usage, err := a.roundTrip(ctx, events)
		if err != nil {
			if ctx.Err() != nil {
				endState = StateCancelled
				a.send(ctx, events, errorEvent(ctx.Err()))
			} else {
				endState = StateError
				a.log.Error("model request failed: %v", err)
				a.send(ctx, events, errorEvent(err))
			}
			return
		}

		a.mu.Lock()
		a.history = append(a.history, msg)
		a.stats.recordUsage(usage, a.config.Pricing)
		a.mu.Unlock()

		turns++
		if msg.Content != "" {
			lastAssistant = msg.Content
		}
		if msg.Reason != "" {
			a.log.AgentReasoning(msg.Reason)
		}

		a.send(ctx, events, assistantEvent(&AssistantInfo{
			Content:          msg.Content,
			Reason:           msg.Reason,
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
		}))

		if len(msg.ToolCalls) == 0 || stop == llm.StopReasonLength {
			break
		}

		if err := a.dispatchTools(ctx, events, msg.ToolCalls); err != nil {
			if ctx.Err() != nil {
				endState = StateCancelled
			} else {
				endState = StateError
			}
			a.send(ctx, events, errorEvent(err))
			return
		}

		if ctx.Err() != nil {
			endState = StateCancelled
			a.send(ctx, events, errorEvent(ctx.Err()))
			return
		}
	}

	a.updateContextTokens(ctx)
	a.send(ctx, events, doneEvent(lastAssistant))
}

// send delivers ev without wedging a cancelled turn. The non-blocking
// attempt reaches a consumer that is still draining; the fallback gives up
// once ctx is done and nobody is receiving.
func (a *Agent) send(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	default:
	}
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (a *Agent) budgetStop(turns int, lastAssistant string) *ConversationLimitError {
	if a.config.MaxTurns > 0 && turns >= a.config.MaxTurns {
		return &ConversationLimitError{Kind: LimitMaxTurns, Content: lastAssistant}
	}
	if a.config.MaxPrice > 0 {
		a.mu.Lock()
		cost := a.stats.SessionCost
		a.mu.Unlock()
		if cost >= a.config.MaxPrice {
			return &ConversationLimitError{Kind: LimitMaxPrice, Content: lastAssistant}
		}
	}
	return nil
}

// roundTrip performs one model request. Tool call events are emitted from
// here, as calls complete during streaming or all at once without it; the
// assistant event is the caller's.
func (a *Agent) roundTrip(ctx context.Context, events chan<- Event) (*llm.Message, llm.StopReason, llm.Usage, error) {
	req := a.buildRequest()

	if !a.config.Streaming {
		resp, err := a.client.Chat(ctx, req)
		if err != nil {
			return nil, "", llm.Usage{}, err
		}
		msg := resp.Message
		for _, tc := range msg.ToolCalls {
			a.send(ctx, events, toolCallEvent(tc.ID, tc.Function.Name, tc.Function.Arguments))
		}
		return &msg, resp.StopReason, resp.Usage, nil
	}

	reader, err := a.client.ChatStream(ctx, req)
	if err != nil {
		return nil, "", llm.Usage{}, err
	}
	defer reader.Close()

	acc := newAccumulator(func(tc *llm.ToolCall) {
		a.send(ctx, events, toolCallEvent(tc.ID, tc.Function.Name, tc.Function.Arguments))
	})

	for {
		delta, err := reader.Recv()
		if err != nil {
			return nil, "", llm.Usage{}, err
		}
		acc.feed(delta)
		if delta.Done {
			break
		}
	}

	msg, stop := acc.message()
	return msg, stop, acc.finalUsage(), nil
}

func (a *Agent) buildRequest() *llm.ChatRequest {
	a.mu.Lock()
	msgs := make([]*llm.Message, len(a.history))
	copy(msgs, a.history)
	a.mu.Unlock()

	return &llm.ChatRequest{
		Messages:    msgs,
		Tools:       a.registry.GetToolDefinitions(),
		Temperature: a.config.Temperature,
		MaxTokens:   a.config.MaxTokens,
	}
}

// dispatchTools resolves every proposed call in emission order. Each call
// ends as exactly one tool message in history, whether it ran, was
// declined, or was skipped after an interrupt. A non-nil return means the
// turn must end; all results are already appended by then.
func (a *Agent) dispatchTools(ctx context.Context, events chan<- Event, calls []*llm.ToolCall) error {
	var interruptErr error

	for _, tc := range calls {
		if interruptErr != nil {
			a.finishCall(ctx, events, tool.Skip(tc, approval.InterruptReason))
			continue
		}
		if ctx.Err() != nil {
			interruptErr = ctx.Err()
			a.finishCall(ctx, events, tool.Skip(tc, approval.InterruptReason))
			continue
		}

		name := tc.Function.Name

		switch name {
		case builtin.SubmitPlanToolName:
			cr, err := a.handlePlanSubmission(ctx, events, tc)
			if err != nil {
				interruptErr = err
				cr = tool.Skip(tc, approval.InterruptReason)
			}
			a.finishCall(ctx, events, cr)
			continue
		case builtin.EnterPlanModeToolName:
			a.switchMode(ctx, events, ModePlan)
			a.finishCall(ctx, events, a.executor.ExecuteOne(ctx, tc))
			continue
		}

		capability, err := a.registry.Capability(name)
		if err != nil {
			// Unknown tool: the executor renders the not-found failure so
			// the model sees it as a normal result.
			a.finishCall(ctx, events, a.executor.ExecuteOne(ctx, tc))
			continue
		}

		if a.Mode() == ModePlan && !capability.ReadOnly {
			a.finishCall(ctx, events, tool.Skip(tc, approval.PlanModeReason(name)))
			continue
		}

		if capability.Permission == tool.PermissionNever {
			a.finishCall(ctx, events, tool.Skip(tc, approval.DisabledReason(name)))
			continue
		}

		if capability.Permission == tool.PermissionAsk && a.Mode() != ModeAutoApprove {
			a.setState(StateAwaitingApproval)
			decision, feedback, err := a.gate.Request(ctx, &approval.Request{
				ToolName: name,
				Args:     json.RawMessage(tc.Function.Arguments),
				CallID:   tc.ID,
			})
			if err != nil {
				interruptErr = err
				a.finishCall(ctx, events, tool.Skip(tc, approval.InterruptReason))
				continue
			}

			switch decision {
			case approval.AllowAlways:
				if err := a.registry.SetPermission(name, tool.PermissionAlways); err != nil {
					a.log.Debug("could not persist permission for %s: %v", name, err)
				}
			case approval.RejectAlways:
				if err := a.registry.SetPermission(name, tool.PermissionNever); err != nil {
					a.log.Debug("could not persist permission for %s: %v", name, err)
				}
			}

			if !decision.Allowed() {
				a.finishCall(ctx, events, tool.Skip(tc, approval.DeclineReason(feedback)))
				continue
			}
		}

		a.setState(StateExecutingTools)
		a.log.ToolCall(name, tc.Function.Arguments)
		a.finishCall(ctx, events, a.executor.ExecuteOne(ctx, tc))
	}

	return interruptErr
}

// handlePlanSubmission intercepts the submit_plan call: the plan goes to
// the plan gate, and the review outcome decides the next mode. The error
// return is only non-nil when the review itself was interrupted.
func (a *Agent) handlePlanSubmission(ctx context.Context, events chan<- Event, tc *llm.ToolCall) (*tool.CallResult, error) {
	started := time.Now()

	var p struct {
		Plan string `json:"plan"`
	}
	if err := json.Unmarshal([]byte(tc.Function.Arguments), &p); err != nil || strings.TrimSpace(p.Plan) == "" {
		// Invalid submission: the tool itself renders the validation failure.
		return a.executor.ExecuteOne(ctx, tc), nil
	}

	a.setState(StateAwaitingApproval)
	decision, feedback, err := a.planGate.Review(ctx, p.Plan)
	if err != nil {
		return nil, err
	}

	success := true
	var output string
	switch decision {
	case approval.PlanApproveAuto:
		a.switchMode(ctx, events, ModeAutoApprove)
		output = "Plan approved. Execute it now; tool calls will not require approval."
	case approval.PlanApproveManual:
		a.switchMode(ctx, events, ModeInteractive)
		output = "Plan approved. Execute it step by step; changes still require approval."
	default:
		if feedback == "" {
			feedback = "no specific feedback given"
		}
		success = false
		output = fmt.Sprintf("The user wants changes to the plan. Feedback: %s. Revise the plan and submit it again.", feedback)
	}

	return &tool.CallResult{
		ToolName:  tc.Function.Name,
		CallID:    tc.ID,
		Params:    []byte(tc.Function.Arguments),
		Result:    &tool.Result{Success: success, Output: output, Data: map[string]any{"plan": p.Plan}},
		StartTime: started,
		EndTime:   time.Now(),
	}, nil
}

// finishCall appends the one tool message this call gets and emits its
// result event.
func (a *Agent) finishCall(ctx context.Context, events chan<- Event, cr *tool.CallResult) {
	content := cr.MessageContent()

	a.mu.Lock()
	a.history = append(a.history, &llm.Message{
		Role:       llm.RoleTool,
		Content:    content,
		ToolCallID: cr.CallID,
		Name:       cr.ToolName,
		Timestamp:  time.Now(),
	})
	a.stats.ToolCalls++
	a.mu.Unlock()

	if !cr.Skipped && cr.Result != nil {
		a.log.ToolResult(cr.ToolName, cr.Result.Success, content, cr.Duration())
	}

	info := &ToolResultInfo{
		ID:         cr.CallID,
		Name:       cr.ToolName,
		Skipped:    cr.Skipped,
		SkipReason: cr.SkipReason,
		DurationMs: cr.Duration().Milliseconds(),
	}
	if cr.Result != nil {
		info.Output = cr.Result.Output
		info.Error = cr.Result.Error
	}
	a.send(ctx, events, toolResultEvent(info))
}

// switchMode applies a mid-turn mode change and announces it.
func (a *Agent) switchMode(ctx context.Context, events chan<- Event, mode AgentMode) {
	if !a.applyMode(mode) {
		return
	}
	a.log.ModeChanged(string(mode))
	if events != nil {
		a.send(ctx, events, modeChangedEvent(mode))
	}
}

// applyMode swaps the system prompt for the new mode. Setting the current
// mode again leaves history untouched.
func (a *Agent) applyMode(mode AgentMode) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if mode == a.mode {
		return false
	}
	a.mode = mode
	a.history[0] = a.systemMessage(mode)
	return true
}

// SetMode switches the gating mode between turns or from another goroutine
// mid-turn.
func (a *Agent) SetMode(mode AgentMode) error {
	if !mode.Valid() {
		return fmt.Errorf("unknown mode %q", mode)
	}
	if a.applyMode(mode) {
		a.log.ModeChanged(string(mode))
	}
	return nil
}

func (a *Agent) Mode() AgentMode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

// Clear resets the conversation to a fresh system prompt.
func (a *Agent) Clear() error {
	if !a.running.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer a.running.Store(false)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = []*llm.Message{a.systemMessage(a.mode)}
	a.lastCompactLen = 0
	a.stats.ContextTokens = 0
	return nil
}

// Compact summarizes the older half of the conversation now. Calling it
// again before the history grows is a no-op.
func (a *Agent) Compact(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer a.running.Store(false)

	a.setState(StateCompacting)
	defer a.setState(StateIdle)

	a.mu.Lock()
	history := a.history
	if len(history) == a.lastCompactLen {
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()

	compacted, err := a.compactor.Compact(ctx, history)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.history = compacted
	a.lastCompactLen = len(compacted)
	a.stats.ContextTokens = EstimateTokens(compacted)
	a.mu.Unlock()
	return nil
}

// maybeAutoCompact runs inside the turn goroutine before the first round
// trip. Failures are logged and ignored; the turn proceeds uncompacted.
func (a *Agent) maybeAutoCompact(ctx context.Context) {
	if !a.config.AutoCompact || a.config.ContextWindow <= 0 {
		return
	}

	a.mu.Lock()
	history := a.history
	skip := len(history) == a.lastCompactLen
	a.mu.Unlock()

	if skip || !a.compactor.ShouldCompact(history) {
		return
	}

	a.setState(StateCompacting)
	compacted, err := a.compactor.Compact(ctx, history)
	if err != nil {
		a.log.Error("auto-compaction failed: %v", err)
		return
	}

	a.mu.Lock()
	a.history = compacted
	a.lastCompactLen = len(compacted)
	a.mu.Unlock()
	a.log.Info("Compacted conversation to %d messages", len(compacted))
}

// RestoreHistory replaces the conversation with a saved one, keeping the
// current system prompt and dropping any saved system messages.
func (a *Agent) RestoreHistory(msgs []*llm.Message) error {
	if !a.running.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer a.running.Store(false)

	a.mu.Lock()
	defer a.mu.Unlock()

	fresh := []*llm.Message{a.history[0]}
	for _, m := range msgs {
		if m.Role == llm.RoleSystem {
			continue
		}
		fresh = append(fresh, m)
	}
	a.history = fresh
	a.lastCompactLen = 0
	return nil
}

// History returns a snapshot of the conversation. The slice is fresh; the
// messages are shared and must be treated as read-only.
func (a *Agent) History() []*llm.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*llm.Message, len(a.history))
	copy(out, a.history)
	return out
}

func (a *Agent) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// State reports where the agent is in its lifecycle. Purely observational.
func (a *Agent) State() State {
	return State(a.state.Load())
}

func (a *Agent) setState(s State) {
	a.state.Store(int32(s))
}

// Busy reports whether an operation is in flight.
func (a *Agent) Busy() bool {
	return a.running.Load()
}

func (a *Agent) updateContextTokens(ctx context.Context) {
	a.mu.Lock()
	msgs := make([]*llm.Message, len(a.history))
	copy(msgs, a.history)
	a.mu.Unlock()

	req := &llm.ChatRequest{Messages: msgs, Tools: a.registry.GetToolDefinitions()}
	n, err := a.client.CountTokens(ctx, req)
	if err != nil {
		n = EstimateTokens(msgs)
	}

	a.mu.Lock()
	a.stats.ContextTokens = n
	a.mu.Unlock()
}
