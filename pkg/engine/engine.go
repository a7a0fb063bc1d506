package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/famulus-ai/famulus/pkg/chat"
	"github.com/famulus-ai/famulus/pkg/observability"
	"github.com/famulus-ai/famulus/pkg/provider"
	"github.com/famulus-ai/famulus/pkg/store"
)

// ToolInvoker supplies the tool catalog advertised to the model and
// dispatches individual tool calls. mcp.Manager implements it.
type ToolInvoker interface {
	Catalog() []chat.ToolDefinition
	Invoke(ctx context.Context, call chat.ToolCall) chat.ToolResult
}

// Engine orchestrates turns for one conversation profile. It is safe
// for sequential reuse across turns; a conversation is exclusively
// owned by the running turn while Run is in flight.
type Engine struct {
	provider provider.Provider
	tools    ToolInvoker
	store    store.Store
	notifier Notifier
	cfg      Config
}

// New creates an engine. The provider and store must not be nil; tools
// may be nil for a conversation without tool use, and a nil notifier
// discards progress notifications.
func New(p provider.Provider, tools ToolInvoker, st store.Store, n Notifier, cfg Config) (*Engine, error) {
	if p == nil {
		return nil, fmt.Errorf("engine: provider must not be nil")
	}
	if st == nil {
		return nil, fmt.Errorf("engine: store must not be nil")
	}
	if n == nil {
		n = NopNotifier{}
	}
	return &Engine{
		provider: p,
		tools:    tools,
		store:    st,
		notifier: n,
		cfg:      cfg,
	}, nil
}

// Result summarizes a completed turn.
type Result struct {
	State TurnState
	Reply string
	Usage chat.Usage

	// Rounds is the number of tool-call rounds dispatched.
	Rounds int
}

// turn holds the per-turn state machine.
type turn struct {
	state TurnState
}

func (t *turn) to(s TurnState) {
	if t.state == s {
		return
	}
	slog.Debug("turn state", "from", t.state, "to", s)
	t.state = s
}

// Run executes one turn: commits the user message, streams the model's
// response, dispatches any tool calls, injects results, and repeats
// until the model answers without tool calls or the round limit is hit.
//
// Cancelling ctx cancels the active stream, lets in-flight tool
// invocations finish, discards their results, and truncates the
// conversation back to the last message committed before this turn.
func (e *Engine) Run(ctx context.Context, conversationID, userText string) (*Result, error) {
	history, err := e.store.Messages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	preTurnSeq := 0
	if len(history) > 0 {
		preTurnSeq = history[len(history)-1].Seq
	}

	if len(history) == 0 && e.cfg.SystemPrompt != "" {
		sys, err := e.store.Append(ctx, conversationID, chat.NewSystemMessage(e.cfg.SystemPrompt))
		if err != nil {
			return nil, fmt.Errorf("committing system prompt: %w", err)
		}
		history = append(history, sys)
	}

	user, err := e.store.Append(ctx, conversationID, chat.NewUserMessage(userText))
	if err != nil {
		return nil, fmt.Errorf("committing user message: %w", err)
	}
	history = append(history, user)

	turnID := chat.NewTurnID()
	slog.Debug("turn started", "turn", turnID, "conversation", conversationID, "backend", e.cfg.Backend, "model", e.cfg.Model)

	var defs []chat.ToolDefinition
	if e.tools != nil {
		defs = e.tools.Catalog()
	}

	t := &turn{state: StateIdle}
	var usage chat.Usage
	rounds := 0

	for {
		t.to(StateAwaitingModel)
		text, calls, turnUsage, err := e.streamOnce(ctx, t, history, defs)
		if err != nil {
			if ctx.Err() != nil || chat.KindOf(err) == chat.ErrKindCancelled {
				return nil, e.rollback(ctx, conversationID, preTurnSeq)
			}
			return nil, e.fail(t, err)
		}
		if turnUsage != nil {
			usage.Add(*turnUsage)
		}

		asst, err := e.store.Append(ctx, conversationID, chat.NewAssistantMessage(text, calls))
		if err != nil {
			return nil, e.fail(t, fmt.Errorf("committing assistant message: %w", err))
		}
		history = append(history, asst)

		if len(calls) == 0 {
			t.to(StateCompleted)
			observability.TurnsTotal.WithLabelValues("completed").Inc()
			slog.Debug("turn completed", "turn", turnID, "rounds", rounds, "tokens", usage.TotalTokens)
			e.notifier.TurnCompleted(usage)
			return &Result{State: StateCompleted, Reply: text, Usage: usage, Rounds: rounds}, nil
		}

		if rounds == e.cfg.maxToolRounds() {
			return nil, e.fail(t, chat.NewLoopBoundError(e.cfg.maxToolRounds()))
		}
		rounds++

		t.to(StateExecutingTool)
		results := e.dispatch(ctx, calls)
		if ctx.Err() != nil {
			// Results from a cancelled generation are discarded.
			return nil, e.rollback(ctx, conversationID, preTurnSeq)
		}

		t.to(StateInjectingResult)
		for i, res := range results {
			msg, err := e.store.Append(ctx, conversationID, chat.NewToolMessage(res))
			if err != nil {
				return nil, e.fail(t, fmt.Errorf("committing tool result: %w", err))
			}
			history = append(history, msg)
			e.notifier.ToolCallDone(calls[i], res)
		}
	}
}

// streamOnce drives one provider stream to its terminal event,
// forwarding text deltas and collecting tool calls.
func (e *Engine) streamOnce(ctx context.Context, t *turn, history []chat.Message, defs []chat.ToolDefinition) (string, []chat.ToolCall, *chat.Usage, error) {
	req := &provider.Request{
		Model:       e.cfg.Model,
		Messages:    history,
		Tools:       defs,
		Temperature: e.cfg.Temperature,
		MaxTokens:   e.cfg.MaxTokens,
	}

	start := time.Now()
	session, err := e.provider.Stream(ctx, req)
	if err != nil {
		e.recordProviderRequest("error", start)
		return "", nil, nil, err
	}

	var text strings.Builder
	var calls []chat.ToolCall

	for {
		ev, err := session.Recv(ctx)
		if err != nil {
			session.Cancel()
			e.recordProviderRequest("error", start)
			if ctx.Err() != nil {
				return "", nil, nil, chat.NewCancelledError()
			}
			return "", nil, nil, err
		}
		observability.StreamEventsTotal.WithLabelValues(ev.Type.String()).Inc()

		switch ev.Type {
		case provider.EventTextDelta:
			t.to(StateStreamingText)
			text.WriteString(ev.Delta)
			e.notifier.TextDelta(ev.Delta)

		case provider.EventToolCallDelta:
			// Argument fragments accumulate inside the adapter.

		case provider.EventToolCallDone:
			t.to(StateToolCallDetected)
			calls = append(calls, *ev.Call)
			e.notifier.ToolCallPlanned(*ev.Call)

		case provider.EventDone:
			e.recordProviderRequest("ok", start)
			if ev.Usage != nil {
				observability.ProviderTokensTotal.WithLabelValues(e.cfg.Backend, e.cfg.Model, "input").Add(float64(ev.Usage.InputTokens))
				observability.ProviderTokensTotal.WithLabelValues(e.cfg.Backend, e.cfg.Model, "output").Add(float64(ev.Usage.OutputTokens))
			}
			return text.String(), calls, ev.Usage, nil

		case provider.EventError:
			session.Cancel()
			e.recordProviderRequest("error", start)
			return "", nil, nil, ev.Err
		}
	}
}

// dispatch runs all collected tool calls concurrently and joins them.
// Invocations run detached from the turn's cancellation so an in-flight
// call is never killed mid-effect; the caller discards the results if
// the turn was cancelled while they ran.
func (e *Engine) dispatch(ctx context.Context, calls []chat.ToolCall) []chat.ToolResult {
	results := make([]chat.ToolResult, len(calls))
	invokeCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(idx int, tc chat.ToolCall) {
			defer wg.Done()
			if e.tools == nil {
				results[idx] = chat.ToolResult{
					ToolCallID: tc.ID,
					Content:    fmt.Sprintf("no tool server provides tool %q", tc.Name),
					IsError:    true,
				}
				return
			}
			results[idx] = e.tools.Invoke(invokeCtx, tc)
		}(i, call)
	}
	wg.Wait()
	return results
}

// rollback truncates the conversation to its pre-turn length and
// reports cancellation. The truncate runs detached from the cancelled
// context.
func (e *Engine) rollback(ctx context.Context, conversationID string, preTurnSeq int) error {
	if err := e.store.Truncate(context.WithoutCancel(ctx), conversationID, preTurnSeq); err != nil {
		slog.Error("rolling back cancelled turn", "conversation", conversationID, "error", err)
	}
	observability.TurnsTotal.WithLabelValues("cancelled").Inc()
	err := chat.NewCancelledError()
	e.notifier.TurnFailed(err)
	return err
}

func (e *Engine) fail(t *turn, err error) error {
	t.to(StateFailed)
	observability.TurnsTotal.WithLabelValues("failed").Inc()
	slog.Warn("turn failed", "kind", chat.KindOf(err), "error", err)
	e.notifier.TurnFailed(err)
	return err
}

func (e *Engine) recordProviderRequest(status string, start time.Time) {
	observability.ProviderRequestsTotal.WithLabelValues(e.cfg.Backend, e.cfg.Model, status).Inc()
	observability.ProviderLatency.WithLabelValues(e.cfg.Backend, e.cfg.Model).Observe(time.Since(start).Seconds())
}
