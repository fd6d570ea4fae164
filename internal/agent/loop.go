// Package agent implements the per-turn orchestration loop.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/CareClaw/CareClaw/internal/bus"
	"github.com/CareClaw/CareClaw/internal/envelope"
	"github.com/CareClaw/CareClaw/internal/geo"
	"github.com/CareClaw/CareClaw/internal/memory"
	"github.com/CareClaw/CareClaw/internal/provider"
	"github.com/CareClaw/CareClaw/internal/tokens"
	"github.com/CareClaw/CareClaw/internal/tools"
	"github.com/CareClaw/CareClaw/internal/transcript"
)

// defaultMaxRounds caps tool rounds per turn. The loop force-terminates at
// the cap and returns a best-effort answer from the accumulated text.
const defaultMaxRounds = 5

// LoopOptions contains configuration for the agent loop.
type LoopOptions struct {
	Bus        *bus.MessageBus
	Provider   provider.LLMProvider
	Transcript *transcript.Store
	Retriever  *memory.Retriever
	Geo        *geo.Resolver
	Registry   *tools.Registry
	Budget     tokens.Budget
	Model      string
	MaxRounds  int
	MinHistory int
	Assistant  string
}

// Loop is the core turn processing engine.
type Loop struct {
	bus            *bus.MessageBus
	provider       provider.LLMProvider
	transcript     *transcript.Store
	retriever      *memory.Retriever
	geo            *geo.Resolver
	registry       *tools.Registry
	contextBuilder *ContextBuilder
	history        *HistoryAssembler
	sessions       *SessionManager
	budget         tokens.Budget
	model          string
	maxRounds      int
	running        atomic.Bool
}

// NewLoop creates a new agent loop.
func NewLoop(opts LoopOptions) *Loop {
	maxRounds := opts.MaxRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxRounds
	}
	registry := opts.Registry
	if registry == nil {
		registry = tools.NewRegistry()
	}
	budget := opts.Budget
	if budget.TotalTokens == 0 {
		budget = tokens.DefaultBudget()
	}
	model := opts.Model
	if model == "" && opts.Provider != nil {
		model = opts.Provider.DefaultModel()
	}

	loop := &Loop{
		bus:            opts.Bus,
		provider:       opts.Provider,
		transcript:     opts.Transcript,
		retriever:      opts.Retriever,
		geo:            opts.Geo,
		registry:       registry,
		contextBuilder: NewContextBuilder(opts.Assistant),
		budget:         budget,
		model:          model,
		maxRounds:      maxRounds,
	}
	var store HistoryStore
	if opts.Transcript != nil {
		store = opts.Transcript
	}
	loop.history = NewHistoryAssembler(store, opts.MinHistory)
	loop.sessions = NewSessionManager(loop.processTurn)
	return loop
}

// Run consumes inbound messages from the bus and routes each to its chat's
// session queue. Blocks until the context is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	l.running.Store(true)
	l.sessions.Start(ctx)
	defer l.sessions.Shutdown()

	l.bus.SubscribeStop(func(sig *bus.StopSignal) {
		l.sessions.Stop(sig.Channel, sig.ChatID)
	})

	slog.Info("Agent loop started", "model", l.model)
	for l.running.Load() {
		msg, err := l.bus.ConsumeInbound(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Error("Failed to consume message", "error", err)
			continue
		}
		if msg.FromAgent {
			continue
		}
		l.sessions.Dispatch(msg)
	}
	return nil
}

// Stop signals the run loop to exit after the current consume.
func (l *Loop) Stop() {
	l.running.Store(false)
}

// Sessions exposes the session manager for idle reaping.
func (l *Loop) Sessions() *SessionManager {
	return l.sessions
}

// processTurn handles one inbound message end to end. Exactly one final
// update is published per turn, on both the success and the error path.
func (l *Loop) processTurn(ctx context.Context, msg *bus.InboundMessage) {
	env := envelope.Decode(msg.Content)
	locale := envelope.NormalizeLocale(env.Locale)
	replyID := uuid.NewString()
	pub := NewPublisher(l.bus, msg.Channel, msg.ChatID, replyID, msg.TraceID)

	pub.PublishStatus(bus.AIStateThinking)

	// Knowledge retrieval and location resolution are independent.
	var knowledge, place string
	var wg sync.WaitGroup
	if l.retriever != nil && env.Text != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			knowledge = l.retriever.Retrieve(ctx, env.Text)
		}()
	}
	if l.geo != nil && env.Location != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			place = l.geo.Resolve(ctx, env.Location.Lat, env.Location.Long)
		}()
	}
	wg.Wait()

	allowance := l.budget.HistoryAllowance(tokens.Estimate(knowledge))
	history := l.history.Assemble(ctx, msg.Channel, msg.ChatID, allowance)

	if l.transcript != nil {
		if err := l.transcript.Append(ctx, &transcript.Message{
			MessageID: msg.MessageID,
			Channel:   msg.Channel,
			ChatID:    msg.ChatID,
			SenderID:  msg.SenderID,
			Content:   msg.Content,
		}); err != nil {
			slog.Warn("Failed to store inbound message", "message_id", msg.MessageID, "error", err)
		}
	}

	system := l.contextBuilder.BuildSystemPrompt(locale, place, knowledge)
	messages := make([]provider.Message, 0, len(history)+2)
	messages = append(messages, provider.Message{Role: "system", Content: system})
	messages = append(messages, history...)
	messages = append(messages, provider.Message{Role: "user", Content: env.Text})

	text, lang, err := l.runCompletion(ctx, pub, messages, env.Text, place)
	if err != nil {
		slog.Error("Turn failed", "channel", msg.Channel, "chat_id", msg.ChatID, "error", err)
		pub.PublishStatus(bus.AIStateError)
		pub.PublishFinal(envelope.FallbackEnvelope(locale))
		return
	}

	// Re-encode so the final update is always a valid response envelope
	// even when the model strayed or the stream was stopped mid-envelope.
	if lang == "" {
		lang = locale
	}
	final := envelope.Encode(envelope.NormalizeLocale(lang), text)
	pub.PublishFinal(final)
	pub.PublishClear()

	if l.transcript != nil {
		if err := l.transcript.Append(ctx, &transcript.Message{
			MessageID: replyID,
			Channel:   msg.Channel,
			ChatID:    msg.ChatID,
			SenderID:  "agent",
			Content:   final,
			FromAgent: true,
		}); err != nil {
			slog.Warn("Failed to store reply", "message_id", replyID, "error", err)
		}
	}
}

// runCompletion drives the streaming rounds until the provider finishes a
// round with no pending tool calls, the round cap is hit, or the turn is
// cancelled. Returns the accumulated decoded answer text and its locale.
func (l *Loop) runCompletion(ctx context.Context, pub *Publisher, messages []provider.Message, userText, place string) (string, string, error) {
	toolDefs := l.registry.Definitions()
	var text, lang string

	for round := 0; round < l.maxRounds; round++ {
		pub.PublishStatus(bus.AIStateGenerating)

		stream, err := l.provider.ChatStream(ctx, &provider.ChatRequest{
			Messages:    messages,
			Tools:       toolDefs,
			Model:       l.model,
			MaxTokens:   4096,
			Temperature: 0.7,
		})
		if err != nil {
			if ctx.Err() != nil {
				// A stop signal ends the turn with whatever text exists.
				return text, lang, nil
			}
			return "", "", fmt.Errorf("completion request failed: %w", err)
		}

		roundRaw, calls, stopped, err := l.consumeStream(ctx, stream, pub, text)
		stream.Close()
		if err != nil {
			return "", "", err
		}
		// Each round streams its own envelope; decode it now so a tool
		// round's preamble text cannot mask a later round's answer.
		out, _ := envelope.DecodeIncremental(roundRaw)
		if out.Locale != "" {
			lang = out.Locale
		}
		text = joinText(text, out.Text)
		if stopped {
			slog.Info("Generation stopped by user", "round", round)
			return text, lang, nil
		}
		if len(calls) == 0 {
			return text, lang, nil
		}

		pub.PublishStatus(bus.AIStateExternalSources)
		messages = append(messages, provider.Message{
			Role:      "assistant",
			Content:   roundRaw,
			ToolCalls: calls,
		})
		for _, tc := range calls {
			start := time.Now()
			result := l.dispatchTool(ctx, tc, userText, place)
			slog.Debug("Tool executed", "name", tc.Name, "duration_ms", time.Since(start).Milliseconds(), "result_length", len(result))
			messages = append(messages, provider.Message{
				Role:       "tool",
				Content:    result,
				ToolCallID: tc.ID,
			})
		}
	}

	slog.Warn("Tool round cap reached, forcing termination", "rounds", l.maxRounds)
	if text == "" {
		return "", "", errors.New("no answer produced within the tool round cap")
	}
	return text, lang, nil
}

// joinText concatenates decoded round texts, separating non-empty parts.
func joinText(prior, next string) string {
	if prior == "" {
		return next
	}
	if next == "" {
		return prior
	}
	return prior + "\n\n" + next
}

// consumeStream reads one round's events. Text deltas accumulate and feed
// throttled partial publishes; tool-call deltas merge by index and are
// finalized only after the stream ends. priorText is the decoded text of
// earlier rounds, prefixed onto partials.
func (l *Loop) consumeStream(ctx context.Context, stream *provider.Stream, pub *Publisher, priorText string) (string, []provider.ToolCall, bool, error) {
	acc := provider.NewCallAccumulator()
	var roundText strings.Builder

	for {
		ev, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return roundText.String(), nil, true, nil
			}
			return "", nil, false, fmt.Errorf("stream read failed: %w", err)
		}

		switch ev.Type {
		case provider.EventTextDelta:
			roundText.WriteString(ev.Text)
			partial, _ := envelope.DecodeIncremental(roundText.String())
			pub.PublishPartial(joinText(priorText, partial.Text))
		case provider.EventToolCallDelta:
			acc.Add(ev.ToolCall)
		case provider.EventFinish:
			// Finish reasons are informational; EOF ends the round.
		}
	}

	return roundText.String(), acc.Finalize(), false, nil
}

// dispatchTool routes one finalized tool call. Failures come back as
// readable tool results so the next round can react; an unknown tool name
// yields a synthetic result rather than aborting the turn.
func (l *Loop) dispatchTool(ctx context.Context, tc provider.ToolCall, userText, place string) string {
	if _, ok := l.registry.Get(tc.Name); !ok {
		slog.Warn("Unknown tool requested", "name", tc.Name)
		return fmt.Sprintf("Tool %q is not available.", tc.Name)
	}
	if tc.Arguments == nil {
		return fmt.Sprintf("Tool %s failed: arguments were not valid JSON.", tc.Name)
	}

	params := tc.Arguments
	switch tc.Name {
	case tools.ToolSearch:
		// Geo-scoped queries carry the resolved place name, never raw
		// coordinates.
		if place != "" && place != geo.DefaultPlace {
			if q, ok := params["query"].(string); ok && geo.GeoScoped(q) {
				scoped := make(map[string]any, len(params))
				for k, v := range params {
					scoped[k] = v
				}
				scoped["query"] = q + " " + place
				params = scoped
			}
		}
	case tools.ToolAlert:
		params = tools.WithUserMessage(params, userText)
	}

	result, err := l.registry.Execute(ctx, tc.Name, params)
	if err != nil {
		return fmt.Sprintf("Tool %s failed: %v", tc.Name, err)
	}
	return result
}
