package agent

import (
	"context"
	"log/slog"

	"github.com/CareClaw/CareClaw/internal/envelope"
	"github.com/CareClaw/CareClaw/internal/provider"
	"github.com/CareClaw/CareClaw/internal/tokens"
	"github.com/CareClaw/CareClaw/internal/transcript"
)

// defaultMinEntries is the number of most recent turns always kept,
// regardless of the remaining history allowance.
const defaultMinEntries = 4

// historyFetchLimit bounds how many transport messages one turn reads.
const historyFetchLimit = 50

// HistoryStore is the slice of the transcript the assembler needs.
type HistoryStore interface {
	Recent(ctx context.Context, channel, chatID string, limit int) ([]transcript.Message, error)
}

// HistoryAssembler turns the transcript into budget-fitted provider turns.
type HistoryAssembler struct {
	store      HistoryStore
	minEntries int
}

// NewHistoryAssembler creates an assembler over the given store.
func NewHistoryAssembler(store HistoryStore, minEntries int) *HistoryAssembler {
	if minEntries <= 0 {
		minEntries = defaultMinEntries
	}
	return &HistoryAssembler{store: store, minEntries: minEntries}
}

// Assemble fetches the chat's recent messages and returns them as provider
// turns, oldest first. The most recent minEntries turns are always kept;
// older turns are dropped once their token cost would exceed allowance.
// History is best-effort: a fetch failure yields an empty sequence.
func (h *HistoryAssembler) Assemble(ctx context.Context, channel, chatID string, allowance int) []provider.Message {
	if h.store == nil {
		return nil
	}
	recent, err := h.store.Recent(ctx, channel, chatID, historyFetchLimit)
	if err != nil {
		slog.Warn("History fetch failed, continuing without history", "channel", channel, "chat_id", chatID, "error", err)
		return nil
	}

	// recent is most-recent-first; accept from newest to oldest.
	var kept []provider.Message
	used := 0
	for _, msg := range recent {
		env := envelope.Decode(msg.Content)
		if env.Text == "" {
			continue
		}
		role := "user"
		if msg.FromAgent {
			role = "assistant"
		}
		cost := tokens.Estimate(env.Text)
		if len(kept) >= h.minEntries && used+cost > allowance {
			break
		}
		kept = append(kept, provider.Message{Role: role, Content: env.Text})
		used += cost
	}

	// Re-order chronologically for the provider.
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return kept
}
