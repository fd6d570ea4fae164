package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/CareClaw/CareClaw/internal/tokens"
	"github.com/CareClaw/CareClaw/internal/transcript"
)

type fakeHistoryStore struct {
	messages []transcript.Message
	err      error
}

func (f *fakeHistoryStore) Recent(ctx context.Context, channel, chatID string, limit int) ([]transcript.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.messages, nil
}

func envBody(text string) string {
	return fmt.Sprintf(`{"text":%q}`, text)
}

func TestAssembleChronologicalOrder(t *testing.T) {
	store := &fakeHistoryStore{messages: []transcript.Message{
		{MessageID: "m3", Content: envBody("third"), FromAgent: true},
		{MessageID: "m2", Content: envBody("second")},
		{MessageID: "m1", Content: envBody("first")},
	}}
	h := NewHistoryAssembler(store, 2)

	turns := h.Assemble(context.Background(), "whatsapp", "c", 1000)
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	if turns[0].Content != "first" || turns[2].Content != "third" {
		t.Errorf("turns not chronological: %q, %q, %q", turns[0].Content, turns[1].Content, turns[2].Content)
	}
	if turns[2].Role != "assistant" {
		t.Errorf("agent message should map to assistant role, got %q", turns[2].Role)
	}
	if turns[0].Role != "user" {
		t.Errorf("expected user role, got %q", turns[0].Role)
	}
}

func TestAssembleBudgetCap(t *testing.T) {
	long := strings.Repeat("x", 400) // 100 tokens
	var msgs []transcript.Message
	for i := 0; i < 10; i++ {
		msgs = append(msgs, transcript.Message{MessageID: fmt.Sprintf("m%d", i), Content: envBody(long)})
	}
	store := &fakeHistoryStore{messages: msgs}
	h := NewHistoryAssembler(store, 2)

	allowance := 350
	turns := h.Assemble(context.Background(), "whatsapp", "c", allowance)

	used := 0
	for _, turn := range turns {
		used += tokens.Estimate(turn.Content)
	}
	if used > allowance && len(turns) != 2 {
		t.Errorf("budget exceeded beyond the floor: used=%d allowance=%d kept=%d", used, allowance, len(turns))
	}
	if len(turns) < 2 {
		t.Errorf("floor violated: kept %d turns", len(turns))
	}
}

func TestAssembleFloorBeatsBudget(t *testing.T) {
	long := strings.Repeat("y", 4000) // 1000 tokens each
	store := &fakeHistoryStore{messages: []transcript.Message{
		{MessageID: "m2", Content: envBody(long)},
		{MessageID: "m1", Content: envBody(long)},
	}}
	h := NewHistoryAssembler(store, 2)

	turns := h.Assemble(context.Background(), "whatsapp", "c", 0)
	if len(turns) != 2 {
		t.Fatalf("most recent entries must be kept even at zero allowance, got %d", len(turns))
	}
}

func TestAssembleSkipsEmptyAfterDecode(t *testing.T) {
	store := &fakeHistoryStore{messages: []transcript.Message{
		{MessageID: "m3", Content: envBody("kept")},
		{MessageID: "m2", Content: `{"text":""}`},
		{MessageID: "m1", Content: ""},
	}}
	h := NewHistoryAssembler(store, 4)

	turns := h.Assemble(context.Background(), "whatsapp", "c", 1000)
	if len(turns) != 1 || turns[0].Content != "kept" {
		t.Fatalf("expected only the non-empty turn, got %+v", turns)
	}
}

func TestAssembleMalformedBodyDegradesToRawText(t *testing.T) {
	store := &fakeHistoryStore{messages: []transcript.Message{
		{MessageID: "m1", Content: "plain words, not json"},
	}}
	h := NewHistoryAssembler(store, 4)

	turns := h.Assemble(context.Background(), "whatsapp", "c", 1000)
	if len(turns) != 1 || turns[0].Content != "plain words, not json" {
		t.Fatalf("expected raw text fallback, got %+v", turns)
	}
}

func TestAssembleFetchFailureReturnsEmpty(t *testing.T) {
	store := &fakeHistoryStore{err: errors.New("transport down")}
	h := NewHistoryAssembler(store, 2)

	turns := h.Assemble(context.Background(), "whatsapp", "c", 1000)
	if len(turns) != 0 {
		t.Fatalf("expected empty history on fetch failure, got %d turns", len(turns))
	}
}
