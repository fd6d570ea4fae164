package transcript

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "transcript.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAppendAndRecent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	msgs := []Message{
		{MessageID: "m1", Channel: "whatsapp", ChatID: "chat-1", SenderID: "user-1", Content: `{"text":"hello"}`},
		{MessageID: "m2", Channel: "whatsapp", ChatID: "chat-1", SenderID: "agent", Content: `{"lang":"en-US","text":"hi there"}`, FromAgent: true},
		{MessageID: "m3", Channel: "whatsapp", ChatID: "chat-1", SenderID: "user-1", Content: `{"text":"how are you"}`},
	}
	for i := range msgs {
		if err := store.Append(ctx, &msgs[i]); err != nil {
			t.Fatalf("Append %s failed: %v", msgs[i].MessageID, err)
		}
	}

	recent, err := store.Recent(ctx, "whatsapp", "chat-1", 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(recent))
	}
	// Most recent first.
	if recent[0].MessageID != "m3" || recent[2].MessageID != "m1" {
		t.Errorf("unexpected order: %s, %s, %s", recent[0].MessageID, recent[1].MessageID, recent[2].MessageID)
	}
	if !recent[1].FromAgent {
		t.Error("expected m2 to be marked from agent")
	}
}

func TestRecentLimitAndIsolation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		msg := Message{MessageID: string(rune('a' + i)), Channel: "kafka", ChatID: "chat-a", Content: "x"}
		if err := store.Append(ctx, &msg); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	other := Message{MessageID: "other", Channel: "kafka", ChatID: "chat-b", Content: "y"}
	if err := store.Append(ctx, &other); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	recent, err := store.Recent(ctx, "kafka", "chat-a", 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected limit 2, got %d", len(recent))
	}
	for _, m := range recent {
		if m.ChatID != "chat-a" {
			t.Errorf("message from wrong chat: %s", m.ChatID)
		}
	}
}

func TestSetTextIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	msg := Message{MessageID: "m1", Channel: "whatsapp", ChatID: "c", Content: "draft", FromAgent: true}
	if err := store.Append(ctx, &msg); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := store.SetText(ctx, "m1", "final text"); err != nil {
			t.Fatalf("SetText attempt %d failed: %v", i+1, err)
		}
	}

	recent, err := store.Recent(ctx, "whatsapp", "c", 1)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 1 || recent[0].Content != "final text" {
		t.Fatalf("expected updated content, got %+v", recent)
	}
}

func TestAppendIdempotentOnMessageID(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := Message{MessageID: "dup", Channel: "whatsapp", ChatID: "c", Content: "one"}
	second := Message{MessageID: "dup", Channel: "whatsapp", ChatID: "c", Content: "two"}
	if err := store.Append(ctx, &first); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.Append(ctx, &second); err != nil {
		t.Fatalf("re-Append failed: %v", err)
	}

	recent, err := store.Recent(ctx, "whatsapp", "c", 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("expected 1 message after duplicate append, got %d", len(recent))
	}
	if recent[0].Content != "two" {
		t.Errorf("expected latest content, got %q", recent[0].Content)
	}
}
