package channels

import (
	"testing"

	"github.com/CareClaw/CareClaw/internal/bus"
	"github.com/CareClaw/CareClaw/internal/config"
)

func newKafka() *KafkaChannel {
	return NewKafkaChannel(config.KafkaConfig{}, bus.NewMessageBus())
}

func TestDecodeInboundMessage(t *testing.T) {
	c := newKafka()
	value := []byte(`{"chat_id":"chat-1","sender_id":"user-1","message_id":"m1","trace_id":"t1","body":"{\"text\":\"hello\"}"}`)

	inbound, stop, err := c.decodeInbound(nil, value)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if stop != nil {
		t.Fatal("message record decoded as stop signal")
	}
	if inbound.Channel != "kafka" || inbound.ChatID != "chat-1" || inbound.SenderID != "user-1" {
		t.Errorf("unexpected inbound: %+v", inbound)
	}
	if inbound.Content != `{"text":"hello"}` {
		t.Errorf("body not preserved: %q", inbound.Content)
	}
}

func TestDecodeInboundStopSignal(t *testing.T) {
	c := newKafka()
	_, stop, err := c.decodeInbound(nil, []byte(`{"type":"stop","chat_id":"chat-1"}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if stop == nil || stop.ChatID != "chat-1" {
		t.Fatalf("expected stop signal, got %+v", stop)
	}
}

func TestDecodeInboundKeyFallback(t *testing.T) {
	c := newKafka()
	inbound, _, err := c.decodeInbound([]byte("chat-from-key"), []byte(`{"body":"hi"}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if inbound.ChatID != "chat-from-key" {
		t.Errorf("key fallback not applied: %q", inbound.ChatID)
	}
	if inbound.MessageID == "" {
		t.Error("missing message id should be synthesized")
	}
}

func TestDecodeInboundRejectsGarbage(t *testing.T) {
	c := newKafka()
	cases := map[string][]byte{
		"not json":   []byte("not json at all"),
		"no chat id": []byte(`{"body":"hi"}`),
		"empty body": []byte(`{"chat_id":"c"}`),
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			key := []byte(nil)
			if name == "empty body" || name == "not json" {
				key = []byte("c")
			}
			if _, _, err := c.decodeInbound(key, value); err == nil {
				t.Error("expected decode error")
			}
		})
	}
}
