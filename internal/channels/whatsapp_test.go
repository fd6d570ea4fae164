package channels

import (
	"testing"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"

	"github.com/CareClaw/CareClaw/internal/bus"
	"github.com/CareClaw/CareClaw/internal/config"
)

func TestExtractText(t *testing.T) {
	tests := []struct {
		name string
		msg  *waE2E.Message
		want string
	}{
		{
			name: "conversation",
			msg:  &waE2E.Message{Conversation: proto.String("hello")},
			want: "hello",
		},
		{
			name: "extended text",
			msg: &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{
				Text: proto.String("quoted reply"),
			}},
			want: "quoted reply",
		},
		{
			name: "nil message",
			msg:  nil,
			want: "",
		},
		{
			name: "no text content",
			msg:  &waE2E.Message{},
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractText(tt.msg); got != tt.want {
				t.Errorf("extractText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPresenceFor(t *testing.T) {
	tests := []struct {
		name string
		ev   *bus.StatusEvent
		want types.ChatPresence
	}{
		{"thinking", &bus.StatusEvent{Type: bus.StatusUpdate, State: bus.AIStateThinking}, types.ChatPresenceComposing},
		{"generating", &bus.StatusEvent{Type: bus.StatusUpdate, State: bus.AIStateGenerating}, types.ChatPresenceComposing},
		{"external sources", &bus.StatusEvent{Type: bus.StatusUpdate, State: bus.AIStateExternalSources}, types.ChatPresenceComposing},
		{"error", &bus.StatusEvent{Type: bus.StatusUpdate, State: bus.AIStateError}, types.ChatPresencePaused},
		{"clear", &bus.StatusEvent{Type: bus.StatusClear}, types.ChatPresencePaused},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := presenceFor(tt.ev); got != tt.want {
				t.Errorf("presenceFor() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAllowedSender(t *testing.T) {
	open := NewWhatsAppChannel(config.WhatsAppConfig{}, bus.NewMessageBus())
	if !open.allowedSender("anyone") {
		t.Error("empty allowlist should admit everyone")
	}

	restricted := NewWhatsAppChannel(config.WhatsAppConfig{
		AllowFrom: []string{"15551234567"},
	}, bus.NewMessageBus())
	if !restricted.allowedSender("15551234567") {
		t.Error("allowlisted sender rejected")
	}
	if restricted.allowedSender("15557654321") {
		t.Error("unlisted sender admitted")
	}
}
