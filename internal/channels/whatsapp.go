package channels

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/skip2/go-qrcode"

	_ "modernc.org/sqlite"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"github.com/CareClaw/CareClaw/internal/bus"
	"github.com/CareClaw/CareClaw/internal/config"
)

// WhatsAppChannel implements a native WhatsApp client over whatsmeow.
type WhatsAppChannel struct {
	BaseChannel
	config    config.WhatsAppConfig
	client    *whatsmeow.Client
	container *sqlstore.Container
	allowlist map[string]bool

	// replies maps the agent's reply message id to the WhatsApp message id
	// it was first sent as, so later updates become edits.
	mu      sync.Mutex
	replies map[string]types.MessageID
}

// NewWhatsAppChannel creates a new WhatsApp channel.
func NewWhatsAppChannel(cfg config.WhatsAppConfig, messageBus *bus.MessageBus) *WhatsAppChannel {
	allow := make(map[string]bool, len(cfg.AllowFrom))
	for _, from := range cfg.AllowFrom {
		allow[from] = true
	}
	return &WhatsAppChannel{
		BaseChannel: BaseChannel{Bus: messageBus},
		config:      cfg,
		allowlist:   allow,
		replies:     make(map[string]types.MessageID),
	}
}

func (c *WhatsAppChannel) Name() string { return "whatsapp" }

func (c *WhatsAppChannel) Start(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	dbLog := waLog.Stdout("Database", "WARN", true)
	clientLog := waLog.Stdout("Client", "INFO", true)

	dbPath := c.config.StorePath
	if dbPath == "" {
		home, _ := os.UserHomeDir()
		dbPath = filepath.Join(home, ".careclaw", "whatsapp.db")
	}
	os.MkdirAll(filepath.Dir(dbPath), 0755)

	container, err := sqlstore.New(ctx, "sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbLog)
	if err != nil {
		return fmt.Errorf("failed to init whatsapp db: %w", err)
	}
	c.container = container

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("failed to get device: %w", err)
	}

	c.client = whatsmeow.NewClient(deviceStore, clientLog)
	c.client.AddEventHandler(c.eventHandler)

	if c.client.Store.ID == nil {
		qrChan, _ := c.client.GetQRChannel(context.Background())
		if err := c.client.Connect(); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		fmt.Println("WhatsApp: scan this QR code to login:")
		for evt := range qrChan {
			if evt.Event == "code" {
				qrPath := filepath.Join(filepath.Dir(dbPath), "whatsapp-qr.png")
				if err := qrcode.WriteFile(evt.Code, qrcode.Medium, 512, qrPath); err == nil {
					fmt.Printf("WhatsApp login QR code saved to: %s\n", qrPath)
				}
			} else {
				fmt.Println("WhatsApp: login event:", evt.Event)
			}
		}
	} else {
		if err := c.client.Connect(); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		slog.Info("WhatsApp connected")
	}

	c.Bus.SubscribeUpdates(c.Name(), func(msg *bus.UpdateMessage) {
		go c.handleUpdate(msg)
	})
	c.Bus.SubscribeStatus(c.Name(), func(ev *bus.StatusEvent) {
		go c.handleStatus(ev)
	})

	return nil
}

func (c *WhatsAppChannel) Stop() error {
	if c.client != nil {
		c.client.Disconnect()
	}
	if c.container != nil {
		c.container.Close()
	}
	return nil
}

// handleUpdate sends the first update for a reply as a new message and
// applies every later update as an edit, keeping updates idempotent.
func (c *WhatsAppChannel) handleUpdate(msg *bus.UpdateMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	jid, err := types.ParseJID(msg.ChatID)
	if err != nil {
		slog.Error("WhatsApp update with invalid JID", "chat_id", msg.ChatID, "error", err)
		return
	}

	c.mu.Lock()
	existing, sent := c.replies[msg.MessageID]
	c.mu.Unlock()

	content := &waE2E.Message{Conversation: proto.String(msg.Content)}
	if sent {
		_, err = c.client.SendMessage(ctx, jid, c.client.BuildEdit(jid, existing, content))
	} else {
		var resp whatsmeow.SendResponse
		resp, err = c.client.SendMessage(ctx, jid, content)
		if err == nil {
			c.mu.Lock()
			c.replies[msg.MessageID] = resp.ID
			c.mu.Unlock()
		}
	}
	if err != nil {
		slog.Error("WhatsApp send failed", "chat_id", msg.ChatID, "final", msg.Final, "error", err)
		return
	}
	if msg.Final {
		c.mu.Lock()
		delete(c.replies, msg.MessageID)
		c.mu.Unlock()
	}
}

// handleStatus maps agent states onto WhatsApp chat presence.
func (c *WhatsAppChannel) handleStatus(ev *bus.StatusEvent) {
	jid, err := types.ParseJID(ev.ChatID)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.client.SendChatPresence(ctx, jid, presenceFor(ev), types.ChatPresenceMediaText); err != nil {
		slog.Debug("WhatsApp presence update failed", "chat_id", ev.ChatID, "error", err)
	}
}

// presenceFor picks the chat presence for one status event. Working states
// show as composing; clears and errors pause the indicator.
func presenceFor(ev *bus.StatusEvent) types.ChatPresence {
	if ev.Type == bus.StatusUpdate {
		switch ev.State {
		case bus.AIStateThinking, bus.AIStateGenerating, bus.AIStateExternalSources:
			return types.ChatPresenceComposing
		}
	}
	return types.ChatPresencePaused
}

func (c *WhatsAppChannel) eventHandler(evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		if v.Info.IsFromMe {
			return
		}
		content := extractText(v.Message)
		if content == "" {
			return
		}
		sender := v.Info.Sender.User
		if !c.allowedSender(sender) {
			slog.Warn("WhatsApp message from unauthorized sender dropped", "sender", sender)
			return
		}
		c.Bus.PublishInbound(&bus.InboundMessage{
			Channel:   c.Name(),
			ChatID:    v.Info.Chat.String(),
			SenderID:  sender,
			MessageID: string(v.Info.ID),
			TraceID:   fmt.Sprintf("wa-%s", v.Info.ID),
			Content:   content,
			Timestamp: v.Info.Timestamp,
		})
	}
}

// extractText pulls the text body from a WhatsApp message.
func extractText(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if msg.GetConversation() != "" {
		return msg.GetConversation()
	}
	return msg.GetExtendedTextMessage().GetText()
}

// allowedSender reports whether the sender passes the allowlist. An empty
// allowlist admits everyone.
func (c *WhatsAppChannel) allowedSender(sender string) bool {
	if len(c.allowlist) == 0 {
		return true
	}
	return c.allowlist[sender]
}
