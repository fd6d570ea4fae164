package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/CareClaw/CareClaw/internal/bus"
	"github.com/CareClaw/CareClaw/internal/config"
)

// inboundRecord is the wire shape on the inbound topic. Body carries the
// envelope JSON. Type "stop" asks the agent to stop generating for a chat.
type inboundRecord struct {
	Type      string `json:"type,omitempty"`
	ChatID    string `json:"chat_id"`
	SenderID  string `json:"sender_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
	Body      string `json:"body,omitempty"`
}

// KafkaChannel bridges the bus to Kafka topics: one inbound topic of
// envelope records, one topic of text updates and one of status events.
type KafkaChannel struct {
	BaseChannel
	config config.KafkaConfig

	reader  *kafka.Reader
	updates *kafka.Writer
	status  *kafka.Writer
}

// NewKafkaChannel creates a new Kafka channel.
func NewKafkaChannel(cfg config.KafkaConfig, messageBus *bus.MessageBus) *KafkaChannel {
	return &KafkaChannel{
		BaseChannel: BaseChannel{Bus: messageBus},
		config:      cfg,
	}
}

func (c *KafkaChannel) Name() string { return "kafka" }

func (c *KafkaChannel) Start(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}
	if len(c.config.Brokers) == 0 {
		return fmt.Errorf("kafka channel enabled but no brokers configured")
	}

	c.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.config.Brokers,
		Topic:    c.config.InboundTopic,
		GroupID:  c.config.ConsumerGroup,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	c.updates = &kafka.Writer{
		Addr:         kafka.TCP(c.config.Brokers...),
		Topic:        c.config.UpdatesTopic,
		RequiredAcks: kafka.RequireOne,
	}
	c.status = &kafka.Writer{
		Addr:         kafka.TCP(c.config.Brokers...),
		Topic:        c.config.StatusTopic,
		RequiredAcks: kafka.RequireOne,
	}

	c.Bus.SubscribeUpdates(c.Name(), func(msg *bus.UpdateMessage) {
		go c.writeUpdate(msg)
	})
	c.Bus.SubscribeStatus(c.Name(), func(ev *bus.StatusEvent) {
		go c.writeStatus(ev)
	})

	go c.consume(ctx)
	return nil
}

func (c *KafkaChannel) Stop() error {
	if c.reader != nil {
		c.reader.Close()
	}
	if c.updates != nil {
		c.updates.Close()
	}
	if c.status != nil {
		c.status.Close()
	}
	return nil
}

func (c *KafkaChannel) consume(ctx context.Context) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("Kafka read error", "topic", c.config.InboundTopic, "error", err)
			continue
		}
		inbound, stop, err := c.decodeInbound(msg.Key, msg.Value)
		if err != nil {
			slog.Warn("Kafka inbound record dropped", "error", err)
			continue
		}
		if stop != nil {
			c.Bus.PublishStop(stop)
			continue
		}
		c.Bus.PublishInbound(inbound)
	}
}

// decodeInbound parses one inbound record. The message key is the fallback
// chat id when the record omits one.
func (c *KafkaChannel) decodeInbound(key, value []byte) (*bus.InboundMessage, *bus.StopSignal, error) {
	var rec inboundRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		return nil, nil, fmt.Errorf("decode inbound record: %w", err)
	}
	chatID := rec.ChatID
	if chatID == "" {
		chatID = string(key)
	}
	if chatID == "" {
		return nil, nil, fmt.Errorf("inbound record has no chat id")
	}
	if rec.Type == "stop" {
		return nil, &bus.StopSignal{Channel: c.Name(), ChatID: chatID}, nil
	}
	if rec.Body == "" {
		return nil, nil, fmt.Errorf("inbound record has no body")
	}
	messageID := rec.MessageID
	if messageID == "" {
		messageID = fmt.Sprintf("kafka-%s-%d", chatID, time.Now().UnixNano())
	}
	return &bus.InboundMessage{
		Channel:   c.Name(),
		ChatID:    chatID,
		SenderID:  rec.SenderID,
		MessageID: messageID,
		TraceID:   rec.TraceID,
		Content:   rec.Body,
	}, nil, nil
}

func (c *KafkaChannel) writeUpdate(msg *bus.UpdateMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	value, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := c.updates.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.ChatID),
		Value: value,
	}); err != nil {
		slog.Error("Kafka update write failed", "chat_id", msg.ChatID, "final", msg.Final, "error", err)
	}
}

func (c *KafkaChannel) writeStatus(ev *bus.StatusEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	value, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := c.status.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.ChatID),
		Value: value,
	}); err != nil {
		slog.Error("Kafka status write failed", "chat_id", ev.ChatID, "type", ev.Type, "error", err)
	}
}
