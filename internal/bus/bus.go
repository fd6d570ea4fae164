// Package bus provides the async message bus for channel-agent communication.
package bus

import (
	"context"
	"sync"
	"time"
)

// InboundMessage represents a message from a channel to the agent. Content
// carries the raw envelope body; decoding is the agent's job.
type InboundMessage struct {
	Channel   string    `json:"channel"`
	ChatID    string    `json:"chat_id"`
	SenderID  string    `json:"sender_id"`
	MessageID string    `json:"message_id"`
	TraceID   string    `json:"trace_id"`
	Content   string    `json:"content"`
	FromAgent bool      `json:"from_agent"`
	Timestamp time.Time `json:"timestamp"`
}

// UpdateMessage is an idempotent "set text" operation on the agent's reply
// message, keyed by message id. Non-final updates carry streaming partials;
// the final update carries the authoritative full text.
type UpdateMessage struct {
	Channel   string `json:"channel"`
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id"`
	TraceID   string `json:"trace_id"`
	Content   string `json:"content"`
	Final     bool   `json:"final"`
}

// AIState enumerates the visible agent states published to the transport.
type AIState string

const (
	AIStateThinking        AIState = "AI_STATE_THINKING"
	AIStateGenerating      AIState = "AI_STATE_GENERATING"
	AIStateExternalSources AIState = "AI_STATE_EXTERNAL_SOURCES"
	AIStateError           AIState = "AI_STATE_ERROR"
)

// Status event types on the wire.
const (
	StatusUpdate = "ai_indicator.update"
	StatusClear  = "ai_indicator.clear"
)

// StatusEvent is an ai_indicator event for one message.
type StatusEvent struct {
	Channel   string  `json:"channel"`
	ChatID    string  `json:"chat_id"`
	MessageID string  `json:"message_id"`
	Type      string  `json:"type"`
	State     AIState `json:"ai_state,omitempty"`
}

// StopSignal asks the agent to stop generating for one chat.
type StopSignal struct {
	Channel string `json:"channel"`
	ChatID  string `json:"chat_id"`
}

// MessageBus decouples channels from the agent core.
type MessageBus struct {
	inbound chan *InboundMessage
	updates chan *UpdateMessage
	status  chan *StatusEvent

	updateSubs map[string][]func(*UpdateMessage)
	statusSubs map[string][]func(*StatusEvent)
	stopSubs   []func(*StopSignal)
	mu         sync.RWMutex
}

// NewMessageBus creates a new message bus.
func NewMessageBus() *MessageBus {
	return &MessageBus{
		inbound:    make(chan *InboundMessage, 100),
		updates:    make(chan *UpdateMessage, 100),
		status:     make(chan *StatusEvent, 100),
		updateSubs: make(map[string][]func(*UpdateMessage)),
		statusSubs: make(map[string][]func(*StatusEvent)),
	}
}

// PublishInbound sends a message from a channel to the agent.
func (b *MessageBus) PublishInbound(msg *InboundMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	b.inbound <- msg
}

// ConsumeInbound blocks until a message is available or context is cancelled.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (*InboundMessage, error) {
	select {
	case msg := <-b.inbound:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// PublishUpdate sends a partial or final text update to channels.
func (b *MessageBus) PublishUpdate(msg *UpdateMessage) {
	b.updates <- msg
}

// PublishStatus sends an ai_indicator event to channels.
func (b *MessageBus) PublishStatus(ev *StatusEvent) {
	b.status <- ev
}

// PublishStop notifies the agent that a chat asked to stop generating.
// Stop subscribers run synchronously so the signal outruns queued work.
func (b *MessageBus) PublishStop(sig *StopSignal) {
	b.mu.RLock()
	subs := b.stopSubs
	b.mu.RUnlock()
	for _, cb := range subs {
		cb(sig)
	}
}

// SubscribeUpdates registers a callback for updates to a specific channel.
func (b *MessageBus) SubscribeUpdates(channel string, callback func(*UpdateMessage)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updateSubs[channel] = append(b.updateSubs[channel], callback)
}

// SubscribeStatus registers a callback for status events to a channel.
func (b *MessageBus) SubscribeStatus(channel string, callback func(*StatusEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statusSubs[channel] = append(b.statusSubs[channel], callback)
}

// SubscribeStop registers a callback for stop signals.
func (b *MessageBus) SubscribeStop(callback func(*StopSignal)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopSubs = append(b.stopSubs, callback)
}

// Dispatch runs the outbound dispatcher, fanning updates and status events
// out to the subscribed channels. Should be run as a goroutine.
func (b *MessageBus) Dispatch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-b.updates:
			b.mu.RLock()
			callbacks := b.updateSubs[msg.Channel]
			b.mu.RUnlock()
			for _, cb := range callbacks {
				cb(msg)
			}
		case ev := <-b.status:
			b.mu.RLock()
			callbacks := b.statusSubs[ev.Channel]
			b.mu.RUnlock()
			for _, cb := range callbacks {
				cb(ev)
			}
		}
	}
}

// InboundSize returns the number of pending inbound messages.
func (b *MessageBus) InboundSize() int {
	return len(b.inbound)
}
