package agent

import (
	"time"

	"github.com/CareClaw/CareClaw/internal/bus"
)

// partialInterval is the minimum spacing between partial publishes. This is
// a rate limit only; the final publish always carries the full text.
const partialInterval = time.Second

// Publisher writes one turn's updates and status events to the bus.
// It is owned by a single turn and never shared across goroutines.
type Publisher struct {
	bus         *bus.MessageBus
	channel     string
	chatID      string
	messageID   string
	traceID     string
	lastPartial time.Time
	finalSent   bool
	now         func() time.Time
}

// NewPublisher creates a publisher for one reply message.
func NewPublisher(b *bus.MessageBus, channel, chatID, messageID, traceID string) *Publisher {
	return &Publisher{
		bus:       b,
		channel:   channel,
		chatID:    chatID,
		messageID: messageID,
		traceID:   traceID,
		now:       time.Now,
	}
}

// PublishPartial pushes accumulated text as a non-final update, at most once
// per partialInterval. Skipped publishes are not errors; the next partial or
// the final carries the text.
func (p *Publisher) PublishPartial(text string) {
	if p.finalSent || text == "" {
		return
	}
	now := p.now()
	if now.Sub(p.lastPartial) < partialInterval {
		return
	}
	p.lastPartial = now
	p.bus.PublishUpdate(&bus.UpdateMessage{
		Channel:   p.channel,
		ChatID:    p.chatID,
		MessageID: p.messageID,
		TraceID:   p.traceID,
		Content:   text,
	})
}

// PublishFinal pushes the authoritative full text. Only the first call per
// turn is delivered; the turn's terminal paths all funnel through here.
func (p *Publisher) PublishFinal(text string) {
	if p.finalSent {
		return
	}
	p.finalSent = true
	p.bus.PublishUpdate(&bus.UpdateMessage{
		Channel:   p.channel,
		ChatID:    p.chatID,
		MessageID: p.messageID,
		TraceID:   p.traceID,
		Content:   text,
		Final:     true,
	})
}

// FinalSent reports whether the final update went out.
func (p *Publisher) FinalSent() bool {
	return p.finalSent
}

// PublishStatus emits an ai_indicator.update event with the given state.
func (p *Publisher) PublishStatus(state bus.AIState) {
	p.bus.PublishStatus(&bus.StatusEvent{
		Channel:   p.channel,
		ChatID:    p.chatID,
		MessageID: p.messageID,
		Type:      bus.StatusUpdate,
		State:     state,
	})
}

// PublishClear emits an ai_indicator.clear event.
func (p *Publisher) PublishClear() {
	p.bus.PublishStatus(&bus.StatusEvent{
		Channel:   p.channel,
		ChatID:    p.chatID,
		MessageID: p.messageID,
		Type:      bus.StatusClear,
	})
}
