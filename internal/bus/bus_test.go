package bus

import (
	"context"
	"testing"
	"time"
)

func TestInboundRoundTrip(t *testing.T) {
	b := NewMessageBus()
	b.PublishInbound(&InboundMessage{Channel: "kafka", ChatID: "c1", Content: `{"text":"hi"}`})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := b.ConsumeInbound(ctx)
	if err != nil {
		t.Fatalf("ConsumeInbound: %v", err)
	}
	if msg.ChatID != "c1" {
		t.Errorf("chat id = %q", msg.ChatID)
	}
	if msg.Timestamp.IsZero() {
		t.Error("timestamp not stamped")
	}
}

func TestConsumeInboundCancellation(t *testing.T) {
	b := NewMessageBus()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.ConsumeInbound(ctx); err == nil {
		t.Fatal("expected context error")
	}
}

func TestDispatchRoutesByChannel(t *testing.T) {
	b := NewMessageBus()

	gotUpdate := make(chan *UpdateMessage, 1)
	gotStatus := make(chan *StatusEvent, 1)
	other := make(chan *UpdateMessage, 1)
	b.SubscribeUpdates("whatsapp", func(m *UpdateMessage) { gotUpdate <- m })
	b.SubscribeStatus("whatsapp", func(e *StatusEvent) { gotStatus <- e })
	b.SubscribeUpdates("kafka", func(m *UpdateMessage) { other <- m })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Dispatch(ctx)

	b.PublishUpdate(&UpdateMessage{Channel: "whatsapp", MessageID: "m1", Content: "partial", Final: false})
	b.PublishStatus(&StatusEvent{Channel: "whatsapp", MessageID: "m1", Type: StatusUpdate, State: AIStateGenerating})

	select {
	case m := <-gotUpdate:
		if m.MessageID != "m1" || m.Final {
			t.Errorf("update = %+v", m)
		}
	case <-time.After(time.Second):
		t.Fatal("update not dispatched")
	}
	select {
	case e := <-gotStatus:
		if e.State != AIStateGenerating {
			t.Errorf("status = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("status not dispatched")
	}
	select {
	case <-other:
		t.Fatal("update leaked to the wrong channel")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStopSignalSynchronous(t *testing.T) {
	b := NewMessageBus()
	var got *StopSignal
	b.SubscribeStop(func(s *StopSignal) { got = s })

	b.PublishStop(&StopSignal{Channel: "kafka", ChatID: "c9"})
	if got == nil || got.ChatID != "c9" {
		t.Errorf("stop = %+v", got)
	}
}
