package agent

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/CareClaw/CareClaw/internal/bus"
)

// sessionQueueSize bounds how many turns a single chat may queue up.
const sessionQueueSize = 16

// TurnHandler processes one inbound message. The context is cancelled when
// the chat's stop signal fires or the session is disposed.
type TurnHandler func(ctx context.Context, msg *bus.InboundMessage)

// AgentSession binds one channel:chat pair to a single-consumer turn queue.
// Turns within a session run strictly one at a time; sessions run in
// parallel with each other.
type AgentSession struct {
	key     string
	queue   chan *bus.InboundMessage
	dispose context.CancelFunc

	mu              sync.Mutex
	cancelTurn      context.CancelFunc
	lastInteraction time.Time
}

// LastInteraction returns when the session last started a turn.
func (s *AgentSession) LastInteraction() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastInteraction
}

// Stop cancels the in-flight turn, if any. Queued turns still run.
func (s *AgentSession) Stop() {
	s.mu.Lock()
	cancel := s.cancelTurn
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *AgentSession) run(ctx context.Context, handler TurnHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.queue:
			turnCtx, cancel := context.WithCancel(ctx)
			s.mu.Lock()
			s.cancelTurn = cancel
			s.lastInteraction = time.Now()
			s.mu.Unlock()

			handler(turnCtx, msg)

			s.mu.Lock()
			s.cancelTurn = nil
			s.mu.Unlock()
			cancel()
		}
	}
}

// SessionManager owns the per-chat sessions and routes inbound messages to
// their single-consumer queues.
type SessionManager struct {
	handler TurnHandler

	mu       sync.Mutex
	sessions map[string]*AgentSession
	baseCtx  context.Context
	cancel   context.CancelFunc
}

// NewSessionManager creates a manager that runs each turn with handler.
func NewSessionManager(handler TurnHandler) *SessionManager {
	return &SessionManager{
		handler:  handler,
		sessions: make(map[string]*AgentSession),
	}
}

// Start binds the manager to a lifetime context. Sessions created before
// Start use context.Background.
func (m *SessionManager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baseCtx, m.cancel = context.WithCancel(ctx)
}

// Shutdown cancels all sessions and their in-flight turns.
func (m *SessionManager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
	}
	m.sessions = make(map[string]*AgentSession)
}

func sessionKey(channel, chatID string) string {
	return channel + ":" + chatID
}

// Dispatch enqueues one inbound message on its chat's session, creating the
// session on first contact. A full queue drops the message rather than
// blocking the bus consumer.
func (m *SessionManager) Dispatch(msg *bus.InboundMessage) {
	sess := m.getOrCreate(msg.Channel, msg.ChatID)
	select {
	case sess.queue <- msg:
	default:
		slog.Warn("Session queue full, dropping message",
			"channel", msg.Channel, "chat_id", msg.ChatID, "message_id", msg.MessageID)
	}
}

// Stop cancels the in-flight turn for one chat.
func (m *SessionManager) Stop(channel, chatID string) {
	m.mu.Lock()
	sess := m.sessions[sessionKey(channel, chatID)]
	m.mu.Unlock()
	if sess != nil {
		sess.Stop()
	}
}

func (m *SessionManager) getOrCreate(channel, chatID string) *AgentSession {
	key := sessionKey(channel, chatID)
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[key]; ok {
		return sess
	}
	base := m.baseCtx
	if base == nil {
		base = context.Background()
	}
	sessCtx, dispose := context.WithCancel(base)
	sess := &AgentSession{
		key:             key,
		queue:           make(chan *bus.InboundMessage, sessionQueueSize),
		dispose:         dispose,
		lastInteraction: time.Now(),
	}
	m.sessions[key] = sess
	go sess.run(sessCtx, m.handler)
	return sess
}

// Reap disposes sessions idle longer than maxIdle and returns how many
// were removed. Only sessions with an empty queue are eligible.
func (m *SessionManager) Reap(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	m.mu.Lock()
	defer m.mu.Unlock()
	reaped := 0
	for key, sess := range m.sessions {
		if sess.LastInteraction().Before(cutoff) && len(sess.queue) == 0 {
			sess.dispose()
			delete(m.sessions, key)
			reaped++
		}
	}
	return reaped
}
