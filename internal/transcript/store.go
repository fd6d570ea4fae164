// Package transcript persists the per-chat conversation log backing
// history assembly and idempotent message updates.
package transcript

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Message is one stored transport message. Content carries the raw
// envelope body as it appeared on the wire.
type Message struct {
	ID        int64     `json:"id"`
	MessageID string    `json:"message_id"`
	Channel   string    `json:"channel"`
	ChatID    string    `json:"chat_id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	FromAgent bool      `json:"from_agent"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the SQLite-backed transcript.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the transcript database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open transcript db: %w", err)
	}
	// modernc/sqlite serializes writes; a single writer avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewStore wraps an existing database connection (used by tests).
func NewStore(db *sql.DB) (*Store, error) {
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			message_id TEXT NOT NULL UNIQUE,
			channel    TEXT NOT NULL,
			chat_id    TEXT NOT NULL,
			sender_id  TEXT NOT NULL DEFAULT '',
			content    TEXT NOT NULL,
			from_agent INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(channel, chat_id, id DESC);
	`)
	if err != nil {
		return fmt.Errorf("migrate transcript schema: %w", err)
	}
	return nil
}

// DB exposes the underlying connection so co-located stores (the SQLite
// vector store) can share one database file.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append stores one message. Re-appending the same message id replaces its
// content, keeping appends idempotent for at-least-once channels.
func (s *Store) Append(ctx context.Context, msg *Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (message_id, channel, chat_id, sender_id, content, from_agent)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(message_id) DO UPDATE SET content = excluded.content
	`, msg.MessageID, msg.Channel, msg.ChatID, msg.SenderID, msg.Content, boolToInt(msg.FromAgent))
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// SetText is the idempotent "set text" operation keyed by message id.
// Setting the same text twice is a no-op.
func (s *Store) SetText(ctx context.Context, messageID, content string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE messages SET content = ? WHERE message_id = ?
	`, content, messageID)
	if err != nil {
		return fmt.Errorf("set message text: %w", err)
	}
	return nil
}

// Recent returns up to limit messages for one chat, most recent first.
func (s *Store) Recent(ctx context.Context, channel, chatID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message_id, channel, chat_id, sender_id, content, from_agent, created_at
		FROM messages
		WHERE channel = ? AND chat_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, channel, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var fromAgent int
		if err := rows.Scan(&m.ID, &m.MessageID, &m.Channel, &m.ChatID, &m.SenderID, &m.Content, &fromAgent, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.FromAgent = fromAgent != 0
		out = append(out, m)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
