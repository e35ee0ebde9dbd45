// Package history persists conversations in SQLite.
//
// A [Store] is bound to one conversation and satisfies the chain's History
// contract: Messages and Append never return errors. Failures are logged and
// kept for inspection through [Store.Err]. The error-returning [Store.List]
// and [Store.Insert] are available to callers that want them.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/germanamz/promptchain/pkg/chats/message"
	"github.com/germanamz/promptchain/pkg/chats/role"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	metadata TEXT,
	created_at INTEGER NOT NULL DEFAULT (unixepoch())
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id);
`

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used to report swallowed failures.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		s.log = log
	}
}

// WithContext sets the context used by Messages and Append, whose signatures
// carry none. Cancelling it aborts their queries. The default never cancels.
func WithContext(ctx context.Context) Option {
	return func(s *Store) {
		s.ctx = ctx
	}
}

// Store is a SQLite-backed conversation history. Messages and Append run
// under the context given with WithContext, not the caller's per-run context.
type Store struct {
	db             *sql.DB
	conversationID string
	log            *slog.Logger
	ctx            context.Context

	mu       sync.Mutex
	err      error
	failures int
}

// Open opens (or creates) the database at path, creating its parent
// directory and schema as needed, and binds the Store to conversationID. An
// empty conversationID starts a new conversation with a random id.
func Open(path, conversationID string, opts ...Option) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("history: create db directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("history: open db at %s: %w", path, err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: ping db at %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: init schema: %w", err)
	}

	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	s := &Store{
		db:             db,
		conversationID: conversationID,
		log:            slog.New(slog.DiscardHandler),
		ctx:            context.Background(),
	}

	for _, o := range opts {
		o(s)
	}

	return s, nil
}

// ConversationID returns the id of the conversation the Store is bound to.
func (s *Store) ConversationID() string {
	return s.conversationID
}

// Messages returns the conversation in insertion order. On failure it logs,
// records the error, and returns what it has (possibly nothing).
func (s *Store) Messages() []message.Message {
	msgs, err := s.List(s.ctx)
	if err != nil {
		s.fail("read history", err)
	}
	return msgs
}

// Append stores msgs in order. On failure it logs and records the error;
// none of msgs are stored.
func (s *Store) Append(msgs ...message.Message) {
	if err := s.Insert(s.ctx, msgs...); err != nil {
		s.fail("append history", err)
	}
}

// Err returns the first failure swallowed by Messages or Append since the
// Store was opened or ResetErr was called.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}

// Failures returns how many Messages or Append calls have failed since the
// Store was opened. Unlike Err it is never reset.
func (s *Store) Failures() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.failures
}

// ResetErr clears the recorded failure.
func (s *Store) ResetErr() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.err = nil
}

func (s *Store) fail(op string, err error) {
	s.log.Error("history: "+op+" failed",
		"conversation", s.conversationID,
		"error", err,
	)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures++
	if s.err == nil {
		s.err = err
	}
}

// List returns the conversation in insertion order.
func (s *Store) List(ctx context.Context) ([]message.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, metadata FROM messages WHERE conversation_id = ? ORDER BY id`,
		s.conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("history: query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []message.Message
	for rows.Next() {
		var (
			r, content string
			meta       sql.NullString
		)
		if err := rows.Scan(&r, &content, &meta); err != nil {
			return nil, fmt.Errorf("history: scan message: %w", err)
		}

		m := message.New(role.Role(r), content)
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &m.Metadata); err != nil {
				return nil, fmt.Errorf("history: decode metadata: %w", err)
			}
		}

		msgs = append(msgs, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate messages: %w", err)
	}

	return msgs, nil
}

// Insert stores msgs in order within a single transaction.
func (s *Store) Insert(ctx context.Context, msgs ...message.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: begin: %w", err)
	}

	for _, m := range msgs {
		var meta sql.NullString
		if len(m.Metadata) > 0 {
			b, err := json.Marshal(m.Metadata)
			if err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("history: encode metadata: %w", err)
			}
			meta = sql.NullString{String: string(b), Valid: true}
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (conversation_id, role, content, metadata) VALUES (?, ?, ?, ?)`,
			s.conversationID, m.Role.String(), m.Content, meta,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("history: insert message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("history: commit: %w", err)
	}

	return nil
}

// Conversations lists every conversation id in the database, oldest first.
func (s *Store) Conversations(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT conversation_id FROM messages GROUP BY conversation_id ORDER BY MIN(id)`,
	)
	if err != nil {
		return nil, fmt.Errorf("history: query conversations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("history: scan conversation: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// Clear deletes every message of the bound conversation.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, s.conversationID); err != nil {
		return fmt.Errorf("history: clear: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return errors.New("history: store not open")
	}
	return s.db.Close()
}
