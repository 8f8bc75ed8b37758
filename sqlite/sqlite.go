// Package sqlite implements relay.MessageStore on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	// register sqlite driver
	_ "modernc.org/sqlite"

	"github.com/fwojciec/relay"
)

// Interface compliance check.
var _ relay.MessageStore = (*Repository)(nil)

// Repository stores messages in a single SQLite table. Insert and Update
// stage messages in memory; Save writes them in one transaction.
type Repository struct {
	db *sql.DB

	mu      sync.Mutex
	pending map[string]relay.Message
	order   []string
}

// New opens (or creates) a SQLite database at path.
func New(path string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("sqlite: create directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
	}

	r := &Repository{db: db, pending: make(map[string]relay.Message)}
	if err := r.initSchema(); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repository) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS messages (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	conversation_id TEXT NOT NULL,
	role TEXT NOT NULL CHECK(role IN ('system','user','assistant')),
	content TEXT NOT NULL DEFAULT '',
	thinking TEXT NOT NULL DEFAULT '',
	provider TEXT NOT NULL DEFAULT '',
	model TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation_created ON messages(conversation_id, created_at, seq);
`
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return nil
}

// Close releases underlying database resources. Staged messages are discarded.
func (r *Repository) Close() error {
	r.mu.Lock()
	clear(r.pending)
	r.order = nil
	r.mu.Unlock()
	return r.db.Close()
}

// Insert stages a new message.
func (r *Repository) Insert(ctx context.Context, msg relay.Message) error {
	if msg.ID == "" {
		return fmt.Errorf("sqlite: insert: empty id: %w", relay.ErrValidation)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pending[msg.ID]; ok {
		return fmt.Errorf("sqlite: insert %s: %w", msg.ID, relay.ErrMessageExists)
	}
	exists, err := r.exists(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("sqlite: insert %s: %w", msg.ID, err)
	}
	if exists {
		return fmt.Errorf("sqlite: insert %s: %w", msg.ID, relay.ErrMessageExists)
	}
	r.order = append(r.order, msg.ID)
	r.pending[msg.ID] = msg
	return nil
}

// Update stages a replacement for an existing message.
func (r *Repository) Update(ctx context.Context, msg relay.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pending[msg.ID]; ok {
		r.pending[msg.ID] = msg
		return nil
	}
	exists, err := r.exists(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("sqlite: update %s: %w", msg.ID, err)
	}
	if !exists {
		return fmt.Errorf("sqlite: update %s: %w", msg.ID, relay.ErrMessageNotFound)
	}
	r.order = append(r.order, msg.ID)
	r.pending[msg.ID] = msg
	return nil
}

// Save writes all staged messages in one transaction.
func (r *Repository) Save(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.order) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: save: begin: %w", err)
	}
	defer tx.Rollback()

	for _, id := range r.order {
		m := r.pending[id]
		_, err := tx.ExecContext(ctx, `
INSERT INTO messages(id, conversation_id, role, content, thinking, provider, model, status, error, created_at, updated_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	conversation_id = excluded.conversation_id,
	role = excluded.role,
	content = excluded.content,
	thinking = excluded.thinking,
	provider = excluded.provider,
	model = excluded.model,
	status = excluded.status,
	error = excluded.error,
	created_at = excluded.created_at,
	updated_at = excluded.updated_at`,
			m.ID,
			m.ConversationID,
			string(m.Role),
			m.Content,
			m.Thinking,
			string(m.Provider),
			m.Model,
			string(m.Status),
			m.Error,
			unixNano(m.CreatedAt),
			unixNano(m.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("sqlite: save %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: save: commit: %w", err)
	}
	clear(r.pending)
	r.order = r.order[:0]
	return nil
}

const selectColumns = `SELECT id, conversation_id, role, content, thinking, provider, model, status, error, created_at, updated_at FROM messages`

// Get returns a committed message by ID.
func (r *Repository) Get(ctx context.Context, id string) (relay.Message, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return relay.Message{}, fmt.Errorf("sqlite: get %s: %w", id, relay.ErrMessageNotFound)
	}
	if err != nil {
		return relay.Message{}, fmt.Errorf("sqlite: get %s: %w", id, err)
	}
	return m, nil
}

// List returns the committed messages of a conversation in creation order.
func (r *Repository) List(ctx context.Context, conversationID string) ([]relay.Message, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+`
WHERE conversation_id = ?
ORDER BY created_at ASC, seq ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list %s: %w", conversationID, err)
	}
	defer rows.Close()

	var msgs []relay.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: list %s: %w", conversationID, err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list %s: %w", conversationID, err)
	}
	return msgs, nil
}

func (r *Repository) exists(ctx context.Context, id string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM messages WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(s scanner) (relay.Message, error) {
	var (
		m                        relay.Message
		role, provider, status   string
		createdNano, updatedNano int64
	)
	if err := s.Scan(
		&m.ID,
		&m.ConversationID,
		&role,
		&m.Content,
		&m.Thinking,
		&provider,
		&m.Model,
		&status,
		&m.Error,
		&createdNano,
		&updatedNano,
	); err != nil {
		return relay.Message{}, err
	}
	m.Role = relay.Role(role)
	m.Provider = relay.ProviderID(provider)
	m.Status = relay.Status(status)
	m.CreatedAt = fromUnixNano(createdNano)
	m.UpdatedAt = fromUnixNano(updatedNano)
	return m, nil
}

// unixNano maps the zero time to 0 so it survives a round trip.
func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
