// Package badger implements relay.MessageStore on BadgerDB.
//
// Keys:
//
//	msg/<id>                                 JSON-encoded message
//	conv/<hex conversation id>/<created>/<id> empty; orders a conversation
package badger

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fwojciec/relay"
)

// Interface compliance check.
var _ relay.MessageStore = (*Repository)(nil)

// Config holds configuration for the underlying database.
type Config struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string

	// InMemory disables disk persistence. Useful for tests.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives BadgerDB's internal logs. Nil disables them.
	Logger *slog.Logger
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Repository stores messages in BadgerDB. Insert and Update stage messages
// in memory; Save writes them in one transaction.
type Repository struct {
	db *badger.DB

	mu      sync.Mutex
	pending map[string]relay.Message
	order   []string
}

// Open opens the database described by cfg.
func Open(cfg Config) (*Repository, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badger: path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("badger: create directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open database: %w", err)
	}
	return &Repository{db: db, pending: make(map[string]relay.Message)}, nil
}

// Close releases the database. Staged messages are discarded.
func (r *Repository) Close() error {
	r.mu.Lock()
	clear(r.pending)
	r.order = nil
	r.mu.Unlock()
	return r.db.Close()
}

// record is the stored form of a message.
type record struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Thinking       string    `json:"thinking,omitempty"`
	Provider       string    `json:"provider,omitempty"`
	Model          string    `json:"model,omitempty"`
	Status         string    `json:"status,omitempty"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toRecord(m relay.Message) record {
	return record{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           string(m.Role),
		Content:        m.Content,
		Thinking:       m.Thinking,
		Provider:       string(m.Provider),
		Model:          m.Model,
		Status:         string(m.Status),
		Error:          m.Error,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func (rec record) message() relay.Message {
	return relay.Message{
		ID:             rec.ID,
		ConversationID: rec.ConversationID,
		Role:           relay.Role(rec.Role),
		Content:        rec.Content,
		Thinking:       rec.Thinking,
		Provider:       relay.ProviderID(rec.Provider),
		Model:          rec.Model,
		Status:         relay.Status(rec.Status),
		Error:          rec.Error,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}
}

func messageKey(id string) []byte {
	return []byte("msg/" + id)
}

func conversationPrefix(conversationID string) []byte {
	return []byte("conv/" + hex.EncodeToString([]byte(conversationID)) + "/")
}

// indexKey sorts by creation time, then ID, within a conversation.
func indexKey(m relay.Message) []byte {
	var nanos int64
	if !m.CreatedAt.IsZero() {
		nanos = m.CreatedAt.UnixNano()
	}
	return fmt.Appendf(conversationPrefix(m.ConversationID), "%020d/%s", nanos, m.ID)
}

// Insert stages a new message.
func (r *Repository) Insert(_ context.Context, msg relay.Message) error {
	if msg.ID == "" {
		return fmt.Errorf("badger: insert: empty id: %w", relay.ErrValidation)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pending[msg.ID]; ok {
		return fmt.Errorf("badger: insert %s: %w", msg.ID, relay.ErrMessageExists)
	}
	_, err := r.get(msg.ID)
	switch {
	case err == nil:
		return fmt.Errorf("badger: insert %s: %w", msg.ID, relay.ErrMessageExists)
	case !errors.Is(err, relay.ErrMessageNotFound):
		return fmt.Errorf("badger: insert %s: %w", msg.ID, err)
	}
	r.order = append(r.order, msg.ID)
	r.pending[msg.ID] = msg
	return nil
}

// Update stages a replacement for an existing message.
func (r *Repository) Update(_ context.Context, msg relay.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pending[msg.ID]; ok {
		r.pending[msg.ID] = msg
		return nil
	}
	if _, err := r.get(msg.ID); err != nil {
		return fmt.Errorf("badger: update %s: %w", msg.ID, err)
	}
	r.order = append(r.order, msg.ID)
	r.pending[msg.ID] = msg
	return nil
}

// Save writes all staged messages in one transaction.
func (r *Repository) Save(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.order) == 0 {
		return nil
	}

	err := r.db.Update(func(txn *badger.Txn) error {
		for _, id := range r.order {
			m := r.pending[id]
			prev, err := getTxn(txn, id)
			switch {
			case err == nil:
				if err := txn.Delete(indexKey(prev)); err != nil {
					return err
				}
			case !errors.Is(err, relay.ErrMessageNotFound):
				return err
			}
			data, err := json.Marshal(toRecord(m))
			if err != nil {
				return fmt.Errorf("marshal %s: %w", id, err)
			}
			if err := txn.Set(messageKey(id), data); err != nil {
				return err
			}
			if err := txn.Set(indexKey(m), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger: save: %w", err)
	}
	clear(r.pending)
	r.order = r.order[:0]
	return nil
}

// Get returns a committed message by ID.
func (r *Repository) Get(_ context.Context, id string) (relay.Message, error) {
	m, err := r.get(id)
	if err != nil {
		return relay.Message{}, fmt.Errorf("badger: get %s: %w", id, err)
	}
	return m, nil
}

// List returns the committed messages of a conversation in creation order.
func (r *Repository) List(_ context.Context, conversationID string) ([]relay.Message, error) {
	prefix := conversationPrefix(conversationID)
	var msgs []relay.Message
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			// <created>/<id> after the prefix.
			rest := key[len(prefix):]
			if len(rest) < 21 {
				continue
			}
			m, err := getTxn(txn, string(rest[21:]))
			if err != nil {
				return err
			}
			msgs = append(msgs, m)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger: list %s: %w", conversationID, err)
	}
	return msgs, nil
}

func (r *Repository) get(id string) (relay.Message, error) {
	var m relay.Message
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		m, err = getTxn(txn, id)
		return err
	})
	return m, err
}

func getTxn(txn *badger.Txn, id string) (relay.Message, error) {
	item, err := txn.Get(messageKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return relay.Message{}, relay.ErrMessageNotFound
	}
	if err != nil {
		return relay.Message{}, err
	}
	var rec record
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	}); err != nil {
		return relay.Message{}, fmt.Errorf("decode %s: %w", id, err)
	}
	return rec.message(), nil
}
