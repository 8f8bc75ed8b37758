package json

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fwojciec/relay"
)

// Interface compliance check.
var _ relay.MessageStore = (*Repository)(nil)

// defaultConversation names the file for messages without a conversation ID.
const defaultConversation = "_default"

// Repository stores each conversation in <dir>/<conversation id>.json.
// Insert and Update stage messages in memory; Save rewrites every touched
// conversation file atomically.
type Repository struct {
	dir string
	now func() time.Time

	mu      sync.Mutex
	pending map[string]relay.Message
	order   []string // pending IDs in staging order
}

// Option configures a [Repository].
type Option func(*Repository)

// WithNow sets the clock used for the envelope's updated_at.
func WithNow(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// NewRepository creates a Repository rooted at dir, creating it if needed.
func NewRepository(dir string, opts ...Option) (*Repository, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("json: create directory: %w", err)
	}
	r := &Repository{
		dir:     dir,
		now:     time.Now,
		pending: make(map[string]relay.Message),
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Insert stages a new message.
func (r *Repository) Insert(_ context.Context, msg relay.Message) error {
	if msg.ID == "" {
		return fmt.Errorf("json: insert: empty id: %w", relay.ErrValidation)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pending[msg.ID]; ok {
		return fmt.Errorf("json: insert %s: %w", msg.ID, relay.ErrMessageExists)
	}
	committed, err := r.load(msg.ConversationID)
	if err != nil {
		return fmt.Errorf("json: insert %s: %w", msg.ID, err)
	}
	if indexOf(committed, msg.ID) >= 0 {
		return fmt.Errorf("json: insert %s: %w", msg.ID, relay.ErrMessageExists)
	}
	r.stage(msg)
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
	committed, err := r.load(msg.ConversationID)
	if err != nil {
		return fmt.Errorf("json: update %s: %w", msg.ID, err)
	}
	if indexOf(committed, msg.ID) < 0 {
		return fmt.Errorf("json: update %s: %w", msg.ID, relay.ErrMessageNotFound)
	}
	r.stage(msg)
	return nil
}

// Save writes staged messages. Conversations that were written are cleared
// from the stage even if a later one fails.
func (r *Repository) Save(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var convs []string
	byConv := make(map[string][]relay.Message)
	for _, id := range r.order {
		msg := r.pending[id]
		if _, ok := byConv[msg.ConversationID]; !ok {
			convs = append(convs, msg.ConversationID)
		}
		byConv[msg.ConversationID] = append(byConv[msg.ConversationID], msg)
	}

	defer func() { r.order = r.keepOrder() }()
	for _, conv := range convs {
		if err := r.write(conv, byConv[conv]); err != nil {
			return fmt.Errorf("json: save: %w", err)
		}
		for _, msg := range byConv[conv] {
			delete(r.pending, msg.ID)
		}
	}
	return nil
}

// Get returns a committed message by ID.
func (r *Repository) Get(_ context.Context, id string) (relay.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return relay.Message{}, fmt.Errorf("json: get %s: %w", id, err)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(r.dir, e.Name()))
		if err != nil {
			return relay.Message{}, fmt.Errorf("json: get %s: %w", id, err)
		}
		_, msgs, err := UnmarshalConversation(data)
		if err != nil {
			return relay.Message{}, fmt.Errorf("json: get %s: %s: %w", id, e.Name(), err)
		}
		if i := indexOf(msgs, id); i >= 0 {
			return msgs[i], nil
		}
	}
	return relay.Message{}, fmt.Errorf("json: get %s: %w", id, relay.ErrMessageNotFound)
}

// List returns the committed messages of a conversation in creation order.
// An unknown conversation yields an empty list.
func (r *Repository) List(_ context.Context, conversationID string) ([]relay.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs, err := r.load(conversationID)
	if err != nil {
		return nil, fmt.Errorf("json: list %s: %w", conversationID, err)
	}
	return msgs, nil
}

// Close discards anything still staged.
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.pending)
	r.order = nil
	return nil
}

func (r *Repository) stage(msg relay.Message) {
	if _, ok := r.pending[msg.ID]; !ok {
		r.order = append(r.order, msg.ID)
	}
	r.pending[msg.ID] = msg
}

// keepOrder drops IDs that are no longer pending, preserving staging order.
func (r *Repository) keepOrder() []string {
	out := r.order[:0]
	for _, id := range r.order {
		if _, ok := r.pending[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func (r *Repository) write(conversationID string, staged []relay.Message) error {
	msgs, err := r.load(conversationID)
	if err != nil {
		return err
	}
	for _, m := range staged {
		if i := indexOf(msgs, m.ID); i >= 0 {
			msgs[i] = m
		} else {
			msgs = append(msgs, m)
		}
	}
	path, err := r.path(conversationID)
	if err != nil {
		return err
	}
	data, err := MarshalConversation(conversationID, r.now(), msgs)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return writeFile(path, data)
}

func (r *Repository) load(conversationID string) ([]relay.Message, error) {
	path, err := r.path(conversationID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	_, msgs, err := UnmarshalConversation(data)
	return msgs, err
}

func (r *Repository) path(conversationID string) (string, error) {
	name := conversationID
	if name == "" {
		name = defaultConversation
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid conversation id %q: %w", conversationID, relay.ErrValidation)
	}
	return filepath.Join(r.dir, name+".json"), nil
}

func indexOf(msgs []relay.Message, id string) int {
	for i, m := range msgs {
		if m.ID == id {
			return i
		}
	}
	return -1
}
