// Package engine runs streaming sessions: it sends the request, feeds the
// response body through the frame demultiplexer and the provider adapter into
// an accumulator, and commits the assembled message when the stream ends.
//
// A Controller owns at most one active session. Starting a new session
// cancels the previous one and waits for it to commit first. Use one
// Controller per conversation.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/dialect"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName       = "github.com/fwojciec/relay/engine"
	defaultChunkSize = 4096
	maxErrorBodySize = 1 << 20
)

// Controller serializes streaming sessions for one conversation.
type Controller struct {
	repo      relay.MessageRepository
	client    *http.Client
	builder   relay.RequestBuilder
	selectFn  func(relay.ProviderID) relay.Adapter
	observer  relay.Observer
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
	newID     func() string
	interval  time.Duration
	chunkSize int

	startMu sync.Mutex // serializes Start
	mu      sync.Mutex // guards active
	active  *Session
}

// Option configures a [Controller].
type Option func(*Controller)

// WithHTTPClient sets the HTTP client. Its timeouts bound stalled streams.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Controller) { c.client = hc }
}

// WithBuilder overrides the request builder. By default the builder is taken
// from the dialect table by provider ID.
func WithBuilder(b relay.RequestBuilder) Option {
	return func(c *Controller) { c.builder = b }
}

// WithAdapterSelector overrides adapter selection. Defaults to [dialect.Select].
func WithAdapterSelector(fn func(relay.ProviderID) relay.Adapter) Option {
	return func(c *Controller) { c.selectFn = fn }
}

// WithObserver sets the observer notified of status and content changes.
func WithObserver(o relay.Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithTracer sets the tracer. Defaults to the global OpenTelemetry provider.
func WithTracer(t trace.Tracer) Option {
	return func(c *Controller) { c.tracer = t }
}

// WithClock sets the clock used for timestamps and reasoning batching.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithIDGenerator sets the message ID generator. Defaults to UUIDv4.
func WithIDGenerator(fn func() string) Option {
	return func(c *Controller) { c.newID = fn }
}

// WithFlushInterval overrides the reasoning batching interval.
func WithFlushInterval(d time.Duration) Option {
	return func(c *Controller) { c.interval = d }
}

// WithChunkSize sets the read size used on the response body.
func WithChunkSize(n int) Option {
	return func(c *Controller) { c.chunkSize = n }
}

// New creates a Controller that commits messages to repo.
func New(repo relay.MessageRepository, opts ...Option) *Controller {
	c := &Controller{
		repo:      repo,
		client:    http.DefaultClient,
		selectFn:  dialect.Select,
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
		newID:     uuid.NewString,
		interval:  relay.DefaultFlushInterval,
		chunkSize: defaultChunkSize,
	}
	for _, o := range opts {
		o(c)
	}
	if c.observer == nil {
		c.observer = relay.ObserverFunc(func(relay.Update) {})
	}
	if c.chunkSize <= 0 {
		c.chunkSize = defaultChunkSize
	}
	return c
}

// Start begins streaming a reply to history, whose last message must be the
// current user turn. Any active session is cancelled and has committed
// before Start sends the new request.
//
// Cancelling ctx cancels the session, like [Session.Cancel]. An empty
// placeholder message is committed before Start returns, so the reply is
// visible even if the process dies mid-stream.
func (c *Controller) Start(ctx context.Context, cfg relay.ProviderConfig, conversationID string, history []relay.Message) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	if err := relay.ValidateHistory(history); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	c.startMu.Lock()
	defer c.startMu.Unlock()

	if prev := c.Active(); prev != nil {
		c.logger.Debug("cancelling active session", "message_id", prev.MessageID)
		prev.Cancel()
		prev.Wait()
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		MessageID:      c.newID(),
		ConversationID: conversationID,
		Provider:       cfg.Provider,
		Model:          cfg.Model,
		StartedAt:      c.now(),
		cancel:         cancel,
		done:           make(chan struct{}),
	}
	s.acc = relay.NewAccumulator(
		relay.WithNow(c.now),
		relay.WithFlushInterval(c.interval),
		relay.WithChangeHandler(func(snap relay.Snapshot) {
			if s.State() != StateStreaming {
				return
			}
			c.observe(s, relay.StatusStreaming, snap, nil)
		}),
	)

	builder := c.builder
	if builder == nil {
		builder = dialect.Builder(cfg.Provider)
	}
	req, err := builder.BuildRequest(sctx, cfg, history)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("engine: build request: %w", err)
	}
	adapter := c.selectFn(cfg.Provider)

	s.setState(StateRequesting)
	c.insertPlaceholder(sctx, s)
	c.observe(s, relay.StatusLoading, relay.Snapshot{}, nil)

	c.mu.Lock()
	c.active = s
	c.mu.Unlock()

	c.logger.Info("session started",
		"message_id", s.MessageID,
		"conversation_id", conversationID,
		"provider", cfg.Provider,
		"model", cfg.Model,
	)

	go c.run(sctx, s, req, adapter)
	return s, nil
}

// Active returns the session that has not yet terminated, or nil.
func (c *Controller) Active() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil || c.active.State() == StateTerminated {
		return nil
	}
	return c.active
}

// State returns the state of the active session, or StateIdle.
func (c *Controller) State() State {
	if s := c.Active(); s != nil {
		return s.State()
	}
	return StateIdle
}

// Cancel cancels the active session and waits for it to commit.
// It returns relay.ErrNoActiveSession when nothing is streaming.
func (c *Controller) Cancel() (Result, error) {
	s := c.Active()
	if s == nil {
		return Result{}, relay.ErrNoActiveSession
	}
	s.Cancel()
	return s.Wait(), nil
}

func (c *Controller) insertPlaceholder(ctx context.Context, s *Session) {
	msg := relay.Message{
		ID:             s.MessageID,
		ConversationID: s.ConversationID,
		Role:           relay.RoleAssistant,
		Provider:       s.Provider,
		Model:          s.Model,
		Status:         relay.StatusLoading,
		CreatedAt:      s.StartedAt,
		UpdatedAt:      s.StartedAt,
	}
	// A session cancelled before the request goes out still gets its row.
	pctx := context.WithoutCancel(ctx)
	err := c.repo.Insert(pctx, msg)
	if err == nil {
		err = c.repo.Save(pctx)
	}
	if err != nil {
		c.logger.Warn("persist placeholder failed", "message_id", s.MessageID, "error", err)
	}
}

func (c *Controller) observe(s *Session, status relay.Status, snap relay.Snapshot, err error) {
	c.observer.Observe(relay.Update{
		MessageID: s.MessageID,
		Provider:  s.Provider,
		Model:     s.Model,
		Status:    status,
		Snapshot:  snap,
		Err:       err,
	})
}

func sessionAttributes(s *Session) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("relay.message_id", s.MessageID),
		attribute.String("relay.provider", string(s.Provider)),
		attribute.String("relay.model", s.Model),
	}
}
