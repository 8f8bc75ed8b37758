package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/fwojciec/relay"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// finalize flushes staged reasoning, renders the final content and commits it
// once. A failed commit is reported but leaves the in-memory result intact.
func (c *Controller) finalize(ctx context.Context, span trace.Span, s *Session, end ending, transportErr error) {
	s.setState(StateFinalizing)
	s.acc.Flush()
	snap := s.acc.Snapshot()

	var (
		status relay.Status
		err    error
	)
	switch {
	case snap.Err != nil:
		status = relay.StatusError
		err = &relay.StreamError{Message: snap.Err.Message, Code: snap.Err.Code}
	case end == endCancelled:
		status = relay.StatusCancelled
	case end == endTransport:
		status = relay.StatusError
		err = fmt.Errorf("engine: transport: %w", transportErr)
	default:
		status = relay.StatusCompleted
	}

	msg := relay.Message{
		ID:             s.MessageID,
		ConversationID: s.ConversationID,
		Role:           relay.RoleAssistant,
		Content:        relay.RenderContent(snap.Text, snap.References),
		Thinking:       snap.Thinking,
		Provider:       s.Provider,
		Model:          s.Model,
		Status:         status,
		CreatedAt:      s.StartedAt,
		UpdatedAt:      c.now(),
	}
	if err != nil {
		msg.Error = err.Error()
	}

	// The commit must survive cancellation of the session context.
	pctx := context.WithoutCancel(ctx)
	perr := c.repo.Update(pctx, msg)
	if errors.Is(perr, relay.ErrMessageNotFound) {
		// The placeholder never made it to the store.
		perr = c.repo.Insert(pctx, msg)
	}
	if perr == nil {
		perr = c.repo.Save(pctx)
	}
	if perr != nil {
		perr = fmt.Errorf("engine: persist message %s: %w", s.MessageID, perr)
		c.logger.Warn("persist message failed", "message_id", s.MessageID, "error", perr)
	}

	s.result = Result{Message: msg, Status: status, Err: err, PersistErr: perr}
	s.setState(StateTerminated)

	span.SetAttributes(attribute.String("relay.status", string(status)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	c.logger.Info("session finished",
		"message_id", s.MessageID,
		"provider", s.Provider,
		"status", status,
		"duration", c.now().Sub(s.StartedAt),
		"text_bytes", len(snap.Text),
		"thinking_bytes", len(snap.Thinking),
		"references", len(snap.References),
	)
	c.observe(s, status, snap, err)
}
