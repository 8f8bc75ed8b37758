package engine

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/sse"
	"go.opentelemetry.io/otel/trace"
)

// ending describes why the stream stopped.
type ending int

const (
	endEOF       ending = iota // Transport reached end of body.
	endDone                    // [DONE] sentinel.
	endError                   // Provider-reported error event or HTTP status.
	endTransport               // Transport failure.
	endCancelled               // Session or parent context cancelled.
)

// chunk is one read from the response body. Exactly one of data and err is set.
type chunk struct {
	data []byte
	err  error
}

func (c *Controller) run(ctx context.Context, s *Session, req *http.Request, adapter relay.Adapter) {
	defer close(s.done)
	defer s.cancel()

	ctx, span := c.tracer.Start(ctx, "relay.session", trace.WithAttributes(sessionAttributes(s)...))
	defer span.End()

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			c.finalize(ctx, span, s, endCancelled, nil)
			return
		}
		c.finalize(ctx, span, s, endTransport, err)
		return
	}
	// Closing the body releases the connection; it happens after the commit.
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		s.setState(StateFinalizing)
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		if err != nil && ctx.Err() != nil {
			c.finalize(ctx, span, s, endCancelled, nil)
			return
		}
		s.acc.Apply(sse.ErrorFromBody(resp.StatusCode, body))
		c.finalize(ctx, span, s, endError, nil)
		return
	}

	s.setState(StateStreaming)
	end, err := c.consume(ctx, s, resp.Body, adapter)
	c.finalize(ctx, span, s, end, err)
}

// consume pulls chunks from body until the stream ends. It is the only writer
// of the session's accumulator while streaming.
func (c *Controller) consume(ctx context.Context, s *Session, body io.Reader, adapter relay.Adapter) (ending, error) {
	chunks := make(chan chunk)
	stop := make(chan struct{})
	defer close(stop)
	go readChunks(body, c.chunkSize, chunks, stop)

	var (
		demux      sse.Demuxer
		flushTimer *time.Timer
		flushDue   <-chan time.Time
	)
	defer func() {
		if flushTimer != nil {
			flushTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return endCancelled, nil

		case <-flushDue:
			flushDue = nil
			s.acc.Flush()

		case ch := <-chunks:
			frames := demux.Push(ch.data)
			if errors.Is(ch.err, io.EOF) {
				frames = append(frames, demux.Close()...)
			}
			if end, ok := c.apply(s, adapter, frames); ok {
				return end, nil
			}

			if flushDue == nil {
				if wait, pending := s.acc.NextFlush(); pending {
					flushTimer = time.NewTimer(wait)
					flushDue = flushTimer.C
				}
			}

			switch {
			case ch.err == nil:
			case errors.Is(ch.err, io.EOF):
				return endEOF, nil
			case ctx.Err() != nil:
				return endCancelled, nil
			default:
				return endTransport, ch.err
			}
		}
	}
}

// apply threads frames through the adapter into the accumulator, in order.
// It reports whether an event terminated the stream.
func (c *Controller) apply(s *Session, adapter relay.Adapter, frames []sse.Frame) (ending, bool) {
	for _, f := range frames {
		if f.Done {
			s.acc.Apply(relay.EventDone{})
			return endDone, true
		}
		for _, evt := range adapter.Parse(f.Payload) {
			if s.acc.Apply(evt) {
				if _, isErr := evt.(relay.EventError); isErr {
					return endError, true
				}
				return endDone, true
			}
		}
	}
	return 0, false
}

// readChunks is the single producer of the chunk channel. It stops when the
// body fails or ends, or when stop is closed.
func readChunks(body io.Reader, size int, out chan<- chunk, stop <-chan struct{}) {
	for {
		buf := make([]byte, size)
		n, err := body.Read(buf)
		if n > 0 {
			select {
			case out <- chunk{data: buf[:n]}:
			case <-stop:
				return
			}
		}
		if err != nil {
			select {
			case out <- chunk{err: err}:
			case <-stop:
			}
			return
		}
	}
}
