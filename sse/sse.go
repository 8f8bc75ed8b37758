// Package sse splits a raw server-sent-events byte stream into frames.
//
// Chunks arrive at arbitrary granularity: one frame may span several chunks
// and one chunk may carry several frames. The [Demuxer] buffers the
// unterminated tail between pushes and yields only complete data lines.
package sse

import (
	"bytes"
	"strings"
)

const (
	dataMarker   = "data:"
	doneSentinel = "[DONE]"
)

// Frame is one data line of the stream.
type Frame struct {
	Payload string // data marker and surrounding whitespace removed
	Done    bool   // payload was the [DONE] sentinel
}

// Demuxer turns raw chunks into frames. The zero value is ready to use.
// A Demuxer is not safe for concurrent use.
type Demuxer struct {
	buf  []byte
	done bool
}

// Push appends chunk to the buffer and returns every frame it completed, in
// order. Blank lines and lines without the data marker are discarded. After
// the [DONE] sentinel has been returned, Push returns nil.
func (d *Demuxer) Push(chunk []byte) []Frame {
	if d.done {
		return nil
	}
	d.buf = append(d.buf, chunk...)

	var frames []Frame
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		line := string(d.buf[:i])
		d.buf = d.buf[i+1:]
		if f, ok := d.frame(line); ok {
			frames = append(frames, f)
			if f.Done {
				d.buf = nil
				break
			}
		}
	}
	// Compact so the backing array does not grow without bound.
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return frames
}

// Close treats any unterminated tail as a final line and returns its frame,
// if any. It is called once the transport reports end of stream.
func (d *Demuxer) Close() []Frame {
	if d.done || len(d.buf) == 0 {
		d.buf = nil
		return nil
	}
	line := string(d.buf)
	d.buf = nil
	if f, ok := d.frame(line); ok {
		return []Frame{f}
	}
	return nil
}

// Done reports whether the [DONE] sentinel has been seen.
func (d *Demuxer) Done() bool {
	return d.done
}

func (d *Demuxer) frame(line string) (Frame, bool) {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return Frame{}, false
	}
	payload, ok := strings.CutPrefix(line, dataMarker)
	if !ok {
		// event:, id:, retry:, comments and keep-alives.
		return Frame{}, false
	}
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return Frame{}, false
	}
	if payload == doneSentinel {
		d.done = true
		return Frame{Payload: payload, Done: true}, true
	}
	return Frame{Payload: payload}, true
}
