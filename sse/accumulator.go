// Package sse implements the copilot SSE wire protocol: frame
// accumulation over arbitrarily chunked transport reads, and
// classification of complete frames into typed stream events.
//
// Frame grammar: records separated by a blank line; a record is either a
// comment line starting with ":" (heartbeat) or a pair of lines
// "event: <name>" and "data: <json>".
package sse

import "strings"

// FrameDelimiter separates SSE records on the wire.
const FrameDelimiter = "\n\n"

// Accumulator buffers incoming transport text and splits it into complete
// frames. Incomplete trailing data is retained across calls, so frame
// output is invariant under how the bytes were chunked.
//
// Pure buffering; no parsing. Not safe for concurrent use — one
// accumulator per stream.
type Accumulator struct {
	buf string
}

// Append adds a chunk to the buffer and returns all frames completed by
// it, in arrival order. The trailing piece after the last delimiter
// (possibly empty) becomes the new buffer. Empty pieces produced by
// consecutive delimiters are dropped; non-empty frames never are.
//
// CRLF line endings are normalized to LF before splitting, so CRLF
// streams frame identically to LF streams. A CR pair split across two
// chunks is handled by the retained remainder.
func (a *Accumulator) Append(chunk string) []string {
	a.buf = strings.ReplaceAll(a.buf+chunk, "\r\n", "\n")

	if !strings.Contains(a.buf, FrameDelimiter) {
		return nil
	}

	parts := strings.Split(a.buf, FrameDelimiter)
	a.buf = parts[len(parts)-1]

	frames := make([]string, 0, len(parts)-1)
	for _, p := range parts[:len(parts)-1] {
		if p != "" {
			frames = append(frames, p)
		}
	}
	return frames
}

// Pending returns the retained incomplete remainder. A non-empty value at
// stream end means the transport closed mid-frame.
func (a *Accumulator) Pending() string {
	return a.buf
}
