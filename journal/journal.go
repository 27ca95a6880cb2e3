// Package journal persists decoded stream events as length-prefixed
// msgpack frames so a session can be replayed after the fact.
//
// Each frame is a 4-byte big-endian length prefix followed by a
// msgpack-encoded Entry. The format is append-only; a writer crash
// leaves at most one partial trailing frame, which readers surface as a
// partial-frame error after yielding every complete entry before it.
package journal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/assay/types"
)

// Frame size constants.
const (
	// MaxFrameSize is the maximum frame size (16 MiB), including length prefix.
	MaxFrameSize = 16 * 1024 * 1024
	// MaxPayloadSize is the maximum payload size (MaxFrameSize - 4 bytes).
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
)

// FrameErrorKind classifies frame errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated or incomplete frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a frame exceeding MaxFrameSize.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a msgpack decoding error.
	FrameErrorDecode
)

// FrameError represents a frame read or decode error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsPartialFrameError returns true if the error is a truncated frame.
// A partial trailing frame is expected after a writer crash; everything
// read before it is valid.
func IsPartialFrameError(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.Kind == FrameErrorPartial
	}
	return false
}

// Entry is one journaled stream event with its position metadata.
type Entry struct {
	Seq       uint64            `msgpack:"seq"`
	SessionID string            `msgpack:"session_id"`
	Event     types.StreamEvent `msgpack:"event"`
}

// Writer appends stream events to a journal stream.
// Not safe for concurrent use; callers serialize writes.
type Writer struct {
	w         io.Writer
	sessionID string
	seq       uint64
}

// NewWriter creates a journal writer for one session.
func NewWriter(w io.Writer, sessionID string) *Writer {
	return &Writer{w: w, sessionID: sessionID}
}

// Append journals one event. Sequence numbers start at 1 and increase
// by one per appended event.
func (jw *Writer) Append(event types.StreamEvent) error {
	jw.seq++
	entry := Entry{
		Seq:       jw.seq,
		SessionID: jw.sessionID,
		Event:     event,
	}

	payload, err := msgpack.Marshal(&entry)
	if err != nil {
		return &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to encode journal entry",
			Err:  err,
		}
	}
	if len(payload) > MaxPayloadSize {
		return &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(payload), MaxPayloadSize),
		}
	}

	var lengthBuf [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(lengthBuf[:], uint32(len(payload)))
	if _, err := jw.w.Write(lengthBuf[:]); err != nil {
		return fmt.Errorf("failed to write length prefix: %w", err)
	}
	if _, err := jw.w.Write(payload); err != nil {
		return fmt.Errorf("failed to write payload: %w", err)
	}
	return nil
}

// Seq returns the sequence number of the last appended entry.
func (jw *Writer) Seq() uint64 {
	return jw.seq
}

// Reader decodes journal entries from a stream.
type Reader struct {
	r io.Reader
}

// NewReader creates a journal reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Next reads a single entry.
//
// Errors:
//   - io.EOF: journal ended cleanly (no more entries)
//   - *FrameError with Kind=FrameErrorPartial: truncated trailing frame
//   - *FrameError with Kind=FrameErrorTooLarge: frame exceeds limit
//   - *FrameError with Kind=FrameErrorDecode: msgpack decode failure
func (jr *Reader) Next() (*Entry, error) {
	var lengthBuf [LengthPrefixSize]byte
	_, err := io.ReadFull(jr.r, lengthBuf[:])
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read length prefix",
			Err:  err,
		}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])
	if payloadSize > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, MaxPayloadSize),
		}
	}

	payload := make([]byte, payloadSize)
	if _, err := io.ReadFull(jr.r, payload); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read payload",
			Err:  err,
		}
	}

	var entry Entry
	if err := msgpack.Unmarshal(payload, &entry); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode journal entry",
			Err:  err,
		}
	}
	return &entry, nil
}

// Replay feeds every journaled event to apply in order. A truncated
// trailing frame ends the replay without error; all complete entries
// before it are applied.
func (jr *Reader) Replay(apply func(types.StreamEvent)) error {
	for {
		entry, err := jr.Next()
		if err != nil {
			if err == io.EOF || IsPartialFrameError(err) {
				return nil
			}
			return err
		}
		apply(entry.Event)
	}
}
