package session

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/pithecene-io/assay/log"
	"github.com/pithecene-io/assay/metrics"
	"github.com/pithecene-io/assay/sse"
	"github.com/pithecene-io/assay/types"
)

// IngestError classifies stream consumption errors.
type IngestError struct {
	// Kind indicates whether this is a transport error or a cancellation.
	Kind IngestErrorKind
	// Err is the underlying error.
	Err error
}

// IngestErrorKind classifies ingestion errors.
type IngestErrorKind int

const (
	// IngestErrorStream indicates a transport read fault mid-stream.
	IngestErrorStream IngestErrorKind = iota
	// IngestErrorCanceled indicates context cancellation.
	IngestErrorCanceled
)

func (e *IngestError) Error() string {
	return e.Err.Error()
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

// IsStreamError returns true if the error is a transport read fault.
func IsStreamError(err error) bool {
	var ingErr *IngestError
	if errors.As(err, &ingErr) {
		return ingErr.Kind == IngestErrorStream
	}
	return false
}

// IsCanceledError returns true if the error is due to context cancellation.
func IsCanceledError(err error) bool {
	var ingErr *IngestError
	if errors.As(err, &ingErr) {
		return ingErr.Kind == IngestErrorCanceled
	}
	return false
}

// EventObserver is called for every dispatched event, after it has been
// applied to the session. Used for journaling and progress reporting.
type EventObserver func(types.StreamEvent)

// readBufferSize is the transport read granularity. Frame reassembly is
// chunking-invariant, so the exact size only affects syscall count.
const readBufferSize = 4096

// Engine drives the frame accumulator, the event classifier and a session
// from a sequential SSE byte source.
type Engine struct {
	logger    *log.Logger
	collector *metrics.Collector
	observer  EventObserver
}

// NewEngine creates an ingestion engine. collector may be nil; observer
// may be nil.
func NewEngine(logger *log.Logger, collector *metrics.Collector, observer EventObserver) *Engine {
	return &Engine{
		logger:    logger,
		collector: collector,
		observer:  observer,
	}
}

// Consume reads the SSE body until a terminal event, EOF, read error or
// context cancellation, and returns the session result.
//
// Error taxonomy:
//   - terminal done/error events and clean EOF return (result, nil);
//     an upstream error event is a result with State=error, not a Go error
//   - EOF before a terminal event returns a result with
//     State=unexpected_end and nil error
//   - a mid-stream read fault returns the unexpected_end result AND an
//     *IngestError with Kind=IngestErrorStream
//   - cancellation returns (nil, *IngestError) with Kind=IngestErrorCanceled
func (e *Engine) Consume(ctx context.Context, r io.Reader) (*Result, error) {
	sess := New()
	var acc sse.Accumulator
	buf := make([]byte, readBufferSize)

	e.collector.IncSessionStarted()

	for {
		select {
		case <-ctx.Done():
			return nil, &IngestError{Kind: IngestErrorCanceled, Err: ctx.Err()}
		default:
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			for _, frame := range acc.Append(string(buf[:n])) {
				e.dispatch(sess, frame)
				if sess.State().IsTerminal() {
					return e.finish(sess), nil
				}
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				// Stream ended without a terminal event.
				sess.CloseStream()
				return e.finish(sess), nil
			}

			e.logger.Error("stream read error", map[string]any{
				"error": readErr.Error(),
			})
			sess.CloseStream()
			return e.finish(sess), &IngestError{
				Kind: IngestErrorStream,
				Err:  fmt.Errorf("stream read error: %w", readErr),
			}
		}
	}
}

// dispatch classifies one frame and applies the event. Decode failures
// are isolated to the frame: logged, counted, skipped.
func (e *Engine) dispatch(sess *Session, frame string) {
	e.collector.IncFrameReceived()

	event, ok, err := sse.Classify(frame)
	if err != nil {
		e.logger.Warn("malformed event payload", map[string]any{
			"error": err.Error(),
		})
		e.collector.IncDecodeError()
		return
	}
	if !ok {
		e.collector.IncDiscardedFrame()
		return
	}

	if event.Kind == types.EventHeartbeat {
		e.collector.IncHeartbeat()
		sess.Apply(event)
		return
	}

	e.collector.IncEvent(string(event.Kind))
	sess.Apply(event)

	if e.observer != nil {
		e.observer(event)
	}
}

// finish records the terminal outcome and returns the result.
func (e *Engine) finish(sess *Session) *Result {
	result := sess.Result()

	switch result.State {
	case StateDone:
		e.collector.IncSessionCompleted()
		e.logger.Info("session done", map[string]any{
			"iterations": result.Iterations,
			"tools_used": result.ToolsUsed,
			"duration_s": result.DurationSeconds,
		})
	case StateError:
		e.collector.IncSessionFailed()
		e.logger.Error("session failed upstream", map[string]any{
			"error":         result.ErrorMessage,
			"will_retry":    result.WillRetry,
			"retry_attempt": result.RetryAttempt,
		})
	case StateUnexpectedEnd:
		e.collector.IncSessionTruncated()
		e.logger.Warn("stream closed before terminal event", map[string]any{
			"content_len": len(result.Content),
		})
	}

	return result
}
