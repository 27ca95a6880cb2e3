package sse

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pithecene-io/assay/types"
)

// doneSentinel is the legacy stream terminator emitted by older backends
// as a bare data line instead of a typed done event.
const doneSentinel = "[DONE]"

// MalformedEventError reports invalid JSON in an event's data payload.
// The frame is skipped; the error is reported but never fatal to the
// stream consumer.
type MalformedEventError struct {
	// Event is the wire event name of the offending frame.
	Event string
	// Data is the raw data payload that failed to decode.
	Data string
	// Err is the underlying decode error.
	Err error
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed %s event payload: %v", e.Event, e.Err)
}

func (e *MalformedEventError) Unwrap() error {
	return e.Err
}

// Classify parses one complete frame into a typed StreamEvent.
//
// Returns (event, true, nil) for heartbeats and well-formed event frames,
// (zero, false, nil) for frames matching neither rule (discarded
// silently), and (zero, false, *MalformedEventError) when the data
// payload is invalid JSON.
func Classify(frame string) (types.StreamEvent, bool, error) {
	if strings.HasPrefix(frame, ":") {
		return types.StreamEvent{Kind: types.EventHeartbeat}, true, nil
	}

	name, data, hasData := splitFrame(frame)
	if !hasData {
		return types.StreamEvent{}, false, nil
	}

	// Legacy terminator: bare [DONE] data, with or without an event line.
	if data == doneSentinel {
		return types.StreamEvent{Kind: types.EventDone, RawName: name}, true, nil
	}

	if name == "" {
		return types.StreamEvent{}, false, nil
	}

	event, err := decodeEvent(name, data)
	if err != nil {
		return types.StreamEvent{}, false, err
	}
	return event, true, nil
}

// splitFrame extracts the event name and data payload from a frame's
// lines. Line endings are LF by the time a frame reaches here (the
// accumulator normalizes CRLF). The data prefix is stripped of exactly
// one following space so leading spaces that belong to streamed text
// survive.
func splitFrame(frame string) (name, data string, hasData bool) {
	for _, line := range strings.Split(frame, "\n") {
		switch {
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(line[len("event:"):])
		case strings.HasPrefix(line, "data:"):
			raw := line[len("data:"):]
			raw = strings.TrimPrefix(raw, " ")
			data = raw
			hasData = true
		}
	}
	return name, data, hasData
}

// decodeEvent decodes the JSON payload for a named event into a typed
// StreamEvent. Unrecognized names produce an unknown event after a
// well-formedness check, keeping the consumer forward compatible.
func decodeEvent(name, data string) (types.StreamEvent, error) {
	event := types.StreamEvent{RawName: name}

	fail := func(err error) (types.StreamEvent, error) {
		return types.StreamEvent{}, &MalformedEventError{Event: name, Data: data, Err: err}
	}

	switch types.EventKind(name) {
	case types.EventQueued:
		var p types.QueuedPayload
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return fail(err)
		}
		event.Kind = types.EventQueued
		event.JobID = p.JobID

	case types.EventStarted:
		var p struct{}
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return fail(err)
		}
		event.Kind = types.EventStarted

	case types.EventProgress:
		var p types.ProgressPayload
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return fail(err)
		}
		event.Kind = types.EventProgress
		event.Iteration = p.Iteration
		event.MaxIterations = p.MaxIterations
		event.Tool = p.Tool
		event.Percentage = p.Percentage

	case types.EventContent:
		var p types.ContentPayload
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return fail(err)
		}
		event.Kind = types.EventContent
		delta := p.Delta
		if delta == "" {
			delta = p.Text
		}
		event.Delta = unescapeNewlines(delta)

	case types.EventFinalResponse:
		var p types.FinalResponsePayload
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return fail(err)
		}
		event.Kind = types.EventFinalResponse
		event.Chunk = unescapeNewlines(p.Chunk)

	case types.EventToolSelected:
		var p types.ToolSelectedPayload
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return fail(err)
		}
		event.Kind = types.EventToolSelected
		event.Tool = p.Tool

	case types.EventToolExecuted:
		var p types.ToolExecutedPayload
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return fail(err)
		}
		event.Kind = types.EventToolExecuted
		event.Tool = p.Tool
		event.Status = p.Status

	case types.EventDone:
		var p types.DonePayload
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return fail(err)
		}
		event.Kind = types.EventDone
		event.Iterations = p.Iterations
		event.ToolsUsed = p.ToolsUsed
		event.DurationSeconds = p.DurationSeconds
		event.SessionID = p.SessionID

	case types.EventError:
		var p types.ErrorPayload
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return fail(err)
		}
		event.Kind = types.EventError
		event.ErrorMessage = p.Error
		event.WillRetry = p.WillRetry
		event.RetryAttempt = p.RetryAttempt

	default:
		if !json.Valid([]byte(data)) {
			return fail(fmt.Errorf("invalid JSON payload"))
		}
		event.Kind = types.EventUnknown
	}

	return event, nil
}

// unescapeNewlines restores newlines the backend escapes when chunking
// streamed text onto single data lines.
func unescapeNewlines(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}
