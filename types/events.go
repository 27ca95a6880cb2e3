// Package types defines core domain types for the assay client runtime.
//
//nolint:revive // types is a common Go package naming convention
package types

// EventKind represents the type of a copilot stream event.
type EventKind string

// Event kind constants matching the copilot SSE protocol.
const (
	EventQueued        EventKind = "queued"
	EventStarted       EventKind = "started"
	EventProgress      EventKind = "progress"
	EventContent       EventKind = "content"
	EventFinalResponse EventKind = "final_response"
	EventToolSelected  EventKind = "tool_selected"
	EventToolExecuted  EventKind = "tool_executed"
	EventDone          EventKind = "done"
	EventError         EventKind = "error"
	// EventHeartbeat is a comment-only keepalive frame. Carries no payload;
	// resets idle timers only.
	EventHeartbeat EventKind = "heartbeat"
	// EventUnknown is the forward-compatible arm for event names this
	// client does not recognize. Advances timers, no session transition.
	EventUnknown EventKind = "unknown"
)

// IsTerminal returns true if this event kind ends the job.
func (k EventKind) IsTerminal() bool {
	return k == EventDone || k == EventError
}

// StreamEvent is a typed, parsed copilot stream event. Constructed from a
// raw SSE frame, consumed by the session state machine, immutable once built.
// Only the fields relevant to the event's Kind are populated.
type StreamEvent struct {
	// Kind is the event type discriminator.
	Kind EventKind
	// RawName is the wire event name, kept for unknown kinds.
	RawName string

	// queued
	JobID string

	// progress
	Iteration     int
	MaxIterations int
	Percentage    float64

	// content / final_response
	Delta string
	Chunk string

	// progress / tool_selected / tool_executed
	Tool   string
	Status string

	// done
	Iterations      int
	ToolsUsed       []string
	DurationSeconds float64
	SessionID       string

	// error
	ErrorMessage string
	WillRetry    bool
	RetryAttempt int
}

// Text returns the content fragment carried by this event, if any.
// content events prefer delta with text as fallback; final_response
// events carry chunk. Both feed the same accumulation.
func (e *StreamEvent) Text() string {
	switch e.Kind {
	case EventContent:
		return e.Delta
	case EventFinalResponse:
		return e.Chunk
	default:
		return ""
	}
}

// QueuedPayload is the data payload of a queued event.
type QueuedPayload struct {
	JobID string `json:"job_id"`
}

// ProgressPayload is the data payload of a progress event.
type ProgressPayload struct {
	Iteration     int     `json:"iteration"`
	MaxIterations int     `json:"max_iterations"`
	Tool          string  `json:"tool"`
	Percentage    float64 `json:"percentage"`
}

// ContentPayload is the data payload of a content event.
// Delta is the streamed fragment; Text is a legacy fallback field
// emitted by older backends.
type ContentPayload struct {
	Delta string `json:"delta"`
	Text  string `json:"text"`
}

// FinalResponsePayload is the data payload of a final_response event.
type FinalResponsePayload struct {
	Chunk string `json:"chunk"`
}

// ToolSelectedPayload is the data payload of a tool_selected event.
type ToolSelectedPayload struct {
	Tool string `json:"tool"`
}

// ToolExecutedPayload is the data payload of a tool_executed event.
type ToolExecutedPayload struct {
	Tool   string `json:"tool"`
	Status string `json:"status"`
}

// DonePayload is the data payload of a done event.
type DonePayload struct {
	Iterations      int      `json:"iterations"`
	ToolsUsed       []string `json:"tools_used"`
	DurationSeconds float64  `json:"duration_seconds"`
	SessionID       string   `json:"session_id"`
}

// ErrorPayload is the data payload of an error event.
// WillRetry and RetryAttempt are retry hints only; the session never
// re-issues the request itself.
type ErrorPayload struct {
	Error        string `json:"error"`
	WillRetry    bool   `json:"will_retry"`
	RetryAttempt int    `json:"retry_attempt"`
}
