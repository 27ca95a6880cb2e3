// Package adapter defines the notification boundary for finished sessions.
//
// Adapters publish session completion notifications to downstream
// systems. The caller owns adapter lifecycle; users provide
// configuration only.
package adapter

import "context"

// SessionCompletedEvent is the payload published when a streaming
// session reaches a terminal state.
type SessionCompletedEvent struct {
	EventType       string  `json:"event_type"` // always "session_completed"
	SessionID       string  `json:"session_id"`
	UserID          string  `json:"user_id,omitempty"`
	Model           string  `json:"model,omitempty"`
	JobID           string  `json:"job_id,omitempty"`
	Outcome         string  `json:"outcome"` // done, error, unexpected_end
	Iterations      int     `json:"iterations"`
	ToolsUsed       int     `json:"tools_used"`
	DurationSeconds float64 `json:"duration_seconds"`
	QueueWaitMs     int64   `json:"queue_wait_ms"`
	ContentBytes    int     `json:"content_bytes"`
	ErrorMessage    string  `json:"error_message,omitempty"`
	WillRetry       bool    `json:"will_retry,omitempty"`
	RetryAttempt    int     `json:"retry_attempt,omitempty"`
	Timestamp       string  `json:"timestamp"` // ISO 8601
	Attempt         int     `json:"attempt"`
}

// Adapter publishes session completion events to a downstream system.
// Implementations must be safe for single-use per session.
type Adapter interface {
	// Publish sends a session completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *SessionCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}
