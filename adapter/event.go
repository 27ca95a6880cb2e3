package adapter

import (
	"time"

	"github.com/pithecene-io/assay/session"
	"github.com/pithecene-io/assay/types"
)

// FromResult builds the publishable completion event for a terminal
// session result. model may be empty when the default model was used.
func FromResult(meta *types.SessionMeta, model string, result *session.Result) *SessionCompletedEvent {
	event := &SessionCompletedEvent{
		EventType:       "session_completed",
		SessionID:       meta.SessionID,
		UserID:          meta.UserID,
		Model:           model,
		JobID:           result.JobID,
		Outcome:         string(result.State),
		Iterations:      result.Iterations,
		ToolsUsed:       len(result.ToolsUsed),
		DurationSeconds: result.DurationSeconds,
		QueueWaitMs:     result.QueueWait.Milliseconds(),
		ContentBytes:    len(result.Content),
		ErrorMessage:    result.ErrorMessage,
		WillRetry:       result.WillRetry,
		RetryAttempt:    result.RetryAttempt,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		Attempt:         meta.Attempt,
	}
	return event
}
