package types

import (
	"errors"
	"fmt"
)

// SessionMeta contains session identity metadata. Every log entry and
// published completion event carries these fields.
type SessionMeta struct {
	// SessionID is the conversation session identifier. Must be non-empty.
	SessionID string
	// UserID is the requesting user. May be empty for anonymous use.
	UserID string
	// JobID is the server-assigned job identifier. Nil until the queued
	// event reports it.
	JobID *string
	// Attempt is the request attempt number. Starts at 1.
	Attempt int
}

// Validate validates session identity rules:
//   - session_id non-empty
//   - attempt >= 1
func (m *SessionMeta) Validate() error {
	if m.SessionID == "" {
		return errors.New("session_id must be non-empty")
	}
	if m.Attempt < 1 {
		return fmt.Errorf("attempt must be >= 1, got %d", m.Attempt)
	}
	return nil
}
