// Package session tracks one copilot job through its streaming lifecycle.
//
// A Session is a state machine driven by dispatched stream events:
//
//	idle → queued → running → {done, error, unexpected_end}
//
// The started label of the protocol collapses into running at the first
// started event; progress, tool and content events keep the session in
// running. Terminal states absorb all later events. All state is owned by
// the single Session instance and discarded with it, so abandoning a
// stream mid-flight leaves nothing behind.
package session

import (
	"strings"
	"time"

	"github.com/pithecene-io/assay/types"
)

// State is a session lifecycle state.
type State string

const (
	// StateIdle is the initial state before any event.
	StateIdle State = "idle"
	// StateQueued means the job is queued server-side.
	StateQueued State = "queued"
	// StateRunning means the job is executing (entered on started, or on
	// the first progress/tool/content event).
	StateRunning State = "running"
	// StateDone is the successful terminal state.
	StateDone State = "done"
	// StateError is the terminal state after an upstream error event.
	StateError State = "error"
	// StateUnexpectedEnd is the terminal state when the transport closed
	// without an explicit terminal event. Callers should treat it as
	// indeterminate (may retry) rather than as a confirmed failure.
	StateUnexpectedEnd State = "unexpected_end"
)

// IsTerminal returns true for states with no outgoing transitions.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateError || s == StateUnexpectedEnd
}

// Result is the terminal outcome of a session.
type Result struct {
	// State is the terminal state reached.
	State State
	// JobID is the server-assigned job id from the queued event.
	JobID string
	// Content is the concatenation of all accumulated content and
	// final_response fragments, in arrival order.
	Content string
	// Iterations, ToolsUsed, DurationSeconds and SessionID come from the
	// done event.
	Iterations      int
	ToolsUsed       []string
	DurationSeconds float64
	SessionID       string
	// ErrorMessage, WillRetry and RetryAttempt come from the error event.
	// The retry hints are informational only; re-issuing the request is
	// the caller's responsibility.
	ErrorMessage string
	WillRetry    bool
	RetryAttempt int
	// QueueWait is the time spent between queued and started.
	QueueWait time.Duration
	// Elapsed is the total session duration.
	Elapsed time.Duration
}

// Session tracks one job's streaming lifecycle. Not safe for concurrent
// use; one session per stream.
type Session struct {
	state State

	jobID     string
	fragments []string

	// per-event telemetry, informational only
	iteration  int
	percentage float64
	tool       string
	toolStatus string

	result Result

	clock          func() time.Time
	startedAt      time.Time
	lastEventAt    time.Time
	lastTransition time.Time
}

// New creates an idle session.
func New() *Session {
	return NewWithClock(time.Now)
}

// NewWithClock creates a session with an injected clock, for tests.
func NewWithClock(clock func() time.Time) *Session {
	now := clock()
	return &Session{
		state:          StateIdle,
		clock:          clock,
		startedAt:      now,
		lastEventAt:    now,
		lastTransition: now,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// JobID returns the server-assigned job id, if reported yet.
func (s *Session) JobID() string {
	return s.jobID
}

// Content returns the accumulated content so far.
func (s *Session) Content() string {
	return strings.Join(s.fragments, "")
}

// Elapsed returns the time since the session was created.
func (s *Session) Elapsed() time.Duration {
	return s.clock().Sub(s.startedAt)
}

// SinceLastEvent returns the time since the last dispatched event,
// heartbeats included. Used for idle detection by the transport layer;
// affects no control decision here.
func (s *Session) SinceLastEvent() time.Duration {
	return s.clock().Sub(s.lastEventAt)
}

// Apply dispatches one stream event into the state machine.
//
// Events arriving after a terminal state are a caller error and are
// ignored. Heartbeats and unknown events advance timers only.
func (s *Session) Apply(event types.StreamEvent) {
	now := s.clock()
	s.lastEventAt = now

	if s.state.IsTerminal() {
		return
	}

	switch event.Kind {
	case types.EventHeartbeat, types.EventUnknown:
		// Timers already advanced; no transition.

	case types.EventQueued:
		s.transition(StateQueued, now)
		s.jobID = event.JobID

	case types.EventStarted:
		s.result.QueueWait = now.Sub(s.lastTransition)
		s.transition(StateRunning, now)

	case types.EventProgress:
		s.transition(StateRunning, now)
		s.iteration = event.Iteration
		s.percentage = event.Percentage
		s.tool = event.Tool

	case types.EventToolSelected:
		s.transition(StateRunning, now)
		s.tool = event.Tool

	case types.EventToolExecuted:
		s.transition(StateRunning, now)
		s.tool = event.Tool
		s.toolStatus = event.Status

	case types.EventContent, types.EventFinalResponse:
		s.transition(StateRunning, now)
		if text := event.Text(); text != "" {
			s.fragments = append(s.fragments, text)
		}

	case types.EventDone:
		s.result.Iterations = event.Iterations
		s.result.ToolsUsed = event.ToolsUsed
		s.result.DurationSeconds = event.DurationSeconds
		s.result.SessionID = event.SessionID
		s.transition(StateDone, now)

	case types.EventError:
		s.result.ErrorMessage = event.ErrorMessage
		s.result.WillRetry = event.WillRetry
		s.result.RetryAttempt = event.RetryAttempt
		s.transition(StateError, now)
	}
}

// CloseStream signals that the transport produced no more chunks. A
// session not yet terminal moves to unexpected_end; terminal sessions are
// unaffected (stream closure after a terminal event is normal).
func (s *Session) CloseStream() {
	if s.state.IsTerminal() {
		return
	}
	s.transition(StateUnexpectedEnd, s.clock())
}

// Result returns the session outcome. Only meaningful once the session is
// terminal; before that it reflects progress so far.
func (s *Session) Result() *Result {
	r := s.result
	r.State = s.state
	r.JobID = s.jobID
	r.Content = s.Content()
	r.Elapsed = s.clock().Sub(s.startedAt)
	return &r
}

func (s *Session) transition(to State, now time.Time) {
	if s.state == to {
		return
	}
	s.state = to
	s.lastTransition = now
}
