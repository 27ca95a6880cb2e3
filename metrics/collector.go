// Package metrics provides per-session metrics collection.
//
// The Collector accumulates counters during a single streaming session or
// merge call. It is a leaf package with no internal dependencies. All
// increment methods are nil-receiver safe, so callers that do not care
// about metrics can pass a nil Collector.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all collected metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Session lifecycle
	SessionsStarted   int64
	SessionsCompleted int64
	SessionsFailed    int64
	SessionsTruncated int64

	// Stream consumption
	FramesReceived  int64
	Heartbeats      int64
	EventsByKind    map[string]int64
	DecodeErrors    int64
	DiscardedFrames int64

	// Canonicalization / merge
	ToolCallsDeduped  int64
	DuplicatesDropped int64
	BatchesFailed     int64

	// Archive / adapter
	ArchiveWriteSuccess int64
	ArchiveWriteFailure int64
	PublishSuccess      int64
	PublishFailure      int64

	// Dimensions (informational, set at construction)
	SessionID string
	UserID    string
	Model     string
}

// Collector accumulates metrics during a single session.
// Thread-safe via sync.Mutex.
type Collector struct {
	mu sync.Mutex

	sessionsStarted   int64
	sessionsCompleted int64
	sessionsFailed    int64
	sessionsTruncated int64

	framesReceived  int64
	heartbeats      int64
	eventsByKind    map[string]int64
	decodeErrors    int64
	discardedFrames int64

	toolCallsDeduped  int64
	duplicatesDropped int64
	batchesFailed     int64

	archiveWriteSuccess int64
	archiveWriteFailure int64
	publishSuccess      int64
	publishFailure      int64

	sessionID string
	userID    string
	model     string
}

// NewCollector creates a Collector with dimension labels.
// sessionID is required; userID and model are optional dimensions.
func NewCollector(sessionID, userID, model string) *Collector {
	return &Collector{
		eventsByKind: make(map[string]int64),
		sessionID:    sessionID,
		userID:       userID,
		model:        model,
	}
}

// --- Session lifecycle ---

// IncSessionStarted records a session start.
func (c *Collector) IncSessionStarted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sessionsStarted++
	c.mu.Unlock()
}

// IncSessionCompleted records a session that reached done.
func (c *Collector) IncSessionCompleted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sessionsCompleted++
	c.mu.Unlock()
}

// IncSessionFailed records a session terminated by an error event.
func (c *Collector) IncSessionFailed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sessionsFailed++
	c.mu.Unlock()
}

// IncSessionTruncated records a session that ended in unexpected_end.
func (c *Collector) IncSessionTruncated() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sessionsTruncated++
	c.mu.Unlock()
}

// --- Stream consumption ---

// IncFrameReceived records one complete frame emitted by the accumulator.
func (c *Collector) IncFrameReceived() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framesReceived++
	c.mu.Unlock()
}

// IncHeartbeat records a comment/heartbeat frame.
func (c *Collector) IncHeartbeat() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.heartbeats++
	c.mu.Unlock()
}

// IncEvent records a dispatched event by kind.
// The kind is string-typed to keep this package free of dependencies on
// the types package.
func (c *Collector) IncEvent(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.eventsByKind[kind]++
	c.mu.Unlock()
}

// IncDecodeError records a malformed event payload.
func (c *Collector) IncDecodeError() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.decodeErrors++
	c.mu.Unlock()
}

// IncDiscardedFrame records a frame matching no protocol rule.
func (c *Collector) IncDiscardedFrame() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.discardedFrames++
	c.mu.Unlock()
}

// --- Canonicalization / merge ---

// AddToolCallsDeduped records tool calls dropped during normalization.
func (c *Collector) AddToolCallsDeduped(n int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.toolCallsDeduped += n
	c.mu.Unlock()
}

// AddDuplicatesDropped records result records dropped during batch merge.
func (c *Collector) AddDuplicatesDropped(n int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.duplicatesDropped += n
	c.mu.Unlock()
}

// IncBatchFailed records a batch skipped due to decode errors.
func (c *Collector) IncBatchFailed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.batchesFailed++
	c.mu.Unlock()
}

// --- Archive / adapter ---
// Archive counters are per-call, not per-record. A single Write call with
// N records counts as 1 success.

// IncArchiveWriteSuccess records a successful archive write (per-call).
func (c *Collector) IncArchiveWriteSuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.archiveWriteSuccess++
	c.mu.Unlock()
}

// IncArchiveWriteFailure records a failed archive write (per-call).
func (c *Collector) IncArchiveWriteFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.archiveWriteFailure++
	c.mu.Unlock()
}

// IncPublishSuccess records a successful adapter publish.
func (c *Collector) IncPublishSuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.publishSuccess++
	c.mu.Unlock()
}

// IncPublishFailure records a failed adapter publish.
func (c *Collector) IncPublishFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.publishFailure++
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byKind := make(map[string]int64, len(c.eventsByKind))
	for k, v := range c.eventsByKind {
		byKind[k] = v
	}

	return Snapshot{
		SessionsStarted:   c.sessionsStarted,
		SessionsCompleted: c.sessionsCompleted,
		SessionsFailed:    c.sessionsFailed,
		SessionsTruncated: c.sessionsTruncated,

		FramesReceived:  c.framesReceived,
		Heartbeats:      c.heartbeats,
		EventsByKind:    byKind,
		DecodeErrors:    c.decodeErrors,
		DiscardedFrames: c.discardedFrames,

		ToolCallsDeduped:  c.toolCallsDeduped,
		DuplicatesDropped: c.duplicatesDropped,
		BatchesFailed:     c.batchesFailed,

		ArchiveWriteSuccess: c.archiveWriteSuccess,
		ArchiveWriteFailure: c.archiveWriteFailure,
		PublishSuccess:      c.publishSuccess,
		PublishFailure:      c.publishFailure,

		SessionID: c.sessionID,
		UserID:    c.userID,
		Model:     c.model,
	}
}
