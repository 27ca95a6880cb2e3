// Package archive persists merged query results and session transcripts
// to Lode datasets.
//
// Records are Hive-partitioned by user/day/session_id with a record_kind
// discriminator, so one dataset holds result rows, merge summaries and
// transcripts side by side.
package archive

import (
	"context"
	"time"

	"github.com/pithecene-io/assay/session"
	"github.com/pithecene-io/assay/types"
)

// RecordKind discriminator values.
const (
	RecordKindResult       = "result"
	RecordKindMergeSummary = "merge_summary"
	RecordKindTranscript   = "transcript"
)

// DefaultDataset is the dataset ID used when none is configured.
const DefaultDataset = "assay"

// DeriveDay computes the partition day from a point in time.
// Format: YYYY-MM-DD in UTC.
func DeriveDay(at time.Time) string {
	return at.UTC().Format("2006-01-02")
}

// Config holds archive partition configuration.
type Config struct {
	// Dataset is the Lode dataset ID (default: assay).
	Dataset string
	// User is the partition key for the requesting user.
	User string
	// Day is the partition key derived from session start (YYYY-MM-DD UTC).
	Day string
	// SessionID is the partition key for the session.
	SessionID string
}

// Store persists archive records.
type Store interface {
	// WriteResults writes merged result records plus one merge summary.
	// Must preserve record order within the call.
	WriteResults(ctx context.Context, merged *types.MergeResult) error

	// WriteTranscript writes the terminal outcome of a session.
	WriteTranscript(ctx context.Context, result *session.Result) error

	// Close releases store resources.
	Close() error
}

// toResultRecordMap annotates one merged record with partition keys.
// Lode HiveLayout requires records as map[string]any.
func toResultRecordMap(record types.ResultRecord, cfg Config) map[string]any {
	m := make(map[string]any, len(record)+4)
	for k, v := range record {
		m[k] = v
	}
	m["record_kind"] = RecordKindResult
	m["user"] = cfg.User
	m["day"] = cfg.Day
	m["session_id"] = cfg.SessionID
	return m
}

// toMergeSummaryMap builds the per-merge accounting record.
func toMergeSummaryMap(merged *types.MergeResult, cfg Config) map[string]any {
	return map[string]any{
		"record_kind":        RecordKindMergeSummary,
		"records":            len(merged.Records),
		"duplicates_dropped": merged.DuplicatesDropped,
		"num_found":          merged.NumFound,
		"batches_merged":     merged.BatchesMerged,
		"batches_failed":     merged.BatchesFailed,
		"user":               cfg.User,
		"day":                cfg.Day,
		"session_id":         cfg.SessionID,
	}
}

// toTranscriptMap builds the session outcome record.
func toTranscriptMap(result *session.Result, cfg Config) map[string]any {
	m := map[string]any{
		"record_kind":      RecordKindTranscript,
		"outcome":          string(result.State),
		"content":          result.Content,
		"iterations":       result.Iterations,
		"tools_used":       result.ToolsUsed,
		"duration_seconds": result.DurationSeconds,
		"queue_wait_ms":    result.QueueWait.Milliseconds(),
		"user":             cfg.User,
		"day":              cfg.Day,
		"session_id":       cfg.SessionID,
	}
	if result.JobID != "" {
		m["job_id"] = result.JobID
	}
	if result.ErrorMessage != "" {
		m["error_message"] = result.ErrorMessage
		m["will_retry"] = result.WillRetry
		m["retry_attempt"] = result.RetryAttempt
	}
	return m
}

// StubStore is a test store that accepts writes without persisting.
type StubStore struct {
	Results     []*types.MergeResult
	Transcripts []*session.Result
	Closed      bool
}

// NewStubStore creates a new stub store.
func NewStubStore() *StubStore {
	return &StubStore{}
}

// WriteResults implements Store.
func (s *StubStore) WriteResults(_ context.Context, merged *types.MergeResult) error {
	s.Results = append(s.Results, merged)
	return nil
}

// WriteTranscript implements Store.
func (s *StubStore) WriteTranscript(_ context.Context, result *session.Result) error {
	s.Transcripts = append(s.Transcripts, result)
	return nil
}

// Close implements Store.
func (s *StubStore) Close() error {
	s.Closed = true
	return nil
}

// Verify StubStore implements Store.
var _ Store = (*StubStore)(nil)
