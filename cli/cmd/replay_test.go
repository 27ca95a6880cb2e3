package cmd

import (
	"bytes"
	"testing"

	"github.com/pithecene-io/assay/journal"
	"github.com/pithecene-io/assay/session"
	"github.com/pithecene-io/assay/types"
)

func writeJournal(t *testing.T, sessionID string, events ...types.StreamEvent) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	w := journal.NewWriter(&buf, sessionID)
	for _, event := range events {
		if err := w.Append(event); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	return &buf
}

func TestRebuildSession_CompletedSession(t *testing.T) {
	buf := writeJournal(t, "sess-42",
		types.StreamEvent{Kind: types.EventQueued, JobID: "job-42"},
		types.StreamEvent{Kind: types.EventStarted},
		types.StreamEvent{Kind: types.EventContent, Delta: "replayed "},
		types.StreamEvent{Kind: types.EventContent, Delta: "text"},
		types.StreamEvent{Kind: types.EventDone, Iterations: 3, SessionID: "sess-42"},
	)

	result, sessionID, entries, truncated, err := rebuildSession(buf)
	if err != nil {
		t.Fatalf("rebuildSession: %v", err)
	}

	if sessionID != "sess-42" {
		t.Errorf("sessionID = %q, want sess-42", sessionID)
	}
	if entries != 5 {
		t.Errorf("entries = %d, want 5", entries)
	}
	if truncated {
		t.Error("clean journal should not report truncation")
	}
	if result.State != session.StateDone {
		t.Errorf("state = %s, want done", result.State)
	}
	if result.Content != "replayed text" {
		t.Errorf("content = %q, want %q", result.Content, "replayed text")
	}
	if result.JobID != "job-42" {
		t.Errorf("job id = %q, want job-42", result.JobID)
	}
}

func TestRebuildSession_TruncatedJournal(t *testing.T) {
	buf := writeJournal(t, "sess-43",
		types.StreamEvent{Kind: types.EventQueued, JobID: "job-43"},
		types.StreamEvent{Kind: types.EventContent, Delta: "partial"},
	)

	// Chop off the tail of the last frame, as a writer crash would.
	data := buf.Bytes()
	truncatedBuf := bytes.NewBuffer(data[:len(data)-3])

	result, _, entries, truncated, err := rebuildSession(truncatedBuf)
	if err != nil {
		t.Fatalf("rebuildSession: %v", err)
	}

	if !truncated {
		t.Error("chopped journal should report truncation")
	}
	if entries != 1 {
		t.Errorf("entries = %d, want 1 (complete entries only)", entries)
	}
	if result.State != session.StateQueued {
		t.Errorf("state = %s, want queued", result.State)
	}
}

func TestRebuildSession_EmptyJournal(t *testing.T) {
	result, sessionID, entries, truncated, err := rebuildSession(bytes.NewBuffer(nil))
	if err != nil {
		t.Fatalf("rebuildSession: %v", err)
	}

	if entries != 0 || truncated || sessionID != "" {
		t.Errorf("empty journal: entries=%d truncated=%v sessionID=%q", entries, truncated, sessionID)
	}
	if result.State != session.StateIdle {
		t.Errorf("state = %s, want idle", result.State)
	}
}

func TestReplayOutput_SummaryFields(t *testing.T) {
	out := replayOutput{
		SessionID:       "sess-1",
		Entries:         5,
		Truncated:       true,
		State:           "done",
		JobID:           "job-42",
		Iterations:      2,
		ToolsUsed:       []string{"genome_search", "sequence_align"},
		DurationSeconds: 1.5,
		ContentBytes:    13,
	}

	got := map[string]string{}
	for _, f := range out.SummaryFields() {
		got[f.Name] = f.Value
	}

	if got["session_id"] != "sess-1" || got["state"] != "done" || got["entries"] != "5" {
		t.Errorf("core fields wrong: %v", got)
	}
	if got["truncated"] != "true" || got["job_id"] != "job-42" {
		t.Errorf("optional fields wrong: %v", got)
	}
	if got["tools_used"] != "genome_search, sequence_align" {
		t.Errorf("tools_used = %q", got["tools_used"])
	}
	if got["duration_seconds"] != "1.5" || got["content_bytes"] != "13" {
		t.Errorf("numeric fields wrong: %v", got)
	}
}

func TestReplayOutput_CleanSessionOmitsOptionalFields(t *testing.T) {
	out := replayOutput{SessionID: "sess-1", Entries: 3, State: "done"}
	for _, f := range out.SummaryFields() {
		switch f.Name {
		case "truncated", "job_id", "error", "tools_used":
			t.Errorf("field %s should be omitted when empty", f.Name)
		}
	}
}
