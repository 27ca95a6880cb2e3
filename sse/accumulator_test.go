package sse

import (
	"reflect"
	"testing"
)

func TestAccumulator_SplitsOnBlankLine(t *testing.T) {
	var a Accumulator

	frames := a.Append("event: queued\ndata: {\"job_id\":\"42\"}\n\nevent: started\ndata: {}\n\n")
	want := []string{
		"event: queued\ndata: {\"job_id\":\"42\"}",
		"event: started\ndata: {}",
	}
	if !reflect.DeepEqual(frames, want) {
		t.Errorf("Append() = %q, want %q", frames, want)
	}
	if a.Pending() != "" {
		t.Errorf("Pending() = %q, want empty", a.Pending())
	}
}

func TestAccumulator_RetainsIncompleteTail(t *testing.T) {
	var a Accumulator

	frames := a.Append("event: content\ndata: {\"delta\":\"hi\"}\n\nevent: conte")
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if a.Pending() != "event: conte" {
		t.Errorf("Pending() = %q, want %q", a.Pending(), "event: conte")
	}

	frames = a.Append("nt\ndata: {\"delta\":\"there\"}\n\n")
	if len(frames) != 1 {
		t.Fatalf("got %d frames after completion, want 1", len(frames))
	}
	if got, want := frames[0], "event: content\ndata: {\"delta\":\"there\"}"; got != want {
		t.Errorf("frame = %q, want %q", got, want)
	}
}

// Chunking invariance: the same byte stream must yield the same frames no
// matter how it is sliced across Append calls.
func TestAccumulator_ChunkingInvariance(t *testing.T) {
	stream := "event: queued\ndata: {\"job_id\":\"42\"}\n\n" +
		":\n\n" +
		"event: content\ndata: {\"delta\":\"Hello \"}\n\n" +
		"event: content\ndata: {\"delta\":\"world\"}\n\n" +
		"event: done\ndata: {\"iterations\":1}\n\n"

	collect := func(chunkSize int) []string {
		var a Accumulator
		var frames []string
		for i := 0; i < len(stream); i += chunkSize {
			end := i + chunkSize
			if end > len(stream) {
				end = len(stream)
			}
			frames = append(frames, a.Append(stream[i:end])...)
		}
		return frames
	}

	whole := collect(len(stream))
	if len(whole) != 5 {
		t.Fatalf("got %d frames, want 5", len(whole))
	}

	for _, size := range []int{1, 2, 3, 7, 16, 64} {
		got := collect(size)
		if !reflect.DeepEqual(got, whole) {
			t.Errorf("chunk size %d: frames diverge from single-append result", size)
		}
	}
}

// CRLF streams must frame identically to LF streams.
func TestAccumulator_NormalizesCRLF(t *testing.T) {
	var a Accumulator

	frames := a.Append("event: queued\r\ndata: {\"job_id\":\"42\"}\r\n\r\nevent: started\r\ndata: {}\r\n\r\n")
	want := []string{
		"event: queued\ndata: {\"job_id\":\"42\"}",
		"event: started\ndata: {}",
	}
	if !reflect.DeepEqual(frames, want) {
		t.Errorf("Append() = %q, want %q", frames, want)
	}
}

// A CRLF pair sliced between two reads still normalizes: the CR waits
// in the remainder until its LF arrives.
func TestAccumulator_CRLFSplitAcrossChunks(t *testing.T) {
	var a Accumulator

	if frames := a.Append("event: done\r\ndata: {}\r"); len(frames) != 0 {
		t.Fatalf("got %d frames before delimiter, want 0", len(frames))
	}

	frames := a.Append("\n\r\n")
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if got, want := frames[0], "event: done\ndata: {}"; got != want {
		t.Errorf("frame = %q, want %q", got, want)
	}
}

func TestAccumulator_DropsEmptyPieces(t *testing.T) {
	var a Accumulator

	frames := a.Append("\n\n\n\nevent: started\ndata: {}\n\n")
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1 (empty pieces dropped)", len(frames))
	}
}

func TestAccumulator_NoDelimiterBuffersEverything(t *testing.T) {
	var a Accumulator

	if frames := a.Append("event: queued\ndata: {}"); frames != nil {
		t.Errorf("Append() = %v, want nil", frames)
	}
	if a.Pending() != "event: queued\ndata: {}" {
		t.Errorf("Pending() = %q", a.Pending())
	}
}
