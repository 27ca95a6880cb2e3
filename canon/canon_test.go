package canon

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/pithecene-io/assay/types"
)

func TestNormalize_DedupByID(t *testing.T) {
	msg := types.Message{
		Role: "assistant",
		ToolCalls: []types.ToolCall{
			{ID: "c1", Action: "genome_lookup"},
			{ID: "c1", Action: "genome_lookup"},
			{ID: "c2", Action: "solr_query"},
		},
	}

	canonical := Normalize(msg)

	if len(canonical.ToolCalls) != 2 {
		t.Fatalf("got %d tool calls, want 2", len(canonical.ToolCalls))
	}
	if canonical.ToolCalls[0].ID != "c1" || canonical.ToolCalls[1].ID != "c2" {
		t.Errorf("order not preserved: %+v", canonical.ToolCalls)
	}
	if canonical.ActiveToolCallID != "c2" {
		t.Errorf("ActiveToolCallID = %q, want c2", canonical.ActiveToolCallID)
	}
}

// The active call is taken from the pre-dedup tail, so a trailing
// duplicate of an earlier call still becomes the active one.
func TestNormalize_ActiveFromOriginalTail(t *testing.T) {
	msg := types.Message{
		Role: "assistant",
		ToolCalls: []types.ToolCall{
			{ID: "c1", Action: "genome_lookup"},
			{ID: "c2", Action: "solr_query"},
			{ID: "c1", Action: "genome_lookup"},
		},
	}

	canonical := Normalize(msg)

	if len(canonical.ToolCalls) != 2 {
		t.Fatalf("got %d tool calls, want 2", len(canonical.ToolCalls))
	}
	if canonical.ActiveToolCallID != "c1" {
		t.Errorf("ActiveToolCallID = %q, want c1 (last of original sequence)", canonical.ActiveToolCallID)
	}
}

func TestNormalize_StripsUIFields(t *testing.T) {
	msg := types.Message{
		Role:             "assistant",
		ToolCalls:        []types.ToolCall{{ID: "c1", Action: "genome_lookup"}},
		UIToolCalls:      []types.ToolCall{{ID: "ui1", Action: "shadow"}},
		UIActiveToolCall: &types.ToolCall{ID: "ui1"},
		UIPreferredTools: []string{"genome_lookup"},
		UISourceTool:     "copilot-web",
	}

	raw, err := json.Marshal(Normalize(msg))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, ui := range []string{"ui_tool_calls", "ui_active_tool_call", "ui_preferred_tools", "ui_source_tool"} {
		if _, present := fields[ui]; present {
			t.Errorf("UI field %q leaked into canonical form", ui)
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	msg := types.Message{
		Role: "assistant",
		ToolCalls: []types.ToolCall{
			{ID: "c1", Action: "genome_lookup", Arguments: map[string]any{"id": "g1"}},
			{ID: "c1", Action: "genome_lookup"},
			{ID: "c2", Action: "solr_query"},
		},
		UISourceTool: "copilot-web",
	}

	once := Normalize(msg)
	twice := Normalize(once.Message())

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("normalize not idempotent:\n once: %+v\ntwice: %+v", once, twice)
	}
}

// A trailing duplicate makes the active id differ from the deduped
// tail; re-normalizing must not move it.
func TestNormalize_IdempotentWithTrailingDuplicate(t *testing.T) {
	msg := types.Message{
		Role: "assistant",
		ToolCalls: []types.ToolCall{
			{ID: "c1", Action: "genome_lookup"},
			{ID: "c2", Action: "solr_query"},
			{ID: "c1", Action: "genome_lookup"},
		},
	}

	once := Normalize(msg)
	twice := Normalize(once.Message())

	if once.ActiveToolCallID != "c1" {
		t.Fatalf("ActiveToolCallID = %q, want c1 (pre-dedup tail)", once.ActiveToolCallID)
	}
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("normalize not idempotent:\n once: %+v\ntwice: %+v", once, twice)
	}
}

// A caller-supplied active id is authoritative even when it disagrees
// with the tail of the sequence.
func TestNormalize_PreservesExistingActiveID(t *testing.T) {
	msg := types.Message{
		Role:             "assistant",
		ActiveToolCallID: "c1",
		ToolCalls: []types.ToolCall{
			{ID: "c1", Action: "genome_lookup"},
			{ID: "c2", Action: "solr_query"},
		},
	}

	canonical := Normalize(msg)

	if canonical.ActiveToolCallID != "c1" {
		t.Errorf("ActiveToolCallID = %q, want c1 (preserved)", canonical.ActiveToolCallID)
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	calls := []types.ToolCall{
		{ID: "c1", Action: "genome_lookup"},
		{ID: "c1", Action: "genome_lookup"},
	}
	msg := types.Message{Role: "assistant", ToolCalls: calls}

	canonical := Normalize(msg)
	canonical.ToolCalls[0].Action = "mutated"

	if msg.ToolCalls[0].Action != "genome_lookup" {
		t.Error("input message mutated through canonical output")
	}
	if len(msg.ToolCalls) != 2 {
		t.Errorf("input tool calls resized: %d", len(msg.ToolCalls))
	}
}

func TestNormalize_EmptyMessage(t *testing.T) {
	canonical := Normalize(types.Message{Role: "user"})

	if len(canonical.ToolCalls) != 0 {
		t.Errorf("got %d tool calls, want 0", len(canonical.ToolCalls))
	}
	if canonical.ActiveToolCallID != "" {
		t.Errorf("ActiveToolCallID = %q, want empty", canonical.ActiveToolCallID)
	}
}

func TestDropped(t *testing.T) {
	msg := types.Message{
		ToolCalls: []types.ToolCall{
			{ID: "c1"}, {ID: "c1"}, {ID: "c2"}, {ID: "c1"},
		},
	}
	if got := Dropped(msg); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}
}
