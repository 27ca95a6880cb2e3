// Package canon reduces a message's tool-call representations to one
// canonical, deduplicated form.
//
// Upstream producers attach redundant tool-call projections and transient
// UI-layer fields to messages. Canonicalization strips the presentation
// artifacts, deduplicates calls by id in first-occurrence order, and
// records which call is active. The operation is pure and idempotent.
package canon

import "github.com/pithecene-io/assay/types"

// Normalize derives the canonical form of a message.
//
//   - UI-layer fields (ui_tool_calls, ui_active_tool_call,
//     ui_preferred_tools, ui_source_tool) are stripped.
//   - Tool calls are deduplicated by id; the first occurrence keeps its
//     position, later duplicates are dropped.
//   - ActiveToolCallID is carried through when already set; otherwise it
//     is the id of the LAST element of the original, pre-dedup sequence:
//     the most recently appended call, even when it duplicates an id
//     kept earlier in canonical order.
//
// The carry-through keeps the operation idempotent: recomputing the
// active id from an already-deduplicated sequence would move it whenever
// the original tail duplicated an earlier call.
//
// The input is not mutated.
func Normalize(msg types.Message) types.CanonicalMessage {
	canonical := types.CanonicalMessage{
		Role:             msg.Role,
		ToolCalls:        dedupeCalls(msg.ToolCalls),
		ActiveToolCallID: msg.ActiveToolCallID,
	}

	if canonical.ActiveToolCallID == "" {
		if n := len(msg.ToolCalls); n > 0 {
			canonical.ActiveToolCallID = msg.ToolCalls[n-1].ID
		}
	}

	return canonical
}

// Dropped reports how many calls Normalize would drop as duplicates.
// Used for dedup accounting without a second pass over the output.
func Dropped(msg types.Message) int {
	return len(msg.ToolCalls) - len(dedupeCalls(msg.ToolCalls))
}

// dedupeCalls drops later duplicates by id, preserving first-occurrence
// order. Always returns a fresh slice so the canonical message never
// aliases the input.
func dedupeCalls(calls []types.ToolCall) []types.ToolCall {
	seen := make(map[string]struct{}, len(calls))
	deduped := make([]types.ToolCall, 0, len(calls))

	for _, call := range calls {
		if _, dup := seen[call.ID]; dup {
			continue
		}
		seen[call.ID] = struct{}{}
		deduped = append(deduped, call)
	}

	return deduped
}
