package types

// ToolCall is one tool invocation record attached to a message.
// Identity is the ID field; later records with a duplicate ID are
// redundant projections of the same call.
type ToolCall struct {
	// ID is the unique call identifier.
	ID string `json:"id"`
	// Action is the tool action name.
	Action string `json:"action"`
	// Arguments is the call argument mapping.
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Message is a conversational message as produced upstream, possibly
// carrying redundant tool-call projections and transient UI-layer fields.
type Message struct {
	// Role is the message role (user, assistant, tool).
	Role string `json:"role"`
	// ToolCalls is the ordered, possibly redundant tool-call sequence.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ActiveToolCallID is the id of the most recently appended call.
	ActiveToolCallID string `json:"active_tool_call_id,omitempty"`

	// UI-layer presentation artifacts. Stripped during canonicalization;
	// must never leak into the canonical form.
	UIToolCalls      []ToolCall `json:"ui_tool_calls,omitempty"`
	UIActiveToolCall *ToolCall  `json:"ui_active_tool_call,omitempty"`
	UIPreferredTools []string   `json:"ui_preferred_tools,omitempty"`
	UISourceTool     string     `json:"ui_source_tool,omitempty"`
}

// CanonicalMessage is the single authoritative form of a message:
// deduplicated tool calls in first-occurrence order, UI fields absent.
// Derived, never mutated after creation.
type CanonicalMessage struct {
	Role             string     `json:"role"`
	ToolCalls        []ToolCall `json:"tool_calls"`
	ActiveToolCallID string     `json:"active_tool_call_id,omitempty"`
}

// Message converts back to the upstream message shape. Useful for
// idempotence checks and for re-submitting canonical history.
func (m CanonicalMessage) Message() Message {
	return Message{
		Role:             m.Role,
		ToolCalls:        m.ToolCalls,
		ActiveToolCallID: m.ActiveToolCallID,
	}
}
