package chat

import "encoding/json"

// Message roles as used by the chat completions API.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is a model-requested invocation of a registered tool.
// The ID is unique within the assistant message that carries it.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult is the outcome of executing a tool call. Content is truncated
// to a fixed maximum before it is stored in the conversation.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
}

// Message is one conversational unit. Content may be empty on an assistant
// message that only carries tool calls. ToolCallID is set only on tool
// messages and references the call the message answers.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// System returns a system message with the given content.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// User returns a user message with the given content.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Assistant returns an assistant message with the given content.
func Assistant(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ToolResponse returns a tool message answering the call with the given ID.
func ToolResponse(callID, content string) Message {
	return Message{Role: RoleTool, ToolCallID: callID, Content: content}
}

// HasToolCalls reports whether the message carries at least one tool call.
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}
