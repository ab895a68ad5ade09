package service

import "encoding/json"

type ChatRole string

const (
	ChatRoleSystem    ChatRole = "system"
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
	ChatRoleTool      ChatRole = "tool"
)

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ChatMessage is the provider-neutral message shape. ToolCalls is set on
// assistant turns that requested tools, ToolName/ToolCallID on tool results.
type ChatMessage struct {
	Role        ChatRole
	Content     string
	ToolCalls   []ToolCall
	ToolName    string
	ToolCallID  string
	Attachments []string
}

type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type ChatRequest struct {
	Model       string
	Messages    []ChatMessage
	Tools       []ToolDefinition
	Temperature float64
}

type ChatResponse struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
	Model        string
}
