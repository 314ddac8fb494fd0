package models

import (
	"encoding/json"
	"fmt"
)

// Role identifies the author of a conversation message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleFunction  Role = "function"
)

// Valid returns true for the four roles the chat protocol accepts
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleFunction:
		return true
	}
	return false
}

// Message is a single entry of a conversation. Name is only set on function messages.
type Message struct {
	Role    Role   `json:"role"`
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}

// NewFunctionMessage builds the message carrying a tool result back to the model
func NewFunctionMessage(result ToolResult) Message {
	return Message{
		Role:    RoleFunction,
		Name:    result.Name,
		Content: result.Content(),
	}
}

// ToolDefinition describes a tool the model may call.
// Parameters holds a JSON schema object.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolCallRequest is a tool invocation requested by the model.
// Arguments are untrusted raw JSON: an object, a string holding an object, or junk.
type ToolCallRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolResult is the outcome of dispatching one ToolCallRequest
type ToolResult struct {
	Name    string `json:"name"`
	Payload any    `json:"payload"`
	IsError bool   `json:"is_error"`

	// Details are rendered next to the error of an error result
	Details map[string]any `json:"details,omitempty"`
}

// NewToolError builds an error result with a formatted message payload
func NewToolError(name, format string, args ...any) ToolResult {
	return ToolResult{
		Name:    name,
		Payload: fmt.Sprintf(format, args...),
		IsError: true,
	}
}

// Content renders the result as the body of a function message.
// Error results are wrapped as {"error": payload} plus any Details.
func (r ToolResult) Content() string {
	var v any = r.Payload
	if r.IsError {
		wrapped := make(map[string]any, len(r.Details)+1)
		for k, val := range r.Details {
			wrapped[k] = val
		}
		wrapped["error"] = r.Payload
		v = wrapped
	}
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(map[string]string{"error": fmt.Sprintf("unserializable tool result: %v", err)})
	}
	return string(b)
}
