// Package llm abstracts chat completion providers behind a single
// interface with optional tool calling.
package llm

import (
	"context"
	"errors"
)

var (
	// ErrUnsupportedProvider indicates an unknown provider identifier.
	ErrUnsupportedProvider = errors.New("unsupported llm provider")

	// ErrEmptyResponse indicates the provider returned no choices.
	ErrEmptyResponse = errors.New("empty llm response")
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Provenance marks where a message came from. Retrieval-augmented context
// is injected as tagged messages so downstream logic never has to guess
// from position which messages the user actually typed.
const (
	ProvenanceUser       = "user"
	ProvenanceRAGContext = "ragContext"
)

// Message is one turn of a conversation.
type Message struct {
	Role       string `json:"role"`
	Content    string `json:"content"`
	Provenance string `json:"provenance,omitempty"`

	// ToolCalls is set on assistant messages that requested tool
	// invocations. Tool messages carrying results set ToolCallID and
	// ToolName to match the originating call.
	ToolCalls  []ToolCall `json:"toolCalls,omitempty"`
	ToolCallID string     `json:"toolCallId,omitempty"`
	ToolName   string     `json:"toolName,omitempty"`
}

// ToolCall is one tool invocation requested by the model. Arguments is the
// raw JSON argument object.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDefinition describes a callable tool to the model. Parameters is a
// JSON Schema object.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Response is the model's reply to one SendMessage call. A response with
// ToolCalls may have empty Content.
type Response struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`
}

// Provider is a chat completion backend.
type Provider interface {
	// SendMessage runs one completion over the conversation. tools may be
	// nil when tool calling is not wanted.
	SendMessage(ctx context.Context, messages []Message, tools []ToolDefinition) (*Response, error)

	// Model returns the configured model name.
	Model() string
}

// CountUserMessages returns how many messages the user actually typed,
// ignoring injected context.
func CountUserMessages(messages []Message) int {
	count := 0
	for _, m := range messages {
		if m.Role == RoleUser && m.Provenance != ProvenanceRAGContext {
			count++
		}
	}
	return count
}
