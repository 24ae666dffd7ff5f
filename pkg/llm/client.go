// Package llm abstracts chat-completion providers behind a single Client
// interface. Skills build Requests; providers translate them to their SDK and
// return the accumulated Response.
package llm

import (
	"context"
	"encoding/json"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Client is the provider-agnostic chat interface. Implementations wrap one
// provider SDK; tests inject scripted fakes.
type Client interface {
	// Generate sends a conversation to the model and returns the complete
	// response. Tool-use responses carry ToolCalls; plain responses carry
	// Content.
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// Request is a single model invocation.
type Request struct {
	Model       string
	System      string
	Messages    []Message
	Tools       []ToolDefinition // nil = no tools
	MaxTokens   int
	Temperature float32
}

// Message is one turn of the conversation.
type Message struct {
	Role       string // "user", "assistant", "tool"
	Content    string
	ToolCalls  []ToolCall // for assistant messages
	ToolCallID string     // for tool result messages
	ToolName   string     // for tool result messages
	IsError    bool       // for tool result messages
}

// ToolDefinition describes a tool available to the model.
type ToolDefinition struct {
	Name             string
	Description      string
	ParametersSchema json.RawMessage // JSON Schema
}

// ToolCall is the model's request to call a tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // JSON
}

// Response is the accumulated model output for one Generate call.
type Response struct {
	Content   string
	ToolCalls []ToolCall
}
