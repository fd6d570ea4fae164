// Package provider implements LLM provider interfaces and clients.
package provider

import (
	"context"
)

// LLMProvider is the interface for streaming LLM API clients.
type LLMProvider interface {
	// ChatStream opens a streaming completion request. The returned stream
	// must be closed by the caller.
	ChatStream(ctx context.Context, req *ChatRequest) (*Stream, error)
	// DefaultModel returns the configured default model.
	DefaultModel() string
}

// ChatRequest contains the parameters for a chat completion request.
type ChatRequest struct {
	Messages    []Message
	Tools       []ToolDefinition
	Model       string
	MaxTokens   int
	Temperature float64
}

// Message represents a chat message.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a finalized tool call reassembled from stream deltas.
// Arguments is nil when RawArguments did not parse as a JSON object.
type ToolCall struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Arguments    map[string]any `json:"arguments"`
	RawArguments string         `json:"raw_arguments,omitempty"`
}

// ToolDefinition defines a tool that can be called by the LLM.
type ToolDefinition struct {
	Type     string      `json:"type"`
	Function FunctionDef `json:"function"`
}

// FunctionDef describes a function that can be called.
type FunctionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Usage contains token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// EventType discriminates the streaming event union.
type EventType int

const (
	// EventTextDelta carries a fragment of assistant text.
	EventTextDelta EventType = iota
	// EventToolCallDelta carries a fragment of a tool call, merged by index.
	EventToolCallDelta
	// EventFinish signals the end of one completion round.
	EventFinish
)

// ToolCallDelta is one streamed fragment of a tool call. A delta may open a
// new call (id and name set) or append to an existing call's name or
// argument JSON; no single delta is guaranteed to carry a complete call.
type ToolCallDelta struct {
	Index int
	ID    string
	Name  string
	Args  string
}

// StreamEvent is one tagged event from a completion stream.
type StreamEvent struct {
	Type         EventType
	Text         string        // EventTextDelta
	ToolCall     ToolCallDelta // EventToolCallDelta
	FinishReason string        // EventFinish
}

// Embedder is an optional interface for providers that support embedding.
// Callers should use type assertion: if emb, ok := prov.(Embedder); ok { ... }
type Embedder interface {
	Embed(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error)
}

// EmbeddingRequest contains parameters for an embedding request.
type EmbeddingRequest struct {
	Input string
	Model string // default: "text-embedding-3-small"
}

// EmbeddingResponse contains the embedding vector.
type EmbeddingResponse struct {
	Vector []float32
	Usage  Usage
}
