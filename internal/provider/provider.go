package provider

import (
	"context"

	"dayflow/internal/chat"
)

// ChatRequest wraps a single model call.
type ChatRequest struct {
	Model       string
	Messages    []chat.Message
	Tools       []chat.ToolDef
	Temperature *float32
	MaxTokens   int
}

// ChatResponse is the model's reply: either freeform content, or one or
// more requested tool calls (possibly alongside content).
type ChatResponse struct {
	Content      string
	ToolCalls    []chat.ToolCall
	FinishReason string
}

// Provider is the model backend interface. Implementations are stateless
// per call; conversation state travels in the message list.
type Provider interface {
	// Chat sends an ordered message list plus tool definitions and
	// returns the model's response.
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)

	// Name returns the provider name.
	Name() string

	// CurrentModel returns the active model.
	CurrentModel() string
}
