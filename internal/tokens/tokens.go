// Package tokens counts prompt tokens so the orchestrator can budget the
// history window it sends to the model.
package tokens

import (
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"

	"dayflow/internal/chat"
)

// Counter counts tokens with tiktoken, falling back to a character
// heuristic when the BPE cache is unavailable (offline environments).
type Counter struct {
	encoder  *tiktoken.Tiktoken
	fallback bool
}

var (
	defaultCounter     *Counter
	defaultCounterOnce sync.Once
)

// Default returns the shared cl100k_base counter.
func Default() *Counter {
	defaultCounterOnce.Do(func() {
		defaultCounter = NewCounter("cl100k_base")
	})
	return defaultCounter
}

func NewCounter(encodingName string) *Counter {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return &Counter{fallback: true}
	}
	return &Counter{encoder: enc}
}

// Count returns the total token count of a message list, including the
// per-message protocol overhead.
func (c *Counter) Count(messages []chat.Message) int {
	total := 0
	for _, msg := range messages {
		total += c.countMessage(msg)
	}
	return total
}

// CountText counts tokens for a single string.
func (c *Counter) CountText(text string) int {
	if text == "" {
		return 0
	}
	if c.fallback {
		return heuristicCount(text)
	}
	return len(c.encoder.Encode(text, nil, nil))
}

func (c *Counter) countMessage(msg chat.Message) int {
	// ~4 tokens of structural overhead per OpenAI chat message.
	tokens := 4
	tokens += c.CountText(msg.Role)
	tokens += c.CountText(msg.Content)
	if msg.Name != "" {
		tokens += c.CountText(msg.Name) + 1
	}
	for _, tc := range msg.ToolCalls {
		tokens += c.CountText(tc.Function.Name)
		tokens += c.CountText(tc.Function.Arguments)
		tokens += 8
	}
	return tokens
}

// heuristicCount approximates English text at ~4 characters per token.
func heuristicCount(text string) int {
	n := len(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}
