package llm

import "context"

// Message is one turn of a chat-completion conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tune a single completion request.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Provider produces a completion for a prompt. Implementations must honor
// ctx cancellation; callers bound every invocation with a deadline and fall
// back to a deterministic renderer on any error.
type Provider interface {
	Complete(ctx context.Context, messages []Message, opts Options) (string, error)
}

// Config configures an OpenAI-compatible provider.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Configured reports whether the config is complete enough to call an
// external model.
func (c Config) Configured() bool { return c.APIKey != "" && c.Model != "" }
