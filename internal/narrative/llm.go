// Package narrative turns retrieved review evidence into an answer. It builds
// the bounded prompt from the cluster overview, the review blocks and the
// question, and defines a provider-agnostic LLM interface with an OpenAI
// implementation and a deterministic mock for testing.
package narrative

import (
	"context"
	"errors"
)

var (
	ErrAnswerGeneration = errors.New("answer generation failed")
	ErrInvalidConfig    = errors.New("invalid LLM configuration")
)

// Role tags a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged chat message.
type Message struct {
	Role    Role
	Content string
}

// LLM defines the interface for interacting with language models.
// Implementations must be stateless and thread-safe.
type LLM interface {
	// Generate produces a reply to the ordered messages using the configured model.
	Generate(ctx context.Context, messages []Message) (string, error)
}

// LLMConfig holds common configuration options for LLM providers.
type LLMConfig struct {
	// Model specifies the model identifier (e.g., "gpt-4o-mini")
	Model string

	// Temperature controls randomness (0.0 = provider default)
	Temperature float32

	// MaxTokens limits the response length (0 = use provider default)
	MaxTokens int

	// APIKey is the authentication key for the provider
	APIKey string

	// BaseURL overrides the provider endpoint
	BaseURL string
}

// DefaultLLMConfig returns sensible defaults for answering review questions.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Model:       "gpt-4o-mini",
		Temperature: 0, // model default
		MaxTokens:   800,
	}
}
