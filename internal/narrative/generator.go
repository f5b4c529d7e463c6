package narrative

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Answer is a generated reply to a review question.
type Answer struct {
	// Text is the generated answer content
	Text string `json:"text"`

	// GeneratedAt is when this answer was created
	GeneratedAt time.Time `json:"generated_at"`

	// Model is the LLM model used to generate this answer
	Model string `json:"model"`
}

// Generator produces answers from assembled prompts using an LLM.
type Generator struct {
	llm    LLM
	config LLMConfig
}

// NewGenerator creates an answer generator with the given LLM implementation.
func NewGenerator(llm LLM, config LLMConfig) *Generator {
	return &Generator{
		llm:    llm,
		config: config,
	}
}

// Generate invokes the LLM with an already-assembled prompt.
// It must not perform retrieval or prompt construction.
func (g *Generator) Generate(ctx context.Context, prompt Prompt) (*Answer, error) {
	if g.llm == nil {
		return nil, fmt.Errorf("%w: LLM is required", ErrAnswerGeneration)
	}
	if strings.TrimSpace(prompt.User) == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrAnswerGeneration)
	}

	text, err := g.llm.Generate(ctx, prompt.Messages())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAnswerGeneration, err)
	}

	return &Answer{
		Text:        strings.TrimSpace(text),
		GeneratedAt: time.Now(),
		Model:       g.config.Model,
	}, nil
}
