package narrative

import (
	"strings"
)

// SystemInstruction constrains the answer to the supplied evidence.
const SystemInstruction = "You are a product review analyst. Answer the user's question based only on " +
	"the provided reviews and cluster summaries. If the reviews do not contain the answer, say so. " +
	"Do not use outside knowledge."

// ReviewSeparator joins review blocks in the user content.
const ReviewSeparator = "\n---\n"

// Prompt is the instruction payload for one answer-generation call.
type Prompt struct {
	System string
	User   string
}

// BuildPrompt combines the cluster overview, the review blocks and the
// question. It performs no length capping; see FitReviews.
func BuildPrompt(question string, overview, reviews []string) Prompt {
	var b strings.Builder
	b.WriteString(strings.Join(overview, "\n"))
	b.WriteString("\n\n")
	b.WriteString(strings.Join(reviews, ReviewSeparator))
	b.WriteString("\n\n")
	b.WriteString(question)

	return Prompt{
		System: SystemInstruction,
		User:   b.String(),
	}
}

// Messages returns the prompt as role-tagged chat messages.
func (p Prompt) Messages() []Message {
	return []Message{
		{Role: RoleSystem, Content: p.System},
		{Role: RoleUser, Content: p.User},
	}
}
