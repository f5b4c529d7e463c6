package narrative

import (
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts model tokens in a text.
type TokenCounter interface {
	Count(text string) int
}

// tiktokenCounter counts with the model's BPE encoding.
type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func (c tiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// EstimateCounter approximates four characters per token. It is used when
// no encoding can be loaded.
type EstimateCounter struct{}

// Count returns the estimated token count, rounding up.
func (EstimateCounter) Count(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}

// NewTokenCounter returns a counter for the model, falling back to the
// cl100k_base encoding and then to EstimateCounter.
func NewTokenCounter(model string) TokenCounter {
	if enc, err := tiktoken.EncodingForModel(model); err == nil {
		return tiktokenCounter{enc: enc}
	}
	if enc, err := tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE); err == nil {
		return tiktokenCounter{enc: enc}
	}
	return EstimateCounter{}
}

// FitReviews drops trailing review blocks until the prompt built from the
// remaining ones fits maxTokens. A maxTokens of 0 or less disables the
// budget. At least one review is kept when any were given.
func FitReviews(counter TokenCounter, question string, overview, reviews []string, maxTokens int) []string {
	if maxTokens <= 0 || len(reviews) == 0 {
		return reviews
	}
	if counter == nil {
		counter = EstimateCounter{}
	}

	lo, hi := 1, len(reviews)
	if counter.Count(BuildPrompt(question, overview, reviews).User) <= maxTokens {
		return reviews
	}
	// largest n in [1, len) whose prompt fits
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if counter.Count(BuildPrompt(question, overview, reviews[:mid]).User) <= maxTokens {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return reviews[:lo]
}
