package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Yates-Labs/reviewlens/internal/cluster"
	"github.com/Yates-Labs/reviewlens/internal/logging"
	"github.com/Yates-Labs/reviewlens/internal/narrative"
	"github.com/Yates-Labs/reviewlens/internal/rag"
	"github.com/Yates-Labs/reviewlens/internal/session"
)

// ErrEmptyQuestion is returned for blank questions; nothing is embedded.
var ErrEmptyQuestion = errors.New("question cannot be empty")

// Outcome classifies a completed query.
type Outcome string

const (
	// OutcomeAnswered means an answer was generated from retrieved reviews
	OutcomeAnswered Outcome = "answered"

	// OutcomeNoResults means no match with displayable text was found;
	// answer generation was skipped
	OutcomeNoResults Outcome = "no_results"
)

// RAGConfig holds configuration for the review question-answering pipeline.
type RAGConfig struct {
	// TopK is the number of reviews to retrieve per question
	TopK int

	// MaxContextTokens bounds the user payload sent for answer generation
	// (0 = unbounded); trailing reviews are dropped to fit
	MaxContextTokens int
}

// DefaultRAGConfig returns sensible defaults for the pipeline.
func DefaultRAGConfig() RAGConfig {
	return RAGConfig{
		TopK:             20,
		MaxContextTokens: 6000,
	}
}

// Result is the outcome of one question.
type Result struct {
	Outcome  Outcome
	Question string
	Matches  []rag.ReviewMatch
	Summary  cluster.Summary

	// Answer and Turn are set only for OutcomeAnswered
	Answer *narrative.Answer
	Turn   *session.ChatTurn

	// PromptReviews is the number of review blocks sent after budgeting
	PromptReviews int
}

// Record appends the result's turn to history. Results without an answer
// are not recorded.
func (r *Result) Record(h *session.History) bool {
	if r == nil || r.Outcome != OutcomeAnswered || r.Turn == nil || h == nil {
		return false
	}
	h.Append(*r.Turn)
	return true
}

// RAGPipeline orchestrates embed, search, aggregate, assemble and generate
// for one question at a time. It is safe for concurrent use.
type RAGPipeline struct {
	config    RAGConfig
	retriever *rag.Retriever
	lookup    cluster.Lookup
	generator *narrative.Generator
	counter   narrative.TokenCounter
	logger    *zap.Logger
}

// NewRAGPipeline wires the pipeline from its collaborators.
func NewRAGPipeline(
	config RAGConfig,
	retriever *rag.Retriever,
	lookup cluster.Lookup,
	generator *narrative.Generator,
	counter narrative.TokenCounter,
	logger *zap.Logger,
) (*RAGPipeline, error) {
	if retriever == nil {
		return nil, fmt.Errorf("retriever cannot be nil")
	}
	if lookup == nil {
		return nil, fmt.Errorf("cluster lookup cannot be nil")
	}
	if generator == nil {
		return nil, fmt.Errorf("generator cannot be nil")
	}
	if config.TopK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", config.TopK)
	}
	if counter == nil {
		counter = narrative.EstimateCounter{}
	}

	return &RAGPipeline{
		config:    config,
		retriever: retriever,
		lookup:    lookup,
		generator: generator,
		counter:   counter,
		logger:    logging.OrNop(logger).Named("pipeline"),
	}, nil
}

// Ask answers a question from the most relevant reviews.
// Service failures are returned wrapped in their stage's error; a query
// with nothing to show returns OutcomeNoResults without calling the LLM.
func (p *RAGPipeline) Ask(ctx context.Context, question string) (*Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	start := time.Now()

	// Stage 1: Retrieval
	matches, err := p.retrieve(ctx, question, p.config.TopK)
	if err != nil {
		return nil, err
	}

	// Stage 2: Aggregation
	summary := cluster.Aggregate(matches, p.lookup)
	p.logger.Debug("aggregated",
		zap.String("stage", "aggregate"),
		zap.Int("found", summary.Found),
		zap.Int("shown", summary.Shown),
		zap.Int("clusters", len(summary.Clusters)))

	result := &Result{
		Question: question,
		Matches:  matches,
		Summary:  summary,
	}
	if summary.Empty() {
		result.Outcome = OutcomeNoResults
		p.logger.Info("no relevant reviews", zap.Int("found", summary.Found))
		return result, nil
	}

	// Stage 3: Prompt assembly
	reviews := narrative.FitReviews(p.counter, question, summary.Overview, summary.Reviews, p.config.MaxContextTokens)
	if len(reviews) < len(summary.Reviews) {
		p.logger.Debug("trimmed context to token budget",
			zap.String("stage", "assemble"),
			zap.Int("kept", len(reviews)),
			zap.Int("dropped", len(summary.Reviews)-len(reviews)),
			zap.Int("max_tokens", p.config.MaxContextTokens))
	}
	prompt := narrative.BuildPrompt(question, summary.Overview, reviews)
	result.PromptReviews = len(reviews)

	// Stage 4: Answer generation
	genStart := time.Now()
	answer, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		p.logger.Warn("answer generation failed", zap.String("stage", "generate"), zap.Error(err))
		return nil, err
	}
	p.logger.Debug("generated answer",
		zap.String("stage", "generate"),
		zap.Int("chars", len(answer.Text)),
		zap.Duration("took", time.Since(genStart)))

	turn := session.NewTurn(question, answer.Text, summary.Reviews, summary.Overview, summary.Found)
	result.Outcome = OutcomeAnswered
	result.Answer = answer
	result.Turn = &turn

	p.logger.Info("answered question",
		zap.Int("reviews", summary.Shown),
		zap.Duration("took", time.Since(start)))
	return result, nil
}

// Retrieve returns the ranked matches for a question without aggregating
// or answering. With all set, every vector in the index is ranked.
func (p *RAGPipeline) Retrieve(ctx context.Context, question string, all bool) ([]rag.ReviewMatch, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	limit := p.config.TopK
	if all {
		limit = 0
	}
	return p.retrieve(ctx, question, limit)
}

func (p *RAGPipeline) retrieve(ctx context.Context, question string, limit int) ([]rag.ReviewMatch, error) {
	embedStart := time.Now()
	vec, err := p.retriever.EmbedQuery(ctx, question)
	if err != nil {
		p.logger.Warn("embedding failed", zap.String("stage", "embed"), zap.Error(err))
		return nil, err
	}
	p.logger.Debug("embedded question",
		zap.String("stage", "embed"),
		zap.Int("dimension", len(vec)),
		zap.Duration("took", time.Since(embedStart)))

	searchStart := time.Now()
	var matches []rag.ReviewMatch
	if limit <= 0 {
		matches, err = p.retriever.SearchAll(ctx, vec)
	} else {
		matches, err = p.retriever.Search(ctx, vec, limit)
	}
	if err != nil {
		p.logger.Warn("search failed", zap.String("stage", "search"), zap.Error(err))
		return nil, err
	}
	p.logger.Debug("searched index",
		zap.String("stage", "search"),
		zap.Int("matches", len(matches)),
		zap.Duration("took", time.Since(searchStart)))
	return matches, nil
}
