package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Yates-Labs/reviewlens/internal/config"
	"github.com/Yates-Labs/reviewlens/internal/logging"
	"github.com/Yates-Labs/reviewlens/internal/narrative"
	"github.com/Yates-Labs/reviewlens/internal/rag"
	"github.com/Yates-Labs/reviewlens/internal/reference"
	"github.com/Yates-Labs/reviewlens/internal/resilience"
)

// App bundles everything a command needs, built once at startup.
type App struct {
	Config   *config.AppConfig
	Tables   *reference.Tables
	Embedder rag.Embedder
	Store    rag.VectorStore
	Pipeline *RAGPipeline
	Logger   *zap.Logger
}

// Build validates the configuration, loads reference data and connects to
// the external services. Configuration and reference-data failures are
// returned unchanged so callers can treat them as fatal.
func Build(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*App, error) {
	logger = logging.OrNop(logger)

	secrets, err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	tables, err := reference.Load(cfg.Reference.ClusterSummaries, cfg.Reference.ClusterMap)
	if err != nil {
		return nil, err
	}
	nSummaries, nAssignments := tables.Len()
	logger.Info("loaded reference data",
		zap.Int("cluster_summaries", nSummaries),
		zap.Int("cluster_assignments", nAssignments))

	embedder, store, err := Connect(ctx, cfg, secrets, logger)
	if err != nil {
		return nil, err
	}

	retriever, err := rag.NewRetriever(embedder, store)
	if err != nil {
		store.Close()
		return nil, err
	}

	llmConfig := narrative.LLMConfig{
		Model:       cfg.OpenAI.ChatModel,
		Temperature: float32(cfg.OpenAI.Temperature),
		MaxTokens:   cfg.OpenAI.MaxTokens,
		APIKey:      secrets.OpenAIAPIKey,
		BaseURL:     cfg.OpenAI.BaseURL,
	}
	llm, err := narrative.NewOpenAILLM(llmConfig, resilience.NewCaller("chat", servicePolicy(cfg.Service), logger))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}

	pipeline, err := NewRAGPipeline(
		RAGConfig{TopK: cfg.Retrieval.TopK, MaxContextTokens: cfg.Retrieval.MaxContextTokens},
		retriever,
		tables,
		narrative.NewGenerator(llm, llmConfig),
		narrative.NewTokenCounter(cfg.OpenAI.ChatModel),
		logger,
	)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}

	return &App{
		Config:   cfg,
		Tables:   tables,
		Embedder: embedder,
		Store:    store,
		Pipeline: pipeline,
		Logger:   logger,
	}, nil
}

// Connect builds the embedding client and opens the vector store; it is all
// indexing needs.
func Connect(ctx context.Context, cfg *config.AppConfig, secrets config.Secrets, logger *zap.Logger) (rag.Embedder, rag.VectorStore, error) {
	logger = logging.OrNop(logger)
	policy := servicePolicy(cfg.Service)

	embedder, err := rag.NewOpenAIEmbedder(rag.EmbedderConfig{
		APIKey:    secrets.OpenAIAPIKey,
		BaseURL:   cfg.OpenAI.BaseURL,
		Model:     cfg.OpenAI.EmbeddingModel,
		Dimension: cfg.OpenAI.EmbeddingDimension,
	}, resilience.NewCaller("embedding", policy, logger))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}

	store, err := OpenStore(ctx, cfg, secrets, resilience.NewCaller("vector-store", policy, logger))
	if err != nil {
		return nil, nil, err
	}
	logger.Info("connected vector store", zap.String("type", cfg.VectorStore.Type))
	return embedder, store, nil
}

// OpenStore connects the configured vector store.
func OpenStore(ctx context.Context, cfg *config.AppConfig, secrets config.Secrets, caller *resilience.Caller) (rag.VectorStore, error) {
	switch cfg.VectorStore.Type {
	case config.StoreMemory:
		store, err := rag.OpenMemoryStore(cfg.VectorStore.Memory.Path, cfg.OpenAI.EmbeddingDimension)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StoreMilvus:
		m := cfg.VectorStore.Milvus
		store, err := rag.NewMilvusStore(ctx, rag.MilvusConfig{
			Address:        secrets.MilvusAddress,
			APIKey:         secrets.MilvusAPIKey,
			CollectionName: secrets.Collection,
			Dimension:      cfg.OpenAI.EmbeddingDimension,
			M:              m.M,
			EfConstruction: m.EfConstruction,
			EfSearch:       m.EfSearch,
		}, caller)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: unknown vector store %q", config.ErrConfiguration, cfg.VectorStore.Type)
	}
}

// Close releases the vector store connection.
func (a *App) Close() error {
	var errs []error
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return errors.Join(errs...)
}

func servicePolicy(s config.ServiceConfig) resilience.Policy {
	p := resilience.DefaultPolicy()
	p.Timeout = s.Timeout()
	p.Attempts = uint(max(s.RetryAttempts, 1))
	if s.RetryDelayMS > 0 {
		p.Delay = s.RetryDelay()
	}
	p.RequestsPerSecond = s.RequestsPerSecond
	return p
}
