package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Yates-Labs/reviewlens/internal/config"
	"github.com/Yates-Labs/reviewlens/internal/reference"
)

func memoryConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.OpenAI.APIKeyEnv = "REVIEWLENS_TEST_OPENAI_KEY"
	cfg.VectorStore.Type = config.StoreMemory
	cfg.VectorStore.Memory.Path = filepath.Join(dir, "reviews.jsonl")
	cfg.Reference.ClusterSummaries = filepath.Join(dir, "missing_summaries.json")
	cfg.Reference.ClusterMap = filepath.Join(dir, "missing_map.csv")
	return cfg
}

func TestBuild_MissingAPIKey(t *testing.T) {
	t.Setenv("REVIEWLENS_TEST_OPENAI_KEY", "")
	cfg := memoryConfig(t)

	app, err := Build(context.Background(), cfg, nil)
	if !errors.Is(err, config.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if app != nil {
		t.Error("no app should be built")
	}
}

func TestBuild_MissingReferenceData(t *testing.T) {
	t.Setenv("REVIEWLENS_TEST_OPENAI_KEY", "sk-test")
	cfg := memoryConfig(t)

	_, err := Build(context.Background(), cfg, nil)
	if !errors.Is(err, reference.ErrReferenceData) {
		t.Fatalf("expected ErrReferenceData, got %v", err)
	}
}

func TestOpenStore_Memory(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.OpenAI.EmbeddingDimension = 3

	store, err := OpenStore(context.Background(), cfg, config.Secrets{}, nil)
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	defer store.Close()

	n, err := store.Count(context.Background())
	if err != nil || n != 0 {
		t.Errorf("fresh memory store: count=%d err=%v", n, err)
	}
}

func TestOpenStore_UnknownType(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.VectorStore.Type = "pinecone"

	if _, err := OpenStore(context.Background(), cfg, config.Secrets{}, nil); !errors.Is(err, config.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestServicePolicy(t *testing.T) {
	p := servicePolicy(config.ServiceConfig{TimeoutSecs: 5, RetryAttempts: 4, RetryDelayMS: 100, RequestsPerSecond: 2})

	if p.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v", p.Timeout)
	}
	if p.Attempts != 4 {
		t.Errorf("Attempts = %d", p.Attempts)
	}
	if p.Delay != 100*time.Millisecond {
		t.Errorf("Delay = %v", p.Delay)
	}
	if p.RequestsPerSecond != 2 {
		t.Errorf("RequestsPerSecond = %v", p.RequestsPerSecond)
	}

	if p := servicePolicy(config.ServiceConfig{TimeoutSecs: 1}); p.Attempts != 1 {
		t.Errorf("attempts should be at least 1, got %d", p.Attempts)
	}
}

func TestAppClose(t *testing.T) {
	store := &fixedStore{}
	app := &App{Store: store}
	if err := app.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestConnect_Memory(t *testing.T) {
	cfg := memoryConfig(t)

	embedder, store, err := Connect(context.Background(), cfg, config.Secrets{OpenAIAPIKey: "sk-test"}, nil)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer store.Close()

	if embedder.GetModel() != cfg.OpenAI.EmbeddingModel {
		t.Errorf("model = %s, want %s", embedder.GetModel(), cfg.OpenAI.EmbeddingModel)
	}
	if embedder.GetDimension() != cfg.OpenAI.EmbeddingDimension {
		t.Errorf("dimension = %d", embedder.GetDimension())
	}
}
