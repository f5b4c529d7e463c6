package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverridesAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reviewlens.yaml")
	body := `
openai:
  chat_model: gpt-4o
vector_store:
  type: MEMORY
  memory:
    path: snapshot.jsonl
retrieval:
  top_k: 7
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.ChatModel)
	assert.Equal(t, "text-embedding-3-small", cfg.OpenAI.EmbeddingModel)
	assert.Equal(t, StoreMemory, cfg.VectorStore.Type)
	assert.Equal(t, "snapshot.jsonl", cfg.VectorStore.Memory.Path)
	assert.Equal(t, 7, cfg.Retrieval.TopK)
	assert.Equal(t, 100, cfg.Session.MaxTurns)
	assert.Equal(t, 1000, cfg.Session.MaxSessions)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("openai: [unterminated"), 0o644))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestValidate_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("MILVUS_COLLECTION", "reviews")

	_, err := Default().Validate()
	require.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestValidate_MissingIndexName(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("MILVUS_COLLECTION", "")

	_, err := Default().Validate()
	require.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), "index name")
}

func TestValidate_ResolvesSecretsFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("MILVUS_COLLECTION", "sephora_reviews")
	t.Setenv("MILVUS_ADDRESS", "milvus:19530")
	t.Setenv("MILVUS_API_KEY", "token")

	secrets, err := Default().Validate()
	require.NoError(t, err)
	assert.Equal(t, Secrets{
		OpenAIAPIKey:  "sk-test",
		MilvusAddress: "milvus:19530",
		MilvusAPIKey:  "token",
		Collection:    "sephora_reviews",
	}, secrets)
}

func TestValidate_MemoryStoreNeedsNoIndexName(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("MILVUS_COLLECTION", "")

	cfg := Default()
	cfg.VectorStore.Type = StoreMemory
	_, err := cfg.Validate()
	assert.NoError(t, err)
}

func TestValidate_RejectsNonPositiveNumbers(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("MILVUS_COLLECTION", "reviews")

	cfg := Default()
	cfg.Retrieval.TopK = 0
	cfg.Service.TimeoutSecs = -1
	cfg.Session.MaxSessions = -1
	_, err := cfg.Validate()
	require.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), "top_k")
	assert.Contains(t, err.Error(), "timeout_secs")
	assert.Contains(t, err.Error(), "max_sessions")
}

func TestServiceDurations(t *testing.T) {
	s := ServiceConfig{TimeoutSecs: 2, RetryDelayMS: 150}
	assert.Equal(t, "2s", s.Timeout().String())
	assert.Equal(t, "150ms", s.RetryDelay().String())
}
