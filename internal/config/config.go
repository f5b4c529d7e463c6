// Package config loads the reviewlens YAML configuration and resolves the
// secrets it references from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrConfiguration is returned for missing credentials, a missing index name,
// or invalid settings. It is fatal at startup.
var ErrConfiguration = errors.New("configuration error")

// DefaultPath is the config file looked up when --config is not given.
const DefaultPath = "reviewlens.yaml"

// Vector store backends.
const (
	StoreMilvus = "milvus"
	StoreMemory = "memory"
)

// OpenAIConfig configures the embedding and answer-generation services.
type OpenAIConfig struct {
	APIKeyEnv          string  `yaml:"api_key_env"`
	BaseURL            string  `yaml:"base_url,omitempty"`
	EmbeddingModel     string  `yaml:"embedding_model"`
	EmbeddingDimension int     `yaml:"embedding_dimension"`
	ChatModel          string  `yaml:"chat_model"`
	Temperature        float64 `yaml:"temperature"`
	MaxTokens          int     `yaml:"max_tokens"`
}

// MilvusConfig contains connection details for the Milvus review index.
// Values read from the *_env variables take precedence over literal ones.
type MilvusConfig struct {
	AddressEnv     string `yaml:"address_env"`
	Address        string `yaml:"address"`
	APIKeyEnv      string `yaml:"api_key_env"`
	CollectionEnv  string `yaml:"collection_env"`
	Collection     string `yaml:"collection"`
	M              int    `yaml:"m"`
	EfConstruction int    `yaml:"ef_construction"`
	EfSearch       int    `yaml:"ef_search"`
}

// MemoryConfig points the in-memory store at its JSONL snapshot.
type MemoryConfig struct {
	Path string `yaml:"path"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string       `yaml:"type"`
	Milvus MilvusConfig `yaml:"milvus"`
	Memory MemoryConfig `yaml:"memory"`
}

// ReferenceConfig locates the static cluster tables.
type ReferenceConfig struct {
	ClusterSummaries string `yaml:"cluster_summaries"`
	ClusterMap       string `yaml:"cluster_map"`
}

// RetrievalConfig sizes the retrieved set and the prompt payload.
type RetrievalConfig struct {
	TopK             int `yaml:"top_k"`
	MaxContextTokens int `yaml:"max_context_tokens"`
}

// ServiceConfig controls timeouts, retries and throttling of external calls.
type ServiceConfig struct {
	TimeoutSecs       int     `yaml:"timeout_secs"`
	RetryAttempts     int     `yaml:"retry_attempts"`
	RetryDelayMS      int     `yaml:"retry_delay_ms"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// SessionConfig bounds per-session chat history and the number of live sessions.
type SessionConfig struct {
	MaxTurns    int `yaml:"max_turns"`
	MaxSessions int `yaml:"max_sessions"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	OpenAI      OpenAIConfig      `yaml:"openai"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Reference   ReferenceConfig   `yaml:"reference"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Service     ServiceConfig     `yaml:"service"`
	Session     SessionConfig     `yaml:"session"`
}

// Secrets holds the values resolved from the environment.
type Secrets struct {
	OpenAIAPIKey  string
	MilvusAddress string
	MilvusAPIKey  string
	Collection    string
}

// Load reads a config from path. A missing file yields the defaults.
func Load(path string) (*AppConfig, error) {
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("%w: reading %s: %w", ErrConfiguration, path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", ErrConfiguration, path, err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	return &AppConfig{
		OpenAI: OpenAIConfig{
			APIKeyEnv:          "OPENAI_API_KEY",
			EmbeddingModel:     "text-embedding-3-small",
			EmbeddingDimension: 1536,
			ChatModel:          "gpt-4o-mini",
			MaxTokens:          800,
		},
		VectorStore: VectorStoreConfig{
			Type: StoreMilvus,
			Milvus: MilvusConfig{
				AddressEnv:     "MILVUS_ADDRESS",
				Address:        "localhost:19530",
				APIKeyEnv:      "MILVUS_API_KEY",
				CollectionEnv:  "MILVUS_COLLECTION",
				M:              16,
				EfConstruction: 256,
				EfSearch:       64,
			},
			Memory: MemoryConfig{Path: "reviews.jsonl"},
		},
		Reference: ReferenceConfig{
			ClusterSummaries: "cluster_summaries.json",
			ClusterMap:       "cluster_map.csv",
		},
		Retrieval: RetrievalConfig{
			TopK:             20,
			MaxContextTokens: 6000,
		},
		Service: ServiceConfig{
			TimeoutSecs:   30,
			RetryAttempts: 3,
			RetryDelayMS:  250,
		},
		Session: SessionConfig{MaxTurns: 100, MaxSessions: 1000},
	}
}

func applyDefaults(cfg *AppConfig) {
	def := Default()
	if cfg.OpenAI.APIKeyEnv == "" {
		cfg.OpenAI.APIKeyEnv = def.OpenAI.APIKeyEnv
	}
	if cfg.OpenAI.EmbeddingModel == "" {
		cfg.OpenAI.EmbeddingModel = def.OpenAI.EmbeddingModel
	}
	if cfg.OpenAI.ChatModel == "" {
		cfg.OpenAI.ChatModel = def.OpenAI.ChatModel
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = def.VectorStore.Type
	}
	cfg.VectorStore.Type = strings.ToLower(cfg.VectorStore.Type)
	if cfg.VectorStore.Milvus.M == 0 {
		cfg.VectorStore.Milvus.M = def.VectorStore.Milvus.M
	}
	if cfg.VectorStore.Milvus.EfConstruction == 0 {
		cfg.VectorStore.Milvus.EfConstruction = def.VectorStore.Milvus.EfConstruction
	}
	if cfg.VectorStore.Milvus.EfSearch == 0 {
		cfg.VectorStore.Milvus.EfSearch = def.VectorStore.Milvus.EfSearch
	}
	if cfg.Session.MaxTurns == 0 {
		cfg.Session.MaxTurns = def.Session.MaxTurns
	}
	if cfg.Session.MaxSessions == 0 {
		cfg.Session.MaxSessions = def.Session.MaxSessions
	}
}

// ResolveSecrets reads credentials and the index name from the environment,
// falling back to literal values in the config file.
func (c *AppConfig) ResolveSecrets() Secrets {
	m := c.VectorStore.Milvus
	return Secrets{
		OpenAIAPIKey:  envOr(c.OpenAI.APIKeyEnv, ""),
		MilvusAddress: envOr(m.AddressEnv, m.Address),
		MilvusAPIKey:  envOr(m.APIKeyEnv, ""),
		Collection:    envOr(m.CollectionEnv, m.Collection),
	}
}

// Validate checks the configuration and the secrets it needs.
// All problems are reported together, wrapped in ErrConfiguration.
func (c *AppConfig) Validate() (Secrets, error) {
	secrets := c.ResolveSecrets()
	var problems []string

	if secrets.OpenAIAPIKey == "" {
		problems = append(problems, fmt.Sprintf("missing API key in env %s", c.OpenAI.APIKeyEnv))
	}
	if c.OpenAI.EmbeddingDimension <= 0 {
		problems = append(problems, "openai.embedding_dimension must be positive")
	}

	switch c.VectorStore.Type {
	case StoreMilvus:
		if secrets.MilvusAddress == "" {
			problems = append(problems, "milvus address is not set")
		}
		if secrets.Collection == "" {
			problems = append(problems, fmt.Sprintf("missing index name (set %s or vector_store.milvus.collection)", c.VectorStore.Milvus.CollectionEnv))
		}
	case StoreMemory:
		if c.VectorStore.Memory.Path == "" {
			problems = append(problems, "vector_store.memory.path is not set")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown vector store: %q", c.VectorStore.Type))
	}

	if c.Reference.ClusterSummaries == "" || c.Reference.ClusterMap == "" {
		problems = append(problems, "reference.cluster_summaries and reference.cluster_map are required")
	}
	if c.Retrieval.TopK <= 0 {
		problems = append(problems, "retrieval.top_k must be positive")
	}
	if c.Retrieval.MaxContextTokens < 0 {
		problems = append(problems, "retrieval.max_context_tokens cannot be negative")
	}
	if c.Service.TimeoutSecs <= 0 {
		problems = append(problems, "service.timeout_secs must be positive")
	}
	if c.Service.RetryAttempts <= 0 {
		problems = append(problems, "service.retry_attempts must be positive")
	}
	if c.Session.MaxSessions < 0 {
		problems = append(problems, "session.max_sessions cannot be negative")
	}

	if len(problems) > 0 {
		return secrets, fmt.Errorf("%w: %s", ErrConfiguration, strings.Join(problems, "; "))
	}
	return secrets, nil
}

// Timeout returns the per-call service timeout.
func (s ServiceConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSecs) * time.Second
}

// RetryDelay returns the initial retry backoff.
func (s ServiceConfig) RetryDelay() time.Duration {
	return time.Duration(s.RetryDelayMS) * time.Millisecond
}

func envOr(key, fallback string) string {
	if key != "" {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return fallback
}
