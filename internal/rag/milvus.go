package rag

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/Yates-Labs/reviewlens/internal/resilience"
)

// Common errors for vector store operations
var (
	ErrInvalidDimension = errors.New("invalid vector dimension")
	ErrEmptyRecords     = errors.New("no records provided for insertion")
	ErrInvalidLimit     = errors.New("search limit must be positive")
	ErrSearchService    = errors.New("search service error")
	ErrIndexService     = errors.New("index write failed")
)

// maxMilvusTopK is the largest topK a Milvus search accepts.
const maxMilvusTopK = 16384

// Field names of the review collection schema.
const (
	fieldID          = "id"
	fieldReviewID    = "review_id"
	fieldBrand       = "brand"
	fieldProductName = "product_name"
	fieldReviewText  = "review_text"
	fieldRating      = "rating"
	fieldEmbedding   = "embedding"
)

var outputFields = []string{fieldReviewID, fieldBrand, fieldProductName, fieldReviewText, fieldRating}

// MilvusConfig holds configuration for Milvus connection and collection
type MilvusConfig struct {
	Address        string // Milvus server address (e.g., "localhost:19530")
	APIKey         string // Optional token for managed deployments
	CollectionName string // Name of the collection (the index name)
	Dimension      int    // Vector dimension (e.g., 1536 for text-embedding-3-small)

	// HNSW index parameters
	M              int // HNSW M parameter (default: 16)
	EfConstruction int // HNSW efConstruction (default: 256)
	EfSearch       int // HNSW ef used at query time (default: 64)
}

// DefaultMilvusConfig returns default connection settings for a local Milvus.
func DefaultMilvusConfig() MilvusConfig {
	return MilvusConfig{
		Address:        "localhost:19530",
		Dimension:      1536,
		M:              16,
		EfConstruction: 256,
		EfSearch:       64,
	}
}

// MilvusStore implements VectorStore interface using Milvus
type MilvusStore struct {
	client client.Client
	config MilvusConfig
	caller *resilience.Caller
}

// NewMilvusStore creates a new Milvus vector store instance.
// Connects to Milvus and ensures the collection exists with proper schema.
func NewMilvusStore(ctx context.Context, config MilvusConfig, caller *resilience.Caller) (*MilvusStore, error) {
	if config.Dimension <= 0 {
		return nil, ErrInvalidDimension
	}
	if config.CollectionName == "" {
		return nil, fmt.Errorf("%w: collection name is empty", ErrSearchService)
	}
	if caller == nil {
		caller = resilience.NewCaller("milvus", resilience.DefaultPolicy(), nil)
	}

	var c client.Client
	err := caller.Do(ctx, func(ctx context.Context) error {
		var err error
		c, err = client.NewClient(ctx, client.Config{
			Address: config.Address,
			APIKey:  config.APIKey,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to %s: %w", ErrSearchService, config.Address, err)
	}

	store := &MilvusStore{
		client: c,
		config: config,
		caller: caller,
	}

	if err := store.ensureCollection(ctx); err != nil {
		c.Close()
		return nil, err
	}

	return store, nil
}

// ensureCollection creates the collection with schema if it doesn't exist,
// then loads it for search.
func (m *MilvusStore) ensureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.config.CollectionName)
	if err != nil {
		return fmt.Errorf("%w: checking collection: %w", ErrSearchService, err)
	}

	if !has {
		if err := m.createCollection(ctx); err != nil {
			return err
		}
	}

	if err := m.client.LoadCollection(ctx, m.config.CollectionName, false); err != nil {
		return fmt.Errorf("%w: loading collection: %w", ErrSearchService, err)
	}
	return nil
}

func (m *MilvusStore) createCollection(ctx context.Context) error {
	varchar := func(name string, maxLen int) *entity.Field {
		return &entity.Field{
			Name:       name,
			DataType:   entity.FieldTypeVarChar,
			TypeParams: map[string]string{"max_length": strconv.Itoa(maxLen)},
		}
	}

	idField := varchar(fieldID, 128)
	idField.PrimaryKey = true

	schema := &entity.Schema{
		CollectionName: m.config.CollectionName,
		Description:    "product review embeddings",
		Fields: []*entity.Field{
			idField,
			varchar(fieldReviewID, 128),
			varchar(fieldBrand, 256),
			varchar(fieldProductName, 512),
			varchar(fieldReviewText, 65535),
			varchar(fieldRating, 32),
			{
				Name:     fieldEmbedding,
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": strconv.Itoa(m.config.Dimension),
				},
			},
		},
	}

	if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("%w: creating collection: %w", ErrIndexService, err)
	}

	idx, err := entity.NewIndexHNSW(entity.COSINE, m.config.M, m.config.EfConstruction)
	if err != nil {
		return fmt.Errorf("%w: index config: %w", ErrIndexService, err)
	}
	if err := m.client.CreateIndex(ctx, m.config.CollectionName, fieldEmbedding, idx, false); err != nil {
		return fmt.Errorf("%w: creating index: %w", ErrIndexService, err)
	}
	return nil
}

// Insert upserts review records into Milvus and flushes them, so
// re-indexing a record replaces the stored row instead of duplicating it.
// Empty input is a no-op.
func (m *MilvusStore) Insert(ctx context.Context, records []ReviewRecord) error {
	if len(records) == 0 {
		return nil
	}

	n := len(records)
	ids := make([]string, n)
	reviewIDs := make([]string, n)
	brands := make([]string, n)
	products := make([]string, n)
	texts := make([]string, n)
	ratings := make([]string, n)
	embeddings := make([][]float32, n)

	for i, r := range records {
		if len(r.Embedding) != m.config.Dimension {
			return fmt.Errorf("%w: record %s has %d, expected %d", ErrInvalidDimension, r.ID, len(r.Embedding), m.config.Dimension)
		}
		ids[i] = r.vectorID()
		reviewIDs[i] = r.Metadata.ReviewID
		brands[i] = r.Metadata.Brand
		products[i] = r.Metadata.ProductName
		texts[i] = r.Metadata.ReviewText
		ratings[i] = r.Metadata.Rating
		embeddings[i] = r.Embedding
	}

	columns := []entity.Column{
		entity.NewColumnVarChar(fieldID, ids),
		entity.NewColumnVarChar(fieldReviewID, reviewIDs),
		entity.NewColumnVarChar(fieldBrand, brands),
		entity.NewColumnVarChar(fieldProductName, products),
		entity.NewColumnVarChar(fieldReviewText, texts),
		entity.NewColumnVarChar(fieldRating, ratings),
		entity.NewColumnFloatVector(fieldEmbedding, m.config.Dimension, embeddings),
	}

	err := m.caller.Do(ctx, func(ctx context.Context) error {
		if _, err := m.client.Upsert(ctx, m.config.CollectionName, "", columns...); err != nil {
			return err
		}
		return m.client.Flush(ctx, m.config.CollectionName, false)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIndexService, err)
	}
	return nil
}

// Search performs top-K similarity search. The limit is clamped to the
// largest topK Milvus accepts.
func (m *MilvusStore) Search(ctx context.Context, queryVector []float32, limit int) ([]ReviewMatch, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if len(queryVector) != m.config.Dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, m.config.Dimension, len(queryVector))
	}
	if limit > maxMilvusTopK {
		limit = maxMilvusTopK
	}

	sp, err := entity.NewIndexHNSWSearchParam(max(m.config.EfSearch, limit))
	if err != nil {
		return nil, fmt.Errorf("%w: search params: %w", ErrSearchService, err)
	}

	var results []client.SearchResult
	err = m.caller.Do(ctx, func(ctx context.Context) error {
		var err error
		results, err = m.client.Search(
			ctx,
			m.config.CollectionName,
			nil, // partition names
			"",  // no filter
			outputFields,
			[]entity.Vector{entity.FloatVector(queryVector)},
			fieldEmbedding,
			entity.COSINE,
			limit,
			sp,
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearchService, err)
	}

	if len(results) == 0 {
		return []ReviewMatch{}, nil
	}
	matches, err := matchesFromResult(results[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearchService, err)
	}
	return matches, nil
}

// matchesFromResult converts one Milvus result set into ReviewMatches,
// keeping the server's ordering.
func matchesFromResult(res client.SearchResult) ([]ReviewMatch, error) {
	if res.Err != nil {
		return nil, res.Err
	}
	if res.ResultCount == 0 || res.IDs == nil {
		return []ReviewMatch{}, nil
	}
	if len(res.Scores) < res.ResultCount {
		return nil, fmt.Errorf("result has %d scores for %d hits", len(res.Scores), res.ResultCount)
	}

	matches := make([]ReviewMatch, 0, res.ResultCount)
	for i := 0; i < res.ResultCount; i++ {
		id, err := res.IDs.GetAsString(i)
		if err != nil {
			return nil, fmt.Errorf("reading id %d: %w", i, err)
		}

		bag := make(map[string]any, len(res.Fields))
		for _, field := range res.Fields {
			if i >= field.Len() {
				continue
			}
			v, err := field.GetAsString(i)
			if err != nil {
				continue
			}
			key := field.Name()
			if key == fieldReviewID {
				key = "id"
			}
			bag[key] = v
		}

		matches = append(matches, NewMatch(id, res.Scores[i], bag))
	}
	return matches, nil
}

// Count returns the number of rows in the collection.
func (m *MilvusStore) Count(ctx context.Context) (int, error) {
	var stats map[string]string
	err := m.caller.Do(ctx, func(ctx context.Context) error {
		var err error
		stats, err = m.client.GetCollectionStatistics(ctx, m.config.CollectionName)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%w: collection statistics: %w", ErrSearchService, err)
	}

	n, err := strconv.Atoi(stats["row_count"])
	if err != nil {
		return 0, fmt.Errorf("%w: row_count %q: %w", ErrSearchService, stats["row_count"], err)
	}
	return n, nil
}

// Close releases resources and closes the Milvus connection
func (m *MilvusStore) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}

func (r ReviewRecord) vectorID() string {
	if r.ID != "" {
		return r.ID
	}
	return r.Metadata.ReviewID
}
