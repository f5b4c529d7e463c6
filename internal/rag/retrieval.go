package rag

import (
	"context"
	"fmt"
	"strings"
)

// Retriever provides high-level semantic retrieval over indexed reviews.
type Retriever struct {
	embedder    Embedder
	vectorStore VectorStore
}

// NewRetriever creates a new Retriever instance.
func NewRetriever(embedder Embedder, vectorStore VectorStore) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder cannot be nil")
	}
	if vectorStore == nil {
		return nil, fmt.Errorf("vector store cannot be nil")
	}

	return &Retriever{
		embedder:    embedder,
		vectorStore: vectorStore,
	}, nil
}

// EmbedQuery turns a single question into its query vector.
func (r *Retriever) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", ErrEmbeddingService)
	}

	records, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 || len(records[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: no embedding generated for query", ErrEmbeddingService)
	}
	return records[0].Embedding, nil
}

// Search returns up to limit matches for the vector, most similar first.
// The limit is clamped to the number of vectors in the index; an empty
// index returns no matches without searching.
func (r *Retriever) Search(ctx context.Context, queryVector []float32, limit int) ([]ReviewMatch, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidLimit, limit)
	}

	total, err := r.vectorStore.Count(ctx)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return []ReviewMatch{}, nil
	}
	if limit > total {
		limit = total
	}

	matches, err := r.vectorStore.Search(ctx, queryVector, limit)
	if err != nil {
		return nil, err
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// SearchAll returns every vector in the index ranked against the query.
func (r *Retriever) SearchAll(ctx context.Context, queryVector []float32) ([]ReviewMatch, error) {
	total, err := r.vectorStore.Count(ctx)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return []ReviewMatch{}, nil
	}
	return r.Search(ctx, queryVector, total)
}

// RetrieveForQuery embeds a free-text query and searches with the given limit.
// A limit of 0 or less retrieves the whole index.
func (r *Retriever) RetrieveForQuery(ctx context.Context, query string, limit int) ([]ReviewMatch, error) {
	vec, err := r.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return r.SearchAll(ctx, vec)
	}
	return r.Search(ctx, vec, limit)
}
