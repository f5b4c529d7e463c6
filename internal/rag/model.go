package rag

import (
	"context"
)

// Metadata defaults applied when a match's metadata bag omits a field.
const (
	DefaultBrand   = "Unknown"
	DefaultProduct = "Unknown Product"
)

// Metadata is the typed view of the metadata attached to an indexed review.
// Defaults are resolved once at the adapter boundary.
type Metadata struct {
	ReviewID    string `json:"id"`
	Brand       string `json:"brand"`
	ProductName string `json:"product_name"`
	ReviewText  string `json:"review_text"`
	Rating      string `json:"rating,omitempty"`
}

// ReviewMatch is a single vector-search hit. It is never mutated after the
// adapter constructs it.
type ReviewMatch struct {
	// ID is the top-level identifier of the vector in the index
	ID string `json:"id"`

	// ReviewID is the identifier used for cluster-map lookups: the
	// metadata-embedded id when present, else ID
	ReviewID string `json:"review_id"`

	// Score is the similarity score; higher is more similar
	Score float32 `json:"score"`

	Metadata Metadata `json:"metadata"`
}

// HasText reports whether the match carries displayable review text.
func (m ReviewMatch) HasText() bool {
	return m.Metadata.ReviewText != ""
}

// ReviewRecord is a review with its embedding, ready for insertion.
type ReviewRecord struct {
	// ID is the vector identifier; defaults to Metadata.ReviewID
	ID        string    `json:"id"`
	Embedding []float32 `json:"embedding"`
	Metadata  Metadata  `json:"metadata"`
}

// VectorStore defines the interface for review storage and similarity search.
type VectorStore interface {
	// Insert stores review records and makes them searchable
	Insert(ctx context.Context, records []ReviewRecord) error

	// Search returns up to limit matches, most similar first
	Search(ctx context.Context, queryVector []float32, limit int) ([]ReviewMatch, error)

	// Count returns the total number of vectors in the index
	Count(ctx context.Context) (int, error)

	// Close releases resources and closes connections
	Close() error
}

// IndexOptions provides configuration for review indexing
type IndexOptions struct {
	// BatchSize determines how many reviews to embed at once
	BatchSize int

	// SkipEmptyText drops reviews without text instead of embedding a blank string
	SkipEmptyText bool
}

// DefaultIndexOptions returns sensible defaults for indexing
func DefaultIndexOptions() IndexOptions {
	return IndexOptions{
		BatchSize:     64,
		SkipEmptyText: true,
	}
}
