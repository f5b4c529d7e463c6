package rag

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ReviewRow is one review read from the source CSV before embedding.
type ReviewRow struct {
	Metadata
}

// IndexStats reports what an indexing run did.
type IndexStats struct {
	Read    int
	Skipped int
	Indexed int
}

// Saver is implemented by stores that persist explicitly (MemoryStore).
type Saver interface {
	Save() error
}

// ReadReviewsCSV parses a reviews CSV. The header must contain "id" and
// "review_text"; "brand", "product_name" and "rating" are optional.
func ReadReviewsCSV(r io.Reader) ([]ReviewRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("reviews csv: missing header")
		}
		return nil, fmt.Errorf("reviews csv: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, required := range []string{"id", "review_text"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("reviews csv: missing %q column", required)
		}
	}

	get := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var rows []ReviewRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reviews csv: %w", err)
		}
		id := get(rec, "id")
		if id == "" {
			continue
		}
		rows = append(rows, ReviewRow{Metadata: Metadata{
			ReviewID:    id,
			Brand:       get(rec, "brand"),
			ProductName: get(rec, "product_name"),
			ReviewText:  get(rec, "review_text"),
			Rating:      get(rec, "rating"),
		}.withDefaults()})
	}
	return rows, nil
}

// IndexReviews embeds reviews in batches and stores them in the vector store.
// The review id is embedded in the stored metadata so cluster lookups work
// even when vector ids diverge.
func IndexReviews(
	ctx context.Context,
	rows []ReviewRow,
	embedder Embedder,
	vectorStore VectorStore,
	opts IndexOptions,
) (IndexStats, error) {
	stats := IndexStats{Read: len(rows)}
	if len(rows) == 0 {
		return stats, nil
	}
	if embedder == nil {
		return stats, fmt.Errorf("embedder cannot be nil")
	}
	if vectorStore == nil {
		return stats, fmt.Errorf("vector store cannot be nil")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultIndexOptions().BatchSize
	}

	toIndex := rows
	if opts.SkipEmptyText {
		toIndex = make([]ReviewRow, 0, len(rows))
		for _, row := range rows {
			if row.ReviewText == "" {
				stats.Skipped++
				continue
			}
			toIndex = append(toIndex, row)
		}
	}

	err := indexBatches(ctx, toIndex, embedder, vectorStore, opts.BatchSize, &stats)

	// Batches inserted before a failure are persisted too, so a rerun
	// only has to upsert the rest.
	if saver, ok := vectorStore.(Saver); ok && (err == nil || stats.Indexed > 0) {
		if serr := saver.Save(); serr != nil {
			err = errors.Join(err, fmt.Errorf("failed to save store: %w", serr))
		}
	}
	return stats, err
}

func indexBatches(
	ctx context.Context,
	toIndex []ReviewRow,
	embedder Embedder,
	vectorStore VectorStore,
	batchSize int,
	stats *IndexStats,
) error {
	for batchStart := 0; batchStart < len(toIndex); batchStart += batchSize {
		batchEnd := min(batchStart+batchSize, len(toIndex))
		batch := toIndex[batchStart:batchEnd]

		texts := make([]string, len(batch))
		for i, row := range batch {
			texts[i] = embeddingText(row)
		}

		embeddingRecords, err := embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to generate embeddings for batch starting at %d: %w", batchStart, err)
		}
		if len(embeddingRecords) != len(batch) {
			return fmt.Errorf("%w: batch starting at %d returned %d embeddings for %d reviews",
				ErrEmbeddingService, batchStart, len(embeddingRecords), len(batch))
		}

		records := make([]ReviewRecord, len(batch))
		for i, row := range batch {
			records[i] = ReviewRecord{
				ID:        row.ReviewID,
				Embedding: embeddingRecords[i].Embedding,
				Metadata:  row.Metadata,
			}
		}

		if err := vectorStore.Insert(ctx, records); err != nil {
			return fmt.Errorf("failed to insert batch starting at %d: %w", batchStart, err)
		}
		stats.Indexed += len(batch)
	}
	return nil
}

// embeddingText is the text embedded for a review. Empty-text reviews, when
// kept, fall back to the product name so the embedding call has input.
func embeddingText(row ReviewRow) string {
	if row.ReviewText != "" {
		return row.ReviewText
	}
	return row.Brand + " " + row.ProductName
}
