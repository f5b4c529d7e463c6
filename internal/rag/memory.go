package rag

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// MemoryStore is an in-process VectorStore using brute-force cosine
// similarity. It can be snapshotted to and restored from a JSONL file.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	records   []ReviewRecord
	byID      map[string]int
	path      string
}

// NewMemoryStore creates an empty store. A dimension of 0 is fixed by the
// first inserted record.
func NewMemoryStore(dimension int) *MemoryStore {
	return &MemoryStore{
		dimension: dimension,
		byID:      make(map[string]int),
	}
}

// OpenMemoryStore loads a JSONL snapshot from path. A missing file yields an
// empty store that Save will create.
func OpenMemoryStore(path string, dimension int) (*MemoryStore, error) {
	s := NewMemoryStore(dimension)
	s.path = path

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", ErrSearchService, path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var batch []ReviewRecord
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec ReviewRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %w", ErrSearchService, path, line, err)
		}
		batch = append(batch, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrSearchService, path, err)
	}
	if err := s.insert(batch); err != nil {
		return nil, err
	}
	return s, nil
}

// Insert adds or replaces records keyed by vector id.
func (s *MemoryStore) Insert(_ context.Context, records []ReviewRecord) error {
	return s.insert(records)
}

func (s *MemoryStore) insert(records []ReviewRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if s.dimension == 0 {
			s.dimension = len(r.Embedding)
		}
		if len(r.Embedding) != s.dimension {
			return fmt.Errorf("%w: record %s has %d, expected %d", ErrInvalidDimension, r.vectorID(), len(r.Embedding), s.dimension)
		}
		r.ID = r.vectorID()
		r.Metadata = r.Metadata.withDefaults()
		if i, ok := s.byID[r.ID]; ok {
			s.records[i] = r
			continue
		}
		s.byID[r.ID] = len(s.records)
		s.records = append(s.records, r)
	}
	return nil
}

// Search returns up to limit records ordered by descending cosine similarity.
// Equal scores keep insertion order.
func (s *MemoryStore) Search(ctx context.Context, queryVector []float32, limit int) ([]ReviewMatch, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearchService, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.records) == 0 {
		return []ReviewMatch{}, nil
	}
	if len(queryVector) != s.dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, s.dimension, len(queryVector))
	}

	scores := make([]float32, len(s.records))
	idxs := make([]int, len(s.records))
	for i, r := range s.records {
		scores[i] = cosine(queryVector, r.Embedding)
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool {
		return scores[idxs[a]] > scores[idxs[b]]
	})

	if limit > len(idxs) {
		limit = len(idxs)
	}
	matches := make([]ReviewMatch, 0, limit)
	for _, j := range idxs[:limit] {
		r := s.records[j]
		matches = append(matches, NewMatch(r.ID, scores[j], r.Metadata.Bag()))
	}
	return matches, nil
}

// Count returns the number of stored records.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// Save writes the snapshot to the path the store was opened from.
func (s *MemoryStore) Save() error {
	if s.path == "" {
		return nil
	}
	return s.SaveTo(s.path)
}

// SaveTo writes all records as JSONL, replacing the file atomically.
func (s *MemoryStore) SaveTo(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".reviews-*.jsonl")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	for _, r := range s.records {
		if err := enc.Encode(r); err != nil {
			tmp.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Close is a no-op; snapshots are written explicitly with Save.
func (s *MemoryStore) Close() error {
	return nil
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
