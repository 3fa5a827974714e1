package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/finrag/filings-qa/filings"
)

type memoryEntry struct {
	chunk     filings.Chunk
	embedding []float32
	meta      Metadata
}

// MemoryIndex is a brute-force cosine-similarity store. It backs tests and
// local runs that have no Postgres available, with the same contract as the
// production backend.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make(map[string]memoryEntry)}
}

func (m *MemoryIndex) Ingest(_ context.Context, chunk filings.Chunk, embedding []float32, meta Metadata) error {
	if chunk.ID == "" {
		return fmt.Errorf("chunk is missing an id")
	}
	if len(embedding) == 0 {
		return fmt.Errorf("embedding is empty for chunk %s", chunk.ID)
	}
	if err := meta.Validate(); err != nil {
		return fmt.Errorf("chunk %s: %w", chunk.ID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[chunk.ID] = memoryEntry{chunk: chunk, embedding: embedding, meta: meta}
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, embedding []float32, filters Filters, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("top_k must be positive, got %d", topK)
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("query embedding is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]SearchResult, 0, len(m.entries))
	for _, entry := range m.entries {
		if !filters.Matches(entry.meta) {
			continue
		}
		results = append(results, SearchResult{
			Chunk: entry.chunk,
			Meta:  entry.meta,
			Score: cosine(embedding, entry.embedding),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Meta.Position < results[j].Meta.Position
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Clear drops every stored chunk.
func (m *MemoryIndex) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]memoryEntry)
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var _ Index = (*MemoryIndex)(nil)
