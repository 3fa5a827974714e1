package retrieval

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/finrag/filings-qa/embeddings"
	"github.com/finrag/filings-qa/filings"
	"github.com/finrag/filings-qa/index"
)

const (
	DefaultDedupThreshold = 0.8
	DefaultSearchTimeout  = 10 * time.Second
)

// Merger executes a retrieval plan against the index. A plan naming several
// companies fans out into one filtered search per ticker so each company gets
// its own top-k, then results are merged, deduplicated and grouped per
// company.
type Merger struct {
	index          index.Index
	embedder       embeddings.Embedder
	logger         *log.Logger
	dedupThreshold float64
	searchTimeout  time.Duration
}

type Options struct {
	// DedupThreshold is the token-set similarity above which two same-company
	// chunks count as redundant evidence. Zero uses the default.
	DedupThreshold float64
	// SearchTimeout bounds each per-company search. A timed-out search
	// contributes zero results instead of failing the retrieval.
	SearchTimeout time.Duration
}

func NewMerger(idx index.Index, embedder embeddings.Embedder, logger *log.Logger, opts Options) *Merger {
	if logger == nil {
		logger = log.Default()
	}
	if opts.DedupThreshold <= 0 || opts.DedupThreshold > 1 {
		opts.DedupThreshold = DefaultDedupThreshold
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = DefaultSearchTimeout
	}
	return &Merger{
		index:          idx,
		embedder:       embedder,
		logger:         logger,
		dedupThreshold: opts.DedupThreshold,
		searchTimeout:  opts.SearchTimeout,
	}
}

// Retrieve runs the plan and returns the ranked evidence set, grouped by
// company and score-descending within each group. An empty result is a valid
// success. Individual company searches that fail or time out are logged and
// contribute nothing; only embedding failure aborts the whole retrieval.
func (m *Merger) Retrieve(ctx context.Context, plan filings.RetrievalPlan, topKPerQuery int) ([]filings.EvidenceResult, error) {
	if topKPerQuery <= 0 {
		return nil, fmt.Errorf("top_k per query must be positive, got %d", topKPerQuery)
	}
	if m.index == nil {
		return nil, fmt.Errorf("index is not configured")
	}
	if m.embedder == nil {
		return nil, fmt.Errorf("embedder is not configured")
	}
	if strings.TrimSpace(plan.SemanticText) == "" {
		return nil, fmt.Errorf("plan has no semantic query text")
	}

	vectors, err := m.embedder.Embed(ctx, []string{plan.SemanticText})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vectors")
	}
	queryVec := vectors[0]

	baseFilters := index.Filters{
		FilingTypes: plan.FilingTypes,
		Dates:       plan.Dates,
		Sections:    plan.Sections,
	}

	var hits []index.SearchResult
	if len(plan.Tickers) == 0 {
		hits = m.searchOne(ctx, queryVec, baseFilters, topKPerQuery, "")
	} else {
		hits = m.searchPerCompany(ctx, queryVec, baseFilters, topKPerQuery, plan.Tickers)
	}

	results := m.dedupe(hits)
	groupByCompany(results)
	return results, nil
}

func (m *Merger) searchOne(ctx context.Context, vec []float32, filters index.Filters, topK int, ticker string) []index.SearchResult {
	searchCtx, cancel := context.WithTimeout(ctx, m.searchTimeout)
	defer cancel()

	if ticker != "" {
		filters.Tickers = []string{ticker}
	}
	hits, err := m.index.Search(searchCtx, vec, filters, topK)
	if err != nil {
		if ticker != "" {
			m.logger.Printf("search for %s failed, continuing without it: %v", ticker, err)
		} else {
			m.logger.Printf("search failed, returning no results: %v", err)
		}
		return nil
	}
	return hits
}

// searchPerCompany dispatches one filtered search per ticker concurrently and
// merges after all complete or time out.
func (m *Merger) searchPerCompany(ctx context.Context, vec []float32, filters index.Filters, topK int, tickers []string) []index.SearchResult {
	perCompany := make([][]index.SearchResult, len(tickers))

	var wg sync.WaitGroup
	for i, ticker := range tickers {
		wg.Add(1)
		go func(slot int, ticker string) {
			defer wg.Done()
			perCompany[slot] = m.searchOne(ctx, vec, filters, topK, ticker)
		}(i, ticker)
	}
	wg.Wait()

	var merged []index.SearchResult
	for _, hits := range perCompany {
		merged = append(merged, hits...)
	}
	return merged
}

// dedupe drops exact chunk-id duplicates and near-duplicate texts from the
// same company, keeping the higher-scored instance of each.
func (m *Merger) dedupe(hits []index.SearchResult) []filings.EvidenceResult {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Meta.Position < hits[j].Meta.Position
	})

	seenIDs := map[string]struct{}{}
	keptTokens := map[string][]map[string]struct{}{}
	results := make([]filings.EvidenceResult, 0, len(hits))

	for _, hit := range hits {
		if _, ok := seenIDs[hit.Chunk.ID]; ok {
			continue
		}
		seenIDs[hit.Chunk.ID] = struct{}{}

		tokens := tokenSet(hit.Chunk.Text)
		redundant := false
		for _, prior := range keptTokens[hit.Meta.Ticker] {
			if jaccard(tokens, prior) >= m.dedupThreshold {
				redundant = true
				break
			}
		}
		if redundant {
			continue
		}
		keptTokens[hit.Meta.Ticker] = append(keptTokens[hit.Meta.Ticker], tokens)

		results = append(results, filings.EvidenceResult{
			ChunkID:     hit.Chunk.ID,
			Text:        hit.Chunk.Text,
			Ticker:      hit.Meta.Ticker,
			FilingType:  hit.Meta.FilingType,
			FilingDate:  hit.Meta.FilingDate,
			Section:     hit.Meta.Section,
			StartOffset: hit.Chunk.StartOffset,
			EndOffset:   hit.Chunk.EndOffset,
			Score:       hit.Score,
			Metrics:     hit.Chunk.Metrics,
		})
	}
	return results
}

// groupByCompany orders results so each company's evidence is contiguous.
// Groups are ordered by their best score, ties by ticker; within a group the
// order is score-descending.
func groupByCompany(results []filings.EvidenceResult) {
	best := map[string]float64{}
	for _, r := range results {
		if score, ok := best[r.Ticker]; !ok || r.Score > score {
			best[r.Ticker] = r.Score
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Ticker != results[j].Ticker {
			bi, bj := best[results[i].Ticker], best[results[j].Ticker]
			if bi != bj {
				return bi > bj
			}
			return results[i].Ticker < results[j].Ticker
		}
		return results[i].Score > results[j].Score
	})
}

func tokenSet(text string) map[string]struct{} {
	tokens := map[string]struct{}{}
	for _, field := range strings.Fields(strings.ToLower(text)) {
		field = strings.Trim(field, ".,;:!?\"'()")
		if field != "" {
			tokens[field] = struct{}{}
		}
	}
	return tokens
}

// jaccard is the token-set similarity used for near-duplicate detection.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	smaller, larger := a, b
	if len(b) < len(a) {
		smaller, larger = b, a
	}
	intersection := 0
	for token := range smaller {
		if _, ok := larger[token]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
