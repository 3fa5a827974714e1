package index

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/finrag/filings-qa/filings"
)

// Metadata is the fixed-shape record stored alongside every chunk embedding.
// All fields are required at ingest time; a missing field is a caller bug and
// fails fast.
type Metadata struct {
	Ticker     string
	FilingType filings.FilingType
	FilingDate time.Time
	Section    filings.SectionLabel
	Position   int
}

func (m Metadata) Validate() error {
	if strings.TrimSpace(m.Ticker) == "" {
		return fmt.Errorf("chunk metadata is missing a ticker")
	}
	if m.FilingType == "" {
		return fmt.Errorf("chunk metadata is missing a filing type")
	}
	if m.FilingDate.IsZero() {
		return fmt.Errorf("chunk metadata is missing a filing date")
	}
	if m.Section == "" {
		return fmt.Errorf("chunk metadata is missing a section label")
	}
	return nil
}

// Filters is an AND-conjunction of metadata predicates applied at search
// time. Empty sets and nil date bounds leave the corresponding facet
// unrestricted.
type Filters struct {
	Tickers     []string
	FilingTypes []filings.FilingType
	Dates       filings.DateRange
	Sections    []filings.SectionLabel
}

// Matches reports whether metadata passes every supplied predicate.
func (f Filters) Matches(m Metadata) bool {
	if len(f.Tickers) > 0 && !containsString(f.Tickers, m.Ticker) {
		return false
	}
	if len(f.FilingTypes) > 0 && !containsType(f.FilingTypes, m.FilingType) {
		return false
	}
	if !f.Dates.Contains(m.FilingDate) {
		return false
	}
	if len(f.Sections) > 0 && !containsSection(f.Sections, m.Section) {
		return false
	}
	return true
}

// SearchResult is one similarity hit: the stored chunk, the metadata that
// selected it and the similarity score.
type SearchResult struct {
	Chunk filings.Chunk
	Meta  Metadata
	Score float64
}

// Index is the narrow contract the core requires from a vector store.
// Ingest is idempotent on chunk id: re-ingesting overwrites rather than
// duplicates. Search never returns a chunk whose metadata fails a supplied
// filter, orders by descending score and breaks ties by chunk position.
type Index interface {
	Ingest(ctx context.Context, chunk filings.Chunk, embedding []float32, meta Metadata) error
	Search(ctx context.Context, embedding []float32, filters Filters, topK int) ([]SearchResult, error)
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

func containsType(set []filings.FilingType, v filings.FilingType) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsSection(set []filings.SectionLabel, v filings.SectionLabel) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
