package filings

import (
	"fmt"
	"strings"
	"time"
)

// FilingType identifies the SEC form a document was filed under.
type FilingType string

const (
	Type10K FilingType = "10-K"
	Type10Q FilingType = "10-Q"
	Type8K  FilingType = "8-K"
)

// ParseFilingType maps a raw form string onto a known filing type.
func ParseFilingType(raw string) (FilingType, error) {
	switch FilingType(strings.ToUpper(strings.TrimSpace(raw))) {
	case Type10K:
		return Type10K, nil
	case Type10Q:
		return Type10Q, nil
	case Type8K:
		return Type8K, nil
	default:
		return "", fmt.Errorf("unknown filing type: %q", raw)
	}
}

// SectionLabel is the structural category assigned to a chunk. Every chunk
// carries exactly one label; unrecognized content falls back to SectionOther.
type SectionLabel string

const (
	SectionRiskFactors         SectionLabel = "risk_factors"
	SectionMDA                 SectionLabel = "mda"
	SectionBusiness            SectionLabel = "business"
	SectionFinancialStatements SectionLabel = "financial_statements"
	SectionMarketRisk          SectionLabel = "market_risk"
	SectionOther               SectionLabel = "other"
)

// Filing is one collected SEC document. Filings are created by the collector
// and never mutated afterwards.
type Filing struct {
	ID          string
	CompanyName string
	Ticker      string
	Type        FilingType
	Date        time.Time
	Text        string
}

// Validate reports whether the filing carries everything ingestion requires.
// A failure here is a caller bug, not bad input data.
func (f Filing) Validate() error {
	if strings.TrimSpace(f.ID) == "" {
		return fmt.Errorf("filing is missing an id")
	}
	if strings.TrimSpace(f.Ticker) == "" {
		return fmt.Errorf("filing %s is missing a ticker", f.ID)
	}
	if f.Type == "" {
		return fmt.Errorf("filing %s is missing a filing type", f.ID)
	}
	if f.Date.IsZero() {
		return fmt.Errorf("filing %s is missing a filing date", f.ID)
	}
	return nil
}

// MetricUnit tags what kind of figure a metric span holds.
type MetricUnit string

const (
	UnitCurrency MetricUnit = "currency"
	UnitPercent  MetricUnit = "percent"
	UnitPeriod   MetricUnit = "period"
)

// Metric is a financial figure found in chunk text. Value is nil when the raw
// span could not be parsed to a number; the raw text is kept either way.
type Metric struct {
	Raw   string     `json:"raw"`
	Value *float64   `json:"value,omitempty"`
	Unit  MetricUnit `json:"unit"`
}

// Chunk is the unit of indexing and retrieval: a bounded text span cut from
// one filing, positioned by Index and addressable back into the source text
// through the character offsets.
type Chunk struct {
	ID          string
	FilingID    string
	Index       int
	Text        string
	Section     SectionLabel
	Metrics     []Metric
	StartOffset int
	EndOffset   int
}

// ChunkID derives the stable chunk identifier from its filing and position.
func ChunkID(filingID string, index int) string {
	return fmt.Sprintf("%s:%d", filingID, index)
}

// DateRange bounds filing dates at search time. A nil endpoint leaves that
// side unrestricted.
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

// Empty reports whether the range constrains nothing.
func (r DateRange) Empty() bool {
	return r.Start == nil && r.End == nil
}

// Contains reports whether t falls inside the range, inclusive on both ends.
func (r DateRange) Contains(t time.Time) bool {
	if r.Start != nil && t.Before(*r.Start) {
		return false
	}
	if r.End != nil && t.After(*r.End) {
		return false
	}
	return true
}

// RetrievalPlan is the structured reading of one natural-language question:
// the filterable facets pulled out of the text plus the residual semantic
// query. Empty filter sets leave that facet unrestricted. SemanticText is
// never empty; the planner falls back to the full question when nothing
// useful remains after stripping.
type RetrievalPlan struct {
	Tickers      []string
	FilingTypes  []FilingType
	Dates        DateRange
	Sections     []SectionLabel
	SemanticText string
}

// EvidenceResult is one ranked, attributed chunk in a retrieval response.
type EvidenceResult struct {
	ChunkID     string
	Text        string
	Ticker      string
	FilingType  FilingType
	FilingDate  time.Time
	Section     SectionLabel
	StartOffset int
	EndOffset   int
	Score       float64
	Metrics     []Metric
}
