package metrics

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/finrag/filings-qa/filings"
)

var (
	currencyPattern = regexp.MustCompile(`(?i)\$\s*\d+(?:,\d{3})*(?:\.\d+)?(?:\s*(?:thousand|million|billion|trillion))?`)
	percentPattern  = regexp.MustCompile(`(?i)\d+(?:\.\d+)?\s*(?:%|percent)`)
	periodPattern   = regexp.MustCompile(`(?i)\b(?:fiscal\s+(?:year\s+)?\d{4}|FY\s?\d{2,4}|(?:first|second|third|fourth)\s+quarter(?:\s+of\s+(?:fiscal\s+)?\d{4})?|Q[1-4]\s+\d{4})\b`)

	scaleWords = map[string]float64{
		"thousand": 1e3,
		"million":  1e6,
		"billion":  1e9,
		"trillion": 1e12,
	}
)

type span struct {
	start, end int
	unit       filings.MetricUnit
}

// Extract scans chunk text for currency amounts, percentages and fiscal
// period references and returns them in order of appearance. Overlapping
// matches keep only the longest span. Malformed figures are kept with a nil
// numeric value so they can still be located by raw text; extraction never
// fails, in the worst case it returns nothing.
func Extract(text string) []filings.Metric {
	normalized := strings.Join(strings.Fields(text), " ")
	if normalized == "" {
		return nil
	}

	spans := collect(normalized, currencyPattern, filings.UnitCurrency)
	spans = append(spans, collect(normalized, percentPattern, filings.UnitPercent)...)
	spans = append(spans, collect(normalized, periodPattern, filings.UnitPeriod)...)
	spans = resolveOverlaps(spans)

	results := make([]filings.Metric, 0, len(spans))
	for _, s := range spans {
		raw := normalized[s.start:s.end]
		results = append(results, filings.Metric{
			Raw:   raw,
			Value: parseValue(raw, s.unit),
			Unit:  s.unit,
		})
	}
	return results
}

// NumericSpans returns the byte ranges of currency and percentage expressions
// in raw (unnormalized) text. The chunker uses these to avoid placing a split
// point inside a figure.
func NumericSpans(text string) [][2]int {
	spans := collect(text, currencyPattern, filings.UnitCurrency)
	spans = append(spans, collect(text, percentPattern, filings.UnitPercent)...)
	spans = resolveOverlaps(spans)

	out := make([][2]int, 0, len(spans))
	for _, s := range spans {
		out = append(out, [2]int{s.start, s.end})
	}
	return out
}

func collect(text string, pattern *regexp.Regexp, unit filings.MetricUnit) []span {
	matches := pattern.FindAllStringIndex(text, -1)
	spans := make([]span, 0, len(matches))
	for _, m := range matches {
		spans = append(spans, span{start: m[0], end: m[1], unit: unit})
	}
	return spans
}

// resolveOverlaps sorts spans by position and drops any span overlapping a
// longer one.
func resolveOverlaps(spans []span) []span {
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end-spans[i].start > spans[j].end-spans[j].start
	})

	kept := make([]span, 0, len(spans))
	for _, s := range spans {
		if len(kept) == 0 {
			kept = append(kept, s)
			continue
		}
		last := kept[len(kept)-1]
		if s.start >= last.end {
			kept = append(kept, s)
			continue
		}
		if s.end-s.start > last.end-last.start {
			kept[len(kept)-1] = s
		}
	}
	return kept
}

func parseValue(raw string, unit filings.MetricUnit) *float64 {
	switch unit {
	case filings.UnitCurrency:
		return parseCurrency(raw)
	case filings.UnitPercent:
		return parsePercent(raw)
	default:
		// Period references have no single numeric reading.
		return nil
	}
}

func parseCurrency(raw string) *float64 {
	lower := strings.ToLower(raw)
	multiplier := 1.0
	for word, scale := range scaleWords {
		if strings.HasSuffix(lower, word) {
			multiplier = scale
			lower = strings.TrimSpace(strings.TrimSuffix(lower, word))
			break
		}
	}

	lower = strings.TrimSpace(strings.TrimPrefix(lower, "$"))
	lower = strings.ReplaceAll(lower, ",", "")
	value, err := strconv.ParseFloat(lower, 64)
	if err != nil {
		return nil
	}
	value *= multiplier
	return &value
}

func parsePercent(raw string) *float64 {
	lower := strings.ToLower(raw)
	lower = strings.TrimSuffix(lower, "percent")
	lower = strings.TrimSuffix(strings.TrimSpace(lower), "%")
	value, err := strconv.ParseFloat(strings.TrimSpace(lower), 64)
	if err != nil {
		return nil
	}
	return &value
}
