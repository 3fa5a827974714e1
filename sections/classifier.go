package sections

import (
	"regexp"

	"github.com/finrag/filings-qa/filings"
)

// leadingWindow bounds how much of a chunk's opening text is considered a
// heading. Headings appearing deep inside a chunk belong to the next chunk
// after the chunker's structural split.
const leadingWindow = 160

type rule struct {
	pattern *regexp.Regexp
	label   filings.SectionLabel
}

// Heading rules for 10-K/10-Q/8-K item structure. Ordered for readability
// only; the longest match wins, so "Item 1A Risk Factors" beats the bare
// "Business" rule even though both patterns fire on some texts.
var rules = []rule{
	{regexp.MustCompile(`(?i)(item\s*1a\.?\s*)?risk\s*factors`), filings.SectionRiskFactors},
	{regexp.MustCompile(`(?i)(item\s*7\.?\s*)?(management'?s?\s*discussion\s*and\s*analysis|md&a)`), filings.SectionMDA},
	{regexp.MustCompile(`(?i)(item\s*7a\.?\s*)?quantitative\s*and\s*qualitative\s*disclosures\s*about\s*market\s*risk`), filings.SectionMarketRisk},
	{regexp.MustCompile(`(?i)(item\s*8\.?\s*)?financial\s*statements(\s*and\s*supplementary\s*data)?`), filings.SectionFinancialStatements},
	{regexp.MustCompile(`(?i)item\s*1\.?\s*business\b`), filings.SectionBusiness},
}

// Classifier assigns section labels to a filing's chunks in order. Chunks
// that open with no recognizable heading inherit the label of the preceding
// chunk, so one Classifier serves exactly one filing's chunk sequence.
type Classifier struct {
	last filings.SectionLabel
}

func NewClassifier() *Classifier {
	return &Classifier{last: filings.SectionOther}
}

// Reset clears inherited state so the classifier can start a new filing.
func (c *Classifier) Reset() {
	c.last = filings.SectionOther
}

// Classify labels one chunk by its leading text. When several rules match,
// the longest matched heading wins. A chunk at position zero with no match is
// labeled other; later chunks inherit the last assigned label. Classify never
// fails and always returns a member of the label enumeration.
func (c *Classifier) Classify(text string, position int) filings.SectionLabel {
	if label, ok := Match(leading(text)); ok {
		c.last = label
		return label
	}
	if position == 0 {
		c.last = filings.SectionOther
	}
	return c.last
}

// Match runs the heading rule table against text, returning the label of the
// longest matching pattern.
func Match(text string) (filings.SectionLabel, bool) {
	best := filings.SectionOther
	bestLen := 0
	for _, r := range rules {
		if loc := r.pattern.FindStringIndex(text); loc != nil {
			if length := loc[1] - loc[0]; length > bestLen {
				best = r.label
				bestLen = length
			}
		}
	}
	return best, bestLen > 0
}

func leading(text string) string {
	if len(text) > leadingWindow {
		return text[:leadingWindow]
	}
	return text
}
