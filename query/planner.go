package query

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/finrag/filings-qa/filings"
)

// minSignificantWords is the informativeness floor for the residual semantic
// text; below it the planner falls back to the full question.
const minSignificantWords = 3

// companyAliases maps lowercase company names to their ticker candidates.
// An ambiguous alias lists every candidate; the plan carries them all rather
// than guessing.
var companyAliases = map[string][]string{
	"apple":           {"AAPL"},
	"microsoft":       {"MSFT"},
	"google":          {"GOOGL"},
	"alphabet":        {"GOOGL"},
	"amazon":          {"AMZN"},
	"meta":            {"META"},
	"facebook":        {"META"},
	"jpmorgan":        {"JPM"},
	"jp morgan":       {"JPM"},
	"goldman sachs":   {"GS"},
	"goldman":         {"GS"},
	"morgan stanley":  {"MS"},
	"morgan":          {"JPM", "MS"},
	"bank of america": {"BAC"},
	"wells fargo":     {"WFC"},
}

var tickerPattern = regexp.MustCompile(`\$?\b(AAPL|MSFT|GOOGL|META|AMZN|JPM|BAC|GS|MS|WFC)\b`)

var filingTypeKeywords = []struct {
	keyword string
	ftype   filings.FilingType
}{
	{"annual report", filings.Type10K},
	{"annual filing", filings.Type10K},
	{"10-k", filings.Type10K},
	{"10k", filings.Type10K},
	{"quarterly report", filings.Type10Q},
	{"quarterly filing", filings.Type10Q},
	{"quarterly", filings.Type10Q},
	{"10-q", filings.Type10Q},
	{"10q", filings.Type10Q},
	{"current report", filings.Type8K},
	{"8-k", filings.Type8K},
	{"8k", filings.Type8K},
}

// sectionKeywords is ordered longest-first so "market risk" claims its span
// before the bare "risk" rule can.
var sectionKeywords = []struct {
	keyword string
	label   filings.SectionLabel
}{
	{"management's discussion and analysis", filings.SectionMDA},
	{"management discussion and analysis", filings.SectionMDA},
	{"management discussion", filings.SectionMDA},
	{"revenue drivers", filings.SectionMDA},
	{"md&a", filings.SectionMDA},
	{"mda", filings.SectionMDA},
	{"financial statements", filings.SectionFinancialStatements},
	{"income statement", filings.SectionFinancialStatements},
	{"balance sheet", filings.SectionFinancialStatements},
	{"cash flow statement", filings.SectionFinancialStatements},
	{"market risk", filings.SectionMarketRisk},
	{"risk factors", filings.SectionRiskFactors},
	{"risks", filings.SectionRiskFactors},
	{"risk", filings.SectionRiskFactors},
	{"business overview", filings.SectionBusiness},
	{"business description", filings.SectionBusiness},
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {},
	"as": {}, "by": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"it": {}, "be": {}, "with": {}, "from": {}, "that": {}, "this": {},
	"what": {}, "which": {}, "how": {}, "about": {}, "did": {}, "do": {},
	"does": {}, "their": {}, "its": {},
}

var connectorWords = map[string]struct{}{
	"and": {}, "or": {}, "for": {}, "of": {}, "in": {}, "on": {},
	"to": {}, "about": {}, "vs": {}, "vs.": {}, "versus": {}, "the": {},
	"a": {}, "an": {},
}

// Planner turns a natural-language question into a retrieval plan. Relative
// date expressions resolve against the reference date.
type Planner struct {
	reference time.Time
}

func NewPlanner(reference time.Time) *Planner {
	if reference.IsZero() {
		reference = time.Now()
	}
	return &Planner{reference: reference}
}

// Plan extracts companies, filing types, dates and sections from the
// question and keeps the remainder as the semantic query. The semantic text
// is never empty: when stripping leaves fewer than three significant words,
// the full question is used instead.
func (p *Planner) Plan(question string) filings.RetrievalPlan {
	question = strings.TrimSpace(question)
	claims := newClaimSet(len(question))

	plan := filings.RetrievalPlan{
		Tickers:     p.extractTickers(question, claims),
		FilingTypes: p.extractFilingTypes(question, claims),
		Dates:       p.extractDates(question, claims),
		Sections:    p.extractSections(question, claims),
	}
	plan.SemanticText = residual(question, claims)
	return plan
}

func (p *Planner) extractTickers(question string, claims *claimSet) []string {
	seen := map[string]struct{}{}

	// Longer alias names first so "morgan stanley" wins over "morgan".
	names := make([]string, 0, len(companyAliases))
	for name := range companyAliases {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})

	for _, name := range names {
		pattern := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`)
		for _, m := range pattern.FindAllStringIndex(question, -1) {
			if !claims.claim(m[0], m[1]) {
				continue
			}
			for _, ticker := range companyAliases[name] {
				seen[ticker] = struct{}{}
			}
		}
	}

	for _, m := range tickerPattern.FindAllStringIndex(question, -1) {
		if !claims.claim(m[0], m[1]) {
			continue
		}
		seen[strings.TrimPrefix(question[m[0]:m[1]], "$")] = struct{}{}
	}

	tickers := make([]string, 0, len(seen))
	for ticker := range seen {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)
	return tickers
}

func (p *Planner) extractFilingTypes(question string, claims *claimSet) []filings.FilingType {
	seen := map[filings.FilingType]struct{}{}
	for _, kw := range filingTypeKeywords {
		pattern := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(kw.keyword) + `\b`)
		for _, m := range pattern.FindAllStringIndex(question, -1) {
			if !claims.claim(m[0], m[1]) {
				continue
			}
			seen[kw.ftype] = struct{}{}
		}
	}

	types := make([]filings.FilingType, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

var (
	lastYearPattern    = regexp.MustCompile(`(?i)\blast\s+year\b`)
	thisYearPattern    = regexp.MustCompile(`(?i)\bthis\s+year\b`)
	lastQuarterPattern = regexp.MustCompile(`(?i)\blast\s+quarter\b`)
	yearRangePattern   = regexp.MustCompile(`(?i)\b(?:from\s+|between\s+)?((?:19|20)\d{2})\s*(?:to|through|and|-)\s*((?:19|20)\d{2})\b`)
	sincePattern       = regexp.MustCompile(`(?i)\bsince\s+((?:19|20)\d{2})\b`)
	bareYearPattern    = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
)

// extractDates resolves explicit and relative date expressions to a filing
// date range. Unparseable expressions are left for the semantic text rather
// than failing the plan.
func (p *Planner) extractDates(question string, claims *claimSet) filings.DateRange {
	if m := yearRangePattern.FindStringSubmatchIndex(question); m != nil && claims.claim(m[0], m[1]) {
		start := atoiYear(question[m[2]:m[3]])
		end := atoiYear(question[m[4]:m[5]])
		return yearSpan(start, end)
	}
	if m := sincePattern.FindStringSubmatchIndex(question); m != nil && claims.claim(m[0], m[1]) {
		start := time.Date(atoiYear(question[m[2]:m[3]]), time.January, 1, 0, 0, 0, 0, time.UTC)
		return filings.DateRange{Start: &start}
	}
	if m := lastYearPattern.FindStringIndex(question); m != nil && claims.claim(m[0], m[1]) {
		year := p.reference.Year() - 1
		return yearSpan(year, year)
	}
	if m := thisYearPattern.FindStringIndex(question); m != nil && claims.claim(m[0], m[1]) {
		year := p.reference.Year()
		return yearSpan(year, year)
	}
	if m := lastQuarterPattern.FindStringIndex(question); m != nil && claims.claim(m[0], m[1]) {
		return p.previousQuarter()
	}
	if m := bareYearPattern.FindStringSubmatchIndex(question); m != nil && claims.claim(m[0], m[1]) {
		year := atoiYear(question[m[2]:m[3]])
		return yearSpan(year, year)
	}
	return filings.DateRange{}
}

func (p *Planner) previousQuarter() filings.DateRange {
	quarter := (int(p.reference.Month()) - 1) / 3
	year := p.reference.Year()
	quarter--
	if quarter < 0 {
		quarter = 3
		year--
	}
	start := time.Date(year, time.Month(quarter*3+1), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 3, 0).Add(-time.Nanosecond)
	return filings.DateRange{Start: &start, End: &end}
}

func (p *Planner) extractSections(question string, claims *claimSet) []filings.SectionLabel {
	seen := map[filings.SectionLabel]struct{}{}
	for _, kw := range sectionKeywords {
		pattern := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(kw.keyword) + `\b`)
		for _, m := range pattern.FindAllStringIndex(question, -1) {
			if !claims.claim(m[0], m[1]) {
				continue
			}
			seen[kw.label] = struct{}{}
		}
	}

	sections := make([]filings.SectionLabel, 0, len(seen))
	for s := range seen {
		sections = append(sections, s)
	}
	sort.Slice(sections, func(i, j int) bool { return sections[i] < sections[j] })
	return sections
}

// residual removes every claimed span and cleans up what remains. The
// cleanup only collapses whitespace and trims dangling connector words, so
// running the planner over its own residual is a fixed point.
func residual(question string, claims *claimSet) string {
	var builder strings.Builder
	for i := 0; i < len(question); i++ {
		if claims.taken[i] {
			builder.WriteByte(' ')
		} else {
			builder.WriteByte(question[i])
		}
	}

	tokens := strings.Fields(builder.String())
	tokens = trimConnectors(tokens)
	remainder := strings.Join(tokens, " ")

	if countSignificant(tokens) < minSignificantWords {
		return question
	}
	return remainder
}

func trimConnectors(tokens []string) []string {
	for len(tokens) > 0 {
		if _, ok := connectorWords[strings.ToLower(trimPunct(tokens[len(tokens)-1]))]; !ok {
			break
		}
		tokens = tokens[:len(tokens)-1]
	}
	for len(tokens) > 0 {
		if _, ok := connectorWords[strings.ToLower(trimPunct(tokens[0]))]; !ok {
			break
		}
		tokens = tokens[1:]
	}
	return tokens
}

func countSignificant(tokens []string) int {
	count := 0
	for _, token := range tokens {
		word := strings.ToLower(trimPunct(token))
		if len(word) < 3 {
			continue
		}
		if _, ok := stopwords[word]; ok {
			continue
		}
		count++
	}
	return count
}

func trimPunct(token string) string {
	return strings.Trim(token, ".,;:!?\"'()")
}

func atoiYear(s string) int {
	year, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return year
}

func yearSpan(startYear, endYear int) filings.DateRange {
	if endYear < startYear {
		startYear, endYear = endYear, startYear
	}
	start := time.Date(startYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(endYear, time.December, 31, 23, 59, 59, 0, time.UTC)
	return filings.DateRange{Start: &start, End: &end}
}

// claimSet tracks which bytes of the question have been consumed by a
// structured facet, so facets never double-claim overlapping text.
type claimSet struct {
	taken []bool
}

func newClaimSet(n int) *claimSet {
	return &claimSet{taken: make([]bool, n)}
}

// claim marks [start, end) as consumed, refusing overlaps with earlier
// claims.
func (c *claimSet) claim(start, end int) bool {
	if start < 0 || end > len(c.taken) || start >= end {
		return false
	}
	for i := start; i < end; i++ {
		if c.taken[i] {
			return false
		}
	}
	for i := start; i < end; i++ {
		c.taken[i] = true
	}
	return true
}
