package query_test

import (
	"strings"
	"testing"
	"time"

	"github.com/finrag/filings-qa/filings"
	"github.com/finrag/filings-qa/query"
)

var reference = time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)

func TestPlanComparisonQuestion(t *testing.T) {
	p := query.NewPlanner(reference)
	plan := p.Plan("Compare R&D spending trends for Apple and Microsoft last year")

	if len(plan.Tickers) != 2 || plan.Tickers[0] != "AAPL" || plan.Tickers[1] != "MSFT" {
		t.Fatalf("expected tickers [AAPL MSFT], got %v", plan.Tickers)
	}
	if len(plan.FilingTypes) != 0 {
		t.Fatalf("expected unrestricted filing types, got %v", plan.FilingTypes)
	}
	if plan.Dates.Start == nil || plan.Dates.End == nil {
		t.Fatal("expected a resolved date range for 'last year'")
	}
	if plan.Dates.Start.Year() != 2023 || plan.Dates.End.Year() != 2023 {
		t.Fatalf("expected the 2023 calendar year, got %v - %v", plan.Dates.Start, plan.Dates.End)
	}
	if !strings.Contains(plan.SemanticText, "R&D spending trends") {
		t.Fatalf("unexpected semantic text %q", plan.SemanticText)
	}
	if strings.Contains(plan.SemanticText, "Apple") || strings.Contains(plan.SemanticText, "Microsoft") {
		t.Fatalf("company names should be stripped from semantic text, got %q", plan.SemanticText)
	}
}

func TestPlanFilingTypeKeywords(t *testing.T) {
	tests := []struct {
		question string
		want     filings.FilingType
	}{
		{"What does the annual report say about supply chain risks for Apple", filings.Type10K},
		{"Summarize quarterly report revenue trends for Amazon operations", filings.Type10Q},
		{"Any 8-K disclosures about executive departures at Microsoft recently", filings.Type8K},
	}

	p := query.NewPlanner(reference)
	for _, tt := range tests {
		plan := p.Plan(tt.question)
		if len(plan.FilingTypes) != 1 || plan.FilingTypes[0] != tt.want {
			t.Fatalf("Plan(%q): expected filing type %v, got %v", tt.question, tt.want, plan.FilingTypes)
		}
	}
}

func TestPlanSectionKeywords(t *testing.T) {
	p := query.NewPlanner(reference)

	plan := p.Plan("What risk factors does Apple disclose about supply chain concentration")
	if len(plan.Sections) != 1 || plan.Sections[0] != filings.SectionRiskFactors {
		t.Fatalf("expected risk factors section filter, got %v", plan.Sections)
	}

	plan = p.Plan("Describe revenue drivers behind the services segment growth at Apple")
	if len(plan.Sections) != 1 || plan.Sections[0] != filings.SectionMDA {
		t.Fatalf("expected mda section filter, got %v", plan.Sections)
	}

	// "market risk" must not also trigger the bare "risk" rule.
	plan = p.Plan("How does Goldman Sachs describe market risk exposure trends currently")
	if len(plan.Sections) != 1 || plan.Sections[0] != filings.SectionMarketRisk {
		t.Fatalf("expected market risk section filter, got %v", plan.Sections)
	}
}

func TestPlanAmbiguousAliasKeepsAllCandidates(t *testing.T) {
	p := query.NewPlanner(reference)
	plan := p.Plan("What did Morgan report about trading revenue performance trends")

	if len(plan.Tickers) != 2 || plan.Tickers[0] != "JPM" || plan.Tickers[1] != "MS" {
		t.Fatalf("expected both candidates [JPM MS], got %v", plan.Tickers)
	}
}

func TestPlanBareTickers(t *testing.T) {
	p := query.NewPlanner(reference)
	plan := p.Plan("Compare segment operating margin disclosures for $AAPL and MSFT")

	if len(plan.Tickers) != 2 || plan.Tickers[0] != "AAPL" || plan.Tickers[1] != "MSFT" {
		t.Fatalf("expected tickers [AAPL MSFT], got %v", plan.Tickers)
	}
}

func TestPlanExplicitYearRange(t *testing.T) {
	p := query.NewPlanner(reference)
	plan := p.Plan("How did Amazon margin guidance evolve from 2021 to 2023")

	if plan.Dates.Start == nil || plan.Dates.Start.Year() != 2021 {
		t.Fatalf("expected range start in 2021, got %v", plan.Dates.Start)
	}
	if plan.Dates.End == nil || plan.Dates.End.Year() != 2023 {
		t.Fatalf("expected range end in 2023, got %v", plan.Dates.End)
	}
}

func TestPlanSingleYear(t *testing.T) {
	p := query.NewPlanner(reference)
	plan := p.Plan("What supply chain issues did Apple flag in 2022 filings overall")

	if plan.Dates.Start == nil || plan.Dates.End == nil {
		t.Fatal("expected a bounded range for a single year")
	}
	if plan.Dates.Start.Year() != 2022 || plan.Dates.End.Year() != 2022 {
		t.Fatalf("expected the 2022 calendar year, got %v - %v", plan.Dates.Start, plan.Dates.End)
	}
}

func TestPlanSemanticFallbackToFullQuestion(t *testing.T) {
	p := query.NewPlanner(reference)

	// Stripping leaves nothing informative, so the plan must fall back to the
	// original question.
	question := "Apple 10-K last year"
	plan := p.Plan(question)
	if plan.SemanticText != question {
		t.Fatalf("expected fallback to the full question, got %q", plan.SemanticText)
	}
	if plan.SemanticText == "" {
		t.Fatal("semantic text must never be empty")
	}
}

func TestPlanResidualIsFixedPoint(t *testing.T) {
	p := query.NewPlanner(reference)

	first := p.Plan("Compare R&D spending trends for Apple and Microsoft last year")
	second := p.Plan(first.SemanticText)
	if second.SemanticText != first.SemanticText {
		t.Fatalf("replanning the residual changed it: %q -> %q", first.SemanticText, second.SemanticText)
	}
}
