package metrics_test

import (
	"testing"

	"github.com/finrag/filings-qa/filings"
	"github.com/finrag/filings-qa/metrics"
)

func TestExtractCurrencyAndPercent(t *testing.T) {
	got := metrics.Extract("Revenue grew 8% to $390.8 billion in the period.")
	if len(got) != 2 {
		t.Fatalf("expected two metrics, got %d: %+v", len(got), got)
	}

	percent := got[0]
	if percent.Raw != "8%" || percent.Unit != filings.UnitPercent {
		t.Fatalf("unexpected percent metric: %+v", percent)
	}
	if percent.Value == nil || *percent.Value != 8.0 {
		t.Fatalf("expected percent value 8.0, got %+v", percent.Value)
	}

	currency := got[1]
	if currency.Raw != "$390.8 billion" || currency.Unit != filings.UnitCurrency {
		t.Fatalf("unexpected currency metric: %+v", currency)
	}
	if currency.Value == nil || *currency.Value != 390_800_000_000 {
		t.Fatalf("expected currency value 390.8e9, got %+v", currency.Value)
	}
}

func TestExtractScaleWords(t *testing.T) {
	tests := []struct {
		text string
		want float64
	}{
		{"$5 thousand", 5_000},
		{"$1.5 million", 1_500_000},
		{"$2,250.75 million", 2_250_750_000},
		{"$3 trillion", 3_000_000_000_000},
		{"$1,234,567", 1_234_567},
	}

	for _, tt := range tests {
		got := metrics.Extract(tt.text)
		if len(got) != 1 {
			t.Fatalf("Extract(%q): expected one metric, got %d", tt.text, len(got))
		}
		if got[0].Value == nil || *got[0].Value != tt.want {
			t.Fatalf("Extract(%q): expected %v, got %+v", tt.text, tt.want, got[0].Value)
		}
	}
}

func TestExtractPeriodReferences(t *testing.T) {
	got := metrics.Extract("Results for fiscal year 2023 improved over the fourth quarter of 2022.")
	if len(got) != 2 {
		t.Fatalf("expected two period metrics, got %d: %+v", len(got), got)
	}
	for _, metric := range got {
		if metric.Unit != filings.UnitPeriod {
			t.Fatalf("expected period unit, got %+v", metric)
		}
		if metric.Value != nil {
			t.Fatalf("period references carry no numeric value, got %+v", metric)
		}
	}
}

func TestExtractOverlapKeepsLongest(t *testing.T) {
	// "$390.8 billion" wholly contains the shorter bare-amount reading; only
	// the longest span survives.
	got := metrics.Extract("spend of $390.8 billion overall")
	if len(got) != 1 {
		t.Fatalf("expected one metric, got %d: %+v", len(got), got)
	}
	if got[0].Raw != "$390.8 billion" {
		t.Fatalf("expected the full span, got %q", got[0].Raw)
	}
}

func TestExtractOrderedByPosition(t *testing.T) {
	got := metrics.Extract("Margins of 12% on $4.2 billion revenue and 3% growth.")
	if len(got) != 3 {
		t.Fatalf("expected three metrics, got %d", len(got))
	}
	if got[0].Raw != "12%" || got[1].Raw != "$4.2 billion" || got[2].Raw != "3%" {
		t.Fatalf("metrics out of order: %+v", got)
	}
}

func TestExtractHandlesMalformedInput(t *testing.T) {
	if got := metrics.Extract(""); len(got) != 0 {
		t.Fatalf("expected no metrics for empty text, got %d", len(got))
	}
	if got := metrics.Extract("no figures here at all"); len(got) != 0 {
		t.Fatalf("expected no metrics for plain prose, got %d", len(got))
	}
}

func TestNumericSpansCoverFigures(t *testing.T) {
	text := "grew 8% to $390.8 billion"
	spans := metrics.NumericSpans(text)
	if len(spans) != 2 {
		t.Fatalf("expected two spans, got %d", len(spans))
	}
	if text[spans[0][0]:spans[0][1]] != "8%" {
		t.Fatalf("unexpected first span %q", text[spans[0][0]:spans[0][1]])
	}
	if text[spans[1][0]:spans[1][1]] != "$390.8 billion" {
		t.Fatalf("unexpected second span %q", text[spans[1][0]:spans[1][1]])
	}
}
