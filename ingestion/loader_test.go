package ingestion_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/finrag/filings-qa/filings"
	"github.com/finrag/filings-qa/ingestion"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadFilingJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "aapl.json", `{
		"company_name": "Apple Inc.",
		"ticker": "aapl",
		"filing_type": "10-K",
		"filing_date": "2023-11-03",
		"text": "Item 1A Risk Factors. The Company faces supply chain risks."
	}`)

	f, err := ingestion.LoadFiling(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if f.ID == "" {
		t.Fatal("expected a generated filing id")
	}
	if f.Ticker != "AAPL" {
		t.Fatalf("expected upper-cased ticker, got %q", f.Ticker)
	}
	if f.Type != filings.Type10K {
		t.Fatalf("expected 10-K, got %q", f.Type)
	}
	want := time.Date(2023, 11, 3, 0, 0, 0, 0, time.UTC)
	if !f.Date.Equal(want) {
		t.Fatalf("expected date %v, got %v", want, f.Date)
	}
	if f.CompanyName != "Apple Inc." || f.Text == "" {
		t.Fatalf("unexpected filing: %+v", f)
	}
}

func TestLoadFilingTextFilenameConvention(t *testing.T) {
	path := writeFile(t, t.TempDir(), "MSFT_10-Q_2024-01-25.txt", "Revenue from cloud services accelerated.")

	f, err := ingestion.LoadFiling(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if f.Ticker != "MSFT" || f.Type != filings.Type10Q {
		t.Fatalf("filename metadata not parsed: %+v", f)
	}
	if f.Date.Year() != 2024 || f.Date.Month() != time.January || f.Date.Day() != 25 {
		t.Fatalf("unexpected date %v", f.Date)
	}
	if f.Text != "Revenue from cloud services accelerated." {
		t.Fatalf("unexpected text %q", f.Text)
	}
}

func TestLoadFilingBadFilename(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{
		"notes.txt",
		"MSFT_10-Q.txt",
		"MSFT_13-F_2024-01-25.txt",
		"MSFT_10-Q_someday.txt",
	} {
		path := writeFile(t, dir, name, "text")
		if _, err := ingestion.LoadFiling(path); err == nil {
			t.Fatalf("expected error for %s", name)
		}
	}
}

func TestLoadFilingUnsupportedExtension(t *testing.T) {
	path := writeFile(t, t.TempDir(), "AAPL_10-K_2023-11-03.docx", "text")
	if _, err := ingestion.LoadFiling(path); err == nil {
		t.Fatal("expected error for unsupported document type")
	}
}

func TestLoadFilingRejectsUnknownType(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.json", `{
		"ticker": "AAPL",
		"filing_type": "S-1",
		"filing_date": "2023-11-03",
		"text": "prospectus"
	}`)
	if _, err := ingestion.LoadFiling(path); err == nil {
		t.Fatal("expected error for unsupported filing type")
	}
}
