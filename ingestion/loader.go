package ingestion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"github.com/finrag/filings-qa/filings"
)

// filingRecord is the JSON shape the collector writes into the filings cache.
type filingRecord struct {
	CompanyName string `json:"company_name"`
	Ticker      string `json:"ticker"`
	FilingType  string `json:"filing_type"`
	FilingDate  string `json:"filing_date"`
	Text        string `json:"text"`
}

var dateLayouts = []string{time.DateOnly, time.RFC3339, "01/02/2006"}

// LoadFiling reads one collected filing document. JSON records carry their
// own metadata; .txt and .pdf documents encode it in the filename as
// TICKER_TYPE_DATE (for example AAPL_10-K_2023-11-03.txt).
func LoadFiling(path string) (filings.Filing, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return loadJSON(path)
	case ".txt":
		return loadText(path)
	case ".pdf":
		return loadPDF(path)
	default:
		return filings.Filing{}, fmt.Errorf("unsupported filing document: %s", path)
	}
}

func loadJSON(path string) (filings.Filing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return filings.Filing{}, fmt.Errorf("read filing: %w", err)
	}

	var record filingRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return filings.Filing{}, fmt.Errorf("decode filing record: %w", err)
	}

	ftype, err := filings.ParseFilingType(record.FilingType)
	if err != nil {
		return filings.Filing{}, err
	}
	date, err := parseDate(record.FilingDate)
	if err != nil {
		return filings.Filing{}, err
	}

	return filings.Filing{
		ID:          uuid.New().String(),
		CompanyName: record.CompanyName,
		Ticker:      strings.ToUpper(record.Ticker),
		Type:        ftype,
		Date:        date,
		Text:        record.Text,
	}, nil
}

func loadText(path string) (filings.Filing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return filings.Filing{}, fmt.Errorf("read filing: %w", err)
	}

	f, err := filingFromFilename(path)
	if err != nil {
		return filings.Filing{}, err
	}
	f.Text = string(data)
	return f, nil
}

func loadPDF(path string) (filings.Filing, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return filings.Filing{}, fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return filings.Filing{}, fmt.Errorf("extract pdf text: %w", err)
	}

	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, plain); err != nil {
		return filings.Filing{}, fmt.Errorf("read pdf text: %w", err)
	}

	f, err := filingFromFilename(path)
	if err != nil {
		return filings.Filing{}, err
	}
	f.Text = buf.String()
	return f, nil
}

// filingFromFilename parses the TICKER_TYPE_DATE naming convention used for
// documents that carry no embedded metadata.
func filingFromFilename(path string) (filings.Filing, error) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	parts := strings.Split(base, "_")
	if len(parts) != 3 {
		return filings.Filing{}, fmt.Errorf("filing filename %q does not match TICKER_TYPE_DATE", base)
	}

	ftype, err := filings.ParseFilingType(parts[1])
	if err != nil {
		return filings.Filing{}, fmt.Errorf("filing filename %q: %w", base, err)
	}
	date, err := parseDate(parts[2])
	if err != nil {
		return filings.Filing{}, fmt.Errorf("filing filename %q: %w", base, err)
	}

	return filings.Filing{
		ID:     uuid.New().String(),
		Ticker: strings.ToUpper(parts[0]),
		Type:   ftype,
		Date:   date,
	}, nil
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable filing date: %q", raw)
}
