package chunker_test

import (
	"strings"
	"testing"

	"github.com/finrag/filings-qa/chunker"
	"github.com/finrag/filings-qa/filings"
)

func testFiling(text string) filings.Filing {
	return filings.Filing{
		ID:     "filing-1",
		Ticker: "AAPL",
		Type:   filings.Type10K,
		Text:   text,
	}
}

func TestChunkEmptyFiling(t *testing.T) {
	c := chunker.New(1200, 200, nil)

	if got := c.Chunk(testFiling("")); len(got) != 0 {
		t.Fatalf("expected no chunks for empty filing, got %d", len(got))
	}
	if got := c.Chunk(testFiling("   \n\n\t  ")); len(got) != 0 {
		t.Fatalf("expected no chunks for whitespace filing, got %d", len(got))
	}
}

func TestChunkShortFilingYieldsOne(t *testing.T) {
	c := chunker.New(1200, 200, nil)

	chunks := c.Chunk(testFiling("Revenue grew modestly during the quarter."))
	if len(chunks) != 1 {
		t.Fatalf("expected exactly one chunk, got %d", len(chunks))
	}
	if chunks[0].ID != "filing-1:0" {
		t.Fatalf("unexpected chunk id %q", chunks[0].ID)
	}
}

func TestChunkShortFilingIgnoresInternalStructure(t *testing.T) {
	c := chunker.New(1200, 200, nil)

	// Blank lines and headings inside a sub-minimum filing must not split it.
	for _, text := range []string{
		"Revenue grew modestly.\n\nCosts fell slightly.",
		"Item 1A Risk Factors\n\nCompetition is intense.",
	} {
		chunks := c.Chunk(testFiling(text))
		if len(chunks) != 1 {
			t.Fatalf("Chunk(%q): filing shorter than the minimum must yield exactly one chunk, got %d", text, len(chunks))
		}
		if text[chunks[0].StartOffset:chunks[0].EndOffset] != chunks[0].Text {
			t.Fatalf("Chunk(%q): offsets do not address the chunk text", text)
		}
	}
}

func TestChunkHeadingsCreateBoundaries(t *testing.T) {
	c := chunker.New(1200, 40, nil)

	text := "Item 1A Risk Factors: The Company faces risks related to supply chain disruption and component pricing." +
		" Item 7 MD&A: Revenue grew 8% to $390.8 billion driven by services."
	chunks := c.Chunk(testFiling(text))
	if len(chunks) < 2 {
		t.Fatalf("expected at least two chunks, got %d", len(chunks))
	}
	if !strings.HasPrefix(chunks[0].Text, "Item 1A") {
		t.Fatalf("first chunk should start at the Item 1A heading, got %q", chunks[0].Text)
	}
	if !strings.HasPrefix(chunks[1].Text, "Item 7") {
		t.Fatalf("second chunk should start at the Item 7 heading, got %q", chunks[1].Text)
	}
}

func TestChunkRoundTripReproducesText(t *testing.T) {
	c := chunker.New(150, 30, nil)

	text := "Item 1 Business\n\nThe Company designs and sells consumer electronics across global markets. " +
		"It operates retail and online stores in many countries. Hardware remains the largest segment by revenue.\n\n" +
		"Item 1A Risk Factors\n\nThe Company depends on component suppliers. Supply disruptions could raise costs materially. " +
		"Competition is intense across all product categories and price points."
	chunks := c.Chunk(testFiling(text))
	if len(chunks) < 3 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}

	var joined strings.Builder
	for _, chunk := range chunks {
		joined.WriteString(chunk.Text)
		joined.WriteString(" ")
	}

	got := strings.Join(strings.Fields(joined.String()), " ")
	want := strings.Join(strings.Fields(text), " ")
	if got != want {
		t.Fatalf("round trip lost content:\n got %q\nwant %q", got, want)
	}
}

func TestChunkOffsetsAddressSourceText(t *testing.T) {
	c := chunker.New(150, 30, nil)

	text := "Item 1A Risk Factors\n\nThe Company depends on suppliers. Pricing pressure persists across categories. " +
		"Regulatory scrutiny is increasing in several jurisdictions around the world."
	f := testFiling(text)
	for i, chunk := range c.Chunk(f) {
		if chunk.Index != i {
			t.Fatalf("chunk %d carries index %d", i, chunk.Index)
		}
		if text[chunk.StartOffset:chunk.EndOffset] != chunk.Text {
			t.Fatalf("chunk %d offsets do not address its text", i)
		}
	}
}

func TestChunkRespectsMaximum(t *testing.T) {
	c := chunker.New(200, 40, nil)

	sentence := "The Company continues to invest in research and development programs. "
	text := strings.Repeat(sentence, 40)
	chunks := c.Chunk(testFiling(text))
	if len(chunks) < 5 {
		t.Fatalf("expected many chunks, got %d", len(chunks))
	}
	for _, chunk := range chunks {
		if len(chunk.Text) > 200 {
			t.Fatalf("chunk %s exceeds maximum: %d chars", chunk.ID, len(chunk.Text))
		}
	}
}

func TestChunkNeverSplitsNumericExpression(t *testing.T) {
	c := chunker.New(45, 10, nil)

	// One long sentence with no convenient word boundary before the figure,
	// so a forced split would land inside "$123.4 million" without the guard.
	text := strings.Repeat("x", 40) + "$123.4 million" + strings.Repeat("y", 40)
	chunks := c.Chunk(testFiling(text))
	if len(chunks) < 2 {
		t.Fatalf("expected a forced split, got %d chunks", len(chunks))
	}

	found := false
	for _, chunk := range chunks {
		if strings.Contains(chunk.Text, "$123.4 million") {
			found = true
		}
	}
	if !found {
		t.Fatal("the currency expression was split across chunk boundaries")
	}
}

func TestChunkMergesTinyTrailingFragment(t *testing.T) {
	c := chunker.New(150, 40, nil)

	// The final short sentence should fold into the previous chunk instead of
	// becoming a near-empty chunk of its own.
	text := strings.Repeat("x", 200) + ". Costs fell unexpectedly."
	chunks := c.Chunk(testFiling(text))
	if len(chunks) != 2 {
		t.Fatalf("expected two chunks, got %d", len(chunks))
	}
	last := chunks[len(chunks)-1]
	if !strings.HasSuffix(last.Text, "Costs fell unexpectedly.") {
		t.Fatalf("last chunk should end with the trailing sentence, got %q", last.Text)
	}
	if last.Text == "Costs fell unexpectedly." {
		t.Fatal("trailing fragment was emitted as its own near-empty chunk")
	}
}
