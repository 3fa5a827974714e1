package knowledge

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Filing is the graph projection of one ingested filing.
type Filing struct {
	ID          string
	Ticker      string
	CompanyName string
	FilingType  string
	FilingDate  string
	Sections    []string
	ChunkCount  int
}

// CompanyInsight summarizes what the graph knows about one company.
type CompanyInsight struct {
	Ticker      string
	CompanyName string
	FilingCount int
	FilingTypes []string
	Sections    []string
}

// SyncFiling upserts the company, filing and section nodes for one ingested
// filing. Section relations are rebuilt from scratch so re-ingestion after a
// content change cannot leave stale labels behind.
func SyncFiling(ctx context.Context, driver neo4j.DriverWithContext, filing Filing) error {
	if driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	params := map[string]any{
		"id":          filing.ID,
		"ticker":      filing.Ticker,
		"company":     filing.CompanyName,
		"filing_type": filing.FilingType,
		"filing_date": filing.FilingDate,
		"chunk_count": filing.ChunkCount,
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `
			MERGE (c:Company {ticker: $ticker})
			SET c.name = $company
			MERGE (f:Filing {id: $id})
			SET f.filing_type = $filing_type,
			    f.filing_date = $filing_date,
			    f.chunk_count = $chunk_count,
			    f.updated_at = datetime()
			MERGE (c)-[:FILED]->(f)
		`, params); err != nil {
			return nil, fmt.Errorf("upsert company and filing nodes: %w", err)
		}

		if _, err := tx.Run(ctx, `
			MATCH (f:Filing {id: $id})-[r:HAS_SECTION]->(:Section)
			DELETE r
		`, params); err != nil {
			return nil, fmt.Errorf("clear existing section relations: %w", err)
		}

		for _, section := range filing.Sections {
			if _, err := tx.Run(ctx, `
				MATCH (f:Filing {id: $id})
				MERGE (s:Section {name: $section})
				MERGE (f)-[:HAS_SECTION]->(s)
			`, map[string]any{"id": filing.ID, "section": section}); err != nil {
				return nil, fmt.Errorf("upsert section relation: %w", err)
			}
		}

		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("sync filing graph: %w", err)
	}
	return nil
}

// CompanyInsights returns per-company filing coverage for the given tickers.
func CompanyInsights(ctx context.Context, driver neo4j.DriverWithContext, tickers []string) (map[string]CompanyInsight, error) {
	if driver == nil {
		return nil, fmt.Errorf("neo4j driver is nil")
	}
	if len(tickers) == 0 {
		return map[string]CompanyInsight{}, nil
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (c:Company)
		WHERE c.ticker IN $tickers
		OPTIONAL MATCH (c)-[:FILED]->(f:Filing)
		OPTIONAL MATCH (f)-[:HAS_SECTION]->(s:Section)
		WITH c,
		     count(DISTINCT f) AS filingCount,
		     collect(DISTINCT f.filing_type) AS filingTypes,
		     collect(DISTINCT s.name) AS sectionNames
		RETURN c.ticker AS ticker,
		       c.name AS name,
		       filingCount,
		       [t IN filingTypes WHERE t IS NOT NULL] AS filingTypes,
		       [s IN sectionNames WHERE s IS NOT NULL] AS sections
	`, map[string]any{"tickers": tickers})
	if err != nil {
		return nil, fmt.Errorf("run company insights query: %w", err)
	}

	insights := make(map[string]CompanyInsight, len(tickers))
	for result.Next(ctx) {
		record := result.Record()
		tickerVal, _ := record.Get("ticker")
		ticker, ok := tickerVal.(string)
		if !ok {
			continue
		}
		nameVal, _ := record.Get("name")
		name, _ := nameVal.(string)
		countVal, _ := record.Get("filingCount")
		var filingCount int64
		switch v := countVal.(type) {
		case int64:
			filingCount = v
		case int32:
			filingCount = int64(v)
		}
		typesVal, _ := record.Get("filingTypes")
		sectionsVal, _ := record.Get("sections")

		insights[ticker] = CompanyInsight{
			Ticker:      ticker,
			CompanyName: name,
			FilingCount: int(filingCount),
			FilingTypes: toStringSlice(typesVal),
			Sections:    toStringSlice(sectionsVal),
		}
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("read company insights: %w", err)
	}
	return insights, nil
}

// Purge removes every company, filing and section node.
func Purge(ctx context.Context, driver neo4j.DriverWithContext) error {
	if driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	queries := []string{
		"MATCH (f:Filing) DETACH DELETE f",
		"MATCH (c:Company) DETACH DELETE c",
		"MATCH (s:Section) DETACH DELETE s",
	}

	for _, query := range queries {
		result, err := session.Run(ctx, query, nil)
		if err != nil {
			return err
		}
		if _, err := result.Consume(ctx); err != nil {
			return err
		}
	}
	return nil
}

func toStringSlice(value any) []string {
	raw, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
