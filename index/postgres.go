package index

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/finrag/filings-qa/filings"
)

// PostgresIndex stores chunk embeddings in a pgvector-backed table with the
// filterable metadata columns alongside.
type PostgresIndex struct {
	pool *pgxpool.Pool
}

func NewPostgresIndex(pool *pgxpool.Pool) *PostgresIndex {
	return &PostgresIndex{pool: pool}
}

func (p *PostgresIndex) Ingest(ctx context.Context, chunk filings.Chunk, embedding []float32, meta Metadata) error {
	if p.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if chunk.ID == "" {
		return fmt.Errorf("chunk is missing an id")
	}
	if len(embedding) == 0 {
		return fmt.Errorf("embedding is empty for chunk %s", chunk.ID)
	}
	if err := meta.Validate(); err != nil {
		return fmt.Errorf("chunk %s: %w", chunk.ID, err)
	}

	metricsJSON, err := json.Marshal(chunk.Metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics for chunk %s: %w", chunk.ID, err)
	}

	if _, err := p.pool.Exec(ctx, `
		INSERT INTO filing_chunks (
			id, filing_id, chunk_index, content, ticker, filing_type,
			filing_date, section, start_offset, end_offset, metrics,
			embedding, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			ticker = EXCLUDED.ticker,
			filing_type = EXCLUDED.filing_type,
			filing_date = EXCLUDED.filing_date,
			section = EXCLUDED.section,
			start_offset = EXCLUDED.start_offset,
			end_offset = EXCLUDED.end_offset,
			metrics = EXCLUDED.metrics,
			embedding = EXCLUDED.embedding,
			updated_at = NOW()
	`,
		chunk.ID, chunk.FilingID, chunk.Index, chunk.Text,
		meta.Ticker, string(meta.FilingType), meta.FilingDate,
		string(meta.Section), chunk.StartOffset, chunk.EndOffset,
		metricsJSON, pgvector.NewVector(embedding),
	); err != nil {
		return fmt.Errorf("upsert chunk %s: %w", chunk.ID, err)
	}
	return nil
}

func (p *PostgresIndex) Search(ctx context.Context, embedding []float32, filters Filters, topK int) ([]SearchResult, error) {
	if p.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if topK <= 0 {
		return nil, fmt.Errorf("top_k must be positive, got %d", topK)
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("query embedding is empty")
	}

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	probes := topK * 10
	if probes < 10 {
		probes = 10
	}
	if _, err := conn.Exec(ctx, fmt.Sprintf("SET ivfflat.probes = %d", probes)); err != nil {
		return nil, fmt.Errorf("set ivfflat probes: %w", err)
	}

	where, args := buildWhere(filters, pgvector.NewVector(embedding))
	args = append(args, topK)

	query := fmt.Sprintf(`
		SELECT id, filing_id, chunk_index, content, ticker, filing_type,
		       filing_date, section, start_offset, end_offset, metrics,
		       (embedding <-> $1::vector) AS distance
		FROM filing_chunks
		%s
		ORDER BY embedding <-> $1::vector, chunk_index
		LIMIT $%d
	`, where, len(args))

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query similar chunks: %w", err)
	}
	defer rows.Close()

	results := make([]SearchResult, 0, topK)
	for rows.Next() {
		var (
			item        SearchResult
			filingType  string
			section     string
			filingDate  time.Time
			metricsJSON []byte
			distance    float64
		)
		if err := rows.Scan(
			&item.Chunk.ID, &item.Chunk.FilingID, &item.Chunk.Index,
			&item.Chunk.Text, &item.Meta.Ticker, &filingType, &filingDate,
			&section, &item.Chunk.StartOffset, &item.Chunk.EndOffset,
			&metricsJSON, &distance,
		); err != nil {
			return nil, fmt.Errorf("scan similar chunk: %w", err)
		}
		item.Meta.FilingType = filings.FilingType(filingType)
		item.Meta.FilingDate = filingDate
		item.Meta.Section = filings.SectionLabel(section)
		item.Meta.Position = item.Chunk.Index
		item.Chunk.Section = item.Meta.Section
		if len(metricsJSON) > 0 {
			if err := json.Unmarshal(metricsJSON, &item.Chunk.Metrics); err != nil {
				return nil, fmt.Errorf("decode metrics for chunk %s: %w", item.Chunk.ID, err)
			}
		}
		item.Score = 1 / (1 + distance)
		results = append(results, item)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return results, nil
}

// buildWhere assembles the AND-conjunction filter clause. The embedding is
// always $1; filter arguments follow.
func buildWhere(f Filters, vec pgvector.Vector) (string, []any) {
	args := []any{vec}
	var conditions []string

	if len(f.Tickers) > 0 {
		args = append(args, f.Tickers)
		conditions = append(conditions, fmt.Sprintf("ticker = ANY($%d)", len(args)))
	}
	if len(f.FilingTypes) > 0 {
		types := make([]string, len(f.FilingTypes))
		for i, t := range f.FilingTypes {
			types[i] = string(t)
		}
		args = append(args, types)
		conditions = append(conditions, fmt.Sprintf("filing_type = ANY($%d)", len(args)))
	}
	if f.Dates.Start != nil {
		args = append(args, *f.Dates.Start)
		conditions = append(conditions, fmt.Sprintf("filing_date >= $%d", len(args)))
	}
	if f.Dates.End != nil {
		args = append(args, *f.Dates.End)
		conditions = append(conditions, fmt.Sprintf("filing_date <= $%d", len(args)))
	}
	if len(f.Sections) > 0 {
		sections := make([]string, len(f.Sections))
		for i, s := range f.Sections {
			sections[i] = string(s)
		}
		args = append(args, sections)
		conditions = append(conditions, fmt.Sprintf("section = ANY($%d)", len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	where := "WHERE " + conditions[0]
	for _, cond := range conditions[1:] {
		where += " AND " + cond
	}
	return where, args
}

var _ Index = (*PostgresIndex)(nil)
