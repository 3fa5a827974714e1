package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the filings registry and the chunk vector table. The
// chunk table carries the filterable metadata columns next to the embedding
// so search can apply exact-match and range predicates in one query.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive")
	}

	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		`CREATE TABLE IF NOT EXISTS filings (
			id TEXT PRIMARY KEY,
			company_name TEXT,
			ticker TEXT NOT NULL,
			filing_type TEXT NOT NULL,
			filing_date DATE NOT NULL,
			sha256 TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS filing_chunks (
			id TEXT PRIMARY KEY,
			filing_id TEXT NOT NULL REFERENCES filings(id) ON DELETE CASCADE,
			chunk_index INT NOT NULL,
			content TEXT NOT NULL,
			ticker TEXT NOT NULL,
			filing_type TEXT NOT NULL,
			filing_date DATE NOT NULL,
			section TEXT NOT NULL,
			start_offset INT NOT NULL,
			end_offset INT NOT NULL,
			metrics JSONB,
			embedding VECTOR(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE(filing_id, chunk_index)
		)`, dimension),
		"CREATE INDEX IF NOT EXISTS idx_filing_chunks_filing ON filing_chunks(filing_id)",
		"CREATE INDEX IF NOT EXISTS idx_filing_chunks_ticker ON filing_chunks(ticker)",
		"CREATE INDEX IF NOT EXISTS idx_filing_chunks_type ON filing_chunks(filing_type)",
		"CREATE INDEX IF NOT EXISTS idx_filing_chunks_date ON filing_chunks(filing_date)",
		"CREATE INDEX IF NOT EXISTS idx_filing_chunks_section ON filing_chunks(section)",
		"CREATE INDEX IF NOT EXISTS idx_filing_chunks_embedding ON filing_chunks USING ivfflat (embedding vector_l2_ops)",
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}

	return nil
}
