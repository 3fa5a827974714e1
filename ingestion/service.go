package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/finrag/filings-qa/chunker"
	"github.com/finrag/filings-qa/embeddings"
	"github.com/finrag/filings-qa/filings"
	"github.com/finrag/filings-qa/index"
	"github.com/finrag/filings-qa/knowledge"
	"github.com/finrag/filings-qa/metrics"
	"github.com/finrag/filings-qa/sections"
)

// Service runs the ingestion pipeline for one filing at a time: chunk,
// classify, extract metrics, embed, index, and sync the knowledge graph.
// The registry pool and the graph driver are both optional; without a
// registry every filing is (idempotently) re-ingested, without a driver no
// graph is maintained.
type Service struct {
	pool     *pgxpool.Pool
	driver   neo4j.DriverWithContext
	idx      index.Index
	embedder embeddings.Embedder
	chunker  *chunker.Chunker
	logger   *log.Logger
}

func NewService(pool *pgxpool.Pool, driver neo4j.DriverWithContext, idx index.Index, embedder embeddings.Embedder, ch *chunker.Chunker, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	if ch == nil {
		ch = chunker.New(chunker.DefaultMaxChars, chunker.DefaultMinChars, logger)
	}
	return &Service{
		pool:     pool,
		driver:   driver,
		idx:      idx,
		embedder: embedder,
		chunker:  ch,
		logger:   logger,
	}
}

// IngestFiling processes one filing into the index. An empty filing is
// skipped, not an error. Re-ingesting an unchanged filing is a no-op when a
// registry is configured; chunk ids are stable either way, so repeated
// ingestion never duplicates.
func (s *Service) IngestFiling(ctx context.Context, f filings.Filing) error {
	if s.idx == nil {
		return fmt.Errorf("index not configured")
	}
	if s.embedder == nil {
		return fmt.Errorf("embedder not configured")
	}
	if err := f.Validate(); err != nil {
		return fmt.Errorf("invalid filing: %w", err)
	}

	f.Ticker = strings.ToUpper(f.Ticker)

	if s.pool != nil {
		changed, err := s.registerFiling(ctx, f)
		if err != nil {
			return err
		}
		if !changed {
			s.logger.Printf("filing %s unchanged, skipping", f.ID)
			return nil
		}
	}

	chunks := s.chunker.Chunk(f)
	if len(chunks) == 0 {
		s.logger.Printf("skip empty filing %s", f.ID)
		return nil
	}

	classifier := sections.NewClassifier()
	texts := make([]string, len(chunks))
	for i := range chunks {
		chunks[i].Section = classifier.Classify(chunks[i].Text, chunks[i].Index)
		chunks[i].Metrics = metrics.Extract(chunks[i].Text)
		texts[i] = chunks[i].Text
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("generate embeddings: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: have %d chunks, %d embeddings", len(chunks), len(vectors))
	}

	for i, chunk := range chunks {
		meta := index.Metadata{
			Ticker:     f.Ticker,
			FilingType: f.Type,
			FilingDate: f.Date,
			Section:    chunk.Section,
			Position:   chunk.Index,
		}
		if err := s.idx.Ingest(ctx, chunk, vectors[i], meta); err != nil {
			return fmt.Errorf("index chunk %s: %w", chunk.ID, err)
		}
	}

	if s.driver != nil {
		if err := knowledge.SyncFiling(ctx, s.driver, graphFiling(f, chunks)); err != nil {
			return fmt.Errorf("sync knowledge graph: %w", err)
		}
	}

	s.logger.Printf("ingested filing %s (%s %s, %d chunks)", f.ID, f.Ticker, f.Type, len(chunks))
	return nil
}

// IngestDirectory loads every filing document under dir and ingests each.
// Per-filing failures are logged and do not stop the walk; filings are
// independent.
func (s *Service) IngestDirectory(ctx context.Context, dir string) error {
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("filings directory: %w", err)
	}

	var paths []string
	if err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(d.Name())) {
		case ".json", ".txt", ".pdf":
			paths = append(paths, path)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("walk filings directory: %w", err)
	}

	if len(paths) == 0 {
		s.logger.Printf("no filing documents found in %s", dir)
		return nil
	}

	for _, path := range paths {
		f, err := LoadFiling(path)
		if err != nil {
			s.logger.Printf("load failed for %s: %v", path, err)
			continue
		}
		if err := s.IngestFiling(ctx, f); err != nil {
			s.logger.Printf("ingest failed for %s: %v", path, err)
		}
	}

	return nil
}

// registerFiling records the filing and its content hash, reporting whether
// the text changed since the last ingestion.
func (s *Service) registerFiling(ctx context.Context, f filings.Filing) (bool, error) {
	hash := sha256.Sum256([]byte(f.Text))
	hashHex := hex.EncodeToString(hash[:])

	var existing string
	err := s.pool.QueryRow(ctx, "SELECT sha256 FROM filings WHERE id = $1", f.ID).Scan(&existing)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, execErr := s.pool.Exec(ctx, `
				INSERT INTO filings (id, company_name, ticker, filing_type, filing_date, sha256, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
			`, f.ID, f.CompanyName, f.Ticker, string(f.Type), f.Date, hashHex); execErr != nil {
				return false, fmt.Errorf("insert filing: %w", execErr)
			}
			return true, nil
		}
		return false, fmt.Errorf("query filing: %w", err)
	}

	if existing == hashHex {
		return false, nil
	}

	if _, err := s.pool.Exec(ctx, `
		UPDATE filings
		SET company_name = $2,
		    ticker = $3,
		    filing_type = $4,
		    filing_date = $5,
		    sha256 = $6,
		    updated_at = NOW()
		WHERE id = $1
	`, f.ID, f.CompanyName, f.Ticker, string(f.Type), f.Date, hashHex); err != nil {
		return false, fmt.Errorf("update filing: %w", err)
	}
	return true, nil
}

func graphFiling(f filings.Filing, chunks []filings.Chunk) knowledge.Filing {
	seen := map[filings.SectionLabel]struct{}{}
	var labels []string
	for _, chunk := range chunks {
		if _, ok := seen[chunk.Section]; ok {
			continue
		}
		seen[chunk.Section] = struct{}{}
		labels = append(labels, string(chunk.Section))
	}
	return knowledge.Filing{
		ID:          f.ID,
		Ticker:      f.Ticker,
		CompanyName: f.CompanyName,
		FilingType:  string(f.Type),
		FilingDate:  f.Date.Format(time.DateOnly),
		Sections:    labels,
		ChunkCount:  len(chunks),
	}
}
