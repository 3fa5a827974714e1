package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/finrag/filings-qa/chunker"
	"github.com/finrag/filings-qa/config"
	"github.com/finrag/filings-qa/database"
	"github.com/finrag/filings-qa/embeddings"
	"github.com/finrag/filings-qa/filings"
	"github.com/finrag/filings-qa/index"
	"github.com/finrag/filings-qa/ingestion"
	"github.com/finrag/filings-qa/knowledge"
	"github.com/finrag/filings-qa/query"
	"github.com/finrag/filings-qa/retrieval"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()

	switch os.Args[1] {
	case "ingest":
		ingestCmd(cfg, logger, os.Args[2:])
	case "ask":
		askCmd(cfg, logger, os.Args[2:])
	case "clear":
		clearCmd(cfg, logger, os.Args[2:])
	default:
		logger.Printf("unknown command: %s", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func ingestCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("ingest", flag.ExitOnError)
	dir := flags.String("dir", cfg.FilingsDir, "directory of collected filing documents")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse ingest flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatalf("postgres connection: %v", err)
	}
	defer pool.Close()

	if err := database.EnsureSchema(ctx, pool, cfg.Embeddings.Dimension); err != nil {
		logger.Fatalf("ensure schema: %v", err)
	}

	// The knowledge graph is an enrichment; ingestion proceeds without it.
	driver, err := database.NewNeo4jDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
	if err != nil {
		logger.Printf("neo4j unavailable, ingesting without graph sync: %v", err)
		driver = nil
	} else {
		defer driver.Close(ctx)
	}

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		logger.Fatalf("embedder setup: %v", err)
	}

	ch := chunker.New(cfg.Chunking.MaxChars, cfg.Chunking.MinChars, logger)
	svc := ingestion.NewService(pool, driver, index.NewPostgresIndex(pool), embedder, ch, logger)

	logger.Printf("ingesting filings from %s using %s/%s embeddings", *dir, strings.ToUpper(cfg.Embeddings.Provider), cfg.Embeddings.Model)
	if err := svc.IngestDirectory(ctx, *dir); err != nil {
		logger.Fatalf("ingestion failed: %v", err)
	}
}

func askCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("ask", flag.ExitOnError)
	question := flags.String("question", "", "financial research question")
	topK := flags.Int("top-k", 5, "evidence chunks to retrieve per company")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse ask flags: %v", err)
	}
	if strings.TrimSpace(*question) == "" {
		logger.Fatal("a question is required (use -question)")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatalf("postgres connection: %v", err)
	}
	defer pool.Close()

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		logger.Fatalf("embedder setup: %v", err)
	}

	plan := query.NewPlanner(time.Now()).Plan(*question)
	logger.Printf("plan: tickers=%v types=%v sections=%v semantic=%q",
		plan.Tickers, plan.FilingTypes, plan.Sections, plan.SemanticText)

	merger := retrieval.NewMerger(index.NewPostgresIndex(pool), embedder, logger, retrieval.Options{
		DedupThreshold: cfg.DedupThreshold,
	})
	results, err := merger.Retrieve(ctx, plan, *topK)
	if err != nil {
		logger.Fatalf("retrieval failed: %v", err)
	}

	if len(results) == 0 {
		fmt.Println("No evidence found for this question.")
		return
	}

	currentTicker := ""
	for _, r := range results {
		if r.Ticker != currentTicker {
			currentTicker = r.Ticker
			fmt.Printf("\n=== %s ===\n", currentTicker)
		}
		fmt.Printf("[%.3f] %s %s (%s) chars %d-%d\n", r.Score, r.FilingType, r.FilingDate.Format(time.DateOnly), r.Section, r.StartOffset, r.EndOffset)
		fmt.Printf("    %s\n", snippet(r.Text))
		for _, metric := range r.Metrics {
			if metric.Value != nil {
				fmt.Printf("    metric: %s = %g (%s)\n", metric.Raw, *metric.Value, metric.Unit)
			} else {
				fmt.Printf("    metric: %s (%s)\n", metric.Raw, metric.Unit)
			}
		}
	}

	printInsights(ctx, cfg, logger, results)
}

// printInsights adds per-company coverage from the knowledge graph. The
// graph is an enrichment: when Neo4j is unreachable the evidence above
// already stands on its own.
func printInsights(ctx context.Context, cfg config.Config, logger *log.Logger, results []filings.EvidenceResult) {
	seen := map[string]struct{}{}
	var tickers []string
	for _, r := range results {
		if _, ok := seen[r.Ticker]; ok {
			continue
		}
		seen[r.Ticker] = struct{}{}
		tickers = append(tickers, r.Ticker)
	}

	driver, err := database.NewNeo4jDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
	if err != nil {
		logger.Printf("graph insights unavailable: %v", err)
		return
	}
	defer driver.Close(ctx)

	insights, err := knowledge.CompanyInsights(ctx, driver, tickers)
	if err != nil {
		logger.Printf("graph insights unavailable: %v", err)
		return
	}
	if len(insights) == 0 {
		return
	}

	fmt.Println()
	fmt.Println("Company coverage:")
	for _, ticker := range tickers {
		insight, ok := insights[ticker]
		if !ok {
			continue
		}
		fmt.Printf("  %s: %d filings indexed", ticker, insight.FilingCount)
		if len(insight.FilingTypes) > 0 {
			fmt.Printf(" (%s)", strings.Join(insight.FilingTypes, ", "))
		}
		if len(insight.Sections) > 0 {
			fmt.Printf(", sections: %s", strings.Join(insight.Sections, ", "))
		}
		fmt.Println()
	}
}

func clearCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("clear", flag.ExitOnError)
	confirmed := flags.Bool("confirm", false, "skip confirmation prompt")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse clear flags: %v", err)
	}

	if !*confirmed {
		fmt.Print("This will permanently delete indexed filing data from Postgres and Neo4j. Continue? [y/N]: ")
		var answer string
		if _, err := fmt.Scanln(&answer); err != nil {
			logger.Println("clear aborted")
			return
		}
		answer = strings.ToLower(strings.TrimSpace(answer))
		if answer != "y" && answer != "yes" {
			logger.Println("clear aborted")
			return
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatalf("postgres connection: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, "TRUNCATE filing_chunks, filings"); err != nil {
		logger.Fatalf("truncate postgres tables: %v", err)
	}
	logger.Println("cleared Postgres filings and filing_chunks")

	driver, err := database.NewNeo4jDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
	if err != nil {
		logger.Fatalf("neo4j connection: %v", err)
	}
	defer driver.Close(ctx)

	if err := knowledge.Purge(ctx, driver); err != nil {
		logger.Fatalf("clear neo4j: %v", err)
	}
	logger.Println("cleared Neo4j companies, filings and sections")
}

func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > 300 {
		return text[:300] + "..."
	}
	return text
}

func printUsage() {
	fmt.Println("Usage: filings-qa <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  ingest   Chunk, embed and index collected SEC filings (use -dir to override)")
	fmt.Println("  ask      Retrieve ranked evidence chunks for a research question")
	fmt.Println("  clear    Remove indexed filing data from Postgres and Neo4j")
}
