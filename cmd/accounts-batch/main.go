package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/logeshOfficial/AIAccountsManager/internal/common"
	"github.com/logeshOfficial/AIAccountsManager/internal/entity"
	"github.com/logeshOfficial/AIAccountsManager/internal/extract"
	"github.com/logeshOfficial/AIAccountsManager/internal/extract/anthropic"
	"github.com/logeshOfficial/AIAccountsManager/internal/extract/openai"
	"github.com/logeshOfficial/AIAccountsManager/internal/extract/rules"
	"github.com/logeshOfficial/AIAccountsManager/internal/ingest"
	"github.com/logeshOfficial/AIAccountsManager/internal/observability"
	"github.com/logeshOfficial/AIAccountsManager/internal/query"
	"github.com/logeshOfficial/AIAccountsManager/internal/report"
	"github.com/logeshOfficial/AIAccountsManager/internal/repository"
	"github.com/logeshOfficial/AIAccountsManager/internal/resilience"
	"github.com/logeshOfficial/AIAccountsManager/internal/service"
)

type batchFlags struct {
	dir      string
	out      string
	tenant   string
	inmem    bool
	workers  int
	question string
}

func main() {
	_ = godotenv.Load()
	flags := batchFlags{}

	root := &cobra.Command{
		Use:   "accounts-batch",
		Short: "Process a directory of invoices and export the results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBatch(cmd.Context(), flags)
		},
		SilenceUsage: true,
	}
	root.Flags().StringVar(&flags.dir, "dir", "", "directory of invoice files to process (required)")
	root.Flags().StringVar(&flags.out, "out", "", "output XLSX path (defaults to <dir>/../invoices.xlsx)")
	root.Flags().StringVar(&flags.tenant, "tenant", "default", "tenant the documents belong to")
	root.Flags().BoolVar(&flags.inmem, "inmem", false, "use an in-memory SQLite database instead of DB_URL")
	root.Flags().IntVar(&flags.workers, "workers", 4, "concurrent extraction workers")
	root.Flags().StringVar(&flags.question, "query", "", "optional natural-language question to answer after processing")
	_ = root.MarkFlagRequired("dir")

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runBatch(ctx context.Context, flags batchFlags) error {
	logger := observability.NewJSONLogger(os.Getenv("LOG_LEVEL"), "accounts-batch")
	cfg := common.LoadConfig()

	dbCfg := repository.Config{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		PingTimeout:     cfg.Database.PingTimeout,
	}
	if flags.inmem {
		dbCfg.Driver = "sqlite"
		dbCfg.DSN = ":memory:"
	}
	if dbCfg.DSN == "" {
		return fmt.Errorf("DB_URL is required unless --inmem is set")
	}

	db, err := repository.Open(ctx, dbCfg, logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := repository.EnsureSchema(ctx, db, dbCfg.Driver); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}

	docsRepo := repository.NewDocumentRepository(db, dbCfg.Driver)
	invoices := repository.NewInvoiceRepository(db, dbCfg.Driver)

	exec := resilience.NewExecutor(resilience.DefaultConfig(), logger)
	openaiClient := openai.NewClient(openai.Config{
		APIKey:            cfg.Extract.OpenAIAPIKey,
		BaseURL:           cfg.Extract.OpenAIBaseURL,
		Model:             cfg.Extract.OpenAIModel,
		RequestsPerSecond: cfg.Extract.RequestsPerSecond,
	}, logger)

	var tiers []extract.Extractor
	if cfg.Extract.OpenAIAPIKey != "" {
		tiers = append(tiers, openaiClient)
	}
	if cfg.Extract.AnthropicAPIKey != "" {
		tiers = append(tiers, anthropic.NewClient(anthropic.Config{
			APIKey: cfg.Extract.AnthropicAPIKey,
			Model:  cfg.Extract.AnthropicModel,
		}, logger))
	}
	tiers = append(tiers, rules.New(logger))

	cascade := extract.NewCascade(tiers, exec, extract.CascadeConfig{
		TierTimeout:   cfg.Extract.TierTimeout,
		MinConfidence: cfg.Extract.MinConfidence,
	}, logger)
	processor := service.NewProcessor(cascade, docsRepo, invoices, nil, nil, logger)
	loader := ingest.NewLoader(docsRepo, logger)

	var mu sync.Mutex
	var docs []*entity.RawDocument
	results, stats, err := loader.LoadDirectory(ctx, flags.tenant, flags.dir, func(doc *entity.RawDocument) {
		mu.Lock()
		docs = append(docs, doc)
		mu.Unlock()
	})
	if err != nil {
		return fmt.Errorf("ingest directory: %w", err)
	}
	for _, r := range results {
		if r.Err != "" {
			logger.Warn("ingest failed", "path", r.SourcePath, "error", r.Err)
		}
	}
	logger.Info("ingestion complete",
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)

	var processed, invalid, failures int
	var cmu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(flags.workers)
	for _, doc := range docs {
		doc := doc
		g.Go(func() error {
			rec, perr := processor.Process(gctx, doc)
			cmu.Lock()
			defer cmu.Unlock()
			switch {
			case perr != nil && rec == nil:
				failures++
			case rec != nil && !rec.Valid:
				invalid++
			default:
				processed++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	recs, err := invoices.Search(ctx, flags.tenant, repository.InvoiceFilter{})
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}
	rep := report.Assemble(recs, report.Spec{
		Title:   "Invoices " + time.Now().UTC().Format("2006-01-02"),
		GroupBy: report.GroupByDate,
	})
	wb, err := report.WriteXLSX(rep, logger)
	if err != nil {
		return fmt.Errorf("build workbook: %w", err)
	}

	out := flags.out
	if out == "" {
		out = filepath.Join(filepath.Dir(flags.dir), "invoices.xlsx")
	}
	if err := os.WriteFile(out, wb, 0o644); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}

	fmt.Printf("Batch complete: %d processed, %d flagged for review, %d failed\n", processed, invalid, failures)
	fmt.Printf("Workbook: %s\n", out)

	if flags.question != "" {
		parser := query.NewLLMParser(openaiClient, logger)
		router := query.NewRouter(parser, invoices, logger)
		assistant := service.NewAssistant(router, nil, nil, logger)
		res, err := assistant.Ask(ctx, flags.tenant, flags.question)
		if err != nil {
			return fmt.Errorf("answer query: %w", err)
		}
		fmt.Println(res.Answer.Text)
	}
	return nil
}
