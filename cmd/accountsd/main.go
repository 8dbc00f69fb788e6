package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/logeshOfficial/AIAccountsManager/internal/async"
	"github.com/logeshOfficial/AIAccountsManager/internal/common"
	"github.com/logeshOfficial/AIAccountsManager/internal/delivery"
	"github.com/logeshOfficial/AIAccountsManager/internal/entity"
	"github.com/logeshOfficial/AIAccountsManager/internal/extract"
	"github.com/logeshOfficial/AIAccountsManager/internal/extract/anthropic"
	"github.com/logeshOfficial/AIAccountsManager/internal/extract/openai"
	"github.com/logeshOfficial/AIAccountsManager/internal/extract/rules"
	"github.com/logeshOfficial/AIAccountsManager/internal/ingest"
	"github.com/logeshOfficial/AIAccountsManager/internal/observability"
	"github.com/logeshOfficial/AIAccountsManager/internal/query"
	"github.com/logeshOfficial/AIAccountsManager/internal/repository"
	"github.com/logeshOfficial/AIAccountsManager/internal/resilience"
	"github.com/logeshOfficial/AIAccountsManager/internal/server"
	"github.com/logeshOfficial/AIAccountsManager/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfg := common.LoadConfig()
	logger := observability.NewJSONLogger(os.Getenv("LOG_LEVEL"), "accountsd")
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(ctx, repository.Config{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		PingTimeout:     cfg.Database.PingTimeout,
	}, logger)
	if err != nil {
		logger.Error("database open failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := repository.EnsureSchema(ctx, db, cfg.Database.Driver); err != nil {
		logger.Error("schema migration failed", "error", err)
		os.Exit(1)
	}
	logger.Info("database ready", "driver", cfg.Database.Driver)

	docs := repository.NewDocumentRepository(db, cfg.Database.Driver)
	invoices := repository.NewInvoiceRepository(db, cfg.Database.Driver)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics := observability.NewMetrics(registry)

	exec := resilience.NewExecutor(resilience.DefaultConfig(), logger)

	var tiers []extract.Extractor
	openaiClient := openai.NewClient(openai.Config{
		APIKey:            cfg.Extract.OpenAIAPIKey,
		BaseURL:           cfg.Extract.OpenAIBaseURL,
		Model:             cfg.Extract.OpenAIModel,
		RequestsPerSecond: cfg.Extract.RequestsPerSecond,
	}, logger)
	if cfg.Extract.OpenAIAPIKey != "" {
		tiers = append(tiers, openaiClient)
	} else {
		logger.Warn("OPENAI_API_KEY not set, skipping the openai extraction tier")
	}
	if cfg.Extract.AnthropicAPIKey != "" {
		tiers = append(tiers, anthropic.NewClient(anthropic.Config{
			APIKey: cfg.Extract.AnthropicAPIKey,
			Model:  cfg.Extract.AnthropicModel,
		}, logger))
	} else {
		logger.Warn("ANTHROPIC_API_KEY not set, skipping the anthropic extraction tier")
	}
	tiers = append(tiers, rules.New(logger))

	cascade := extract.NewCascade(tiers, exec, extract.CascadeConfig{
		TierTimeout:   cfg.Extract.TierTimeout,
		MinConfidence: cfg.Extract.MinConfidence,
	}, logger)

	archiver := ingest.NewArchiver(cfg.Ingest.ArchiveDir, logger)
	processor := service.NewProcessor(cascade, docs, invoices, archiver, metrics, logger)
	queue := async.NewWorkerQueue(processor, logger,
		async.WithWorkers(cfg.Ingest.Workers),
		async.WithProcessTimeout(3*cfg.Extract.TierTimeout),
	)

	loader := ingest.NewLoader(docs, logger)
	tenantID := defaultTenant()

	watchPaths, watchErrs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{cfg.Ingest.InboxDir},
		InitialScan: true,
		Debounce:    2 * time.Second,
	}, logger)
	if err != nil {
		logger.Error("watcher start failed", "inbox", cfg.Ingest.InboxDir, "error", err)
		os.Exit(1)
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case werr, ok := <-watchErrs:
				if !ok {
					return
				}
				logger.Warn("watcher error", "error", werr)
			case path, ok := <-watchPaths:
				if !ok {
					return
				}
				doc, res, lerr := loader.LoadPath(ctx, tenantID, path)
				switch {
				case lerr != nil:
					logger.Warn("ingest failed", "path", path, "error", lerr)
				case doc == nil:
					logger.Info("duplicate skipped", "path", path, "hash", res.HashHex)
				default:
					_ = queue.Enqueue(ctx, async.Job{Doc: doc})
				}
			}
		}
	}()

	var sweeper *ingest.Sweeper
	if cfg.Ingest.SweepSchedule != "" {
		sweeper = ingest.NewSweeper(loader, tenantID, cfg.Ingest.InboxDir, cfg.Ingest.SweepSchedule,
			func(doc *entity.RawDocument) { _ = queue.Enqueue(ctx, async.Job{Doc: doc}) }, logger)
		if err := sweeper.Start(ctx); err != nil {
			logger.Error("sweeper start failed", "error", err)
			os.Exit(1)
		}
	}

	parser := query.NewLLMParser(openaiClient, logger)
	router := query.NewRouter(parser, invoices, logger)
	mailer := delivery.NewMailer(cfg.Delivery.ResendAPIKey, cfg.Delivery.FromAddress, logger)
	assistant := service.NewAssistant(router, mailer, metrics, logger)

	httpRouter := server.NewRouter(loader, queue, assistant, invoices, registry, logger)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpRouter.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http serving", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if sweeper != nil {
		sweeper.Stop()
	}
	_ = srv.Shutdown(shutdownCtx)
	queue.Shutdown(shutdownCtx)
	logger.Info("stopped")
}

func defaultTenant() string {
	if t := os.Getenv("DEFAULT_TENANT"); t != "" {
		return t
	}
	return "default"
}
