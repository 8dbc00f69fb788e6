package ingest

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/logeshOfficial/AIAccountsManager/internal/entity"
)

// Sweeper periodically rescans the inbox to catch files the watcher missed
// (network mounts, files dropped while the daemon was down).
type Sweeper struct {
	Loader   Ingestor
	TenantID string
	Root     string
	Schedule string // cron expression, e.g. "*/5 * * * *"
	OnDoc    func(*entity.RawDocument)
	Log      *slog.Logger

	cron *cron.Cron
}

func NewSweeper(loader Ingestor, tenantID, root, schedule string, onDoc func(*entity.RawDocument), logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		Loader:   loader,
		TenantID: tenantID,
		Root:     root,
		Schedule: schedule,
		OnDoc:    onDoc,
		Log:      logger,
	}
}

// Start registers the sweep and begins the schedule. Stop with Stop.
func (s *Sweeper) Start(ctx context.Context) error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.Schedule, func() {
		s.Sweep(ctx)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.Log.Info("ingest.sweeper_started", "root", s.Root, "schedule", s.Schedule)
	return nil
}

// Sweep runs one pass immediately.
func (s *Sweeper) Sweep(ctx context.Context) {
	results, stats, err := s.Loader.LoadDirectory(ctx, s.TenantID, s.Root, s.OnDoc)
	if err != nil {
		s.Log.Error("ingest.sweep_failed", "root", s.Root, "error", err)
		return
	}
	s.Log.Info("ingest.sweep_done",
		"root", s.Root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)
	for _, r := range results {
		if r.Err != "" {
			s.Log.Warn("ingest.sweep_file_failed", "path", r.SourcePath, "error", r.Err)
		}
	}
}

func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}
