package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/logeshOfficial/AIAccountsManager/constants"
	"github.com/logeshOfficial/AIAccountsManager/internal/common"
	"github.com/logeshOfficial/AIAccountsManager/internal/entity"
	"github.com/logeshOfficial/AIAccountsManager/internal/extract"
	"github.com/logeshOfficial/AIAccountsManager/internal/ingest"
	"github.com/logeshOfficial/AIAccountsManager/internal/normalize"
	"github.com/logeshOfficial/AIAccountsManager/internal/observability"
	"github.com/logeshOfficial/AIAccountsManager/internal/repository"
)

// Processor runs one document through the cascade, normalizes the result,
// persists the record, and archives the source file. A document never
// silently disappears: extraction or field failures flag the record
// invalid and route it to the review set.
type Processor struct {
	Cascade  *extract.Cascade
	Docs     repository.DocumentRepository
	Invoices repository.InvoiceRepository
	Archiver *ingest.Archiver // optional; nil leaves source files in place
	Metrics  *observability.Metrics
	Log      *slog.Logger
}

func NewProcessor(
	cascade *extract.Cascade,
	docs repository.DocumentRepository,
	invoices repository.InvoiceRepository,
	archiver *ingest.Archiver,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		Cascade:  cascade,
		Docs:     docs,
		Invoices: invoices,
		Archiver: archiver,
		Metrics:  metrics,
		Log:      logger,
	}
}

// Process extracts and persists one document. The returned record is
// always written, valid or not; the error reports cascade exhaustion.
func (p *Processor) Process(ctx context.Context, doc *entity.RawDocument) (*entity.InvoiceRecord, error) {
	start := time.Now()
	tenant := common.TenantIDFromContext(ctx)
	if tenant == "" {
		tenant = doc.TenantID
	}
	if err := p.Docs.UpdateStatus(ctx, doc.ID, constants.DocumentProcessing); err != nil {
		p.Log.Warn("process.status_update_failed", "doc_id", doc.ID, "error", err)
	}

	res, cascadeErr := p.Cascade.Run(ctx, doc)
	if p.Metrics != nil {
		p.Metrics.ExtractionSeconds.Observe(time.Since(start).Seconds())
	}

	rec, fieldErrs := normalize.Record(doc.TenantID, doc.ID, res.Fields)
	rec.RawText = doc.Text()
	if cascadeErr != nil {
		rec.Valid = false
	}

	if err := p.Invoices.Upsert(ctx, &rec); err != nil {
		return nil, common.WrapError(err, "persist invoice record")
	}

	status := constants.DocumentValid
	if !rec.Valid {
		status = constants.DocumentInvalid
	}
	if err := p.Docs.UpdateStatus(ctx, doc.ID, status); err != nil {
		p.Log.Warn("process.status_update_failed", "doc_id", doc.ID, "error", err)
	}
	p.archive(doc, rec.Valid)

	switch {
	case cascadeErr != nil:
		if p.Metrics != nil {
			p.Metrics.DocumentsProcessed.WithLabelValues("no_valid_extractor").Inc()
		}
		p.Log.Error("process.exhausted",
			"doc_id", doc.ID,
			"tenant", tenant,
			"attempts", len(res.Attempts),
			"elapsed_ms", time.Since(start).Milliseconds(),
			"error", cascadeErr,
		)
		return &rec, cascadeErr
	case !rec.Valid:
		if p.Metrics != nil {
			p.Metrics.DocumentsProcessed.WithLabelValues("invalid_fields").Inc()
		}
		for _, fe := range fieldErrs {
			p.Log.Warn("process.field_invalid", "doc_id", doc.ID, "field", fe.Field, "error", fe.Err)
		}
		return &rec, nil
	default:
		if p.Metrics != nil {
			p.Metrics.DocumentsProcessed.WithLabelValues("valid").Inc()
			p.Metrics.ExtractionTier.WithLabelValues(res.Extractor).Inc()
		}
		p.Log.Info("process.ok",
			"doc_id", doc.ID,
			"tenant", tenant,
			"extractor", res.Extractor,
			"tier", res.Tier,
			"vendor", rec.VendorName,
			"amount", rec.CanonicalAmount(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return &rec, nil
	}
}

func (p *Processor) archive(doc *entity.RawDocument, valid bool) {
	if p.Archiver == nil {
		return
	}
	if _, err := p.Archiver.Archive(doc.SourcePath, valid); err != nil {
		p.Log.Warn("process.archive_failed", "doc_id", doc.ID, "error", err)
	}
}
