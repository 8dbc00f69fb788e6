package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/logeshOfficial/AIAccountsManager/internal/common"
	"github.com/logeshOfficial/AIAccountsManager/internal/entity"
	"github.com/logeshOfficial/AIAccountsManager/internal/normalize"
	"github.com/logeshOfficial/AIAccountsManager/internal/resilience"
)

// CascadeConfig bounds each tier attempt.
type CascadeConfig struct {
	// TierTimeout caps one tier's attempt, retries included.
	TierTimeout time.Duration
	// MinConfidence rejects results the extractor itself is unsure about.
	MinConfidence float32
}

// Result is the cascade outcome for one document. On exhaustion Fields
// carries the best partial seen across tiers so review has something to
// start from.
type Result struct {
	Fields    entity.ExtractedFields
	Raw       []byte
	Tier      int
	Extractor string
	Attempts  []entity.ExtractionAttempt
}

// Cascade runs extractors in tier order and stops at the first result that
// passes field validation. Later tiers are never invoked once an earlier
// tier succeeds.
type Cascade struct {
	tiers []Extractor
	exec  *resilience.Executor
	cfg   CascadeConfig
	log   *slog.Logger
}

func NewCascade(tiers []Extractor, exec *resilience.Executor, cfg CascadeConfig, log *slog.Logger) *Cascade {
	if cfg.TierTimeout <= 0 {
		cfg.TierTimeout = 45 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Cascade{tiers: tiers, exec: exec, cfg: cfg, log: log}
}

func (c *Cascade) Run(ctx context.Context, doc *entity.RawDocument) (Result, error) {
	if len(c.tiers) == 0 {
		return Result{}, fmt.Errorf("%w: no tiers configured", common.ErrNoValidExtractor)
	}

	var (
		attempts  []entity.ExtractionAttempt
		best      entity.ExtractedFields
		bestScore = -1
	)

	for i, tier := range c.tiers {
		tierNum := i + 1
		start := time.Now()

		fields, raw, err := c.runTier(ctx, tier, doc)
		attempt := entity.ExtractionAttempt{
			Tier:      tierNum,
			Extractor: tier.Name(),
			RawOutput: string(raw),
			Latency:   time.Since(start),
		}

		if err == nil {
			err = c.accept(fields)
		}
		if err == nil {
			attempt.OK = true
			attempts = append(attempts, attempt)
			c.log.Info("extract.cascade.ok",
				"doc_id", doc.ID,
				"tier", tierNum,
				"extractor", tier.Name(),
				"confidence", fields.Confidence,
				"elapsed_ms", attempt.Latency.Milliseconds(),
			)
			return Result{
				Fields:    fields,
				Raw:       raw,
				Tier:      tierNum,
				Extractor: tier.Name(),
				Attempts:  attempts,
			}, nil
		}

		attempt.Err = err.Error()
		attempts = append(attempts, attempt)
		c.log.Warn("extract.cascade.tier_failed",
			"doc_id", doc.ID,
			"tier", tierNum,
			"extractor", tier.Name(),
			"transient", common.IsTransient(err),
			"error", err,
			"elapsed_ms", attempt.Latency.Milliseconds(),
		)

		// keep the most complete partial for review
		if score := partialScore(fields); score > bestScore {
			bestScore = score
			best = fields
		}

		if ctx.Err() != nil {
			break
		}
	}

	return Result{Fields: best, Attempts: attempts},
		fmt.Errorf("%w: %d tiers exhausted", common.ErrNoValidExtractor, len(attempts))
}

// runTier executes one extractor under the tier budget. Rate limits and
// provider outages retry inside the budget; a spent budget maps to the
// timeout sentinel so the caller sees a transient failure.
func (c *Cascade) runTier(ctx context.Context, tier Extractor, doc *entity.RawDocument) (entity.ExtractedFields, []byte, error) {
	tierCtx, cancel := context.WithTimeout(ctx, c.cfg.TierTimeout)
	defer cancel()

	var (
		fields entity.ExtractedFields
		raw    []byte
	)
	run := func(ctx context.Context) error {
		var err error
		fields, raw, err = tier.Extract(ctx, doc)
		return err
	}

	var err error
	if c.exec != nil {
		err = c.exec.Execute(tierCtx, "extract."+tier.Name(), run, classifyTierError)
	} else {
		err = run(tierCtx)
	}

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || resilience.IsCircuitOpen(err) {
			err = fmt.Errorf("%w: %v", common.ErrExtractionTimeout, err)
		}
		return fields, raw, err
	}
	return fields, raw, nil
}

// accept decides whether a tier's output is good enough to stop the cascade.
func (c *Cascade) accept(f entity.ExtractedFields) error {
	if err := normalize.Validate(f); err != nil {
		return err
	}
	if f.Confidence > 0 && f.Confidence < c.cfg.MinConfidence {
		return fmt.Errorf("%w: confidence %.2f below %.2f",
			common.ErrInvalidInput, f.Confidence, c.cfg.MinConfidence)
	}
	return nil
}

func classifyTierError(err error) resilience.ErrorClassification {
	return resilience.ErrorClassification{
		Retryable: errors.Is(err, common.ErrRateLimited) ||
			errors.Is(err, common.ErrProviderUnavailable),
		RecordFailure: common.IsTransient(err),
	}
}

func partialScore(f entity.ExtractedFields) int {
	score := 0
	for _, s := range []string{f.VendorName, f.InvoiceDate, f.TotalAmount} {
		if strings.TrimSpace(s) != "" {
			score++
		}
	}
	return score
}
