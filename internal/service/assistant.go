package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/logeshOfficial/AIAccountsManager/internal/common"
	"github.com/logeshOfficial/AIAccountsManager/internal/delivery"
	"github.com/logeshOfficial/AIAccountsManager/internal/observability"
	"github.com/logeshOfficial/AIAccountsManager/internal/query"
	"github.com/logeshOfficial/AIAccountsManager/internal/report"
)

// QueryResult is the fully-resolved response to one natural-language
// question. Workbook is populated only when the question asked for a
// spreadsheet, ChartSpec only when it asked for a visual.
type QueryResult struct {
	Answer    query.Answer
	Report    report.Report
	Workbook  []byte
	ChartSpec *report.ChartSpec
	EmailedTo string
}

// Assistant glues the query router to report assembly and delivery. The
// HTTP server and the batch CLI both drive the pipeline through it.
type Assistant struct {
	Router  *query.Router
	Mailer  delivery.Mailer
	Metrics *observability.Metrics
	Log     *slog.Logger
}

func NewAssistant(router *query.Router, mailer delivery.Mailer, metrics *observability.Metrics, logger *slog.Logger) *Assistant {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assistant{Router: router, Mailer: mailer, Metrics: metrics, Log: logger}
}

// Ask answers a free-text question, building the spreadsheet and chart
// when requested and mailing the workbook when a destination was named.
func (a *Assistant) Ask(ctx context.Context, tenantID, question string) (QueryResult, error) {
	ans, err := a.Router.Route(ctx, tenantID, question)
	if err != nil {
		a.countQuery("error")
		return QueryResult{}, err
	}
	if ans.KeywordFallback {
		a.countQuery("keyword_fallback")
	} else {
		a.countQuery("intent")
	}

	out := QueryResult{Answer: ans}
	out.Report = report.Assemble(ans.Records, ans.Spec)

	if ans.Intent.WantChart {
		spec := report.BuildChartSpec(out.Report)
		out.ChartSpec = &spec
	}

	needWorkbook := ans.Intent.WantReport || ans.Intent.EmailTo != ""
	if needWorkbook {
		wb, err := report.WriteXLSX(out.Report, a.Log)
		if err != nil {
			return out, fmt.Errorf("%w: build workbook: %v", common.ErrInternal, err)
		}
		out.Workbook = wb
		if a.Metrics != nil {
			a.Metrics.ReportsBuilt.Inc()
		}
	}

	if ans.Intent.EmailTo != "" {
		if err := a.email(ctx, ans, out.Workbook); err != nil {
			// the answer itself is still good; report delivery separately
			return out, err
		}
		out.EmailedTo = ans.Intent.EmailTo
	}
	return out, nil
}

// WorkbookResult is a spreadsheet rendered for direct download.
type WorkbookResult struct {
	Workbook []byte
	Filename string
}

// AskForWorkbook answers a question and always renders the spreadsheet,
// regardless of whether the question asked for one.
func (a *Assistant) AskForWorkbook(ctx context.Context, tenantID, question string) (WorkbookResult, error) {
	ans, err := a.Router.Route(ctx, tenantID, question)
	if err != nil {
		a.countQuery("error")
		return WorkbookResult{}, err
	}
	a.countQuery("download")

	rep := report.Assemble(ans.Records, ans.Spec)
	wb, err := report.WriteXLSX(rep, a.Log)
	if err != nil {
		return WorkbookResult{}, fmt.Errorf("%w: build workbook: %v", common.ErrInternal, err)
	}
	if a.Metrics != nil {
		a.Metrics.ReportsBuilt.Inc()
	}
	return WorkbookResult{Workbook: wb, Filename: attachmentName(ans.Spec.Title)}, nil
}

func (a *Assistant) email(ctx context.Context, ans query.Answer, workbook []byte) error {
	if a.Mailer == nil {
		return fmt.Errorf("%w: no mailer configured", common.ErrDeliveryFailure)
	}
	subject := ans.Spec.Title
	if strings.TrimSpace(subject) == "" {
		subject = "Invoice report"
	}
	name := attachmentName(ans.Spec.Title)

	err := a.Mailer.SendReport(ctx, ans.Intent.EmailTo, subject, ans.Text, name, workbook)
	if a.Metrics != nil {
		if err != nil {
			a.Metrics.EmailsSent.WithLabelValues("failure").Inc()
		} else {
			a.Metrics.EmailsSent.WithLabelValues("success").Inc()
		}
	}
	if err != nil {
		a.Log.Error("assistant.email_failed", "to", ans.Intent.EmailTo, "error", err)
		if errors.Is(err, common.ErrDeliveryFailure) {
			return err
		}
		return fmt.Errorf("%w: %v", common.ErrDeliveryFailure, err)
	}
	a.Log.Info("assistant.emailed", "to", ans.Intent.EmailTo, "attachment", name)
	return nil
}

func (a *Assistant) countQuery(path string) {
	if a.Metrics != nil {
		a.Metrics.Queries.WithLabelValues(path).Inc()
	}
}

// attachmentName derives a filesystem-safe workbook name from a report
// title, e.g. "Amazon invoices 2024" -> "amazon-invoices-2024.xlsx".
func attachmentName(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	if s == "" {
		s = "invoice-report-" + time.Now().UTC().Format("2006-01-02")
	}
	var b strings.Builder
	lastDash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-") + ".xlsx"
}
