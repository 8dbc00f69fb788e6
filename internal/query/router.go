package query

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/logeshOfficial/AIAccountsManager/internal/common"
	"github.com/logeshOfficial/AIAccountsManager/internal/entity"
	"github.com/logeshOfficial/AIAccountsManager/internal/report"
	"github.com/logeshOfficial/AIAccountsManager/internal/repository"
)

// Answer is the routed result for one free-text query.
type Answer struct {
	Intent          QueryIntent
	Spec            report.Spec
	Records         []entity.InvoiceRecord
	Total           decimal.Decimal
	Text            string
	KeywordFallback bool
}

// Router maps a free-text question to structured filters and a grouped
// result. When the LLM parser returns something unusable the router falls
// back to a literal keyword search instead of failing the query.
type Router struct {
	Parser   IntentParser
	Invoices repository.InvoiceRepository
	Log      *slog.Logger

	mu       sync.Mutex
	lastYear map[string]int // tenant -> most recently referenced year
}

func NewRouter(parser IntentParser, invoices repository.InvoiceRepository, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		Parser:   parser,
		Invoices: invoices,
		Log:      logger,
		lastYear: make(map[string]int),
	}
}

var (
	reSuperlative = regexp.MustCompile(`(?i)\b(most|top|highest|biggest|largest)\b`)
	reWantReport  = regexp.MustCompile(`(?i)\b(excel|report|download|spreadsheet|xlsx)\b`)
	reWantChart   = regexp.MustCompile(`(?i)\b(chart|plot|graph|pie|visuali[sz]e)\b`)
)

func (r *Router) Route(ctx context.Context, tenantID, queryText string) (Answer, error) {
	intent, err := r.Parser.Parse(ctx, queryText)
	if err != nil {
		if errors.Is(err, common.ErrQueryParseFailure) {
			r.Log.Warn("query.route.parse_failed_keyword_fallback", "tenant", tenantID, "error", err)
			return r.keywordFallback(ctx, tenantID, queryText)
		}
		return Answer{}, err
	}

	r.refine(&intent, tenantID, queryText)

	filter := repository.InvoiceFilter{
		Vendor:    intent.Vendor,
		Category:  intent.Category,
		Year:      intent.Year,
		Month:     intent.Month,
		OnlyValid: true,
	}
	if intent.Day > 0 && intent.Year > 0 && intent.Month > 0 {
		day := time.Date(intent.Year, intent.Month, intent.Day, 0, 0, 0, 0, time.UTC)
		filter.From, filter.To = day, day
	}
	if intent.InvoiceNumber != "" {
		filter.Keyword = intent.InvoiceNumber
	}

	records, err := r.Invoices.Search(ctx, tenantID, filter)
	if err != nil {
		return Answer{}, err
	}

	spec := r.buildSpec(intent, queryText)
	rep := report.Assemble(records, spec)

	ans := Answer{
		Intent:  intent,
		Spec:    spec,
		Records: records,
		Total:   rep.Total,
	}
	ans.Text = summarize(ans, rep)
	return ans, nil
}

// refine applies the deterministic heuristics on top of what the LLM
// parsed: a bare month scopes to the most recently referenced year (or the
// current one), and output-modality keywords override the parse.
func (r *Router) refine(intent *QueryIntent, tenantID, queryText string) {
	if reWantReport.MatchString(queryText) {
		intent.WantReport = true
	}
	if reWantChart.MatchString(queryText) {
		intent.WantChart = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if intent.Year > 0 {
		r.lastYear[tenantID] = intent.Year
	} else if intent.Month > 0 {
		if y, ok := r.lastYear[tenantID]; ok {
			intent.Year = y
		} else {
			intent.Year = time.Now().UTC().Year()
		}
	}
}

// buildSpec picks the grouping key: superlative language wins vendor
// grouping, a year with no month gets calendar months, a month gets dates.
func (r *Router) buildSpec(intent QueryIntent, queryText string) report.Spec {
	spec := report.Spec{Year: intent.Year, Month: intent.Month, Title: reportTitle(intent)}
	switch {
	case reSuperlative.MatchString(queryText):
		spec.GroupBy = report.GroupByVendor
	case intent.Year > 0 && intent.Month == 0:
		spec.GroupBy = report.GroupByMonth
	case intent.Month > 0:
		spec.GroupBy = report.GroupByDate
	default:
		spec.GroupBy = report.GroupByVendor
	}
	return spec
}

func (r *Router) keywordFallback(ctx context.Context, tenantID, queryText string) (Answer, error) {
	records, err := r.Invoices.Search(ctx, tenantID, repository.InvoiceFilter{
		Keyword:   queryText,
		OnlyValid: true,
	})
	if err != nil {
		return Answer{}, err
	}

	spec := report.Spec{GroupBy: report.GroupByVendor, Title: "Keyword search"}
	rep := report.Assemble(records, spec)
	ans := Answer{
		Spec:            spec,
		Records:         records,
		Total:           rep.Total,
		KeywordFallback: true,
	}
	ans.Text = summarize(ans, rep)
	return ans, nil
}

func reportTitle(intent QueryIntent) string {
	switch {
	case intent.Year > 0 && intent.Month > 0:
		return intent.Month.String() + " " + strconv.Itoa(intent.Year)
	case intent.Year > 0:
		return strconv.Itoa(intent.Year)
	case intent.Vendor != "":
		return intent.Vendor
	case intent.Category != "":
		return intent.Category
	default:
		return "Expenses"
	}
}
