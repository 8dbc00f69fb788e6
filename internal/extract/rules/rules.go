package rules

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/logeshOfficial/AIAccountsManager/internal/entity"
	"github.com/logeshOfficial/AIAccountsManager/internal/normalize"
)

// Extractor is the last tier: a local regex parser that needs no network.
// It handles the common Indian and US invoice layouts well enough to keep
// documents flowing when both hosted providers are down.
type Extractor struct {
	log *slog.Logger
}

func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{log: logger}
}

func (e *Extractor) Name() string { return "rules" }

var (
	// the captured identifier must contain a digit; a bare word after the
	// keyword is a stray header, not a number
	reInvoiceNo = regexp.MustCompile(`(?i)(?:invoice|bill|challan|#|receipt|inv)\s*(?:no|number|#)?\s*:?\s*([A-Z0-9\-/]*\d[A-Z0-9\-/]*)`)
	reDated     = regexp.MustCompile(`(?i)(?:date|dated|journey|boarding|boarding\s*date)\s*:?\s*([0-9]{1,2}[/\-.\s]+(?:[0-9]{1,2}|[A-Za-z]{3})[/\-.\s]+[0-9]{2,4})`)
	reOrphanDt  = regexp.MustCompile(`(\d{1,2}[-/](?:[A-Za-z]{3}|\d{1,2})[-/]\d{2,4})`)
	reGST       = regexp.MustCompile(`(?i)(?:gst|gstin)\s*:?\s*([0-9A-Z]{15})`)

	// grand-total keywords first; generic "total ... 123.45" as last resort
	rePriorityAmounts = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:total invoice value|invoice value|total fare|ticket fare|fare\s*\(all\s*inclusive\))\s*[^\d]*([\d,]+\.?\d*)`),
		regexp.MustCompile(`(?i)(?:grand total|total amount|amount due|total payment|amount payable)\s*:?\s*[^\d]*([\d,]+\.?\d*)`),
	}
	reTotalLine = regexp.MustCompile(`(?i)total.*?[:\x{20B9}$]\s*([\d,]+\.\d{2})`)

	// lines that cannot be the vendor header
	reNonVendorLine = regexp.MustCompile(`(?i)^(?:invoice|bill|receipt|tax invoice|challan|date|gst|gstin|page|original|duplicate|copy)\b|\d{2}[/\-.]\d{2}`)
)

func (e *Extractor) Extract(_ context.Context, doc *entity.RawDocument) (entity.ExtractedFields, []byte, error) {
	start := time.Now()
	text := doc.Text()

	out := entity.ExtractedFields{
		Description: "General Retail",
		Confidence:  0.65,
	}

	if m := reInvoiceNo.FindStringSubmatch(text); m != nil {
		out.InvoiceNumber = normalize.CleanInvoiceNumber(m[1])
	}

	if m := reDated.FindStringSubmatch(text); m != nil {
		out.InvoiceDate = strings.TrimSpace(m[1])
	} else if m := reOrphanDt.FindStringSubmatch(text); m != nil {
		out.InvoiceDate = strings.TrimSpace(m[1])
	}

	out.VendorName = vendorHeuristic(text)
	out.TotalAmount = grandTotal(text)

	if gst := reGST.FindStringSubmatch(text); gst != nil && out.Description == "General Retail" {
		out.Description = "GST invoice"
	}

	raw, _ := json.Marshal(out)
	e.log.Info("rules.extract.done",
		"doc_id", doc.ID,
		"vendor", out.VendorName,
		"date", out.InvoiceDate,
		"total", out.TotalAmount,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, raw, nil
}

// vendorHeuristic takes the first header line that is not a label, a date,
// or a number run. Invoices almost always open with the issuer's name.
func vendorHeuristic(text string) string {
	for _, line := range strings.Split(text, "\n") {
		s := strings.TrimSpace(line)
		if s == "" || len(s) < 3 {
			continue
		}
		if reNonVendorLine.MatchString(s) {
			continue
		}
		if strings.IndexFunc(s, func(r rune) bool {
			return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		}) < 0 {
			continue
		}
		if len(s) > 80 {
			s = s[:80]
		}
		return s
	}
	return ""
}

// grandTotal scans priority keyword patterns and keeps the largest match so
// subtotals and tax lines lose to the all-inclusive figure.
func grandTotal(text string) string {
	var best decimal.Decimal
	found := false
	for _, re := range rePriorityAmounts {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			val, err := normalize.Amount(m[1])
			if err != nil || !val.IsPositive() {
				continue
			}
			if !found || val.GreaterThan(best) {
				best = val
				found = true
			}
		}
	}
	if found {
		return best.StringFixed(2)
	}
	if m := reTotalLine.FindStringSubmatch(text); m != nil {
		if val, err := normalize.Amount(m[1]); err == nil && val.IsPositive() {
			return val.StringFixed(2)
		}
	}
	return ""
}
