package query

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/logeshOfficial/AIAccountsManager/constants"
	"github.com/logeshOfficial/AIAccountsManager/internal/common"
	"github.com/logeshOfficial/AIAccountsManager/internal/extract"
)

// Completer is the one LLM operation the parser needs.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// LLMParser extracts filters with a hosted model and constrained JSON
// output. An unusable response surfaces as ErrQueryParseFailure so the
// router can fall back to a literal keyword search.
type LLMParser struct {
	LLM Completer
	Log *slog.Logger
}

func NewLLMParser(llm Completer, logger *slog.Logger) *LLMParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMParser{LLM: llm, Log: logger}
}

const parserSystemPrompt = `You are a financial analyst assistant. Extract search filters from the user's question about their invoices.
Respond strictly in JSON with exactly these keys:
{
  "vendor_name": "",
  "invoice_number": "",
  "category": "",
  "target_year": "",
  "target_month": "",
  "target_day": "",
  "target_email": ""
}
Rules:
- vendor_name: partial or exact vendor mentioned, else empty.
- category: one of the known expense categories if clearly implied, else empty.
- target_year: 4-digit year like "2025", else empty.
- target_month: month name or number 1-12, else empty.
- target_day: day of month 1-31, else empty.
- target_email: an email address the user wants results sent to, else empty.
- Use empty strings for anything not mentioned. No prose, JSON only.`

type llmIntent struct {
	VendorName    string `json:"vendor_name"`
	InvoiceNumber string `json:"invoice_number"`
	Category      string `json:"category"`
	TargetYear    any    `json:"target_year"`
	TargetMonth   any    `json:"target_month"`
	TargetDay     any    `json:"target_day"`
	TargetEmail   string `json:"target_email"`
}

func (p *LLMParser) Parse(ctx context.Context, query string) (QueryIntent, error) {
	user := "Known categories: " + strings.Join(constants.AsStringSlice(), ", ") + "\nQuestion: " + query

	content, err := p.LLM.Complete(ctx, parserSystemPrompt, user)
	if err != nil {
		return QueryIntent{}, fmt.Errorf("%w: %v", common.ErrQueryParseFailure, err)
	}

	raw := extract.StripJSONFence([]byte(content))
	var parsed llmIntent
	if err := json.Unmarshal(raw, &parsed); err != nil {
		p.Log.Warn("query.parse.bad_json", "content", content, "error", err)
		return QueryIntent{}, fmt.Errorf("%w: %v", common.ErrQueryParseFailure, err)
	}

	intent := QueryIntent{
		Vendor:        strings.TrimSpace(parsed.VendorName),
		InvoiceNumber: strings.TrimSpace(parsed.InvoiceNumber),
		EmailTo:       strings.TrimSpace(parsed.TargetEmail),
		Year:          asInt(parsed.TargetYear),
		Month:         asMonth(parsed.TargetMonth),
		Day:           asInt(parsed.TargetDay),
	}
	if cat, ok := constants.Canonicalize(parsed.Category); ok {
		intent.Category = string(cat)
	}
	return intent, nil
}

func asInt(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// asMonth accepts a month number or an English month name, full or
// abbreviated.
func asMonth(v any) time.Month {
	switch t := v.(type) {
	case float64:
		if t >= 1 && t <= 12 {
			return time.Month(t)
		}
	case string:
		return MonthFromName(t)
	}
	return 0
}

// MonthFromName resolves "February", "feb", or "2" to a calendar month;
// zero when it cannot.
func MonthFromName(s string) time.Month {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n >= 1 && n <= 12 {
			return time.Month(n)
		}
		return 0
	}
	for _, layout := range []string{"January", "Jan"} {
		if dt, err := time.Parse(layout, s); err == nil {
			return dt.Month()
		}
	}
	return 0
}
