package query

import (
	"context"
	"time"
)

// QueryIntent is the structured filter set parsed from a free-text
// question. Zero values mean "not mentioned".
type QueryIntent struct {
	Vendor        string
	InvoiceNumber string
	Category      string
	Year          int
	Month         time.Month
	Day           int

	// delivery and output modality
	EmailTo    string
	WantReport bool
	WantChart  bool
}

// IntentParser turns a free-text query into a QueryIntent. The production
// implementation calls a hosted LLM; tests substitute a stub.
type IntentParser interface {
	Parse(ctx context.Context, query string) (QueryIntent, error)
}
