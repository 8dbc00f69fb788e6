package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceRecord is the normalized, validated representation of one invoice.
// Immutable after creation except for category re-classification.
type InvoiceRecord struct {
	ID            uuid.UUID       `json:"id"`
	TenantID      string          `json:"tenant_id"`
	VendorName    string          `json:"vendor_name"`
	InvoiceNumber string          `json:"invoice_number,omitempty"`
	TxDate        time.Time       `json:"tx_date"`
	Amount        decimal.Decimal `json:"amount"`
	CurrencyCode  string          `json:"currency_code"`
	Category      string          `json:"category"`
	DocumentID    uuid.UUID       `json:"document_id"`
	Valid         bool            `json:"valid"`
	RawText       string          `json:"raw_text,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// CanonicalDate renders the transaction date in the canonical form.
// Idempotent: re-rendering the stored value always yields the same string.
func (r *InvoiceRecord) CanonicalDate() string {
	return r.TxDate.Format("2006-01-02")
}

// CanonicalAmount renders the amount as a fixed two-decimal string.
func (r *InvoiceRecord) CanonicalAmount() string {
	return r.Amount.StringFixed(2)
}
