package normalize

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/logeshOfficial/AIAccountsManager/constants"
	"github.com/logeshOfficial/AIAccountsManager/internal/common"
	"github.com/logeshOfficial/AIAccountsManager/internal/entity"
)

// dateLayouts are tried in order. Numeric day/month forms are day-first,
// matching how the source documents write them.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	"02-Jan-2006",
	"2-Jan-2006",
	"02/Jan/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 02 2006",
	"Jan 2 2006",
	"2 Jan 2006",
	"2 January 2006",
	"2006/01/02",
	"02/01/06",
	"02-Jan-06",
}

var (
	reAmountToken = regexp.MustCompile(`\d+(?:\.\d+)?`)
	reSpaces      = regexp.MustCompile(`\s+`)
)

// FieldError is a field-level validation failure. The document that produced
// it goes to the invalid set with the partial data retained for review.
type FieldError struct {
	Field string
	Value string
	Err   error
}

func (e FieldError) Error() string {
	return fmt.Sprintf("field %q (%q): %v", e.Field, e.Value, e.Err)
}

// Date parses a human-written invoice date into a date-only UTC time.
// Returns ErrInvalidDate when no known layout matches or the date is not a
// real calendar date.
func Date(raw string) (time.Time, error) {
	s := reSpaces.ReplaceAllString(strings.TrimSpace(raw), " ")
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", common.ErrInvalidDate)
	}
	for _, layout := range dateLayouts {
		if dt, err := time.Parse(layout, s); err == nil {
			return time.Date(dt.Year(), dt.Month(), dt.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", common.ErrInvalidDate, raw)
}

// Amount strips currency symbols and thousands separators and parses a
// fixed-point decimal. Negative or non-numeric content is ErrInvalidAmount;
// amounts are never silently defaulted to zero.
func Amount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", common.ErrInvalidAmount)
	}
	// drop thousands separators and inner spaces before tokenizing
	s = strings.ReplaceAll(s, ",", "")
	s = reSpaces.ReplaceAllString(s, "")
	token := reAmountToken.FindString(s)
	if token == "" {
		return decimal.Zero, fmt.Errorf("%w: %q", common.ErrInvalidAmount, raw)
	}
	if i := strings.Index(s, token); i > 0 && s[i-1] == '-' {
		return decimal.Zero, fmt.Errorf("%w: negative %q", common.ErrInvalidAmount, raw)
	}
	d, err := decimal.NewFromString(token)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", common.ErrInvalidAmount, raw)
	}
	return d.Round(2), nil
}

// Vendor trims and collapses whitespace. Empty vendor is a required-field
// failure.
func Vendor(raw string) (string, error) {
	s := reSpaces.ReplaceAllString(strings.TrimSpace(raw), " ")
	if s == "" {
		return "", fmt.Errorf("%w: vendor is required", common.ErrInvalidInput)
	}
	return s, nil
}

// Validate checks that the required fields (vendor, date, amount) of an
// extraction result are present and well-formed. The cascade uses this to
// decide whether a tier's output is acceptable.
func Validate(f entity.ExtractedFields) error {
	if _, err := Vendor(f.VendorName); err != nil {
		return err
	}
	if _, err := Date(f.InvoiceDate); err != nil {
		return err
	}
	if _, err := Amount(f.TotalAmount); err != nil {
		return err
	}
	return nil
}

// Record coerces raw extracted fields into an InvoiceRecord. Field-level
// failures are collected rather than short-circuited so review gets the
// full picture; the record is returned with whatever normalized cleanly.
func Record(tenantID string, docID uuid.UUID, f entity.ExtractedFields) (entity.InvoiceRecord, []FieldError) {
	var errs []FieldError

	rec := entity.InvoiceRecord{
		ID:         uuid.New(),
		TenantID:   tenantID,
		DocumentID: docID,
		CreatedAt:  time.Now().UTC(),
	}

	vendor, err := Vendor(f.VendorName)
	if err != nil {
		errs = append(errs, FieldError{Field: "vendor_name", Value: f.VendorName, Err: err})
	}
	rec.VendorName = vendor

	dt, err := Date(f.InvoiceDate)
	if err != nil {
		errs = append(errs, FieldError{Field: "invoice_date", Value: f.InvoiceDate, Err: err})
	}
	rec.TxDate = dt

	amount, err := Amount(f.TotalAmount)
	if err != nil {
		errs = append(errs, FieldError{Field: "total_amount", Value: f.TotalAmount, Err: err})
	}
	rec.Amount = amount

	rec.CurrencyCode = strings.ToUpper(strings.TrimSpace(f.CurrencyCode))
	if rec.CurrencyCode == "" {
		rec.CurrencyCode = "USD"
	}

	rec.InvoiceNumber = CleanInvoiceNumber(f.InvoiceNumber)

	// category never hard-fails; unknown labels land in Other. When the
	// extractor returned no explicit category, the description is the next
	// best signal ("General Retail", "taxi fare", ...).
	label := f.Category
	if strings.TrimSpace(label) == "" {
		label = f.Description
	}
	cat, _ := constants.Canonicalize(label)
	rec.Category = string(cat)

	rec.Valid = len(errs) == 0
	return rec, errs
}

// invoice-number label prefixes seen across the document corpus
var reInvoiceLabel = regexp.MustCompile(`(?i)^(?:invoice\s*(?:no|number)?|bill\s*(?:no|number)?|challan\s*(?:no|number)?|receipt\s*(?:no|number)?|inv|no|num)\s*[.#:]*\s*`)

// CleanInvoiceNumber strips common labels and surrounding noise from an
// invoice-number string while preserving the alphanumeric identifier.
func CleanInvoiceNumber(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	s = reInvoiceLabel.ReplaceAllString(s, "")
	s = strings.Trim(s, ": \t#")
	return strings.TrimSpace(s)
}
