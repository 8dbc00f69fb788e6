package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/logeshOfficial/AIAccountsManager/internal/entity"
)

// InvoiceFilter narrows a search. Zero values mean "no constraint".
// Month requires Year. Keyword is a case-insensitive substring matched
// against vendor, category, invoice number, and the raw document text.
type InvoiceFilter struct {
	Vendor    string
	Category  string
	Year      int
	Month     time.Month
	From      time.Time
	To        time.Time
	Keyword   string
	OnlyValid bool
}

// InvoiceRepository stores normalized invoice records.
type InvoiceRepository interface {
	// Upsert writes the record; a second extraction of the same document
	// replaces the earlier row instead of duplicating it.
	Upsert(ctx context.Context, rec *entity.InvoiceRecord) error
	Search(ctx context.Context, tenantID string, f InvoiceFilter) ([]entity.InvoiceRecord, error)
	// ListInvalid returns records flagged for manual review.
	ListInvalid(ctx context.Context, tenantID string) ([]entity.InvoiceRecord, error)
}

type invoiceRepository struct {
	db     *sql.DB
	driver string
}

func NewInvoiceRepository(db *sql.DB, driver string) InvoiceRepository {
	return &invoiceRepository{db: db, driver: driver}
}

const invoiceColumns = `id, tenant_id, vendor_name, invoice_number, tx_date, amount, currency_code, category, document_id, valid, raw_text, created_at`

func (r *invoiceRepository) Upsert(ctx context.Context, rec *entity.InvoiceRecord) error {
	txDate := ""
	if !rec.TxDate.IsZero() {
		txDate = rec.CanonicalDate()
	}
	_, err := r.db.ExecContext(ctx, rebind(r.driver, `
INSERT INTO invoices (`+invoiceColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (document_id) DO UPDATE SET
	vendor_name = EXCLUDED.vendor_name,
	invoice_number = EXCLUDED.invoice_number,
	tx_date = EXCLUDED.tx_date,
	amount = EXCLUDED.amount,
	currency_code = EXCLUDED.currency_code,
	category = EXCLUDED.category,
	valid = EXCLUDED.valid,
	raw_text = EXCLUDED.raw_text
`),
		rec.ID.String(), rec.TenantID, rec.VendorName, rec.InvoiceNumber, txDate,
		rec.Amount.String(), rec.CurrencyCode, rec.Category, rec.DocumentID.String(),
		rec.Valid, rec.RawText, rec.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upsert invoice: %w", err)
	}
	return nil
}

func (r *invoiceRepository) Search(ctx context.Context, tenantID string, f InvoiceFilter) ([]entity.InvoiceRecord, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE tenant_id = $1`
	args := []any{tenantID}

	add := func(clause string, val any) {
		args = append(args, val)
		query += " AND " + fmt.Sprintf(clause, argN(len(args)))
	}

	if f.OnlyValid {
		query += " AND valid = TRUE"
	}
	if f.Vendor != "" {
		add("LOWER(vendor_name) LIKE %s", "%"+strings.ToLower(f.Vendor)+"%")
	}
	if f.Category != "" {
		add("category = %s", f.Category)
	}
	if f.Year > 0 && f.Month > 0 {
		start := time.Date(f.Year, f.Month, 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 1, 0)
		add("tx_date >= %s", start.Format("2006-01-02"))
		add("tx_date < %s", end.Format("2006-01-02"))
	} else if f.Year > 0 {
		add("tx_date >= %s", fmt.Sprintf("%04d-01-01", f.Year))
		add("tx_date < %s", fmt.Sprintf("%04d-01-01", f.Year+1))
	}
	if !f.From.IsZero() {
		add("tx_date >= %s", f.From.Format("2006-01-02"))
	}
	if !f.To.IsZero() {
		add("tx_date <= %s", f.To.Format("2006-01-02"))
	}
	if f.Keyword != "" {
		kw := "%" + strings.ToLower(f.Keyword) + "%"
		n := len(args)
		query += fmt.Sprintf(
			" AND (LOWER(vendor_name) LIKE %s OR LOWER(category) LIKE %s OR LOWER(invoice_number) LIKE %s OR LOWER(raw_text) LIKE %s)",
			argN(n+1), argN(n+2), argN(n+3), argN(n+4),
		)
		args = append(args, kw, kw, kw, kw)
	}

	query += " ORDER BY tx_date ASC, created_at ASC"

	rows, err := r.db.QueryContext(ctx, rebind(r.driver, query), args...)
	if err != nil {
		return nil, fmt.Errorf("search invoices: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []entity.InvoiceRecord
	for rows.Next() {
		rec, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoices: %w", err)
	}
	return out, nil
}

func (r *invoiceRepository) ListInvalid(ctx context.Context, tenantID string) ([]entity.InvoiceRecord, error) {
	rows, err := r.db.QueryContext(ctx, rebind(r.driver, `
SELECT `+invoiceColumns+` FROM invoices
WHERE tenant_id = $1 AND valid = FALSE
ORDER BY created_at DESC
`), tenantID)
	if err != nil {
		return nil, fmt.Errorf("list invalid invoices: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []entity.InvoiceRecord
	for rows.Next() {
		rec, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoices: %w", err)
	}
	return out, nil
}

func scanInvoice(rows *sql.Rows) (entity.InvoiceRecord, error) {
	var (
		rec                    entity.InvoiceRecord
		id, docID              string
		txDate, amt, createdAt string
	)
	if err := rows.Scan(
		&id, &rec.TenantID, &rec.VendorName, &rec.InvoiceNumber, &txDate,
		&amt, &rec.CurrencyCode, &rec.Category, &docID, &rec.Valid, &rec.RawText, &createdAt,
	); err != nil {
		return rec, fmt.Errorf("scan invoice: %w", err)
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return rec, fmt.Errorf("parse invoice id: %w", err)
	}
	rec.ID = parsed
	if docID != "" {
		parsedDoc, err := uuid.Parse(docID)
		if err != nil {
			return rec, fmt.Errorf("parse document id: %w", err)
		}
		rec.DocumentID = parsedDoc
	}
	if txDate != "" {
		dt, err := time.Parse("2006-01-02", txDate)
		if err != nil {
			return rec, fmt.Errorf("parse tx_date: %w", err)
		}
		rec.TxDate = dt
	}
	amount, err := decimal.NewFromString(amt)
	if err != nil {
		return rec, fmt.Errorf("parse amount: %w", err)
	}
	rec.Amount = amount
	ts, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return rec, fmt.Errorf("parse created_at: %w", err)
	}
	rec.CreatedAt = ts
	return rec, nil
}
