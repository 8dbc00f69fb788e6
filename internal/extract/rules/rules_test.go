package rules

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logeshOfficial/AIAccountsManager/internal/entity"
	"github.com/logeshOfficial/AIAccountsManager/internal/normalize"
)

func doc(text string) *entity.RawDocument {
	return &entity.RawDocument{ID: uuid.New(), Pages: []string{text}}
}

func TestExtractRetailInvoice(t *testing.T) {
	text := `Sharma Traders Pvt Ltd
Tax Invoice
Invoice No: ST/2024/0417
Date: 17/04/2024
GSTIN: 29ABCDE1234F1Z5
Subtotal 980.00
GST 18% 176.40
Grand Total : 1156.40`

	e := New(nil)
	fields, raw, err := e.Extract(context.Background(), doc(text))
	require.NoError(t, err)
	assert.NotEmpty(t, raw)

	assert.Equal(t, "Sharma Traders Pvt Ltd", fields.VendorName)
	assert.Equal(t, "ST/2024/0417", fields.InvoiceNumber)
	assert.Equal(t, "17/04/2024", fields.InvoiceDate)
	assert.Equal(t, "1156.40", fields.TotalAmount)

	// output feeds straight into the normalizer
	require.NoError(t, normalize.Validate(fields))
}

func TestExtractPicksGrandTotalOverSubtotal(t *testing.T) {
	text := `Acme Stores
Bill No: 881
Date: 03-02-2024
Total Amount: 250.00
Grand Total: 295.00`

	e := New(nil)
	fields, _, err := e.Extract(context.Background(), doc(text))
	require.NoError(t, err)
	assert.Equal(t, "295.00", fields.TotalAmount)
}

func TestExtractTravelFare(t *testing.T) {
	text := `Blue Line Travels
Receipt No: BL-99
Boarding Date: 12-Sep-2025
Ticket Fare 452.30`

	e := New(nil)
	fields, _, err := e.Extract(context.Background(), doc(text))
	require.NoError(t, err)
	assert.Equal(t, "12-Sep-2025", fields.InvoiceDate)
	assert.Equal(t, "452.30", fields.TotalAmount)
}

func TestExtractOrphanedDateFallback(t *testing.T) {
	text := `Corner Cafe
12/09/2025
Grand Total: 18.50`

	e := New(nil)
	fields, _, err := e.Extract(context.Background(), doc(text))
	require.NoError(t, err)
	assert.Equal(t, "12/09/2025", fields.InvoiceDate)
}

func TestExtractEmptyTextYieldsEmptyFields(t *testing.T) {
	e := New(nil)
	fields, _, err := e.Extract(context.Background(), doc(""))
	require.NoError(t, err)
	assert.Empty(t, fields.VendorName)
	assert.Empty(t, fields.TotalAmount)
	assert.Error(t, normalize.Validate(fields))
}
