package entity

// ExtractedFields is the raw, untyped field set an extractor tier returns.
// Values are strings as found on the document; the normalizer owns coercion.
type ExtractedFields struct {
	VendorName    string  `json:"vendor_name"`
	InvoiceNumber string  `json:"invoice_number,omitempty"`
	InvoiceDate   string  `json:"invoice_date"`
	TotalAmount   string  `json:"total_amount"`
	CurrencyCode  string  `json:"currency_code,omitempty"`
	Category      string  `json:"category,omitempty"`
	Description   string  `json:"description,omitempty"`
	Confidence    float32 `json:"confidence,omitempty"`
}
