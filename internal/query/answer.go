package query

import (
	"fmt"
	"strings"

	"github.com/logeshOfficial/AIAccountsManager/internal/report"
)

// summarize writes the chat answer for a routed query.
func summarize(ans Answer, rep report.Report) string {
	if len(ans.Records) == 0 {
		return "I couldn't find any invoices matching those specific details."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "I found %d matching record%s. ", len(ans.Records), plural(len(ans.Records)))

	switch {
	case len(ans.Records) == 1:
		rec := ans.Records[0]
		fmt.Fprintf(&b, "Details: %s from %s (%s) for %s %s.",
			invoiceRef(rec.InvoiceNumber), rec.VendorName, rec.CanonicalDate(),
			rec.CanonicalAmount(), rec.CurrencyCode)
	case ans.Spec.GroupBy == report.GroupByVendor && len(rep.Groups) > 0:
		top := rep.Groups[0]
		fmt.Fprintf(&b, "Top vendor: %s with %s. Overall total: %s.",
			top.Key, top.Total.StringFixed(2), ans.Total.StringFixed(2))
	case ans.Spec.GroupBy == report.GroupByMonth:
		fmt.Fprintf(&b, "Yearly overview for %d (grouped by month). Total: %s.",
			ans.Spec.Year, ans.Total.StringFixed(2))
	default:
		fmt.Fprintf(&b, "Total: %s.", ans.Total.StringFixed(2))
	}

	if ans.KeywordFallback {
		b.WriteString(" (Matched by keyword search.)")
	}
	return b.String()
}

func invoiceRef(number string) string {
	if number == "" {
		return "an invoice"
	}
	return "Invoice #" + number
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
