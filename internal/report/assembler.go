package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/logeshOfficial/AIAccountsManager/internal/entity"
)

// GroupKey selects how the assembler buckets records.
type GroupKey string

const (
	GroupByMonth  GroupKey = "month"  // year-scoped: one group per calendar month
	GroupByDate   GroupKey = "date"   // month-scoped: one group per date, ascending
	GroupByVendor GroupKey = "vendor" // one group per vendor, descending by total
)

// Spec resolves a query intent into a concrete grouping request.
type Spec struct {
	Title   string
	GroupBy GroupKey
	Year    int
	Month   time.Month
}

// Group is one bucket of the assembled report.
type Group struct {
	Key     string
	Records []entity.InvoiceRecord
	Total   decimal.Decimal
}

// Report is the grouped tabular result handed to the spreadsheet writer
// and the answer generator.
type Report struct {
	Spec   Spec
	Groups []Group
	Total  decimal.Decimal
}

// Assemble groups records by the requested key. Sums are fixed-point
// decimal so currency totals never drift.
func Assemble(records []entity.InvoiceRecord, spec Spec) Report {
	switch spec.GroupBy {
	case GroupByMonth:
		return assembleByMonth(records, spec)
	case GroupByDate:
		return assembleByDate(records, spec)
	case GroupByVendor:
		return assembleByVendor(records, spec)
	default:
		spec.GroupBy = GroupByVendor
		return assembleByVendor(records, spec)
	}
}

// assembleByMonth always emits 12 groups in calendar order; months with no
// records carry a zero total.
func assembleByMonth(records []entity.InvoiceRecord, spec Spec) Report {
	year := spec.Year
	if year == 0 && len(records) > 0 {
		year = records[0].TxDate.Year()
		spec.Year = year
	}

	out := Report{Spec: spec, Total: decimal.Zero}
	byMonth := map[time.Month][]entity.InvoiceRecord{}
	for _, rec := range records {
		if rec.TxDate.Year() != year {
			continue
		}
		byMonth[rec.TxDate.Month()] = append(byMonth[rec.TxDate.Month()], rec)
	}

	for m := time.January; m <= time.December; m++ {
		group := Group{Key: m.String(), Records: byMonth[m], Total: decimal.Zero}
		for _, rec := range group.Records {
			group.Total = group.Total.Add(rec.Amount)
		}
		out.Total = out.Total.Add(group.Total)
		out.Groups = append(out.Groups, group)
	}
	return out
}

func assembleByDate(records []entity.InvoiceRecord, spec Spec) Report {
	out := Report{Spec: spec, Total: decimal.Zero}
	byDate := map[string][]entity.InvoiceRecord{}
	var keys []string
	for _, rec := range records {
		if spec.Year > 0 && rec.TxDate.Year() != spec.Year {
			continue
		}
		if spec.Month > 0 && rec.TxDate.Month() != spec.Month {
			continue
		}
		key := rec.CanonicalDate()
		if _, seen := byDate[key]; !seen {
			keys = append(keys, key)
		}
		byDate[key] = append(byDate[key], rec)
	}
	sort.Strings(keys)

	for _, key := range keys {
		group := Group{Key: key, Records: byDate[key], Total: decimal.Zero}
		for _, rec := range group.Records {
			group.Total = group.Total.Add(rec.Amount)
		}
		out.Total = out.Total.Add(group.Total)
		out.Groups = append(out.Groups, group)
	}
	return out
}

func assembleByVendor(records []entity.InvoiceRecord, spec Spec) Report {
	out := Report{Spec: spec, Total: decimal.Zero}
	byVendor := map[string][]entity.InvoiceRecord{}
	var keys []string
	for _, rec := range records {
		if _, seen := byVendor[rec.VendorName]; !seen {
			keys = append(keys, rec.VendorName)
		}
		byVendor[rec.VendorName] = append(byVendor[rec.VendorName], rec)
	}

	totals := map[string]decimal.Decimal{}
	for vendor, recs := range byVendor {
		total := decimal.Zero
		for _, rec := range recs {
			total = total.Add(rec.Amount)
		}
		totals[vendor] = total
		out.Total = out.Total.Add(total)
	}

	sort.SliceStable(keys, func(i, j int) bool {
		a, b := totals[keys[i]], totals[keys[j]]
		if !a.Equal(b) {
			return a.GreaterThan(b)
		}
		return keys[i] < keys[j]
	})

	for _, vendor := range keys {
		out.Groups = append(out.Groups, Group{
			Key:     vendor,
			Records: byVendor[vendor],
			Total:   totals[vendor],
		})
	}
	return out
}
