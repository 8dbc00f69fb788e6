package report

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/logeshOfficial/AIAccountsManager/internal/entity"
)

var headers = []string{
	"Invoice Date",
	"Vendor",
	"Invoice Number",
	"Category",
	"Amount",
	"Currency",
}

// WriteXLSX renders the assembled report to an XLSX workbook. Year-scoped
// (month-grouped) reports get one sheet per month; everything else goes to
// a single sheet with a row per record and a total row per group.
func WriteXLSX(rep Report, logger *slog.Logger) ([]byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	f := excelize.NewFile()
	if rep.Spec.GroupBy == GroupByMonth {
		if err := writeMonthSheets(f, rep); err != nil {
			return nil, err
		}
	} else {
		if err := writeSingleSheet(f, rep); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	logger.Info("report.xlsx.ok",
		"groups", len(rep.Groups),
		"total", rep.Total.StringFixed(2),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeMonthSheets(f *excelize.File, rep Report) error {
	first := true
	for _, group := range rep.Groups {
		if len(group.Records) == 0 {
			continue
		}
		if err := addSheet(f, group.Key, first); err != nil {
			return err
		}
		first = false

		writeHeader(f, group.Key)
		row := 2
		for _, rec := range group.Records {
			writeRecord(f, group.Key, row, rec)
			row++
		}
		writeTotal(f, group.Key, row, "Total", group.Total.StringFixed(2))
		widen(f, group.Key)
	}
	if first {
		// nothing matched; still produce a readable workbook
		if err := addSheet(f, "Report", true); err != nil {
			return err
		}
		writeHeader(f, "Report")
		writeTotal(f, "Report", 2, "Total", rep.Total.StringFixed(2))
	}
	return nil
}

func writeSingleSheet(f *excelize.File, rep Report) error {
	const sheet = "Report"
	if err := addSheet(f, sheet, true); err != nil {
		return err
	}
	writeHeader(f, sheet)

	row := 2
	for _, group := range rep.Groups {
		for _, rec := range group.Records {
			writeRecord(f, sheet, row, rec)
			row++
		}
		writeTotal(f, sheet, row, group.Key+" total", group.Total.StringFixed(2))
		row++
	}
	writeTotal(f, sheet, row, "Grand total", rep.Total.StringFixed(2))
	widen(f, sheet)
	return nil
}

func addSheet(f *excelize.File, name string, reuseDefault bool) error {
	if reuseDefault {
		// rename the workbook's default sheet instead of leaving it empty
		return f.SetSheetName("Sheet1", name)
	}
	_, err := f.NewSheet(name)
	return err
}

func writeHeader(f *excelize.File, sheet string) {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
}

func writeRecord(f *excelize.File, sheet string, row int, rec entity.InvoiceRecord) {
	write := func(col int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
	date := ""
	if !rec.TxDate.IsZero() {
		date = rec.CanonicalDate()
	}
	write(1, date)
	write(2, rec.VendorName)
	write(3, rec.InvoiceNumber)
	write(4, rec.Category)
	write(5, rec.CanonicalAmount())
	write(6, rec.CurrencyCode)
}

func writeTotal(f *excelize.File, sheet string, row int, label, amount string) {
	cell, _ := excelize.CoordinatesToCellName(4, row)
	_ = f.SetCellValue(sheet, cell, label)
	cell, _ = excelize.CoordinatesToCellName(5, row)
	_ = f.SetCellValue(sheet, cell, amount)
}

func widen(f *excelize.File, sheet string) {
	_ = f.SetColWidth(sheet, "A", "A", 14)
	_ = f.SetColWidth(sheet, "B", "B", 28)
	_ = f.SetColWidth(sheet, "C", "C", 18)
	_ = f.SetColWidth(sheet, "D", "D", 16)
	_ = f.SetColWidth(sheet, "E", "F", 12)
}
