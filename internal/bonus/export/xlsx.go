package export

import (
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/odyssey-erp/compensation/internal/bonus"
)

// ContentTypeXLSX is the media type of generated workbooks.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const moneyFormat = "#,##0.00"

type workbook struct {
	file  *excelize.File
	money int
	bold  int
	first bool
}

func newWorkbook() (*workbook, error) {
	f := excelize.NewFile()
	numFmt := moneyFormat
	money, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &workbook{file: f, money: money, bold: bold, first: true}, nil
}

func (b *workbook) sheet(name string, header []string) error {
	if b.first {
		if err := b.file.SetSheetName(b.file.GetSheetName(0), name); err != nil {
			return err
		}
		b.first = false
	} else if _, err := b.file.NewSheet(name); err != nil {
		return err
	}
	row := make([]interface{}, len(header))
	for i, h := range header {
		row[i] = h
	}
	if err := b.file.SetSheetRow(name, "A1", &row); err != nil {
		return err
	}
	end, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	return b.file.SetCellStyle(name, "A1", end, b.bold)
}

// row writes values on line (1-based); decimal values become styled numbers.
func (b *workbook) row(name string, line int, values ...interface{}) error {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		if d, ok := v.(decimal.Decimal); ok {
			cells[i] = d.Round(2).InexactFloat64()
			continue
		}
		cells[i] = v
	}
	start, err := excelize.CoordinatesToCellName(1, line)
	if err != nil {
		return err
	}
	if err := b.file.SetSheetRow(name, start, &cells); err != nil {
		return err
	}
	for i, v := range values {
		if _, ok := v.(decimal.Decimal); !ok {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(i+1, line)
		if err != nil {
			return err
		}
		if err := b.file.SetCellStyle(name, cell, cell, b.money); err != nil {
			return err
		}
	}
	return nil
}

func (b *workbook) writeTo(w io.Writer) error {
	defer func() { _ = b.file.Close() }()
	_, err := b.file.WriteTo(w)
	return err
}

// WriteBonusXLSX renders bonus results into Summary and Details sheets.
func WriteBonusXLSX(w io.Writer, resp *bonus.CalculationResponse, f Formatter) error {
	b, err := newWorkbook()
	if err != nil {
		return err
	}
	if err := b.sheet("Summary", []string{"Vendor ID", "Vendor", "Tax ID", "Fees", "Expenses", "Net", "Bonus", "Invoices"}); err != nil {
		return err
	}
	total := decimal.Zero
	line := 2
	for _, r := range resp.Results {
		if err := b.row("Summary", line, r.VendorID, r.VendorName, r.VendorTaxID, r.TotalFees, r.TotalExpenses, r.TotalNet, r.TotalBonus, len(r.Details)); err != nil {
			return err
		}
		total = total.Add(r.TotalBonus)
		line++
	}
	caption := fmt.Sprintf("Period %s to %s, total bonus %s",
		resp.StartDate.Format(time.DateOnly), resp.EndDate.Format(time.DateOnly), f.Money(total))
	if err := b.row("Summary", line+1, caption); err != nil {
		return err
	}

	if err := b.sheet("Details", []string{"Vendor ID", "Invoice ID", "Order", "Issued", "Client", "Fees", "Expenses", "Net", "Rate", "Bonus"}); err != nil {
		return err
	}
	line = 2
	for _, r := range resp.Results {
		for _, d := range r.Details {
			if err := b.row("Details", line, r.VendorID, d.InvoiceID, d.OrderNumber, d.IssuedAt.Format(time.DateOnly), d.ClientName, d.Fees, d.Expenses, d.Net, d.Rate.String(), d.Bonus); err != nil {
				return err
			}
			line++
		}
	}
	return b.writeTo(w)
}

// WriteReportXLSX renders the billing report and its vendor subtotals.
func WriteReportXLSX(w io.Writer, resp *bonus.ReportResponse, f Formatter) error {
	b, err := newWorkbook()
	if err != nil {
		return err
	}
	if err := b.sheet("Report", []string{"Invoice ID", "Order", "Case", "Issued", "Vendor", "Vendor Tax ID", "Client", "Client Tax ID", "Fees", "Expenses", "Rate", "Bonus"}); err != nil {
		return err
	}
	for i, item := range resp.Items {
		caseNumber := ""
		if item.CaseNumber != nil {
			caseNumber = *item.CaseNumber
		}
		if err := b.row("Report", i+2, item.ID, item.OrderNumber, caseNumber, item.IssuedAt.Format(time.DateOnly),
			item.VendorName, item.VendorTaxID, item.ClientName, item.ClientTaxID,
			item.Fees, item.Expenses, f.Percent(item.AppliedRatePercent), item.BonusAmount); err != nil {
			return err
		}
	}

	if err := b.sheet("Vendor totals", []string{"Vendor ID", "Vendor", "Fees"}); err != nil {
		return err
	}
	line := 2
	for _, s := range resp.VendorSubtotals {
		if err := b.row("Vendor totals", line, s.VendorID, s.VendorName, s.TotalFees); err != nil {
			return err
		}
		line++
	}
	if err := b.row("Vendor totals", line+1, "Total", "", resp.TotalFees); err != nil {
		return err
	}
	return b.writeTo(w)
}
