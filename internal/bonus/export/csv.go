package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/odyssey-erp/compensation/internal/bonus"
)

// WriteBonusSummaryCSV emits one row per vendor with its rounded totals.
func WriteBonusSummaryCSV(w io.Writer, resp *bonus.CalculationResponse) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Vendor ID", "Vendor", "Tax ID", "Fees", "Expenses", "Net", "Bonus", "Invoices"}); err != nil {
		return err
	}
	for _, r := range resp.Results {
		if err := writer.Write([]string{
			strconv.FormatInt(r.VendorID, 10),
			r.VendorName,
			r.VendorTaxID,
			fixed(r.TotalFees),
			fixed(r.TotalExpenses),
			fixed(r.TotalNet),
			fixed(r.TotalBonus),
			strconv.Itoa(len(r.Details)),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteBonusDetailCSV emits one row per invoice that took part in a bonus.
func WriteBonusDetailCSV(w io.Writer, resp *bonus.CalculationResponse) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Vendor ID", "Vendor", "Invoice ID", "Order", "Issued", "Client", "Fees", "Expenses", "Net", "Rate", "Bonus"}); err != nil {
		return err
	}
	for _, r := range resp.Results {
		for _, d := range r.Details {
			if err := writer.Write([]string{
				strconv.FormatInt(r.VendorID, 10),
				r.VendorName,
				strconv.FormatInt(d.InvoiceID, 10),
				d.OrderNumber,
				d.IssuedAt.Format(time.DateOnly),
				d.ClientName,
				fixed(d.Fees),
				fixed(d.Expenses),
				fixed(d.Net),
				d.Rate.String(),
				fixed(d.Bonus),
			}); err != nil {
				return err
			}
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteReportCSV emits the enriched billing report rows.
func WriteReportCSV(w io.Writer, resp *bonus.ReportResponse) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Invoice ID", "Order", "Case", "Issued", "Vendor", "Vendor Tax ID", "Client", "Client Tax ID", "Fees", "Expenses", "Rate %", "Bonus"}); err != nil {
		return err
	}
	for _, item := range resp.Items {
		caseNumber := ""
		if item.CaseNumber != nil {
			caseNumber = *item.CaseNumber
		}
		if err := writer.Write([]string{
			strconv.FormatInt(item.ID, 10),
			item.OrderNumber,
			caseNumber,
			item.IssuedAt.Format(time.DateOnly),
			item.VendorName,
			item.VendorTaxID,
			item.ClientName,
			item.ClientTaxID,
			fixed(item.Fees),
			fixed(item.Expenses),
			item.AppliedRatePercent.String(),
			fixed(item.BonusAmount),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
