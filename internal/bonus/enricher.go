package bonus

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Enrich decorates report rows with vendor and client labels, the applied
// rate and the invoice bonus. Rows whose vendor or client cannot be resolved
// are labelled UnknownLabel and earn no bonus.
func Enrich(rows []Invoice, vendors map[int64]Vendor, clients map[int64]Client) []ReportDetail {
	tables := make(map[int64]RateTable, len(vendors))
	details := make([]ReportDetail, 0, len(rows))
	for _, row := range rows {
		detail := ReportDetail{
			Invoice:     row,
			VendorName:  UnknownLabel,
			VendorTaxID: UnknownLabel,
			ClientName:  UnknownLabel,
			ClientTaxID: UnknownLabel,
		}
		rate := decimal.Zero
		if vendor, ok := vendors[row.VendorID]; ok {
			detail.VendorName = vendor.Name
			detail.VendorTaxID = vendor.TaxID
			table, ok := tables[vendor.ID]
			if !ok {
				table = NewRateTable(vendor.Assignments)
				tables[vendor.ID] = table
			}
			rate = table.Rate(row.ClientID)
		}
		if client, ok := clients[row.ClientID]; ok {
			detail.ClientName = client.Name
			detail.ClientTaxID = client.TaxID
		}
		detail.BonusAmount = invoiceBonus(row, rate)
		detail.AppliedRatePercent = rate.Mul(hundred)
		details = append(details, detail)
	}
	return details
}

// distinctIDs collects the vendor and client IDs referenced by rows.
func distinctIDs(rows []Invoice) (vendorIDs, clientIDs []int64) {
	seenVendors := make(map[int64]struct{})
	seenClients := make(map[int64]struct{})
	for _, row := range rows {
		if _, ok := seenVendors[row.VendorID]; !ok {
			seenVendors[row.VendorID] = struct{}{}
			vendorIDs = append(vendorIDs, row.VendorID)
		}
		if _, ok := seenClients[row.ClientID]; !ok {
			seenClients[row.ClientID] = struct{}{}
			clientIDs = append(clientIDs, row.ClientID)
		}
	}
	return vendorIDs, clientIDs
}

func roundDetails(details []ReportDetail) {
	for i := range details {
		details[i].BonusAmount = roundMoney(details[i].BonusAmount)
	}
}
