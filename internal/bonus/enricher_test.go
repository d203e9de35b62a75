package bonus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrichDecoratesRows(t *testing.T) {
	vendors := map[int64]Vendor{1: vendorWithRates(1, "Vera", map[int64]string{10: "0.15"})}
	clients := map[int64]Client{10: {ID: 10, Name: "Acme Ltda", TaxID: "76.000.001-1"}}
	rows := []Invoice{{ID: 5, Fees: dec("1000"), Expenses: dec("200"), VendorID: 1, ClientID: 10}}

	details := Enrich(rows, vendors, clients)
	require.Len(t, details, 1)
	d := details[0]
	assert.Equal(t, "Vera", d.VendorName)
	assert.Equal(t, "Acme Ltda", d.ClientName)
	assert.Equal(t, "76.000.001-1", d.ClientTaxID)
	assert.True(t, d.BonusAmount.Equal(dec("120")))
	assert.True(t, d.AppliedRatePercent.Equal(dec("15")))
	assert.Equal(t, int64(5), d.ID)
}

func TestEnrichUnknownReferences(t *testing.T) {
	rows := []Invoice{
		{ID: 1, Fees: dec("100"), VendorID: 404, ClientID: 10},
		{ID: 2, Fees: dec("100"), VendorID: 1, ClientID: 405},
	}
	vendors := map[int64]Vendor{1: vendorWithRates(1, "Vera", map[int64]string{405: "0.5"})}
	clients := map[int64]Client{10: {ID: 10, Name: "Acme Ltda"}}

	details := Enrich(rows, vendors, clients)
	require.Len(t, details, 2)

	assert.Equal(t, UnknownLabel, details[0].VendorName)
	assert.Equal(t, UnknownLabel, details[0].VendorTaxID)
	assert.True(t, details[0].BonusAmount.IsZero())
	assert.True(t, details[0].AppliedRatePercent.IsZero())

	assert.Equal(t, UnknownLabel, details[1].ClientName)
	assert.True(t, details[1].BonusAmount.Equal(dec("50")))
}

func TestEnrichMatchesCalculatorFormula(t *testing.T) {
	vendor := vendorWithRates(1, "Vera", map[int64]string{10: "0.137", 11: "0.2"})
	rows := []Invoice{
		{ID: 1, Fees: dec("1234.56"), Expenses: dec("234.50"), VendorID: 1, ClientID: 10},
		{ID: 2, Fees: dec("10"), Expenses: dec("20"), VendorID: 1, ClientID: 11},
		{ID: 3, Fees: dec("99.99"), Expenses: dec("0"), VendorID: 1, ClientID: 12},
	}
	rates := NewRateTable(vendor.Assignments)

	details := Enrich(rows, map[int64]Vendor{1: vendor}, nil)
	for i, d := range details {
		assert.True(t, d.BonusAmount.Equal(invoiceBonus(rows[i], rates.Rate(rows[i].ClientID))), "row %d", i)
	}
}

func TestDistinctIDsKeepsFirstSeenOrder(t *testing.T) {
	vendorIDs, clientIDs := distinctIDs([]Invoice{
		{VendorID: 3, ClientID: 9},
		{VendorID: 1, ClientID: 9},
		{VendorID: 3, ClientID: 8},
	})
	assert.Equal(t, []int64{3, 1}, vendorIDs)
	assert.Equal(t, []int64{9, 8}, clientIDs)
}
