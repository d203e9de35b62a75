package bonus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateTableResolvesAssignedClients(t *testing.T) {
	table := NewRateTable([]CommissionAssignment{
		{VendorID: 1, ClientID: 10, Rate: dec("0.10")},
		{VendorID: 1, ClientID: 11, Rate: dec("0.25")},
	})

	assert.True(t, table.Rate(10).Equal(dec("0.10")))
	assert.True(t, table.Rate(11).Equal(dec("0.25")))
}

func TestRateTableUnassignedClientIsZero(t *testing.T) {
	table := NewRateTable(nil)
	assert.True(t, table.Rate(99).IsZero())
}

func TestInvoiceBonusClampsNegativeNet(t *testing.T) {
	cases := []struct {
		name     string
		fees     string
		expenses string
		rate     string
		want     string
	}{
		{"positive net", "1000", "200", "0.10", "80"},
		{"negative net", "500", "700", "0.90", "0"},
		{"zero net", "300", "300", "1", "0"},
		{"unassigned", "1000", "0", "0", "0"},
		{"full precision", "100.01", "0", "0.333", "33.30333"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := invoiceBonus(Invoice{Fees: dec(tc.fees), Expenses: dec(tc.expenses)}, dec(tc.rate))
			assert.True(t, got.Equal(dec(tc.want)), "got %s", got)
			assert.False(t, got.IsNegative())
		})
	}
}

func TestAssignmentValidateRate(t *testing.T) {
	valid := CommissionAssignment{VendorID: 1, ClientID: 2, Rate: dec("1")}
	assert.NoError(t, valid.Validate())

	for _, rate := range []string{"0", "-0.1", "1.0001"} {
		err := CommissionAssignment{VendorID: 1, ClientID: 2, Rate: dec(rate)}.Validate()
		assert.ErrorIs(t, err, ErrInvalidRate, rate)
	}
}
