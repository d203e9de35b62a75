package bonus

import "github.com/shopspring/decimal"

// RateTable maps client IDs to the commission rate of a single vendor.
type RateTable map[int64]decimal.Decimal

// NewRateTable indexes a vendor's assignments by client. Rates are trusted
// as stored.
func NewRateTable(assignments []CommissionAssignment) RateTable {
	table := make(RateTable, len(assignments))
	for _, a := range assignments {
		table[a.ClientID] = a.Rate
	}
	return table
}

// Rate returns the rate for clientID, or zero when the client is unassigned.
func (t RateTable) Rate(clientID int64) decimal.Decimal {
	if rate, ok := t[clientID]; ok {
		return rate
	}
	return decimal.Zero
}

// invoiceBonus is the only bonus formula: max(0, fees-expenses) * rate.
func invoiceBonus(inv Invoice, rate decimal.Decimal) decimal.Decimal {
	net := inv.Net()
	if !net.IsPositive() {
		return decimal.Zero
	}
	return net.Mul(rate)
}
