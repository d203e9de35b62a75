package bonus

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceSource lists the invoices a vendor issued within a date window.
type InvoiceSource interface {
	ListVendorInvoices(ctx context.Context, vendorID int64, start, end time.Time) ([]Invoice, error)
}

// Aggregator gathers vendor invoices for a period.
type Aggregator struct {
	source InvoiceSource
}

// NewAggregator wires the aggregator to an invoice source.
func NewAggregator(source InvoiceSource) *Aggregator {
	return &Aggregator{source: source}
}

// Collect returns the vendor's invoices issued inside period, newest first.
// The period must already be validated by the caller.
func (a *Aggregator) Collect(ctx context.Context, vendorID int64, period Period) ([]Invoice, error) {
	if a == nil || a.source == nil {
		return nil, ErrStoreUnavailable
	}
	invoices, err := a.source.ListVendorInvoices(ctx, vendorID, period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("bonus: list invoices for vendor %d: %w", vendorID, err)
	}
	filtered := make([]Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if period.Contains(inv.IssuedAt) {
			filtered = append(filtered, inv)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].IssuedAt.Equal(filtered[j].IssuedAt) {
			return filtered[i].ID > filtered[j].ID
		}
		return filtered[i].IssuedAt.After(filtered[j].IssuedAt)
	})
	return filtered, nil
}

// Totals accumulates vendor figures at full precision.
type Totals struct {
	Fees     decimal.Decimal
	Expenses decimal.Decimal
	Bonus    decimal.Decimal
	Invoices int
}

// Add folds one invoice and its clamped bonus into the totals.
func (t *Totals) Add(inv Invoice, bonus decimal.Decimal) {
	t.Fees = t.Fees.Add(inv.Fees)
	t.Expenses = t.Expenses.Add(inv.Expenses)
	t.Bonus = t.Bonus.Add(bonus)
	t.Invoices++
}

// Net is total fees minus total expenses; it may be negative.
func (t Totals) Net() decimal.Decimal {
	return t.Fees.Sub(t.Expenses)
}
