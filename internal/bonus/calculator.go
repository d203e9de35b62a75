package bonus

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultWorkers = 4

// CalculatorStore is the read surface the calculator depends on.
type CalculatorStore interface {
	InvoiceSource
	ListVendors(ctx context.Context, filter VendorFilter) ([]Vendor, error)
	ListClients(ctx context.Context, ids []int64) ([]Client, error)
}

// Calculator computes per-vendor bonuses over a period.
type Calculator struct {
	store      CalculatorStore
	aggregator *Aggregator
	workers    int
	metrics    *Metrics
}

// NewCalculator builds a calculator fanning out over at most workers vendors.
func NewCalculator(store CalculatorStore, workers int, metrics *Metrics) *Calculator {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Calculator{
		store:      store,
		aggregator: NewAggregator(store),
		workers:    workers,
		metrics:    metrics,
	}
}

// Calculate returns one result per vendor with at least one invoice in
// [start, end], sorted by vendor ID. Figures are kept at full precision.
func (c *Calculator) Calculate(ctx context.Context, start, end time.Time, vendorID *int64) ([]BonusResult, error) {
	period, err := NewPeriod(start, end)
	if err != nil {
		return nil, err
	}
	if c == nil || c.store == nil {
		return nil, ErrStoreUnavailable
	}
	began := time.Now()

	vendors, err := c.store.ListVendors(ctx, VendorFilter{ID: vendorID})
	if err != nil {
		return nil, fmt.Errorf("bonus: list vendors: %w", err)
	}
	if len(vendors) == 0 {
		return []BonusResult{}, nil
	}

	slots := make([]*BonusResult, len(vendors))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, vendor := range vendors {
		g.Go(func() error {
			result, err := c.calculateVendor(gctx, vendor, period)
			if err != nil {
				return err
			}
			slots[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]BonusResult, 0, len(slots))
	for _, slot := range slots {
		if slot != nil {
			results = append(results, *slot)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].VendorID < results[j].VendorID
	})

	if err := c.attachClientNames(ctx, results); err != nil {
		return nil, err
	}
	c.metrics.ObserveCalculation(time.Since(began), len(results))
	return results, nil
}

func (c *Calculator) calculateVendor(ctx context.Context, vendor Vendor, period Period) (*BonusResult, error) {
	invoices, err := c.aggregator.Collect(ctx, vendor.ID, period)
	if err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return nil, nil
	}

	rates := NewRateTable(vendor.Assignments)
	var totals Totals
	details := make([]BonusDetail, 0, len(invoices))
	for _, inv := range invoices {
		rate := rates.Rate(inv.ClientID)
		amount := invoiceBonus(inv, rate)
		totals.Add(inv, amount)
		details = append(details, BonusDetail{
			InvoiceID:   inv.ID,
			OrderNumber: inv.OrderNumber,
			ClientID:    inv.ClientID,
			IssuedAt:    inv.IssuedAt,
			Fees:        inv.Fees,
			Expenses:    inv.Expenses,
			Net:         inv.Net(),
			Rate:        rate,
			Bonus:       amount,
		})
	}

	return &BonusResult{
		VendorID:      vendor.ID,
		VendorName:    vendor.Name,
		VendorTaxID:   vendor.TaxID,
		TotalFees:     totals.Fees,
		TotalExpenses: totals.Expenses,
		TotalNet:      totals.Net(),
		TotalBonus:    totals.Bonus,
		Details:       details,
	}, nil
}

// attachClientNames resolves detail client names with a single batch lookup.
func (c *Calculator) attachClientNames(ctx context.Context, results []BonusResult) error {
	seen := make(map[int64]struct{})
	ids := make([]int64, 0)
	for _, r := range results {
		for _, d := range r.Details {
			if _, ok := seen[d.ClientID]; ok {
				continue
			}
			seen[d.ClientID] = struct{}{}
			ids = append(ids, d.ClientID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	clients, err := c.store.ListClients(ctx, ids)
	if err != nil {
		return fmt.Errorf("bonus: list clients: %w", err)
	}
	names := make(map[int64]string, len(clients))
	for _, cl := range clients {
		names[cl.ID] = cl.Name
	}
	for i := range results {
		for j := range results[i].Details {
			name, ok := names[results[i].Details[j].ClientID]
			if !ok {
				name = UnknownLabel
			}
			results[i].Details[j].ClientName = name
		}
	}
	return nil
}
