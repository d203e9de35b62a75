package bonus

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type memStore struct {
	mu          sync.Mutex
	vendors     []Vendor
	clients     []Client
	invoices    []Invoice
	calls       map[string]int
	failInvoice error
	failVendors error
}

func newMemStore() *memStore {
	return &memStore{calls: make(map[string]int)}
}

func (m *memStore) record(name string) {
	m.mu.Lock()
	m.calls[name]++
	m.mu.Unlock()
}

func (m *memStore) totalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

func (m *memStore) ListVendors(ctx context.Context, filter VendorFilter) ([]Vendor, error) {
	m.record("ListVendors")
	if m.failVendors != nil {
		return nil, m.failVendors
	}
	out := make([]Vendor, 0)
	for _, v := range m.vendors {
		if filter.ID == nil || *filter.ID == v.ID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *memStore) ListVendorsByIDs(ctx context.Context, ids []int64) ([]Vendor, error) {
	m.record("ListVendorsByIDs")
	want := idSet(ids)
	out := make([]Vendor, 0)
	for _, v := range m.vendors {
		if _, ok := want[v.ID]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *memStore) ListVendorInvoices(ctx context.Context, vendorID int64, start, end time.Time) ([]Invoice, error) {
	m.record("ListVendorInvoices")
	if m.failInvoice != nil {
		return nil, m.failInvoice
	}
	out := make([]Invoice, 0)
	for _, inv := range m.invoices {
		if inv.VendorID == vendorID && !inv.IssuedAt.Before(start) && !inv.IssuedAt.After(end) {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (m *memStore) filterRows(filter ReportFilter) []Invoice {
	vendorTax := make(map[int64]string)
	for _, v := range m.vendors {
		vendorTax[v.ID] = NormalizeTaxID(v.TaxID)
	}
	period := filter.Period()
	out := make([]Invoice, 0)
	for _, inv := range m.invoices {
		if !period.Contains(inv.IssuedAt) {
			continue
		}
		if filter.CaseNumber != nil {
			if inv.CaseNumber == nil || !strings.Contains(strings.ToLower(*inv.CaseNumber), strings.ToLower(*filter.CaseNumber)) {
				continue
			}
		}
		if filter.VendorID != nil && inv.VendorID != *filter.VendorID {
			continue
		}
		if filter.ClientID != nil && inv.ClientID != *filter.ClientID {
			continue
		}
		if filter.VendorTaxID != nil && !strings.Contains(vendorTax[inv.VendorID], NormalizeTaxID(*filter.VendorTaxID)) {
			continue
		}
		out = append(out, inv)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IssuedAt.Equal(out[j].IssuedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].IssuedAt.After(out[j].IssuedAt)
	})
	return out
}

func (m *memStore) ListInvoiceRows(ctx context.Context, filter ReportFilter, skip, limit int) ([]Invoice, int, error) {
	m.record("ListInvoiceRows")
	rows := m.filterRows(filter)
	total := len(rows)
	if skip >= total {
		return []Invoice{}, total, nil
	}
	end := skip + limit
	if end > total {
		end = total
	}
	return rows[skip:end], total, nil
}

func (m *memStore) ReportTotals(ctx context.Context, filter ReportFilter) (decimal.Decimal, []VendorSubtotal, error) {
	m.record("ReportTotals")
	names := make(map[int64]string)
	for _, v := range m.vendors {
		names[v.ID] = v.Name
	}
	sums := make(map[int64]decimal.Decimal)
	total := decimal.Zero
	for _, inv := range m.filterRows(filter) {
		sums[inv.VendorID] = sums[inv.VendorID].Add(inv.Fees)
		total = total.Add(inv.Fees)
	}
	subtotals := make([]VendorSubtotal, 0, len(sums))
	for id, sum := range sums {
		subtotals = append(subtotals, VendorSubtotal{VendorID: id, VendorName: names[id], TotalFees: sum})
	}
	sort.Slice(subtotals, func(i, j int) bool {
		if cmp := subtotals[i].TotalFees.Cmp(subtotals[j].TotalFees); cmp != 0 {
			return cmp > 0
		}
		return subtotals[i].VendorID < subtotals[j].VendorID
	})
	return total, subtotals, nil
}

func (m *memStore) ReportWatermark(ctx context.Context, filter ReportFilter) (string, error) {
	m.record("ReportWatermark")
	var parts []string
	for _, inv := range m.filterRows(filter) {
		parts = append(parts, fmt.Sprintf("%d:%d:%d:%s:%s:%s", inv.ID, inv.VendorID, inv.ClientID,
			inv.IssuedAt.Format(time.DateOnly), inv.Fees.String(), inv.Expenses.String()))
	}
	m.mu.Lock()
	for _, v := range m.vendors {
		for _, a := range v.Assignments {
			parts = append(parts, fmt.Sprintf("r%d:%d:%s", a.VendorID, a.ClientID, a.Rate.String()))
		}
	}
	m.mu.Unlock()
	return strings.Join(parts, "|"), nil
}

func (m *memStore) ListClients(ctx context.Context, ids []int64) ([]Client, error) {
	m.record("ListClients")
	want := idSet(ids)
	out := make([]Client, 0)
	for _, c := range m.clients {
		if _, ok := want[c.ID]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) AssignClient(ctx context.Context, a CommissionAssignment) error {
	m.record("AssignClient")
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.vendors {
		if m.vendors[i].ID != a.VendorID {
			continue
		}
		for _, existing := range m.vendors[i].Assignments {
			if existing.ClientID == a.ClientID {
				return ErrDuplicateAssignment
			}
		}
		m.vendors[i].Assignments = append(m.vendors[i].Assignments, a)
		return nil
	}
	return ErrNotFound
}

func (m *memStore) WithReadTx(ctx context.Context, fn func(context.Context, Store) error) error {
	return fn(ctx, m)
}

func idSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr[T any](v T) *T {
	return &v
}
