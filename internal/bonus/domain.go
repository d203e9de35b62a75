package bonus

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/compensation/internal/platform/httpx"
)

// UnknownLabel replaces names of vendors or clients that no longer resolve.
const UnknownLabel = "unknown"

const moneyPlaces = 2

var (
	// ErrInvalidPeriod indicates a start date after the end date.
	ErrInvalidPeriod = fmt.Errorf("bonus: start date after end date: %w", httpx.ErrValidation)
	// ErrInvalidRate indicates a commission rate outside (0, 1].
	ErrInvalidRate = fmt.Errorf("bonus: rate must be greater than 0 and at most 1: %w", httpx.ErrValidation)
	// ErrDuplicateAssignment indicates the vendor already has a rate for the client.
	ErrDuplicateAssignment = fmt.Errorf("bonus: vendor already assigned to client: %w", httpx.ErrDuplicate)
	// ErrNotFound indicates a referenced vendor or client does not exist.
	ErrNotFound = fmt.Errorf("bonus: %w", httpx.ErrNotFound)
	// ErrStoreUnavailable is returned when no store is wired.
	ErrStoreUnavailable = errors.New("bonus: store not configured")
)

// Vendor is a sales person earning commission on invoices.
type Vendor struct {
	ID          int64                  `json:"id"`
	Name        string                 `json:"name"`
	TaxID       string                 `json:"tax_id"`
	BaseSalary  decimal.Decimal        `json:"base_salary"`
	Assignments []CommissionAssignment `json:"assignments,omitempty"`
}

// CommissionAssignment binds a vendor to a client with a fractional rate.
type CommissionAssignment struct {
	VendorID int64           `json:"vendor_id"`
	ClientID int64           `json:"client_id"`
	Rate     decimal.Decimal `json:"rate"`
}

// Validate checks the assignment rate lies in (0, 1].
func (a CommissionAssignment) Validate() error {
	if a.VendorID <= 0 || a.ClientID <= 0 {
		return fmt.Errorf("bonus: vendor and client are required: %w", httpx.ErrValidation)
	}
	if !a.Rate.IsPositive() || a.Rate.GreaterThan(decimal.NewFromInt(1)) {
		return ErrInvalidRate
	}
	return nil
}

// Client is the billed counterparty of an invoice.
type Client struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	TaxID    string `json:"tax_id"`
	Industry string `json:"industry,omitempty"`
	Location string `json:"location,omitempty"`
}

// Invoice records fees and expenses generated for a client by a vendor.
type Invoice struct {
	ID          int64           `json:"id"`
	OrderNumber string          `json:"order_number"`
	CaseNumber  *string         `json:"case_number,omitempty"`
	IssuedAt    time.Time       `json:"issued_at"`
	Fees        decimal.Decimal `json:"fees"`
	Expenses    decimal.Decimal `json:"expenses"`
	VendorID    int64           `json:"vendor_id"`
	ClientID    int64           `json:"client_id"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Net returns fees minus expenses without clamping.
func (i Invoice) Net() decimal.Decimal {
	return i.Fees.Sub(i.Expenses)
}

// Period is an inclusive date window.
type Period struct {
	Start time.Time
	End   time.Time
}

// NewPeriod normalises both bounds to calendar dates and validates ordering.
func NewPeriod(start, end time.Time) (Period, error) {
	p := Period{Start: DateOnly(start), End: DateOnly(end)}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// Validate rejects windows whose start falls after the end.
func (p Period) Validate() error {
	if p.Start.After(p.End) {
		return ErrInvalidPeriod
	}
	return nil
}

// Contains reports whether t falls inside the window, bounds included.
func (p Period) Contains(t time.Time) bool {
	d := DateOnly(t)
	return !d.Before(p.Start) && !d.After(p.End)
}

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// BonusDetail traces the bonus contribution of one invoice.
type BonusDetail struct {
	InvoiceID   int64           `json:"invoice_id"`
	OrderNumber string          `json:"order_number"`
	ClientID    int64           `json:"client_id"`
	ClientName  string          `json:"client_name"`
	IssuedAt    time.Time       `json:"issued_at"`
	Fees        decimal.Decimal `json:"fees"`
	Expenses    decimal.Decimal `json:"expenses"`
	Net         decimal.Decimal `json:"net"`
	Rate        decimal.Decimal `json:"rate"`
	Bonus       decimal.Decimal `json:"bonus"`
}

// BonusResult aggregates the bonus of a vendor over a period.
type BonusResult struct {
	VendorID      int64           `json:"vendor_id"`
	VendorName    string          `json:"vendor_name"`
	VendorTaxID   string          `json:"vendor_tax_id"`
	TotalFees     decimal.Decimal `json:"total_fees"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	TotalNet      decimal.Decimal `json:"total_net"`
	TotalBonus    decimal.Decimal `json:"total_bonus"`
	Details       []BonusDetail   `json:"details"`
}

// Rounded returns a copy with every monetary figure rounded to cents.
// Rates keep their full precision.
func (r BonusResult) Rounded() BonusResult {
	out := r
	out.TotalFees = roundMoney(r.TotalFees)
	out.TotalExpenses = roundMoney(r.TotalExpenses)
	out.TotalNet = roundMoney(r.TotalNet)
	out.TotalBonus = roundMoney(r.TotalBonus)
	out.Details = make([]BonusDetail, len(r.Details))
	for i, d := range r.Details {
		d.Fees = roundMoney(d.Fees)
		d.Expenses = roundMoney(d.Expenses)
		d.Net = roundMoney(d.Net)
		d.Bonus = roundMoney(d.Bonus)
		out.Details[i] = d
	}
	return out
}

// CalculateRequest asks for bonuses of all vendors, or one, over a period.
type CalculateRequest struct {
	StartDate time.Time
	EndDate   time.Time
	VendorID  *int64
	ActorID   int64
}

// CalculationResponse carries rounded bonus results.
type CalculationResponse struct {
	StartDate time.Time     `json:"start_date"`
	EndDate   time.Time     `json:"end_date"`
	Results   []BonusResult `json:"results"`
}

// VendorFilter narrows vendor listings.
type VendorFilter struct {
	ID *int64
}

// ReportFilter selects invoices for the billing report.
type ReportFilter struct {
	StartDate   time.Time
	EndDate     time.Time
	CaseNumber  *string
	VendorID    *int64
	ClientID    *int64
	VendorTaxID *string
}

// Period returns the filter's date window.
func (f ReportFilter) Period() Period {
	return Period{Start: DateOnly(f.StartDate), End: DateOnly(f.EndDate)}
}

// ReportDetail is an invoice decorated with names, rate and bonus.
type ReportDetail struct {
	Invoice
	VendorName         string          `json:"vendor_name"`
	VendorTaxID        string          `json:"vendor_tax_id"`
	ClientName         string          `json:"client_name"`
	ClientTaxID        string          `json:"client_tax_id"`
	BonusAmount        decimal.Decimal `json:"bonus_amount"`
	AppliedRatePercent decimal.Decimal `json:"applied_rate_percent"`
}

// VendorSubtotal is the fee total of one vendor over the filtered set.
type VendorSubtotal struct {
	VendorID   int64           `json:"vendor_id"`
	VendorName string          `json:"vendor_name"`
	TotalFees  decimal.Decimal `json:"total_fees"`
}

// ReportResponse is one page of the enriched billing report.
type ReportResponse struct {
	Items           []ReportDetail   `json:"items"`
	TotalCount      int              `json:"total_count"`
	TotalFees       decimal.Decimal  `json:"total_fees"`
	VendorSubtotals []VendorSubtotal `json:"vendor_subtotals"`
	Skip            int              `json:"skip"`
	Limit           int              `json:"limit"`
}

func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}
