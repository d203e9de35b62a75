package bonus

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/compensation/internal/platform/httpx"
	"github.com/odyssey-erp/compensation/internal/shared"
)

const (
	// DefaultReportLimit is the page size used when none is requested.
	DefaultReportLimit = 100
	// MaxReportLimit bounds the page size of the billing report.
	MaxReportLimit = 1000
)

// AuditRecorder persists audit trail entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig carries the optional collaborators of Service.
type ServiceConfig struct {
	Workers  int
	MaxLimit int
	Cache    *ReportCache
	Audit    AuditRecorder
	Metrics  *Metrics
	Logger   *slog.Logger
}

// Service exposes bonus calculation and the enriched billing report.
type Service struct {
	store      Store
	calculator *Calculator
	cache      *ReportCache
	audit      AuditRecorder
	logger     *slog.Logger
	maxLimit   int
}

// NewService wires the engine over store.
func NewService(store Store, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxLimit := cfg.MaxLimit
	if maxLimit <= 0 || maxLimit > MaxReportLimit {
		maxLimit = MaxReportLimit
	}
	return &Service{
		store:      store,
		calculator: NewCalculator(store, cfg.Workers, cfg.Metrics),
		cache:      cfg.Cache,
		audit:      cfg.Audit,
		logger:     logger.With(slog.String("component", "bonus")),
		maxLimit:   maxLimit,
	}
}

// CalculateBonuses computes rounded bonus results for the requested period.
func (s *Service) CalculateBonuses(ctx context.Context, req CalculateRequest) (*CalculationResponse, error) {
	period, err := NewPeriod(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	results, err := s.calculator.Calculate(ctx, period.Start, period.End, req.VendorID)
	if err != nil {
		return nil, err
	}
	rounded := make([]BonusResult, len(results))
	total := decimal.Zero
	for i, r := range results {
		rounded[i] = r.Rounded()
		total = total.Add(r.TotalBonus)
	}

	s.recordAudit(ctx, shared.AuditLog{
		ActorID:  req.ActorID,
		Action:   "bonus.calculate",
		Entity:   "bonus_period",
		EntityID: period.Start.Format(time.DateOnly) + ".." + period.End.Format(time.DateOnly),
		Meta: map[string]any{
			"vendor_id":   req.VendorID,
			"vendors":     len(rounded),
			"total_bonus": roundMoney(total).StringFixed(moneyPlaces),
		},
	})

	return &CalculationResponse{
		StartDate: period.Start,
		EndDate:   period.End,
		Results:   rounded,
	}, nil
}

// BuildEnrichedReport returns one page of enriched invoices with totals
// computed over the full filtered set.
func (s *Service) BuildEnrichedReport(ctx context.Context, filter ReportFilter, skip, limit int) (*ReportResponse, error) {
	limit, err := s.validateReport(filter, skip, limit)
	if err != nil {
		return nil, err
	}
	if !s.cache.Enabled() || s.store == nil {
		return s.buildReport(ctx, filter, skip, limit)
	}
	watermark, err := s.store.ReportWatermark(ctx, filter)
	if err != nil {
		s.logger.Warn("report watermark", slog.Any("error", err))
		return s.buildReport(ctx, filter, skip, limit)
	}
	key, err := s.cache.BuildKey(ctx, filter, skip, limit, watermark)
	if err != nil {
		s.logger.Warn("report cache key", slog.Any("error", err))
		return s.buildReport(ctx, filter, skip, limit)
	}
	return s.cache.Fetch(ctx, key, func(ctx context.Context) (*ReportResponse, bool, error) {
		var resp *ReportResponse
		var current string
		err := s.store.WithReadTx(ctx, func(ctx context.Context, store Store) error {
			var err error
			if current, err = store.ReportWatermark(ctx, filter); err != nil {
				return fmt.Errorf("bonus: report watermark: %w", err)
			}
			resp, err = s.loadReport(ctx, store, filter, skip, limit)
			return err
		})
		if err != nil {
			return nil, false, err
		}
		// Only a page read from the snapshot the key describes is stored.
		return resp, current == watermark, nil
	})
}

// ExportReport returns every matching row in a single response, read from
// one snapshot.
func (s *Service) ExportReport(ctx context.Context, filter ReportFilter) (*ReportResponse, error) {
	if _, err := s.validateReport(filter, 0, s.maxLimit); err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, ErrStoreUnavailable
	}
	resp := &ReportResponse{Items: make([]ReportDetail, 0)}
	err := s.store.WithReadTx(ctx, func(ctx context.Context, store Store) error {
		for skip := 0; ; skip += s.maxLimit {
			items, total, err := s.buildPage(ctx, store, filter, skip, s.maxLimit)
			if err != nil {
				return err
			}
			resp.Items = append(resp.Items, items...)
			resp.TotalCount = total
			if len(items) == 0 || len(resp.Items) >= total {
				break
			}
		}
		totalFees, subtotals, err := s.totals(ctx, store, filter)
		if err != nil {
			return err
		}
		resp.TotalFees = totalFees
		resp.VendorSubtotals = subtotals
		return nil
	})
	if err != nil {
		return nil, err
	}
	resp.Limit = len(resp.Items)
	return resp, nil
}

// AssignClient records a commission rate for a vendor/client pair and
// invalidates cached reports.
func (s *Service) AssignClient(ctx context.Context, actorID int64, assignment CommissionAssignment) error {
	if err := assignment.Validate(); err != nil {
		return err
	}
	if s.store == nil {
		return ErrStoreUnavailable
	}
	if err := s.store.AssignClient(ctx, assignment); err != nil {
		return err
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("report cache bump", slog.Any("error", err))
	}
	s.recordAudit(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "vendor.assignment.create",
		Entity:   "vendor",
		EntityID: strconv.FormatInt(assignment.VendorID, 10),
		Meta: map[string]any{
			"client_id": assignment.ClientID,
			"rate":      assignment.Rate.String(),
		},
	})
	return nil
}

func (s *Service) validateReport(filter ReportFilter, skip, limit int) (int, error) {
	if filter.StartDate.IsZero() || filter.EndDate.IsZero() {
		return 0, fmt.Errorf("bonus: start and end dates are required: %w", httpx.ErrValidation)
	}
	if err := filter.Period().Validate(); err != nil {
		return 0, err
	}
	if skip < 0 {
		return 0, fmt.Errorf("bonus: skip must not be negative: %w", httpx.ErrValidation)
	}
	if limit == 0 {
		limit = DefaultReportLimit
	}
	if limit < 0 || limit > s.maxLimit {
		return 0, fmt.Errorf("bonus: limit must be between 1 and %d: %w", s.maxLimit, httpx.ErrValidation)
	}
	return limit, nil
}

func (s *Service) buildReport(ctx context.Context, filter ReportFilter, skip, limit int) (*ReportResponse, error) {
	if s.store == nil {
		return nil, ErrStoreUnavailable
	}
	var resp *ReportResponse
	err := s.store.WithReadTx(ctx, func(ctx context.Context, store Store) error {
		var err error
		resp, err = s.loadReport(ctx, store, filter, skip, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *Service) loadReport(ctx context.Context, store Store, filter ReportFilter, skip, limit int) (*ReportResponse, error) {
	items, total, err := s.buildPage(ctx, store, filter, skip, limit)
	if err != nil {
		return nil, err
	}
	totalFees, subtotals, err := s.totals(ctx, store, filter)
	if err != nil {
		return nil, err
	}
	return &ReportResponse{
		Items:           items,
		TotalCount:      total,
		TotalFees:       totalFees,
		VendorSubtotals: subtotals,
		Skip:            skip,
		Limit:           limit,
	}, nil
}

func (s *Service) buildPage(ctx context.Context, store Store, filter ReportFilter, skip, limit int) ([]ReportDetail, int, error) {
	rows, total, err := store.ListInvoiceRows(ctx, filter, skip, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("bonus: list invoice rows: %w", err)
	}
	vendorIDs, clientIDs := distinctIDs(rows)

	vendors, err := store.ListVendorsByIDs(ctx, vendorIDs)
	if err != nil {
		return nil, 0, fmt.Errorf("bonus: list report vendors: %w", err)
	}
	clients, err := store.ListClients(ctx, clientIDs)
	if err != nil {
		return nil, 0, fmt.Errorf("bonus: list report clients: %w", err)
	}
	vendorsByID := make(map[int64]Vendor, len(vendors))
	for _, v := range vendors {
		vendorsByID[v.ID] = v
	}
	clientsByID := make(map[int64]Client, len(clients))
	for _, c := range clients {
		clientsByID[c.ID] = c
	}

	details := Enrich(rows, vendorsByID, clientsByID)
	roundDetails(details)
	return details, total, nil
}

func (s *Service) totals(ctx context.Context, store Store, filter ReportFilter) (decimal.Decimal, []VendorSubtotal, error) {
	totalFees, subtotals, err := store.ReportTotals(ctx, filter)
	if err != nil {
		return decimal.Zero, nil, fmt.Errorf("bonus: report totals: %w", err)
	}
	for i := range subtotals {
		if subtotals[i].VendorName == "" {
			subtotals[i].VendorName = UnknownLabel
		}
		subtotals[i].TotalFees = roundMoney(subtotals[i].TotalFees)
	}
	return roundMoney(totalFees), subtotals, nil
}

func (s *Service) recordAudit(ctx context.Context, entry shared.AuditLog) {
	if s.audit == nil || entry.ActorID <= 0 {
		return
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("audit record", slog.String("action", entry.Action), slog.Any("error", err))
	}
}
