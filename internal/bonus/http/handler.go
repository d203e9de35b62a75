// Package bonushttp exposes the compensation engine over HTTP.
package bonushttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/compensation/internal/bonus"
	"github.com/odyssey-erp/compensation/internal/bonus/export"
	"github.com/odyssey-erp/compensation/internal/platform/httpx"
	"github.com/odyssey-erp/compensation/internal/rbac"
	"github.com/odyssey-erp/compensation/internal/shared"
)

const contentTypeCSV = "text/csv; charset=utf-8"

// Service is the subset of bonus.Service used by the handlers.
type Service interface {
	CalculateBonuses(ctx context.Context, req bonus.CalculateRequest) (*bonus.CalculationResponse, error)
	BuildEnrichedReport(ctx context.Context, filter bonus.ReportFilter, skip, limit int) (*bonus.ReportResponse, error)
	ExportReport(ctx context.Context, filter bonus.ReportFilter) (*bonus.ReportResponse, error)
	AssignClient(ctx context.Context, actorID int64, assignment bonus.CommissionAssignment) error
}

// Handler serves bonus calculation, billing report and assignment routes.
type Handler struct {
	logger    *slog.Logger
	service   Service
	rbac      rbac.Middleware
	validator *validator.Validate
	formatter export.Formatter
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service Service, rbacMiddleware rbac.Middleware, formatter export.Formatter) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return &Handler{
		logger:    logger,
		service:   service,
		rbac:      rbacMiddleware,
		validator: v,
		formatter: formatter,
	}
}

// MountRoutes registers the compensation routes on r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermBonusCalculate))
		r.Post("/bonuses/calculate", h.calculate)
		r.Post("/bonuses/export", h.exportBonuses)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermReportView))
		r.Get("/reports/billing", h.billingReport)
		r.Get("/reports/billing/export", h.exportBillingReport)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermAssignmentEdit))
		r.Post("/vendors/{id}/assignments", h.assignClient)
	})
}

func (h *Handler) calculate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCalculate(w, r)
	if !ok {
		return
	}
	resp, err := h.service.CalculateBonuses(r.Context(), req)
	if err != nil {
		h.fail(w, "calculate bonuses", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toCalculationDTO(resp))
}

func (h *Handler) exportBonuses(w http.ResponseWriter, r *http.Request) {
	format, ok := exportFormat(w, r)
	if !ok {
		return
	}
	req, ok := h.decodeCalculate(w, r)
	if !ok {
		return
	}
	resp, err := h.service.CalculateBonuses(r.Context(), req)
	if err != nil {
		h.fail(w, "export bonuses", err)
		return
	}
	name := fmt.Sprintf("bonuses_%s_%s", resp.StartDate.Format(time.DateOnly), resp.EndDate.Format(time.DateOnly))
	var buf bytes.Buffer
	switch format {
	case "xlsx":
		err = export.WriteBonusXLSX(&buf, resp, h.formatter)
	default:
		err = export.WriteBonusDetailCSV(&buf, resp)
	}
	if err != nil {
		h.fail(w, "render bonus export", err)
		return
	}
	writeAttachment(w, format, name, &buf)
}

func (h *Handler) billingReport(w http.ResponseWriter, r *http.Request) {
	filter, skip, limit, ok := h.parseReportQuery(w, r)
	if !ok {
		return
	}
	resp, err := h.service.BuildEnrichedReport(r.Context(), filter, skip, limit)
	if err != nil {
		h.fail(w, "billing report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toReportDTO(resp))
}

func (h *Handler) exportBillingReport(w http.ResponseWriter, r *http.Request) {
	format, ok := exportFormat(w, r)
	if !ok {
		return
	}
	filter, _, _, ok := h.parseReportQuery(w, r)
	if !ok {
		return
	}
	resp, err := h.service.ExportReport(r.Context(), filter)
	if err != nil {
		h.fail(w, "export billing report", err)
		return
	}
	name := fmt.Sprintf("billing_%s_%s", filter.StartDate.Format(time.DateOnly), filter.EndDate.Format(time.DateOnly))
	var buf bytes.Buffer
	switch format {
	case "xlsx":
		err = export.WriteReportXLSX(&buf, resp, h.formatter)
	default:
		err = export.WriteReportCSV(&buf, resp)
	}
	if err != nil {
		h.fail(w, "render billing export", err)
		return
	}
	writeAttachment(w, format, name, &buf)
}

func (h *Handler) assignClient(w http.ResponseWriter, r *http.Request) {
	vendorID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || vendorID <= 0 {
		httpx.ValidationProblem(w, map[string]string{"id": "must be a positive integer"})
		return
	}
	var req assignmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if fields := h.validate(req); len(fields) > 0 {
		httpx.ValidationProblem(w, fields)
		return
	}
	rate, err := decimal.NewFromString(req.Rate)
	if err != nil {
		httpx.ValidationProblem(w, map[string]string{"rate": "must be a decimal"})
		return
	}
	assignment := bonus.CommissionAssignment{VendorID: vendorID, ClientID: req.ClientID, Rate: rate}
	if err := h.service.AssignClient(r.Context(), actorID(r), assignment); err != nil {
		h.fail(w, "assign client", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, assignmentDTO{VendorID: vendorID, ClientID: req.ClientID, Rate: exact(rate)})
}

func (h *Handler) decodeCalculate(w http.ResponseWriter, r *http.Request) (bonus.CalculateRequest, bool) {
	var body calculateRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return bonus.CalculateRequest{}, false
	}
	if fields := h.validate(body); len(fields) > 0 {
		httpx.ValidationProblem(w, fields)
		return bonus.CalculateRequest{}, false
	}
	start, _ := time.Parse(time.DateOnly, body.StartDate)
	end, _ := time.Parse(time.DateOnly, body.EndDate)
	return bonus.CalculateRequest{
		StartDate: start,
		EndDate:   end,
		VendorID:  body.VendorID,
		ActorID:   actorID(r),
	}, true
}

func (h *Handler) parseReportQuery(w http.ResponseWriter, r *http.Request) (bonus.ReportFilter, int, int, bool) {
	q := r.URL.Query()
	query := reportQuery{
		StartDate:   strings.TrimSpace(q.Get("start_date")),
		EndDate:     strings.TrimSpace(q.Get("end_date")),
		CaseNumber:  strings.TrimSpace(q.Get("case_number")),
		VendorID:    strings.TrimSpace(q.Get("vendor_id")),
		ClientID:    strings.TrimSpace(q.Get("client_id")),
		VendorTaxID: strings.TrimSpace(q.Get("vendor_tax_id")),
		Skip:        strings.TrimSpace(q.Get("skip")),
		Limit:       strings.TrimSpace(q.Get("limit")),
	}
	if fields := h.validate(query); len(fields) > 0 {
		httpx.ValidationProblem(w, fields)
		return bonus.ReportFilter{}, 0, 0, false
	}

	var filter bonus.ReportFilter
	filter.StartDate, _ = time.Parse(time.DateOnly, query.StartDate)
	filter.EndDate, _ = time.Parse(time.DateOnly, query.EndDate)
	if query.CaseNumber != "" {
		filter.CaseNumber = &query.CaseNumber
	}
	if query.VendorTaxID != "" {
		filter.VendorTaxID = &query.VendorTaxID
	}
	fields := make(map[string]string)
	filter.VendorID = optionalID(query.VendorID, "vendor_id", fields)
	filter.ClientID = optionalID(query.ClientID, "client_id", fields)
	skip := optionalCount(query.Skip, "skip", fields)
	limit := optionalCount(query.Limit, "limit", fields)
	if query.Limit != "" && limit == 0 {
		fields["limit"] = "must be at least 1"
	}
	if len(fields) > 0 {
		httpx.ValidationProblem(w, fields)
		return bonus.ReportFilter{}, 0, 0, false
	}
	return filter, skip, limit, true
}

func (h *Handler) validate(v any) map[string]string {
	err := h.validator.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"general": err.Error()}
	}
	fields := make(map[string]string, len(verrs))
	for _, fieldErr := range verrs {
		fields[fieldErr.Field()] = fieldErr.Tag()
	}
	return fields
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func optionalID(raw, field string, fields map[string]string) *int64 {
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		fields[field] = "must be a positive integer"
		return nil
	}
	return &id
}

func optionalCount(raw, field string, fields map[string]string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		fields[field] = "out of range"
		return 0
	}
	return n
}

func exportFormat(w http.ResponseWriter, r *http.Request) (string, bool) {
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	switch format {
	case "", "csv":
		return "csv", true
	case "xlsx":
		return "xlsx", true
	}
	httpx.ValidationProblem(w, map[string]string{"format": "must be csv or xlsx"})
	return "", false
}

func writeAttachment(w http.ResponseWriter, format, name string, body io.Reader) {
	contentType := contentTypeCSV
	if format == "xlsx" {
		contentType = export.ContentTypeXLSX
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+"."+format))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, body)
}

func actorID(r *http.Request) int64 {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		return 0
	}
	return principal.UserID
}
