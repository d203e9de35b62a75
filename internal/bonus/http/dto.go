package bonushttp

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/compensation/internal/bonus"
	"github.com/odyssey-erp/compensation/internal/shared"
)

type calculateRequest struct {
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
	VendorID  *int64 `json:"vendor_id,omitempty" validate:"omitempty,gt=0"`
}

type assignmentRequest struct {
	ClientID int64  `json:"client_id" validate:"required,gt=0"`
	Rate     string `json:"rate" validate:"required,numeric"`
}

type reportQuery struct {
	StartDate   string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate     string `json:"end_date" validate:"required,datetime=2006-01-02"`
	CaseNumber  string `json:"case_number" validate:"omitempty,max=100"`
	VendorID    string `json:"vendor_id" validate:"omitempty,number"`
	ClientID    string `json:"client_id" validate:"omitempty,number"`
	VendorTaxID string `json:"vendor_tax_id" validate:"omitempty,max=20"`
	Skip        string `json:"skip" validate:"omitempty,number"`
	Limit       string `json:"limit" validate:"omitempty,number"`
}

type bonusDetailDTO struct {
	InvoiceID   int64       `json:"invoice_id"`
	OrderNumber string      `json:"order_number"`
	ClientName  string      `json:"client_name"`
	IssuedAt    string      `json:"issued_at"`
	Fees        json.Number `json:"fees"`
	Expenses    json.Number `json:"expenses"`
	Net         json.Number `json:"net"`
	Rate        json.Number `json:"rate"`
	Bonus       json.Number `json:"bonus"`
}

type bonusResultDTO struct {
	VendorID      int64            `json:"vendor_id"`
	VendorName    string           `json:"vendor_name"`
	VendorTaxID   string           `json:"vendor_tax_id"`
	TotalFees     json.Number      `json:"total_fees"`
	TotalExpenses json.Number      `json:"total_expenses"`
	TotalNet      json.Number      `json:"total_net"`
	TotalBonus    json.Number      `json:"total_bonus"`
	Details       []bonusDetailDTO `json:"details"`
}

type calculationDTO struct {
	StartDate string           `json:"start_date"`
	EndDate   string           `json:"end_date"`
	Results   []bonusResultDTO `json:"results"`
}

type reportItemDTO struct {
	ID                 int64       `json:"id"`
	OrderNumber        string      `json:"order_number"`
	CaseNumber         *string     `json:"case_number"`
	IssuedAt           string      `json:"issued_at"`
	Fees               json.Number `json:"fees"`
	Expenses           json.Number `json:"expenses"`
	VendorID           int64       `json:"vendor_id"`
	ClientID           int64       `json:"client_id"`
	VendorName         string      `json:"vendor_name"`
	VendorTaxID        string      `json:"vendor_tax_id"`
	ClientName         string      `json:"client_name"`
	ClientTaxID        string      `json:"client_tax_id"`
	BonusAmount        json.Number `json:"bonus_amount"`
	AppliedRatePercent json.Number `json:"applied_rate_percent"`
}

type vendorSubtotalDTO struct {
	VendorID   int64       `json:"vendor_id"`
	VendorName string      `json:"vendor_name"`
	TotalFees  json.Number `json:"total_fees"`
}

type reportDTO struct {
	Items           []reportItemDTO     `json:"items"`
	TotalCount      int                 `json:"total_count"`
	TotalFees       json.Number         `json:"total_fees"`
	VendorSubtotals []vendorSubtotalDTO `json:"vendor_subtotals"`
	Skip            int                 `json:"skip"`
	Limit           int                 `json:"limit"`
	Pagination      shared.Pagination   `json:"pagination"`
}

type assignmentDTO struct {
	VendorID int64       `json:"vendor_id"`
	ClientID int64       `json:"client_id"`
	Rate     json.Number `json:"rate"`
}

func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

func exact(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

func toCalculationDTO(resp *bonus.CalculationResponse) calculationDTO {
	out := calculationDTO{
		StartDate: resp.StartDate.Format(time.DateOnly),
		EndDate:   resp.EndDate.Format(time.DateOnly),
		Results:   make([]bonusResultDTO, 0, len(resp.Results)),
	}
	for _, r := range resp.Results {
		dto := bonusResultDTO{
			VendorID:      r.VendorID,
			VendorName:    r.VendorName,
			VendorTaxID:   r.VendorTaxID,
			TotalFees:     money(r.TotalFees),
			TotalExpenses: money(r.TotalExpenses),
			TotalNet:      money(r.TotalNet),
			TotalBonus:    money(r.TotalBonus),
			Details:       make([]bonusDetailDTO, 0, len(r.Details)),
		}
		for _, d := range r.Details {
			dto.Details = append(dto.Details, bonusDetailDTO{
				InvoiceID:   d.InvoiceID,
				OrderNumber: d.OrderNumber,
				ClientName:  d.ClientName,
				IssuedAt:    d.IssuedAt.Format(time.DateOnly),
				Fees:        money(d.Fees),
				Expenses:    money(d.Expenses),
				Net:         money(d.Net),
				Rate:        exact(d.Rate),
				Bonus:       money(d.Bonus),
			})
		}
		out.Results = append(out.Results, dto)
	}
	return out
}

func toReportDTO(resp *bonus.ReportResponse) reportDTO {
	out := reportDTO{
		Items:           make([]reportItemDTO, 0, len(resp.Items)),
		TotalCount:      resp.TotalCount,
		TotalFees:       money(resp.TotalFees),
		VendorSubtotals: make([]vendorSubtotalDTO, 0, len(resp.VendorSubtotals)),
		Skip:            resp.Skip,
		Limit:           resp.Limit,
		Pagination:      shared.NewPagination(resp.Skip, resp.Limit, resp.TotalCount),
	}
	for _, item := range resp.Items {
		out.Items = append(out.Items, reportItemDTO{
			ID:                 item.ID,
			OrderNumber:        item.OrderNumber,
			CaseNumber:         item.CaseNumber,
			IssuedAt:           item.IssuedAt.Format(time.DateOnly),
			Fees:               money(item.Fees),
			Expenses:           money(item.Expenses),
			VendorID:           item.VendorID,
			ClientID:           item.ClientID,
			VendorName:         item.VendorName,
			VendorTaxID:        item.VendorTaxID,
			ClientName:         item.ClientName,
			ClientTaxID:        item.ClientTaxID,
			BonusAmount:        money(item.BonusAmount),
			AppliedRatePercent: exact(item.AppliedRatePercent),
		})
	}
	for _, s := range resp.VendorSubtotals {
		out.VendorSubtotals = append(out.VendorSubtotals, vendorSubtotalDTO{
			VendorID:   s.VendorID,
			VendorName: s.VendorName,
			TotalFees:  money(s.TotalFees),
		})
	}
	return out
}
