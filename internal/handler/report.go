package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/fx-settlement/internal/domain"
	"github.com/josh-kwaku/fx-settlement/internal/logging"
	"github.com/josh-kwaku/fx-settlement/internal/pnl"
	"github.com/josh-kwaku/fx-settlement/internal/repository"
)

type reportService interface {
	Report(ctx context.Context, window domain.DateRange) (*pnl.Report, error)
	Summary(ctx context.Context, window domain.DateRange) ([]pnl.CurrencySummary, error)
}

type costBasisReader interface {
	Snapshot(ctx context.Context, q repository.Querier) ([]domain.CostBasis, error)
}

type ReportHandler struct {
	reports reportService
	costs   costBasisReader
	q       repository.Querier
	now     func() time.Time
}

func NewReportHandler(reports reportService, costs costBasisReader, q repository.Querier) *ReportHandler {
	return &ReportHandler{reports: reports, costs: costs, q: q, now: time.Now}
}

func (h *ReportHandler) window(w http.ResponseWriter, r *http.Request) (domain.DateRange, bool) {
	window, err := domain.ParseDateRange(r.URL.Query().Get("range"), h.now())
	if err != nil {
		RespondDomainError(w, err)
		return domain.DateRange{}, false
	}
	return window, true
}

func (h *ReportHandler) PnL(w http.ResponseWriter, r *http.Request) {
	window, ok := h.window(w, r)
	if !ok {
		return
	}

	rep, err := h.reports.Report(r.Context(), window)
	if err != nil {
		logging.FromContext(r.Context()).Error("pnl report failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	rows := make([]pnlRowDTO, len(rep.Rows))
	for i, row := range rep.Rows {
		rows[i] = toPnLRowDTO(row)
	}
	totals := make(map[string]map[string]decimal.Decimal, len(rep.Totals))
	for c, t := range rep.Totals {
		totals[string(c)] = map[string]decimal.Decimal{"revenue": t.Revenue, "cost": t.Cost, "profit": t.Profit}
	}
	costBasis := make([]costBasisDTO, len(rep.CostBasis))
	for i, cb := range rep.CostBasis {
		costBasis[i] = toCostBasisDTO(cb)
	}

	RespondSuccess(w, http.StatusOK, map[string]any{
		"window":     windowDTO{Start: window.Start, End: window.End},
		"rows":       rows,
		"totals":     totals,
		"cost_basis": costBasis,
	})
}

func (h *ReportHandler) Summary(w http.ResponseWriter, r *http.Request) {
	window, ok := h.window(w, r)
	if !ok {
		return
	}

	list, err := h.reports.Summary(r.Context(), window)
	if err != nil {
		logging.FromContext(r.Context()).Error("settlement summary failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	out := make([]summaryDTO, len(list))
	for i, s := range list {
		out[i] = toSummaryDTO(s)
	}
	RespondSuccess(w, http.StatusOK, map[string]any{
		"window":     windowDTO{Start: window.Start, End: window.End},
		"currencies": out,
	})
}

func (h *ReportHandler) CostBasis(w http.ResponseWriter, r *http.Request) {
	list, err := h.costs.Snapshot(r.Context(), h.q)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	out := make([]costBasisDTO, len(list))
	for i, cb := range list {
		out[i] = toCostBasisDTO(cb)
	}
	RespondSuccess(w, http.StatusOK, out)
}
