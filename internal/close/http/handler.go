package closehttp

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/close"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	common "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type closeService interface {
	ListPeriods(ctx context.Context) ([]accounting.FinancialPeriod, error)
	CreatePeriod(ctx context.Context, in close.CreatePeriodInput) (accounting.FinancialPeriod, error)
	GetPeriod(ctx context.Context, id int64) (accounting.FinancialPeriod, error)
	ValidateClosing(ctx context.Context, periodID int64) (close.ValidationReport, error)
	Preview(ctx context.Context, periodID int64) (close.Preview, error)
	Close(ctx context.Context, in close.CloseInput) (close.CloseResult, error)
	Reopen(ctx context.Context, periodID int64, reopenedBy string) (accounting.FinancialPeriod, error)
	SetCurrentPeriod(ctx context.Context, id *int64) error
}

// Handler wires HTTP endpoints for accounting periods and year-end closing.
type Handler struct {
	logger  *slog.Logger
	service closeService
}

// NewHandler constructs a close HTTP handler.
func NewHandler(logger *slog.Logger, service closeService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers HTTP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/periods", func(r chi.Router) {
		r.Get("/", h.listPeriods)
		r.Post("/", h.createPeriod)
		r.Get("/{id}", h.getPeriod)
		r.Get("/{id}/validate", h.validate)
		r.Get("/{id}/preview", h.preview)
		r.Post("/{id}/close", h.closePeriod)
		r.Post("/{id}/reopen", h.reopen)
	})
	r.Put("/settings/current-period", h.setCurrentPeriod)
}

type periodResponse struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	StartDate    string     `json:"start_date"`
	EndDate      string     `json:"end_date"`
	Status       string     `json:"status"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
	ClosedBy     string     `json:"closed_by,omitempty"`
	ClosingNotes string     `json:"closing_notes,omitempty"`
}

func toPeriodResponse(p accounting.FinancialPeriod) periodResponse {
	return periodResponse{
		ID:           p.ID,
		Name:         p.Name,
		StartDate:    p.StartDate.Format(time.DateOnly),
		EndDate:      p.EndDate.Format(time.DateOnly),
		Status:       common.PeriodStatus(p.IsClosed),
		ClosedAt:     p.ClosedAt,
		ClosedBy:     p.ClosedBy,
		ClosingNotes: p.ClosingNotes,
	}
}

type createPeriodRequest struct {
	Name      string `json:"name" validate:"required,max=100"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

type closeRequest struct {
	Notes string `json:"notes" validate:"max=1000"`
}

type currentPeriodRequest struct {
	PeriodID *int64 `json:"period_id"`
}

type validationResponse struct {
	PeriodID      int64           `json:"period_id"`
	TotalDebit    decimal.Decimal `json:"total_debit"`
	TotalCredit   decimal.Decimal `json:"total_credit"`
	Difference    decimal.Decimal `json:"difference"`
	LinesAfterEnd int             `json:"lines_after_end"`
	Warnings      []string        `json:"warnings"`
	CanClose      bool            `json:"can_close"`
}

func toValidationResponse(r close.ValidationReport) validationResponse {
	warnings := r.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return validationResponse{
		PeriodID:      r.PeriodID,
		TotalDebit:    r.TotalDebit,
		TotalCredit:   r.TotalCredit,
		Difference:    r.Difference,
		LinesAfterEnd: r.LinesAfterEnd,
		Warnings:      warnings,
		CanClose:      r.CanClose(),
	}
}

func (h *Handler) listPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := h.service.ListPeriods(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	out := make([]periodResponse, 0, len(periods))
	for _, p := range periods {
		out = append(out, toPeriodResponse(p))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) createPeriod(w http.ResponseWriter, r *http.Request) {
	var req createPeriodRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	start, err := time.Parse(time.DateOnly, req.StartDate)
	if err != nil {
		httpx.RespondError(w, h.logger, shared.Invalid("start_date", "expected YYYY-MM-DD"))
		return
	}
	end, err := time.Parse(time.DateOnly, req.EndDate)
	if err != nil {
		httpx.RespondError(w, h.logger, shared.Invalid("end_date", "expected YYYY-MM-DD"))
		return
	}
	period, err := h.service.CreatePeriod(r.Context(), close.CreatePeriodInput{Name: req.Name, StartDate: start, EndDate: end})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPeriodResponse(period))
}

func (h *Handler) getPeriod(w http.ResponseWriter, r *http.Request) {
	id, err := periodID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	period, err := h.service.GetPeriod(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPeriodResponse(period))
}

// validate always answers with the report; a failed check is reported in the
// body alongside the error detail.
func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	id, err := periodID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	report, err := h.service.ValidateClosing(r.Context(), id)
	resp := map[string]any{"report": toValidationResponse(report)}
	if err != nil {
		status := httpx.StatusFor(err)
		if status == http.StatusInternalServerError || status == http.StatusNotFound {
			httpx.RespondError(w, h.logger, err)
			return
		}
		resp["error"] = err.Error()
		httpx.JSON(w, status, resp)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

type plRow struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

func toPLRows(section reports.ProfitAndLossSection) []plRow {
	out := make([]plRow, 0, len(section.Accounts))
	for _, l := range section.Accounts {
		out = append(out, plRow{Code: l.Code, Name: l.Name, Amount: l.Amount})
	}
	return out
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	id, err := periodID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	preview, err := h.service.Preview(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	pl := preview.ProfitAndLoss
	httpx.JSON(w, http.StatusOK, map[string]any{
		"period":         toPeriodResponse(preview.Period),
		"revenue":        toPLRows(pl.Revenue),
		"expenses":       toPLRows(pl.Expense),
		"total_revenue":  pl.Revenue.Total,
		"total_expenses": pl.Expense.Total,
		"net_income":     pl.NetIncome,
	})
}

func (h *Handler) closePeriod(w http.ResponseWriter, r *http.Request) {
	id, err := periodID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var req closeRequest
	if r.ContentLength != 0 {
		if err := httpx.Bind(r, &req); err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
	}
	result, err := h.service.Close(r.Context(), close.CloseInput{PeriodID: id, Notes: req.Notes})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"period":     toPeriodResponse(result.Period),
		"entries":    result.Entries,
		"net_income": result.NetIncome,
		"report":     toValidationResponse(result.Report),
	})
}

func (h *Handler) reopen(w http.ResponseWriter, r *http.Request) {
	id, err := periodID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	period, err := h.service.Reopen(r.Context(), id, "")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPeriodResponse(period))
}

func (h *Handler) setCurrentPeriod(w http.ResponseWriter, r *http.Request) {
	var req currentPeriodRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if err := h.service.SetCurrentPeriod(r.Context(), req.PeriodID); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func periodID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.Invalid("id", "must be a positive integer")
	}
	return id, nil
}
