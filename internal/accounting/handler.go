package accounting

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	common "github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// IdempotencyHeader carries the client supplied key for manual postings.
const IdempotencyHeader = "Idempotency-Key"

const idempotencyModule = "ledger.journals"

// IdempotencyPort claims request keys so a retried request posts once.
type IdempotencyPort interface {
	Claim(ctx context.Context, key, module string) error
	Release(ctx context.Context, key, module string) error
}

// Handler wires finance ledger endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	idem    IdempotencyPort
}

// NewHandler builds a Handler instance. idem may be nil to disable key checks.
func NewHandler(logger *slog.Logger, service *Service, idem IdempotencyPort) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, idem: idem}
}

// MountRoutes registers HTTP routes for the ledger module.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/journals", h.handlePost)
	r.Get("/journals/{number}", h.handleGetTransaction)
	r.Post("/journals/{number}/reverse", h.handleReverse)
	r.Get("/lines", h.handleListLines)
	r.Get("/accounts/{code}/balance", h.handleBalance)
	r.Get("/reports/trial-balance", h.handleTrialBalance)
}

type lineRequest struct {
	AccountCode string          `json:"account_code" validate:"required"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description"`
}

type postRequest struct {
	Number      string        `json:"number"`
	Date        string        `json:"date" validate:"required,datetime=2006-01-02"`
	Reference   string        `json:"reference" validate:"max=100"`
	Description string        `json:"description" validate:"max=500"`
	Lines       []lineRequest `json:"lines" validate:"required,min=2,dive"`
}

type reverseRequest struct {
	Date   string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Reason string `json:"reason" validate:"max=500"`
}

type lineResponse struct {
	ID                int64             `json:"id"`
	TransactionNumber TransactionNumber `json:"transaction_number"`
	Date              string            `json:"date"`
	AccountCode       string            `json:"account_code"`
	Debit             decimal.Decimal   `json:"debit"`
	Credit            decimal.Decimal   `json:"credit"`
	ReferenceType     ReferenceType     `json:"reference_type"`
	Reference         string            `json:"reference"`
	Description       string            `json:"description"`
	CreatedBy         string            `json:"created_by"`
	CreatedAt         time.Time         `json:"created_at"`
}

func toLineResponses(lines []JournalLine) []lineResponse {
	out := make([]lineResponse, 0, len(lines))
	for _, l := range lines {
		row := lineResponse{
			ID:                l.ID,
			TransactionNumber: l.TransactionNumber,
			Date:              l.Date.Format(time.DateOnly),
			AccountCode:       l.AccountCode,
			Debit:             l.Debit,
			Credit:            l.Credit,
			Description:       l.Description,
			CreatedBy:         l.CreatedBy,
			CreatedAt:         l.CreatedAt,
		}
		if l.Reference != nil {
			row.ReferenceType = l.Reference.Type()
			row.Reference = l.Reference.String()
		}
		out = append(out, row)
	}
	return out
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	date, err := time.Parse(time.DateOnly, req.Date)
	if err != nil {
		httpx.RespondError(w, h.logger, shared.Invalid("date", "expected YYYY-MM-DD"))
		return
	}
	key := r.Header.Get(IdempotencyHeader)
	if key != "" && h.idem != nil {
		if err := h.idem.Claim(r.Context(), key, idempotencyModule); err != nil {
			if errors.Is(err, common.ErrIdempotencyConflict) {
				err = httpx.ErrIdempotentReplay
			}
			httpx.RespondError(w, h.logger, err)
			return
		}
	}
	refKey := req.Reference
	if refKey == "" {
		refKey = key
	}
	lines := make([]JournalLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, JournalLine{AccountCode: l.AccountCode, Debit: l.Debit, Credit: l.Credit, Description: l.Description})
	}
	number, err := h.service.Post(r.Context(), PostingInput{
		Number:      TransactionNumber(req.Number),
		Prefix:      PrefixManual,
		Date:        date,
		Reference:   ManualRef{Key: refKey},
		Description: req.Description,
		Lines:       lines,
	})
	if err != nil {
		if key != "" && h.idem != nil {
			if relErr := h.idem.Release(context.WithoutCancel(r.Context()), key, idempotencyModule); relErr != nil {
				h.logger.Warn("idempotency release failed", slog.String("key", key), slog.Any("error", relErr))
			}
		}
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"transaction_number": number})
}

func (h *Handler) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	lines, err := h.service.GetTransaction(r.Context(), TransactionNumber(chi.URLParam(r, "number")))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	debit, credit := Totals(lines)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"transaction_number": lines[0].TransactionNumber,
		"total_debit":        debit,
		"total_credit":       credit,
		"lines":              toLineResponses(lines),
	})
}

func (h *Handler) handleReverse(w http.ResponseWriter, r *http.Request) {
	var req reverseRequest
	if r.ContentLength != 0 {
		if err := httpx.Bind(r, &req); err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
	}
	in := ReverseInput{Number: TransactionNumber(chi.URLParam(r, "number")), Reason: req.Reason}
	if req.Date != "" {
		date, err := time.Parse(time.DateOnly, req.Date)
		if err != nil {
			httpx.RespondError(w, h.logger, shared.Invalid("date", "expected YYYY-MM-DD"))
			return
		}
		in.Date = &date
	}
	number, err := h.service.Reverse(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"transaction_number": number, "reversed": in.Number})
}

func (h *Handler) handleListLines(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := LineFilter{AccountCode: q.Get("account")}
	var err error
	if filter.From, err = dateParam(r, "from"); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if filter.To, err = dateParam(r, "to"); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if raw := q.Get("limit"); raw != "" {
		limit, convErr := strconv.Atoi(raw)
		if convErr != nil || limit < 0 {
			httpx.RespondError(w, h.logger, shared.Invalid("limit", "must be a non-negative integer"))
			return
		}
		filter.Limit = limit
	}
	lines, err := h.service.ListLines(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toLineResponses(lines))
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	asOf, err := dateParam(r, "as_of")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	balance, err := h.service.Balances().GetBalance(r.Context(), code, asOf)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	resp := map[string]any{"account_code": code, "balance": balance}
	if asOf != nil {
		resp["as_of"] = asOf.Format(time.DateOnly)
	}
	httpx.JSON(w, http.StatusOK, resp)
}

type trialBalanceRow struct {
	Code    string          `json:"code"`
	Name    string          `json:"name"`
	Debit   decimal.Decimal `json:"debit"`
	Credit  decimal.Decimal `json:"credit"`
	Balance decimal.Decimal `json:"balance"`
}

type trialBalanceGroup struct {
	Type     string            `json:"type"`
	Accounts []trialBalanceRow `json:"accounts"`
	Debit    decimal.Decimal   `json:"debit"`
	Credit   decimal.Decimal   `json:"credit"`
}

func toTrialBalanceResponse(tb reports.TrialBalance) map[string]any {
	groups := make([]trialBalanceGroup, 0, len(tb.Groups))
	for _, g := range tb.Groups {
		rows := make([]trialBalanceRow, 0, len(g.Accounts))
		for _, a := range g.Accounts {
			rows = append(rows, trialBalanceRow{Code: a.Code, Name: a.Name, Debit: a.Debit, Credit: a.Credit, Balance: a.Balance})
		}
		groups = append(groups, trialBalanceGroup{Type: string(g.Type), Accounts: rows, Debit: g.Debit, Credit: g.Credit})
	}
	return map[string]any{
		"groups":       groups,
		"total_debit":  tb.TotalDebit,
		"total_credit": tb.TotalCredit,
		"difference":   tb.Difference,
		"balanced":     tb.Balanced,
	}
}

func (h *Handler) handleTrialBalance(w http.ResponseWriter, r *http.Request) {
	from, err := dateParam(r, "from")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	to, err := dateParam(r, "to")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	tb, err := h.service.TrialBalance(r.Context(), from, to)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTrialBalanceResponse(tb))
}

func dateParam(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, shared.Invalid(name, "expected YYYY-MM-DD")
	}
	return &t, nil
}
