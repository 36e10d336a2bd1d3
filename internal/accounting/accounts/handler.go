package accounts

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// Handler serves the chart of accounts API.
type Handler struct {
	registry *Registry
	logger   *slog.Logger
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, registry *Registry) *Handler {
	return &Handler{registry: registry, logger: logger}
}

// MountRoutes registers the account routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/accounts", h.list)
	r.Post("/accounts", h.create)
	r.Get("/accounts/{code}", h.get)
	r.Put("/accounts/{code}", h.update)
	r.Delete("/accounts/{code}", h.delete)
	r.Get("/accounts/{code}/can-delete", h.canDelete)
}

type accountRequest struct {
	Code     string `json:"code" validate:"required,max=20"`
	Name     string `json:"name" validate:"required,max=200"`
	Type     string `json:"type" validate:"required,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	Subtype  string `json:"subtype" validate:"max=50"`
	IsActive *bool  `json:"is_active"`
}

type accountResponse struct {
	ID              int64           `json:"id"`
	Code            string          `json:"code"`
	Name            string          `json:"name"`
	Type            AccountType     `json:"type"`
	Subtype         string          `json:"subtype"`
	NormalSide      NormalSide      `json:"normal_side"`
	IsSystemAccount bool            `json:"is_system_account"`
	IsActive        bool            `json:"is_active"`
	CurrentBalance  decimal.Decimal `json:"current_balance"`
}

func toResponse(a Account) accountResponse {
	return accountResponse{
		ID:              a.ID,
		Code:            a.Code,
		Name:            a.Name,
		Type:            a.Type,
		Subtype:         a.Subtype,
		NormalSide:      a.NormalSide(),
		IsSystemAccount: a.IsSystemAccount,
		IsActive:        a.IsActive,
		CurrentBalance:  a.CurrentBalance,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		Type:       AccountType(strings.ToUpper(r.URL.Query().Get("type"))),
		ActiveOnly: r.URL.Query().Get("active") == "true",
	}
	list, err := h.registry.ListAccounts(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	out := make([]accountResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toResponse(a))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	created, err := h.registry.CreateAccount(r.Context(), Account{
		Code:    req.Code,
		Name:    req.Name,
		Type:    AccountType(req.Type),
		Subtype: req.Subtype,
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(created))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	a, err := h.registry.GetAccountByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(a))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	current, err := h.registry.GetAccountByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var req accountRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	active := current.IsActive
	if req.IsActive != nil {
		active = *req.IsActive
	}
	updated, err := h.registry.UpdateAccount(r.Context(), Account{
		ID:       current.ID,
		Code:     req.Code,
		Name:     req.Name,
		Type:     AccountType(req.Type),
		Subtype:  req.Subtype,
		IsActive: active,
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(updated))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.DeleteAccount(r.Context(), chi.URLParam(r, "code")); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) canDelete(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	ok, err := h.registry.CanDeleteAccount(r.Context(), code)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"code": code, "can_delete": ok})
}
