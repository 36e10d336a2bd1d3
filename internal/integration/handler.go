package integration

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// Handler lets collaborators trigger generation for a stored document.
type Handler struct {
	hooks  *Hooks
	source DocumentSource
	logger *slog.Logger
}

// NewHandler constructs the postings handler.
func NewHandler(logger *slog.Logger, hooks *Hooks, source DocumentSource) *Handler {
	return &Handler{hooks: hooks, source: source, logger: logger}
}

// MountRoutes registers the generator routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/postings/{kind}/{id}", h.generate)
}

// ParseReference turns a URL kind and id into a document reference.
func ParseReference(kind, rawID string) (accounting.Reference, error) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return nil, shared.Invalid("id", "must be a positive integer")
	}
	switch kind {
	case "sale", "sales":
		return accounting.SaleRef{SaleID: id}, nil
	case "purchase", "purchases":
		return accounting.PurchaseRef{PurchaseID: id}, nil
	case "customer-payment", "customer-payments":
		return accounting.CustomerPaymentRef{PaymentID: id}, nil
	case "vendor-payment", "vendor-payments":
		return accounting.VendorPaymentRef{PaymentID: id}, nil
	case "expense-payment", "expense-payments":
		return accounting.ExpensePaymentRef{PaymentID: id}, nil
	default:
		return nil, shared.Invalid("kind", "unknown document kind "+strconv.Quote(kind))
	}
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	ref, err := ParseReference(chi.URLParam(r, "kind"), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	res, err := h.hooks.Generate(r.Context(), h.source, ref)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	status := http.StatusOK
	switch res.Outcome {
	case OutcomePosted:
		status = http.StatusCreated
	case OutcomeDeferred:
		status = http.StatusAccepted
	}
	body := map[string]any{"reference": ref.String(), "outcome": res.Outcome}
	if res.Number != "" {
		body["transaction_number"] = res.Number
	}
	if res.Reason != "" {
		body["reason"] = res.Reason
	}
	httpx.JSON(w, status, body)
}
