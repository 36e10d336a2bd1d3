package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// DocumentSource loads collaborator documents and lists the ones still
// waiting for a journal entry.
type DocumentSource interface {
	Sale(ctx context.Context, id int64) (Sale, error)
	Purchase(ctx context.Context, id int64) (Purchase, error)
	CustomerPayment(ctx context.Context, id int64) (CustomerPayment, error)
	VendorPayment(ctx context.Context, id int64) (VendorPayment, error)
	ExpensePayment(ctx context.Context, id int64) (ExpensePayment, error)
	Pending(ctx context.Context, after *PendingCursor, limit int) ([]PendingDocument, error)
}

// DefaultPendingPage is the page size used when a sweep is given none.
const DefaultPendingPage = 100

// PendingCursor is a position in the unflagged backlog, ordered by document
// date, reference type and id.
type PendingCursor struct {
	Date time.Time
	Kind accounting.ReferenceType
	ID   int64
}

// PendingDocument is an unflagged document and its backlog position.
type PendingDocument struct {
	Ref    accounting.Reference
	Cursor PendingCursor
}

// Generate loads the referenced document and runs its generator.
func (h *Hooks) Generate(ctx context.Context, src DocumentSource, ref accounting.Reference) (Result, error) {
	switch r := ref.(type) {
	case accounting.SaleRef:
		doc, err := src.Sale(ctx, r.SaleID)
		if err != nil {
			return Result{}, err
		}
		return h.PostSale(ctx, doc)
	case accounting.PurchaseRef:
		doc, err := src.Purchase(ctx, r.PurchaseID)
		if err != nil {
			return Result{}, err
		}
		return h.PostPurchase(ctx, doc)
	case accounting.CustomerPaymentRef:
		doc, err := src.CustomerPayment(ctx, r.PaymentID)
		if err != nil {
			return Result{}, err
		}
		return h.PostCustomerPayment(ctx, doc)
	case accounting.VendorPaymentRef:
		doc, err := src.VendorPayment(ctx, r.PaymentID)
		if err != nil {
			return Result{}, err
		}
		return h.PostVendorPayment(ctx, doc)
	case accounting.ExpensePaymentRef:
		doc, err := src.ExpensePayment(ctx, r.PaymentID)
		if err != nil {
			return Result{}, err
		}
		return h.PostExpensePayment(ctx, doc)
	default:
		return Result{}, shared.Invalid("reference", fmt.Sprintf("%v has no generator", ref))
	}
}

// RetryReport summarises a RetryPending sweep.
type RetryReport struct {
	Scanned       int
	Posted        int
	AlreadyPosted int
	Deferred      int
	Failed        int
}

// RetryPending re-runs the generators for documents that are still unflagged,
// typically those deferred for a missing account. It pages through the whole
// backlog, pageSize documents at a time, so documents that keep failing do not
// hide newer ones. A failing document does not stop the sweep.
func (h *Hooks) RetryPending(ctx context.Context, src DocumentSource, pageSize int) (RetryReport, error) {
	if pageSize <= 0 {
		pageSize = DefaultPendingPage
	}
	var (
		report RetryReport
		after  *PendingCursor
	)
	for {
		page, err := src.Pending(ctx, after, pageSize)
		if err != nil {
			return report, fmt.Errorf("integration: list pending: %w", err)
		}
		report.Scanned += len(page)
		for _, doc := range page {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			h.retry(ctx, src, doc.Ref, &report)
		}
		if len(page) < pageSize {
			return report, nil
		}
		last := page[len(page)-1].Cursor
		after = &last
	}
}

func (h *Hooks) retry(ctx context.Context, src DocumentSource, ref accounting.Reference, report *RetryReport) {
	res, err := h.Generate(ctx, src, ref)
	if err != nil {
		report.Failed++
		level := slog.LevelError
		if errors.Is(err, shared.ErrValidation) || errors.Is(err, shared.ErrState) {
			level = slog.LevelWarn
		}
		h.logger.Log(ctx, level, "pending document failed", slog.String("reference", ref.String()), slog.Any("error", err))
		return
	}
	switch res.Outcome {
	case OutcomePosted:
		report.Posted++
	case OutcomeAlreadyPosted:
		report.AlreadyPosted++
	case OutcomeDeferred:
		report.Deferred++
	}
}
