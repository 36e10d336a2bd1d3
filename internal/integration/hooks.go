package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	common "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Outcome reports what a generator did with a document.
type Outcome string

const (
	OutcomePosted        Outcome = "posted"
	OutcomeAlreadyPosted Outcome = "already_posted"
	OutcomeDeferred      Outcome = "deferred"
)

// Result is returned by every generator.
type Result struct {
	Outcome Outcome
	Number  accounting.TransactionNumber
	// Reason explains a deferral.
	Reason string
}

// Ledger is the posting engine surface the generators need.
type Ledger interface {
	PostTx(ctx context.Context, tx accounting.TxRepository, input accounting.PostingInput) (accounting.Posting, error)
	Committed(ctx context.Context, actor, action string, postings ...accounting.Posting)
	OperationContext(ctx context.Context) (context.Context, context.CancelFunc)
}

// Hooks wires source documents from operational modules into the general ledger.
type Hooks struct {
	repo   accounting.RepositoryPort
	ledger Ledger
	logger *slog.Logger
}

// NewHooks constructs integration hooks.
func NewHooks(repo accounting.RepositoryPort, ledger Ledger, logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{repo: repo, ledger: ledger, logger: logger}
}

type deferral struct{ reason string }

func (d *deferral) Error() string { return "integration: deferred: " + d.reason }

type resolver struct {
	ctx context.Context
	tx  accounting.TxRepository
	err error
}

func (r *resolver) code(module, key string) string {
	if r.err != nil {
		return ""
	}
	code, err := mappings.Resolve(r.ctx, r.tx, module, key)
	if err != nil {
		r.err = err
	}
	return code
}

type buildFunc func(r *resolver) ([]accounting.JournalLine, error)

func (h *Hooks) post(ctx context.Context, ref accounting.Reference, generated bool, prefix accounting.Prefix, input accounting.PostingInput, build buildFunc) (Result, error) {
	if generated {
		return Result{Outcome: OutcomeAlreadyPosted}, nil
	}
	if input.Date.IsZero() {
		return Result{}, shared.Invalid("date", fmt.Sprintf("%s has no date", ref))
	}
	ctx, cancel := h.ledger.OperationContext(ctx)
	defer cancel()
	actor := common.ActorFromContext(ctx)
	input.Prefix = prefix
	input.Reference = ref
	input.CreatedBy = actor

	var posting accounting.Posting
	err := h.repo.WithTx(ctx, func(ctx context.Context, tx accounting.TxRepository) error {
		r := &resolver{ctx: ctx, tx: tx}
		lines, err := build(r)
		if r.err != nil {
			return deferIfMissing(r.err)
		}
		if err != nil {
			return err
		}
		input.Lines = lines
		p, err := h.ledger.PostTx(ctx, tx, input)
		if err != nil {
			return deferIfMissing(err)
		}
		if err := tx.MarkSourceGenerated(ctx, ref, p.Number); err != nil {
			return err
		}
		posting = p
		return nil
	})

	var def *deferral
	switch {
	case err == nil:
		h.ledger.Committed(ctx, actor, "journal.generate", posting)
		h.logger.Info("journal entry generated", slog.String("reference", ref.String()), slog.String("number", string(posting.Number)))
		return Result{Outcome: OutcomePosted, Number: posting.Number}, nil
	case errors.Is(err, shared.ErrSourceAlreadyLinked):
		return Result{Outcome: OutcomeAlreadyPosted}, nil
	case errors.As(err, &def):
		h.logger.Warn("journal entry deferred", slog.String("reference", ref.String()), slog.String("reason", def.reason))
		return Result{Outcome: OutcomeDeferred, Reason: def.reason}, nil
	default:
		return Result{}, err
	}
}

func deferIfMissing(err error) error {
	if errors.Is(err, shared.ErrAccountNotFound) || errors.Is(err, shared.ErrAccountInactive) || errors.Is(err, shared.ErrMappingNotFound) {
		return &deferral{reason: err.Error()}
	}
	return err
}

// PostSale generates the sale entry.
func (h *Hooks) PostSale(ctx context.Context, sale Sale) (Result, error) {
	input := accounting.PostingInput{Date: sale.Date, Description: fmt.Sprintf("Sale #%d", sale.ID)}
	return h.post(ctx, sale.Ref(), sale.IsJournalEntryGenerated, accounting.PrefixSale, input, func(r *resolver) ([]accounting.JournalLine, error) {
		acc := SaleAccounts{
			Receivable: r.code(mappings.ModuleSales, mappings.KeyAccountsReceivable),
			Revenue:    sale.RevenueAccountCode,
			Discount:   r.code(mappings.ModuleSales, mappings.KeySalesDiscount),
			Shipping:   r.code(mappings.ModuleSales, mappings.KeyShippingRevenue),
			Tax:        r.code(mappings.ModuleSales, mappings.KeySalesTax),
			COGS:       r.code(mappings.ModuleSales, mappings.KeyCostOfGoodsSold),
			Inventory:  r.code(mappings.ModuleSales, mappings.KeyInventory),
		}
		if acc.Revenue == "" {
			acc.Revenue = r.code(mappings.ModuleSales, mappings.KeySalesRevenue)
		}
		return BuildSaleLines(sale, acc)
	})
}

// PostPurchase generates the purchase entry.
func (h *Hooks) PostPurchase(ctx context.Context, p Purchase) (Result, error) {
	input := accounting.PostingInput{Date: p.Date, Description: fmt.Sprintf("Purchase #%d", p.ID)}
	return h.post(ctx, p.Ref(), p.IsJournalEntryGenerated, accounting.PrefixPurchase, input, func(r *resolver) ([]accounting.JournalLine, error) {
		item := p.ItemAccountCode
		if item == "" {
			item = r.code(mappings.ModulePurchasing, mappings.KeyInventory)
		}
		return BuildPurchaseLines(p, item, r.code(mappings.ModulePurchasing, mappings.KeyAccountsPayable))
	})
}

// PostCustomerPayment generates the customer payment entry.
func (h *Hooks) PostCustomerPayment(ctx context.Context, p CustomerPayment) (Result, error) {
	input := accounting.PostingInput{Date: p.Date, Description: fmt.Sprintf("Customer payment #%d", p.ID)}
	return h.post(ctx, p.Ref(), p.IsJournalEntryGenerated, accounting.PrefixCustomerPayment, input, func(r *resolver) ([]accounting.JournalLine, error) {
		return BuildCustomerPaymentLines(p, r.code(mappings.ModuleSales, mappings.KeyAccountsReceivable))
	})
}

// PostVendorPayment generates the vendor payment entry.
func (h *Hooks) PostVendorPayment(ctx context.Context, p VendorPayment) (Result, error) {
	input := accounting.PostingInput{Date: p.Date, Description: fmt.Sprintf("Vendor payment #%d", p.ID)}
	return h.post(ctx, p.Ref(), p.IsJournalEntryGenerated, accounting.PrefixVendorPayment, input, func(r *resolver) ([]accounting.JournalLine, error) {
		return BuildVendorPaymentLines(p, r.code(mappings.ModulePurchasing, mappings.KeyAccountsPayable))
	})
}

// PostExpensePayment generates the expense payment entry.
func (h *Hooks) PostExpensePayment(ctx context.Context, p ExpensePayment) (Result, error) {
	description := p.Description
	if description == "" {
		description = fmt.Sprintf("Expense payment #%d", p.ID)
	}
	input := accounting.PostingInput{Date: p.Date, Description: description}
	return h.post(ctx, p.Ref(), p.IsJournalEntryGenerated, accounting.PrefixExpensePayment, input, func(r *resolver) ([]accounting.JournalLine, error) {
		account := p.ExpenseAccountCode
		if account == "" {
			account = r.code(mappings.ModuleExpenses, mappings.KeyDefaultExpense)
		}
		return BuildExpensePaymentLines(p, account)
	})
}
