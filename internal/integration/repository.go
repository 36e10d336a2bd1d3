package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Repository reads source documents from the collaborator tables.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the Postgres document source.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ DocumentSource = (*Repository)(nil)

func notFound(err error, ref accounting.Reference) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", shared.ErrDocumentNotFound, ref)
	}
	return err
}

func (r *Repository) Sale(ctx context.Context, id int64) (Sale, error) {
	var (
		s      Sale
		number string
	)
	err := r.pool.QueryRow(ctx, `SELECT id, sale_date, customer_name, subtotal, discount_amount, shipping_amount, tax_amount,
total_amount, revenue_account_code, journal_entry_number, is_journal_entry_generated
FROM sales WHERE id=$1`, id).Scan(&s.ID, &s.Date, &s.CustomerName, &s.Subtotal, &s.DiscountAmount, &s.ShippingAmount,
		&s.TaxAmount, &s.TotalAmount, &s.RevenueAccountCode, &number, &s.IsJournalEntryGenerated)
	if err != nil {
		return Sale{}, notFound(err, accounting.SaleRef{SaleID: id})
	}
	s.JournalEntryNumber = accounting.TransactionNumber(number)
	rows, err := r.pool.Query(ctx, `SELECT sku, quantity, unit_price, unit_cost FROM sale_items WHERE sale_id=$1 ORDER BY id`, id)
	if err != nil {
		return Sale{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item SaleItem
		if err := rows.Scan(&item.SKU, &item.Quantity, &item.UnitPrice, &item.UnitCost); err != nil {
			return Sale{}, err
		}
		s.Items = append(s.Items, item)
	}
	return s, rows.Err()
}

func (r *Repository) Purchase(ctx context.Context, id int64) (Purchase, error) {
	var (
		p      Purchase
		number string
	)
	err := r.pool.QueryRow(ctx, `SELECT id, purchase_date, vendor_name, total_cost, item_account_code, journal_entry_number, is_journal_entry_generated
FROM purchases WHERE id=$1`, id).Scan(&p.ID, &p.Date, &p.VendorName, &p.TotalCost, &p.ItemAccountCode, &number, &p.IsJournalEntryGenerated)
	if err != nil {
		return Purchase{}, notFound(err, accounting.PurchaseRef{PurchaseID: id})
	}
	p.JournalEntryNumber = accounting.TransactionNumber(number)
	return p, nil
}

func (r *Repository) payment(ctx context.Context, table string, id int64) (Payment, error) {
	var (
		p      Payment
		number string
	)
	err := r.pool.QueryRow(ctx, `SELECT id, payment_date, amount, payment_method, journal_entry_number, is_journal_entry_generated
FROM `+table+` WHERE id=$1`, id).Scan(&p.ID, &p.Date, &p.Amount, &p.PaymentMethod, &number, &p.IsJournalEntryGenerated)
	p.JournalEntryNumber = accounting.TransactionNumber(number)
	return p, err
}

func (r *Repository) CustomerPayment(ctx context.Context, id int64) (CustomerPayment, error) {
	p, err := r.payment(ctx, "customer_payments", id)
	if err != nil {
		return CustomerPayment{}, notFound(err, accounting.CustomerPaymentRef{PaymentID: id})
	}
	return CustomerPayment{Payment: p}, nil
}

func (r *Repository) VendorPayment(ctx context.Context, id int64) (VendorPayment, error) {
	p, err := r.payment(ctx, "vendor_payments", id)
	if err != nil {
		return VendorPayment{}, notFound(err, accounting.VendorPaymentRef{PaymentID: id})
	}
	return VendorPayment{Payment: p}, nil
}

func (r *Repository) ExpensePayment(ctx context.Context, id int64) (ExpensePayment, error) {
	var (
		e      ExpensePayment
		number string
	)
	err := r.pool.QueryRow(ctx, `SELECT id, payment_date, amount, payment_method, expense_account_code, description,
journal_entry_number, is_journal_entry_generated
FROM expense_payments WHERE id=$1`, id).Scan(&e.ID, &e.Date, &e.Amount, &e.PaymentMethod, &e.ExpenseAccountCode,
		&e.Description, &number, &e.IsJournalEntryGenerated)
	if err != nil {
		return ExpensePayment{}, notFound(err, accounting.ExpensePaymentRef{PaymentID: id})
	}
	e.JournalEntryNumber = accounting.TransactionNumber(number)
	return e, nil
}

// Pending lists unflagged documents across every source table ordered by
// (doc_date, kind, id), starting strictly after the cursor when one is given.
func (r *Repository) Pending(ctx context.Context, after *PendingCursor, limit int) ([]PendingDocument, error) {
	if limit <= 0 {
		limit = DefaultPendingPage
	}
	var (
		afterDate *time.Time
		afterKind string
		afterID   int64
	)
	if after != nil {
		afterDate, afterKind, afterID = &after.Date, string(after.Kind), after.ID
	}
	rows, err := r.pool.Query(ctx, `SELECT kind, id, doc_date FROM (
    SELECT 'SALE' AS kind, id, sale_date AS doc_date FROM sales WHERE NOT is_journal_entry_generated
    UNION ALL SELECT 'PURCHASE', id, purchase_date FROM purchases WHERE NOT is_journal_entry_generated
    UNION ALL SELECT 'CUSTOMER_PAYMENT', id, payment_date FROM customer_payments WHERE NOT is_journal_entry_generated
    UNION ALL SELECT 'VENDOR_PAYMENT', id, payment_date FROM vendor_payments WHERE NOT is_journal_entry_generated
    UNION ALL SELECT 'EXPENSE_PAYMENT', id, payment_date FROM expense_payments WHERE NOT is_journal_entry_generated
) pending
WHERE $1::date IS NULL OR (doc_date, kind, id) > ($1::date, $2::text, $3::bigint)
ORDER BY doc_date, kind, id LIMIT $4`, afterDate, afterKind, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []PendingDocument
	for rows.Next() {
		var (
			enc  accounting.EncodedReference
			date time.Time
		)
		if err := rows.Scan(&enc.Type, &enc.ID, &date); err != nil {
			return nil, err
		}
		ref, err := accounting.DecodeReference(enc)
		if err != nil {
			return nil, err
		}
		docs = append(docs, PendingDocument{Ref: ref, Cursor: PendingCursor{Date: date, Kind: enc.Type, ID: enc.ID}})
	}
	return docs, rows.Err()
}
