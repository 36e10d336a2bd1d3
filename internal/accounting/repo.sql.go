package accounting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Repository persists ledger entities.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	GetAccount(ctx context.Context, code string) (accounts.Account, error)
	ListAccounts(ctx context.Context, filter accounts.ListFilter) ([]accounts.Account, error)
	AdjustCachedBalance(ctx context.Context, code string, delta decimal.Decimal) error
	SetCachedBalance(ctx context.Context, code string, balance decimal.Decimal) error

	InsertLines(ctx context.Context, lines []JournalLine) error
	TransactionExists(ctx context.Context, number TransactionNumber) (bool, error)
	NextSequence(ctx context.Context, prefix Prefix, day time.Time) (int, error)
	LinesByTransaction(ctx context.Context, number TransactionNumber) ([]JournalLine, error)
	ListLines(ctx context.Context, filter LineFilter) ([]JournalLine, error)
	CountLines(ctx context.Context) (int, error)
	CountLinesAfter(ctx context.Context, date time.Time) (int, error)
	RecordReversal(ctx context.Context, original, reversal TransactionNumber) error
	FindReversal(ctx context.Context, original TransactionNumber) (TransactionNumber, bool, error)
	SumAccount(ctx context.Context, code string, from, to *time.Time) (debit, credit decimal.Decimal, err error)
	SumAll(ctx context.Context, from, to *time.Time) (debit, credit decimal.Decimal, err error)
	AccountTotals(ctx context.Context, from, to *time.Time) ([]AccountTotals, error)
	UnbalancedTransactions(ctx context.Context) ([]UnbalancedGroup, error)

	GetPeriod(ctx context.Context, id int64) (FinancialPeriod, error)
	GetPeriodForUpdate(ctx context.Context, id int64) (FinancialPeriod, error)
	ListPeriods(ctx context.Context) ([]FinancialPeriod, error)
	InsertPeriod(ctx context.Context, period FinancialPeriod) (FinancialPeriod, error)
	UpdatePeriod(ctx context.Context, period FinancialPeriod) error
	FindClosedPeriodCovering(ctx context.Context, date time.Time) (FinancialPeriod, bool, error)
	AdvisoryLock(ctx context.Context, key string) error
	GetSettings(ctx context.Context) (CompanySettings, error)
	SetCurrentPeriod(ctx context.Context, periodID *int64) error

	MappedAccountCode(ctx context.Context, module, key string) (string, error)
	MarkSourceGenerated(ctx context.Context, ref Reference, number TransactionNumber) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes fn inside a repeatable-read transaction. Serialization
// failures and deadlocks restart fn from scratch.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const accountColumns = `id, code, name, type, subtype, is_system_account, is_active, current_balance, created_at, updated_at`

func scanAccount(row pgx.Row) (accounts.Account, error) {
	var a accounts.Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.Subtype, &a.IsSystemAccount, &a.IsActive, &a.CurrentBalance, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return accounts.Account{}, shared.ErrAccountNotFound
	}
	return a, err
}

func (r *txRepository) GetAccount(ctx context.Context, code string) (accounts.Account, error) {
	a, err := scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code=$1`, code))
	if errors.Is(err, shared.ErrAccountNotFound) {
		return accounts.Account{}, fmt.Errorf("%w: %s", shared.ErrAccountNotFound, code)
	}
	return a, err
}

func (r *txRepository) ListAccounts(ctx context.Context, filter accounts.ListFilter) ([]accounts.Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+accountColumns+` FROM accounts
WHERE ($1 = '' OR type = $1) AND (NOT $2 OR is_active) ORDER BY code`, string(filter.Type), filter.ActiveOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []accounts.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *txRepository) AdjustCachedBalance(ctx context.Context, code string, delta decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE accounts SET current_balance = current_balance + $2, updated_at = NOW() WHERE code=$1`, code, delta)
	return err
}

func (r *txRepository) SetCachedBalance(ctx context.Context, code string, balance decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE accounts SET current_balance = $2, updated_at = NOW() WHERE code=$1`, code, balance)
	return err
}

func (r *txRepository) InsertLines(ctx context.Context, lines []JournalLine) error {
	batch := &pgx.Batch{}
	for _, l := range lines {
		ref := EncodeReference(l.Reference)
		batch.Queue(`INSERT INTO journal_lines (transaction_number, date, account_code, debit_amount, credit_amount,
reference_type, reference_id, reference_key, description, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			string(l.TransactionNumber), l.Date, l.AccountCode, l.Debit, l.Credit,
			string(ref.Type), ref.ID, ref.Key, l.Description, l.CreatedBy, l.CreatedAt)
	}
	br := r.tx.SendBatch(ctx, batch)
	defer br.Close()
	for range lines {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) TransactionExists(ctx context.Context, number TransactionNumber) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM journal_lines WHERE transaction_number=$1)`, string(number)).Scan(&exists)
	return exists, err
}

// NextSequence bumps the per prefix and day counter. A missing counter row is
// seeded from the highest sequence already present in the ledger.
func (r *txRepository) NextSequence(ctx context.Context, prefix Prefix, day time.Time) (int, error) {
	stem := fmt.Sprintf("%s-%s-", prefix, day.Format(numberDateLayout))
	var seq int
	err := r.tx.QueryRow(ctx, `INSERT INTO transaction_sequences (prefix, day, last_seq)
VALUES ($1, $2, (
	SELECT COALESCE(MAX(CAST(substr(transaction_number, length($3) + 1) AS INTEGER)), 0) + 1
	FROM journal_lines
	WHERE transaction_number LIKE $3 || '%' AND substr(transaction_number, length($3) + 1) ~ '^[0-9]+$'
))
ON CONFLICT (prefix, day) DO UPDATE SET last_seq = transaction_sequences.last_seq + 1
RETURNING last_seq`, string(prefix), day, stem).Scan(&seq)
	return seq, err
}

const lineColumns = `id, transaction_number, date, account_code, debit_amount, credit_amount,
reference_type, reference_id, reference_key, description, created_by, created_at`

func scanLines(rows pgx.Rows) ([]JournalLine, error) {
	defer rows.Close()
	var out []JournalLine
	for rows.Next() {
		var (
			l   JournalLine
			num string
			enc EncodedReference
		)
		if err := rows.Scan(&l.ID, &num, &l.Date, &l.AccountCode, &l.Debit, &l.Credit,
			&enc.Type, &enc.ID, &enc.Key, &l.Description, &l.CreatedBy, &l.CreatedAt); err != nil {
			return nil, err
		}
		ref, err := DecodeReference(enc)
		if err != nil {
			return nil, err
		}
		l.TransactionNumber = TransactionNumber(num)
		l.Reference = ref
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *txRepository) LinesByTransaction(ctx context.Context, number TransactionNumber) ([]JournalLine, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+lineColumns+` FROM journal_lines WHERE transaction_number=$1 ORDER BY id`, string(number))
	if err != nil {
		return nil, err
	}
	return scanLines(rows)
}

func (r *txRepository) ListLines(ctx context.Context, filter LineFilter) ([]JournalLine, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.AccountCode != "" {
		args = append(args, filter.AccountCode)
		clauses = append(clauses, fmt.Sprintf("account_code = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		clauses = append(clauses, fmt.Sprintf("date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		clauses = append(clauses, fmt.Sprintf("date <= $%d", len(args)))
	}
	query := `SELECT ` + lineColumns + ` FROM journal_lines`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY date, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := r.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanLines(rows)
}

func (r *txRepository) CountLines(ctx context.Context) (int, error) {
	var n int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM journal_lines`).Scan(&n)
	return n, err
}

func (r *txRepository) CountLinesAfter(ctx context.Context, date time.Time) (int, error) {
	var n int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM journal_lines WHERE date > $1`, date).Scan(&n)
	return n, err
}

func (r *txRepository) RecordReversal(ctx context.Context, original, reversal TransactionNumber) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO journal_reversals (original_number, reversal_number, created_at) VALUES ($1,$2,NOW())`,
		string(original), string(reversal))
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %s", shared.ErrAlreadyReversed, original)
	}
	return err
}

func (r *txRepository) FindReversal(ctx context.Context, original TransactionNumber) (TransactionNumber, bool, error) {
	var reversal string
	err := r.tx.QueryRow(ctx, `SELECT reversal_number FROM journal_reversals WHERE original_number=$1`, string(original)).Scan(&reversal)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return TransactionNumber(reversal), true, nil
}

func (r *txRepository) SumAccount(ctx context.Context, code string, from, to *time.Time) (decimal.Decimal, decimal.Decimal, error) {
	var debit, credit decimal.Decimal
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(debit_amount),0), COALESCE(SUM(credit_amount),0)
FROM journal_lines WHERE account_code=$1 AND ($2::date IS NULL OR date >= $2) AND ($3::date IS NULL OR date <= $3)`,
		code, from, to).Scan(&debit, &credit)
	return debit, credit, err
}

func (r *txRepository) SumAll(ctx context.Context, from, to *time.Time) (decimal.Decimal, decimal.Decimal, error) {
	var debit, credit decimal.Decimal
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(debit_amount),0), COALESCE(SUM(credit_amount),0)
FROM journal_lines WHERE ($1::date IS NULL OR date >= $1) AND ($2::date IS NULL OR date <= $2)`,
		from, to).Scan(&debit, &credit)
	return debit, credit, err
}

func (r *txRepository) AccountTotals(ctx context.Context, from, to *time.Time) ([]AccountTotals, error) {
	rows, err := r.tx.Query(ctx, `SELECT account_code, COALESCE(SUM(debit_amount),0), COALESCE(SUM(credit_amount),0)
FROM journal_lines WHERE ($1::date IS NULL OR date >= $1) AND ($2::date IS NULL OR date <= $2)
GROUP BY account_code ORDER BY account_code`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountTotals
	for rows.Next() {
		var t AccountTotals
		if err := rows.Scan(&t.AccountCode, &t.Debit, &t.Credit); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *txRepository) UnbalancedTransactions(ctx context.Context) ([]UnbalancedGroup, error) {
	rows, err := r.tx.Query(ctx, `SELECT transaction_number, SUM(debit_amount), SUM(credit_amount)
FROM journal_lines GROUP BY transaction_number
HAVING ABS(SUM(debit_amount) - SUM(credit_amount)) >= $1
ORDER BY transaction_number`, shared.Tolerance)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []UnbalancedGroup
	for rows.Next() {
		var (
			g   UnbalancedGroup
			num string
		)
		if err := rows.Scan(&num, &g.Debit, &g.Credit); err != nil {
			return nil, err
		}
		g.Number = TransactionNumber(num)
		out = append(out, g)
	}
	return out, rows.Err()
}

const periodColumns = `id, name, start_date, end_date, is_closed, closed_at, closed_by, closing_notes, created_at, updated_at`

func scanPeriod(row pgx.Row) (FinancialPeriod, error) {
	var p FinancialPeriod
	err := row.Scan(&p.ID, &p.Name, &p.StartDate, &p.EndDate, &p.IsClosed, &p.ClosedAt, &p.ClosedBy, &p.ClosingNotes, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return FinancialPeriod{}, shared.ErrPeriodNotFound
	}
	return p, err
}

func (r *txRepository) GetPeriod(ctx context.Context, id int64) (FinancialPeriod, error) {
	return scanPeriod(r.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM financial_periods WHERE id=$1`, id))
}

func (r *txRepository) GetPeriodForUpdate(ctx context.Context, id int64) (FinancialPeriod, error) {
	return scanPeriod(r.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM financial_periods WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) ListPeriods(ctx context.Context) ([]FinancialPeriod, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+periodColumns+` FROM financial_periods ORDER BY start_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []FinancialPeriod
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *txRepository) InsertPeriod(ctx context.Context, p FinancialPeriod) (FinancialPeriod, error) {
	return scanPeriod(r.tx.QueryRow(ctx, `INSERT INTO financial_periods (name, start_date, end_date, is_closed, closed_by, closing_notes, created_at, updated_at)
VALUES ($1,$2,$3,FALSE,'','',$4,$4) RETURNING `+periodColumns, p.Name, p.StartDate, p.EndDate, p.CreatedAt))
}

func (r *txRepository) UpdatePeriod(ctx context.Context, p FinancialPeriod) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE financial_periods SET name=$2, start_date=$3, end_date=$4, is_closed=$5, closed_at=$6,
closed_by=$7, closing_notes=$8, updated_at=NOW() WHERE id=$1`,
		p.ID, p.Name, p.StartDate, p.EndDate, p.IsClosed, p.ClosedAt, p.ClosedBy, p.ClosingNotes)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrPeriodNotFound
	}
	return nil
}

func (r *txRepository) FindClosedPeriodCovering(ctx context.Context, date time.Time) (FinancialPeriod, bool, error) {
	p, err := scanPeriod(r.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM financial_periods
WHERE is_closed AND start_date <= $1 AND end_date >= $1 ORDER BY start_date LIMIT 1`, date))
	if errors.Is(err, shared.ErrPeriodNotFound) {
		return FinancialPeriod{}, false, nil
	}
	if err != nil {
		return FinancialPeriod{}, false, err
	}
	return p, true, nil
}

// AdvisoryLock takes a transaction scoped advisory lock keyed by a string.
func (r *txRepository) AdvisoryLock(ctx context.Context, key string) error {
	_, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key)
	return err
}

func (r *txRepository) GetSettings(ctx context.Context) (CompanySettings, error) {
	var s CompanySettings
	err := r.tx.QueryRow(ctx, `SELECT current_period_id, updated_at FROM company_settings WHERE id = 1`).Scan(&s.CurrentPeriodID, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return CompanySettings{}, nil
	}
	return s, err
}

func (r *txRepository) SetCurrentPeriod(ctx context.Context, periodID *int64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO company_settings (id, current_period_id, updated_at) VALUES (1, $1, NOW())
ON CONFLICT (id) DO UPDATE SET current_period_id = EXCLUDED.current_period_id, updated_at = NOW()`, periodID)
	return err
}

func (r *txRepository) MappedAccountCode(ctx context.Context, module, key string) (string, error) {
	var code string
	err := r.tx.QueryRow(ctx, `SELECT account_code FROM account_mappings WHERE module=$1 AND key=$2`, module, key).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", shared.ErrMappingNotFound
	}
	return code, err
}

var sourceTables = map[ReferenceType]string{
	ReferenceSale:            "sales",
	ReferencePurchase:        "purchases",
	ReferenceCustomerPayment: "customer_payments",
	ReferenceVendorPayment:   "vendor_payments",
	ReferenceExpensePayment:  "expense_payments",
}

// MarkSourceGenerated flags the source document as posted. It fails with
// ErrSourceAlreadyLinked when another writer flagged it first.
func (r *txRepository) MarkSourceGenerated(ctx context.Context, ref Reference, number TransactionNumber) error {
	enc := EncodeReference(ref)
	table, ok := sourceTables[enc.Type]
	if !ok {
		return fmt.Errorf("accounting: reference %s has no source document", ref)
	}
	cmd, err := r.tx.Exec(ctx, `UPDATE `+table+` SET journal_entry_number=$2, is_journal_entry_generated=TRUE
WHERE id=$1 AND NOT is_journal_entry_generated`, enc.ID, string(number))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id=$1)`, enc.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", shared.ErrDocumentNotFound, ref)
	}
	return fmt.Errorf("%w: %s", shared.ErrSourceAlreadyLinked, ref)
}
