package accounts

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]Account, error)
	GetByCode(ctx context.Context, code string) (Account, error)
	GetByID(ctx context.Context, id int64) (Account, error)
	Insert(ctx context.Context, account Account) (Account, error)
	Update(ctx context.Context, account Account) (Account, error)
	Delete(ctx context.Context, code string) error
	HasActivity(ctx context.Context, code string) (bool, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const accountColumns = `id, code, name, type, subtype, is_system_account, is_active, current_balance, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.Subtype, &a.IsSystemAccount, &a.IsActive, &a.CurrentBalance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Account, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Type != "" {
		args = append(args, filter.Type)
		clauses = append(clauses, "type = $1")
	}
	if filter.ActiveOnly {
		clauses = append(clauses, "is_active")
	}
	query := `SELECT ` + accountColumns + ` FROM accounts`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY code`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) GetByCode(ctx context.Context, code string) (Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code=$1`, code))
}

func (r *repository) GetByID(ctx context.Context, id int64) (Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id))
}

func (r *repository) Insert(ctx context.Context, a Account) (Account, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO accounts (code, name, type, subtype, is_system_account, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$7) RETURNING `+accountColumns, a.Code, a.Name, a.Type, a.Subtype, a.IsSystemAccount, a.IsActive, a.CreatedAt)
	created, err := scanAccount(row)
	if db.IsUniqueViolation(err) {
		return Account{}, shared.ErrDuplicateAccountCode
	}
	return created, err
}

func (r *repository) Update(ctx context.Context, a Account) (Account, error) {
	row := r.db.QueryRow(ctx, `UPDATE accounts SET code=$2, name=$3, type=$4, subtype=$5, is_active=$6, updated_at=NOW()
WHERE id=$1 RETURNING `+accountColumns, a.ID, a.Code, a.Name, a.Type, a.Subtype, a.IsActive)
	updated, err := scanAccount(row)
	if db.IsUniqueViolation(err) {
		return Account{}, shared.ErrDuplicateAccountCode
	}
	return updated, err
}

func (r *repository) Delete(ctx context.Context, code string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE code=$1 AND NOT is_system_account`, code)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

func (r *repository) HasActivity(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM journal_lines WHERE account_code=$1)`, code).Scan(&exists)
	return exists, err
}
