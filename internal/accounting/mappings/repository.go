package mappings

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

type Repository interface {
	Get(ctx context.Context, module, key string) (AccountMapping, error)
	List(ctx context.Context) ([]AccountMapping, error)
	Upsert(ctx context.Context, mapping AccountMapping) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

// Get resolves an account mapping for the specified key.
func (r *repository) Get(ctx context.Context, module, key string) (AccountMapping, error) {
	if module == "" || key == "" {
		return AccountMapping{}, shared.Invalid("mapping", "module and key required")
	}
	var mapping AccountMapping
	err := r.db.QueryRow(ctx, `SELECT module, key, account_code, created_at, updated_at FROM account_mappings WHERE module=$1 AND key=$2`,
		strings.ToUpper(module), strings.ToUpper(key)).
		Scan(&mapping.Module, &mapping.Key, &mapping.AccountCode, &mapping.CreatedAt, &mapping.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountMapping{}, shared.ErrMappingNotFound
		}
		return AccountMapping{}, err
	}
	return mapping, nil
}

func (r *repository) List(ctx context.Context) ([]AccountMapping, error) {
	rows, err := r.db.Query(ctx, `SELECT module, key, account_code, created_at, updated_at FROM account_mappings ORDER BY module, key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountMapping
	for rows.Next() {
		var m AccountMapping
		if err := rows.Scan(&m.Module, &m.Key, &m.AccountCode, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Upsert creates or repoints a mapping.
func (r *repository) Upsert(ctx context.Context, m AccountMapping) error {
	_, err := r.db.Exec(ctx, `INSERT INTO account_mappings (module, key, account_code, created_at, updated_at)
VALUES ($1, $2, $3, NOW(), NOW())
ON CONFLICT (module, key) DO UPDATE SET account_code = EXCLUDED.account_code, updated_at = NOW()`,
		strings.ToUpper(m.Module), strings.ToUpper(m.Key), m.AccountCode)
	return err
}
