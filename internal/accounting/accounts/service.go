package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Registry maintains the chart of accounts.
type Registry struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewRegistry constructs the chart of accounts registry.
func NewRegistry(repo Repository, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{repo: repo, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (r *Registry) WithNow(now func() time.Time) {
	if now != nil {
		r.now = now
	}
}

func validate(a Account) error {
	if strings.TrimSpace(a.Code) == "" {
		return shared.Invalid("code", "required")
	}
	if strings.TrimSpace(a.Name) == "" {
		return shared.Invalid("name", "required")
	}
	if !a.Type.Valid() {
		return shared.Invalid("type", fmt.Sprintf("unknown account type %q", a.Type))
	}
	return nil
}

// CreateAccount validates and persists a new account.
func (r *Registry) CreateAccount(ctx context.Context, a Account) (Account, error) {
	a.Code = strings.TrimSpace(a.Code)
	a.Name = strings.TrimSpace(a.Name)
	if err := validate(a); err != nil {
		return Account{}, err
	}
	if _, err := r.repo.GetByCode(ctx, a.Code); err == nil {
		return Account{}, fmt.Errorf("%w: %s", shared.ErrDuplicateAccountCode, a.Code)
	} else if !errors.Is(err, shared.ErrAccountNotFound) {
		return Account{}, err
	}
	a.CreatedAt = r.now()
	a.IsActive = true
	created, err := r.repo.Insert(ctx, a)
	if err != nil {
		return Account{}, err
	}
	return created, nil
}

// UpdateAccount changes an account located by id, or by code when id is zero.
// System accounts keep their code and type and stay active. Accounts with
// journal lines keep their code and type.
func (r *Registry) UpdateAccount(ctx context.Context, a Account) (Account, error) {
	var (
		current Account
		err     error
	)
	if a.ID != 0 {
		current, err = r.repo.GetByID(ctx, a.ID)
	} else {
		current, err = r.repo.GetByCode(ctx, a.Code)
	}
	if err != nil {
		return Account{}, err
	}
	a.ID = current.ID
	a.Code = strings.TrimSpace(a.Code)
	a.Name = strings.TrimSpace(a.Name)
	if err := validate(a); err != nil {
		return Account{}, err
	}
	if current.IsSystemAccount && (a.Code != current.Code || a.Type != current.Type) {
		return Account{}, fmt.Errorf("%w: %s", shared.ErrSystemAccountImmutable, current.Code)
	}
	if current.IsSystemAccount && !a.IsActive {
		return Account{}, fmt.Errorf("%w: %s", shared.ErrSystemAccountRequired, current.Code)
	}
	if a.Code != current.Code || a.Type != current.Type {
		used, err := r.repo.HasActivity(ctx, current.Code)
		if err != nil {
			return Account{}, err
		}
		if used {
			return Account{}, fmt.Errorf("%w: %s has journal lines", shared.ErrAccountInUse, current.Code)
		}
	}
	if a.Code != current.Code {
		if _, err := r.repo.GetByCode(ctx, a.Code); err == nil {
			return Account{}, fmt.Errorf("%w: %s", shared.ErrDuplicateAccountCode, a.Code)
		} else if !errors.Is(err, shared.ErrAccountNotFound) {
			return Account{}, err
		}
	}
	a.IsSystemAccount = current.IsSystemAccount
	a.UpdatedAt = r.now()
	return r.repo.Update(ctx, a)
}

// CanDeleteAccount reports whether the account is neither a system account
// nor referenced by any journal line.
func (r *Registry) CanDeleteAccount(ctx context.Context, code string) (bool, error) {
	a, err := r.repo.GetByCode(ctx, code)
	if err != nil {
		return false, err
	}
	if a.IsSystemAccount {
		return false, nil
	}
	used, err := r.repo.HasActivity(ctx, code)
	if err != nil {
		return false, err
	}
	return !used, nil
}

// DeleteAccount removes an unused, non-system account.
func (r *Registry) DeleteAccount(ctx context.Context, code string) error {
	ok, err := r.CanDeleteAccount(ctx, code)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrAccountInUse, code)
	}
	if err := r.repo.Delete(ctx, code); err != nil {
		return err
	}
	r.logger.Info("account deleted", slog.String("code", code))
	return nil
}

// GetAccountByCode returns the account or ErrAccountNotFound.
func (r *Registry) GetAccountByCode(ctx context.Context, code string) (Account, error) {
	return r.repo.GetByCode(ctx, code)
}

// ListAccounts lists accounts ordered by code.
func (r *Registry) ListAccounts(ctx context.Context, filter ListFilter) ([]Account, error) {
	return r.repo.List(ctx, filter)
}

// SeedResult reports what SeedDefaults changed.
type SeedResult struct {
	Created []string
	Skipped []string
}

// SeedDefaults installs the chart, leaving existing codes untouched.
func (r *Registry) SeedDefaults(ctx context.Context, chart []Account) (SeedResult, error) {
	if len(chart) == 0 {
		chart = DefaultChart()
	}
	var res SeedResult
	for _, a := range chart {
		if err := validate(a); err != nil {
			return res, fmt.Errorf("seed %s: %w", a.Code, err)
		}
		_, err := r.repo.GetByCode(ctx, a.Code)
		if err == nil {
			res.Skipped = append(res.Skipped, a.Code)
			continue
		}
		if !errors.Is(err, shared.ErrAccountNotFound) {
			return res, err
		}
		a.CreatedAt = r.now()
		a.IsActive = true
		if _, err := r.repo.Insert(ctx, a); err != nil {
			return res, fmt.Errorf("seed %s: %w", a.Code, err)
		}
		res.Created = append(res.Created, a.Code)
	}
	r.logger.Info("chart of accounts seeded", slog.Int("created", len(res.Created)), slog.Int("skipped", len(res.Skipped)))
	return res, nil
}
