package accounting

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

// DefaultBalanceTimeout bounds a shared balance lookup.
const DefaultBalanceTimeout = 15 * time.Second

// BalanceCalculator derives account balances from journal lines and keeps
// the cached current_balance column in step.
type BalanceCalculator struct {
	repo    RepositoryPort
	logger  *slog.Logger
	timeout time.Duration
	group   singleflight.Group
}

// NewBalanceCalculator constructs the calculator.
func NewBalanceCalculator(repo RepositoryPort, logger *slog.Logger) *BalanceCalculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &BalanceCalculator{repo: repo, logger: logger, timeout: DefaultBalanceTimeout}
}

// WithTimeout bounds shared lookups. Zero keeps the default.
func (b *BalanceCalculator) WithTimeout(timeout time.Duration) {
	if timeout > 0 {
		b.timeout = timeout
	}
}

// GetBalance returns the signed balance of the account, optionally as of a date.
// Concurrent lookups for the same key share one query, which outlives any
// single caller's cancellation and is bounded by the calculator timeout.
func (b *BalanceCalculator) GetBalance(ctx context.Context, code string, asOf *time.Time) (decimal.Decimal, error) {
	key := code
	if asOf != nil {
		key += "@" + asOf.Format(time.DateOnly)
	}
	detached := context.WithoutCancel(ctx)
	ch := b.group.DoChan(key, func() (interface{}, error) {
		work, cancel := context.WithTimeout(detached, b.timeout)
		defer cancel()
		var balance decimal.Decimal
		err := b.repo.WithTx(work, func(ctx context.Context, tx TxRepository) error {
			var err error
			balance, err = b.BalanceTx(ctx, tx, code, asOf)
			return err
		})
		return balance, err
	})
	select {
	case <-ctx.Done():
		return decimal.Zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return decimal.Zero, res.Err
		}
		return res.Val.(decimal.Decimal), nil
	}
}

// BalanceTx computes the balance inside an open transaction, so uncommitted
// lines of that transaction are included.
func (b *BalanceCalculator) BalanceTx(ctx context.Context, tx TxRepository, code string, asOf *time.Time) (decimal.Decimal, error) {
	account, err := tx.GetAccount(ctx, code)
	if err != nil {
		return decimal.Zero, err
	}
	debit, credit, err := tx.SumAccount(ctx, code, nil, asOf)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Type.SignedBalance(debit, credit), nil
}

// ApplyLines adds the signed effect of committed lines to each touched account's cache.
func (b *BalanceCalculator) ApplyLines(ctx context.Context, lines []JournalLine) error {
	type sides struct{ debit, credit decimal.Decimal }
	touched := make(map[string]*sides)
	for _, l := range lines {
		s, ok := touched[l.AccountCode]
		if !ok {
			s = &sides{debit: decimal.Zero, credit: decimal.Zero}
			touched[l.AccountCode] = s
		}
		s.debit = s.debit.Add(l.Debit)
		s.credit = s.credit.Add(l.Credit)
	}
	codes := make([]string, 0, len(touched))
	for code := range touched {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return b.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, code := range codes {
			account, err := tx.GetAccount(ctx, code)
			if err != nil {
				return err
			}
			s := touched[code]
			if err := tx.AdjustCachedBalance(ctx, code, account.Type.SignedBalance(s.debit, s.credit)); err != nil {
				return err
			}
		}
		return nil
	})
}

// BalanceDrift records a cached balance that disagreed with the ledger.
type BalanceDrift struct {
	AccountCode string
	Cached      decimal.Decimal
	Actual      decimal.Decimal
}

// RecalcReport summarises a RecalculateAll run.
type RecalcReport struct {
	Accounts int
	Drifts   []BalanceDrift
}

// RecalculateAll recomputes every active account's cache from the ledger in a
// single snapshot and overwrites the values that drifted.
func (b *BalanceCalculator) RecalculateAll(ctx context.Context) (RecalcReport, error) {
	var report RecalcReport
	err := b.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		report = RecalcReport{}
		list, err := tx.ListAccounts(ctx, accounts.ListFilter{ActiveOnly: true})
		if err != nil {
			return err
		}
		for _, account := range list {
			report.Accounts++
			debit, credit, err := tx.SumAccount(ctx, account.Code, nil, nil)
			if err != nil {
				return err
			}
			actual := account.Type.SignedBalance(debit, credit)
			if actual.Equal(account.CurrentBalance) {
				continue
			}
			if err := tx.SetCachedBalance(ctx, account.Code, actual); err != nil {
				return err
			}
			report.Drifts = append(report.Drifts, BalanceDrift{AccountCode: account.Code, Cached: account.CurrentBalance, Actual: actual})
		}
		return nil
	})
	if err != nil {
		return RecalcReport{}, err
	}
	for _, d := range report.Drifts {
		b.logger.Warn("cached balance drift corrected",
			slog.String("account", d.AccountCode),
			slog.String("cached", d.Cached.StringFixed(2)),
			slog.String("actual", d.Actual.StringFixed(2)))
	}
	return report, nil
}
