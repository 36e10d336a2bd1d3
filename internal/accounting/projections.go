package accounting

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// AccountActivityTx joins the chart with the window's line totals. Accounts
// without lines are returned with zero totals.
func AccountActivityTx(ctx context.Context, tx TxRepository, from, to *time.Time) ([]reports.AccountBalance, error) {
	list, err := tx.ListAccounts(ctx, accounts.ListFilter{})
	if err != nil {
		return nil, err
	}
	totals, err := tx.AccountTotals(ctx, from, to)
	if err != nil {
		return nil, err
	}
	byCode := make(map[string]AccountTotals, len(totals))
	for _, t := range totals {
		byCode[t.AccountCode] = t
	}
	out := make([]reports.AccountBalance, 0, len(list))
	for _, a := range list {
		row := reports.AccountBalance{Code: a.Code, Name: a.Name, Type: a.Type, Debit: decimal.Zero, Credit: decimal.Zero}
		if t, ok := byCode[a.Code]; ok {
			row.Debit, row.Credit = t.Debit, t.Credit
		}
		out = append(out, row)
	}
	return out, nil
}

// TrialBalance projects debit and credit activity per account for the window.
func (s *Service) TrialBalance(ctx context.Context, from, to *time.Time) (reports.TrialBalance, error) {
	if from != nil && to != nil && to.Before(*from) {
		return reports.TrialBalance{}, shared.Invalid("to", "must not precede from")
	}
	var tb reports.TrialBalance
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rows, err := AccountActivityTx(ctx, tx, from, to)
		if err != nil {
			return err
		}
		tb = reports.BuildTrialBalance(rows)
		return nil
	})
	return tb, err
}
