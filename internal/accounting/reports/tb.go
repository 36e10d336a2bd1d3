package reports

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// AccountBalance models a general ledger account with aggregated activity.
type AccountBalance struct {
	Code   string
	Name   string
	Type   accounts.AccountType
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// Balance expresses the activity on the account's normal side.
func (a AccountBalance) Balance() decimal.Decimal {
	return a.Type.SignedBalance(a.Debit, a.Credit)
}

// TrialBalanceAccount represents a row inside a trial balance group.
type TrialBalanceAccount struct {
	Code    string
	Name    string
	Debit   decimal.Decimal
	Credit  decimal.Decimal
	Balance decimal.Decimal
}

// TrialBalanceGroup aggregates accounts of one type.
type TrialBalanceGroup struct {
	Type     accounts.AccountType
	Accounts []TrialBalanceAccount
	Debit    decimal.Decimal
	Credit   decimal.Decimal
}

// TrialBalance is the projection served to operators and the closing engine.
type TrialBalance struct {
	Groups      []TrialBalanceGroup
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	Difference  decimal.Decimal
	Balanced    bool
}

var typeOrder = []accounts.AccountType{
	accounts.AccountTypeAsset,
	accounts.AccountTypeLiability,
	accounts.AccountTypeEquity,
	accounts.AccountTypeRevenue,
	accounts.AccountTypeExpense,
}

// BuildTrialBalance converts account activity into grouped trial balance data.
// Accounts without activity are omitted.
func BuildTrialBalance(balances []AccountBalance) TrialBalance {
	groups := make(map[accounts.AccountType]*TrialBalanceGroup)
	result := TrialBalance{TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	for _, acc := range balances {
		if acc.Debit.IsZero() && acc.Credit.IsZero() {
			continue
		}
		grp, ok := groups[acc.Type]
		if !ok {
			grp = &TrialBalanceGroup{Type: acc.Type, Debit: decimal.Zero, Credit: decimal.Zero}
			groups[acc.Type] = grp
		}
		grp.Accounts = append(grp.Accounts, TrialBalanceAccount{
			Code:    acc.Code,
			Name:    acc.Name,
			Debit:   acc.Debit,
			Credit:  acc.Credit,
			Balance: acc.Balance(),
		})
		grp.Debit = grp.Debit.Add(acc.Debit)
		grp.Credit = grp.Credit.Add(acc.Credit)
	}

	for _, typ := range typeOrder {
		grp, ok := groups[typ]
		if !ok {
			continue
		}
		sort.Slice(grp.Accounts, func(i, j int) bool {
			return grp.Accounts[i].Code < grp.Accounts[j].Code
		})
		result.Groups = append(result.Groups, *grp)
		result.TotalDebit = result.TotalDebit.Add(grp.Debit)
		result.TotalCredit = result.TotalCredit.Add(grp.Credit)
	}
	result.Difference = result.TotalDebit.Sub(result.TotalCredit)
	result.Balanced = shared.IsBalanced(result.TotalDebit, result.TotalCredit)
	return result
}
