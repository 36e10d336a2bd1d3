package accounts

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// NormalSide is the side on which an account's balance naturally grows.
type NormalSide string

const (
	SideDebit  NormalSide = "DEBIT"
	SideCredit NormalSide = "CREDIT"
)

// Valid reports whether t is one of the five ledger categories.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	default:
		return false
	}
}

// NormalSide derives the balance side from the account type.
func (t AccountType) NormalSide() NormalSide {
	if t == AccountTypeAsset || t == AccountTypeExpense {
		return SideDebit
	}
	return SideCredit
}

// SignedBalance expresses debit and credit totals on the type's normal side.
func (t AccountType) SignedBalance(debit, credit decimal.Decimal) decimal.Decimal {
	if t.NormalSide() == SideDebit {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}

// Account models a chart of accounts node.
type Account struct {
	ID              int64
	Code            string
	Name            string
	Type            AccountType
	Subtype         string
	IsSystemAccount bool
	IsActive        bool
	// CurrentBalance is a cache; the ledger lines are authoritative.
	CurrentBalance decimal.Decimal
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NormalSide returns the account's natural balance side.
func (a Account) NormalSide() NormalSide {
	return a.Type.NormalSide()
}

// ListFilter narrows account listings.
type ListFilter struct {
	Type       AccountType
	ActiveOnly bool
}

// Match reports whether the account satisfies the filter.
func (f ListFilter) Match(a Account) bool {
	if f.Type != "" && a.Type != f.Type {
		return false
	}
	if f.ActiveOnly && !a.IsActive {
		return false
	}
	return true
}
