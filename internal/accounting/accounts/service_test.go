package accounts_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/memstore"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

func newRegistry(t *testing.T) (*accounts.Registry, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	reg := accounts.NewRegistry(store, nil)
	reg.WithNow(func() time.Time { return time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC) })
	_, err := reg.SeedDefaults(context.Background(), nil)
	require.NoError(t, err)
	return reg, store
}

func TestCreateAccountValidation(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		account accounts.Account
		want    error
	}{
		{"empty code", accounts.Account{Name: "Petty", Type: accounts.AccountTypeAsset}, shared.ErrValidation},
		{"empty name", accounts.Account{Code: "1050", Type: accounts.AccountTypeAsset}, shared.ErrValidation},
		{"unknown type", accounts.Account{Code: "1050", Name: "Petty", Type: "INCOME"}, shared.ErrValidation},
		{"duplicate", accounts.Account{Code: accounts.CodeCash, Name: "Cash again", Type: accounts.AccountTypeAsset}, shared.ErrDuplicateAccountCode},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := reg.CreateAccount(ctx, tc.account)
			require.ErrorIs(t, err, tc.want)
			require.ErrorIs(t, err, shared.ErrValidation)
		})
	}

	created, err := reg.CreateAccount(ctx, accounts.Account{Code: " 1050 ", Name: "Petty Cash", Type: accounts.AccountTypeAsset})
	require.NoError(t, err)
	require.Equal(t, "1050", created.Code)
	require.True(t, created.IsActive)
	require.False(t, created.CreatedAt.IsZero())
	require.Equal(t, accounts.SideDebit, created.NormalSide())
}

func TestUpdateSystemAccountKeepsCodeAndType(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()

	cash, err := reg.GetAccountByCode(ctx, accounts.CodeCash)
	require.NoError(t, err)
	require.True(t, cash.IsSystemAccount)

	_, err = reg.UpdateAccount(ctx, accounts.Account{ID: cash.ID, Code: "1001", Name: cash.Name, Type: cash.Type, IsActive: true})
	require.ErrorIs(t, err, shared.ErrSystemAccountImmutable)
	require.ErrorIs(t, err, shared.ErrState)

	_, err = reg.UpdateAccount(ctx, accounts.Account{ID: cash.ID, Code: cash.Code, Name: cash.Name, Type: accounts.AccountTypeExpense, IsActive: true})
	require.ErrorIs(t, err, shared.ErrSystemAccountImmutable)

	renamed, err := reg.UpdateAccount(ctx, accounts.Account{ID: cash.ID, Code: cash.Code, Name: "Till", Type: cash.Type, IsActive: true})
	require.NoError(t, err)
	require.Equal(t, "Till", renamed.Name)
	require.True(t, renamed.IsSystemAccount)
}

func TestUpdateAccountRecodesNonSystemAccount(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()

	created, err := reg.CreateAccount(ctx, accounts.Account{Code: "6100", Name: "Rent", Type: accounts.AccountTypeExpense})
	require.NoError(t, err)

	updated, err := reg.UpdateAccount(ctx, accounts.Account{ID: created.ID, Code: "6110", Name: "Office Rent", Type: accounts.AccountTypeExpense, IsActive: true})
	require.NoError(t, err)
	require.Equal(t, "6110", updated.Code)

	_, err = reg.GetAccountByCode(ctx, "6100")
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = reg.UpdateAccount(ctx, accounts.Account{ID: created.ID, Code: accounts.CodeCash, Name: "Clash", Type: accounts.AccountTypeExpense, IsActive: true})
	require.ErrorIs(t, err, shared.ErrDuplicateAccountCode)

	_, err = reg.UpdateAccount(ctx, accounts.Account{ID: 9999, Code: "7000", Name: "Ghost", Type: accounts.AccountTypeExpense})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateAccountWithActivityKeepsCodeAndType(t *testing.T) {
	reg, store := newRegistry(t)
	ctx := context.Background()

	created, err := reg.CreateAccount(ctx, accounts.Account{Code: "6100", Name: "Rent", Type: accounts.AccountTypeExpense})
	require.NoError(t, err)
	store.SeedLines(accounting.JournalLine{
		TransactionNumber: "JE-20240105-001",
		Date:              time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		AccountCode:       "6100",
		Debit:             decimal.NewFromInt(500),
		Credit:            decimal.Zero,
	})

	_, err = reg.UpdateAccount(ctx, accounts.Account{ID: created.ID, Code: "6110", Name: "Rent", Type: accounts.AccountTypeExpense, IsActive: true})
	require.ErrorIs(t, err, shared.ErrAccountInUse)
	require.ErrorIs(t, err, shared.ErrState)

	_, err = reg.UpdateAccount(ctx, accounts.Account{ID: created.ID, Code: "6100", Name: "Rent", Type: accounts.AccountTypeAsset, IsActive: true})
	require.ErrorIs(t, err, shared.ErrAccountInUse)

	current, err := reg.GetAccountByCode(ctx, "6100")
	require.NoError(t, err)
	require.Equal(t, accounts.AccountTypeExpense, current.Type)
	_, err = reg.GetAccountByCode(ctx, "6110")
	require.ErrorIs(t, err, shared.ErrNotFound)

	ok, err := reg.CanDeleteAccount(ctx, "6100")
	require.NoError(t, err)
	require.False(t, ok)

	renamed, err := reg.UpdateAccount(ctx, accounts.Account{ID: created.ID, Code: "6100", Name: "Office Rent", Type: accounts.AccountTypeExpense, IsActive: false})
	require.NoError(t, err)
	require.Equal(t, "Office Rent", renamed.Name)
	require.False(t, renamed.IsActive)
}

func TestUpdateSystemAccountStaysActive(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()

	cye, err := reg.GetAccountByCode(ctx, accounts.CodeCurrentYearEarnings)
	require.NoError(t, err)

	_, err = reg.UpdateAccount(ctx, accounts.Account{ID: cye.ID, Code: cye.Code, Name: cye.Name, Type: cye.Type, IsActive: false})
	require.ErrorIs(t, err, shared.ErrSystemAccountRequired)
	require.ErrorIs(t, err, shared.ErrState)

	current, err := reg.GetAccountByCode(ctx, accounts.CodeCurrentYearEarnings)
	require.NoError(t, err)
	require.True(t, current.IsActive)
}

func TestCanDeleteAccount(t *testing.T) {
	reg, store := newRegistry(t)
	ctx := context.Background()

	ok, err := reg.CanDeleteAccount(ctx, accounts.CodeCash)
	require.NoError(t, err)
	require.False(t, ok, "system accounts are protected")

	_, err = reg.CreateAccount(ctx, accounts.Account{Code: "6100", Name: "Rent", Type: accounts.AccountTypeExpense})
	require.NoError(t, err)
	_, err = reg.CreateAccount(ctx, accounts.Account{Code: "6200", Name: "Utilities", Type: accounts.AccountTypeExpense})
	require.NoError(t, err)

	store.SeedLines(accounting.JournalLine{
		TransactionNumber: "JE-20240105-001",
		Date:              time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		AccountCode:       "6100",
		Debit:             decimal.NewFromInt(10),
		Credit:            decimal.Zero,
	})

	ok, err = reg.CanDeleteAccount(ctx, "6100")
	require.NoError(t, err)
	require.False(t, ok, "referenced by a journal line")

	require.ErrorIs(t, reg.DeleteAccount(ctx, "6100"), shared.ErrAccountInUse)
	require.NoError(t, reg.DeleteAccount(ctx, "6200"))

	_, err = reg.GetAccountByCode(ctx, "6200")
	require.True(t, errors.Is(err, shared.ErrAccountNotFound))

	_, err = reg.CanDeleteAccount(ctx, "nope")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSeedDefaultsIsIdempotent(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()

	res, err := reg.SeedDefaults(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, res.Created)
	require.Len(t, res.Skipped, len(accounts.DefaultChart()))

	for _, code := range []string{accounts.CodeRetainedEarnings, accounts.CodeCurrentYearEarnings} {
		a, err := reg.GetAccountByCode(ctx, code)
		require.NoError(t, err)
		require.True(t, a.IsSystemAccount)
		require.Equal(t, accounts.AccountTypeEquity, a.Type)
	}
}

func TestListAccountsFilters(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()

	revenue, err := reg.ListAccounts(ctx, accounts.ListFilter{Type: accounts.AccountTypeRevenue})
	require.NoError(t, err)
	require.NotEmpty(t, revenue)
	for _, a := range revenue {
		require.Equal(t, accounts.AccountTypeRevenue, a.Type)
		require.Equal(t, accounts.SideCredit, a.NormalSide())
	}

	shipping, err := reg.GetAccountByCode(ctx, accounts.CodeShippingRevenue)
	require.NoError(t, err)
	_, err = reg.UpdateAccount(ctx, accounts.Account{ID: shipping.ID, Code: shipping.Code, Name: shipping.Name, Type: shipping.Type, IsActive: false})
	require.NoError(t, err)

	active, err := reg.ListAccounts(ctx, accounts.ListFilter{Type: accounts.AccountTypeRevenue, ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, len(revenue)-1)
}
