package reports

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestBuildTrialBalance(t *testing.T) {
	balances := []AccountBalance{
		{Code: "1010", Name: "Bank", Type: accounts.AccountTypeAsset, Debit: d("100"), Credit: d("50")},
		{Code: "1000", Name: "Cash", Type: accounts.AccountTypeAsset, Debit: d("200"), Credit: d("150")},
		{Code: "2000", Name: "Accounts Payable", Type: accounts.AccountTypeLiability, Debit: d("10"), Credit: d("60")},
		{Code: "6000", Name: "Operating Expenses", Type: accounts.AccountTypeExpense},
	}

	tb := BuildTrialBalance(balances)
	require.Len(t, tb.Groups, 2)
	assert.Equal(t, accounts.AccountTypeAsset, tb.Groups[0].Type)
	assert.Equal(t, "1000", tb.Groups[0].Accounts[0].Code)
	assert.True(t, tb.TotalDebit.Equal(d("310")))
	assert.True(t, tb.TotalCredit.Equal(d("260")))
	assert.True(t, tb.Difference.Equal(d("50")))
	assert.False(t, tb.Balanced)

	liability := tb.Groups[1].Accounts[0]
	assert.True(t, liability.Balance.Equal(d("50")))
}

func TestBuildTrialBalanceTolerance(t *testing.T) {
	tb := BuildTrialBalance([]AccountBalance{
		{Code: "1000", Type: accounts.AccountTypeAsset, Debit: d("100.004")},
		{Code: "4000", Type: accounts.AccountTypeRevenue, Credit: d("100")},
	})
	assert.True(t, tb.Balanced)

	tb = BuildTrialBalance([]AccountBalance{
		{Code: "1000", Type: accounts.AccountTypeAsset, Debit: d("101")},
		{Code: "4000", Type: accounts.AccountTypeRevenue, Credit: d("100")},
	})
	assert.False(t, tb.Balanced)
}

func TestBuildProfitAndLoss(t *testing.T) {
	balances := []AccountBalance{
		{Code: "4000", Name: "Sales", Type: accounts.AccountTypeRevenue, Credit: d("5000")},
		{Code: "4900", Name: "Sales Discounts", Type: accounts.AccountTypeRevenue, Debit: d("200")},
		{Code: "5000", Name: "COGS", Type: accounts.AccountTypeExpense, Debit: d("2000")},
		{Code: "6000", Name: "Opex", Type: accounts.AccountTypeExpense, Debit: d("1100"), Credit: d("100")},
		{Code: "1000", Name: "Cash", Type: accounts.AccountTypeAsset, Debit: d("9000")},
	}

	pl := BuildProfitAndLoss(balances)
	require.Len(t, pl.Revenue.Accounts, 2)
	require.Len(t, pl.Expense.Accounts, 2)
	assert.True(t, pl.Revenue.Accounts[1].Amount.Equal(d("-200")))
	assert.True(t, pl.Revenue.Total.Equal(d("4800")))
	assert.True(t, pl.Expense.Total.Equal(d("3000")))
	assert.True(t, pl.NetIncome.Equal(d("1800")))
}
