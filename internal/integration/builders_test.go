package integration

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestResolveCashAccount(t *testing.T) {
	cases := map[string]string{
		"Cash":          accounts.CodeCash,
		" CHECK ":       accounts.CodeBankChecking,
		"debit card":    accounts.CodeBankChecking,
		"Bank Transfer": accounts.CodeBankChecking,
		"ach":           accounts.CodeBankChecking,
		"Wire":          accounts.CodeBankChecking,
		"credit card":   accounts.CodeCreditCardClearing,
		"PayPal":        accounts.CodePayPal,
		"stripe":        accounts.CodeStripe,
		"Square":        accounts.CodeSquare,
		"barter":        accounts.CodeCash,
		"":              accounts.CodeCash,
	}
	for method, want := range cases {
		assert.Equal(t, want, ResolveCashAccount(method), method)
	}
}

func TestNetSaleAmount(t *testing.T) {
	sale := Sale{Subtotal: dec("1000"), DiscountAmount: dec("50"), ShippingAmount: dec("20"), TaxAmount: dec("80")}
	assert.True(t, sale.NetSaleAmount().Equal(dec("1050")))

	sale.TotalAmount = dec("1049.99")
	assert.True(t, sale.NetSaleAmount().Equal(dec("1049.99")))
}

func TestBuildSaleLinesBalances(t *testing.T) {
	sale := Sale{
		ID:             4,
		Subtotal:       dec("1000"),
		DiscountAmount: dec("50"),
		ShippingAmount: dec("20"),
		TaxAmount:      dec("80"),
		Items: []SaleItem{
			{Quantity: dec("3"), UnitCost: dec("33.333")},
			{Quantity: dec("1"), UnitCost: dec("0")},
		},
	}
	lines, err := BuildSaleLines(sale, SaleAccounts{
		Receivable: "AR", Revenue: "REV", Discount: "DISC", Shipping: "SHIP", Tax: "TAX", COGS: "COGS", Inventory: "INV",
	})
	require.NoError(t, err)
	require.Len(t, lines, 7)
	debit, credit := accounting.Totals(lines)
	assert.True(t, debit.Equal(credit))
	assert.True(t, lines[5].Debit.Equal(dec("100")), "cogs rounded to cents")
	for _, l := range lines {
		require.NoError(t, l.Validate())
	}

	plain, err := BuildSaleLines(Sale{ID: 5, Subtotal: dec("10")}, SaleAccounts{Receivable: "AR", Revenue: "REV"})
	require.NoError(t, err)
	require.Len(t, plain, 2)

	_, err = BuildSaleLines(Sale{ID: 6}, SaleAccounts{})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestBuildPaymentLines(t *testing.T) {
	lines, err := BuildVendorPaymentLines(VendorPayment{Payment{ID: 1, Amount: dec("75"), PaymentMethod: "wire"}}, accounts.CodeAccountsPayable)
	require.NoError(t, err)
	assert.Equal(t, accounts.CodeAccountsPayable, lines[0].AccountCode)
	assert.True(t, lines[0].IsDebit())
	assert.Equal(t, accounts.CodeBankChecking, lines[1].AccountCode)

	lines, err = BuildExpensePaymentLines(ExpensePayment{Payment: Payment{ID: 2, Amount: dec("12.5"), PaymentMethod: "paypal"}, Description: "Domain renewal"}, "6100")
	require.NoError(t, err)
	assert.Equal(t, "Domain renewal", lines[0].Description)
	assert.Equal(t, accounts.CodePayPal, lines[1].AccountCode)

	_, err = BuildPurchaseLines(Purchase{ID: 3}, accounts.CodeInventory, accounts.CodeAccountsPayable)
	require.ErrorIs(t, err, shared.ErrValidation)
}
