package accounts

// Well-known codes of the default chart.
const (
	CodeCash                 = "1000"
	CodeBankChecking         = "1010"
	CodeCreditCardClearing   = "1020"
	CodePayPal               = "1030"
	CodeStripe               = "1031"
	CodeSquare               = "1032"
	CodeAccountsReceivable   = "1100"
	CodeInventory            = "1200"
	CodeAccountsPayable      = "2000"
	CodeSalesTaxPayable      = "2200"
	CodeOwnersEquity         = "3000"
	CodeRetainedEarnings     = "3100"
	CodeCurrentYearEarnings  = "3200"
	CodeSalesRevenue         = "4000"
	CodeShippingRevenue      = "4100"
	CodeSalesDiscounts       = "4900"
	CodeCostOfGoodsSold      = "5000"
	CodeOperatingExpenses    = "6000"
	CodeMiscellaneousExpense = "6900"
)

// DefaultChart returns the chart installed on a fresh ledger.
func DefaultChart() []Account {
	return []Account{
		{Code: CodeCash, Name: "Cash on Hand", Type: AccountTypeAsset, Subtype: "Cash", IsSystemAccount: true},
		{Code: CodeBankChecking, Name: "Bank Checking", Type: AccountTypeAsset, Subtype: "Cash", IsSystemAccount: true},
		{Code: CodeCreditCardClearing, Name: "Credit Card Clearing", Type: AccountTypeAsset, Subtype: "Cash"},
		{Code: CodePayPal, Name: "PayPal Balance", Type: AccountTypeAsset, Subtype: "Cash"},
		{Code: CodeStripe, Name: "Stripe Balance", Type: AccountTypeAsset, Subtype: "Cash"},
		{Code: CodeSquare, Name: "Square Balance", Type: AccountTypeAsset, Subtype: "Cash"},
		{Code: CodeAccountsReceivable, Name: "Accounts Receivable", Type: AccountTypeAsset, Subtype: "Receivable", IsSystemAccount: true},
		{Code: CodeInventory, Name: "Inventory", Type: AccountTypeAsset, Subtype: "Inventory", IsSystemAccount: true},
		{Code: CodeAccountsPayable, Name: "Accounts Payable", Type: AccountTypeLiability, Subtype: "Payable", IsSystemAccount: true},
		{Code: CodeSalesTaxPayable, Name: "Sales Tax Payable", Type: AccountTypeLiability, Subtype: "Tax", IsSystemAccount: true},
		{Code: CodeOwnersEquity, Name: "Owner's Equity", Type: AccountTypeEquity, Subtype: "Capital"},
		{Code: CodeRetainedEarnings, Name: "Retained Earnings", Type: AccountTypeEquity, Subtype: "RetainedEarnings", IsSystemAccount: true},
		{Code: CodeCurrentYearEarnings, Name: "Current Year Earnings", Type: AccountTypeEquity, Subtype: "CurrentYearEarnings", IsSystemAccount: true},
		{Code: CodeSalesRevenue, Name: "Sales Revenue", Type: AccountTypeRevenue, Subtype: "Sales", IsSystemAccount: true},
		{Code: CodeShippingRevenue, Name: "Shipping Revenue", Type: AccountTypeRevenue, Subtype: "Sales"},
		{Code: CodeSalesDiscounts, Name: "Sales Discounts", Type: AccountTypeRevenue, Subtype: "ContraRevenue"},
		{Code: CodeCostOfGoodsSold, Name: "Cost of Goods Sold", Type: AccountTypeExpense, Subtype: "COGS", IsSystemAccount: true},
		{Code: CodeOperatingExpenses, Name: "Operating Expenses", Type: AccountTypeExpense, Subtype: "Operating"},
		{Code: CodeMiscellaneousExpense, Name: "Miscellaneous Expense", Type: AccountTypeExpense, Subtype: "Operating"},
	}
}
