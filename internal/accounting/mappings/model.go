package mappings

import (
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

// AccountMapping links integration keys to ledger accounts.
type AccountMapping struct {
	Module      string
	Key         string
	AccountCode string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Modules.
const (
	ModuleSales      = "SALES"
	ModulePurchasing = "PURCHASING"
	ModuleExpenses   = "EXPENSES"
)

// Keys within the modules.
const (
	KeyAccountsReceivable = "AR"
	KeySalesRevenue       = "REVENUE"
	KeyShippingRevenue    = "SHIPPING_REVENUE"
	KeySalesDiscount      = "DISCOUNT"
	KeySalesTax           = "TAX_PAYABLE"
	KeyCostOfGoodsSold    = "COGS"
	KeyInventory          = "INVENTORY"
	KeyAccountsPayable    = "AP"
	KeyDefaultExpense     = "DEFAULT_EXPENSE"
)

// Defaults returns the fallback mapping set, matching the default chart.
func Defaults() []AccountMapping {
	return []AccountMapping{
		{Module: ModuleSales, Key: KeyAccountsReceivable, AccountCode: accounts.CodeAccountsReceivable},
		{Module: ModuleSales, Key: KeySalesRevenue, AccountCode: accounts.CodeSalesRevenue},
		{Module: ModuleSales, Key: KeyShippingRevenue, AccountCode: accounts.CodeShippingRevenue},
		{Module: ModuleSales, Key: KeySalesDiscount, AccountCode: accounts.CodeSalesDiscounts},
		{Module: ModuleSales, Key: KeySalesTax, AccountCode: accounts.CodeSalesTaxPayable},
		{Module: ModuleSales, Key: KeyCostOfGoodsSold, AccountCode: accounts.CodeCostOfGoodsSold},
		{Module: ModuleSales, Key: KeyInventory, AccountCode: accounts.CodeInventory},
		{Module: ModulePurchasing, Key: KeyInventory, AccountCode: accounts.CodeInventory},
		{Module: ModulePurchasing, Key: KeyAccountsPayable, AccountCode: accounts.CodeAccountsPayable},
		{Module: ModuleExpenses, Key: KeyDefaultExpense, AccountCode: accounts.CodeOperatingExpenses},
	}
}

var defaults = func() map[string]string {
	out := make(map[string]string)
	for _, m := range Defaults() {
		out[m.Module+"/"+m.Key] = m.AccountCode
	}
	return out
}()

// DefaultCode returns the built-in code for a module key.
func DefaultCode(module, key string) (string, bool) {
	code, ok := defaults[module+"/"+key]
	return code, ok
}
