package integration

import (
	"strings"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

var cashAccounts = map[string]string{
	"cash":          accounts.CodeCash,
	"check":         accounts.CodeBankChecking,
	"debit card":    accounts.CodeBankChecking,
	"bank transfer": accounts.CodeBankChecking,
	"ach":           accounts.CodeBankChecking,
	"wire":          accounts.CodeBankChecking,
	"credit card":   accounts.CodeCreditCardClearing,
	"paypal":        accounts.CodePayPal,
	"stripe":        accounts.CodeStripe,
	"square":        accounts.CodeSquare,
}

// ResolveCashAccount maps a payment method onto the account that receives or
// pays out the money. Unknown methods land in cash.
func ResolveCashAccount(method string) string {
	if code, ok := cashAccounts[strings.ToLower(strings.TrimSpace(method))]; ok {
		return code
	}
	return accounts.CodeCash
}
