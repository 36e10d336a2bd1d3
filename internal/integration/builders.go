package integration

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// SaleAccounts is the resolved account set for a sale.
type SaleAccounts struct {
	Receivable string
	Revenue    string
	Discount   string
	Shipping   string
	Tax        string
	COGS       string
	Inventory  string
}

// BuildSaleLines derives the sale entry: the receivable and any discount are
// debited against revenue, shipping and tax; COGS moves cost out of inventory.
func BuildSaleLines(sale Sale, acc SaleAccounts) ([]accounting.JournalLine, error) {
	net := sale.NetSaleAmount()
	if !net.IsPositive() {
		return nil, shared.Invalid("total_amount", fmt.Sprintf("sale %d has no positive amount", sale.ID))
	}
	memo := fmt.Sprintf("Sale #%d", sale.ID)
	lines := []accounting.JournalLine{accounting.NewDebit(acc.Receivable, net, memo)}
	if sale.DiscountAmount.IsPositive() {
		lines = append(lines, accounting.NewDebit(acc.Discount, sale.DiscountAmount, memo+" discount"))
	}
	if sale.Subtotal.IsPositive() {
		lines = append(lines, accounting.NewCredit(acc.Revenue, sale.Subtotal, memo))
	}
	if sale.ShippingAmount.IsPositive() {
		lines = append(lines, accounting.NewCredit(acc.Shipping, sale.ShippingAmount, memo+" shipping"))
	}
	if sale.TaxAmount.IsPositive() {
		lines = append(lines, accounting.NewCredit(acc.Tax, sale.TaxAmount, memo+" sales tax"))
	}
	if cogs := sale.CostOfGoods(); cogs.IsPositive() {
		lines = append(lines,
			accounting.NewDebit(acc.COGS, cogs, memo+" cost of goods"),
			accounting.NewCredit(acc.Inventory, cogs, memo+" cost of goods"),
		)
	}
	return lines, nil
}

// BuildPurchaseLines debits the item account and raises the payable.
func BuildPurchaseLines(p Purchase, itemAccount, payable string) ([]accounting.JournalLine, error) {
	memo := fmt.Sprintf("Purchase #%d", p.ID)
	return pair(itemAccount, payable, p.TotalCost, memo, "total_cost")
}

// BuildCustomerPaymentLines moves a receivable into the method's cash account.
func BuildCustomerPaymentLines(p CustomerPayment, receivable string) ([]accounting.JournalLine, error) {
	memo := fmt.Sprintf("Customer payment #%d", p.ID)
	return pair(ResolveCashAccount(p.PaymentMethod), receivable, p.Amount, memo, "amount")
}

// BuildVendorPaymentLines settles a payable out of the method's cash account.
func BuildVendorPaymentLines(p VendorPayment, payable string) ([]accounting.JournalLine, error) {
	memo := fmt.Sprintf("Vendor payment #%d", p.ID)
	return pair(payable, ResolveCashAccount(p.PaymentMethod), p.Amount, memo, "amount")
}

// BuildExpensePaymentLines books the expense against the method's cash account.
func BuildExpensePaymentLines(p ExpensePayment, expenseAccount string) ([]accounting.JournalLine, error) {
	memo := p.Description
	if memo == "" {
		memo = fmt.Sprintf("Expense payment #%d", p.ID)
	}
	return pair(expenseAccount, ResolveCashAccount(p.PaymentMethod), p.Amount, memo, "amount")
}

func pair(debit, credit string, amount decimal.Decimal, memo, field string) ([]accounting.JournalLine, error) {
	if !amount.IsPositive() {
		return nil, shared.Invalid(field, "must be positive")
	}
	return []accounting.JournalLine{
		accounting.NewDebit(debit, amount, memo),
		accounting.NewCredit(credit, amount, memo),
	}, nil
}
