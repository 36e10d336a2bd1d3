package integration

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

// SaleItem is a sold line with its unit cost for COGS.
type SaleItem struct {
	SKU       string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	UnitCost  decimal.Decimal
}

// Sale is the collaborator-owned sales document.
type Sale struct {
	ID                 int64
	Date               time.Time
	CustomerName       string
	Subtotal           decimal.Decimal
	DiscountAmount     decimal.Decimal
	ShippingAmount     decimal.Decimal
	TaxAmount          decimal.Decimal
	TotalAmount        decimal.Decimal
	RevenueAccountCode string
	Items              []SaleItem

	JournalEntryNumber      accounting.TransactionNumber
	IsJournalEntryGenerated bool
}

// Purchase is a vendor purchase recorded on account.
type Purchase struct {
	ID              int64
	Date            time.Time
	VendorName      string
	TotalCost       decimal.Decimal
	ItemAccountCode string

	JournalEntryNumber      accounting.TransactionNumber
	IsJournalEntryGenerated bool
}

// Payment is a customer or vendor payment.
type Payment struct {
	ID            int64
	Date          time.Time
	Amount        decimal.Decimal
	PaymentMethod string

	JournalEntryNumber      accounting.TransactionNumber
	IsJournalEntryGenerated bool
}

// CustomerPayment settles accounts receivable.
type CustomerPayment struct{ Payment }

// VendorPayment settles accounts payable.
type VendorPayment struct{ Payment }

// ExpensePayment is a direct expense paid out of cash.
type ExpensePayment struct {
	Payment
	ExpenseAccountCode string
	Description        string
}

func (s Sale) Ref() accounting.Reference            { return accounting.SaleRef{SaleID: s.ID} }
func (p Purchase) Ref() accounting.Reference        { return accounting.PurchaseRef{PurchaseID: p.ID} }
func (p CustomerPayment) Ref() accounting.Reference { return accounting.CustomerPaymentRef{PaymentID: p.ID} }
func (p VendorPayment) Ref() accounting.Reference   { return accounting.VendorPaymentRef{PaymentID: p.ID} }
func (p ExpensePayment) Ref() accounting.Reference  { return accounting.ExpensePaymentRef{PaymentID: p.ID} }

// NetSaleAmount is the receivable raised by the sale. A zero total is derived
// from its components.
func (s Sale) NetSaleAmount() decimal.Decimal {
	if !s.TotalAmount.IsZero() {
		return s.TotalAmount
	}
	return s.Subtotal.Sub(s.DiscountAmount).Add(s.ShippingAmount).Add(s.TaxAmount)
}

// CostOfGoods sums unit cost times quantity over the items, rounded to cents.
func (s Sale) CostOfGoods() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.Items {
		total = total.Add(item.UnitCost.Mul(item.Quantity))
	}
	return total.Round(2)
}
