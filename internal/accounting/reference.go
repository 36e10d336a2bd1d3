package accounting

import (
	"fmt"
	"strconv"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// ReferenceType is the persisted discriminator of a Reference.
type ReferenceType string

const (
	ReferenceSale            ReferenceType = "SALE"
	ReferencePurchase        ReferenceType = "PURCHASE"
	ReferenceCustomerPayment ReferenceType = "CUSTOMER_PAYMENT"
	ReferenceVendorPayment   ReferenceType = "VENDOR_PAYMENT"
	ReferenceExpensePayment  ReferenceType = "EXPENSE_PAYMENT"
	ReferenceManual          ReferenceType = "MANUAL"
	ReferenceReversal        ReferenceType = "REVERSAL"
	ReferenceClosing         ReferenceType = "CLOSING"
)

// Reference identifies what produced a transaction group. The set of
// implementations is closed to this package.
type Reference interface {
	Type() ReferenceType
	String() string
	isReference()
}

// SaleRef points at a sale document.
type SaleRef struct{ SaleID int64 }

// PurchaseRef points at a purchase document.
type PurchaseRef struct{ PurchaseID int64 }

// CustomerPaymentRef points at a customer payment document.
type CustomerPaymentRef struct{ PaymentID int64 }

// VendorPaymentRef points at a vendor payment document.
type VendorPaymentRef struct{ PaymentID int64 }

// ExpensePaymentRef points at an expense payment document.
type ExpensePaymentRef struct{ PaymentID int64 }

// ManualRef carries a free-form operator reference.
type ManualRef struct{ Key string }

// ReversalRef links a reversal to the group it cancels.
type ReversalRef struct{ Original TransactionNumber }

// ClosingRef links closing entries to their period.
type ClosingRef struct{ PeriodID int64 }

func (SaleRef) Type() ReferenceType            { return ReferenceSale }
func (PurchaseRef) Type() ReferenceType        { return ReferencePurchase }
func (CustomerPaymentRef) Type() ReferenceType { return ReferenceCustomerPayment }
func (VendorPaymentRef) Type() ReferenceType   { return ReferenceVendorPayment }
func (ExpensePaymentRef) Type() ReferenceType  { return ReferenceExpensePayment }
func (ManualRef) Type() ReferenceType          { return ReferenceManual }
func (ReversalRef) Type() ReferenceType        { return ReferenceReversal }
func (ClosingRef) Type() ReferenceType         { return ReferenceClosing }

func (r SaleRef) String() string            { return fmt.Sprintf("sale:%d", r.SaleID) }
func (r PurchaseRef) String() string        { return fmt.Sprintf("purchase:%d", r.PurchaseID) }
func (r CustomerPaymentRef) String() string { return fmt.Sprintf("customer-payment:%d", r.PaymentID) }
func (r VendorPaymentRef) String() string   { return fmt.Sprintf("vendor-payment:%d", r.PaymentID) }
func (r ExpensePaymentRef) String() string  { return fmt.Sprintf("expense-payment:%d", r.PaymentID) }
func (r ManualRef) String() string          { return "manual:" + r.Key }
func (r ReversalRef) String() string        { return "reversal:" + string(r.Original) }
func (r ClosingRef) String() string         { return fmt.Sprintf("closing:%d", r.PeriodID) }

func (SaleRef) isReference()            {}
func (PurchaseRef) isReference()        {}
func (CustomerPaymentRef) isReference() {}
func (VendorPaymentRef) isReference()   {}
func (ExpensePaymentRef) isReference()  {}
func (ManualRef) isReference()          {}
func (ReversalRef) isReference()        {}
func (ClosingRef) isReference()         {}

// EncodedReference is the column form of a Reference.
type EncodedReference struct {
	Type ReferenceType
	ID   int64
	Key  string
}

// EncodeReference flattens a reference into its stored columns.
func EncodeReference(ref Reference) EncodedReference {
	switch r := ref.(type) {
	case SaleRef:
		return EncodedReference{Type: ReferenceSale, ID: r.SaleID}
	case PurchaseRef:
		return EncodedReference{Type: ReferencePurchase, ID: r.PurchaseID}
	case CustomerPaymentRef:
		return EncodedReference{Type: ReferenceCustomerPayment, ID: r.PaymentID}
	case VendorPaymentRef:
		return EncodedReference{Type: ReferenceVendorPayment, ID: r.PaymentID}
	case ExpensePaymentRef:
		return EncodedReference{Type: ReferenceExpensePayment, ID: r.PaymentID}
	case ManualRef:
		return EncodedReference{Type: ReferenceManual, Key: r.Key}
	case ReversalRef:
		return EncodedReference{Type: ReferenceReversal, Key: string(r.Original)}
	case ClosingRef:
		return EncodedReference{Type: ReferenceClosing, ID: r.PeriodID, Key: strconv.FormatInt(r.PeriodID, 10)}
	default:
		return EncodedReference{}
	}
}

// DecodeReference rebuilds a Reference from stored columns.
func DecodeReference(enc EncodedReference) (Reference, error) {
	switch enc.Type {
	case ReferenceSale:
		return SaleRef{SaleID: enc.ID}, nil
	case ReferencePurchase:
		return PurchaseRef{PurchaseID: enc.ID}, nil
	case ReferenceCustomerPayment:
		return CustomerPaymentRef{PaymentID: enc.ID}, nil
	case ReferenceVendorPayment:
		return VendorPaymentRef{PaymentID: enc.ID}, nil
	case ReferenceExpensePayment:
		return ExpensePaymentRef{PaymentID: enc.ID}, nil
	case ReferenceManual:
		return ManualRef{Key: enc.Key}, nil
	case ReferenceReversal:
		return ReversalRef{Original: TransactionNumber(enc.Key)}, nil
	case ReferenceClosing:
		return ClosingRef{PeriodID: enc.ID}, nil
	default:
		return nil, &shared.FieldError{Field: "reference_type", Message: fmt.Sprintf("unknown reference type %q", enc.Type), Kind: shared.ErrIntegrity}
	}
}
