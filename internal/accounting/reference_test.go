package accounting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

func TestReferenceEncodingIsExhaustive(t *testing.T) {
	refs := []Reference{
		SaleRef{SaleID: 7},
		PurchaseRef{PurchaseID: 8},
		CustomerPaymentRef{PaymentID: 9},
		VendorPaymentRef{PaymentID: 10},
		ExpensePaymentRef{PaymentID: 11},
		ManualRef{Key: "adj-2024-01"},
		ReversalRef{Original: "SALE-20240131-001"},
		ClosingRef{PeriodID: 3},
	}
	for _, ref := range refs {
		enc := EncodeReference(ref)
		require.Equal(t, ref.Type(), enc.Type)
		decoded, err := DecodeReference(enc)
		require.NoError(t, err)
		assert.Equal(t, ref, decoded, ref.String())
	}

	_, err := DecodeReference(EncodedReference{Type: "INVOICE", ID: 1})
	require.ErrorIs(t, err, shared.ErrIntegrity)
}

func TestTransactionNumberParse(t *testing.T) {
	number := FormatTransactionNumber(PrefixCloseRevenue, time.Date(2024, 12, 31, 15, 0, 0, 0, time.UTC), 7)
	require.Equal(t, TransactionNumber("CLOSE-REV-20241231-007"), number)

	prefix, day, seq, err := number.Parse()
	require.NoError(t, err)
	assert.Equal(t, PrefixCloseRevenue, prefix)
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), day)
	assert.Equal(t, 7, seq)

	assert.Equal(t, Prefix("SALE"), TransactionNumber("SALE-20240101-1000").Prefix())

	for _, bad := range []TransactionNumber{"", "JE", "JE-20240131", "XX-20240131-001", "JE-2024013-001", "JE-20240131-abc", "JE-20240131-000"} {
		_, _, _, err := bad.Parse()
		assert.ErrorIs(t, err, shared.ErrInvalidTransactionNumber, string(bad))
	}
}

func TestPeriodContainsAndOverlaps(t *testing.T) {
	q1 := FinancialPeriod{StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)}
	q2 := FinancialPeriod{StartDate: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)}

	assert.True(t, q1.Contains(time.Date(2024, 3, 31, 23, 59, 0, 0, time.UTC)))
	assert.False(t, q1.Contains(q2.StartDate))
	assert.False(t, q1.Overlaps(q2))

	overlap := FinancialPeriod{StartDate: time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC)}
	assert.True(t, q1.Overlaps(overlap))
	assert.True(t, overlap.Overlaps(q2))
}
