package accounting

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Prefix identifies the origin of a transaction number.
type Prefix string

const (
	PrefixSale            Prefix = "SALE"
	PrefixPurchase        Prefix = "PUR"
	PrefixCustomerPayment Prefix = "CPAY"
	PrefixVendorPayment   Prefix = "VPAY"
	PrefixExpensePayment  Prefix = "EXP"
	PrefixManual          Prefix = "JE"
	PrefixReversal        Prefix = "REV"
	PrefixCloseRevenue    Prefix = "CLOSE-REV"
	PrefixCloseExpense    Prefix = "CLOSE-EXP"
	PrefixCloseRetained   Prefix = "CLOSE-RE"
)

var knownPrefixes = []Prefix{
	PrefixSale, PrefixPurchase, PrefixCustomerPayment, PrefixVendorPayment, PrefixExpensePayment,
	PrefixManual, PrefixReversal, PrefixCloseRevenue, PrefixCloseExpense, PrefixCloseRetained,
}

// Valid reports whether p is a known prefix.
func (p Prefix) Valid() bool {
	for _, known := range knownPrefixes {
		if p == known {
			return true
		}
	}
	return false
}

const numberDateLayout = "20060102"

// maxNumberAttempts bounds the retry loop when an allocated number is already taken.
const maxNumberAttempts = 5

// TransactionNumber groups the lines of one balanced entry, e.g. SALE-20240131-007.
type TransactionNumber string

// FormatTransactionNumber renders {PREFIX}-{yyyyMMdd}-{seq:03d}.
func FormatTransactionNumber(prefix Prefix, date time.Time, seq int) TransactionNumber {
	return TransactionNumber(fmt.Sprintf("%s-%s-%03d", prefix, date.Format(numberDateLayout), seq))
}

// Parse splits the number into prefix, day and sequence.
func (n TransactionNumber) Parse() (Prefix, time.Time, int, error) {
	s := string(n)
	last := strings.LastIndex(s, "-")
	if last <= 0 {
		return "", time.Time{}, 0, fmt.Errorf("%w: %q", shared.ErrInvalidTransactionNumber, s)
	}
	dash := strings.LastIndex(s[:last], "-")
	if dash <= 0 {
		return "", time.Time{}, 0, fmt.Errorf("%w: %q", shared.ErrInvalidTransactionNumber, s)
	}
	prefix := Prefix(s[:dash])
	if !prefix.Valid() {
		return "", time.Time{}, 0, fmt.Errorf("%w: prefix %q", shared.ErrInvalidTransactionNumber, prefix)
	}
	day, err := time.Parse(numberDateLayout, s[dash+1:last])
	if err != nil {
		return "", time.Time{}, 0, fmt.Errorf("%w: %q", shared.ErrInvalidTransactionNumber, s)
	}
	seq, err := strconv.Atoi(s[last+1:])
	if err != nil || seq <= 0 {
		return "", time.Time{}, 0, fmt.Errorf("%w: %q", shared.ErrInvalidTransactionNumber, s)
	}
	return prefix, day, seq, nil
}

// Prefix returns the number's prefix or an empty string when malformed.
func (n TransactionNumber) Prefix() Prefix {
	p, _, _, err := n.Parse()
	if err != nil {
		return ""
	}
	return p
}

// NextTransactionNumber allocates the next free number for prefix and day.
func (s *Service) NextTransactionNumber(ctx context.Context, prefix Prefix, date time.Time) (TransactionNumber, error) {
	var number TransactionNumber
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		n, err := s.nextNumber(ctx, tx, prefix, date)
		number = n
		return err
	})
	return number, err
}

func (s *Service) nextNumber(ctx context.Context, tx TxRepository, prefix Prefix, date time.Time) (TransactionNumber, error) {
	if !prefix.Valid() {
		return "", fmt.Errorf("%w: prefix %q", shared.ErrInvalidTransactionNumber, prefix)
	}
	day := truncateDay(date)
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		seq, err := tx.NextSequence(ctx, prefix, day)
		if err != nil {
			return "", fmt.Errorf("accounting: allocate sequence: %w", err)
		}
		number := FormatTransactionNumber(prefix, day, seq)
		exists, err := tx.TransactionExists(ctx, number)
		if err != nil {
			return "", err
		}
		if !exists {
			return number, nil
		}
		s.logger.Warn("transaction number collision", slog.String("number", string(number)), slog.Int("attempt", attempt))
	}
	return "", fmt.Errorf("%w: no free number for %s on %s", shared.ErrDuplicateTransaction, prefix, day.Format(numberDateLayout))
}
