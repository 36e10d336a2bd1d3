package accounting

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// JournalLine is a single debit or credit inside a transaction group.
// Lines are append-only; corrections go through reversal.
type JournalLine struct {
	ID                int64
	TransactionNumber TransactionNumber
	Date              time.Time
	AccountCode       string
	Debit             decimal.Decimal
	Credit            decimal.Decimal
	Reference         Reference
	Description       string
	CreatedBy         string
	CreatedAt         time.Time
}

// NewDebit builds a debit line for the account.
func NewDebit(accountCode string, amount decimal.Decimal, description string) JournalLine {
	return JournalLine{AccountCode: accountCode, Debit: amount, Credit: decimal.Zero, Description: description}
}

// NewCredit builds a credit line for the account.
func NewCredit(accountCode string, amount decimal.Decimal, description string) JournalLine {
	return JournalLine{AccountCode: accountCode, Debit: decimal.Zero, Credit: amount, Description: description}
}

// IsDebit reports whether the line carries its amount on the debit side.
func (l JournalLine) IsDebit() bool {
	return !l.Debit.IsZero()
}

// Amount returns the non-zero side of the line.
func (l JournalLine) Amount() decimal.Decimal {
	if l.IsDebit() {
		return l.Debit
	}
	return l.Credit
}

// Swapped returns the line with debit and credit exchanged.
func (l JournalLine) Swapped() JournalLine {
	out := l
	out.Debit, out.Credit = l.Credit, l.Debit
	return out
}

// Validate enforces the one-sided, positive, cent precision line rules.
func (l JournalLine) Validate() error {
	if strings.TrimSpace(l.AccountCode) == "" {
		return shared.Invalid("account_code", "required")
	}
	if l.Debit.IsNegative() || l.Credit.IsNegative() {
		return fmt.Errorf("%w: account %s", shared.ErrNegativeAmount, l.AccountCode)
	}
	if l.Debit.IsZero() == l.Credit.IsZero() {
		return fmt.Errorf("%w: account %s", shared.ErrOneSidedLine, l.AccountCode)
	}
	if !shared.HasCentPrecision(l.Debit) || !shared.HasCentPrecision(l.Credit) {
		return fmt.Errorf("%w: account %s", shared.ErrAmountPrecision, l.AccountCode)
	}
	return nil
}

// Totals sums both sides of the lines.
func Totals(lines []JournalLine) (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, l := range lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}

// PostingInput captures the payload required to post a transaction group.
type PostingInput struct {
	// Number is optional; when empty one is assigned from Prefix and Date.
	Number      TransactionNumber
	Prefix      Prefix
	Date        time.Time
	Reference   Reference
	Description string
	CreatedBy   string
	Lines       []JournalLine
}

// Validate performs domain validation on the posting payload.
func (in PostingInput) Validate() error {
	if in.Date.IsZero() {
		return shared.Invalid("date", "required")
	}
	if in.Reference == nil {
		return shared.Invalid("reference", "required")
	}
	if in.Number == "" && !in.Prefix.Valid() {
		return fmt.Errorf("%w: prefix %q", shared.ErrInvalidTransactionNumber, in.Prefix)
	}
	if len(in.Lines) < 2 {
		return shared.ErrTooFewLines
	}
	for _, line := range in.Lines {
		if err := line.Validate(); err != nil {
			return err
		}
	}
	debit, credit := Totals(in.Lines)
	if !shared.IsBalanced(debit, credit) {
		return fmt.Errorf("%w: debit %s credit %s", shared.ErrUnbalanced, debit.StringFixed(2), credit.StringFixed(2))
	}
	return nil
}

// Posting is the persisted result of a PostingInput.
type Posting struct {
	Number TransactionNumber
	Lines  []JournalLine
}

// ReverseInput describes a reversal request.
type ReverseInput struct {
	Number  TransactionNumber
	Date    *time.Time
	ActorID string
	Reason  string
}

// LineFilter narrows ledger line queries.
type LineFilter struct {
	AccountCode string
	From        *time.Time
	To          *time.Time
	Limit       int
}

// FinancialPeriod is a closable accounting window.
type FinancialPeriod struct {
	ID           int64
	Name         string
	StartDate    time.Time
	EndDate      time.Time
	IsClosed     bool
	ClosedAt     *time.Time
	ClosedBy     string
	ClosingNotes string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Contains reports whether the date falls within the period, inclusive of both ends.
func (p FinancialPeriod) Contains(date time.Time) bool {
	d := truncateDay(date)
	return !d.Before(truncateDay(p.StartDate)) && !d.After(truncateDay(p.EndDate))
}

// Overlaps reports whether two periods share at least one day.
func (p FinancialPeriod) Overlaps(other FinancialPeriod) bool {
	return !truncateDay(p.EndDate).Before(truncateDay(other.StartDate)) &&
		!truncateDay(other.EndDate).Before(truncateDay(p.StartDate))
}

// CompanySettings is the singleton settings row.
type CompanySettings struct {
	CurrentPeriodID *int64
	UpdatedAt       time.Time
}

// AccountTotals holds summed debit and credit for one account.
type AccountTotals struct {
	AccountCode string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// UnbalancedGroup is a transaction group whose sides disagree.
type UnbalancedGroup struct {
	Number TransactionNumber
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
