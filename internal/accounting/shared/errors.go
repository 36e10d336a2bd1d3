package shared

import (
	"errors"
	"fmt"
)

// Error kinds. Every ledger error wraps exactly one of these so boundaries can
// branch on the category without knowing the specific failure.
var (
	// ErrValidation covers malformed input: unbalanced entries, duplicate codes, missing fields.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound covers unknown accounts, periods and transactions.
	ErrNotFound = errors.New("not found")
	// ErrState covers operations not permitted in the current state.
	ErrState = errors.New("invalid state")
	// ErrIntegrity covers ledger-wide inconsistencies such as an off trial balance.
	ErrIntegrity = errors.New("integrity violation")
)

var (
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = fmt.Errorf("accounting: journal lines must balance: %w", ErrValidation)
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = fmt.Errorf("accounting: journal requires at least two lines: %w", ErrValidation)
	// ErrOneSidedLine indicates a line carrying both or neither side.
	ErrOneSidedLine = fmt.Errorf("accounting: line must carry exactly one of debit or credit: %w", ErrValidation)
	// ErrNegativeAmount indicates a negative debit or credit.
	ErrNegativeAmount = fmt.Errorf("accounting: amounts must be positive: %w", ErrValidation)
	// ErrAmountPrecision indicates more than two decimal places.
	ErrAmountPrecision = fmt.Errorf("accounting: amounts are limited to two decimals: %w", ErrValidation)
	// ErrDuplicateTransaction indicates a caller supplied transaction number already in use.
	ErrDuplicateTransaction = fmt.Errorf("accounting: transaction number already used: %w", ErrValidation)
	// ErrInvalidTransactionNumber indicates a malformed number or prefix.
	ErrInvalidTransactionNumber = fmt.Errorf("accounting: invalid transaction number: %w", ErrValidation)
	// ErrDuplicateAccountCode indicates a code collision in the chart of accounts.
	ErrDuplicateAccountCode = fmt.Errorf("accounting: account code already exists: %w", ErrValidation)

	// ErrAccountNotFound indicates an unknown account code.
	ErrAccountNotFound = fmt.Errorf("accounting: account not found: %w", ErrNotFound)
	// ErrJournalNotFound indicates an unknown transaction number.
	ErrJournalNotFound = fmt.Errorf("accounting: journal entry not found: %w", ErrNotFound)
	// ErrPeriodNotFound indicates an unknown financial period.
	ErrPeriodNotFound = fmt.Errorf("accounting: period not found: %w", ErrNotFound)
	// ErrMappingNotFound indicates account mapping missing.
	ErrMappingNotFound = fmt.Errorf("accounting: account mapping not found: %w", ErrNotFound)
	// ErrDocumentNotFound indicates an unknown source document.
	ErrDocumentNotFound = fmt.Errorf("accounting: source document not found: %w", ErrNotFound)

	// ErrSystemAccountImmutable indicates an attempt to change a system account's code or type.
	ErrSystemAccountImmutable = fmt.Errorf("accounting: system account code and type are immutable: %w", ErrState)
	// ErrAccountInUse indicates deleting, re-coding or re-typing an account that
	// journal lines reference, or deleting a system account.
	ErrAccountInUse = fmt.Errorf("accounting: account is in use: %w", ErrState)
	// ErrSystemAccountRequired indicates deactivating a system account.
	ErrSystemAccountRequired = fmt.Errorf("accounting: system account must stay active: %w", ErrState)
	// ErrAccountInactive indicates posting to an inactive account.
	ErrAccountInactive = fmt.Errorf("accounting: account is inactive: %w", ErrState)
	// ErrPeriodClosed indicates posting or closing against a closed period.
	ErrPeriodClosed = fmt.Errorf("accounting: period is closed: %w", ErrState)
	// ErrPeriodNotClosed indicates reopening a period that is open.
	ErrPeriodNotClosed = fmt.Errorf("accounting: period is not closed: %w", ErrState)
	// ErrAlreadyReversed indicates a second reversal of the same group.
	ErrAlreadyReversed = fmt.Errorf("accounting: journal entry already reversed: %w", ErrState)
	// ErrSourceAlreadyLinked indicates the document was flagged by another writer.
	ErrSourceAlreadyLinked = fmt.Errorf("accounting: source already linked: %w", ErrState)

	// ErrTrialBalanceOff indicates total debits differ from total credits.
	ErrTrialBalanceOff = fmt.Errorf("accounting: trial balance does not net to zero: %w", ErrIntegrity)
)

// FieldError describes a single invalid field. It unwraps to its kind.
type FieldError struct {
	Field   string
	Message string
	Kind    error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *FieldError) Unwrap() error {
	if e.Kind == nil {
		return ErrValidation
	}
	return e.Kind
}

// Invalid builds a validation FieldError.
func Invalid(field, message string) error {
	return &FieldError{Field: field, Message: message, Kind: ErrValidation}
}

// Kind returns the taxonomy sentinel wrapped by err, or nil for infrastructure failures.
func Kind(err error) error {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrState, ErrIntegrity} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
