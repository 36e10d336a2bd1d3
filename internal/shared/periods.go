package shared

import "errors"

// Period states used by the closing workflow.
const (
	PeriodStatusOpen   = "OPEN"
	PeriodStatusClosed = "CLOSED"
)

// ErrInvalidPeriodTransition indicates status change not allowed.
var ErrInvalidPeriodTransition = errors.New("period transition invalid")

// PeriodStatus maps the closed flag to a status label.
func PeriodStatus(isClosed bool) string {
	if isClosed {
		return PeriodStatusClosed
	}
	return PeriodStatusOpen
}

// ValidatePeriodTransition checks Open -> Closed and Closed -> Open (reopen).
func ValidatePeriodTransition(current, target string) error {
	switch {
	case current == PeriodStatusOpen && target == PeriodStatusClosed:
		return nil
	case current == PeriodStatusClosed && target == PeriodStatusOpen:
		return nil
	}
	return ErrInvalidPeriodTransition
}
