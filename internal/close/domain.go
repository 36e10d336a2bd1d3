package close

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// PeriodContext is the period as seen by one closing transaction: the row is
// locked and the current-period pointer was read once.
type PeriodContext struct {
	Period          accounting.FinancialPeriod
	CurrentPeriodID *int64
}

// IsCurrent reports whether the settings pointer targets this period.
func (pc PeriodContext) IsCurrent() bool {
	return pc.CurrentPeriodID != nil && *pc.CurrentPeriodID == pc.Period.ID
}

// CreatePeriodInput captures validation rules for new periods.
type CreatePeriodInput struct {
	Name      string
	StartDate time.Time
	EndDate   time.Time
}

// Validate ensures the create period input is coherent.
func (in CreatePeriodInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return shared.Invalid("name", "required")
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return shared.Invalid("start_date", "start and end date required")
	}
	if in.StartDate.After(in.EndDate) {
		return shared.Invalid("end_date", "start date cannot be after end date")
	}
	return nil
}

// CloseInput requests closing of a period.
type CloseInput struct {
	PeriodID int64
	Notes    string
	ClosedBy string
}

// ValidationReport is the outcome of the pre-close checks.
type ValidationReport struct {
	PeriodID      int64
	TotalDebit    decimal.Decimal
	TotalCredit   decimal.Decimal
	Difference    decimal.Decimal
	LinesAfterEnd int
	Warnings      []string
}

// CanClose reports whether the blocking checks passed.
func (r ValidationReport) CanClose() bool {
	return shared.IsBalanced(r.TotalDebit, r.TotalCredit)
}

// CloseResult describes a completed close.
type CloseResult struct {
	Period    accounting.FinancialPeriod
	Entries   []accounting.TransactionNumber
	NetIncome decimal.Decimal
	Report    ValidationReport
}

// Preview is the income statement of a period before it is closed.
type Preview struct {
	Period        accounting.FinancialPeriod
	ProfitAndLoss reports.ProfitAndLoss
}

var (
	// ErrPeriodOverlap indicates the requested period conflicts with an existing range.
	ErrPeriodOverlap = fmt.Errorf("close: period overlaps existing range: %w", shared.ErrState)
	// ErrCloseInProgress indicates another request holds the period's close lock.
	ErrCloseInProgress = fmt.Errorf("close: period close already in progress: %w", shared.ErrState)
	// ErrClosingAccountMissing indicates a missing earnings system account.
	ErrClosingAccountMissing = fmt.Errorf("close: closing account missing: %w", shared.ErrNotFound)
)
