package close

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	common "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// DefaultLockTTL bounds how long a crashed closer can block the period.
const DefaultLockTTL = 2 * time.Minute

// Locker provides a short lived cross-process lock.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

// Service orchestrates accounting period lifecycle and year-end closing.
type Service struct {
	repo    accounting.RepositoryPort
	ledger  *accounting.Service
	locker  Locker
	lockTTL time.Duration
	audit   accounting.AuditPort
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewService constructs a Service instance. locker and audit may be nil.
func NewService(repo accounting.RepositoryPort, ledger *accounting.Service, locker Locker, audit accounting.AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		ledger:  ledger,
		locker:  locker,
		lockTTL: DefaultLockTTL,
		audit:   audit,
		logger:  logger,
		now:     time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithLockTTL sets the Redis lock expiry.
func (s *Service) WithLockTTL(ttl time.Duration) {
	if ttl > 0 {
		s.lockTTL = ttl
	}
}

// WithMetrics attaches closing counters.
func (s *Service) WithMetrics(m *Metrics) {
	s.metrics = m
}

// ResolvePeriodContext locks the period row, takes the transaction-scoped
// advisory lock and reads the current-period pointer.
func ResolvePeriodContext(ctx context.Context, tx accounting.TxRepository, periodID int64) (PeriodContext, error) {
	period, err := tx.GetPeriodForUpdate(ctx, periodID)
	if err != nil {
		return PeriodContext{}, err
	}
	if err := tx.AdvisoryLock(ctx, common.FinanceLockKey(periodID)); err != nil {
		return PeriodContext{}, fmt.Errorf("close: advisory lock: %w", err)
	}
	settings, err := tx.GetSettings(ctx)
	if err != nil {
		return PeriodContext{}, err
	}
	return PeriodContext{Period: period, CurrentPeriodID: settings.CurrentPeriodID}, nil
}

func (s *Service) validate(ctx context.Context, tx accounting.TxRepository, pc PeriodContext) (ValidationReport, error) {
	p := pc.Period
	report := ValidationReport{PeriodID: p.ID}
	if err := common.ValidatePeriodTransition(common.PeriodStatus(p.IsClosed), common.PeriodStatusClosed); err != nil {
		return report, fmt.Errorf("%w: %s", shared.ErrPeriodClosed, p.Name)
	}
	for _, code := range []string{accounts.CodeCurrentYearEarnings, accounts.CodeRetainedEarnings} {
		account, err := tx.GetAccount(ctx, code)
		if err != nil {
			if errors.Is(err, shared.ErrAccountNotFound) {
				return report, fmt.Errorf("%w: %s", ErrClosingAccountMissing, code)
			}
			return report, err
		}
		if !account.IsActive {
			return report, fmt.Errorf("%w: %s", shared.ErrAccountInactive, code)
		}
	}
	start, end := p.StartDate, p.EndDate
	debit, credit, err := tx.SumAll(ctx, &start, &end)
	if err != nil {
		return report, err
	}
	report.TotalDebit, report.TotalCredit = debit, credit
	report.Difference = debit.Sub(credit)
	after, err := tx.CountLinesAfter(ctx, end)
	if err != nil {
		return report, err
	}
	report.LinesAfterEnd = after
	if after > 0 {
		report.Warnings = append(report.Warnings, fmt.Sprintf("%d journal lines are dated after %s", after, end.Format(time.DateOnly)))
	}
	if !report.CanClose() {
		return report, fmt.Errorf("%w: period %s debit %s credit %s", shared.ErrTrialBalanceOff, p.Name, debit.StringFixed(2), credit.StringFixed(2))
	}
	return report, nil
}

// ValidateClosing runs the pre-close checks without writing anything.
func (s *Service) ValidateClosing(ctx context.Context, periodID int64) (ValidationReport, error) {
	var report ValidationReport
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx accounting.TxRepository) error {
		pc, err := ResolvePeriodContext(ctx, tx, periodID)
		if err != nil {
			return err
		}
		report, err = s.validate(ctx, tx, pc)
		return err
	})
	return report, err
}

// Close zeroes revenue and expense into current year earnings, moves the
// result to retained earnings and marks the period closed, all in one
// transaction.
func (s *Service) Close(ctx context.Context, in CloseInput) (CloseResult, error) {
	if in.PeriodID <= 0 {
		return CloseResult{}, shared.Invalid("period_id", "required")
	}
	ctx, cancel := s.ledger.OperationContext(ctx)
	defer cancel()
	if in.ClosedBy == "" {
		in.ClosedBy = common.ActorFromContext(ctx)
	}
	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, common.FinanceLockKey(in.PeriodID), s.lockTTL)
		if err != nil {
			s.metrics.observe("close", err)
			if errors.Is(err, common.ErrLockHeld) {
				return CloseResult{}, fmt.Errorf("%w: period %d", ErrCloseInProgress, in.PeriodID)
			}
			return CloseResult{}, err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("close lock release failed", slog.Int64("period_id", in.PeriodID), slog.Any("error", err))
			}
		}()
	}

	var (
		result   CloseResult
		postings []accounting.Posting
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx accounting.TxRepository) error {
		result, postings = CloseResult{}, nil
		pc, err := ResolvePeriodContext(ctx, tx, in.PeriodID)
		if err != nil {
			return err
		}
		report, err := s.validate(ctx, tx, pc)
		if err != nil {
			return err
		}
		result.Report = report

		steps := []struct {
			prefix accounting.Prefix
			typ    accounts.AccountType
			label  string
		}{
			{accounting.PrefixCloseRevenue, accounts.AccountTypeRevenue, "revenue"},
			{accounting.PrefixCloseExpense, accounts.AccountTypeExpense, "expenses"},
		}
		for _, step := range steps {
			lines, err := s.temporaryLines(ctx, tx, pc.Period, step.typ)
			if err != nil {
				return err
			}
			p, err := s.postClosing(ctx, tx, pc.Period, step.prefix, fmt.Sprintf("Close %s for %s", step.label, pc.Period.Name), in.ClosedBy, lines)
			if err != nil {
				return err
			}
			if p != nil {
				postings = append(postings, *p)
			}
		}

		end := pc.Period.EndDate
		cye, err := s.ledger.Balances().BalanceTx(ctx, tx, accounts.CodeCurrentYearEarnings, &end)
		if err != nil {
			return err
		}
		result.NetIncome = cye
		var reLines []accounting.JournalLine
		switch {
		case !shared.IsMaterial(cye):
		case cye.IsPositive():
			reLines = []accounting.JournalLine{
				accounting.NewDebit(accounts.CodeCurrentYearEarnings, cye, ""),
				accounting.NewCredit(accounts.CodeRetainedEarnings, cye, ""),
			}
		default:
			reLines = []accounting.JournalLine{
				accounting.NewDebit(accounts.CodeRetainedEarnings, cye.Abs(), ""),
				accounting.NewCredit(accounts.CodeCurrentYearEarnings, cye.Abs(), ""),
			}
		}
		p, err := s.postClosing(ctx, tx, pc.Period, accounting.PrefixCloseRetained, "Transfer earnings to retained earnings for "+pc.Period.Name, in.ClosedBy, reLines)
		if err != nil {
			return err
		}
		if p != nil {
			postings = append(postings, *p)
		}

		closedAt := s.now()
		period := pc.Period
		period.IsClosed = true
		period.ClosedAt = &closedAt
		period.ClosedBy = in.ClosedBy
		period.ClosingNotes = in.Notes
		period.UpdatedAt = closedAt
		if err := tx.UpdatePeriod(ctx, period); err != nil {
			return err
		}
		if pc.IsCurrent() {
			if err := tx.SetCurrentPeriod(ctx, nil); err != nil {
				return err
			}
		}
		result.Period = period
		return nil
	})
	s.metrics.observe("close", err)
	if err != nil {
		return CloseResult{}, err
	}

	for _, p := range postings {
		result.Entries = append(result.Entries, p.Number)
	}
	s.ledger.Committed(ctx, in.ClosedBy, "journal.close", postings...)
	s.record(ctx, common.AuditLog{
		ActorID:  in.ClosedBy,
		Action:   "period.close",
		Entity:   "financial_period",
		EntityID: fmt.Sprint(in.PeriodID),
		Meta: map[string]any{
			"entries":    result.Entries,
			"net_income": result.NetIncome.StringFixed(2),
			"notes":      in.Notes,
		},
		At: s.now(),
	})
	s.logger.Info("period closed",
		slog.Int64("period_id", in.PeriodID),
		slog.String("net_income", result.NetIncome.StringFixed(2)),
		slog.Int("entries", len(result.Entries)))
	return result, nil
}

// temporaryLines zeroes every material balance of the given type as of the
// period end and offsets the total against current year earnings. Contra
// balances are closed on the opposite side.
func (s *Service) temporaryLines(ctx context.Context, tx accounting.TxRepository, period accounting.FinancialPeriod, typ accounts.AccountType) ([]accounting.JournalLine, error) {
	list, err := tx.ListAccounts(ctx, accounts.ListFilter{Type: typ, ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	end := period.EndDate
	total := decimal.Zero
	var lines []accounting.JournalLine
	for _, account := range list {
		balance, err := s.ledger.Balances().BalanceTx(ctx, tx, account.Code, &end)
		if err != nil {
			return nil, err
		}
		if !shared.IsMaterial(balance) {
			continue
		}
		total = total.Add(balance)
		// A positive balance sits on the normal side; closing takes the other one.
		onDebit := (typ.NormalSide() == accounts.SideCredit) == balance.IsPositive()
		if onDebit {
			lines = append(lines, accounting.NewDebit(account.Code, balance.Abs(), ""))
		} else {
			lines = append(lines, accounting.NewCredit(account.Code, balance.Abs(), ""))
		}
	}
	if !shared.IsMaterial(total) {
		return lines, nil
	}
	// Revenue nets to a credit in CYE, expenses to a debit.
	cyeCredit := (typ.NormalSide() == accounts.SideCredit) == total.IsPositive()
	if cyeCredit {
		lines = append(lines, accounting.NewCredit(accounts.CodeCurrentYearEarnings, total.Abs(), ""))
	} else {
		lines = append(lines, accounting.NewDebit(accounts.CodeCurrentYearEarnings, total.Abs(), ""))
	}
	return lines, nil
}

func (s *Service) postClosing(ctx context.Context, tx accounting.TxRepository, period accounting.FinancialPeriod, prefix accounting.Prefix, description, actor string, lines []accounting.JournalLine) (*accounting.Posting, error) {
	if len(lines) == 0 {
		return nil, nil
	}
	p, err := s.ledger.PostTx(ctx, tx, accounting.PostingInput{
		Prefix:      prefix,
		Date:        period.EndDate,
		Reference:   accounting.ClosingRef{PeriodID: period.ID},
		Description: description,
		CreatedBy:   actor,
		Lines:       lines,
	})
	if err != nil {
		return nil, fmt.Errorf("close: post %s: %w", prefix, err)
	}
	return &p, nil
}

// Reopen marks a closed period open again. Closing entries stay in the ledger.
func (s *Service) Reopen(ctx context.Context, periodID int64, reopenedBy string) (accounting.FinancialPeriod, error) {
	ctx, cancel := s.ledger.OperationContext(ctx)
	defer cancel()
	if reopenedBy == "" {
		reopenedBy = common.ActorFromContext(ctx)
	}
	var (
		period   accounting.FinancialPeriod
		retained int
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx accounting.TxRepository) error {
		pc, err := ResolvePeriodContext(ctx, tx, periodID)
		if err != nil {
			return err
		}
		if err := common.ValidatePeriodTransition(common.PeriodStatus(pc.Period.IsClosed), common.PeriodStatusOpen); err != nil {
			return fmt.Errorf("%w: %s", shared.ErrPeriodNotClosed, pc.Period.Name)
		}
		lines, err := tx.ListLines(ctx, accounting.LineFilter{From: &pc.Period.EndDate, To: &pc.Period.EndDate})
		if err != nil {
			return err
		}
		for _, l := range lines {
			if ref, ok := l.Reference.(accounting.ClosingRef); ok && ref.PeriodID == periodID {
				retained++
			}
		}
		period = pc.Period
		period.IsClosed = false
		period.ClosedAt = nil
		period.ClosedBy = ""
		period.ClosingNotes = ""
		period.UpdatedAt = s.now()
		return tx.UpdatePeriod(ctx, period)
	})
	s.metrics.observe("reopen", err)
	if err != nil {
		return accounting.FinancialPeriod{}, err
	}
	s.logger.Warn("period reopened with closing entries in place",
		slog.Int64("period_id", periodID),
		slog.Int("closing_lines", retained),
		slog.String("actor", reopenedBy))
	s.record(ctx, common.AuditLog{
		ActorID:  reopenedBy,
		Action:   "period.reopen",
		Entity:   "financial_period",
		EntityID: fmt.Sprint(periodID),
		Meta:     map[string]any{"closing_lines_retained": retained},
		At:       s.now(),
	})
	return period, nil
}

// CreatePeriod inserts a new period after validating overlap.
func (s *Service) CreatePeriod(ctx context.Context, in CreatePeriodInput) (accounting.FinancialPeriod, error) {
	if err := in.Validate(); err != nil {
		return accounting.FinancialPeriod{}, err
	}
	candidate := accounting.FinancialPeriod{
		Name:      in.Name,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		CreatedAt: s.now(),
	}
	var period accounting.FinancialPeriod
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx accounting.TxRepository) error {
		existing, err := tx.ListPeriods(ctx)
		if err != nil {
			return err
		}
		for _, p := range existing {
			if p.Overlaps(candidate) {
				return fmt.Errorf("%w: %s", ErrPeriodOverlap, p.Name)
			}
		}
		period, err = tx.InsertPeriod(ctx, candidate)
		return err
	})
	if err != nil {
		return accounting.FinancialPeriod{}, err
	}
	return period, nil
}

// ListPeriods returns every period ordered by start date.
func (s *Service) ListPeriods(ctx context.Context) ([]accounting.FinancialPeriod, error) {
	var periods []accounting.FinancialPeriod
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx accounting.TxRepository) error {
		var err error
		periods, err = tx.ListPeriods(ctx)
		return err
	})
	return periods, err
}

// GetPeriod returns a single accounting period by identifier.
func (s *Service) GetPeriod(ctx context.Context, id int64) (accounting.FinancialPeriod, error) {
	var period accounting.FinancialPeriod
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx accounting.TxRepository) error {
		var err error
		period, err = tx.GetPeriod(ctx, id)
		return err
	})
	return period, err
}

// SetCurrentPeriod points the company settings at an open period, or clears
// the pointer when id is nil.
func (s *Service) SetCurrentPeriod(ctx context.Context, id *int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx accounting.TxRepository) error {
		if id != nil {
			period, err := tx.GetPeriod(ctx, *id)
			if err != nil {
				return err
			}
			if period.IsClosed {
				return fmt.Errorf("%w: %s", shared.ErrPeriodClosed, period.Name)
			}
		}
		return tx.SetCurrentPeriod(ctx, id)
	})
}

// CurrentPeriod returns the period the settings point at, if any.
func (s *Service) CurrentPeriod(ctx context.Context) (*accounting.FinancialPeriod, error) {
	var current *accounting.FinancialPeriod
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx accounting.TxRepository) error {
		settings, err := tx.GetSettings(ctx)
		if err != nil || settings.CurrentPeriodID == nil {
			return err
		}
		period, err := tx.GetPeriod(ctx, *settings.CurrentPeriodID)
		if err != nil {
			return err
		}
		current = &period
		return nil
	})
	return current, err
}

// Preview projects the period's income statement.
func (s *Service) Preview(ctx context.Context, periodID int64) (Preview, error) {
	var preview Preview
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx accounting.TxRepository) error {
		period, err := tx.GetPeriod(ctx, periodID)
		if err != nil {
			return err
		}
		rows, err := accounting.AccountActivityTx(ctx, tx, &period.StartDate, &period.EndDate)
		if err != nil {
			return err
		}
		preview = Preview{Period: period, ProfitAndLoss: reports.BuildProfitAndLoss(rows)}
		return nil
	})
	return preview, err
}

func (s *Service) record(ctx context.Context, log common.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", log.Action), slog.Any("error", err))
	}
}
