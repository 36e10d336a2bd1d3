package accounting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	common "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log common.AuditLog) error
}

// Service posts, reverses and queries transaction groups.
type Service struct {
	repo     RepositoryPort
	balances *BalanceCalculator
	audit    AuditPort
	logger   *slog.Logger
	metrics  *Metrics
	timeout  time.Duration
	now      func() time.Time
}

// NewService constructs the posting engine.
func NewService(repo RepositoryPort, balances *BalanceCalculator, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if balances == nil {
		balances = NewBalanceCalculator(repo, logger)
	}
	return &Service{repo: repo, balances: balances, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithTimeout bounds every posting call. Zero disables the bound.
func (s *Service) WithTimeout(timeout time.Duration) {
	s.timeout = timeout
	s.balances.WithTimeout(timeout)
}

// WithMetrics attaches posting counters.
func (s *Service) WithMetrics(m *Metrics) {
	s.metrics = m
}

// Balances exposes the calculator used for post-commit cache updates.
func (s *Service) Balances() *BalanceCalculator {
	return s.balances
}

// Now returns the service clock.
func (s *Service) Now() time.Time {
	return s.now()
}

// OperationContext derives the bounded context used for a single ledger operation.
func (s *Service) OperationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Post validates and persists a balanced transaction group in its own transaction.
func (s *Service) Post(ctx context.Context, input PostingInput) (TransactionNumber, error) {
	ctx, cancel := s.OperationContext(ctx)
	defer cancel()
	if input.CreatedBy == "" {
		input.CreatedBy = common.ActorFromContext(ctx)
	}
	var posting Posting
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := s.PostTx(ctx, tx, input)
		posting = p
		return err
	})
	if err != nil {
		s.metrics.observe(postingPrefix(input), 0, err)
		return "", err
	}
	s.Committed(ctx, input.CreatedBy, "journal.post", posting)
	return posting.Number, nil
}

// PostTx posts inside a caller-owned transaction. The caller must invoke
// Committed once the transaction commits.
func (s *Service) PostTx(ctx context.Context, tx TxRepository, input PostingInput) (Posting, error) {
	if err := input.Validate(); err != nil {
		return Posting{}, err
	}
	if err := s.checkAccounts(ctx, tx, input.Lines); err != nil {
		return Posting{}, err
	}
	period, closed, err := tx.FindClosedPeriodCovering(ctx, input.Date)
	if err != nil {
		return Posting{}, err
	}
	if closed {
		return Posting{}, fmt.Errorf("%w: %s covers %s", shared.ErrPeriodClosed, period.Name, input.Date.Format(time.DateOnly))
	}
	number, err := s.assignNumber(ctx, tx, input)
	if err != nil {
		return Posting{}, err
	}
	createdBy := input.CreatedBy
	if createdBy == "" {
		createdBy = common.ActorFromContext(ctx)
	}
	createdAt := s.now()
	lines := make([]JournalLine, len(input.Lines))
	for i, l := range input.Lines {
		l.ID = 0
		l.TransactionNumber = number
		l.Date = input.Date
		l.Reference = input.Reference
		if l.Description == "" {
			l.Description = input.Description
		}
		l.CreatedBy = createdBy
		l.CreatedAt = createdAt
		lines[i] = l
	}
	if err := tx.InsertLines(ctx, lines); err != nil {
		return Posting{}, fmt.Errorf("accounting: insert lines: %w", err)
	}
	return Posting{Number: number, Lines: lines}, nil
}

func (s *Service) checkAccounts(ctx context.Context, tx TxRepository, lines []JournalLine) error {
	seen := make(map[string]struct{}, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.AccountCode]; ok {
			continue
		}
		seen[l.AccountCode] = struct{}{}
		account, err := tx.GetAccount(ctx, l.AccountCode)
		if err != nil {
			return err
		}
		if !account.IsActive {
			return fmt.Errorf("%w: %s", shared.ErrAccountInactive, l.AccountCode)
		}
	}
	return nil
}

func (s *Service) assignNumber(ctx context.Context, tx TxRepository, input PostingInput) (TransactionNumber, error) {
	if input.Number == "" {
		return s.nextNumber(ctx, tx, input.Prefix, input.Date)
	}
	prefix, _, _, err := input.Number.Parse()
	if err != nil {
		return "", err
	}
	if input.Prefix != "" && prefix != input.Prefix {
		return "", fmt.Errorf("%w: %s must use prefix %s", shared.ErrInvalidTransactionNumber, input.Number, input.Prefix)
	}
	exists, err := tx.TransactionExists(ctx, input.Number)
	if err != nil {
		return "", err
	}
	if exists {
		return "", fmt.Errorf("%w: %s", shared.ErrDuplicateTransaction, input.Number)
	}
	return input.Number, nil
}

// Committed runs the post-commit side effects: cache refresh, metrics and audit.
// Cache failures are logged; RecalculateAll reconciles them later.
func (s *Service) Committed(ctx context.Context, actor, action string, postings ...Posting) {
	for _, p := range postings {
		if len(p.Lines) == 0 {
			continue
		}
		if err := s.balances.ApplyLines(ctx, p.Lines); err != nil {
			s.logger.Error("balance cache update failed", slog.String("number", string(p.Number)), slog.Any("error", err))
		}
		s.metrics.observe(p.Number.Prefix(), len(p.Lines), nil)
		s.record(ctx, common.AuditLog{
			ActorID:  actor,
			Action:   action,
			Entity:   "journal",
			EntityID: string(p.Number),
			Meta: map[string]any{
				"reference": p.Lines[0].Reference.String(),
				"lines":     len(p.Lines),
			},
			At: s.now(),
		})
	}
}

// Reverse posts the mirror image of an existing group under a REV number.
func (s *Service) Reverse(ctx context.Context, in ReverseInput) (TransactionNumber, error) {
	if in.Number == "" {
		return "", shared.Invalid("number", "required")
	}
	ctx, cancel := s.OperationContext(ctx)
	defer cancel()
	actor := in.ActorID
	if actor == "" {
		actor = common.ActorFromContext(ctx)
	}
	var posting Posting
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.LinesByTransaction(ctx, in.Number)
		if err != nil {
			return err
		}
		if len(original) == 0 {
			return fmt.Errorf("%w: %s", shared.ErrJournalNotFound, in.Number)
		}
		if reversal, found, err := tx.FindReversal(ctx, in.Number); err != nil {
			return err
		} else if found {
			return fmt.Errorf("%w: %s by %s", shared.ErrAlreadyReversed, in.Number, reversal)
		}
		date := s.now()
		if in.Date != nil {
			date = *in.Date
		}
		description := "Reversal of " + string(in.Number)
		if in.Reason != "" {
			description += ": " + in.Reason
		}
		lines := make([]JournalLine, 0, len(original))
		for _, l := range original {
			lines = append(lines, l.Swapped())
		}
		p, err := s.PostTx(ctx, tx, PostingInput{
			Prefix:      PrefixReversal,
			Date:        date,
			Reference:   ReversalRef{Original: in.Number},
			Description: description,
			CreatedBy:   actor,
			Lines:       lines,
		})
		if err != nil {
			return err
		}
		if err := tx.RecordReversal(ctx, in.Number, p.Number); err != nil {
			return err
		}
		posting = p
		return nil
	})
	if err != nil {
		s.metrics.observe(PrefixReversal, 0, err)
		return "", err
	}
	s.Committed(ctx, actor, "journal.reverse", posting)
	return posting.Number, nil
}

// GetTransaction returns every line of the group.
func (s *Service) GetTransaction(ctx context.Context, number TransactionNumber) ([]JournalLine, error) {
	var lines []JournalLine
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		lines, err = tx.LinesByTransaction(ctx, number)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: %s", shared.ErrJournalNotFound, number)
	}
	return lines, nil
}

// ListLines returns ledger lines matching the filter ordered by date.
func (s *Service) ListLines(ctx context.Context, filter LineFilter) ([]JournalLine, error) {
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, shared.Invalid("to", "must not precede from")
	}
	var lines []JournalLine
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		lines, err = tx.ListLines(ctx, filter)
		return err
	})
	return lines, err
}

// AccountTotals sums every account's lines in the window.
func (s *Service) AccountTotals(ctx context.Context, from, to *time.Time) ([]AccountTotals, error) {
	var totals []AccountTotals
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		totals, err = tx.AccountTotals(ctx, from, to)
		return err
	})
	return totals, err
}

// UnbalancedTransactions lists groups whose sides disagree by at least a cent.
func (s *Service) UnbalancedTransactions(ctx context.Context) ([]UnbalancedGroup, error) {
	var groups []UnbalancedGroup
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		groups, err = tx.UnbalancedTransactions(ctx)
		return err
	})
	return groups, err
}

func (s *Service) record(ctx context.Context, log common.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, log); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("audit record failed", slog.String("action", log.Action), slog.Any("error", err))
	}
}

func postingPrefix(in PostingInput) Prefix {
	if in.Number != "" {
		return in.Number.Prefix()
	}
	return in.Prefix
}
