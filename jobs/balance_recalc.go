package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// BalanceRecalculator rebuilds cached balances.
type BalanceRecalculator interface {
	RecalculateAll(ctx context.Context) (accounting.RecalcReport, error)
}

// BalanceRecalcJob reconciles cached balances with the journal.
type BalanceRecalcJob struct {
	Balances BalanceRecalculator
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewBalanceRecalcJob wires dependencies for the recalculation handler.
func NewBalanceRecalcJob(balances BalanceRecalculator, logger *slog.Logger, metrics *jobmetrics.Metrics) *BalanceRecalcJob {
	return &BalanceRecalcJob{Balances: balances, Logger: logger, Metrics: metrics}
}

// Handle processes TaskBalancesRecalculate tasks.
func (j *BalanceRecalcJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Balances == nil {
		return errors.New("balance recalc: handler not configured")
	}
	tracker := j.Metrics.Track(TaskBalancesRecalculate)
	defer func() { err = tracker.End(err) }()

	report, err := j.Balances.RecalculateAll(ctx)
	if err != nil {
		loggerOrDefault(j.Logger).Error("recalculate balances", slog.Any("error", err))
		return err
	}
	j.Metrics.SetDriftedAccounts(len(report.Drifts))
	loggerOrDefault(j.Logger).Info("balances recalculated",
		slog.String("job", TaskBalancesRecalculate),
		slog.Int("accounts", report.Accounts),
		slog.Int("drifted", len(report.Drifts)))
	return nil
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
