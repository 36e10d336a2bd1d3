package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/memstore"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func seededStore(t *testing.T, lines ...accounting.JournalLine) *memstore.Store {
	t.Helper()
	store := memstore.New()
	store.SeedAccounts(accounts.DefaultChart()...)
	store.SeedLines(lines...)
	return store
}

func line(number, code, debit, credit string) accounting.JournalLine {
	return accounting.JournalLine{
		TransactionNumber: accounting.TransactionNumber(number),
		Date:              time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		AccountCode:       code,
		Debit:             decimal.RequireFromString(debit),
		Credit:            decimal.RequireFromString(credit),
	}
}

func TestNewTaskTypes(t *testing.T) {
	for _, typ := range TaskTypes {
		task, err := NewTask(typ)
		require.NoError(t, err)
		assert.Equal(t, typ, task.Type())
		assert.True(t, KnownTask(typ))
	}
	_, err := NewTask("mail:send")
	require.Error(t, err)
	assert.False(t, KnownTask("mail:send"))

	task, err := NewPostingsRetryTask(0)
	require.NoError(t, err)
	var payload PostingsRetryPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, DefaultRetryBatch, payload.Limit)
}

func TestBalanceRecalcJobCorrectsDrift(t *testing.T) {
	store := seededStore(t,
		line("JE-20240115-001", accounts.CodeCash, "250", "0"),
		line("JE-20240115-001", accounts.CodeSalesRevenue, "0", "250"),
	)
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	job := NewBalanceRecalcJob(accounting.NewBalanceCalculator(store, quietLogger), quietLogger, metrics)

	require.NoError(t, job.Handle(context.Background(), NewBalancesRecalculateTask()))
	cash, ok := store.Account(accounts.CodeCash)
	require.True(t, ok)
	assert.True(t, cash.CurrentBalance.Equal(decimal.RequireFromString("250")))

	require.NoError(t, job.Handle(context.Background(), NewBalancesRecalculateTask()))
}

func TestGLIntegrityJobReportsWithoutFailing(t *testing.T) {
	store := seededStore(t,
		line("JE-20240115-001", accounts.CodeCash, "100", "0"),
		line("JE-20240115-001", accounts.CodeSalesRevenue, "0", "99"),
		line("JE-20240115-002", accounts.CodeCash, "10", "0"),
		line("JE-20240115-002", accounts.CodeSalesRevenue, "0", "10"),
	)
	ledger := accounting.NewService(store, nil, nil, quietLogger)
	job := NewGLIntegrityJob(ledger, quietLogger, nil)

	require.NoError(t, job.Handle(context.Background(), NewIntegrityCheckTask()))

	groups, err := ledger.UnbalancedTransactions(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, accounting.TransactionNumber("JE-20240115-001"), groups[0].Number)
}

type failingFinder struct{ err error }

func (f failingFinder) UnbalancedTransactions(context.Context) ([]accounting.UnbalancedGroup, error) {
	return nil, f.err
}

func TestGLIntegrityJobPropagatesScanError(t *testing.T) {
	boom := errors.New("db down")
	job := NewGLIntegrityJob(failingFinder{err: boom}, quietLogger, nil)
	require.ErrorIs(t, job.Handle(context.Background(), NewIntegrityCheckTask()), boom)
}

type stubRetrier struct {
	limit  int
	report integration.RetryReport
	err    error
}

func (s *stubRetrier) RetryPending(_ context.Context, _ integration.DocumentSource, limit int) (integration.RetryReport, error) {
	s.limit = limit
	return s.report, s.err
}

type nopSource struct{ integration.DocumentSource }

func TestPostingsRetryJobUsesPayloadLimit(t *testing.T) {
	retrier := &stubRetrier{report: integration.RetryReport{Scanned: 2, Posted: 2}}
	job := NewPostingsRetryJob(retrier, nopSource{}, quietLogger, nil)

	task, err := NewPostingsRetryTask(25)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 25, retrier.limit)

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskPostingsRetry, nil)))
	assert.Equal(t, DefaultRetryBatch, retrier.limit)

	err = job.Handle(context.Background(), asynq.NewTask(TaskPostingsRetry, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestJobsRequireDependencies(t *testing.T) {
	var recalc *BalanceRecalcJob
	require.Error(t, recalc.Handle(context.Background(), NewBalancesRecalculateTask()))
	require.Error(t, (&PostingsRetryJob{}).Handle(context.Background(), asynq.NewTask(TaskPostingsRetry, nil)))
}

type stubCleaner struct {
	olderThan time.Duration
	removed   int64
}

func (s *stubCleaner) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	s.olderThan = olderThan
	return s.removed, nil
}

func TestIdempotencyCleanupJob(t *testing.T) {
	cleaner := &stubCleaner{removed: 4}
	job := NewIdempotencyCleanupJob(cleaner, 48*time.Hour, quietLogger, nil)
	require.NoError(t, job.Handle(context.Background(), NewIdempotencyCleanupTask()))
	assert.Equal(t, 48*time.Hour, cleaner.olderThan)

	job.Retention = 0
	require.Error(t, job.Handle(context.Background(), NewIdempotencyCleanupTask()))
}
