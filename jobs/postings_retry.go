package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// PendingRetrier re-runs generators for unflagged documents.
type PendingRetrier interface {
	RetryPending(ctx context.Context, src integration.DocumentSource, limit int) (integration.RetryReport, error)
}

// PostingsRetryJob sweeps documents whose journal entry was deferred or failed.
type PostingsRetryJob struct {
	Hooks   PendingRetrier
	Source  integration.DocumentSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewPostingsRetryJob wires dependencies for the retry handler.
func NewPostingsRetryJob(hooks PendingRetrier, source integration.DocumentSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *PostingsRetryJob {
	return &PostingsRetryJob{Hooks: hooks, Source: source, Logger: logger, Metrics: metrics}
}

// Handle processes TaskPostingsRetry tasks.
func (j *PostingsRetryJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Hooks == nil || j.Source == nil {
		return errors.New("postings retry: handler not configured")
	}
	payload := PostingsRetryPayload{Limit: DefaultRetryBatch}
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.Limit <= 0 {
		payload.Limit = DefaultRetryBatch
	}
	tracker := j.Metrics.Track(TaskPostingsRetry)
	defer func() { err = tracker.End(err) }()

	logger := loggerOrDefault(j.Logger).With(slog.String("job", TaskPostingsRetry))
	report, err := j.Hooks.RetryPending(ctx, j.Source, payload.Limit)
	if err != nil {
		logger.Error("retry pending postings", slog.Any("error", err))
		return err
	}
	logger.Info("pending postings swept",
		slog.Int("scanned", report.Scanned),
		slog.Int("posted", report.Posted),
		slog.Int("already_posted", report.AlreadyPosted),
		slog.Int("deferred", report.Deferred),
		slog.Int("failed", report.Failed))
	return nil
}
