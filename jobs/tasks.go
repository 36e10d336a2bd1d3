package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskBalancesRecalculate rebuilds every cached account balance from the ledger.
	TaskBalancesRecalculate = "ledger:balances:recalculate"
	// TaskIntegrityCheck scans the ledger for transaction groups off balance.
	TaskIntegrityCheck = "ledger:integrity:check"
	// TaskPostingsRetry re-runs generators for documents still awaiting a journal entry.
	TaskPostingsRetry = "ledger:postings:retry"
	// TaskIdempotencyCleanup drops expired HTTP idempotency keys.
	TaskIdempotencyCleanup = "ledger:idempotency:cleanup"
)

// DefaultRetryBatch is the page size of a retry sweep.
const DefaultRetryBatch = 200

// TaskTypes lists every task the worker serves.
var TaskTypes = []string{TaskBalancesRecalculate, TaskIntegrityCheck, TaskPostingsRetry, TaskIdempotencyCleanup}

// KnownTask reports whether typ is served by the worker.
func KnownTask(typ string) bool {
	for _, t := range TaskTypes {
		if t == typ {
			return true
		}
	}
	return false
}

// PostingsRetryPayload configures a retry sweep; Limit is its page size.
type PostingsRetryPayload struct {
	Limit int `json:"limit"`
}

// NewBalancesRecalculateTask constructs the recalculation task.
func NewBalancesRecalculateTask() *asynq.Task {
	return asynq.NewTask(TaskBalancesRecalculate, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(3))
}

// NewIntegrityCheckTask constructs the integrity sweep task.
func NewIntegrityCheckTask() *asynq.Task {
	return asynq.NewTask(TaskIntegrityCheck, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(1))
}

// NewPostingsRetryTask constructs a retry sweep paging limit documents at a time.
func NewPostingsRetryTask(limit int) (*asynq.Task, error) {
	if limit <= 0 {
		limit = DefaultRetryBatch
	}
	body, err := json.Marshal(PostingsRetryPayload{Limit: limit})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPostingsRetry, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// NewIdempotencyCleanupTask constructs the key expiry task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(1))
}

// NewTask builds a task of the given type with default options.
func NewTask(typ string) (*asynq.Task, error) {
	switch typ {
	case TaskBalancesRecalculate:
		return NewBalancesRecalculateTask(), nil
	case TaskIntegrityCheck:
		return NewIntegrityCheckTask(), nil
	case TaskPostingsRetry:
		return NewPostingsRetryTask(0)
	case TaskIdempotencyCleanup:
		return NewIdempotencyCleanupTask(), nil
	}
	return nil, fmt.Errorf("jobs: unknown task type %q", typ)
}

// taskID gives manual enqueues a traceable identifier.
func taskID(typ string) string {
	return typ + ":" + uuid.NewString()
}
