package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/equinox-erp/equinox/internal/imports"
	jobmetrics "github.com/equinox-erp/equinox/internal/jobs"
)

// ImportRunner performs the work behind the import tasks.
type ImportRunner interface {
	CommitBatch(ctx context.Context, batchID uuid.UUID, actor string) error
	RollbackBatch(ctx context.Context, batchID uuid.UUID, actor string) error
}

// ImportBatchJob handles TaskImportCommit and TaskImportRollback.
type ImportBatchJob struct {
	Runner  ImportRunner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewImportBatchJob constructs the job handler.
func NewImportBatchJob(runner ImportRunner, logger *slog.Logger, metrics *jobmetrics.Metrics) *ImportBatchJob {
	return &ImportBatchJob{Runner: runner, Logger: logger, Metrics: metrics}
}

// HandleCommit executes a queued commit.
func (j *ImportBatchJob) HandleCommit(ctx context.Context, task *asynq.Task) error {
	return j.run(ctx, task, TaskImportCommit, j.commit)
}

// HandleRollback executes a queued rollback.
func (j *ImportBatchJob) HandleRollback(ctx context.Context, task *asynq.Task) error {
	return j.run(ctx, task, TaskImportRollback, j.rollback)
}

func (j *ImportBatchJob) commit(ctx context.Context, id uuid.UUID, actor string) error {
	return j.Runner.CommitBatch(ctx, id, actor)
}

func (j *ImportBatchJob) rollback(ctx context.Context, id uuid.UUID, actor string) error {
	return j.Runner.RollbackBatch(ctx, id, actor)
}

func (j *ImportBatchJob) run(ctx context.Context, task *asynq.Task, name string, fn func(context.Context, uuid.UUID, string) error) error {
	if j == nil || j.Runner == nil {
		return errors.New("import batch job: dependencies not configured")
	}
	payload, err := decodeImportPayload(task)
	if err != nil {
		j.log().Warn("discard import task", slog.String("type", task.Type()), slog.Any("error", err))
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(name)
	err = fn(ctx, payload.BatchID, payload.Actor)
	if err != nil {
		j.log().Error("import task failed",
			slog.String("type", name),
			slog.String("batch_id", payload.BatchID.String()),
			slog.Bool("retry", retryable(err)),
			slog.Any("error", err))
	} else {
		j.log().Info("import task done", slog.String("type", name), slog.String("batch_id", payload.BatchID.String()))
	}
	if err != nil && !retryable(err) {
		err = fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return tracker.End(err)
}

// retryable separates failures a later attempt can fix from those that need
// the user.
func retryable(err error) bool {
	var (
		conflict   *imports.ConflictError
		incomplete *imports.IncompleteError
	)
	switch {
	case errors.As(err, &conflict), errors.As(err, &incomplete):
		return false
	case errors.Is(err, imports.ErrAlreadyCommitted),
		errors.Is(err, imports.ErrSessionNotFound),
		errors.Is(err, imports.ErrBatchNotFound),
		errors.Is(err, imports.ErrInvalidStep),
		errors.Is(err, imports.ErrInvalidTransition),
		errors.Is(err, imports.ErrNothingToCommit):
		return false
	}
	return true
}

func (j *ImportBatchJob) log() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
