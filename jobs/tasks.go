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
	// QueueImports carries commit and rollback runs of import batches.
	QueueImports = "imports"

	// TaskImportCommit commits a reviewed import batch.
	TaskImportCommit = "imports:commit"
	// TaskImportRollback rolls a committed import batch back.
	TaskImportRollback = "imports:rollback"
)

// ImportTaskPayload identifies the batch a task works on.
type ImportTaskPayload struct {
	BatchID uuid.UUID `json:"batch_id"`
	Actor   string    `json:"actor"`
}

// TaskID is the deduplication id of a task for one batch. Asynq rejects a
// second task with the same id while the first is still pending or retrying.
func TaskID(taskType string, batchID uuid.UUID) string {
	return taskType + ":" + batchID.String()
}

// NewImportCommitTask constructs a TaskImportCommit task.
func NewImportCommitTask(batchID uuid.UUID, actor string) (*asynq.Task, error) {
	return newImportTask(TaskImportCommit, batchID, actor)
}

// NewImportRollbackTask constructs a TaskImportRollback task.
func NewImportRollbackTask(batchID uuid.UUID, actor string) (*asynq.Task, error) {
	return newImportTask(TaskImportRollback, batchID, actor)
}

func newImportTask(taskType string, batchID uuid.UUID, actor string) (*asynq.Task, error) {
	if batchID == uuid.Nil {
		return nil, fmt.Errorf("jobs: %s without batch id", taskType)
	}
	body, err := json.Marshal(ImportTaskPayload{BatchID: batchID, Actor: actor})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body,
		asynq.Queue(QueueImports),
		asynq.TaskID(TaskID(taskType, batchID)),
		asynq.MaxRetry(5),
	), nil
}

func decodeImportPayload(task *asynq.Task) (ImportTaskPayload, error) {
	var payload ImportTaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, err
	}
	if payload.BatchID == uuid.Nil {
		return payload, fmt.Errorf("jobs: %s payload without batch id", task.Type())
	}
	return payload, nil
}
