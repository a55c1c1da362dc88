package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/quotedesk/internal/statements"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStatementDeliver renders a customer statement into object storage.
	TaskStatementDeliver = "statement:deliver"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
	// TaskOverdueScan publishes the overdue receivables summary.
	TaskOverdueScan = "invoices:overdue-scan"
)

// IdempotencyCleanupPayload configures how long keys are retained.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// OverdueScanPayload is empty; the scan always uses the current day.
type OverdueScanPayload struct{}

// NewStatementDeliveryTask constructs a statement delivery task.
func NewStatementDeliveryTask(req statements.DeliveryRequest) (*asynq.Task, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStatementDeliver, data, asynq.MaxRetry(5)), nil
}

// NewIdempotencyCleanupTask constructs a cleanup task keeping keys for retentionHours.
func NewIdempotencyCleanupTask(retentionHours int) (*asynq.Task, error) {
	data, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: retentionHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}

// NewOverdueScanTask constructs an overdue scan task.
func NewOverdueScanTask() (*asynq.Task, error) {
	data, err := json.Marshal(OverdueScanPayload{})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOverdueScan, data), nil
}
