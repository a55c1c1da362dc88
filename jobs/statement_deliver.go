package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/quotedesk/internal/jobs"
	"github.com/odyssey-erp/quotedesk/internal/shared"
	"github.com/odyssey-erp/quotedesk/internal/statements"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// StatementDeliverer renders and stores statements.
type StatementDeliverer interface {
	Deliver(ctx context.Context, req statements.DeliveryRequest) (statements.DeliveryReceipt, error)
}

// StatementDeliveryJob handles TaskStatementDeliver.
type StatementDeliveryJob struct {
	Statements StatementDeliverer
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
}

// NewStatementDeliveryJob wires dependencies for the delivery handler.
func NewStatementDeliveryJob(deliverer StatementDeliverer, logger *slog.Logger, metrics *jobmetrics.Metrics) *StatementDeliveryJob {
	return &StatementDeliveryJob{Statements: deliverer, Logger: logger, Metrics: metrics}
}

// Handle renders the statement named by the payload. Requests that can never
// succeed are not retried.
func (j *StatementDeliveryJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Statements == nil {
		return errors.New("statement delivery: handler not configured")
	}
	var req statements.DeliveryRequest
	if err := json.Unmarshal(t.Payload(), &req); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskStatementDeliver)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(
		slog.Int64("customer_id", req.CustomerID),
		slog.String("from", req.From),
		slog.String("to", req.To),
	)
	receipt, err := j.Statements.Deliver(ctx, req)
	if err != nil {
		resultErr = err
		logger.Error("statement delivery failed", slog.Any("error", err))
		if errors.Is(err, shared.ErrValidation) || errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("statement delivery: %v: %w", err, asynq.SkipRetry)
		}
		return resultErr
	}
	logger.Info("statement stored", slog.String("location", receipt.Location))
	return resultErr
}

func (j *StatementDeliveryJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskStatementDeliver))
	}
	return slog.Default().With(slog.String("job", TaskStatementDeliver))
}

func (j *StatementDeliveryJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
