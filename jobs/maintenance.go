package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	jobmetrics "github.com/odyssey-erp/quotedesk/internal/jobs"
)

const defaultKeyRetention = 72 * time.Hour

// KeyPurger deletes idempotency keys older than a retention window.
type KeyPurger interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyCleanupJob handles TaskIdempotencyCleanup.
type IdempotencyCleanupJob struct {
	Keys    KeyPurger
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewIdempotencyCleanupJob wires dependencies for the cleanup handler.
func NewIdempotencyCleanupJob(keys KeyPurger, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{Keys: keys, Logger: logger, Metrics: metrics}
}

// Handle removes expired keys.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Keys == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	retention := defaultKeyRetention
	if payload.RetentionHours > 0 {
		retention = time.Duration(payload.RetentionHours) * time.Hour
	}

	tracker := j.metrics().Track(TaskIdempotencyCleanup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := jobLogger(j.Logger, TaskIdempotencyCleanup)
	purged, err := j.Keys.Cleanup(ctx, retention)
	if err != nil {
		resultErr = err
		logger.Error("purge idempotency keys", slog.Any("error", err))
		return resultErr
	}
	j.metrics().AddPurgedKeys(purged)
	logger.Info("purged idempotency keys", slog.Int64("deleted", purged), slog.Duration("retention", retention))
	return resultErr
}

func (j *IdempotencyCleanupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

// OverdueSummarizer reports overdue invoices for the current day.
type OverdueSummarizer interface {
	OverdueSummary(ctx context.Context) (int, decimal.Decimal, error)
}

// OverdueScanJob handles TaskOverdueScan.
type OverdueScanJob struct {
	Invoices OverdueSummarizer
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewOverdueScanJob wires dependencies for the overdue scan handler.
func NewOverdueScanJob(invoices OverdueSummarizer, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverdueScanJob {
	return &OverdueScanJob{Invoices: invoices, Logger: logger, Metrics: metrics}
}

// Handle publishes the overdue count and balance as gauges.
func (j *OverdueScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Invoices == nil {
		return errors.New("overdue scan: handler not configured")
	}

	tracker := j.metrics().Track(TaskOverdueScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := jobLogger(j.Logger, TaskOverdueScan)
	count, balance, err := j.Invoices.OverdueSummary(ctx)
	if err != nil {
		resultErr = err
		logger.Error("overdue scan failed", slog.Any("error", err))
		return resultErr
	}
	j.metrics().SetOverdue(count, balance.InexactFloat64())
	if count > 0 {
		logger.Warn("overdue invoices outstanding", slog.Int("invoices", count), slog.String("balance", balance.StringFixed(2)))
	} else {
		logger.Info("no overdue invoices")
	}
	return resultErr
}

func (j *OverdueScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func jobLogger(logger *slog.Logger, job string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("job", job))
}
