package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/quotedesk/internal/jobs"
	"github.com/odyssey-erp/quotedesk/internal/shared"
	"github.com/odyssey-erp/quotedesk/internal/statements"
)

func newMetrics(t *testing.T) (*jobmetrics.Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return jobmetrics.NewMetrics(reg), reg
}

func metricValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
	next:
		for _, m := range fam.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue next
				}
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			}
		}
	}
	return 0
}

type fakeDeliverer struct {
	requests []statements.DeliveryRequest
	err      error
}

func (f *fakeDeliverer) Deliver(ctx context.Context, req statements.DeliveryRequest) (statements.DeliveryReceipt, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return statements.DeliveryReceipt{}, f.err
	}
	return statements.DeliveryReceipt{CustomerID: req.CustomerID, Location: "mem://statement.pdf"}, nil
}

func TestStatementDeliveryTaskRoundTrip(t *testing.T) {
	req := statements.DeliveryRequest{CustomerID: 10, From: "2026-02-01", To: "2026-02-28", RequestedBy: 2}
	task, err := NewStatementDeliveryTask(req)
	require.NoError(t, err)
	assert.Equal(t, TaskStatementDeliver, task.Type())

	deliverer := &fakeDeliverer{}
	metrics, reg := newMetrics(t)
	job := NewStatementDeliveryJob(deliverer, nil, metrics)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, deliverer.requests, 1)
	assert.Equal(t, req, deliverer.requests[0])
	assert.Equal(t, 1.0, metricValue(t, reg, "quotedesk_jobs_total", map[string]string{"job": TaskStatementDeliver, "status": "success"}))
}

func TestStatementDeliverySkipsRetryForPermanentErrors(t *testing.T) {
	task, err := NewStatementDeliveryTask(statements.DeliveryRequest{CustomerID: 99})
	require.NoError(t, err)
	metrics, reg := newMetrics(t)

	job := NewStatementDeliveryJob(&fakeDeliverer{err: shared.NotFoundf("customer 99 not found")}, nil, metrics)
	err = job.Handle(context.Background(), task)
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	transient := errors.New("s3 unavailable")
	job = NewStatementDeliveryJob(&fakeDeliverer{err: transient}, nil, metrics)
	err = job.Handle(context.Background(), task)
	assert.ErrorIs(t, err, transient)
	assert.False(t, errors.Is(err, asynq.SkipRetry))

	assert.Equal(t, 2.0, metricValue(t, reg, "quotedesk_jobs_failures_total", map[string]string{"job": TaskStatementDeliver}))

	err = job.Handle(context.Background(), asynq.NewTask(TaskStatementDeliver, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

type fakePurger struct {
	olderThan time.Duration
	deleted   int64
}

func (f *fakePurger) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	f.olderThan = olderThan
	return f.deleted, nil
}

func TestIdempotencyCleanup(t *testing.T) {
	purger := &fakePurger{deleted: 7}
	metrics, reg := newMetrics(t)
	job := NewIdempotencyCleanupJob(purger, nil, metrics)

	task, err := NewIdempotencyCleanupTask(24)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 24*time.Hour, purger.olderThan)
	assert.Equal(t, 7.0, metricValue(t, reg, "quotedesk_idempotency_keys_purged_total", nil))

	task, err = NewIdempotencyCleanupTask(0)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, defaultKeyRetention, purger.olderThan)
}

type fakeOverdue struct {
	count   int
	balance decimal.Decimal
	err     error
}

func (f fakeOverdue) OverdueSummary(ctx context.Context) (int, decimal.Decimal, error) {
	return f.count, f.balance, f.err
}

func TestOverdueScanPublishesGauges(t *testing.T) {
	metrics, reg := newMetrics(t)
	task, err := NewOverdueScanTask()
	require.NoError(t, err)

	job := NewOverdueScanJob(fakeOverdue{count: 3, balance: decimal.RequireFromString("250.50")}, nil, metrics)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 3.0, metricValue(t, reg, "quotedesk_invoices_overdue_count", nil))
	assert.Equal(t, 250.5, metricValue(t, reg, "quotedesk_invoices_overdue_balance", nil))

	job = NewOverdueScanJob(fakeOverdue{err: errors.New("db down")}, nil, metrics)
	assert.Error(t, job.Handle(context.Background(), task))
	assert.Equal(t, 3.0, metricValue(t, reg, "quotedesk_invoices_overdue_count", nil))
}

func TestUnconfiguredJobsFail(t *testing.T) {
	task := asynq.NewTask(TaskOverdueScan, nil)
	assert.Error(t, (&OverdueScanJob{}).Handle(context.Background(), task))
	assert.Error(t, (&IdempotencyCleanupJob{}).Handle(context.Background(), task))
	assert.Error(t, (&StatementDeliveryJob{}).Handle(context.Background(), task))
}

func TestHealthWithoutInspector(t *testing.T) {
	rr := httptest.NewRecorder()
	NewHandler(nil, nil).health(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var body queueHealth
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, QueueDefault, body.Queue)
	assert.Zero(t, body.Pending)
}
