package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/quotedesk/jobs"
)

type stubClient struct {
	tasks []*asynq.Task
}

func (s *stubClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	s.tasks = append(s.tasks, task)
	return &asynq.TaskInfo{ID: "t-1", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

func (s *stubClient) Close() error { return nil }

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) { return s.info, s.err }

func (s stubInspector) Close() error { return nil }

func TestRunTrigger(t *testing.T) {
	client := &stubClient{}
	c := &JobsCLI{client: client}
	out := new(bytes.Buffer)

	require.NoError(t, c.Run(context.Background(), []string{"trigger", jobs.TaskOverdueScan}, out))
	require.Len(t, client.tasks, 1)
	assert.Equal(t, jobs.TaskOverdueScan, client.tasks[0].Type())
	assert.Equal(t, "enqueued invoices:overdue-scan id=t-1 queue=default\n", out.String())

	_, err := c.Trigger(context.Background(), "statement:deliver")
	assert.Error(t, err, "statements need a customer and period")
}

func TestRunStats(t *testing.T) {
	c := &JobsCLI{inspector: stubInspector{info: &asynq.QueueInfo{Queue: "default", Pending: 2, Retry: 1}}}
	out := new(bytes.Buffer)

	require.NoError(t, c.Run(context.Background(), []string{"stats"}, out))
	assert.Equal(t, "queue=default pending=2 active=0 scheduled=0 retry=1 archived=0\n", out.String())

	c = &JobsCLI{inspector: stubInspector{err: errors.New("redis down")}}
	assert.Error(t, c.Run(context.Background(), []string{"stats"}, out))
}

func TestRunUsage(t *testing.T) {
	c := &JobsCLI{}
	assert.ErrorIs(t, c.Run(context.Background(), nil, new(bytes.Buffer)), ErrUsage)
	assert.ErrorIs(t, c.Run(context.Background(), []string{"trigger"}, new(bytes.Buffer)), ErrUsage)
	_, err := c.Trigger(context.Background(), jobs.TaskOverdueScan)
	assert.Error(t, err)
}
