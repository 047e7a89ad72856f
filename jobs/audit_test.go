package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backlog-dim/backlog-dim/internal/audit"
	jobmetrics "github.com/backlog-dim/backlog-dim/internal/jobs"
)

type captureQueue struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (q *captureQueue) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.tasks = append(q.tasks, task)
	q.opts = append(q.opts, opts)
	return &asynq.TaskInfo{Queue: QueueDefault, Type: task.Type()}, nil
}

type memoryWriter struct {
	entries []audit.Entry
	err     error
}

func (w *memoryWriter) Record(ctx context.Context, e audit.Entry) error {
	if w.err != nil {
		return w.err
	}
	w.entries = append(w.entries, e)
	return nil
}

func sampleEntry() audit.Entry {
	uid := int64(7)
	return audit.Entry{
		Table:     "Processo",
		Action:    "CREATE",
		UserID:    &uid,
		Email:     "ana@example.gov.br",
		Context:   "/api/processos",
		After:     json.RawMessage(`{"id":1}`),
		IP:        "10.0.0.1",
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestAuditSinkEnqueuesEntry(t *testing.T) {
	q := &captureQueue{}
	sink := NewAuditSink(q)

	require.NoError(t, sink.Record(context.Background(), sampleEntry()))
	require.Len(t, q.tasks, 1)
	assert.Equal(t, TaskAuditRecord, q.tasks[0].Type())

	var decoded audit.Entry
	require.NoError(t, json.Unmarshal(q.tasks[0].Payload(), &decoded))
	assert.Equal(t, "Processo", decoded.Table)
	assert.Equal(t, "ana@example.gov.br", decoded.Email)
	require.NotNil(t, decoded.UserID)
	assert.Equal(t, int64(7), *decoded.UserID)
}

func TestAuditSinkRejectsIncompleteEntry(t *testing.T) {
	q := &captureQueue{}
	err := NewAuditSink(q).Record(context.Background(), audit.Entry{Email: "x@y.z"})
	require.Error(t, err)
	assert.Empty(t, q.tasks)
}

func TestAuditSinkPropagatesQueueError(t *testing.T) {
	q := &captureQueue{err: errors.New("redis down")}
	err := NewAuditSink(q).Record(context.Background(), sampleEntry())
	assert.EqualError(t, err, "redis down")
}

func TestAuditRecordHandlerPersists(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	writer := &memoryWriter{}
	task, err := NewAuditRecordTask(sampleEntry())
	require.NoError(t, err)

	handler := NewAuditRecordHandler(writer, metrics)
	require.NoError(t, handler(context.Background(), task))
	require.Len(t, writer.entries, 1)
	assert.JSONEq(t, `{"id":1}`, string(writer.entries[0].After))

	writer.err = errors.New("insert failed")
	require.Error(t, handler(context.Background(), task))

	count, err := testutil.GatherAndCount(reg, "backlog_jobs_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestAuditRecordHandlerSkipsRetryOnBadPayload(t *testing.T) {
	handler := NewAuditRecordHandler(&memoryWriter{}, nil)
	err := handler(context.Background(), asynq.NewTask(TaskAuditRecord, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
