package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/backlog-dim/backlog-dim/internal/audit"
	jobmetrics "github.com/backlog-dim/backlog-dim/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditRecord persists one audit entry.
	TaskAuditRecord = "audit:record"
)

// AuditWriter is the persistence side used by the audit task handler.
type AuditWriter interface {
	Record(ctx context.Context, e audit.Entry) error
}

// NewAuditRecordTask wraps an audit entry into an Asynq task.
func NewAuditRecordTask(e audit.Entry) (*asynq.Task, error) {
	if e.Table == "" || e.Action == "" {
		return nil, errors.New("jobs: audit entry requires table and action")
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRecord, data, asynq.MaxRetry(5)), nil
}

// NewAuditRecordHandler returns the handler that stores queued audit entries.
func NewAuditRecordHandler(writer AuditWriter, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskAuditRecord)
		var entry audit.Entry
		if err := json.Unmarshal(t.Payload(), &entry); err != nil {
			return tracker.End(fmt.Errorf("jobs: decode audit entry: %v: %w", err, asynq.SkipRetry))
		}
		if writer == nil {
			return tracker.End(errors.New("jobs: audit writer not configured"))
		}
		return tracker.End(writer.Record(ctx, entry))
	}
}
