// Package scheduler runs jobs after a delay. Jobs are detached from the
// request that scheduled them and can be cancelled until they start.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/pushgate/pkg/logger"
)

// ErrClosed is returned when scheduling on a queue that has been closed.
var ErrClosed = errors.New("scheduler: queue closed")

// Job is a unit of deferred work. Payload is opaque to the queue.
type Job struct {
	ID            string          `json:"id"`
	Kind          string          `json:"kind"`
	Payload       json.RawMessage `json:"payload"`
	RunAt         time.Time       `json:"run_at"`
	CorrelationID string          `json:"correlation_id,omitempty"`
}

// HandlerFunc executes a due job. Its error is logged by the queue.
type HandlerFunc func(ctx context.Context, job Job) error

// Queue schedules jobs for later execution.
type Queue interface {
	Schedule(ctx context.Context, kind string, payload any, delay time.Duration) (*Handle, error)
	Close() error
}

// Handle identifies a scheduled job.
type Handle struct {
	ID    string
	RunAt time.Time

	cancel func(ctx context.Context) (bool, error)
}

// Cancel removes the job if it has not started yet and reports whether it
// was removed.
func (h *Handle) Cancel(ctx context.Context) (bool, error) {
	return h.cancel(ctx)
}

func newJob(ctx context.Context, kind string, payload any, runAt time.Time) (Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return Job{
		ID:            uuid.NewString(),
		Kind:          kind,
		Payload:       raw,
		RunAt:         runAt,
		CorrelationID: logger.CorrelationIDFromContext(ctx),
	}, nil
}
