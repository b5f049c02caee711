package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/utafrali/pushgate/pkg/logger"
)

// MemoryQueue keeps jobs in process on timers. Pending jobs are lost when the
// process exits.
type MemoryQueue struct {
	handler HandlerFunc
	logger  *slog.Logger
	metrics *metrics

	mu      sync.Mutex
	timers  map[string]*time.Timer
	closed  bool
	running sync.WaitGroup
}

// NewMemoryQueue creates an in-process queue. reg may be nil.
func NewMemoryQueue(handler HandlerFunc, reg prometheus.Registerer, logger *slog.Logger) *MemoryQueue {
	return &MemoryQueue{
		handler: handler,
		logger:  logger,
		metrics: newMetrics(reg, "memory"),
		timers:  make(map[string]*time.Timer),
	}
}

// Schedule runs the job after delay with a context that keeps ctx's values
// but not its cancellation.
func (q *MemoryQueue) Schedule(ctx context.Context, kind string, payload any, delay time.Duration) (*Handle, error) {
	job, err := newJob(ctx, kind, payload, time.Now().Add(delay))
	if err != nil {
		return nil, err
	}
	runCtx := context.WithoutCancel(ctx)

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrClosed
	}

	q.running.Add(1)
	q.timers[job.ID] = time.AfterFunc(delay, func() {
		defer q.running.Done()
		if !q.claim(job.ID) {
			return
		}
		q.run(runCtx, job)
	})
	q.metrics.pending.Inc()

	return &Handle{
		ID:    job.ID,
		RunAt: job.RunAt,
		cancel: func(context.Context) (bool, error) {
			return q.cancel(job.ID), nil
		},
	}, nil
}

// claim removes id from the pending set; false means it was cancelled.
func (q *MemoryQueue) claim(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.timers[id]; !ok {
		return false
	}
	delete(q.timers, id)
	q.metrics.pending.Dec()
	return true
}

func (q *MemoryQueue) cancel(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.timers[id]
	if !ok {
		return false
	}
	delete(q.timers, id)
	q.metrics.pending.Dec()
	if t.Stop() {
		q.running.Done()
	}
	return true
}

func (q *MemoryQueue) run(ctx context.Context, job Job) {
	if job.CorrelationID != "" && logger.CorrelationIDFromContext(ctx) == "" {
		ctx = logger.WithCorrelationID(ctx, job.CorrelationID)
	}
	err := q.handler(ctx, job)
	q.metrics.ran(err)
	if err != nil {
		q.logger.ErrorContext(ctx, "delayed job failed",
			slog.String("job_id", job.ID),
			slog.String("kind", job.Kind),
			slog.String("error", err.Error()),
		)
	}
}

// Pending returns the number of jobs waiting for their timer.
func (q *MemoryQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.timers)
}

// Close cancels every pending job and waits for running ones to finish.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	for id, t := range q.timers {
		delete(q.timers, id)
		q.metrics.pending.Dec()
		if t.Stop() {
			q.running.Done()
		}
	}
	q.mu.Unlock()

	q.running.Wait()
	return nil
}
