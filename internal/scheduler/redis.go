package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/pushgate/pkg/logger"
)

const (
	defaultRedisKey  = "pushgate:delayed"
	defaultPollEvery = 500 * time.Millisecond
	claimBatch       = 100
)

// RedisQueueConfig configures a RedisQueue.
type RedisQueueConfig struct {
	// Key names the sorted set of due times; job bodies live in Key+":jobs".
	Key          string
	PollInterval time.Duration
}

// RedisQueue stores jobs in a Redis sorted set scored by due time, so pending
// jobs survive restarts and are shared between replicas. A job is claimed by
// whichever poller removes it from the set first.
type RedisQueue struct {
	client  redis.UniversalClient
	cfg     RedisQueueConfig
	handler HandlerFunc
	logger  *slog.Logger
	metrics *metrics
	now     func() time.Time

	mu      sync.Mutex
	closed  bool
	stop    context.CancelFunc
	done    chan struct{}
	running sync.WaitGroup
}

// NewRedisQueue creates a queue backed by client. Call Start to begin polling.
func NewRedisQueue(client redis.UniversalClient, cfg RedisQueueConfig, handler HandlerFunc, reg prometheus.Registerer, logger *slog.Logger) *RedisQueue {
	if cfg.Key == "" {
		cfg.Key = defaultRedisKey
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollEvery
	}
	return &RedisQueue{
		client:  client,
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		metrics: newMetrics(reg, "redis"),
		now:     time.Now,
	}
}

func (q *RedisQueue) jobsKey() string { return q.cfg.Key + ":jobs" }

// Schedule persists the job and returns its handle.
func (q *RedisQueue) Schedule(ctx context.Context, kind string, payload any, delay time.Duration) (*Handle, error) {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	job, err := newJob(ctx, kind, payload, q.now().Add(delay))
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.jobsKey(), job.ID, body)
	pipe.ZAdd(ctx, q.cfg.Key, redis.Z{Score: float64(job.RunAt.UnixMilli()), Member: job.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("schedule job: %w", err)
	}
	q.syncPending(ctx)

	return &Handle{
		ID:    job.ID,
		RunAt: job.RunAt,
		cancel: func(ctx context.Context) (bool, error) {
			return q.cancel(ctx, job.ID)
		},
	}, nil
}

func (q *RedisQueue) cancel(ctx context.Context, id string) (bool, error) {
	removed, err := q.client.ZRem(ctx, q.cfg.Key, id).Result()
	if err != nil {
		return false, fmt.Errorf("cancel job %s: %w", id, err)
	}
	if removed == 0 {
		return false, nil
	}
	q.syncPending(ctx)
	if err := q.client.HDel(ctx, q.jobsKey(), id).Err(); err != nil {
		return true, fmt.Errorf("delete job %s: %w", id, err)
	}
	return true, nil
}

// Start polls for due jobs until ctx is cancelled or Close is called.
func (q *RedisQueue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.done != nil || q.closed {
		q.mu.Unlock()
		return
	}
	ctx, q.stop = context.WithCancel(ctx)
	q.done = make(chan struct{})
	q.mu.Unlock()

	go q.loop(ctx)
}

func (q *RedisQueue) loop(ctx context.Context) {
	defer close(q.done)
	ticker := time.NewTicker(q.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := q.poll(ctx); err != nil && !errors.Is(err, context.Canceled) {
				q.logger.ErrorContext(ctx, "poll delayed jobs", slog.String("error", err.Error()))
			}
		}
	}
}

// poll claims and starts every due job. It returns how many were started.
func (q *RedisQueue) poll(ctx context.Context) (int, error) {
	defer q.syncPending(ctx)

	ids, err := q.client.ZRangeByScore(ctx, q.cfg.Key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(q.now().UnixMilli(), 10),
		Count: claimBatch,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("list due jobs: %w", err)
	}

	started := 0
	for _, id := range ids {
		removed, err := q.client.ZRem(ctx, q.cfg.Key, id).Result()
		if err != nil {
			return started, fmt.Errorf("claim job %s: %w", id, err)
		}
		if removed == 0 {
			continue // claimed by another replica or cancelled
		}

		body, err := q.client.HGet(ctx, q.jobsKey(), id).Bytes()
		if err != nil {
			q.logger.ErrorContext(ctx, "load claimed job", slog.String("job_id", id), slog.String("error", err.Error()))
			continue
		}
		if err := q.client.HDel(ctx, q.jobsKey(), id).Err(); err != nil {
			q.logger.ErrorContext(ctx, "delete claimed job", slog.String("job_id", id), slog.String("error", err.Error()))
		}

		var job Job
		if err := json.Unmarshal(body, &job); err != nil {
			q.logger.ErrorContext(ctx, "decode claimed job", slog.String("job_id", id), slog.String("error", err.Error()))
			continue
		}

		q.running.Add(1)
		started++
		go func() {
			defer q.running.Done()
			q.run(context.WithoutCancel(ctx), job)
		}()
	}
	return started, nil
}

func (q *RedisQueue) run(ctx context.Context, job Job) {
	if job.CorrelationID != "" {
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

// syncPending sets the pending gauge from the shared set, so every replica
// reports the same value.
func (q *RedisQueue) syncPending(ctx context.Context) {
	n, err := q.Pending(ctx)
	if err != nil {
		q.logger.WarnContext(ctx, "count pending jobs", slog.String("error", err.Error()))
		return
	}
	q.metrics.pending.Set(float64(n))
}

// Pending returns the number of jobs waiting in Redis.
func (q *RedisQueue) Pending(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, q.cfg.Key).Result()
}

// Close stops polling and waits for running jobs. Pending jobs stay in Redis
// for the next poller.
func (q *RedisQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	stop, done := q.stop, q.done
	q.mu.Unlock()

	if stop != nil {
		stop()
		<-done
	}
	q.running.Wait()
	return nil
}
