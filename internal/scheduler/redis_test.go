package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/pushgate/pkg/logger"
)

func newRedisFixture(t *testing.T, handler HandlerFunc) (*RedisQueue, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	q := NewRedisQueue(client, RedisQueueConfig{Key: "test:delayed", PollInterval: 10 * time.Millisecond}, handler, nil, logger.Discard())
	return q, mr, client
}

func TestRedisQueue_SchedulePersistsJob(t *testing.T) {
	q, mr, _ := newRedisFixture(t, newRecorder().handle)
	defer q.Close()

	h, err := q.Schedule(context.Background(), "notify", samplePayload{UserID: 3}, time.Minute)
	require.NoError(t, err)

	members, err := mr.ZMembers("test:delayed")
	require.NoError(t, err)
	assert.Equal(t, []string{h.ID}, members)

	score, err := mr.ZScore("test:delayed", h.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(h.RunAt.UnixMilli()), score)
	assert.NotEmpty(t, mr.HGet("test:delayed:jobs", h.ID))

	n, err := q.Pending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRedisQueue_PollRunsOnlyDueJobs(t *testing.T) {
	rec := newRecorder()
	q, mr, _ := newRedisFixture(t, rec.handle)
	defer q.Close()

	ctx := logger.WithCorrelationID(context.Background(), "corr-9")
	due, err := q.Schedule(ctx, "notify", samplePayload{UserID: 1}, 0)
	require.NoError(t, err)
	_, err = q.Schedule(ctx, "notify", samplePayload{UserID: 2}, time.Hour)
	require.NoError(t, err)

	started, err := q.poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, started)
	waitRun(t, rec)

	rec.mu.Lock()
	job, runCtx := rec.jobs[0], rec.ctxs[0]
	rec.mu.Unlock()
	assert.Equal(t, due.ID, job.ID)
	assert.Equal(t, "corr-9", logger.CorrelationIDFromContext(runCtx))
	assert.Empty(t, mr.HGet("test:delayed:jobs", due.ID))

	n, err := q.Pending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRedisQueue_PollLaterTime(t *testing.T) {
	rec := newRecorder()
	q, _, _ := newRedisFixture(t, rec.handle)
	defer q.Close()

	_, err := q.Schedule(context.Background(), "notify", nil, time.Hour)
	require.NoError(t, err)

	base := time.Now()
	q.now = func() time.Time { return base.Add(2 * time.Hour) }

	started, err := q.poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, started)
	waitRun(t, rec)
}

func TestRedisQueue_Cancel(t *testing.T) {
	rec := newRecorder()
	q, mr, _ := newRedisFixture(t, rec.handle)
	defer q.Close()

	h, err := q.Schedule(context.Background(), "notify", nil, 0)
	require.NoError(t, err)

	removed, err := h.Cancel(context.Background())
	require.NoError(t, err)
	assert.True(t, removed)
	assert.False(t, mr.Exists("test:delayed:jobs"))

	removed, err = h.Cancel(context.Background())
	require.NoError(t, err)
	assert.False(t, removed)

	started, err := q.poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, started)
}

func TestRedisQueue_JobClaimedOnce(t *testing.T) {
	rec := newRecorder()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cfg := RedisQueueConfig{Key: "test:delayed"}
	a := NewRedisQueue(client, cfg, rec.handle, nil, logger.Discard())
	b := NewRedisQueue(client, cfg, rec.handle, nil, logger.Discard())
	defer a.Close()
	defer b.Close()

	_, err := a.Schedule(context.Background(), "notify", nil, 0)
	require.NoError(t, err)

	n1, err := a.poll(context.Background())
	require.NoError(t, err)
	n2, err := b.poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n1+n2)
	waitRun(t, rec)
}

func TestRedisQueue_PendingGaugeSharedAcrossReplicas(t *testing.T) {
	rec := newRecorder()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cfg := RedisQueueConfig{Key: "test:delayed"}
	a := NewRedisQueue(client, cfg, rec.handle, prometheus.NewRegistry(), logger.Discard())
	b := NewRedisQueue(client, cfg, rec.handle, prometheus.NewRegistry(), logger.Discard())
	defer a.Close()
	defer b.Close()

	_, err := a.Schedule(context.Background(), "notify", nil, 0)
	require.NoError(t, err)
	_, err = a.Schedule(context.Background(), "notify", nil, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(a.metrics.pending))

	started, err := b.poll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, started)
	waitRun(t, rec)
	assert.Equal(t, 1.0, testutil.ToFloat64(b.metrics.pending))

	started, err = a.poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, started)
	assert.Equal(t, 1.0, testutil.ToFloat64(a.metrics.pending))
}

func TestRedisQueue_StartPolls(t *testing.T) {
	rec := newRecorder()
	q, _, _ := newRedisFixture(t, rec.handle)

	q.Start(context.Background())
	_, err := q.Schedule(context.Background(), "notify", nil, 20*time.Millisecond)
	require.NoError(t, err)

	waitRun(t, rec)
	require.NoError(t, q.Close())

	_, err = q.Schedule(context.Background(), "notify", nil, 0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRedisQueue_CloseKeepsPendingJobs(t *testing.T) {
	q, mr, _ := newRedisFixture(t, newRecorder().handle)
	q.Start(context.Background())

	h, err := q.Schedule(context.Background(), "notify", nil, time.Hour)
	require.NoError(t, err)
	require.NoError(t, q.Close())

	members, err := mr.ZMembers("test:delayed")
	require.NoError(t, err)
	assert.Equal(t, []string{h.ID}, members)
}
