package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnt/memescore/internal/apperr"
	"github.com/wnt/memescore/internal/models"
	"github.com/wnt/memescore/internal/queue"
)

type fakeRecomputer struct {
	mu    sync.Mutex
	calls []uint
	fail  map[uint]error
}

func (f *fakeRecomputer) RecomputeOne(ctx context.Context, creatorID uint) (models.ScoreSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, creatorID)
	if err := f.fail[creatorID]; err != nil {
		return models.ScoreSnapshot{}, err
	}
	return models.ScoreSnapshot{CreatorID: creatorID}, nil
}

func (f *fakeRecomputer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var testOptions = Options{
	IdleWait:    10 * time.Millisecond,
	ErrorWait:   10 * time.Millisecond,
	MaxAttempts: 3,
	RetryDelay:  time.Hour,
}

func newQueue(t *testing.T) *queue.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return queue.NewFromRedis(rdb, zerolog.Nop())
}

func TestProcessNextSuccess(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t)
	rec := &fakeRecomputer{}
	w := NewWorker("w1", q, rec, testOptions, zerolog.Nop())

	require.NoError(t, q.PushCreator(ctx, 4, time.Now().Add(-time.Second)))
	_, err := q.IncrAttempts(ctx, 4)
	require.NoError(t, err)

	processed, err := w.processNext(ctx)
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, []uint{4}, rec.calls)

	inFlight, err := q.InFlight(ctx)
	require.NoError(t, err)
	assert.Empty(t, inFlight)

	attempts, err := q.IncrAttempts(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(1), attempts, "attempts reset after success")
}

func TestProcessNextEmptyQueue(t *testing.T) {
	w := NewWorker("w1", newQueue(t), &fakeRecomputer{}, testOptions, zerolog.Nop())

	processed, err := w.processNext(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestProcessNextRequeuesExternalFailure(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t)
	rec := &fakeRecomputer{fail: map[uint]error{5: apperr.ExternalFetch("social", errors.New("timeout"))}}
	w := NewWorker("w1", q, rec, testOptions, zerolog.Nop())

	require.NoError(t, q.PushCreator(ctx, 5, time.Now().Add(-time.Second)))

	processed, err := w.processNext(ctx)
	require.NoError(t, err)
	assert.True(t, processed)

	length, err := q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), length)

	// requeued into the future, so nothing is due yet
	processed, err = w.processNext(ctx)
	require.NoError(t, err)
	assert.False(t, processed)
	assert.Equal(t, 1, rec.callCount())
}

func TestProcessNextGivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t)
	rec := &fakeRecomputer{fail: map[uint]error{5: apperr.ExternalFetch("social", errors.New("timeout"))}}
	opts := testOptions
	opts.MaxAttempts = 1
	w := NewWorker("w1", q, rec, opts, zerolog.Nop())

	require.NoError(t, q.PushCreator(ctx, 5, time.Now().Add(-time.Second)))

	_, err := w.processNext(ctx)
	require.NoError(t, err)

	length, err := q.Length(ctx)
	require.NoError(t, err)
	assert.Zero(t, length)
}

func TestProcessNextDropsNotFound(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t)
	rec := &fakeRecomputer{fail: map[uint]error{6: apperr.NotFound("recompute", "creator not found")}}
	w := NewWorker("w1", q, rec, testOptions, zerolog.Nop())

	require.NoError(t, q.PushCreator(ctx, 6, time.Now().Add(-time.Second)))

	_, err := w.processNext(ctx)
	require.NoError(t, err)

	length, err := q.Length(ctx)
	require.NoError(t, err)
	assert.Zero(t, length)
}

func TestWorkerStartStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorker("w1", newQueue(t), &fakeRecomputer{}, testOptions, zerolog.Nop())

	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestManagerDrainsQueue(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t)
	rec := &fakeRecomputer{}

	require.NoError(t, q.PushCreators(ctx, []uint{1, 2, 3}))

	cfg := DefaultManagerConfig(2, 4)
	cfg.Worker = testOptions
	m := NewManager(cfg, q, rec, zerolog.Nop(), WithHealthyEndpoints(func() int { return 3 }))
	require.NoError(t, m.Start())
	t.Cleanup(func() { _ = m.Stop() })

	require.Eventually(t, func() bool { return rec.callCount() == 3 }, 2*time.Second, 10*time.Millisecond)

	stats, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ActiveWorkers)
	assert.Zero(t, stats.QueueLength)
	assert.Equal(t, 3, stats.HealthyEndpoints)

	require.NoError(t, m.Stop())
	require.NoError(t, m.Stop())
}

func TestCalculateDesiredWorkers(t *testing.T) {
	m := NewManager(DefaultManagerConfig(2, 5), nil, nil, zerolog.Nop())

	assert.Equal(t, 2, m.calculateDesiredWorkers(0))
	assert.Equal(t, 3, m.calculateDesiredWorkers(35))
	assert.Equal(t, 5, m.calculateDesiredWorkers(1000))
}
