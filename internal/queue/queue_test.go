package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis, *time.Time) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	clock := now
	c := NewFromRedis(rdb, zerolog.Nop()).WithClock(func() time.Time { return clock })
	return c, mr, &clock
}

func TestPushPopOrder(t *testing.T) {
	c, _, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.PushCreator(ctx, 7, now.Add(-time.Minute)))
	require.NoError(t, c.PushCreator(ctx, 3, now.Add(-time.Hour)))
	require.NoError(t, c.PushCreators(ctx, []uint{9}))

	length, err := c.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), length)

	var order []uint
	for {
		id, ok, err := c.PopCreator(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		order = append(order, id)
	}
	assert.Equal(t, []uint{3, 7, 9}, order)
}

func TestPushKeepsEarliestSlot(t *testing.T) {
	c, _, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.PushCreator(ctx, 1, now.Add(-time.Hour)))
	require.NoError(t, c.PushCreator(ctx, 1, now.Add(time.Hour)))

	length, err := c.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), length)

	id, ok, err := c.PopCreator(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint(1), id)
}

func TestPopSkipsCreatorsNotYetDue(t *testing.T) {
	c, _, clock := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.PushCreator(ctx, 5, now.Add(time.Minute)))

	_, ok, err := c.PopCreator(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	length, err := c.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), length)

	*clock = now.Add(2 * time.Minute)
	id, ok, err := c.PopCreator(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint(5), id)
}

func TestPopEmptyQueue(t *testing.T) {
	c, _, _ := newTestClient(t)

	_, ok, err := c.PopCreator(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRequeueStuck(t *testing.T) {
	c, mr, clock := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.SetInFlight(ctx, 1, "worker-a"))
	*clock = now.Add(20 * time.Minute)
	require.NoError(t, c.SetInFlight(ctx, 2, "worker-b"))
	mr.HSet(inFlightKey, "junk", "nonsense")

	requeued, err := c.RequeueStuck(ctx, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, requeued)

	inFlight, err := c.InFlight(ctx)
	require.NoError(t, err)
	assert.Contains(t, inFlight, "2")
	assert.NotContains(t, inFlight, "1")

	id, ok, err := c.PopCreator(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint(1), id)
}

func TestAttempts(t *testing.T) {
	c, _, _ := newTestClient(t)
	ctx := context.Background()

	n, err := c.IncrAttempts(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = c.IncrAttempts(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, c.ResetAttempts(ctx, 4))
	n, err = c.IncrAttempts(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("not a url", zerolog.Nop())
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	c, err := NewClient("redis://"+mr.Addr(), zerolog.Nop())
	require.NoError(t, err)
	assert.NoError(t, c.Ping(context.Background()))
	assert.NoError(t, c.Close())
}
