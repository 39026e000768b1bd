// Package queue is the Redis-backed queue of creators waiting for a score recompute.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	queueKey    = "memescore:recompute_queue"
	inFlightKey = "memescore:recompute_inflight"
	attemptsKey = "memescore:recompute_attempts"
)

// Client wraps Redis operations for the recompute queue. Queue members are
// creator ids scored by the earliest time they may be processed.
type Client struct {
	client *redis.Client
	logger zerolog.Logger
	now    func() time.Time
}

// NewClient connects to Redis and verifies the connection
func NewClient(redisURL string, logger zerolog.Logger) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info().Str("redis_addr", opt.Addr).Msg("Connected to Redis successfully")

	return NewFromRedis(client, logger), nil
}

// NewFromRedis wraps an existing Redis client
func NewFromRedis(client *redis.Client, logger zerolog.Logger) *Client {
	return &Client{
		client: client,
		logger: logger.With().Str("component", "queue").Logger(),
		now:    time.Now,
	}
}

// WithClock overrides the clock used for scheduling and stuck detection
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

// PushCreator schedules a creator for recompute no earlier than notBefore. A
// creator already queued keeps its earlier slot.
func (c *Client) PushCreator(ctx context.Context, creatorID uint, notBefore time.Time) error {
	err := c.client.ZAddLT(ctx, queueKey, redis.Z{
		Score:  float64(notBefore.Unix()),
		Member: member(creatorID),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to push creator to queue: %w", err)
	}

	c.logger.Debug().
		Uint("creator_id", creatorID).
		Time("not_before", notBefore).
		Msg("Pushed creator to queue")
	return nil
}

// PushCreators schedules creators for immediate recompute
func (c *Client) PushCreators(ctx context.Context, creatorIDs []uint) error {
	if len(creatorIDs) == 0 {
		return nil
	}

	score := float64(c.now().Unix())
	members := make([]redis.Z, 0, len(creatorIDs))
	for _, id := range creatorIDs {
		members = append(members, redis.Z{Score: score, Member: member(id)})
	}

	if err := c.client.ZAddLT(ctx, queueKey, members...).Err(); err != nil {
		return fmt.Errorf("failed to push creators to queue: %w", err)
	}

	c.logger.Info().Int("count", len(creatorIDs)).Msg("Enqueued creators for recompute")
	return nil
}

// PopCreator removes and returns the creator that is due first. ok is false
// when the queue is empty or nothing is due yet.
func (c *Client) PopCreator(ctx context.Context) (creatorID uint, ok bool, err error) {
	result, err := c.client.ZPopMin(ctx, queueKey, 1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to pop creator from queue: %w", err)
	}
	if len(result) == 0 {
		return 0, false, nil
	}

	raw, _ := result[0].Member.(string)
	id, err := parseMember(raw)
	if err != nil {
		c.logger.Warn().Str("member", raw).Msg("Dropping malformed queue member")
		return 0, false, nil
	}

	// Not due yet: put it back untouched
	if int64(result[0].Score) > c.now().Unix() {
		if err := c.client.ZAdd(ctx, queueKey, result[0]).Err(); err != nil {
			return 0, false, fmt.Errorf("failed to return creator to queue: %w", err)
		}
		return 0, false, nil
	}

	c.logger.Debug().Uint("creator_id", id).Msg("Popped creator from queue")
	return id, true, nil
}

// SetInFlight marks a creator as being processed by a worker
func (c *Client) SetInFlight(ctx context.Context, creatorID uint, worker string) error {
	value := fmt.Sprintf("%s,%d", worker, c.now().Unix())
	if err := c.client.HSet(ctx, inFlightKey, member(creatorID), value).Err(); err != nil {
		return fmt.Errorf("failed to set creator in-flight: %w", err)
	}
	return nil
}

// RemoveInFlight removes a creator from the in-flight tracking
func (c *Client) RemoveInFlight(ctx context.Context, creatorID uint) error {
	if err := c.client.HDel(ctx, inFlightKey, member(creatorID)).Err(); err != nil {
		return fmt.Errorf("failed to remove creator from in-flight: %w", err)
	}
	return nil
}

// InFlight returns creator id to "worker,unix-start" for creators being processed
func (c *Client) InFlight(ctx context.Context) (map[string]string, error) {
	result, err := c.client.HGetAll(ctx, inFlightKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get in-flight creators: %w", err)
	}
	return result, nil
}

// IncrAttempts counts a failed recompute of a creator and returns the total
func (c *Client) IncrAttempts(ctx context.Context, creatorID uint) (int64, error) {
	n, err := c.client.HIncrBy(ctx, attemptsKey, member(creatorID), 1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment attempts: %w", err)
	}
	return n, nil
}

// ResetAttempts clears the failure count of a creator
func (c *Client) ResetAttempts(ctx context.Context, creatorID uint) error {
	if err := c.client.HDel(ctx, attemptsKey, member(creatorID)).Err(); err != nil {
		return fmt.Errorf("failed to reset attempts: %w", err)
	}
	return nil
}

// Length returns the number of queued creators
func (c *Client) Length(ctx context.Context) (int64, error) {
	length, err := c.client.ZCard(ctx, queueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue length: %w", err)
	}
	return length, nil
}

// RequeueStuck moves creators that have been in flight longer than timeout back to the queue
func (c *Client) RequeueStuck(ctx context.Context, timeout time.Duration) (int, error) {
	inFlight, err := c.InFlight(ctx)
	if err != nil {
		return 0, err
	}

	now := c.now()
	cutoff := now.Add(-timeout).Unix()
	requeued := 0

	for raw, value := range inFlight {
		worker, started, ok := splitValue(value)
		id, err := parseMember(raw)
		if !ok || err != nil {
			c.logger.Warn().Str("creator_id", raw).Str("value", value).Msg("Invalid in-flight entry")
			continue
		}
		if started >= cutoff {
			continue
		}

		if err := c.PushCreator(ctx, id, now); err != nil {
			c.logger.Error().Err(err).Uint("creator_id", id).Msg("Failed to requeue stuck creator")
			continue
		}
		if err := c.RemoveInFlight(ctx, id); err != nil {
			c.logger.Error().Err(err).Uint("creator_id", id).Msg("Failed to remove requeued creator from in-flight")
		}

		requeued++
		c.logger.Info().
			Uint("creator_id", id).
			Str("worker", worker).
			Int64("stuck_seconds", now.Unix()-started).
			Msg("Requeued stuck creator")
	}

	return requeued, nil
}

// Ping checks the Redis connection
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.client.Close()
}

func member(creatorID uint) string {
	return strconv.FormatUint(uint64(creatorID), 10)
}

func parseMember(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid creator id %q", raw)
	}
	return uint(id), nil
}

// splitValue splits the in-flight value format "worker,timestamp"
func splitValue(value string) (worker string, started int64, ok bool) {
	worker, ts, found := strings.Cut(value, ",")
	if !found {
		return "", 0, false
	}
	started, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", 0, false
	}
	return worker, started, true
}
