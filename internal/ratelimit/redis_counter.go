package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

var _ httprate.LimitCounter = (*RedisCounter)(nil)

const redisOpTimeout = 500 * time.Millisecond

// RedisCounter is a fixed-window httprate.LimitCounter shared by every
// instance through Redis. Each window is its own key and expires with it.
// httprate only serializes Get and IncrementBy within one process, so
// instances racing in the same window can each admit one request past the
// limit.
type RedisCounter struct {
	rdb    *redis.Client
	prefix string
	length time.Duration
}

// NewRedisCounter stores counts under keys starting with prefix.
func NewRedisCounter(rdb *redis.Client, prefix string) *RedisCounter {
	return &RedisCounter{rdb: rdb, prefix: prefix}
}

// Config records the window length used for key expiry.
func (c *RedisCounter) Config(_ int, windowLength time.Duration) {
	c.length = windowLength
}

// Increment adds one hit for key in currentWindow.
func (c *RedisCounter) Increment(key string, currentWindow time.Time) error {
	return c.IncrementBy(key, currentWindow, 1)
}

// IncrementBy adds amount hits for key in currentWindow.
func (c *RedisCounter) IncrementBy(key string, currentWindow time.Time, amount int) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	k := c.key(key, currentWindow)
	pipe := c.rdb.TxPipeline()
	pipe.IncrBy(ctx, k, int64(amount))
	pipe.Expire(ctx, k, c.length)
	if _, err := pipe.Exec(ctx); err != nil {
		return oops.Code("RATELIMIT_COUNTER_FAILED").In("redis").Wrap(err)
	}
	return nil
}

// Get returns the hits for key in currentWindow and always 0 for the
// previous window.
func (c *RedisCounter) Get(key string, currentWindow, _ time.Time) (int, int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	n, err := c.rdb.Get(ctx, c.key(key, currentWindow)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, oops.Code("RATELIMIT_COUNTER_FAILED").In("redis").Wrap(err)
	}
	return n, 0, nil
}

func (c *RedisCounter) key(key string, window time.Time) string {
	return c.prefix + key + ":" + strconv.FormatInt(window.Unix(), 10)
}
