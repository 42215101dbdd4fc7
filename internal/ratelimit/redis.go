package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Redis is a per-minute window shared by every process that uses the same
// prefix, so parallel operators do not exceed one client quota together.
type Redis struct {
	c      *redis.Client
	prefix string
	limit  int64
	window time.Duration
	pause  time.Duration
	now    func() time.Time
}

func NewRedis(addr, prefix string, perMinute int64) *Redis {
	if prefix == "" {
		prefix = "rl:cargo"
	}
	if perMinute <= 0 {
		perMinute = 120
	}
	return &Redis{
		c:      redis.NewClient(&redis.Options{Addr: addr}),
		prefix: prefix,
		limit:  perMinute,
		window: 70 * time.Second,
		pause:  500 * time.Millisecond,
		now:    time.Now,
	}
}

// minuteKey is the counter of the UTC minute at, e.g. rl:cargo:petco:202503011015.
func (rl *Redis) minuteKey(at time.Time) string {
	return fmt.Sprintf("%s:%s", rl.prefix, at.UTC().Format("200601021504"))
}

// take spends one call from the budget of the minute at. The counter lives a
// bit longer than the minute so a late INCR never restarts it.
func (rl *Redis) take(ctx context.Context, at time.Time) (key string, n int64, allowed bool, err error) {
	key = rl.minuteKey(at)
	pipe := rl.c.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, rl.window)
	if _, err = pipe.Exec(ctx); err != nil {
		return key, 0, false, errors.Wrap(err, "redis ratelimit")
	}
	n = incr.Val()
	return key, n, n <= rl.limit, nil
}

// Wait blocks until the current minute has budget left or ctx is done.
func (rl *Redis) Wait(ctx context.Context) error {
	for {
		key, n, allowed, err := rl.take(ctx, rl.now())
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}
		slog.Warn("rate limit exceeded", "key", key, "count", n)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(rl.pause):
		}
	}
}

func (rl *Redis) Close() error {
	return rl.c.Close()
}
