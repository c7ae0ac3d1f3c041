// Package distributed provides a Redis-backed ratelimit.Limiter for sharing
// submission-rate state across more than one scheduler process. The
// single-process token bucket in pkg/ratelimit remains the default; this
// variant exists for a future multi-instance rollout.
//
// Grounded on pkg/triggers/queue/trigger.go's use of redis.UniversalClient:
// same client construction and context-bounded Ping, adapted from a
// blocking queue consumer into a windowed INCR+EXPIRE counter.
package distributed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/dukex/styxgo/pkg/ratelimit"
)

// RedisLimiter implements ratelimit.Limiter as a fixed one-second window counter
// keyed in Redis: each Acquire issues INCR against the current second's key
// and admits the caller only while the count stays under the configured
// rate. EXPIRE bounds the key's lifetime so the counter resets every
// second without a separate cleanup process.
type RedisLimiter struct {
	client redis.UniversalClient
	key    string
	logger *slog.Logger

	rate float64
}

// NewRedisLimiter connects to addr and returns a ready-to-use RedisLimiter
// sharing key as its counter namespace (so multiple scheduler processes
// configured with the same key cooperate on one shared budget).
func NewRedisLimiter(ctx context.Context, logger *slog.Logger, addr, password string, db int, key string, ratePerSecond float64) (*RedisLimiter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisLimiter{
		client: client,
		key:    key,
		logger: logger.With("module", "redis_rate_limiter"),
		rate:   ratePerSecond,
	}, nil
}

// SetRate changes the shared rate's ceiling. Existing counters for the
// current second are left alone; the new ceiling applies starting with the
// next Acquire.
func (l *RedisLimiter) SetRate(permitsPerSecond float64) {
	l.rate = permitsPerSecond
}

// Acquire polls the current second's shared counter until it is under the
// configured rate, or ctx is cancelled.
func (l *RedisLimiter) Acquire(ctx context.Context) error {
	const pollInterval = 10 * time.Millisecond

	for {
		admitted, err := l.tryAcquire(ctx)
		if err != nil {
			return err
		}
		if admitted {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (l *RedisLimiter) tryAcquire(ctx context.Context) (bool, error) {
	if l.rate <= 0 {
		return false, nil
	}

	windowKey := fmt.Sprintf("%s:%d", l.key, time.Now().Unix())

	count, err := l.client.Incr(ctx, windowKey).Result()
	if err != nil {
		return false, fmt.Errorf("incr rate limiter window: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, windowKey, 2*time.Second).Err(); err != nil {
			l.logger.WarnContext(ctx, "failed to set rate limiter window expiry", "error", err)
		}
	}

	return float64(count) <= l.rate, nil
}

// Close releases the underlying Redis client.
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}

var _ ratelimit.Limiter = (*RedisLimiter)(nil)
