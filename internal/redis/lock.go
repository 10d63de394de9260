package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/vaccine-reservation-scheduling/internal/logging"
)

var (
	ErrLockNotAcquired = errors.New("date lock not acquired")
)

// lockUnavailableError marks a failure to talk to Redis, as opposed to the
// lock being held by someone else.
type lockUnavailableError struct {
	err error
}

func (e *lockUnavailableError) Error() string { return "acquire date lock: " + e.err.Error() }
func (e *lockUnavailableError) Unwrap() error { return e.err }

// Locker serializes reservations per calendar date ahead of the store
// transaction. It narrows contention; it is not what keeps data correct.
type Locker interface {
	WithDateLock(ctx context.Context, date time.Time, fn func(ctx context.Context) error) error
}

// NoopLocker runs fn directly.
type NoopLocker struct{}

func (NoopLocker) WithDateLock(ctx context.Context, _ time.Time, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type redisDateLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewRedisDateLocker creates a locker that uses a per date Redis key.
// Acquisition is retried with backoff for up to wait; a zero wait tries once.
// When Redis cannot be reached fn runs unlocked and the store transaction
// alone serializes the reservation.
func NewRedisDateLocker(client *redis.Client, ttl, wait time.Duration) Locker {
	return &redisDateLocker{
		client: client,
		ttl:    ttl,
		wait:   wait,
	}
}

func lockKey(date time.Time) string {
	return fmt.Sprintf("lock:reserve:%s", date.Format("2006-01-02"))
}

func (l *redisDateLocker) WithDateLock(ctx context.Context, date time.Time, fn func(ctx context.Context) error) error {
	key := lockKey(date)
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		var unavailable *lockUnavailableError
		if !errors.As(err, &unavailable) || ctx.Err() != nil {
			return err
		}
		logging.FromContext(ctx).Warn().
			Err(unavailable.err).
			Str("key", key).
			Msg("redis unreachable, reserving without date lock")
		return fn(ctx)
	}

	defer func() {
		_ = l.release(context.WithoutCancel(ctx), key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

func (l *redisDateLocker) acquire(ctx context.Context, key, token string) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 100 * time.Millisecond
	b.MaxElapsedTime = l.wait

	op := func() error {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return backoff.Permanent(&lockUnavailableError{err: err})
		}
		if !ok {
			return ErrLockNotAcquired
		}
		return nil
	}

	var bo backoff.BackOff = b
	if l.wait <= 0 {
		bo = backoff.WithMaxRetries(b, 0)
	}
	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisDateLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release date lock: %w", err)
	}
	return nil
}
