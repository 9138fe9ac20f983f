package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrQueueContended = errors.New("session-day queue mutex not acquired")
)

// Locker serializes call and commit critical sections per session-day.
// Queue writes for one (session, date) never run concurrently; different
// session-days proceed independently.
type Locker interface {
	WithQueueLock(ctx context.Context, sessionID uuid.UUID, date time.Time, fn func(ctx context.Context) error) error
}

type redisQueueLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisQueueLocker creates a locker keyed per (session, date).
func NewRedisQueueLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisQueueLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *redisQueueLocker) WithQueueLock(ctx context.Context, sessionID uuid.UUID, date time.Time, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("mutex:queue:%s:%s", sessionID.String(), date.UTC().Format("2006-01-02"))
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire queue mutex: %w", err)
	}
	if !ok {
		return ErrQueueContended
	}

	defer func() {
		_ = l.release(ctx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisQueueLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release queue mutex: %w", err)
	}
	return nil
}
