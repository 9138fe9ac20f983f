package redisclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// WaitStats exposes the observed rolling-average wait per session-day.
// The queue engine only reads it; whatever analytics job owns the stat
// writes through SetAverageWait (also handy for operators and tests).
type WaitStats interface {
	AverageWaitMinutes(ctx context.Context, sessionID uuid.UUID, date time.Time) (float64, bool, error)
	SetAverageWait(ctx context.Context, sessionID uuid.UUID, date time.Time, minutes float64, ttl time.Duration) error
}

type redisWaitStats struct {
	client *redis.Client
}

func NewRedisWaitStats(client *redis.Client) WaitStats {
	return &redisWaitStats{client: client}
}

func statKey(sessionID uuid.UUID, date time.Time) string {
	return fmt.Sprintf("stats:avgwait:%s:%s", sessionID.String(), date.UTC().Format("2006-01-02"))
}

func (s *redisWaitStats) AverageWaitMinutes(ctx context.Context, sessionID uuid.UUID, date time.Time) (float64, bool, error) {
	val, err := s.client.Get(ctx, statKey(sessionID, date)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get wait stat: %w", err)
	}

	minutes, err := strconv.ParseFloat(val, 64)
	if err != nil || minutes <= 0 {
		return 0, false, nil
	}
	return minutes, true, nil
}

func (s *redisWaitStats) SetAverageWait(ctx context.Context, sessionID uuid.UUID, date time.Time, minutes float64, ttl time.Duration) error {
	err := s.client.Set(ctx, statKey(sessionID, date), strconv.FormatFloat(minutes, 'f', 2, 64), ttl).Err()
	if err != nil {
		return fmt.Errorf("set wait stat: %w", err)
	}
	return nil
}
