// Package rate implements a Redis sliding-window limiter shared by every API instance.
package rate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type Config struct {
	Name   string
	Window time.Duration
	Max    int
}

type Limiter struct {
	redis  *redis.Client
	config Config
	now    func() time.Time
}

func NewLimiter(client *redis.Client, config Config) *Limiter {
	return &Limiter{redis: client, config: config, now: time.Now}
}

func (l *Limiter) key(identifier string) string {
	return fmt.Sprintf("rate_limit:%s:%s", l.config.Name, identifier)
}

// Allow records one attempt by identifier and reports whether it is within the limit.
// Rejected attempts count too, so hammering keeps the caller locked out.
func (l *Limiter) Allow(ctx context.Context, identifier string) (bool, error) {
	key := l.key(identifier)
	now := l.now()
	windowStart := now.Add(-l.config.Window).UnixNano()

	pipe := l.redis.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: uuid.NewString()})
	count := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, l.config.Window*2)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis pipeline error: %w", err)
	}
	return count.Val() <= int64(l.config.Max), nil
}

// Reset forgets every attempt by identifier.
func (l *Limiter) Reset(ctx context.Context, identifier string) error {
	return l.redis.Del(ctx, l.key(identifier)).Err()
}
