package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisTTL = 7 * 24 * time.Hour

// RedisClient is the subset of redis.UniversalClient the ledger uses.
type RedisClient interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HSetNX(ctx context.Context, key, field string, value any) *redis.BoolCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisLedger stores each run as a hash of step name to output.
type RedisLedger struct {
	client RedisClient
	ttl    time.Duration
}

// NewRedisLedger constructs a RedisLedger; a non-positive ttl keeps runs for a week.
func NewRedisLedger(client RedisClient, ttl time.Duration) *RedisLedger {
	if ttl <= 0 {
		ttl = defaultRedisTTL
	}
	return &RedisLedger{client: client, ttl: ttl}
}

func runKey(runID string) string {
	return "ledger:run:" + runID
}

func (l *RedisLedger) Get(ctx context.Context, runID, step string) ([]byte, bool, error) {
	val, err := l.client.HGet(ctx, runKey(runID), step).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (l *RedisLedger) Put(ctx context.Context, runID, step string, output []byte) error {
	key := runKey(runID)
	if err := l.client.HSetNX(ctx, key, step, output).Err(); err != nil {
		return err
	}
	return l.client.Expire(ctx, key, l.ttl).Err()
}

var (
	_ Ledger      = (*RedisLedger)(nil)
	_ RedisClient = (redis.UniversalClient)(nil)
)
