package runner

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"cdr-pipeline/pkg/utils"
)

// RedisLock implements Lock on top of the shared run-lock helpers so that
// concurrent triggers of the same sink kind are serialized even across
// multiple pipeline instances.
type RedisLock struct {
	rdb *redis.Client
}

func NewRedisLock(rdb *redis.Client) *RedisLock { return &RedisLock{rdb: rdb} }

func (l *RedisLock) Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return utils.AcquireRunLock(ctx, l.rdb, key, token, ttl)
}

func (l *RedisLock) Release(ctx context.Context, key, token string) error {
	return utils.ReleaseRunLock(ctx, l.rdb, key, token)
}
