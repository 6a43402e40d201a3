package locks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/purchase-configurator/internal/configurator"
	pkgerrors "github.com/angelmondragon/purchase-configurator/pkg/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultLineLockTTL = 30 * time.Minute

// redisStore defines the operations used by RedisLineLocker.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	LineLockKey(orderID, lineID int64) string
}

// RedisLineLocker keeps order lines locked across API instances using SETNX + TTL.
// The TTL bounds how long a crashed instance can keep a line.
type RedisLineLocker struct {
	client redisStore
	ttl    time.Duration
}

func NewRedisLineLocker(client redisStore, ttl time.Duration) (*RedisLineLocker, error) {
	if client == nil {
		return nil, errors.New("redis client required for line locks")
	}
	if ttl <= 0 {
		ttl = defaultLineLockTTL
	}
	return &RedisLineLocker{client: client, ttl: ttl}, nil
}

// Lock claims the line with a fresh owner token.
func (l *RedisLineLocker) Lock(ctx context.Context, orderID, lineID int64) (configurator.LineLock, error) {
	key := l.client.LineLockKey(orderID, lineID)
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, owner, l.ttl)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("setnx: %w", err), "failed to lock order line")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("order line %d is locked", lineID))
	}
	return &redisLineLock{client: l.client, key: key, owner: owner, ttl: l.ttl}, nil
}

type redisLineLock struct {
	client redisStore
	key    string
	ttl    time.Duration

	mu    sync.Mutex
	owner string
}

// Refresh pushes the expiry back by the lock TTL while the owner value still matches.
func (l *redisLineLock) Refresh(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owner == "" {
		return pkgerrors.New(pkgerrors.CodeConflict, "line lock already released")
	}
	value, err := l.client.Get(ctx, l.key)
	if err != nil && !errors.Is(err, redis.Nil) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("read line lock owner: %w", err), "failed to refresh line lock")
	}
	if err != nil || value != l.owner {
		return pkgerrors.New(pkgerrors.CodeConflict, "line lock expired or taken over")
	}
	ok, err := l.client.Expire(ctx, l.key, l.ttl)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("expire: %w", err), "failed to refresh line lock")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeConflict, "line lock expired or taken over")
	}
	return nil
}

// Release frees the line only if the owner value still matches. Releasing twice is a no-op.
func (l *redisLineLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owner == "" {
		return nil
	}
	value, err := l.client.Get(ctx, l.key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			l.owner = ""
			return nil
		}
		return fmt.Errorf("read line lock owner: %w", err)
	}
	if value != l.owner {
		l.owner = ""
		return nil
	}
	if err := l.client.Del(ctx, l.key); err != nil {
		return fmt.Errorf("delete line lock: %w", err)
	}
	l.owner = ""
	return nil
}
