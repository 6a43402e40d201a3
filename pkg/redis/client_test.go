package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/angelmondragon/purchase-configurator/pkg/config"
	"github.com/redis/go-redis/v9"
)

func TestSetNXOnlyOnce(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	ok, err := client.SetNX(ctx, "k", "first", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected first setnx to succeed")
	}

	ok, err = client.SetNX(ctx, "k", "second", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected second setnx to fail")
	}

	value, err := client.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if value != "first" {
		t.Fatalf("expected first value kept, got %q", value)
	}
	if mock.ttls["k"] != time.Minute {
		t.Fatalf("expected ttl recorded, got %v", mock.ttls["k"])
	}
}

func TestSetGetDelLifecycle(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	if err := client.Set(ctx, "variant", "42", time.Hour); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	value, err := client.Get(ctx, "variant")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if value != "42" {
		t.Fatalf("expected stored value, got %q", value)
	}

	if err := client.Del(ctx, "variant"); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, err := client.Get(ctx, "variant"); err == nil || err != redis.Nil {
		t.Fatalf("expected redis.Nil after del, got %v", err)
	}
}

func TestExpireRefreshesExistingKeyOnly(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	if _, err := client.SetNX(ctx, "lock", "owner", time.Minute); err != nil {
		t.Fatalf("setnx failed: %v", err)
	}
	ok, err := client.Expire(ctx, "lock", time.Hour)
	if err != nil || !ok {
		t.Fatalf("expected expire on existing key, got %v (%v)", ok, err)
	}
	if mock.ttls["lock"] != time.Hour {
		t.Fatalf("expected ttl refreshed, got %v", mock.ttls["lock"])
	}
	ok, err = client.Expire(ctx, "missing", time.Hour)
	if err != nil || ok {
		t.Fatalf("expected false for missing key, got %v (%v)", ok, err)
	}
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	if err := client.Ping(context.Background()); err == nil {
		t.Fatalf("expected error from uninitialized client")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close without raw client should be a no-op, got %v", err)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.LineLockKey(7, 3); got != "pc:line_lock:7:3" {
		t.Fatalf("unexpected line lock key %s", got)
	}
	if got := client.VariantKey("10:1,2"); got != "pc:variant:10:1,2" {
		t.Fatalf("unexpected variant key %s", got)
	}
	if got := client.VariantKey(""); got != "pc:variant" {
		t.Fatalf("empty parts should be skipped, got %s", got)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatalf("expected error without url or address")
	}

	opts, err := optionsFromConfig(config.RedisConfig{
		Address:  "localhost:6380",
		DB:       2,
		PoolSize: 5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "localhost:6380" || opts.DB != 2 || opts.PoolSize != 5 {
		t.Fatalf("unexpected options %+v", opts)
	}

	opts, err = optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/4", PoolSize: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.DB != 4 || opts.PoolSize != 3 {
		t.Fatalf("unexpected options from url %+v", opts)
	}
}

type mockCmdable struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data: make(map[string]string),
		ttls: make(map[string]time.Duration),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; !exists {
		return redis.NewBoolResult(false, nil)
	}
	m.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}
