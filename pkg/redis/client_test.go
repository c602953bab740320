package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestPublishRecordsMessage(t *testing.T) {
	mock := newMockCmdable()
	client := &Client{store: mock}

	if err := client.Publish(context.Background(), client.DisplayChannel("station-1"), "7"); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if got := mock.published["fpos:display:changed:station-1"]; len(got) != 1 || got[0] != "7" {
		t.Fatalf("unexpected published messages %v", got)
	}
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	if err := client.Ping(context.Background()); err == nil {
		t.Fatal("expected error from uninitialized client")
	}
	if _, err := client.Subscribe(context.Background(), "x"); err == nil {
		t.Fatal("expected subscribe error from uninitialized client")
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.IdempotencyKey("scope", "id"); got != "fpos:idempotency:scope:id" {
		t.Fatalf("unexpected idempotency key %s", got)
	}
	if got := client.RateLimitKey("scope"); got != "fpos:rate_limit:scope" {
		t.Fatalf("unexpected rate limit key %s", got)
	}
	if got := client.DisplayStateKey("loc-1"); got != "fpos:display:state:loc-1" {
		t.Fatalf("unexpected display state key %s", got)
	}
	if got := client.LockKey(""); got != "fpos:lock" {
		t.Fatalf("empty parts should be skipped, got %s", got)
	}
}

func TestRedisLockAcquireRelease(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	first, err := NewRedisLock(client, "fpos:lock:audit", time.Minute)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, _ := NewRedisLock(client, "fpos:lock:audit", time.Minute)

	ok, err := first.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("expected first acquire to succeed, ok=%v err=%v", ok, err)
	}
	ok, err = second.Acquire(ctx)
	if err != nil || ok {
		t.Fatalf("expected second acquire to fail, ok=%v err=%v", ok, err)
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release without ownership should be a no-op: %v", err)
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	ok, err = second.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("expected acquire after release, ok=%v err=%v", ok, err)
	}
}

func TestNewRedisLockValidation(t *testing.T) {
	if _, err := NewRedisLock(nil, "k", time.Second); err == nil {
		t.Fatal("expected nil client error")
	}
	if _, err := NewRedisLock(&Client{}, "", time.Second); err == nil {
		t.Fatal("expected empty key error")
	}
}

type mockCmdable struct {
	data      map[string]string
	incr      map[string]int64
	published map[string][]string
	ttls      map[string]time.Duration
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data:      make(map[string]string),
		incr:      make(map[string]int64),
		published: make(map[string][]string),
		ttls:      make(map[string]time.Duration),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	if expiration > 0 {
		m.ttls[key] = expiration
	}
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
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Incr(ctx context.Context, key string) *redis.IntCmd {
	m.incr[key]++
	m.data[key] = fmt.Sprint(m.incr[key])
	return redis.NewIntResult(m.incr[key], nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (m *mockCmdable) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	m.published[channel] = append(m.published[channel], fmt.Sprint(message))
	return redis.NewIntResult(0, nil)
}

func TestDisplayStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	if _, _, found, err := client.LoadDisplayState(ctx, "t1:station:a"); err != nil || found {
		t.Fatalf("expected empty channel, found=%v err=%v", found, err)
	}

	v1, err := client.SaveDisplayState(ctx, "t1:station:a", `{"status":"ACTIVE"}`, time.Hour)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	v2, err := client.SaveDisplayState(ctx, "t1:station:a", `{"status":"REVIEW"}`, time.Hour)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if v2 <= v1 {
		t.Fatalf("expected increasing versions, got %d then %d", v1, v2)
	}

	payload, version, found, err := client.LoadDisplayState(ctx, "t1:station:a")
	if err != nil || !found {
		t.Fatalf("load: found=%v err=%v", found, err)
	}
	if payload != `{"status":"REVIEW"}` || version != v2 {
		t.Fatalf("unexpected state %s at %d", payload, version)
	}
	if got := mock.published[client.DisplayChannel("t1:station:a")]; len(got) != 2 {
		t.Fatalf("expected a notification per write, got %v", got)
	}
}

func TestDisplayVersionOutlivesExpiredState(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	station := "t1:station:b"

	var last int64
	for i := 0; i < 5; i++ {
		v, err := client.SaveDisplayState(ctx, station, `{"status":"ACTIVE"}`, time.Minute)
		if err != nil {
			t.Fatalf("save: %v", err)
		}
		last = v
	}
	if _, ok := mock.ttls[client.DisplayVersionKey(station)]; ok {
		t.Fatal("version key must not expire")
	}
	if ttl := mock.ttls[client.DisplayStateKey(station)]; ttl != time.Minute {
		t.Fatalf("expected state ttl, got %s", ttl)
	}

	// state expires, counter stays
	delete(mock.data, client.DisplayStateKey(station))
	_, version, found, err := client.LoadDisplayState(ctx, station)
	if err != nil || found {
		t.Fatalf("expected expired state, found=%v err=%v", found, err)
	}
	if version != last {
		t.Fatalf("expected version %d after expiry, got %d", last, version)
	}

	next, err := client.SaveDisplayState(ctx, station, `{"status":"REVIEW"}`, time.Minute)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if next != last+1 {
		t.Fatalf("expected version %d, got %d", last+1, next)
	}
}
