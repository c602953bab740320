package displaysync

import (
	"context"
	"sync"
	"time"

	"github.com/angelmondragon/franchisepos-backend/pkg/redis"
)

// Store keeps the last written payload per channel key with a monotonic version.
// Load reports the current version even when the payload is gone.
type Store interface {
	Save(ctx context.Context, key string, payload []byte) (int64, error)
	Load(ctx context.Context, key string) (payload []byte, version int64, found bool, err error)
	Subscribe(ctx context.Context, key string) (Subscription, error)
}

// Subscription signals that a key was written. Signals coalesce.
type Subscription interface {
	Changes() <-chan struct{}
	Close() error
}

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore persists display state in Redis and notifies over PUBLISH.
func NewRedisStore(client *redis.Client, ttl time.Duration) Store {
	return &redisStore{client: client, ttl: ttl}
}

func (s *redisStore) Save(ctx context.Context, key string, payload []byte) (int64, error) {
	return s.client.SaveDisplayState(ctx, key, string(payload), s.ttl)
}

func (s *redisStore) Load(ctx context.Context, key string) ([]byte, int64, bool, error) {
	payload, version, found, err := s.client.LoadDisplayState(ctx, key)
	if err != nil {
		return nil, 0, false, err
	}
	if !found {
		return nil, version, false, nil
	}
	return []byte(payload), version, true, nil
}

func (s *redisStore) Subscribe(ctx context.Context, key string) (Subscription, error) {
	ps, err := s.client.Subscribe(ctx, s.client.DisplayChannel(key))
	if err != nil {
		return nil, err
	}
	sub := &redisSubscription{close: ps.Close, changes: make(chan struct{}, 1)}
	go func() {
		for range ps.Channel() {
			sub.notify()
		}
	}()
	return sub, nil
}

type redisSubscription struct {
	close   func() error
	changes chan struct{}
}

func (s *redisSubscription) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func (s *redisSubscription) Changes() <-chan struct{} { return s.changes }

func (s *redisSubscription) Close() error { return s.close() }

// MemoryStore is an in-process Store for single-replica development and tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	subs    map[string]map[*memorySubscription]struct{}
}

type memoryEntry struct {
	payload []byte
	version int64
	present bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: map[string]memoryEntry{},
		subs:    map[string]map[*memorySubscription]struct{}{},
	}
}

func (m *MemoryStore) Save(_ context.Context, key string, payload []byte) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := m.entries[key]
	entry.version++
	entry.payload = append([]byte(nil), payload...)
	entry.present = true
	m.entries[key] = entry
	for sub := range m.subs[key] {
		sub.notify()
	}
	return entry.version, nil
}

func (m *MemoryStore) Load(_ context.Context, key string) ([]byte, int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok || !entry.present {
		return nil, entry.version, false, nil
	}
	return entry.payload, entry.version, true, nil
}

// Expire drops the payload for key the way a Redis TTL would, keeping the version.
func (m *MemoryStore) Expire(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok {
		return
	}
	entry.payload = nil
	entry.present = false
	m.entries[key] = entry
}

func (m *MemoryStore) Subscribe(_ context.Context, key string) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub := &memorySubscription{store: m, key: key, changes: make(chan struct{}, 1)}
	if m.subs[key] == nil {
		m.subs[key] = map[*memorySubscription]struct{}{}
	}
	m.subs[key][sub] = struct{}{}
	return sub, nil
}

type memorySubscription struct {
	store   *MemoryStore
	key     string
	changes chan struct{}
}

func (s *memorySubscription) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func (s *memorySubscription) Changes() <-chan struct{} { return s.changes }

func (s *memorySubscription) Close() error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	delete(s.store.subs[s.key], s)
	if len(s.store.subs[s.key]) == 0 {
		delete(s.store.subs, s.key)
	}
	return nil
}
