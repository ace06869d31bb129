package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/MarcosLauremiro/miKan-api/internal/cache"
)

// RateStore coordinates rate limiting counters for a specific key.
type RateStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int, ttl time.Duration, err error)
}

// MemoryRateStore provides process-local rate limiting. It is concurrency-safe.
type MemoryRateStore struct {
	mu    sync.Mutex
	data  map[string]*memoryCounter
	clock func() time.Time
	stop  chan struct{}
	once  sync.Once
}

type memoryCounter struct {
	count     int
	windowEnd time.Time
}

// NewMemoryRateStore constructs an in-memory rate store. Expired counters are
// swept every cleanupInterval until Stop is called.
func NewMemoryRateStore(cleanupInterval time.Duration) *MemoryRateStore {
	return newMemoryRateStore(cleanupInterval, time.Now)
}

func newMemoryRateStore(cleanupInterval time.Duration, clock func() time.Time) *MemoryRateStore {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	store := &MemoryRateStore{
		data:  make(map[string]*memoryCounter),
		clock: clock,
		stop:  make(chan struct{}),
	}
	go store.cleanupLoop(cleanupInterval)
	return store
}

func (s *MemoryRateStore) cleanupLoop(interval time.Duration) {
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-tick.C:
			s.sweep()
		}
	}
}

func (s *MemoryRateStore) sweep() {
	now := s.clock()
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, counter := range s.data {
		if !now.Before(counter.windowEnd) {
			delete(s.data, key)
		}
	}
}

// Stop halts the background sweeper.
func (s *MemoryRateStore) Stop() {
	s.once.Do(func() { close(s.stop) })
}

func (s *MemoryRateStore) Increment(_ context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}

	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	counter, ok := s.data[key]
	if !ok || !now.Before(counter.windowEnd) {
		counter = &memoryCounter{windowEnd: now.Add(window)}
		s.data[key] = counter
	}
	counter.count++

	return counter.count, counter.windowEnd.Sub(now), nil
}

type storeRateStore struct {
	store cache.Store
}

// NewRedisRateStore wraps a Redis-backed cache store so counters are shared
// across instances. It returns nil when store is nil.
func NewRedisRateStore(store cache.Store) RateStore {
	if store == nil {
		return nil
	}
	return &storeRateStore{store: store}
}

func (s *storeRateStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}
	count, ttl, err := s.store.IncrementWithTTL(ctx, "ratelimit:"+key, window)
	return int(count), ttl, err
}
