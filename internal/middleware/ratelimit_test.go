package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/MarcosLauremiro/miKan-api/internal/cache"
	"github.com/MarcosLauremiro/miKan-api/pkg/response"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newLimitedRouter(store RateStore, max int, window time.Duration) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimit(store, max, window))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func hit(r http.Handler) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	return w
}

func TestRateLimitMemoryStore(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := newMemoryRateStore(time.Hour, clock.Now)
	t.Cleanup(store.Stop)

	r := newLimitedRouter(store, 2, time.Minute)

	for i := 0; i < 2; i++ {
		w := hit(r)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}

	w := hit(r)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	require.Equal(t, "60", w.Header().Get("Retry-After"))

	var payload response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.Equal(t, "RATE_LIMIT_EXCEEDED", payload.Error.Code)

	clock.Advance(time.Minute)
	w = hit(r)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))
}

func TestMemoryRateStoreSweepsExpired(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := newMemoryRateStore(time.Hour, clock.Now)
	t.Cleanup(store.Stop)

	_, _, err := store.Increment(context.Background(), "a", time.Second)
	require.NoError(t, err)
	_, _, err = store.Increment(context.Background(), "b", time.Hour)
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	store.sweep()

	store.mu.Lock()
	defer store.mu.Unlock()
	require.NotContains(t, store.data, "a")
	require.Contains(t, store.data, "b")
}

func TestRateLimitRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	backing := cache.NewRedisStoreFromClient(client, "test:")
	t.Cleanup(func() { _ = backing.Close() })

	r := newLimitedRouter(NewRedisRateStore(backing), 1, time.Minute)

	require.Equal(t, http.StatusOK, hit(r).Code)
	require.Equal(t, http.StatusTooManyRequests, hit(r).Code)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	require.Contains(t, keys[0], "test:ratelimit:")

	mr.FastForward(time.Minute)
	require.Equal(t, http.StatusOK, hit(r).Code)
}

type failingStore struct{}

func (failingStore) Increment(context.Context, string, time.Duration) (int, time.Duration, error) {
	return 0, 0, errors.New("unavailable")
}

func TestRateLimitFailsOpen(t *testing.T) {
	r := newLimitedRouter(failingStore{}, 1, time.Minute)
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, hit(r).Code)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	require.Nil(t, NewRedisRateStore(nil))

	r := newLimitedRouter(nil, 1, time.Minute)
	for i := 0; i < 3; i++ {
		w := hit(r)
		require.Equal(t, http.StatusOK, w.Code)
		require.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
}
