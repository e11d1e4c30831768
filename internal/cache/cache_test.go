package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/giftpool/internal/providers/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestTTLCacheExpiresOnRead(t *testing.T) {
	clk := &manualClock{now: time.Unix(1_700_000_000, 0)}
	c := newTTLCache[string, int](clk.Now, time.Hour)

	c.Set("a", 1, time.Minute)
	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, got)

	clk.Advance(time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestTTLCacheSweepsExpiredOnSet(t *testing.T) {
	clk := &manualClock{now: time.Unix(1_700_000_000, 0)}
	c := newTTLCache[string, int](clk.Now, time.Minute)

	c.Set("old-1", 1, time.Second)
	c.Set("old-2", 2, time.Second)
	c.Set("forever", 3, 0)
	assert.Equal(t, 3, c.Len())

	clk.Advance(2 * time.Minute)
	c.Set("new", 4, time.Hour)
	assert.Equal(t, 2, c.Len())

	_, ok := c.Get("forever")
	assert.True(t, ok)
}

func TestProductCacheRoundTripsThroughMemoryStore(t *testing.T) {
	pc := NewProductCache(NewMemoryStore(), zap.NewNop())
	ctx := context.Background()

	_, ok := pc.Get(ctx, "us")
	assert.False(t, ok)

	pc.Set(ctx, "us", []gateway.Product{{ID: 1, Name: "Amazon US"}}, time.Minute)
	got, ok := pc.Get(ctx, "US")
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "Amazon US", got[0].Name)

	pc.Invalidate(ctx, "US")
	_, ok = pc.Get(ctx, "us")
	assert.False(t, ok)
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("down")
}
func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("down")
}
func (failingStore) Delete(context.Context, string) error { return errors.New("down") }

func TestProductCacheBackendErrorsAreMisses(t *testing.T) {
	pc := NewProductCache(failingStore{}, zap.NewNop())
	pc.Set(context.Background(), "US", []gateway.Product{{ID: 1}}, time.Minute)
	_, ok := pc.Get(context.Background(), "US")
	assert.False(t, ok)
}

func TestNewStoreWithoutRedisIsMemory(t *testing.T) {
	_, ok := NewStore(nil).(*memoryStore)
	assert.True(t, ok)
}
