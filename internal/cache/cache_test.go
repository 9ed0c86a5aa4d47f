package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T) *RedisBackend {
	t.Helper()

	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	backend := NewRedisBackendFromClient(client, 0)

	t.Cleanup(func() {
		_ = backend.Close()
	})

	return backend
}

// fakeClock is a settable time source for TTL tests.
type fakeClock struct {
	current time.Time
}

func (f *fakeClock) now() time.Time          { return f.current }
func (f *fakeClock) advance(d time.Duration) { f.current = f.current.Add(d) }

func TestClassifyMarket(t *testing.T) {
	tests := []struct {
		subject string
		want    Market
	}{
		{"600519", MarketChina},
		{"000001", MarketChina},
		{"00700", MarketHongKong},
		{"0700.HK", MarketHongKong},
		{"9988.hk", MarketHongKong},
		{"AAPL", MarketUS},
		{"BRK.B", MarketUS},
		{"", MarketUS},
	}

	for _, tt := range tests {
		t.Run(tt.subject, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyMarket(tt.subject))
		})
	}
}

func TestTTLVariesByMarketAndKind(t *testing.T) {
	assert.Equal(t, 15*time.Minute, TTL("600519", KindPrice))
	assert.Equal(t, 30*time.Minute, TTL("AAPL", KindPrice))
	assert.Equal(t, 24*time.Hour, TTL("600519", KindFundamentals))
	assert.Equal(t, defaultTTL, TTL("AAPL", Kind("unknown-kind")))
}

func TestKeyIsDeterministic(t *testing.T) {
	k1 := Key("600519", "2026-01-01", "2026-02-01", "akshare", KindPrice)
	k2 := Key("600519", "2026-01-01", "2026-02-01", "akshare", KindPrice)
	k3 := Key("600519", "2026-01-01", "2026-02-01", "akshare", KindNews)

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}

func TestCacheRoundTrip(t *testing.T) {
	backend := setupMiniredis(t)
	clock := &fakeClock{current: time.Date(2026, 8, 1, 9, 30, 0, 0, time.UTC)}
	c := New(backend, nil, WithClock(clock.now))
	ctx := context.Background()

	payload := []byte(`{"close": 1720.5}`)
	key, err := c.Save(ctx, "600519", "2026-07-01", "2026-08-01", "akshare", KindPrice, payload)
	require.NoError(t, err)
	require.NotEmpty(t, key)

	got, err := c.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	backend := setupMiniredis(t)
	clock := &fakeClock{current: time.Date(2026, 8, 1, 9, 30, 0, 0, time.UTC)}
	c := New(backend, nil, WithClock(clock.now))
	ctx := context.Background()

	key, err := c.Save(ctx, "600519", "2026-07-01", "2026-08-01", "akshare", KindPrice, []byte("fresh"))
	require.NoError(t, err)

	// Just inside the 15 minute budget for mainland price data.
	clock.advance(14 * time.Minute)
	got, err := c.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("fresh"), got)

	// Past the budget the entry is absent and gets evicted.
	clock.advance(2 * time.Minute)
	_, err = c.Load(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = backend.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCacheMiss(t *testing.T) {
	backend := setupMiniredis(t)
	c := New(backend, nil)

	_, err := c.Load(context.Background(), "finsight:cache:deadbeef")
	assert.ErrorIs(t, err, ErrNotFound)
}

// failingBackend simulates an unreachable primary store.
type failingBackend struct{}

func (failingBackend) Put(ctx context.Context, key string, entry *Entry) error {
	return errors.New("connection refused")
}
func (failingBackend) Get(ctx context.Context, key string) (*Entry, error) {
	return nil, errors.New("connection refused")
}
func (failingBackend) Delete(ctx context.Context, key string) error {
	return errors.New("connection refused")
}
func (failingBackend) Name() string                   { return "redis" }
func (failingBackend) Ping(ctx context.Context) error { return errors.New("connection refused") }
func (failingBackend) Close() error                   { return nil }

func TestCacheFallsBackToFileBackend(t *testing.T) {
	fileBackend, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = fileBackend.Close() })

	c := New(failingBackend{}, fileBackend)
	ctx := context.Background()

	payload := []byte("headline and body text")
	key, err := c.Save(ctx, "AAPL", "2026-08-01", "2026-08-29", "finnhub", KindNews, payload)
	require.NoError(t, err)

	got, err := c.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	// The entry records which backend actually holds it.
	entry, err := fileBackend.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "file", entry.Backend)
}

func TestFileBackendRejectsTraversalKeys(t *testing.T) {
	fileBackend, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)

	_, err = fileBackend.Get(context.Background(), "../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidKey)

	err = fileBackend.Put(context.Background(), "a/b", &Entry{})
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestFileBackendDeleteMissingKeyIsNoop(t *testing.T) {
	fileBackend, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, fileBackend.Delete(context.Background(), "finsight:cache:missing"))
}
