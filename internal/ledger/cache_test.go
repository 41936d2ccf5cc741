package ledger

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

func TestCacheVersionInitialises(t *testing.T) {
	mr, client := newTestRedis(t)
	cache := NewCache(client, time.Minute)

	ver, err := cache.Version(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), ver)
	mr.CheckGet(t, cacheVersionKey, "1")

	require.NoError(t, mr.Set(cacheVersionKey, "0"))
	ver, err = cache.Version(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), ver)
}

func TestCacheFetchRowsUsesLoaderOnce(t *testing.T) {
	_, client := newTestRedis(t)
	cache := NewCache(client, time.Minute)
	ctx := context.Background()
	calls := 0
	loader := func(context.Context) ([]Row, error) {
		calls++
		return sampleRows()[:2], nil
	}

	first, err := cache.FetchRows(ctx, "acme", loader)
	require.NoError(t, err)
	second, err := cache.FetchRows(ctx, "acme", loader)
	require.NoError(t, err)

	require.Equal(t, 1, calls)
	require.Equal(t, ids(first), ids(second))
	require.True(t, amount("1280").Equal(second[0].DebitAmount))
}

func TestCacheBumpInvalidates(t *testing.T) {
	_, client := newTestRedis(t)
	cache := NewCache(client, time.Minute)
	ctx := context.Background()
	calls := 0
	loader := func(context.Context) ([]Row, error) {
		calls++
		return nil, nil
	}

	_, err := cache.FetchRows(ctx, "acme", loader)
	require.NoError(t, err)
	require.NoError(t, cache.Bump(ctx))
	_, err = cache.FetchRows(ctx, "acme", loader)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestCacheLoaderError(t *testing.T) {
	_, client := newTestRedis(t)
	cache := NewCache(client, time.Minute)
	boom := errors.New("boom")

	_, err := cache.FetchRows(context.Background(), "acme", func(context.Context) ([]Row, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	_, err = cache.FetchRows(context.Background(), "acme", nil)
	require.Error(t, err)
}

func TestNilCachePassesThrough(t *testing.T) {
	var cache *Cache
	rows, err := cache.FetchRows(context.Background(), "acme", func(context.Context) ([]Row, error) {
		return sampleRows(), nil
	})
	require.NoError(t, err)
	require.Len(t, rows, 5)
	require.NoError(t, cache.Bump(context.Background()))
	require.NoError(t, cache.ListenForInvalidation(context.Background(), nil, nil))
}

func TestCacheListenForInvalidationAdoptsHighestVersion(t *testing.T) {
	_, client := newTestRedis(t)
	cache := NewCache(client, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	adopted := make(chan int64, 4)
	require.NoError(t, cache.ListenForInvalidation(ctx, shared.NewDebouncer(200*time.Millisecond), func(ver int64) {
		adopted <- ver
	}))

	for _, ver := range []int64{5, 3, 9} {
		require.NoError(t, client.Publish(ctx, BumpChannel, strconv.FormatInt(ver, 10)).Err())
	}

	select {
	case ver := <-adopted:
		require.Equal(t, int64(9), ver)
	case <-time.After(2 * time.Second):
		t.Fatal("bump was not adopted")
	}
	require.Eventually(t, func() bool {
		ver, err := cache.Version(ctx)
		return err == nil && ver == 9
	}, time.Second, 10*time.Millisecond)
}
