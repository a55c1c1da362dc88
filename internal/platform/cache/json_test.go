package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestCache(t *testing.T) *JSONCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewJSONCache(client, "test", time.Minute)
}

func TestFetchCachesUntilBump(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return payload{Name: "shop", Count: calls}, nil
	}

	var first, second, third payload
	require.NoError(t, c.Fetch(ctx, &first, loader, "a"))
	require.NoError(t, c.Fetch(ctx, &second, loader, "a"))
	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)

	require.NoError(t, c.Bump(ctx))
	require.NoError(t, c.Fetch(ctx, &third, loader, "a"))
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, third.Count)
}

func TestFetchCollapsesConcurrentMisses(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	var calls int32
	release := make(chan struct{})
	loader := func(context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return payload{Name: "x"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var out payload
			assert.NoError(t, c.Fetch(ctx, &out, loader, "k"))
			assert.Equal(t, "x", out.Name)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchPropagatesLoaderError(t *testing.T) {
	c := newTestCache(t)
	boom := errors.New("boom")
	var out payload
	err := c.Fetch(context.Background(), &out, func(context.Context) (any, error) { return nil, boom }, "k")
	assert.ErrorIs(t, err, boom)
}

func TestNilClientCallsLoader(t *testing.T) {
	c := NewJSONCache(nil, "test", time.Minute)
	var out payload
	require.NoError(t, c.Fetch(context.Background(), &out, func(context.Context) (any, error) {
		return payload{Name: "direct"}, nil
	}, "k"))
	assert.Equal(t, "direct", out.Name)
	assert.NoError(t, c.Bump(context.Background()))
}
