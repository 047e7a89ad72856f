package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var viewerGrants = []Grant{{Action: ActionExibir, Resource: ResourceProcesso, Granted: true}}

func TestMemoryCacheExpiresByClock(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	cache := NewMemoryCache(60*time.Second, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "ana@dim.gov", 0, viewerGrants))

	now = now.Add(30 * time.Second)
	got, ok, err := cache.Get(ctx, "ana@dim.gov")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, viewerGrants, got)

	now = now.Add(30 * time.Second)
	_, ok, err = cache.Get(ctx, "ana@dim.gov")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())
}

func TestMemoryCacheInvalidateAll(t *testing.T) {
	cache := NewMemoryCache(0)
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "a", 0, viewerGrants))
	require.NoError(t, cache.Set(ctx, "b", 0, viewerGrants))

	require.NoError(t, cache.InvalidateAll(ctx))

	_, ok, _ := cache.Get(ctx, "a")
	assert.False(t, ok)
	_, ok, _ = cache.Get(ctx, "b")
	assert.False(t, ok)
}

func TestMemoryCacheReturnsCopies(t *testing.T) {
	cache := NewMemoryCache(time.Minute)
	ctx := context.Background()
	in := []Grant{{Action: ActionExibir, Resource: ResourceSetor, Granted: true}}
	require.NoError(t, cache.Set(ctx, "k", 0, in))
	in[0].Granted = false

	got, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	got[0].Action = ActionExcluir

	again, _, _ := cache.Get(ctx, "k")
	assert.True(t, again[0].Granted)
	assert.Equal(t, ActionExibir, again[0].Action)
}

func TestMemoryCacheDropsWritesFromOldGeneration(t *testing.T) {
	cache := NewMemoryCache(time.Minute)
	ctx := context.Background()
	gen, err := cache.Generation(ctx)
	require.NoError(t, err)

	require.NoError(t, cache.InvalidateAll(ctx))
	require.NoError(t, cache.Set(ctx, "ana@dim.gov", gen, viewerGrants))
	_, ok, _ := cache.Get(ctx, "ana@dim.gov")
	assert.False(t, ok)

	gen, err = cache.Generation(ctx)
	require.NoError(t, err)
	require.NoError(t, cache.Set(ctx, "ana@dim.gov", gen, viewerGrants))
	_, ok, _ = cache.Get(ctx, "ana@dim.gov")
	assert.True(t, ok)
}

func TestMemoryCacheEvictsBeyondMaxEntries(t *testing.T) {
	cache := NewMemoryCache(time.Minute, WithMaxEntries(2))
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "a", 0, viewerGrants))
	require.NoError(t, cache.Set(ctx, "b", 0, viewerGrants))
	require.NoError(t, cache.Set(ctx, "c", 0, viewerGrants))

	assert.Equal(t, 2, cache.Len())
	_, ok, _ := cache.Get(ctx, "a")
	assert.False(t, ok)
}

func newRedisCache(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, ttl), mr, client
}

func TestRedisCacheRoundTripAndTTL(t *testing.T) {
	cache, mr, _ := newRedisCache(t, 60*time.Second)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "ana@dim.gov")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, cache.Set(ctx, "ana@dim.gov", 0, viewerGrants))
	mr.FastForward(30 * time.Second)
	got, ok, err := cache.Get(ctx, "ana@dim.gov")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, viewerGrants, got)

	mr.FastForward(31 * time.Second)
	_, ok, err = cache.Get(ctx, "ana@dim.gov")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCacheInvalidateBumpsVersion(t *testing.T) {
	cache, mr, _ := newRedisCache(t, time.Minute)
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "ana@dim.gov", 0, viewerGrants))

	require.NoError(t, cache.InvalidateAll(ctx))

	_, ok, err := cache.Get(ctx, "ana@dim.gov")
	require.NoError(t, err)
	assert.False(t, ok)
	ver, err := mr.Get(redisVersionKey)
	require.NoError(t, err)
	assert.Equal(t, "1", ver)
}

func TestRedisCacheDropsWritesFromOldVersion(t *testing.T) {
	cache, mr, _ := newRedisCache(t, time.Minute)
	ctx := context.Background()
	gen, err := cache.Generation(ctx)
	require.NoError(t, err)

	require.NoError(t, cache.InvalidateAll(ctx))
	require.NoError(t, cache.Set(ctx, "ana@dim.gov", gen, viewerGrants))

	_, ok, err := cache.Get(ctx, "ana@dim.gov")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists(grantsKey(gen, "ana@dim.gov")))
}

func TestRedisCacheListenForInvalidation(t *testing.T) {
	cache, _, client := newRedisCache(t, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bumped := make(chan struct{}, 1)
	require.NoError(t, cache.ListenForInvalidation(ctx, func() { bumped <- struct{}{} }))
	require.NoError(t, client.Publish(ctx, BumpChannel, "7").Err())

	select {
	case <-bumped:
	case <-time.After(2 * time.Second):
		t.Fatal("bump notice not delivered")
	}
}

func TestServiceStaleWindowWithRedisCache(t *testing.T) {
	cache, mr, _ := newRedisCache(t, 60*time.Second)
	store := newFakeStore()
	viewer := store.profile("Viewer", true)
	perm := store.grant(viewer, ActionExibir, ResourceProcesso, true)
	svc := NewService(store, WithCache(cache))
	id := Identity{Email: "ana@dim.gov", Profile: "Viewer"}
	req := Requirement{Action: ActionExibir, Resource: ResourceProcesso}
	ctx := context.Background()

	ok, err := svc.Authorize(ctx, id, req)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = svc.RemovePermission(ctx, viewer.ID, perm.ID)
	require.NoError(t, err)
	mr.FastForward(30 * time.Second)

	ok, err = svc.Authorize(ctx, id, req)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, svc.InvalidateCache(ctx))
	ok, err = svc.Authorize(ctx, id, req)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBroadcastCacheInvalidatesPeers(t *testing.T) {
	_, _, client := newRedisCache(t, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	nodeA := NewBroadcastCache(NewMemoryCache(time.Minute), client)
	peerLocal := NewMemoryCache(time.Minute)
	nodeB := NewBroadcastCache(peerLocal, client)
	require.NoError(t, nodeB.Listen(ctx))

	require.NoError(t, nodeB.Set(ctx, "ana@dim.gov", 0, viewerGrants))
	_, ok, err := nodeB.Get(ctx, "ana@dim.gov")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, nodeA.InvalidateAll(ctx))
	assert.Eventually(t, func() bool { return peerLocal.Len() == 0 }, time.Second, 10*time.Millisecond)
}
