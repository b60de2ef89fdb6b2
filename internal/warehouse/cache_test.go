package warehouse

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*ReportCache, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewReportCache(client, time.Minute), srv
}

func TestReportCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	var missed Stats
	require.ErrorIs(t, cache.Get(ctx, testOwner, "stats", &missed), ErrCacheMiss)

	stats := Stats{TotalItems: 3, TotalValue: 1050}
	require.NoError(t, cache.Set(ctx, testOwner, "stats", stats))

	var got Stats
	require.NoError(t, cache.Get(ctx, testOwner, "stats", &got))
	require.Equal(t, stats, got)
}

func TestReportCacheBumpInvalidates(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, testOwner, "stats", Stats{TotalItems: 3}))
	require.NoError(t, cache.Bump(ctx))

	var got Stats
	require.ErrorIs(t, cache.Get(ctx, testOwner, "stats", &got), ErrCacheMiss)
}

func TestReportCacheScopesByOwnerAndKind(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, testOwner, "stats", Stats{TotalItems: 1}))

	var got Stats
	require.ErrorIs(t, cache.Get(ctx, "22222222-2222-2222-2222-222222222222", "stats", &got), ErrCacheMiss)
	require.ErrorIs(t, cache.Get(ctx, testOwner, "sync-report", &got), ErrCacheMiss)
}

func TestReportCacheTTL(t *testing.T) {
	cache, srv := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, testOwner, "stats", Stats{TotalItems: 1}))
	srv.FastForward(2 * time.Minute)

	var got Stats
	require.ErrorIs(t, cache.Get(ctx, testOwner, "stats", &got), ErrCacheMiss)
}

func TestReportCacheDisabledWithoutClient(t *testing.T) {
	var cache *ReportCache
	ctx := context.Background()

	var got Stats
	require.ErrorIs(t, cache.Get(ctx, testOwner, "stats", &got), ErrCacheMiss)
	require.NoError(t, cache.Set(ctx, testOwner, "stats", Stats{}))
	require.NoError(t, cache.Bump(ctx))
}

func TestOrchestratorServesCachedStats(t *testing.T) {
	cache, _ := newTestCache(t)
	store := newMemoryStore()
	store.put(Material{ID: "m-1", OwnerID: testOwner, Name: "Gula", Unit: "kg", Stock: 10, WAC: 100, UnitPrice: 100})

	o := NewOrchestrator(store, testOwner, Options{Cache: cache})
	ctx := context.Background()

	first, err := o.WarehouseStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, first.TotalItems)

	// A direct store write is invisible until something bumps the cache.
	store.put(Material{ID: "m-2", OwnerID: testOwner, Name: "Tepung", Unit: "kg", Stock: 5, WAC: 50, UnitPrice: 50})
	second, err := o.WarehouseStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, second.TotalItems)

	require.NoError(t, cache.Bump(ctx))
	third, err := o.WarehouseStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, third.TotalItems)
}

func TestApplyPurchaseInvalidatesReports(t *testing.T) {
	cache, _ := newTestCache(t)
	store := newMemoryStore()
	store.put(Material{ID: "m-1", OwnerID: testOwner, Name: "Gula", Unit: "kg", Stock: 10, WAC: 100, UnitPrice: 100})

	o := NewOrchestrator(store, testOwner, Options{Cache: cache})
	ctx := context.Background()

	before, err := o.WarehouseStats(ctx)
	require.NoError(t, err)
	require.InDelta(t, 1000.0, before.TotalValue, 0.0001)

	_, err = o.ApplyPurchase(ctx, Purchase{
		ID: "p-1", OwnerID: testOwner,
		Items: []RawLineItem{{MaterialID: "m-1", Qty: 10, UnitPrice: 200}},
	})
	require.NoError(t, err)

	after, err := o.WarehouseStats(ctx)
	require.NoError(t, err)
	require.InDelta(t, 3000.0, after.TotalValue, 0.0001)
}
