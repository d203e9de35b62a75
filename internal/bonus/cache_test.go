package bonus

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) (*ReportCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewReportCache(client, ttl, NewMetrics(prometheus.NewRegistry()), nil), mr
}

func TestReportServedFromCacheUntilBump(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)
	store := newReportStore()
	svc := NewService(store, ServiceConfig{Cache: cache})
	ctx := context.Background()

	first, err := svc.BuildEnrichedReport(ctx, januaryFilter(), 0, 10)
	require.NoError(t, err)
	second, err := svc.BuildEnrichedReport(ctx, januaryFilter(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, store.calls["ListInvoiceRows"])
	assert.True(t, first.TotalFees.Equal(second.TotalFees))
	assert.Equal(t, first.TotalCount, second.TotalCount)
	assert.Equal(t, "80", second.Items[4].BonusAmount.String())

	require.NoError(t, svc.AssignClient(ctx, 1, CommissionAssignment{VendorID: 2, ClientID: 10, Rate: dec("0.1")}))

	third, err := svc.BuildEnrichedReport(ctx, januaryFilter(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, store.calls["ListInvoiceRows"])
	for _, item := range third.Items {
		if item.ID == 4 {
			assert.Equal(t, "250.00", item.BonusAmount.StringFixed(2))
		}
	}
}

func TestCacheKeysVaryByFilter(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	base, err := cache.BuildKey(ctx, januaryFilter(), 0, 10, "w1")
	require.NoError(t, err)
	paged, err := cache.BuildKey(ctx, januaryFilter(), 10, 10, "w1")
	require.NoError(t, err)
	filtered := januaryFilter()
	filtered.VendorID = ptr(int64(1))
	scoped, err := cache.BuildKey(ctx, filtered, 0, 10, "w1")
	require.NoError(t, err)
	moved, err := cache.BuildKey(ctx, januaryFilter(), 0, 10, "w2")
	require.NoError(t, err)

	assert.NotEqual(t, base, paged)
	assert.NotEqual(t, base, scoped)
	assert.NotEqual(t, base, moved)

	require.NoError(t, cache.Bump(ctx))
	bumped, err := cache.BuildKey(ctx, januaryFilter(), 0, 10, "w1")
	require.NoError(t, err)
	assert.NotEqual(t, base, bumped)
}

func TestCacheExpiresWithTTL(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	store := newReportStore()
	svc := NewService(store, ServiceConfig{Cache: cache})
	ctx := context.Background()

	_, err := svc.BuildEnrichedReport(ctx, januaryFilter(), 0, 10)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = svc.BuildEnrichedReport(ctx, januaryFilter(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, store.calls["ListInvoiceRows"])
}

func TestDisabledCacheAlwaysBuilds(t *testing.T) {
	cache, _ := newTestCache(t, 0)
	store := newReportStore()
	svc := NewService(store, ServiceConfig{Cache: cache})

	for i := 0; i < 2; i++ {
		_, err := svc.BuildEnrichedReport(context.Background(), januaryFilter(), 0, 10)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, store.calls["ListInvoiceRows"])
}

func TestConcurrentFetchSharesOneBuild(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)
	var builds atomic.Int32
	release := make(chan struct{})
	loader := func(ctx context.Context) (*ReportResponse, bool, error) {
		builds.Add(1)
		<-release
		return &ReportResponse{TotalCount: 3}, true, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := cache.Fetch(context.Background(), "compensation:report:test:1", loader)
			assert.NoError(t, err)
			assert.Equal(t, 3, resp.TotalCount)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), builds.Load())
}

func TestReportSeesInvoiceWrittenBetweenCalls(t *testing.T) {
	cache, _ := newTestCache(t, 5*time.Minute)
	store := newReportStore()
	svc := NewService(store, ServiceConfig{Cache: cache})
	ctx := context.Background()

	before, err := svc.BuildEnrichedReport(ctx, januaryFilter(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 5, before.TotalCount)
	assert.Equal(t, "4550.00", before.TotalFees.StringFixed(2))

	store.invoices = append(store.invoices, Invoice{
		ID: 7, OrderNumber: "OC-7", IssuedAt: day(2024, 1, 20), Fees: dec("1000"), Expenses: dec("0"), VendorID: 1, ClientID: 10,
	})

	after, err := svc.BuildEnrichedReport(ctx, januaryFilter(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 6, after.TotalCount)
	assert.Equal(t, "5550.00", after.TotalFees.StringFixed(2))

	calc, err := svc.CalculateBonuses(ctx, CalculateRequest{StartDate: janStart, EndDate: janEnd, VendorID: ptr(int64(1))})
	require.NoError(t, err)
	require.Len(t, calc.Results, 1)
	var reported string
	for _, sub := range after.VendorSubtotals {
		if sub.VendorID == 1 {
			reported = sub.TotalFees.StringFixed(2)
		}
	}
	assert.Equal(t, calc.Results[0].TotalFees.StringFixed(2), reported)
	assert.Equal(t, "2700.00", reported)
}

func TestFetchBuildsWhenRedisIsDown(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	ctx := context.Background()
	key, err := cache.BuildKey(ctx, januaryFilter(), 0, 10, "w1")
	require.NoError(t, err)
	mr.Close()

	resp, err := cache.Fetch(ctx, key, func(ctx context.Context) (*ReportResponse, bool, error) {
		return &ReportResponse{TotalCount: 5}, true, nil
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 5, resp.TotalCount)
	assert.Equal(t, float64(2), testutil.ToFloat64(cache.metrics.cacheLookups.WithLabelValues("error")))
}

func TestReportBuildsWhenRedisIsDown(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	svc := NewService(newReportStore(), ServiceConfig{Cache: cache})
	mr.Close()

	resp, err := svc.BuildEnrichedReport(context.Background(), januaryFilter(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 5, resp.TotalCount)
}

func TestFetchSkipsStoringMovedPage(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)
	var builds atomic.Int32
	loader := func(ctx context.Context) (*ReportResponse, bool, error) {
		builds.Add(1)
		return &ReportResponse{TotalCount: 1}, false, nil
	}

	for i := 0; i < 2; i++ {
		_, err := cache.Fetch(context.Background(), "compensation:report:moved:1", loader)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), builds.Load())
}

func TestSharedBuildOutlivesCancelledCaller(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)
	release := make(chan struct{})
	var builds atomic.Int32
	loader := func(ctx context.Context) (*ReportResponse, bool, error) {
		builds.Add(1)
		<-release
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		return &ReportResponse{TotalCount: 4}, true, nil
	}
	const key = "compensation:report:shared:1"

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := cache.Fetch(firstCtx, key, loader)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return builds.Load() == 1 }, time.Second, 5*time.Millisecond)

	secondResp := make(chan *ReportResponse, 1)
	secondErr := make(chan error, 1)
	go func() {
		resp, err := cache.Fetch(context.Background(), key, loader)
		secondResp <- resp
		secondErr <- err
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)
	close(release)

	require.NoError(t, <-secondErr)
	assert.Equal(t, 4, (<-secondResp).TotalCount)
	assert.Equal(t, int32(1), builds.Load())
}
