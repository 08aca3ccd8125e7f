package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/JakeFAU/openfeeder/internal/cache"
)

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if httpRequestsTotal == nil || httpRequestDurationSeconds == nil ||
		cacheRequestsTotal == nil || gatewayDecisionsTotal == nil || syncBucketItems == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestCacheObserver(t *testing.T) {
	Init()
	before := testutil.ToFloat64(cacheRequestsTotal.WithLabelValues("item", "hit"))

	var obs CacheObserver
	obs.CacheResult(cache.KindItem, true)
	obs.CacheResult(cache.KindItem, false)

	if got := testutil.ToFloat64(cacheRequestsTotal.WithLabelValues("item", "hit")); got != before+1 {
		t.Errorf("expected item hits to grow by 1, got %f -> %f", before, got)
	}
	if got := testutil.ToFloat64(cacheRequestsTotal.WithLabelValues("item", "miss")); got < 1 {
		t.Errorf("expected an item miss, got %f", got)
	}
}

func TestObserveSyncAndGateway(t *testing.T) {
	Init()
	ObserveSync(2, 0, 1)
	ObserveGateway("cold_start")
	ObserveSessionsSwept(0)
	ObserveSessionsSwept(3)
	ObserveNotifyDropped(2)

	if val := testutil.CollectAndCount(syncBucketItems); val != 3 {
		t.Errorf("expected three sync buckets, got %d", val)
	}
	if val := testutil.ToFloat64(gatewayDecisionsTotal.WithLabelValues("cold_start")); val < 1 {
		t.Errorf("expected a cold_start decision, got %f", val)
	}
	if val := testutil.ToFloat64(sessionsSweptTotal); val < 3 {
		t.Errorf("expected swept sessions >= 3, got %f", val)
	}
	if val := testutil.ToFloat64(notifyDroppedTotal); val < 2 {
		t.Errorf("expected dropped events >= 2, got %f", val)
	}
}
