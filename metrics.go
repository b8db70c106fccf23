package tickgo

import "time"

// MetricsObserver defines the interface for observing manager events.
type MetricsObserver interface {
	// OnCacheHit is called when a request is served from the cache.
	OnCacheHit(fp uint64)

	// OnCacheMiss is called when a request misses the cache.
	OnCacheMiss(fp uint64)

	// OnFetch is called when an underlying fetch and decode completes.
	// waiters is the number of coalesced callers resolved by it.
	OnFetch(duration time.Duration, bytes int64, waiters int, err error)

	// OnDecode is called when a payload decode completes.
	OnDecode(duration time.Duration, rows int, err error)

	// OnEviction is called when entries are evicted from the cache.
	OnEviction(count int, residentBytes int64)

	// OnCachePressure is called when the byte budget is exceeded because
	// every resident entry is pinned.
	OnCachePressure(residentBytes int64)
}

// NoopMetricsObserver is a no-op implementation of MetricsObserver.
type NoopMetricsObserver struct{}

func (o *NoopMetricsObserver) OnCacheHit(fp uint64)                                             {}
func (o *NoopMetricsObserver) OnCacheMiss(fp uint64)                                            {}
func (o *NoopMetricsObserver) OnFetch(duration time.Duration, bytes int64, waiters int, err error) {
}
func (o *NoopMetricsObserver) OnDecode(duration time.Duration, rows int, err error) {}
func (o *NoopMetricsObserver) OnEviction(count int, residentBytes int64)            {}
func (o *NoopMetricsObserver) OnCachePressure(residentBytes int64)                  {}
