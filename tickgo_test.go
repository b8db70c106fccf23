package tickgo

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tickgo/fetch"
	"github.com/hupe1980/tickgo/wire"
)

func tickPayload(t *testing.T, times []uint64, prices []float32) []byte {
	t.Helper()
	enc := wire.NewEncoder()
	require.NoError(t, enc.Uint64(wire.TimestampColumn, times))
	require.NoError(t, enc.Float32("price", prices))
	data, err := enc.Encode()
	require.NoError(t, err)
	return data
}

// countingSource wraps another source and counts underlying fetches.
type countingSource struct {
	inner fetch.Source
	calls atomic.Int64
	delay time.Duration
}

func (s *countingSource) Fetch(ctx context.Context, q fetch.Query) (fetch.Payload, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return fetch.Payload{}, &fetch.NetworkError{Query: q, Err: ctx.Err()}
		}
	}
	return s.inner.Fetch(ctx, q)
}

func newTestManager(t *testing.T, src fetch.Source, optFns ...Option) *Manager {
	t.Helper()
	mgr, err := New(src, optFns...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })
	return mgr
}

func TestFetchOrGetMissThenHit(t *testing.T) {
	src := fetch.NewMemorySource()
	req := Request{Symbol: "BTC-USD", Start: 0, End: 100, Columns: []string{"time", "price"}}
	src.Put(req.query(), tickPayload(t, []uint64{10, 20, 30}, []float32{1, 2, 3}))

	counting := &countingSource{inner: src}
	mgr := newTestManager(t, counting)

	h1, err := mgr.FetchOrGet(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 3, h1.RowCount())

	ts, err := h1.Timestamps()
	require.NoError(t, err)
	assert.Equal(t, []uint64{10, 20, 30}, ts)

	prices, err := h1.Float32Column("price")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, prices)

	// Second call is a pure cache hit: same handle, no I/O.
	h2, err := mgr.FetchOrGet(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, h1.ID(), h2.ID())
	assert.Equal(t, int64(1), counting.calls.Load())

	stats := mgr.Stats()
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(1), stats.CacheMisses)

	mgr.Release(h1)
	mgr.Release(h2)
}

func TestFetchOrGetCoalescing(t *testing.T) {
	src := fetch.NewMemorySource()
	req := Request{Symbol: "BTC-USD", Start: 0, End: 100}
	src.Put(req.query(), tickPayload(t, []uint64{10, 20}, []float32{1, 2}))

	counting := &countingSource{inner: src, delay: 50 * time.Millisecond}
	mgr := newTestManager(t, counting)

	const n = 10
	var wg sync.WaitGroup
	ids := make([]uint64, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := mgr.FetchOrGet(context.Background(), req)
			errs[i] = err
			if err == nil {
				ids[i] = h.ID()
				mgr.Release(h)
			}
		}()
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i], "all callers must observe the same handle")
	}
	assert.Equal(t, int64(1), counting.calls.Load(), "exactly one underlying fetch")
}

func TestFetchErrorBroadcastNoPoisoning(t *testing.T) {
	src := fetch.NewMemorySource() // empty: every fetch fails NotFound
	req := Request{Symbol: "BTC-USD", Start: 0, End: 100}

	counting := &countingSource{inner: src, delay: 30 * time.Millisecond}
	mgr := newTestManager(t, counting)

	const n = 4
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = mgr.FetchOrGet(context.Background(), req)
		}()
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		var netErr *NetworkError
		require.ErrorAs(t, errs[i], &netErr)
		assert.ErrorIs(t, errs[i], fetch.ErrNotFound)
	}
	assert.Equal(t, int64(1), counting.calls.Load())

	// The fingerprint is not poisoned: once data exists, a fresh call
	// succeeds.
	src.Put(req.query(), tickPayload(t, []uint64{1}, []float32{1}))
	h, err := mgr.FetchOrGet(context.Background(), req)
	require.NoError(t, err)
	mgr.Release(h)
}

func TestFetchCancellationWhenAllWaitersWithdraw(t *testing.T) {
	started := make(chan struct{})
	cancelled := make(chan struct{})
	src := &blockingSource{started: started, cancelled: cancelled}
	mgr := newTestManager(t, src)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := mgr.FetchOrGet(ctx, Request{Symbol: "BTC-USD", Start: 0, End: 100})
		done <- err
	}()

	<-started
	cancel()

	err := <-done
	require.ErrorIs(t, err, context.Canceled)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("underlying fetch was not cancelled after the last waiter withdrew")
	}
}

type blockingSource struct {
	started   chan struct{}
	cancelled chan struct{}
}

func (s *blockingSource) Fetch(ctx context.Context, q fetch.Query) (fetch.Payload, error) {
	close(s.started)
	<-ctx.Done()
	close(s.cancelled)
	return fetch.Payload{}, &fetch.NetworkError{Query: q, Err: ctx.Err()}
}

func TestFetchOrGetSchemaError(t *testing.T) {
	src := fetch.NewMemorySource()
	req := Request{Symbol: "BTC-USD", Start: 0, End: 100, Columns: []string{"bid"}}
	src.Put(req.query(), tickPayload(t, []uint64{1}, []float32{1}))

	mgr := newTestManager(t, src)

	_, err := mgr.FetchOrGet(context.Background(), req)
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "bid", schemaErr.Column)
}

func TestFetchOrGetRejectsUnsortedPayload(t *testing.T) {
	enc := wire.NewEncoder()
	require.NoError(t, enc.Uint64(wire.TimestampColumn, []uint64{30, 10, 20}))
	data, err := enc.Encode()
	require.NoError(t, err)

	src := fetch.NewMemorySource()
	req := Request{Symbol: "BTC-USD", Start: 0, End: 100}
	src.Put(req.query(), data)

	mgr := newTestManager(t, src)

	_, err = mgr.FetchOrGet(context.Background(), req)
	var formatErr *FormatError
	require.ErrorAs(t, err, &formatErr)
}

func TestFetchOrGetCompressedPayload(t *testing.T) {
	src := fetch.NewMemorySource()
	req := Request{Symbol: "BTC-USD", Start: 0, End: 100}

	raw := tickPayload(t, []uint64{10, 20, 30, 40}, []float32{1, 1, 1, 1})
	framed, err := wire.Compress(raw, wire.CompressionZSTD)
	require.NoError(t, err)
	src.Put(req.query(), framed)

	mgr := newTestManager(t, src, WithCompression(wire.CompressionZSTD))
	h, err := mgr.FetchOrGet(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 4, h.RowCount())
	mgr.Release(h)

	mgrAuto := newTestManager(t, src, WithAutoCompression())
	h, err = mgrAuto.FetchOrGet(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 4, h.RowCount())
	mgrAuto.Release(h)
}

func TestEvictionUnderBudget(t *testing.T) {
	src := fetch.NewMemorySource()
	mgr := newTestManager(t, src, WithMaxCacheBytes(10<<10))

	// Each payload decodes into one 4 KiB pool class; three exceed the
	// 10 KiB budget.
	reqs := make([]Request, 3)
	for i := range reqs {
		reqs[i] = Request{Symbol: "BTC-USD", Start: uint64(i * 100), End: uint64(i*100 + 99)}
		src.Put(reqs[i].query(), tickPayload(t, []uint64{uint64(i * 100)}, []float32{1}))
	}

	for _, req := range reqs {
		h, err := mgr.FetchOrGet(context.Background(), req)
		require.NoError(t, err)
		mgr.Release(h)
	}

	stats := mgr.Stats()
	assert.GreaterOrEqual(t, stats.Evictions, int64(1))
	assert.LessOrEqual(t, stats.ResidentBytes, int64(10<<10))
	assert.Equal(t, int64(0), stats.PressureEvents)
}

func TestPressureWhenAllPinned(t *testing.T) {
	src := fetch.NewMemorySource()
	mgr := newTestManager(t, src, WithMaxCacheBytes(4<<10))

	reqs := make([]Request, 2)
	handles := make([]*Handle, 2)
	for i := range reqs {
		reqs[i] = Request{Symbol: "BTC-USD", Start: uint64(i * 100), End: uint64(i*100 + 99)}
		src.Put(reqs[i].query(), tickPayload(t, []uint64{uint64(i * 100)}, []float32{1}))

		h, err := mgr.FetchOrGet(context.Background(), reqs[i])
		require.NoError(t, err)
		handles[i] = h // keep pinned
	}

	stats := mgr.Stats()
	assert.GreaterOrEqual(t, stats.PressureEvents, int64(1))
	assert.Greater(t, stats.ResidentBytes, int64(4<<10), "soft limit exceeded while pinned")

	for _, h := range handles {
		mgr.Release(h)
	}
}

func TestWarm(t *testing.T) {
	src := fetch.NewMemorySource()
	counting := &countingSource{inner: src}
	mgr := newTestManager(t, counting)

	reqs := make([]Request, 3)
	for i := range reqs {
		reqs[i] = Request{Symbol: "BTC-USD", Start: uint64(i * 100), End: uint64(i*100 + 99)}
		src.Put(reqs[i].query(), tickPayload(t, []uint64{uint64(i * 100)}, []float32{1}))
	}

	require.NoError(t, mgr.Warm(context.Background(), reqs...))
	assert.Equal(t, int64(3), counting.calls.Load())

	// Warmed entries serve hits without further I/O.
	h, err := mgr.FetchOrGet(context.Background(), reqs[1])
	require.NoError(t, err)
	mgr.Release(h)
	assert.Equal(t, int64(3), counting.calls.Load())
}

func TestInvalidate(t *testing.T) {
	src := fetch.NewMemorySource()
	req := Request{Symbol: "BTC-USD", Start: 0, End: 100}
	src.Put(req.query(), tickPayload(t, []uint64{1}, []float32{1}))

	counting := &countingSource{inner: src}
	mgr := newTestManager(t, counting)

	h, err := mgr.FetchOrGet(context.Background(), req)
	require.NoError(t, err)
	mgr.Release(h)

	mgr.Invalidate(req)

	_, err = mgr.FetchOrGet(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counting.calls.Load(), "invalidation forces a refetch")
}

func TestClose(t *testing.T) {
	src := fetch.NewMemorySource()
	req := Request{Symbol: "BTC-USD", Start: 0, End: 100}
	src.Put(req.query(), tickPayload(t, []uint64{1}, []float32{1}))

	mgr, err := New(src)
	require.NoError(t, err)

	h, err := mgr.FetchOrGet(context.Background(), req)
	require.NoError(t, err)
	mgr.Release(h)

	require.NoError(t, mgr.Close())
	require.NoError(t, mgr.Close()) // idempotent

	_, err = mgr.FetchOrGet(context.Background(), req)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStride(t *testing.T) {
	mgr := newTestManager(t, fetch.NewMemorySource(), WithTargetPointBudget(1000))

	assert.Equal(t, 1, mgr.Stride(500))
	assert.Equal(t, 5, mgr.Stride(5000))
	assert.Equal(t, mgr.Stride(5000), mgr.Stride(5000))
}

func TestFingerprintDeterministic(t *testing.T) {
	a := Request{Symbol: "BTC-USD", Start: 1, End: 2, Columns: []string{"time", "price"}}
	b := Request{Symbol: "BTC-USD", Start: 1, End: 2, Columns: []string{"price", "time"}}
	assert.Equal(t, a.Fingerprint(), b.Fingerprint(), "column order must not matter")

	c := Request{Symbol: "BTC-USD", Start: 1, End: 3, Columns: []string{"time", "price"}}
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())

	d := a
	d.Timeframe = 60
	assert.NotEqual(t, a.Fingerprint(), d.Fingerprint())

	e := Request{Symbol: "ETH-USD", Start: 1, End: 2, Columns: []string{"time", "price"}}
	assert.NotEqual(t, a.Fingerprint(), e.Fingerprint())
}

func TestPrefetchAdjacent(t *testing.T) {
	src := fetch.NewMemorySource()
	req := Request{Symbol: "BTC-USD", Start: 0, End: 100}
	next := Request{Symbol: "BTC-USD", Start: 100, End: 200}
	src.Put(req.query(), tickPayload(t, []uint64{1}, []float32{1}))
	src.Put(next.query(), tickPayload(t, []uint64{101}, []float32{1}))

	counting := &countingSource{inner: src}
	mgr := newTestManager(t, counting, WithPrefetchAdjacent())

	h, err := mgr.FetchOrGet(context.Background(), req)
	require.NoError(t, err)
	mgr.Release(h)

	// The adjacent window lands in the cache in the background.
	require.Eventually(t, func() bool {
		return counting.calls.Load() == 2
	}, time.Second, 5*time.Millisecond)

	h, err = mgr.FetchOrGet(context.Background(), next)
	require.NoError(t, err)
	mgr.Release(h)
	assert.Equal(t, int64(2), counting.calls.Load(), "prefetched window must be a cache hit")
}

func TestErrClosedSentinel(t *testing.T) {
	assert.True(t, errors.Is(ErrClosed, ErrClosed))
}
