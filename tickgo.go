package tickgo

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/tickgo/buffer"
	"github.com/hupe1980/tickgo/fetch"
	"github.com/hupe1980/tickgo/internal/cache"
	"github.com/hupe1980/tickgo/internal/resource"
	"github.com/hupe1980/tickgo/wire"
)

// Manager orchestrates fingerprinting, cache lookup, in-flight request
// coalescing, decode and pool allocation. It is the only entry point
// external callers use; at most one underlying fetch runs per fingerprint
// at any time.
type Manager struct {
	source fetch.Source
	opts   options

	ctrl  *resource.Controller
	pool  *buffer.Pool
	cache *cache.Cache

	mu       sync.Mutex
	inflight map[uint64]*flight

	coalesced atomic.Uint64
	closed    atomic.Bool
	sweepStop chan struct{}
	sweepDone chan struct{}
}

// New creates a Manager over the given fetch source.
func New(source fetch.Source, optFns ...Option) (*Manager, error) {
	opts := options{
		maxCacheBytes:     DefaultMaxCacheBytes,
		targetPointBudget: DefaultTargetPointBudget,
		sweepInterval:     time.Minute,
		logger:            NoopLogger(),
		metrics:           &NoopMetricsObserver{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	ctrl := resource.NewController(resource.Config{
		MemoryLimitBytes:      opts.memoryLimitBytes,
		FetchLimitBytesPerSec: opts.fetchBytesPerSec,
	})

	m := &Manager{
		source: source,
		opts:   opts,
		ctrl:   ctrl,
		pool:   buffer.NewPool(ctrl),
		cache: cache.New(cache.Config{
			MaxBytes: opts.maxCacheBytes,
			HardCap:  opts.hardCap,
			TTL:      opts.ttl,
		}),
		inflight: make(map[uint64]*flight),
	}

	if opts.ttl > 0 {
		m.sweepStop = make(chan struct{})
		m.sweepDone = make(chan struct{})
		go m.sweepLoop()
	}

	return m, nil
}

// FetchOrGet resolves the request to a handle. Cache hits return without
// I/O. Concurrent calls with the same fingerprint share one underlying
// fetch and decode and receive the identical result. The caller owns one
// reference and must pair it with Release.
func (m *Manager) FetchOrGet(ctx context.Context, req Request) (*Handle, error) {
	return m.fetchOrGet(ctx, req, m.opts.prefetchAdjacent)
}

func (m *Manager) fetchOrGet(ctx context.Context, req Request, prefetch bool) (*Handle, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fp := req.Fingerprint()

	if v, expired, ok := m.cache.Get(fp); ok {
		m.opts.metrics.OnCacheHit(fp)
		return v.(*Handle), nil
	} else if expired != nil {
		expired.(*Handle).free()
	}
	m.opts.metrics.OnCacheMiss(fp)

	m.mu.Lock()
	if f, ok := m.inflight[fp]; ok {
		f.waiters++
		m.mu.Unlock()
		m.coalesced.Add(1)
		return m.wait(ctx, fp, f)
	}

	// Leader. The fetch runs on a context detached from this caller so it
	// survives the leader withdrawing while other waiters remain.
	fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	f := newFlight(cancel)
	m.inflight[fp] = f
	m.mu.Unlock()

	go m.runFetch(fctx, fp, req, f, prefetch)

	return m.wait(ctx, fp, f)
}

// wait blocks until the flight resolves or ctx is done. A withdrawing
// waiter decrements the flight's count; the last one out cancels the
// underlying fetch.
func (m *Manager) wait(ctx context.Context, fp uint64, f *flight) (*Handle, error) {
	select {
	case <-f.done:
		if f.err != nil {
			return nil, f.err
		}
		return f.handle, nil
	case <-ctx.Done():
		m.mu.Lock()
		if f.resolved {
			m.mu.Unlock()
			// The result raced our cancellation; our reference was
			// counted, so balance it before abandoning.
			<-f.done
			if f.err == nil {
				m.Release(f.handle)
			}
			return nil, ctx.Err()
		}
		f.waiters--
		if f.waiters == 0 {
			f.cancel()
			if cur, ok := m.inflight[fp]; ok && cur == f {
				delete(m.inflight, fp)
			}
		}
		m.mu.Unlock()
		return nil, ctx.Err()
	}
}

// runFetch performs the single underlying fetch and decode for a
// fingerprint and broadcasts the result to every waiter.
func (m *Manager) runFetch(ctx context.Context, fp uint64, req Request, f *flight, prefetch bool) {
	start := time.Now()

	h, bytes, err := m.fetchAndDecode(ctx, fp, req)
	waiters := m.resolve(ctx, fp, f, h, err)

	m.opts.metrics.OnFetch(time.Since(start), bytes, waiters, err)
	m.opts.logger.LogFetch(ctx, fp, req.Symbol, time.Since(start), bytes, waiters, err)

	if err == nil && prefetch {
		go m.prefetchAdjacent(req)
	}
}

func (m *Manager) fetchAndDecode(ctx context.Context, fp uint64, req Request) (*Handle, int64, error) {
	payload, err := m.source.Fetch(ctx, req.query())
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = payload.Close() }()

	if err := m.ctrl.WaitFetch(ctx, len(payload.Data)); err != nil {
		return nil, 0, &NetworkError{Query: req.query(), Err: err}
	}

	data := payload.Data
	if m.opts.autoCompression {
		if data, err = wire.DecompressAuto(data); err != nil {
			return nil, int64(len(payload.Data)), err
		}
	} else if data, err = wire.Decompress(data, m.opts.compression); err != nil {
		return nil, int64(len(payload.Data)), err
	}

	size, err := wire.Measure(data)
	if err != nil {
		return nil, int64(len(payload.Data)), err
	}

	buf, err := m.pool.Acquire(size)
	if err != nil {
		return nil, int64(len(payload.Data)), err
	}

	decodeStart := time.Now()
	schema, err := wire.Decode(data, buf.Bytes(), req.Columns)
	if err != nil {
		buf.Release()
		m.opts.metrics.OnDecode(time.Since(decodeStart), 0, err)
		return nil, int64(len(payload.Data)), err
	}
	m.opts.metrics.OnDecode(time.Since(decodeStart), int(schema.RowCount), nil)

	return newHandle(fp, buf, schema), int64(len(payload.Data)), nil
}

// resolve publishes the flight's result. On success the handle enters the
// cache carrying one reference per waiter counted at this instant; on
// failure the fingerprint is left clean so a later call retries from
// scratch. Returns the number of waiters resolved.
func (m *Manager) resolve(ctx context.Context, fp uint64, f *flight, h *Handle, err error) int {
	var evicted []any
	var pressure bool

	m.mu.Lock()
	f.resolved = true
	waiters := f.waiters
	if cur, ok := m.inflight[fp]; ok && cur == f {
		delete(m.inflight, fp)
	}
	f.handle, f.err = h, err

	if err == nil {
		res := m.cache.Put(fp, h, h.ByteSize(), waiters)
		evicted = res.Evicted
		pressure = res.Pressure
	}
	close(f.done)
	m.mu.Unlock()

	for _, v := range evicted {
		v.(*Handle).free()
	}
	if len(evicted) > 0 {
		m.opts.metrics.OnEviction(len(evicted), m.cache.SizeBytes())
		m.opts.logger.LogEviction(ctx, len(evicted), m.cache.SizeBytes())
	}
	if pressure {
		m.opts.metrics.OnCachePressure(m.cache.SizeBytes())
		m.opts.logger.LogPressure(ctx, m.cache.SizeBytes(), m.opts.maxCacheBytes)
	}

	return waiters
}

// Release drops the caller's reference on a handle. Memory is not freed
// immediately: an unreferenced entry stays cached until evicted by a later
// insertion, the TTL sweep, or Close.
func (m *Manager) Release(h *Handle) {
	if h == nil {
		return
	}
	if freed := m.cache.Release(h.fp, h); freed {
		h.free()
	}
}

// Warm fetches the given requests ahead of need, bounded at four in
// flight, and releases them immediately so they sit unpinned in the cache.
// Best-effort: the first error aborts outstanding work and is returned.
func (m *Manager) Warm(ctx context.Context, reqs ...Request) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for _, req := range reqs {
		g.Go(func() error {
			h, err := m.fetchOrGet(ctx, req, false)
			if err != nil {
				return err
			}
			m.Release(h)
			return nil
		})
	}

	return g.Wait()
}

// prefetchAdjacent warms the window following req, anticipating a pan.
func (m *Manager) prefetchAdjacent(req Request) {
	if m.closed.Load() {
		return
	}
	span := req.End - req.Start
	if span == 0 {
		return
	}
	next := req
	next.Start = req.End
	next.End = req.End + span

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if h, err := m.fetchOrGet(ctx, next, false); err == nil {
		m.Release(h)
	}
}

// Invalidate drops the cache entry for the request, if any. Pinned handles
// stay valid for their holders and are freed on their last release.
func (m *Manager) Invalidate(req Request) {
	if freed, ok := m.cache.Invalidate(req.Fingerprint()); ok && freed != nil {
		freed.(*Handle).free()
	}
}

// Stride returns the decimation stride for rendering visibleCount points
// within the configured target point budget.
func (m *Manager) Stride(visibleCount int) int {
	if m.opts.targetPointBudget <= 0 {
		return 1
	}
	s := visibleCount / m.opts.targetPointBudget
	if s < 1 {
		return 1
	}
	return s
}

// Stats is a point-in-time snapshot of manager counters.
type Stats struct {
	CacheHits        int64
	CacheMisses      int64
	Evictions        int64
	PressureEvents   int64
	CoalescedWaiters uint64

	ResidentBytes   int64
	ResidentEntries int
	DetachedHandles int
	InFlight        int

	PoolAllocatedBytes int64
	PoolHits           uint64
	PoolMisses         uint64
}

// Stats returns current counters.
func (m *Manager) Stats() Stats {
	hits, misses, evictions, pressure := m.cache.Stats()
	poolHits, poolMisses := m.pool.Stats()

	m.mu.Lock()
	inFlight := len(m.inflight)
	m.mu.Unlock()

	return Stats{
		CacheHits:          hits,
		CacheMisses:        misses,
		Evictions:          evictions,
		PressureEvents:     pressure,
		CoalescedWaiters:   m.coalesced.Load(),
		ResidentBytes:      m.cache.SizeBytes(),
		ResidentEntries:    m.cache.Len(),
		DetachedHandles:    m.cache.DetachedLen(),
		InFlight:           inFlight,
		PoolAllocatedBytes: m.pool.TotalAllocatedBytes(),
		PoolHits:           poolHits,
		PoolMisses:         poolMisses,
	}
}

// MemoryUsage returns total resident buffer memory, in-use and pooled.
func (m *Manager) MemoryUsage() int64 {
	return m.pool.TotalAllocatedBytes()
}

func (m *Manager) sweepLoop() {
	defer close(m.sweepDone)

	interval := m.opts.sweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			freed := m.cache.Sweep()
			for _, v := range freed {
				v.(*Handle).free()
			}
			if len(freed) > 0 {
				m.opts.metrics.OnEviction(len(freed), m.cache.SizeBytes())
			}
		case <-m.sweepStop:
			return
		}
	}
}

// Close cancels in-flight fetches, drops every unpinned cache entry and
// releases pooled memory. Handles still referenced by callers stay valid;
// their memory is freed on their last Release.
func (m *Manager) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}

	if m.sweepStop != nil {
		close(m.sweepStop)
		<-m.sweepDone
	}

	m.mu.Lock()
	for _, f := range m.inflight {
		f.cancel()
	}
	m.mu.Unlock()

	for _, v := range m.cache.Drain() {
		v.(*Handle).free()
	}
	m.pool.Trim()

	return nil
}
