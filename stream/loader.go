// Package stream loads large time ranges progressively: a range is split
// into fixed-span chunks fetched with bounded parallelism, and each
// chunk's handle is delivered as it arrives. Chunk-level deduplication
// falls out of the manager's fingerprint coalescing; the loader adds a
// residency bitmap so callers can tell which chunks have been materialized
// at least once.
package stream

import (
	"context"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/tickgo"
)

// DefaultChunkSpan is the default chunk duration in timestamp units.
const DefaultChunkSpan = 3600

// DefaultParallelism bounds concurrent chunk fetches.
const DefaultParallelism = 4

// Chunk is one delivered piece of a progressive load. The callback owns
// the handle and must pair it with Manager.Release.
type Chunk struct {
	// Index is the absolute chunk index: chunk start time / chunk span.
	Index uint32

	// Request is the chunk's underlying request.
	Request tickgo.Request

	// Handle is the resident decoded buffer for the chunk.
	Handle *tickgo.Handle
}

// Loader splits requests into chunks over a Manager.
type Loader struct {
	mgr      *tickgo.Manager
	span     uint64
	parallel int

	mu       sync.Mutex
	resident map[string]*roaring.Bitmap // symbol -> loaded chunk indices
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithChunkSpan sets the chunk duration in timestamp units.
func WithChunkSpan(span uint64) LoaderOption {
	return func(l *Loader) {
		if span > 0 {
			l.span = span
		}
	}
}

// WithParallelism bounds the number of chunks fetched concurrently.
func WithParallelism(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.parallel = n
		}
	}
}

// NewLoader creates a Loader over mgr.
func NewLoader(mgr *tickgo.Manager, optFns ...LoaderOption) *Loader {
	l := &Loader{
		mgr:      mgr,
		span:     DefaultChunkSpan,
		parallel: DefaultParallelism,
		resident: make(map[string]*roaring.Bitmap),
	}
	for _, fn := range optFns {
		fn(l)
	}
	return l
}

// Load fetches every chunk overlapping [base.Start, base.End] and calls
// deliver once per chunk in arrival order. deliver runs serially; a slow
// callback backpressures delivery but not the fetches. The first fetch
// error cancels outstanding chunks and is returned; handles already
// delivered stay owned by the callback.
func (l *Loader) Load(ctx context.Context, base tickgo.Request, deliver func(Chunk) error) error {
	if base.End < base.Start {
		return nil
	}

	first := base.Start / l.span
	last := base.End / l.span

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.parallel)

	var deliverMu sync.Mutex

	for idx := first; idx <= last; idx++ {
		req := base
		req.Start = idx * l.span
		req.End = (idx+1)*l.span - 1

		g.Go(func() error {
			h, err := l.mgr.FetchOrGet(ctx, req)
			if err != nil {
				return err
			}

			l.markResident(base.Symbol, uint32(idx))

			deliverMu.Lock()
			defer deliverMu.Unlock()
			return deliver(Chunk{Index: uint32(idx), Request: req, Handle: h})
		})
	}

	return g.Wait()
}

func (l *Loader) markResident(symbol string, idx uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()

	bm, ok := l.resident[symbol]
	if !ok {
		bm = roaring.New()
		l.resident[symbol] = bm
	}
	bm.Add(idx)
}

// Resident reports whether the chunk containing ts has been loaded at
// least once for symbol. Advisory: the manager may have evicted the data
// since; a FetchOrGet then simply refetches.
func (l *Loader) Resident(symbol string, ts uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	bm, ok := l.resident[symbol]
	return ok && bm.Contains(uint32(ts/l.span))
}

// ResidentCount returns how many distinct chunks have been loaded for
// symbol.
func (l *Loader) ResidentCount(symbol string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	bm, ok := l.resident[symbol]
	if !ok {
		return 0
	}
	return bm.GetCardinality()
}

// Forget clears the residency bitmap for symbol.
func (l *Loader) Forget(symbol string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.resident, symbol)
}
