// Package tickgo is an embedded data residency and visibility-query core
// for financial tick and candle series.
//
// A Manager resolves queries to reference-counted, immutable column
// buffers: it fingerprints each request, serves repeats from a byte-budget
// LRU cache, coalesces concurrent fetches of the same fingerprint into a
// single underlying operation, and decodes wire payloads with exactly one
// copy into pooled memory.
//
// Per-frame visibility queries (viewport culling, LOD stride selection)
// live in the viewport package and operate on a handle's timestamp column
// without locks or allocation.
//
//	src := fetch.NewHTTPSource("https://ticks.example.com")
//	mgr, err := tickgo.New(src, tickgo.WithMaxCacheBytes(256<<20))
//	if err != nil { ... }
//	defer mgr.Close()
//
//	h, err := mgr.FetchOrGet(ctx, tickgo.Request{
//	    Symbol:  "BTC-USD",
//	    Start:   start,
//	    End:     end,
//	    Columns: []string{"time", "price"},
//	})
//	if err != nil { ... }
//	defer mgr.Release(h)
//
//	ts, _ := h.Timestamps()
//	r := viewport.VisibleRange(ts, viewStart, viewEnd)
//	stride := viewport.Stride(r.Len(), budget)
package tickgo
