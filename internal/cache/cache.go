// Package cache implements the byte-budget LRU keyed by query fingerprint.
// Eviction is gated on reference counts: a pinned entry is never evicted,
// no matter how old. When every entry is pinned the budget becomes a soft
// limit and insertion raises a pressure signal instead of failing.
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds cache behavior knobs.
type Config struct {
	// MaxBytes is the resident byte budget.
	MaxBytes int64

	// HardCap rejects insertions that cannot be brought under budget by
	// evicting unpinned entries, instead of exceeding the budget softly.
	HardCap bool

	// TTL expires entries after this duration. Zero disables expiry.
	TTL time.Duration
}

// Cache is the fingerprint-keyed LRU. Values are opaque to the cache;
// the owner frees them when the cache reports them released.
type Cache struct {
	mu        sync.Mutex
	cfg       Config
	size      int64
	items     map[uint64]*list.Element
	evictList *list.List
	detached  map[any]*detachedEntry

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	pressure  atomic.Int64
}

type entry struct {
	fp        uint64
	value     any
	size      int64
	refs      int
	expiresAt time.Time // zero when TTL disabled
}

// detachedEntry tracks a value that left the table while still pinned:
// replaced, invalidated, or rejected by the hard cap. It is freed when its
// last reference is released.
type detachedEntry struct {
	refs int
	size int64
}

// PutResult reports the side effects of a Put.
type PutResult struct {
	// Evicted holds values whose last reference is gone and whose memory
	// the owner must free now.
	Evicted []any

	// Pressure is set when the budget is exceeded because every resident
	// entry is pinned. Advisory, never fatal.
	Pressure bool

	// Rejected is set in hard-cap mode when the entry could not be
	// admitted. The value is tracked as detached and freed on release.
	Rejected bool
}

// New creates a cache.
func New(cfg Config) *Cache {
	return &Cache{
		cfg:       cfg,
		items:     make(map[uint64]*list.Element),
		evictList: list.New(),
		detached:  make(map[any]*detachedEntry),
	}
}

// Get returns the value for fp, pinning it (refs+1) and refreshing its
// recency. Expired unpinned entries are removed and reported as misses;
// the freed value is returned for the owner to release.
func (c *Cache) Get(fp uint64) (value any, freed any, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.items[fp]
	if !exists {
		c.misses.Add(1)
		return nil, nil, false
	}

	ent := elem.Value.(*entry)
	if c.expired(ent) {
		c.misses.Add(1)
		if ent.refs == 0 {
			c.removeElement(elem)
			return nil, ent.value, false
		}
		// Still pinned: detach so a fresh Put can take the slot.
		c.detachElement(elem)
		return nil, nil, false
	}

	c.hits.Add(1)
	ent.refs++
	c.evictList.MoveToFront(elem)
	return ent.value, nil, true
}

// Put inserts value under fp with initialRefs pinned references, then
// evicts least-recently-used unpinned entries while over budget. A
// same-fingerprint resident entry is replaced; the old value is freed or
// detached depending on its reference count.
func (c *Cache) Put(fp uint64, value any, size int64, initialRefs int) PutResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	var res PutResult

	if elem, exists := c.items[fp]; exists {
		old := elem.Value.(*entry)
		if old.refs == 0 {
			c.removeElement(elem)
			res.Evicted = append(res.Evicted, old.value)
			c.evictions.Add(1)
		} else {
			c.detachElement(elem)
		}
	}

	ent := &entry{fp: fp, value: value, size: size, refs: initialRefs}
	if c.cfg.TTL > 0 {
		ent.expiresAt = time.Now().Add(c.cfg.TTL)
	}
	elem := c.evictList.PushFront(ent)
	c.items[fp] = elem
	c.size += size

	res.Evicted = append(res.Evicted, c.evictLocked()...)

	if c.size > c.cfg.MaxBytes {
		if c.cfg.HardCap {
			// Back the new entry out unless eviction already removed it; it
			// lives on detached until its references drain.
			if cur, resident := c.items[fp]; resident && cur == elem {
				c.removeElement(elem)
				if initialRefs > 0 {
					c.detached[value] = &detachedEntry{refs: initialRefs, size: size}
				} else {
					res.Evicted = append(res.Evicted, value)
				}
			}
			res.Rejected = true
			return res
		}
		res.Pressure = true
		c.pressure.Add(1)
	}

	return res
}

// Release drops one reference from the value stored under fp. When the
// value is no longer resident (evicted, replaced, or rejected while
// pinned), the detached side is consulted. freed reports that the owner
// must free the value's memory now.
func (c *Cache) Release(fp uint64, value any) (freed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[fp]; exists {
		ent := elem.Value.(*entry)
		if ent.value == value {
			if ent.refs > 0 {
				ent.refs--
			}
			// Unpinned entries stay resident until the next Put or Sweep.
			return false
		}
	}

	if det, ok := c.detached[value]; ok {
		det.refs--
		if det.refs <= 0 {
			delete(c.detached, value)
			return true
		}
	}
	return false
}

// Invalidate removes the entry for fp regardless of recency. A pinned
// value moves to the detached side; an unpinned one is returned for the
// owner to free.
func (c *Cache) Invalidate(fp uint64) (freed any, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.items[fp]
	if !exists {
		return nil, false
	}
	ent := elem.Value.(*entry)
	if ent.refs == 0 {
		c.removeElement(elem)
		c.evictions.Add(1)
		return ent.value, true
	}
	c.detachElement(elem)
	return nil, true
}

// Sweep evicts expired unpinned entries and returns their values. A no-op
// when TTL is disabled.
func (c *Cache) Sweep() []any {
	if c.cfg.TTL <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var freed []any
	var next *list.Element
	for elem := c.evictList.Back(); elem != nil; elem = next {
		next = elem.Prev()
		ent := elem.Value.(*entry)
		if !c.expired(ent) || ent.refs != 0 {
			continue
		}
		c.removeElement(elem)
		freed = append(freed, ent.value)
		c.evictions.Add(1)
	}
	return freed
}

// Drain removes every resident entry. Unpinned values are returned for
// the owner to free; pinned ones move to the detached side and are freed
// on their last release.
func (c *Cache) Drain() []any {
	c.mu.Lock()
	defer c.mu.Unlock()

	var freed []any
	for elem := c.evictList.Front(); elem != nil; elem = c.evictList.Front() {
		ent := elem.Value.(*entry)
		if ent.refs == 0 {
			c.removeElement(elem)
			freed = append(freed, ent.value)
		} else {
			c.detachElement(elem)
		}
	}
	return freed
}

// SizeBytes returns the resident byte total. Detached values are not
// resident and do not count.
func (c *Cache) SizeBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Len returns the number of resident entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// DetachedLen returns the number of values awaiting their last release.
func (c *Cache) DetachedLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.detached)
}

// Stats returns cumulative counters.
func (c *Cache) Stats() (hits, misses, evictions, pressure int64) {
	return c.hits.Load(), c.misses.Load(), c.evictions.Load(), c.pressure.Load()
}

// evictLocked removes unpinned entries from the LRU tail while over
// budget. Pinned entries are skipped regardless of age.
func (c *Cache) evictLocked() []any {
	var freed []any
	elem := c.evictList.Back()
	for c.size > c.cfg.MaxBytes && elem != nil {
		prev := elem.Prev()
		ent := elem.Value.(*entry)
		if ent.refs == 0 {
			c.removeElement(elem)
			freed = append(freed, ent.value)
			c.evictions.Add(1)
		}
		elem = prev
	}
	return freed
}

func (c *Cache) expired(ent *entry) bool {
	return !ent.expiresAt.IsZero() && time.Now().After(ent.expiresAt)
}

func (c *Cache) removeElement(elem *list.Element) {
	ent := elem.Value.(*entry)
	c.evictList.Remove(elem)
	delete(c.items, ent.fp)
	c.size -= ent.size
}

// detachElement moves a still-pinned entry out of the resident table.
func (c *Cache) detachElement(elem *list.Element) {
	ent := elem.Value.(*entry)
	c.evictList.Remove(elem)
	delete(c.items, ent.fp)
	c.size -= ent.size
	c.detached[ent.value] = &detachedEntry{refs: ent.refs, size: ent.size}
	c.evictions.Add(1)
}
