package buffer

import (
	"fmt"
	"math/bits"
	"sync"

	"github.com/hupe1980/tickgo/internal/resource"
)

const (
	// MinClassBytes is the smallest size class. Requests below it are
	// rounded up so tiny decodes still hit the free lists.
	MinClassBytes = 4 << 10 // 4 KiB

	// MaxClassBytes is the largest pooled size class. Larger requests are
	// allocated exactly and never retained on a free list.
	MaxClassBytes = 64 << 20 // 64 MiB
)

// AllocationError indicates the pool could not satisfy an acquire, either
// because the resource budget is exhausted or the request is invalid.
// Fatal for the request, not for the pool.
type AllocationError struct {
	Size int
	Err  error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("buffer: cannot allocate %d bytes: %v", e.Size, e.Err)
}

func (e *AllocationError) Unwrap() error {
	return e.Err
}

// Pool is a size-classed free-list allocator. Released buffers stay
// allocated on their class's free list until Trim.
type Pool struct {
	mu        sync.Mutex
	free      map[int][]*Buffer // class size -> free buffers
	allocated int64             // total bytes held, in-use plus free

	ctrl *resource.Controller // may be nil

	// stats
	hits   uint64
	misses uint64
}

// NewPool creates a pool. ctrl may be nil for an unlimited pool.
func NewPool(ctrl *resource.Controller) *Pool {
	return &Pool{
		free: make(map[int][]*Buffer),
		ctrl: ctrl,
	}
}

// classFor rounds size up to its power-of-two class.
func classFor(size int) int {
	if size <= MinClassBytes {
		return MinClassBytes
	}
	if size > MaxClassBytes {
		return size // exact, unpooled
	}
	return 1 << bits.Len(uint(size-1))
}

// Acquire returns a buffer with logical length size. Contents are
// unspecified; the caller must fully overwrite before reading.
func (p *Pool) Acquire(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, &AllocationError{Size: size, Err: fmt.Errorf("non-positive size")}
	}

	class := classFor(size)

	p.mu.Lock()
	if list := p.free[class]; len(list) > 0 {
		b := list[len(list)-1]
		p.free[class] = list[:len(list)-1]
		p.hits++
		p.mu.Unlock()

		b.data = b.data[:size]
		return b, nil
	}
	p.misses++
	p.mu.Unlock()

	if err := p.ctrl.AcquireMemory(int64(class)); err != nil {
		return nil, &AllocationError{Size: size, Err: err}
	}

	b := &Buffer{
		data: make([]byte, size, class),
		pool: p,
	}

	p.mu.Lock()
	p.allocated += int64(class)
	p.mu.Unlock()

	return b, nil
}

// Release returns b to its class's free list without zeroing. Oversized
// buffers (above MaxClassBytes) are freed immediately.
func (p *Pool) Release(b *Buffer) {
	if b == nil || b.pool != p {
		return
	}

	class := cap(b.data)
	if class > MaxClassBytes {
		p.mu.Lock()
		p.allocated -= int64(class)
		p.mu.Unlock()
		p.ctrl.ReleaseMemory(int64(class))
		b.data = nil
		b.pool = nil
		return
	}

	p.mu.Lock()
	p.free[class] = append(p.free[class], b)
	p.mu.Unlock()
}

// TotalAllocatedBytes returns the total bytes held by the pool, counting
// both in-use and free-listed buffers.
func (p *Pool) TotalAllocatedBytes() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocated
}

// Stats returns free-list hit and miss counts since creation.
func (p *Pool) Stats() (hits, misses uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits, p.misses
}

// Trim drops all free-listed buffers and returns the number of bytes freed
// back to the resource budget.
func (p *Pool) Trim() int64 {
	p.mu.Lock()
	var freed int64
	for class, list := range p.free {
		freed += int64(class) * int64(len(list))
		for _, b := range list {
			b.data = nil
			b.pool = nil
		}
		delete(p.free, class)
	}
	p.allocated -= freed
	p.mu.Unlock()

	p.ctrl.ReleaseMemory(freed)
	return freed
}
