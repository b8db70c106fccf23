// Package buffer provides pooled, size-classed byte buffers for decoded
// column data. Buffers are bucketed into power-of-two classes and reused
// across queries to avoid allocation churn.
package buffer

// Buffer is a block of resident memory owned by a Pool. Contents are not
// zeroed on reuse; callers must overwrite the full logical length before
// reading. After decode completes a buffer is treated as write-once,
// read-many.
type Buffer struct {
	data []byte // len is the logical size, cap is the class size
	pool *Pool
}

// Bytes returns the buffer contents at its logical length.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Len returns the logical length in bytes.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Cap returns the class capacity in bytes.
func (b *Buffer) Cap() int {
	return cap(b.data)
}

// Release returns the buffer to its pool's free list. The buffer must not
// be used after Release.
func (b *Buffer) Release() {
	if b == nil || b.pool == nil {
		return
	}
	b.pool.Release(b)
}
