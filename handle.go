package tickgo

import (
	"sync/atomic"
	"time"

	"github.com/hupe1980/tickgo/buffer"
	"github.com/hupe1980/tickgo/wire"
)

var handleIDCounter atomic.Uint64

// Handle is an opaque, reference-counted reference to a resident decoded
// buffer. Contents are immutable after decode, so any number of readers
// (including a per-frame render loop) may access it concurrently without
// locks. Handles are created by the Manager and freed when unreferenced
// and evicted; callers pair every FetchOrGet with one Release.
type Handle struct {
	id        uint64
	fp        uint64
	buf       *buffer.Buffer
	schema    *wire.Schema
	createdAt time.Time
}

func newHandle(fp uint64, buf *buffer.Buffer, schema *wire.Schema) *Handle {
	return &Handle{
		id:        handleIDCounter.Add(1),
		fp:        fp,
		buf:       buf,
		schema:    schema,
		createdAt: time.Now(),
	}
}

// ID returns the unique handle identity. Coalesced callers of one fetch
// observe the same ID.
func (h *Handle) ID() uint64 {
	return h.id
}

// Fingerprint returns the query fingerprint the handle was created for.
func (h *Handle) Fingerprint() uint64 {
	return h.fp
}

// RowCount returns the number of rows in every column.
func (h *Handle) RowCount() int {
	return int(h.schema.RowCount)
}

// ByteSize returns the resident memory held, including pool class padding.
func (h *Handle) ByteSize() int64 {
	return int64(h.buf.Cap())
}

// CreatedAt returns the decode completion time.
func (h *Handle) CreatedAt() time.Time {
	return h.createdAt
}

// Schema describes the decoded columns.
func (h *Handle) Schema() *wire.Schema {
	return h.schema
}

// Bytes exposes the raw decoded buffer. Read-only.
func (h *Handle) Bytes() []byte {
	return h.buf.Bytes()
}

// Timestamps returns the sorted timestamp column, ready for
// viewport.VisibleRange.
func (h *Handle) Timestamps() ([]uint64, error) {
	return wire.Timestamps(h.buf.Bytes(), h.schema)
}

// Float32Column returns the named float32 column.
func (h *Handle) Float32Column(name string) ([]float32, error) {
	col, ok := h.schema.Column(name)
	if !ok {
		return nil, &SchemaError{Column: name}
	}
	return wire.Float32Column(h.buf.Bytes(), col)
}

// Uint32Column returns the named uint32 column.
func (h *Handle) Uint32Column(name string) ([]uint32, error) {
	col, ok := h.schema.Column(name)
	if !ok {
		return nil, &SchemaError{Column: name}
	}
	return wire.Uint32Column(h.buf.Bytes(), col)
}

// Uint64Column returns the named uint64 column.
func (h *Handle) Uint64Column(name string) ([]uint64, error) {
	col, ok := h.schema.Column(name)
	if !ok {
		return nil, &SchemaError{Column: name}
	}
	return wire.Uint64Column(h.buf.Bytes(), col)
}

// free returns the underlying buffer to the pool. Only the Manager calls
// this, once the handle is both unreferenced and out of the cache.
func (h *Handle) free() {
	h.buf.Release()
}
