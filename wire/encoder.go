package wire

import (
	"fmt"
	"unsafe"

	"github.com/hupe1980/tickgo/internal/conv"
)

// Encoder builds a wire message from typed columns. Used by producers and
// tests; the read path never needs it.
type Encoder struct {
	cols []encoderColumn
	rows int // -1 until the first column fixes it
}

type encoderColumn struct {
	name string
	typ  Type
	data []byte
}

// NewEncoder creates an empty encoder.
func NewEncoder() *Encoder {
	return &Encoder{rows: -1}
}

// Float32 appends a float32 column.
func (e *Encoder) Float32(name string, values []float32) error {
	var raw []byte
	if len(values) > 0 {
		raw = unsafe.Slice((*byte)(unsafe.Pointer(&values[0])), len(values)*4)
	}
	return e.add(name, TypeFloat32, raw, len(values))
}

// Uint32 appends a uint32 column.
func (e *Encoder) Uint32(name string, values []uint32) error {
	var raw []byte
	if len(values) > 0 {
		raw = unsafe.Slice((*byte)(unsafe.Pointer(&values[0])), len(values)*4)
	}
	return e.add(name, TypeUint32, raw, len(values))
}

// Uint64 appends a uint64 column. Use this for TimestampColumn.
func (e *Encoder) Uint64(name string, values []uint64) error {
	var raw []byte
	if len(values) > 0 {
		raw = unsafe.Slice((*byte)(unsafe.Pointer(&values[0])), len(values)*8)
	}
	return e.add(name, TypeUint64, raw, len(values))
}

// Int32 appends an int32 column.
func (e *Encoder) Int32(name string, values []int32) error {
	var raw []byte
	if len(values) > 0 {
		raw = unsafe.Slice((*byte)(unsafe.Pointer(&values[0])), len(values)*4)
	}
	return e.add(name, TypeInt32, raw, len(values))
}

func (e *Encoder) add(name string, typ Type, raw []byte, rows int) error {
	if len(name) == 0 || len(name) > 255 {
		return fmt.Errorf("wire: column name length must be 1..255, got %d", len(name))
	}
	if e.rows >= 0 && rows != e.rows {
		return fmt.Errorf("wire: column %q has %d rows, expected %d", name, rows, e.rows)
	}
	e.rows = rows

	// Copy so the caller may mutate its slice after appending.
	data := make([]byte, len(raw))
	copy(data, raw)

	e.cols = append(e.cols, encoderColumn{name: name, typ: typ, data: data})
	return nil
}

// Encode serializes the accumulated columns. Column payloads are placed at
// 8-byte aligned offsets.
func (e *Encoder) Encode() ([]byte, error) {
	rows := e.rows
	if rows < 0 {
		rows = 0
	}
	rowCount, err := conv.IntToUint32(rows)
	if err != nil {
		return nil, err
	}
	columnCount, err := conv.IntToUint16(len(e.cols))
	if err != nil {
		return nil, err
	}

	descSize := 0
	for _, c := range e.cols {
		descSize += descFixedSize + len(c.name)
	}

	// Layout: header, descriptors, aligned payloads.
	payloadStart := align8(headerSize + descSize)
	total := payloadStart
	offsets := make([]int, len(e.cols))
	for i, c := range e.cols {
		total = align8(total)
		offsets[i] = total
		total += len(c.data)
	}

	buf := make([]byte, total)
	byteOrder.PutUint32(buf[0:], MagicNumber)
	byteOrder.PutUint16(buf[4:], Version)
	byteOrder.PutUint32(buf[6:], rowCount)
	byteOrder.PutUint16(buf[10:], columnCount)

	pos := headerSize
	for i, c := range e.cols {
		buf[pos] = byte(c.typ)
		buf[pos+1] = byte(len(c.name))
		pos += 2
		pos += copy(buf[pos:], c.name)

		off, err := conv.IntToUint32(offsets[i])
		if err != nil {
			return nil, err
		}
		length, err := conv.IntToUint32(len(c.data))
		if err != nil {
			return nil, err
		}
		byteOrder.PutUint32(buf[pos:], off)
		byteOrder.PutUint32(buf[pos+4:], length)
		pos += 8

		copy(buf[offsets[i]:], c.data)
	}

	return buf, nil
}
