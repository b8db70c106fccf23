// Package wire implements the binary column format produced by the tick
// data server: a fixed header, per-column descriptors and raw little-endian
// column payloads. The decoder copies payload bytes exactly once, into a
// caller-supplied buffer.
package wire

import "encoding/binary"

const (
	// MagicNumber identifies tick data messages (ASCII: "TCK1").
	MagicNumber = 0x54434B31
	// Version is the current wire format version.
	Version = 0x0001

	// TimestampColumn is the conventional name of the sorted uint64
	// timestamp column. When present it must be non-decreasing; the
	// decoder rejects messages that violate this.
	TimestampColumn = "time"

	headerSize    = 12 // magic u32 + version u16 + row_count u32 + column_count u16
	descFixedSize = 10 // type_tag u8 + name_length u8 + offset u32 + length u32
)

var byteOrder = binary.LittleEndian

// Type enumerates the fixed-width column element kinds.
type Type uint8

const (
	TypeFloat32 Type = 1
	TypeUint32  Type = 2
	TypeUint64  Type = 3
	TypeInt32   Type = 4
)

// Size returns the element width in bytes, or 0 for an unknown type.
func (t Type) Size() int {
	switch t {
	case TypeFloat32, TypeUint32, TypeInt32:
		return 4
	case TypeUint64:
		return 8
	default:
		return 0
	}
}

func (t Type) String() string {
	switch t {
	case TypeFloat32:
		return "float32"
	case TypeUint32:
		return "uint32"
	case TypeUint64:
		return "uint64"
	case TypeInt32:
		return "int32"
	default:
		return "unknown"
	}
}

// Column describes one decoded column. Offset and Length are byte positions
// within the decode target buffer; Offset is always 8-byte aligned so typed
// views can be taken without copying.
type Column struct {
	Name   string
	Type   Type
	Offset uint32
	Length uint32
}

// Rows returns the number of elements in the column.
func (c Column) Rows() int {
	if s := c.Type.Size(); s > 0 {
		return int(c.Length) / s
	}
	return 0
}

// Schema describes the layout of a decoded buffer.
type Schema struct {
	RowCount uint32
	Columns  []Column
}

// Column returns the named column.
func (s *Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ByteSize returns the total target buffer size the schema occupies,
// including alignment padding.
func (s *Schema) ByteSize() int {
	var end int
	for _, c := range s.Columns {
		if e := int(c.Offset) + int(c.Length); e > end {
			end = e
		}
	}
	return end
}

// align8 rounds n up to the next multiple of 8.
func align8(n int) int {
	return (n + 7) &^ 7
}
