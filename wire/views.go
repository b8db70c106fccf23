package wire

import (
	"fmt"
	"unsafe"
)

// Typed views over a decoded buffer. The decoder places every column at an
// 8-byte aligned offset, so views are zero-copy; alignment is still
// validated before the unsafe conversion.

func columnBytes(buf []byte, col Column, typ Type) ([]byte, error) {
	if col.Type != typ {
		return nil, &FormatError{Reason: fmt.Sprintf("column %q is %s, not %s", col.Name, col.Type, typ)}
	}
	if int(col.Offset)+int(col.Length) > len(buf) {
		return nil, &FormatError{Reason: fmt.Sprintf("column %q out of buffer bounds", col.Name)}
	}
	if col.Length == 0 {
		return nil, nil
	}
	b := buf[col.Offset : col.Offset+col.Length]
	if uintptr(unsafe.Pointer(&b[0]))%uintptr(typ.Size()) != 0 {
		return nil, &FormatError{Reason: fmt.Sprintf("column %q is misaligned for %s access", col.Name, typ)}
	}
	return b, nil
}

// Float32Column returns a zero-copy float32 view of col within buf.
func Float32Column(buf []byte, col Column) ([]float32, error) {
	b, err := columnBytes(buf, col, TypeFloat32)
	if err != nil || b == nil {
		return nil, err
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), len(b)/4), nil
}

// Uint32Column returns a zero-copy uint32 view of col within buf.
func Uint32Column(buf []byte, col Column) ([]uint32, error) {
	b, err := columnBytes(buf, col, TypeUint32)
	if err != nil || b == nil {
		return nil, err
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&b[0])), len(b)/4), nil
}

// Uint64Column returns a zero-copy uint64 view of col within buf.
func Uint64Column(buf []byte, col Column) ([]uint64, error) {
	b, err := columnBytes(buf, col, TypeUint64)
	if err != nil || b == nil {
		return nil, err
	}
	return unsafe.Slice((*uint64)(unsafe.Pointer(&b[0])), len(b)/8), nil
}

// Int32Column returns a zero-copy int32 view of col within buf.
func Int32Column(buf []byte, col Column) ([]int32, error) {
	b, err := columnBytes(buf, col, TypeInt32)
	if err != nil || b == nil {
		return nil, err
	}
	return unsafe.Slice((*int32)(unsafe.Pointer(&b[0])), len(b)/4), nil
}

// Timestamps returns the TimestampColumn view of a decoded buffer.
func Timestamps(buf []byte, schema *Schema) ([]uint64, error) {
	col, ok := schema.Column(TimestampColumn)
	if !ok {
		return nil, &SchemaError{Column: TimestampColumn}
	}
	return Uint64Column(buf, col)
}
