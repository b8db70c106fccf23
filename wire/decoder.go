package wire

import "fmt"

// parse validates the header and descriptors of a message and returns the
// schema in source coordinates (offsets into data).
func parse(data []byte) (*Schema, error) {
	if len(data) < headerSize {
		return nil, &TruncatedError{Declared: headerSize, Actual: len(data)}
	}

	magic := byteOrder.Uint32(data[0:])
	if magic != MagicNumber {
		return nil, &FormatError{Reason: fmt.Sprintf("bad magic 0x%08x", magic)}
	}
	version := byteOrder.Uint16(data[4:])
	if version != Version {
		return nil, &FormatError{Reason: fmt.Sprintf("unsupported version 0x%04x", version)}
	}
	rowCount := byteOrder.Uint32(data[6:])
	columnCount := byteOrder.Uint16(data[10:])

	schema := &Schema{
		RowCount: rowCount,
		Columns:  make([]Column, 0, columnCount),
	}

	pos := headerSize
	for i := 0; i < int(columnCount); i++ {
		if pos+2 > len(data) {
			return nil, &TruncatedError{Declared: pos + 2, Actual: len(data)}
		}
		typ := Type(data[pos])
		nameLen := int(data[pos+1])
		pos += 2

		if typ.Size() == 0 {
			return nil, &FormatError{Reason: fmt.Sprintf("unknown type tag %d", typ)}
		}
		if pos+nameLen+8 > len(data) {
			return nil, &TruncatedError{Declared: pos + nameLen + 8, Actual: len(data)}
		}
		name := string(data[pos : pos+nameLen])
		pos += nameLen

		offset := byteOrder.Uint32(data[pos:])
		length := byteOrder.Uint32(data[pos+4:])
		pos += 8

		if int(length) != int(rowCount)*typ.Size() {
			return nil, &FormatError{
				Reason: fmt.Sprintf("column %q: length %d does not match %d rows of %s", name, length, rowCount, typ),
			}
		}
		if int(offset)+int(length) > len(data) {
			return nil, &TruncatedError{Declared: int(offset) + int(length), Actual: len(data)}
		}

		schema.Columns = append(schema.Columns, Column{
			Name:   name,
			Type:   typ,
			Offset: offset,
			Length: length,
		})
	}

	return schema, nil
}

// Measure validates data and returns the target buffer size Decode needs,
// accounting for alignment padding between columns.
func Measure(data []byte) (int, error) {
	schema, err := parse(data)
	if err != nil {
		return 0, err
	}
	var size int
	for _, c := range schema.Columns {
		size = align8(size) + int(c.Length)
	}
	return size, nil
}

// Decode validates data and copies every column payload into dst, each at
// an 8-byte aligned offset. dst must be at least Measure(data) bytes; the
// caller allocates it (typically from a buffer pool). want, if non-empty,
// lists column names that must be present. The returned schema describes
// the layout of dst, not of data.
//
// A message carrying a TimestampColumn is rejected unless that column is
// non-decreasing, since downstream visibility queries binary-search it.
func Decode(data []byte, dst []byte, want []string) (*Schema, error) {
	src, err := parse(data)
	if err != nil {
		return nil, err
	}

	for _, name := range want {
		if _, ok := src.Column(name); !ok {
			return nil, &SchemaError{Column: name}
		}
	}

	if ts, ok := src.Column(TimestampColumn); ok {
		if ts.Type != TypeUint64 {
			return nil, &FormatError{Reason: fmt.Sprintf("column %q must be uint64, got %s", TimestampColumn, ts.Type)}
		}
		if err := checkSorted(data, ts); err != nil {
			return nil, err
		}
	}

	out := &Schema{
		RowCount: src.RowCount,
		Columns:  make([]Column, len(src.Columns)),
	}

	var pos int
	for i, c := range src.Columns {
		pos = align8(pos)
		if pos+int(c.Length) > len(dst) {
			return nil, &FormatError{
				Reason: fmt.Sprintf("target buffer too small: need %d bytes, have %d", pos+int(c.Length), len(dst)),
			}
		}
		copy(dst[pos:pos+int(c.Length)], data[c.Offset:c.Offset+c.Length])
		out.Columns[i] = Column{
			Name:   c.Name,
			Type:   c.Type,
			Offset: uint32(pos),
			Length: c.Length,
		}
		pos += int(c.Length)
	}

	return out, nil
}

// checkSorted verifies the timestamp column in source coordinates is
// non-decreasing. Reads through the byte order since data may be unaligned.
func checkSorted(data []byte, ts Column) error {
	rows := ts.Rows()
	if rows < 2 {
		return nil
	}
	prev := byteOrder.Uint64(data[ts.Offset:])
	for i := 1; i < rows; i++ {
		cur := byteOrder.Uint64(data[int(ts.Offset)+i*8:])
		if cur < prev {
			return &FormatError{
				Reason: fmt.Sprintf("column %q not sorted: row %d (%d) < row %d (%d)", TimestampColumn, i, cur, i-1, prev),
			}
		}
		prev = cur
	}
	return nil
}
