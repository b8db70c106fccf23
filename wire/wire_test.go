package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeTicks(t *testing.T, times []uint64, prices []float32, volumes []uint32) []byte {
	t.Helper()
	enc := NewEncoder()
	require.NoError(t, enc.Uint64(TimestampColumn, times))
	require.NoError(t, enc.Float32("price", prices))
	require.NoError(t, enc.Uint32("volume", volumes))
	data, err := enc.Encode()
	require.NoError(t, err)
	return data
}

func TestDecodeRoundTrip(t *testing.T) {
	times := []uint64{100, 200, 300, 400}
	prices := []float32{1.5, 2.5, 3.5, 4.5}
	volumes := []uint32{10, 20, 30, 40}
	data := encodeTicks(t, times, prices, volumes)

	size, err := Measure(data)
	require.NoError(t, err)
	dst := make([]byte, size)

	schema, err := Decode(data, dst, []string{TimestampColumn, "price"})
	require.NoError(t, err)
	assert.Equal(t, uint32(4), schema.RowCount)
	require.Len(t, schema.Columns, 3)
	assert.Equal(t, size, schema.ByteSize())

	for _, c := range schema.Columns {
		assert.Zero(t, c.Offset%8, "column %q offset %d not 8-byte aligned", c.Name, c.Offset)
	}

	ts, err := Timestamps(dst, schema)
	require.NoError(t, err)
	assert.Equal(t, times, ts)

	priceCol, ok := schema.Column("price")
	require.True(t, ok)
	gotPrices, err := Float32Column(dst, priceCol)
	require.NoError(t, err)
	assert.Equal(t, prices, gotPrices)

	volCol, ok := schema.Column("volume")
	require.True(t, ok)
	gotVolumes, err := Uint32Column(dst, volCol)
	require.NoError(t, err)
	assert.Equal(t, volumes, gotVolumes)
}

func TestDecodeBadMagic(t *testing.T) {
	data := encodeTicks(t, []uint64{1}, []float32{1}, []uint32{1})
	data[0] ^= 0xFF

	_, err := Decode(data, make([]byte, 64), nil)
	var formatErr *FormatError
	require.ErrorAs(t, err, &formatErr)
}

func TestDecodeBadVersion(t *testing.T) {
	data := encodeTicks(t, []uint64{1}, []float32{1}, []uint32{1})
	byteOrder.PutUint16(data[4:], 0x7FFF)

	_, err := Decode(data, make([]byte, 64), nil)
	var formatErr *FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Contains(t, err.Error(), "version")
}

func TestDecodeUnknownTypeTag(t *testing.T) {
	data := encodeTicks(t, []uint64{1}, []float32{1}, []uint32{1})
	data[headerSize] = 0xEE // first descriptor's type tag

	_, err := Decode(data, make([]byte, 64), nil)
	var formatErr *FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Contains(t, err.Error(), "type tag")
}

func TestDecodeTruncated(t *testing.T) {
	data := encodeTicks(t, []uint64{1, 2, 3}, []float32{1, 2, 3}, []uint32{1, 2, 3})

	_, err := Decode(data[:len(data)-4], make([]byte, 128), nil)
	var truncErr *TruncatedError
	require.ErrorAs(t, err, &truncErr)

	_, err = Decode(data[:headerSize+1], make([]byte, 128), nil)
	require.ErrorAs(t, err, &truncErr)
}

func TestDecodeMissingColumn(t *testing.T) {
	data := encodeTicks(t, []uint64{1}, []float32{1}, []uint32{1})

	_, err := Decode(data, make([]byte, 64), []string{"bid"})
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "bid", schemaErr.Column)
}

func TestDecodeRejectsUnsortedTimestamps(t *testing.T) {
	enc := NewEncoder()
	require.NoError(t, enc.Uint64(TimestampColumn, []uint64{100, 50, 200}))
	data, err := enc.Encode()
	require.NoError(t, err)

	_, err = Decode(data, make([]byte, 64), nil)
	var formatErr *FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Contains(t, err.Error(), "not sorted")
}

func TestDecodeDuplicateTimestampsAllowed(t *testing.T) {
	enc := NewEncoder()
	require.NoError(t, enc.Uint64(TimestampColumn, []uint64{10, 20, 20, 30}))
	data, err := enc.Encode()
	require.NoError(t, err)

	size, err := Measure(data)
	require.NoError(t, err)
	_, err = Decode(data, make([]byte, size), nil)
	require.NoError(t, err)
}

func TestDecodeTargetTooSmall(t *testing.T) {
	data := encodeTicks(t, []uint64{1, 2}, []float32{1, 2}, []uint32{1, 2})

	_, err := Decode(data, make([]byte, 8), nil)
	var formatErr *FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Contains(t, err.Error(), "target buffer too small")
}

func TestEncoderRowMismatch(t *testing.T) {
	enc := NewEncoder()
	require.NoError(t, enc.Uint64(TimestampColumn, []uint64{1, 2, 3}))
	err := enc.Float32("price", []float32{1})
	require.Error(t, err)
}

func TestEncoderEmpty(t *testing.T) {
	enc := NewEncoder()
	data, err := enc.Encode()
	require.NoError(t, err)

	size, err := Measure(data)
	require.NoError(t, err)
	assert.Equal(t, 0, size)
}

func TestViewTypeMismatch(t *testing.T) {
	data := encodeTicks(t, []uint64{1}, []float32{1}, []uint32{1})
	size, err := Measure(data)
	require.NoError(t, err)
	dst := make([]byte, size)
	schema, err := Decode(data, dst, nil)
	require.NoError(t, err)

	priceCol, _ := schema.Column("price")
	_, err = Uint64Column(dst, priceCol)
	var formatErr *FormatError
	require.ErrorAs(t, err, &formatErr)
}

func TestCompressionRoundTrip(t *testing.T) {
	// Repetitive payload so both algorithms beat the 0.9 ratio gate.
	payload := make([]byte, 4096)
	for i := range payload {
		payload[i] = byte(i % 16)
	}

	for _, c := range []Compression{CompressionLZ4, CompressionZSTD} {
		framed, err := Compress(payload, c)
		require.NoError(t, err)
		assert.Less(t, len(framed), len(payload))

		got, err := Decompress(framed, c)
		require.NoError(t, err)
		assert.Equal(t, payload, got)

		got, err = DecompressAuto(framed)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	}
}

func TestCompressionNone(t *testing.T) {
	payload := []byte("hello")
	framed, err := Compress(payload, CompressionNone)
	require.NoError(t, err)
	assert.Equal(t, payload, framed)

	got, err := Decompress(framed, CompressionNone)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestCompressionIncompressibleStoredRaw(t *testing.T) {
	// Tiny high-entropy payload; LZ4 cannot compress it.
	payload := []byte{0x01, 0xA7, 0x3F, 0xE2, 0x9B, 0x44, 0xD0, 0x5C}

	framed, err := Compress(payload, CompressionLZ4)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), byteOrder.Uint32(framed[4:]), "expected raw frame")

	got, err := Decompress(framed, CompressionLZ4)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	got, err = DecompressAuto(framed)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}
