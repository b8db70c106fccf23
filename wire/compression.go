package wire

import (
	"errors"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the optional payload compression applied between the
// fetch collaborator and the decoder.
type Compression uint8

const (
	// CompressionNone passes payloads through untouched.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast, hot data).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses ZSTD block compression (better ratio).
	CompressionZSTD Compression = 2
)

// Frame layout: [UncompressedSize uint32][CompressedSize uint32][Data...].
// CompressedSize == 0 means the data is stored raw.
const frameHeaderSize = 8

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Compress frames and compresses data. Incompressible payloads (ratio above
// 0.9) are framed raw so decompression stays symmetric. CompressionNone
// returns data unframed.
func Compress(data []byte, c Compression) ([]byte, error) {
	if c == CompressionNone {
		return data, nil
	}

	var compressed []byte
	switch c {
	case CompressionLZ4:
		bound := lz4.CompressBlockBound(len(data))
		buf := make([]byte, bound)
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		compressed = buf[:n] // n == 0 means incompressible
	case CompressionZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, errors.New("wire: unknown compression type")
	}

	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		out := make([]byte, frameHeaderSize+len(data))
		byteOrder.PutUint32(out[0:], uint32(len(data)))
		byteOrder.PutUint32(out[4:], 0)
		copy(out[frameHeaderSize:], data)
		return out, nil
	}

	out := make([]byte, frameHeaderSize+len(compressed))
	byteOrder.PutUint32(out[0:], uint32(len(data)))
	byteOrder.PutUint32(out[4:], uint32(len(compressed)))
	copy(out[frameHeaderSize:], compressed)
	return out, nil
}

// Decompress reverses Compress for the given algorithm. CompressionNone
// returns data unchanged.
func Decompress(data []byte, c Compression) ([]byte, error) {
	if c == CompressionNone {
		return data, nil
	}
	if len(data) < frameHeaderSize {
		return nil, errors.New("wire: frame too small for header")
	}

	uncompressedSize := byteOrder.Uint32(data[0:])
	compressedSize := byteOrder.Uint32(data[4:])

	if compressedSize == 0 {
		if uint32(len(data)) < frameHeaderSize+uncompressedSize {
			return nil, errors.New("wire: raw frame data too small")
		}
		return data[frameHeaderSize : frameHeaderSize+uncompressedSize], nil
	}

	if uint32(len(data)) < frameHeaderSize+compressedSize {
		return nil, errors.New("wire: compressed frame data too small")
	}
	payload := data[frameHeaderSize : frameHeaderSize+compressedSize]
	result := make([]byte, uncompressedSize)

	switch c {
	case CompressionLZ4:
		n, err := lz4.UncompressBlock(payload, result)
		if err != nil {
			return nil, err
		}
		if uint32(n) != uncompressedSize {
			return nil, errors.New("wire: decompressed size mismatch")
		}
		return result, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		decoded, err := dec.DecodeAll(payload, result[:0])
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, err
		}
		if uint32(len(decoded)) != uncompressedSize {
			return nil, errors.New("wire: decompressed size mismatch")
		}
		return decoded, nil
	default:
		return nil, errors.New("wire: unknown compression type")
	}
}

// zstd frames start with this magic value.
const zstdMagic = 0xFD2FB528

// DecompressAuto decompresses a frame, detecting the algorithm from the
// compressed payload. Useful when the producer's choice is not known.
func DecompressAuto(data []byte) ([]byte, error) {
	if len(data) < frameHeaderSize {
		return nil, errors.New("wire: frame too small for header")
	}
	if byteOrder.Uint32(data[4:]) == 0 {
		return Decompress(data, CompressionLZ4) // raw frame, algorithm moot
	}
	if len(data) >= frameHeaderSize+4 && byteOrder.Uint32(data[frameHeaderSize:]) == zstdMagic {
		return Decompress(data, CompressionZSTD)
	}
	return Decompress(data, CompressionLZ4)
}
