package tickgo

import (
	"errors"

	"github.com/hupe1980/tickgo/buffer"
	"github.com/hupe1980/tickgo/fetch"
	"github.com/hupe1980/tickgo/wire"
)

// ErrClosed is returned by operations on a closed Manager.
var ErrClosed = errors.New("tickgo: manager closed")

// The error taxonomy callers branch on. Fetch failures are retryable by
// the caller; format, truncation, schema and allocation failures are fatal
// for the specific request and never poison the fingerprint - a later
// FetchOrGet retries from scratch.
type (
	// NetworkError wraps any failure on the fetch path.
	NetworkError = fetch.NetworkError

	// FormatError indicates a malformed payload, including an unsorted
	// timestamp column.
	FormatError = wire.FormatError

	// TruncatedError indicates declared lengths exceed the payload.
	TruncatedError = wire.TruncatedError

	// SchemaError indicates a requested column is absent.
	SchemaError = wire.SchemaError

	// AllocationError indicates the buffer pool could not satisfy the
	// decode target.
	AllocationError = buffer.AllocationError
)
