// Package fetch defines the external fetch collaborator: sources that
// resolve a tick data query to raw wire-format bytes. Retry and backoff
// policy belong to callers; a source reports failures and nothing more.
package fetch

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a source has no data for the query.
//
// Implementations return errors satisfying errors.Is(err, ErrNotFound).
var ErrNotFound = errors.New("fetch: not found")

// Query identifies the data to fetch. Column selection is applied by the
// decoder, not the source; a source serves whole messages.
type Query struct {
	Symbol string
	Start  uint64
	End    uint64

	// Timeframe requests server-side candle aggregation at this bucket
	// duration. Zero means raw ticks.
	Timeframe uint64
}

// Key returns the canonical object name for the query, used by file and
// object-store sources. Timestamps are zero-padded so lexicographic order
// matches time order.
func (q Query) Key() string {
	if q.Timeframe > 0 {
		return fmt.Sprintf("%s/%020d-%020d-tf%d.tick", q.Symbol, q.Start, q.End, q.Timeframe)
	}
	return fmt.Sprintf("%s/%020d-%020d.tick", q.Symbol, q.Start, q.End)
}

// Payload carries fetched bytes. Data is valid until Close; sources backed
// by memory-mapped files rely on this to stay zero-copy.
type Payload struct {
	Data   []byte
	closer func() error
}

// NewPayload wraps a heap-allocated byte slice.
func NewPayload(data []byte) Payload {
	return Payload{Data: data}
}

// NewPayloadWithCloser wraps bytes whose lifetime is bound to a resource.
func NewPayloadWithCloser(data []byte, closer func() error) Payload {
	return Payload{Data: data, closer: closer}
}

// Close releases the payload's backing resource, if any.
func (p Payload) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}

// Source resolves queries to raw payloads. Implementations must honor ctx
// cancellation; a per-fetch timeout is the source's concern and surfaces
// as a *NetworkError like any other failure.
type Source interface {
	Fetch(ctx context.Context, q Query) (Payload, error)
}

// NetworkError wraps any failure on the fetch path. Retryable by the
// caller; never auto-retried here.
type NetworkError struct {
	Query      Query
	StatusCode int // 0 when no HTTP status applies
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.Query.Key(), e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Query.Key(), e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
