package tickgo

import (
	"encoding/binary"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/hupe1980/tickgo/fetch"
)

// Request identifies a logical query. Two requests describing the same
// data always produce the same fingerprint, regardless of column order.
type Request struct {
	// Symbol is the instrument identifier, e.g. "BTC-USD".
	Symbol string

	// Start and End bound the time range, inclusive, in the series'
	// native timestamp unit.
	Start uint64
	End   uint64

	// Columns lists the columns the caller needs. The decoder fails with
	// a SchemaError when one is absent from the payload. Empty means all.
	Columns []string

	// Timeframe requests candle aggregation at this bucket duration.
	// Zero means raw ticks.
	Timeframe uint64
}

// Fingerprint returns the deterministic 64-bit identity of the request.
// The column set is hashed in sorted order so logically identical requests
// coalesce and share cache entries.
func (r Request) Fingerprint() uint64 {
	d := xxhash.New()

	_, _ = d.WriteString(r.Symbol)
	_, _ = d.Write([]byte{0})

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], r.Start)
	_, _ = d.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], r.End)
	_, _ = d.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], r.Timeframe)
	_, _ = d.Write(buf[:])

	if len(r.Columns) > 0 {
		cols := make([]string, len(r.Columns))
		copy(cols, r.Columns)
		sort.Strings(cols)
		for _, c := range cols {
			_, _ = d.WriteString(c)
			_, _ = d.Write([]byte{0})
		}
	}

	return d.Sum64()
}

// query maps the request onto the fetch collaborator's vocabulary.
func (r Request) query() fetch.Query {
	return fetch.Query{Symbol: r.Symbol, Start: r.Start, End: r.End, Timeframe: r.Timeframe}
}
