// Package aggregate buckets tick series into candle and min/max form for
// rendering at coarse zoom levels. All functions are pure and operate on
// the decoded column views.
package aggregate

import "errors"

// ErrLengthMismatch is returned when the timestamp and value columns
// disagree in length.
var ErrLengthMismatch = errors.New("aggregate: timestamps and values differ in length")

// Candle is one OHLC bucket.
type Candle struct {
	BucketStart uint64 // inclusive start of the bucket, bucket-aligned
	Open        float32
	High        float32
	Low         float32
	Close       float32
	Volume      uint64
	Count       int // ticks folded into the candle
}

// OHLC buckets a tick series into candles of timeframe duration (same unit
// as the timestamps). volumes may be nil. timestamps must be sorted
// ascending; buckets with no ticks produce no candle.
func OHLC(timestamps []uint64, prices []float32, volumes []uint32, timeframe uint64) ([]Candle, error) {
	if len(timestamps) != len(prices) {
		return nil, ErrLengthMismatch
	}
	if volumes != nil && len(volumes) != len(timestamps) {
		return nil, ErrLengthMismatch
	}
	if timeframe == 0 || len(timestamps) == 0 {
		return nil, nil
	}

	out := make([]Candle, 0, 16)

	var cur Candle
	curBucket := uint64(0)
	open := false

	for i, ts := range timestamps {
		bucket := ts - ts%timeframe
		p := prices[i]

		if !open || bucket != curBucket {
			if open {
				out = append(out, cur)
			}
			cur = Candle{
				BucketStart: bucket,
				Open:        p,
				High:        p,
				Low:         p,
				Close:       p,
				Count:       1,
			}
			curBucket = bucket
			open = true
		} else {
			if p > cur.High {
				cur.High = p
			}
			if p < cur.Low {
				cur.Low = p
			}
			cur.Close = p
			cur.Count++
		}
		if volumes != nil {
			cur.Volume += uint64(volumes[i])
		}
	}
	if open {
		out = append(out, cur)
	}

	return out, nil
}
