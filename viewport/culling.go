// Package viewport provides the pure per-frame query kernels: visible-range
// culling over a sorted timestamp column, and level-of-detail stride
// selection. Everything here is lock-free and allocation-free (except
// DecimateIndices) so a render loop can call it every frame.
package viewport

import "cmp"

// Range is a half-open index range [Start, End) into a timestamp column.
// End >= Start always; Start == End means nothing is visible.
type Range struct {
	Start int
	End   int
}

// Len returns the number of indices in the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// Empty reports whether the range contains no indices.
func (r Range) Empty() bool {
	return r.End <= r.Start
}

// VisibleRange returns the index range of timestamps falling within
// [start, end], in O(log N). timestamps must be sorted ascending; the
// decoder enforces this at ingest.
//
// Range.Start is the first index with timestamps[i] >= start, Range.End the
// first index with timestamps[j] > end, so duplicates at either boundary
// are included consistently. An inverted viewport (start > end) yields an
// empty range: transient inversions occur during interactive drag and are
// not errors.
func VisibleRange[T cmp.Ordered](timestamps []T, start, end T) Range {
	if len(timestamps) == 0 || start > end {
		return Range{}
	}
	lo := lowerBound(timestamps, start)
	hi := upperBound(timestamps, end)
	if hi < lo {
		hi = lo
	}
	return Range{Start: lo, End: hi}
}

// PaddedRange is VisibleRange extended by one index on each side when
// available, so a polyline entering or leaving the viewport keeps its
// continuity segments during pan.
func PaddedRange[T cmp.Ordered](timestamps []T, start, end T) Range {
	r := VisibleRange(timestamps, start, end)
	if len(timestamps) == 0 || start > end {
		return r
	}
	if r.Start > 0 {
		r.Start--
	}
	if r.End < len(timestamps) {
		r.End++
	}
	return r
}

// lowerBound returns the first index i with s[i] >= v, or len(s).
func lowerBound[T cmp.Ordered](s []T, v T) int {
	lo, hi := 0, len(s)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if s[mid] < v {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// upperBound returns the first index i with s[i] > v, or len(s).
func upperBound[T cmp.Ordered](s []T, v T) int {
	lo, hi := 0, len(s)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if s[mid] <= v {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
