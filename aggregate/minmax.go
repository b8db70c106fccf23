package aggregate

// MinMaxPoint is the extreme pair of one decimation bucket, in index
// order so a polyline through the points preserves the series shape.
type MinMaxPoint struct {
	FirstIndex  int // index of the earlier extreme within the bucket
	SecondIndex int // index of the later extreme (equal for 1-point buckets)
}

// MinMax decimates a value series into buckets of pointsPerBucket,
// keeping the minimum and maximum of each bucket. Unlike uniform striding
// this never drops a spike, which matters for price series. Returns nil
// when no decimation is needed.
func MinMax(values []float32, pointsPerBucket int) []MinMaxPoint {
	if pointsPerBucket <= 1 || len(values) <= pointsPerBucket {
		return nil
	}

	out := make([]MinMaxPoint, 0, len(values)/pointsPerBucket+1)

	for start := 0; start < len(values); start += pointsPerBucket {
		end := start + pointsPerBucket
		if end > len(values) {
			end = len(values)
		}

		minIdx, maxIdx := start, start
		for i := start + 1; i < end; i++ {
			if values[i] < values[minIdx] {
				minIdx = i
			}
			if values[i] > values[maxIdx] {
				maxIdx = i
			}
		}

		p := MinMaxPoint{FirstIndex: minIdx, SecondIndex: maxIdx}
		if maxIdx < minIdx {
			p.FirstIndex, p.SecondIndex = maxIdx, minIdx
		}
		out = append(out, p)
	}

	return out
}
