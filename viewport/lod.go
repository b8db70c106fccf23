package viewport

// Stride returns the uniform decimation stride for rendering visibleCount
// points within targetBudget: max(1, visibleCount/targetBudget). Pure and
// deterministic, so repeated frames with an unchanged viewport render
// identically.
func Stride(visibleCount, targetBudget int) int {
	if targetBudget <= 0 {
		return 1
	}
	s := visibleCount / targetBudget
	if s < 1 {
		return 1
	}
	return s
}

// Level is a coarse level-of-detail class derived from zoom and point
// count. Stride remains the baseline selector; levels add hysteresis-free
// buckets for renderers that switch data sources per level.
type Level uint8

const (
	// LevelFull renders every point.
	LevelFull Level = iota
	// LevelModerate decimates toward the full-detail point limit.
	LevelModerate
	// LevelAggressive decimates hard for far zoom.
	LevelAggressive
	// LevelAggregated signals pre-aggregated data should be used instead
	// of decimation.
	LevelAggregated
)

func (l Level) String() string {
	switch l {
	case LevelFull:
		return "full"
	case LevelModerate:
		return "moderate"
	case LevelAggressive:
		return "aggressive"
	case LevelAggregated:
		return "aggregated"
	default:
		return "unknown"
	}
}

// LODConfig holds the thresholds for level selection.
type LODConfig struct {
	// MaxFullDetailPoints is the point count always rendered at full
	// detail regardless of zoom.
	MaxFullDetailPoints int
	// ModerateZoomThreshold is the zoom level below which aggressive
	// reduction starts.
	ModerateZoomThreshold float64
	// AggressiveZoomThreshold is the zoom level below which pre-aggregated
	// data is preferred.
	AggressiveZoomThreshold float64
}

// DefaultLODConfig returns the stock thresholds.
func DefaultLODConfig() LODConfig {
	return LODConfig{
		MaxFullDetailPoints:     100_000,
		ModerateZoomThreshold:   0.5,
		AggressiveZoomThreshold: 0.1,
	}
}

// SelectLevel picks a level from the zoom factor (1.0 = fully zoomed in)
// and the visible point count.
func (c LODConfig) SelectLevel(zoom float64, pointCount int) Level {
	if pointCount <= c.MaxFullDetailPoints {
		return LevelFull
	}
	switch {
	case zoom < c.AggressiveZoomThreshold:
		return LevelAggregated
	case zoom < c.ModerateZoomThreshold:
		return LevelAggressive
	case pointCount > c.MaxFullDetailPoints*10:
		return LevelModerate
	default:
		return LevelFull
	}
}

// DecimationFactor returns the stride implied by a level for pointCount
// points. LevelAggregated returns 1: the renderer switches data, not
// stride.
func (c LODConfig) DecimationFactor(l Level, pointCount int) int {
	switch l {
	case LevelModerate:
		f := pointCount / c.MaxFullDetailPoints
		if f < 2 {
			f = 2
		}
		return f
	case LevelAggressive:
		f := pointCount / 10_000
		if f < 4 {
			f = 4
		}
		return f
	default:
		return 1
	}
}

// DecimateIndices returns every factor-th index of the half-open range r.
// A factor below 1 is treated as 1. The only allocating function in this
// package; per-frame callers should iterate with the stride directly.
func DecimateIndices(r Range, factor int) []int {
	if r.Empty() {
		return nil
	}
	if factor < 1 {
		factor = 1
	}
	out := make([]int, 0, (r.Len()+factor-1)/factor)
	for i := r.Start; i < r.End; i += factor {
		out = append(out, i)
	}
	return out
}
