package tickgo

import (
	"time"

	"github.com/hupe1980/tickgo/wire"
)

const (
	// DefaultMaxCacheBytes is the default resident cache budget.
	DefaultMaxCacheBytes = 256 << 20 // 256 MiB

	// DefaultTargetPointBudget is the default per-frame point budget used
	// by Stride.
	DefaultTargetPointBudget = 10_000
)

type options struct {
	maxCacheBytes     int64
	hardCap           bool
	ttl               time.Duration
	sweepInterval     time.Duration
	targetPointBudget int
	compression       wire.Compression
	autoCompression   bool
	prefetchAdjacent  bool
	memoryLimitBytes  int64
	fetchBytesPerSec  int64
	logger            *Logger
	metrics           MetricsObserver
}

// Option configures Manager constructor behavior.
type Option func(*options)

// WithMaxCacheBytes sets the resident cache byte budget. The budget is a
// soft limit: when every entry is pinned, insertion still succeeds and a
// pressure signal is raised. See WithHardCap for the strict variant.
func WithMaxCacheBytes(n int64) Option {
	return func(o *options) {
		o.maxCacheBytes = n
	}
}

// WithHardCap makes the cache budget strict: an insertion that cannot be
// brought under budget by evicting unpinned entries is rejected instead of
// exceeding the budget. Rejected results are still returned to callers;
// they are freed when their last reference is released.
func WithHardCap() Option {
	return func(o *options) {
		o.hardCap = true
	}
}

// WithTTL expires cache entries after d. Expired unpinned entries are
// dropped on access and by a periodic sweep (see WithSweepInterval).
func WithTTL(d time.Duration) Option {
	return func(o *options) {
		o.ttl = d
	}
}

// WithSweepInterval sets how often the TTL sweep runs. Only meaningful
// together with WithTTL; defaults to one minute.
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) {
		o.sweepInterval = d
	}
}

// WithTargetPointBudget sets the per-frame point budget used by
// Manager.Stride.
func WithTargetPointBudget(n int) Option {
	return func(o *options) {
		o.targetPointBudget = n
	}
}

// WithCompression declares the compression applied to fetched payloads.
func WithCompression(c wire.Compression) Option {
	return func(o *options) {
		o.compression = c
		o.autoCompression = false
	}
}

// WithAutoCompression detects the payload compression per message instead
// of assuming a fixed algorithm.
func WithAutoCompression() Option {
	return func(o *options) {
		o.autoCompression = true
	}
}

// WithPrefetchAdjacent fetches the time window following a missed request
// in the background, anticipating a pan in that direction. Off by default.
func WithPrefetchAdjacent() Option {
	return func(o *options) {
		o.prefetchAdjacent = true
	}
}

// WithMemoryLimit bounds total buffer pool memory. Acquisitions beyond the
// limit fail with an AllocationError. Zero means unlimited.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimitBytes = bytes
	}
}

// WithFetchRateLimit throttles fetched bytes per second across all
// sources. Zero means unlimited.
func WithFetchRateLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.fetchBytesPerSec = bytesPerSec
	}
}

// WithLogger sets the logger. Defaults to NoopLogger.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetricsObserver sets the metrics observer. Defaults to a no-op.
func WithMetricsObserver(m MetricsObserver) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}
