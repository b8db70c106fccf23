// Package resource tracks global budgets shared by the buffer pool and the
// fetch path: resident memory and fetch throughput.
package resource

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned when a reservation would exceed the
// configured resident-memory limit.
var ErrMemoryLimitExceeded = errors.New("resource: memory limit exceeded")

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes is the hard limit for resident buffer memory.
	// If 0, no hard limit is enforced (only tracking).
	MemoryLimitBytes int64

	// FetchLimitBytesPerSec throttles bytes handed to the decoder from the
	// fetch path. If 0, unlimited.
	FetchLimitBytesPerSec int64
}

// Controller manages global resources. A nil *Controller is valid and
// enforces nothing, so callers never need to branch.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	fetchLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}
	if cfg.FetchLimitBytesPerSec > 0 {
		c.fetchLimiter = rate.NewLimiter(rate.Limit(cfg.FetchLimitBytesPerSec), int(cfg.FetchLimitBytesPerSec))
	}

	return c
}

// AcquireMemory attempts to reserve memory for a resident buffer.
// Returns ErrMemoryLimitExceeded if the limit would be exceeded.
// Non-blocking - callers control retry/eviction policy.
func (c *Controller) AcquireMemory(bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.memSem != nil {
		if !c.memSem.TryAcquire(bytes) {
			return ErrMemoryLimitExceeded
		}
	}

	c.memUsed.Add(bytes)
	return nil
}

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the current reserved memory in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit returns the configured memory limit in bytes (0 if unlimited).
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// WaitFetch blocks until the fetch throughput limit allows bytes to pass.
func (c *Controller) WaitFetch(ctx context.Context, bytes int) error {
	if c == nil || c.fetchLimiter == nil {
		return nil
	}
	// WaitN rejects n > burst outright; split oversized payloads.
	burst := c.fetchLimiter.Burst()
	for bytes > 0 {
		n := bytes
		if n > burst {
			n = burst
		}
		if err := c.fetchLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}

// AllowFetch reports whether bytes may pass without blocking.
func (c *Controller) AllowFetch(bytes int) bool {
	if c == nil || c.fetchLimiter == nil {
		return true
	}
	return c.fetchLimiter.AllowN(time.Now(), bytes)
}
