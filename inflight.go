package tickgo

import "context"

// flight is one in-flight fetch with its attached waiters. waiters and
// resolved are guarded by the Manager's mutex; handle and err are written
// once before done is closed.
type flight struct {
	waiters  int
	resolved bool
	cancel   context.CancelFunc
	done     chan struct{}
	handle   *Handle
	err      error
}

func newFlight(cancel context.CancelFunc) *flight {
	return &flight{
		waiters: 1,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}
