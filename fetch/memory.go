package fetch

import (
	"context"
	"sync"
)

// MemorySource serves payloads from an in-memory map. Useful for tests and
// for pre-baked datasets shipped with an application.
type MemorySource struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemorySource creates an empty in-memory source.
func NewMemorySource() *MemorySource {
	return &MemorySource{data: make(map[string][]byte)}
}

// Put stores a payload for the query.
func (s *MemorySource) Put(q Query, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[q.Key()] = payload
}

// Fetch implements Source.
func (s *MemorySource) Fetch(ctx context.Context, q Query) (Payload, error) {
	if err := ctx.Err(); err != nil {
		return Payload{}, &NetworkError{Query: q, Err: err}
	}

	s.mu.RLock()
	payload, ok := s.data[q.Key()]
	s.mu.RUnlock()

	if !ok {
		return Payload{}, &NetworkError{Query: q, Err: ErrNotFound}
	}
	return NewPayload(payload), nil
}
