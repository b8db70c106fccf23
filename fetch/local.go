package fetch

import (
	"context"
	"os"
	"path/filepath"

	"github.com/hupe1980/tickgo/internal/mmap"
)

// LocalSource serves payloads from wire-format files under a root
// directory, laid out by Query.Key. Files are memory-mapped; the payload
// stays zero-copy until the decoder's single copy into pooled memory.
type LocalSource struct {
	root string
}

// NewLocalSource creates a source over the given directory.
func NewLocalSource(root string) *LocalSource {
	return &LocalSource{root: root}
}

// Fetch implements Source.
func (s *LocalSource) Fetch(ctx context.Context, q Query) (Payload, error) {
	if err := ctx.Err(); err != nil {
		return Payload{}, &NetworkError{Query: q, Err: err}
	}

	path := filepath.Join(s.root, filepath.FromSlash(q.Key()))
	m, err := mmap.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Payload{}, &NetworkError{Query: q, Err: ErrNotFound}
		}
		return Payload{}, &NetworkError{Query: q, Err: err}
	}

	return NewPayloadWithCloser(m.Bytes(), m.Close), nil
}
