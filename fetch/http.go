package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// HTTPSource fetches payloads from a tick data server over HTTP.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// HTTPOption configures an HTTPSource.
type HTTPOption func(*HTTPSource)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		s.client = client
	}
}

// NewHTTPSource creates a source against baseURL, e.g.
// "https://ticks.example.com". Queries are issued as
// GET {baseURL}/api/data?symbol=...&start=...&end=...
func NewHTTPSource(baseURL string, optFns ...HTTPOption) *HTTPSource {
	s := &HTTPSource{
		baseURL: baseURL,
		client:  http.DefaultClient,
	}
	for _, fn := range optFns {
		fn(s)
	}
	return s
}

// Fetch implements Source.
func (s *HTTPSource) Fetch(ctx context.Context, q Query) (Payload, error) {
	params := url.Values{
		"symbol": {q.Symbol},
		"start":  {strconv.FormatUint(q.Start, 10)},
		"end":    {strconv.FormatUint(q.End, 10)},
	}
	if q.Timeframe > 0 {
		params.Set("timeframe", strconv.FormatUint(q.Timeframe, 10))
	}
	u := fmt.Sprintf("%s/api/data?%s", s.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Payload{}, &NetworkError{Query: q, Err: err}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Payload{}, &NetworkError{Query: q, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Payload{}, &NetworkError{Query: q, StatusCode: resp.StatusCode, Err: ErrNotFound}
	case resp.StatusCode != http.StatusOK:
		return Payload{}, &NetworkError{Query: q, StatusCode: resp.StatusCode, Err: errors.New(resp.Status)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Payload{}, &NetworkError{Query: q, Err: err}
	}

	return NewPayload(data), nil
}
