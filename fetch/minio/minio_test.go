package minio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tickgo/fetch"
)

func TestSource_FetchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client, err := NewClient(strings.TrimPrefix(srv.URL, "http://"),
		WithCredentials("access", "secret"),
		WithInsecure(),
	)
	require.NoError(t, err)

	src := NewSource(client, "ticks", "prod/")
	_, err = src.Fetch(context.Background(), fetch.Query{Symbol: "missing"})

	var netErr *fetch.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.ErrorIs(t, err, fetch.ErrNotFound)
}

func TestSource_Fetch(t *testing.T) {
	content := "wire bytes"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/ticks/prod/BTC-USD/")
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		w.Header().Set("ETag", `"abc123"`)
		w.Header().Set("Content-Length", "10")
		_, _ = w.Write([]byte(content))
	}))
	defer srv.Close()

	client, err := NewClient(strings.TrimPrefix(srv.URL, "http://"),
		WithCredentials("access", "secret"),
		WithInsecure(),
	)
	require.NoError(t, err)

	src := NewSource(client, "ticks", "prod/")
	p, err := src.Fetch(context.Background(), fetch.Query{Symbol: "BTC-USD", Start: 1, End: 2})
	require.NoError(t, err)
	assert.Equal(t, []byte(content), p.Data)
}
