package minio

import (
	"context"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/tickgo/fetch"
)

// Source implements fetch.Source against a MinIO bucket.
type Source struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewSource creates a Source. prefix is prepended to all object keys.
func NewSource(client *minio.Client, bucket, prefix string) *Source {
	return &Source{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

// ClientOption configures NewClient.
type ClientOption func(*clientOptions)

type clientOptions struct {
	accessKey string
	secretKey string
	insecure  bool
}

// WithCredentials sets static credentials.
func WithCredentials(accessKey, secretKey string) ClientOption {
	return func(o *clientOptions) {
		o.accessKey = accessKey
		o.secretKey = secretKey
	}
}

// WithInsecure disables TLS, for local development endpoints.
func WithInsecure() ClientOption {
	return func(o *clientOptions) {
		o.insecure = true
	}
}

// NewClient creates a MinIO client for the given endpoint.
func NewClient(endpoint string, optFns ...ClientOption) (*minio.Client, error) {
	var o clientOptions
	for _, fn := range optFns {
		fn(&o)
	}

	return minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(o.accessKey, o.secretKey, ""),
		Secure: !o.insecure,
	})
}

// Fetch implements fetch.Source.
func (s *Source) Fetch(ctx context.Context, q fetch.Query) (fetch.Payload, error) {
	key := path.Join(s.prefix, q.Key())

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return fetch.Payload{}, &fetch.NetworkError{Query: q, Err: mapNotFound(err)}
	}
	defer func() { _ = obj.Close() }()

	// Stat surfaces NoSuchKey before any read.
	if _, err := obj.Stat(); err != nil {
		return fetch.Payload{}, &fetch.NetworkError{Query: q, Err: mapNotFound(err)}
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return fetch.Payload{}, &fetch.NetworkError{Query: q, Err: mapNotFound(err)}
	}

	return fetch.NewPayload(data), nil
}

func mapNotFound(err error) error {
	errResp := minio.ToErrorResponse(err)
	if errResp.Code == "NoSuchKey" || errResp.Code == "NotFound" {
		return fetch.ErrNotFound
	}
	return err
}
