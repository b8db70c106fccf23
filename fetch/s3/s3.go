package s3

import (
	"context"
	"errors"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hupe1980/tickgo/fetch"
)

// Client is the subset of the S3 API the source uses. *s3.Client satisfies
// it; tests substitute fakes.
type Client interface {
	manager.DownloadAPIClient
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Source implements fetch.Source against an S3 bucket.
type Source struct {
	client     Client
	downloader *manager.Downloader
	bucket     string
	prefix     string
}

// SourceOption configures a Source.
type SourceOption func(*sourceOptions)

type sourceOptions struct {
	prefix      string
	region      string
	concurrency int
}

// WithPrefix prepends a key prefix to every object name.
func WithPrefix(prefix string) SourceOption {
	return func(o *sourceOptions) {
		o.prefix = prefix
	}
}

// WithRegion sets the AWS region for the convenience constructor.
func WithRegion(region string) SourceOption {
	return func(o *sourceOptions) {
		o.region = region
	}
}

// WithDownloadConcurrency sets the number of parallel part downloads.
func WithDownloadConcurrency(n int) SourceOption {
	return func(o *sourceOptions) {
		o.concurrency = n
	}
}

// New creates a Source using the default AWS credential chain.
func New(ctx context.Context, bucket string, optFns ...SourceOption) (*Source, error) {
	var o sourceOptions
	for _, fn := range optFns {
		fn(&o)
	}

	var cfgOpts []func(*config.LoadOptions) error
	if o.region != "" {
		cfgOpts = append(cfgOpts, config.WithRegion(o.region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, cfgOpts...)
	if err != nil {
		return nil, err
	}

	return NewFromClient(s3.NewFromConfig(cfg), bucket, optFns...), nil
}

// NewFromClient creates a Source from an existing client.
func NewFromClient(client Client, bucket string, optFns ...SourceOption) *Source {
	var o sourceOptions
	for _, fn := range optFns {
		fn(&o)
	}

	downloader := manager.NewDownloader(client, func(d *manager.Downloader) {
		if o.concurrency > 0 {
			d.Concurrency = o.concurrency
		}
	})

	return &Source{
		client:     client,
		downloader: downloader,
		bucket:     bucket,
		prefix:     o.prefix,
	}
}

func (s *Source) key(q fetch.Query) string {
	return path.Join(s.prefix, q.Key())
}

// Fetch implements fetch.Source.
func (s *Source) Fetch(ctx context.Context, q fetch.Query) (fetch.Payload, error) {
	key := s.key(q)

	// Head first so the buffer can be sized and missing objects map
	// cleanly to ErrNotFound.
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fetch.Payload{}, &fetch.NetworkError{Query: q, Err: mapNotFound(err)}
	}

	buf := manager.NewWriteAtBuffer(make([]byte, 0, aws.ToInt64(head.ContentLength)))
	_, err = s.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fetch.Payload{}, &fetch.NetworkError{Query: q, Err: mapNotFound(err)}
	}

	return fetch.NewPayload(buf.Bytes()), nil
}

func mapNotFound(err error) error {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return fetch.ErrNotFound
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return fetch.ErrNotFound
	}
	return err
}
