// Package s3 provides an S3 implementation of the fetch.Source interface.
//
// # Usage
//
//	src, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("ticks/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	mgr, err := tickgo.New(src)
//
// Objects are laid out by fetch.Query.Key under the configured prefix.
// Downloads go through the s3 manager's concurrent Downloader.
package s3
