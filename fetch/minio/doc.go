// Package minio provides a fetch.Source for MinIO and other S3-compatible
// object stores via the native MinIO client.
//
// # Usage
//
//	client, err := minio.NewClient("play.min.io",
//	    minio.WithCredentials("ACCESS", "SECRET"),
//	)
//	src := minio.NewSource(client, "ticks", "prod/")
//
//	mgr, err := tickgo.New(src)
package minio
