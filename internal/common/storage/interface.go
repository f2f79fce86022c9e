// Package storage reads dataset payload objects from S3-compatible storage.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound reports a missing object.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage is the read side of object storage used for dataset payloads.
type ObjectStorage interface {
	// GetObject opens a reader for an object. Caller must close it.
	GetObject(ctx context.Context, bucket, objectKey string) (io.ReadCloser, error)
	StatObject(ctx context.Context, bucket, objectKey string) (ObjectStat, error)
}

// ObjectStat contains object metadata.
type ObjectStat struct {
	SizeBytes       int64
	ETag            string
	ContentType     string
	ContentEncoding string
}
