// Package filestore defines the object-storage surface snapshots are
// published to and fetched from.
//
// Providers (MinIO, or any S3-compatible backend) implement the Store
// interface. Callers depend only on this package and never on a specific
// provider package.
//
// Usage:
//
//	cfg := filestore.DefaultConfig("localhost:9000", "minioadmin", "minioadmin")
//	store, err := minio.New(ctx, cfg)
//	if err != nil { ... }
//	defer store.Close()
//
//	err = store.EnsureBucket(ctx, cfg.DefaultBucket)
package filestore

import (
	"context"
	"io"
	"time"
)

// Store is the interface all object storage providers implement.
type Store interface {
	// Ping verifies the storage backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any held resources (connections, goroutines, etc.).
	Close() error

	// EnsureBucket creates bucket if it does not exist yet. Creating a
	// bucket that already exists is not an error.
	EnsureBucket(ctx context.Context, bucket string) error

	// PutObject writes size bytes from body to key inside bucket,
	// replacing any existing object at that key.
	PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, opts PutOptions) (*ObjectInfo, error)

	// ListObjects returns the objects in bucket that match opts.
	// Virtual directory entries (common prefixes) are included when
	// opts.Recursive is false.
	ListObjects(ctx context.Context, bucket string, opts ListOptions) ([]ObjectInfo, error)

	// GetObject opens a streaming handle to the object at key inside bucket.
	// The caller MUST call Object.Close() after reading.
	GetObject(ctx context.Context, bucket, key string) (Object, error)

	// StatObject returns metadata for the object at key inside bucket
	// without downloading its content.
	StatObject(ctx context.Context, bucket, key string) (*ObjectInfo, error)

	// PresignGetURL returns a time-limited URL that allows anyone to
	// download the object at key inside bucket without credentials.
	PresignGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}
