package filestore

import (
	"io"
	"time"
)

// ObjectInfo describes a single object stored in a bucket.
type ObjectInfo struct {
	// Key is the full object path within the bucket
	// (e.g. "hr/20260826T101512Z-8f14e45f.yaml").
	Key string

	// Size is the byte size of the object. -1 if unknown.
	Size int64

	// ContentType is the MIME type (e.g. "application/yaml").
	ContentType string

	// ETag is the object's entity tag / hash, as returned by the backend.
	ETag string

	// LastModified is when the object was last written.
	LastModified time.Time

	// IsDir is true when the entry represents a virtual directory (prefix),
	// not an actual stored object.
	IsDir bool
}

// Object is a streaming handle to an object's content.
// The caller MUST call Close() after reading to avoid resource leaks.
type Object interface {
	io.ReadCloser

	// Info returns the metadata for this object.
	Info() *ObjectInfo
}

// PutOptions carries metadata attached to an uploaded object.
type PutOptions struct {
	// ContentType is the MIME type to store with the object.
	// Empty means the backend default (usually application/octet-stream).
	ContentType string

	// Metadata holds user-defined key/value pairs stored with the object.
	Metadata map[string]string
}

// ListOptions controls how ListObjects filters and paginates results.
type ListOptions struct {
	// Prefix restricts results to objects whose key starts with this string.
	// Use "" to list everything in the bucket.
	Prefix string

	// Recursive, when true, lists all objects under the prefix without
	// grouping by virtual directories. When false (default), common prefixes
	// (virtual "folders") are returned as IsDir entries.
	Recursive bool

	// Limit caps the number of results returned. 0 means use the backend default.
	Limit int
}
