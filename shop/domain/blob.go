package domain

import (
	"context"
	"io"
	"time"
)

// Upload describes a file already written to the blob store for the current request.
// Path is the public reference stored on the product.
type Upload struct {
	Path        string
	Filename    string
	ContentType string
	Size        int64
}

// BlobInfo is a listing entry of the blob store
type BlobInfo struct {
	Ref         string
	ContentType string
	Size        int64
	ModTime     time.Time
}

// BlobStore holds uploaded images addressed by their public reference.
// Implementations must be safe for concurrent use.
type BlobStore interface {
	Put(ctx context.Context, name string, r io.Reader, contentType string) (*Upload, error)

	// Delete removes the blob behind ref. A missing blob is not an error.
	Delete(ctx context.Context, ref string) error
	Exists(ctx context.Context, ref string) (bool, error)

	// Open streams the blob behind ref. A missing blob is a NotFoundError.
	Open(ctx context.Context, ref string) (io.ReadCloser, BlobInfo, error)
	List(ctx context.Context) ([]BlobInfo, error)
}
