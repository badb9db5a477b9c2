package blobstore

import (
	"context"
	"errors"
	"io"
)

// DefaultPrefix is the relative directory every managed image is written under.
const DefaultPrefix = "uploads/category"

// ErrInvalidPath reports a blob path outside the managed uploads prefix.
var ErrInvalidPath = errors.New("invalid blob path")

// BlobStore is the byte-storage abstraction used by SentenceService.
type BlobStore interface {
	// Save persists r under a freshly generated name and returns its relative path.
	Save(ctx context.Context, r io.Reader, ext string) (string, error)
	Exists(ctx context.Context, path string) (bool, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// Delete removes one blob. Missing blobs are not an error.
	Delete(ctx context.Context, path string) error
	List(ctx context.Context) ([]string, error)
}
