package storage

import (
	"context"
	"io"
)

// BlobStore keeps uploaded photos. Put returns the URL clients use to fetch
// the object.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}
