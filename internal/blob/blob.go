// Package blob reads and writes post images in object storage or over HTTP.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrResourceUnavailable covers every reason an image could not be fetched:
	// missing objects, HTTP errors, timeouts and network failures.
	ErrResourceUnavailable = errors.New("resource unavailable")
	// ErrNotFound is the subset of ErrResourceUnavailable where the object does not exist.
	ErrNotFound = fmt.Errorf("%w: not found", ErrResourceUnavailable)
)

// Fetcher downloads image bytes by reference (URL or storage path).
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// Uploader stores bytes under a key and returns the reference to read them back.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Store is a full read/write/delete blob backend.
type Store interface {
	Fetcher
	Uploader
	Delete(ctx context.Context, ref string) error
}

// readLimited reads at most limit bytes from r and fails if there is more.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", ErrResourceUnavailable, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: object larger than %d bytes", ErrResourceUnavailable, limit)
	}
	return data, nil
}
