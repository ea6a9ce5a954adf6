package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a requested path does not exist in storage.
var ErrNotFound = errors.New("not found")

// Storage is the flat key-value store behind every YAML record, the event
// journal and uploaded images. Paths are slash separated and relative to the
// storage root, e.g. "tasks/01J....yaml" or "events/2026-05-04/01J....json".
type Storage interface {
	// Read returns ErrNotFound for a missing path.
	Read(ctx context.Context, path string) ([]byte, error)
	// Open streams an object. It returns ErrNotFound for a missing path.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// Write replaces the whole object. Readers never observe a partial write.
	Write(ctx context.Context, path string, data []byte) error
	// Delete may return ErrNotFound for a missing path. S3 deletes succeed
	// regardless, so callers check existence first when it matters.
	Delete(ctx context.Context, path string) error
	// List returns the object paths directly under prefix, not recursing.
	List(ctx context.Context, prefix string) ([]string, error)
	Exists(ctx context.Context, path string) (bool, error)
}
