package storage

import (
	"context"
	"errors"
)

// ErrNotFound reports a path that does not exist in the backend.
var ErrNotFound = errors.New("storage: not found")

// Storage abstracts the bytes-on-disk layer. Paths are always relative to
// the backend's root; implementations reject anything that escapes it.
type Storage interface {
	Save(ctx context.Context, path string, data []byte) error
	Load(ctx context.Context, path string) ([]byte, error)
	List(ctx context.Context, pattern string) ([]string, error)
	Exists(ctx context.Context, path string) bool
	Delete(ctx context.Context, path string) error
}
