package storage

import (
	"io/fs"

	"github.com/cockroachdb/errors"
)

// ErrNotFound marks operations on a path that doesn't exist
var ErrNotFound = errors.New("file not found")

// WrapError adds context to an error and marks missing paths with ErrNotFound
func WrapError(backend, operation string, err error) error {
	wrapped := errors.Wrapf(err, "%s (%s)", operation, backend)
	if errors.Is(err, fs.ErrNotExist) {
		return errors.Mark(wrapped, ErrNotFound)
	}
	return wrapped
}
