package storage

import (
	"context"
	"path/filepath"
	"time"
)

// Backend represents the destination tree that backup outputs are written into.
// Paths are relative to the backend root.
type Backend interface {
	// Name returns a human-readable name for this backend (e.g., "destination")
	Name() string

	// List returns the immediate children of dir ("." for the root), files and
	// directories alike, in name order
	List(ctx context.Context, dir string) ([]FileInfo, error)

	// Delete removes a file, or a directory with everything below it
	Delete(ctx context.Context, path string) error

	// Close releases resources
	Close() error
}

// FileInfo represents metadata about a stored output
type FileInfo struct {
	Path      string    // Relative path in backend
	Size      int64     // Size in bytes (0 for directories)
	IsDir     bool      // Directory outputs come from the copy strategy
	ModTime   time.Time // Last modification time
	BirthTime time.Time // Creation time, zero when the platform doesn't record it
}

// Name returns the last element of Path
func (f FileInfo) Name() string {
	return filepath.Base(f.Path)
}

// CreatedAt returns the creation time, falling back to the modification time
func (f FileInfo) CreatedAt() time.Time {
	if !f.BirthTime.IsZero() {
		return f.BirthTime
	}
	return f.ModTime
}
