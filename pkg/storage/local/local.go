package local

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/djherbis/times"

	"github.com/williamokano/bak/pkg/storage"
)

type Backend struct {
	name     string
	basePath string
}

// New creates a local filesystem backend rooted at an existing directory
func New(name, basePath string) (*Backend, error) {
	info, err := os.Stat(basePath)
	if err != nil {
		return nil, storage.WrapError(name, "init", err)
	}
	if !info.IsDir() {
		return nil, errors.Newf("backend %s: %s is not a directory", name, basePath)
	}

	return &Backend{
		name:     name,
		basePath: filepath.Clean(basePath),
	}, nil
}

func (b *Backend) Name() string { return b.name }

func (b *Backend) fullPath(path string) string {
	return filepath.Join(b.basePath, path)
}

// List returns the immediate children of dir
func (b *Backend) List(ctx context.Context, dir string) ([]storage.FileInfo, error) {
	entries, err := os.ReadDir(b.fullPath(dir))
	if err != nil {
		return nil, storage.WrapError(b.name, "list", err)
	}

	files := make([]storage.FileInfo, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info, err := b.stat(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue // Removed between ReadDir and Stat
		}
		files = append(files, *info)
	}

	return files, nil
}

// stat returns metadata about a file or directory, birth time included when
// the platform records it
func (b *Backend) stat(path string) (*storage.FileInfo, error) {
	fullPath := b.fullPath(path)
	info, err := os.Lstat(fullPath)
	if err != nil {
		return nil, storage.WrapError(b.name, "stat", err)
	}

	fi := &storage.FileInfo{
		Path:    filepath.Clean(path),
		IsDir:   info.IsDir(),
		ModTime: info.ModTime(),
	}
	if !info.IsDir() {
		fi.Size = info.Size()
	}

	if ts, err := times.Lstat(fullPath); err == nil && ts.HasBirthTime() {
		fi.BirthTime = ts.BirthTime()
	}

	return fi, nil
}

// Delete removes a file or a directory tree
func (b *Backend) Delete(ctx context.Context, path string) error {
	fullPath := b.fullPath(path)
	if filepath.Clean(fullPath) == b.basePath {
		return errors.Newf("backend %s: refusing to delete the backend root", b.name)
	}

	if _, err := os.Lstat(fullPath); err != nil {
		return storage.WrapError(b.name, "delete", err)
	}
	if err := os.RemoveAll(fullPath); err != nil {
		return storage.WrapError(b.name, "delete", err)
	}
	return nil
}

// Close is a no-op for local backend
func (b *Backend) Close() error {
	return nil
}
