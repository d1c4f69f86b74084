package rotation

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/williamokano/bak/pkg/storage"
)

// SortNewestFirst orders outputs by creation time, newest first. Equal times
// fall back to the name, descending, so timestamped names keep their order.
func SortNewestFirst(files []storage.FileInfo) {
	sort.SliceStable(files, func(i, j int) bool {
		ti, tj := files[i].CreatedAt(), files[j].CreatedAt()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return files[i].Name() > files[j].Name()
	})
}

// SelectForDeletion returns the outputs beyond the keep newest ones.
// keep <= 0 means unlimited and selects nothing.
func SelectForDeletion(files []storage.FileInfo, keep int) []storage.FileInfo {
	if keep <= 0 || len(files) <= keep {
		return nil
	}

	sorted := make([]storage.FileInfo, len(files))
	copy(sorted, files)
	SortNewestFirst(sorted)

	return sorted[keep:]
}

// DeleteFiles removes files through the backend. A failed delete is logged and
// the remaining files are still attempted.
func DeleteFiles(ctx context.Context, backend storage.Backend, files []storage.FileInfo, logger zerolog.Logger) (deleted, failed int) {
	for _, file := range files {
		if err := backend.Delete(ctx, file.Path); err != nil {
			logger.Error().
				Err(err).
				Str("file", file.Path).
				Msg("failed to delete old backup")
			failed++
			continue
		}

		logger.Info().
			Str("file", file.Path).
			Time("created", file.CreatedAt()).
			Msg("deleted old backup")
		deleted++
	}

	return deleted, failed
}
