package rotation

import (
	"context"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/williamokano/bak/pkg/config"
	"github.com/williamokano/bak/pkg/storage"
)

// Pruner applies an entry's keep policy to the outputs found in the
// destination tree
type Pruner struct {
	backend storage.Backend
	logger  zerolog.Logger
}

// PruneResult counts what a prune pass did, summed over all sources
type PruneResult struct {
	Matched int
	Deleted int
	Failed  int
}

// NewPruner creates a pruner working on backend, which must be rooted at the
// destination root
func NewPruner(backend storage.Backend, logger zerolog.Logger) *Pruner {
	return &Pruner{backend: backend, logger: logger}
}

// Prune deletes all but the newest entry.Keep outputs matching the rename
// template, evaluated separately for every source. It does nothing when the
// entry has no rename template or keeps an unlimited number of outputs.
func (p *Pruner) Prune(ctx context.Context, entry config.BackupEntry, sources []string) (PruneResult, error) {
	var result PruneResult
	if entry.Keep <= 0 {
		return result, nil
	}
	if entry.Rename == "" {
		p.logger.Debug().Int("keep", entry.Keep).Msg("keep has no effect without a rename template")
		return result, nil
	}

	dir := ExpandSubfolder(entry.Subfolder)
	logger := p.logger.With().
		Str("backend", p.backend.Name()).
		Str("dir", dir).
		Int("keep", entry.Keep).
		Logger()

	var errs error
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return result, errors.CombineErrors(errs, err)
		}

		base := filepath.Base(src)
		if err := p.pruneSource(ctx, entry, dir, base, &result, logger.With().Str("source", base).Logger()); err != nil {
			logger.Error().Err(err).Str("source", src).Msg("retention failed for source")
			errs = errors.CombineErrors(errs, err)
		}
	}

	return result, errs
}

func (p *Pruner) pruneSource(ctx context.Context, entry config.BackupEntry, dir, sourceBase string, result *PruneResult, logger zerolog.Logger) error {
	matcher, err := BuildMatcher(entry, sourceBase)
	if err != nil {
		return err
	}

	files, err := p.backend.List(ctx, dir)
	if err != nil {
		return errors.Wrapf(err, "failed to list files for source %s", sourceBase)
	}

	var matched []storage.FileInfo
	for _, f := range files {
		if matcher.MatchString(f.Name()) {
			matched = append(matched, f)
		}
	}
	result.Matched += len(matched)

	logger.Debug().
		Int("matched", len(matched)).
		Str("pattern", matcher.String()).
		Msg("found previous backups")

	toDelete := SelectForDeletion(matched, entry.Keep)
	if len(toDelete) == 0 {
		logger.Debug().Msg("within retention limit")
		return nil
	}

	logger.Info().
		Int("to_delete", len(toDelete)).
		Msg("applying retention policy")

	deleted, failed := DeleteFiles(ctx, p.backend, toDelete, logger)
	result.Deleted += deleted
	result.Failed += failed

	return nil
}
