package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/williamokano/bak/pkg/config"
	"github.com/williamokano/bak/pkg/pathutil"
	"github.com/williamokano/bak/pkg/rotation"
)

var (
	// ErrDestinationMissing means the destination root is not an existing directory
	ErrDestinationMissing = errors.New("destination root doesn't exist")

	// ErrNoEntries means the configuration lists nothing to back up
	ErrNoEntries = errors.New("no backup entries configured")
)

// Summary aggregates the results of one run
type Summary struct {
	RunID    string
	Started  time.Time
	Duration time.Duration
	Results  []Result
}

// Count returns the number of entries that ended with status
func (s Summary) Count(status Status) int {
	n := 0
	for _, r := range s.Results {
		if r.Status == status {
			n++
		}
	}
	return n
}

// Skipped returns the number of entries that were neither done nor failed
func (s Summary) Skipped() int {
	return len(s.Results) - s.Count(StatusDone) - s.Count(StatusFailed)
}

// Outputs returns the number of outputs written
func (s Summary) Outputs() int {
	n := 0
	for _, r := range s.Results {
		n += len(r.Outputs)
	}
	return n
}

// Pruned returns the number of outputs deleted by retention
func (s Summary) Pruned() int {
	n := 0
	for _, r := range s.Results {
		n += r.Pruned
	}
	return n
}

// Run processes every entry of cfg in order. Only a missing destination
// root, an empty entry list or cancellation are returned as errors; entry
// failures are part of the summary.
func (e *Executor) Run(ctx context.Context, cfg *config.BackupConfig) (Summary, error) {
	start := time.Now()
	summary := Summary{
		RunID:   uuid.NewString(),
		Started: start,
	}
	logger := e.logger.With().Str("run_id", summary.RunID).Logger()

	root, err := pathutil.Resolve(cfg.DestinationRoot)
	if err != nil || cfg.DestinationRoot == "" || !pathutil.IsDir(root) {
		return summary, errors.Wrapf(ErrDestinationMissing, "%q", cfg.DestinationRoot)
	}

	if len(cfg.Entries) == 0 {
		return summary, ErrNoEntries
	}

	backend, err := e.openBackend(root)
	if err != nil {
		return summary, errors.Wrap(err, "open destination")
	}
	defer backend.Close()

	for _, w := range OverlapWarnings(root, cfg.Entries) {
		logger.Warn().Msg(w)
	}

	logger.Info().
		Str("destination", root).
		Int("entries", len(cfg.Entries)).
		Msg("starting backup run")

	worker := *e
	worker.logger = logger
	for i, entry := range cfg.Entries {
		if err := ctx.Err(); err != nil {
			summary.Duration = time.Since(start)
			logger.Warn().Err(err).Int("processed", i).Msg("backup run interrupted")
			return summary, errors.Wrap(err, "backup run interrupted")
		}
		if e.onStart != nil {
			e.onStart(i, entry)
		}
		result := worker.BackupEntry(ctx, root, backend, i, entry)
		if e.onDone != nil {
			e.onDone(result)
		}
		summary.Results = append(summary.Results, result)
	}

	summary.Duration = time.Since(start)
	logger.Info().
		Int("done", summary.Count(StatusDone)).
		Int("skipped", summary.Skipped()).
		Int("failed", summary.Count(StatusFailed)).
		Int("pruned", summary.Pruned()).
		Dur("duration", summary.Duration).
		Msg("backup run completed")

	return summary, nil
}

// OverlapWarnings reports active pruning entries that write outputs of the same
// shape into the same directory, where retention of one can delete outputs of
// the other
func OverlapWarnings(root string, entries []config.BackupEntry) []string {
	type key struct {
		dir, rename string
		compression config.Compression
	}

	seen := map[key]int{}
	var warnings []string
	for i, entry := range entries {
		if !entry.Active || entry.Rename == "" || entry.Keep <= 0 {
			continue
		}
		k := key{rotation.TargetDir(root, entry.Subfolder), entry.Rename, entry.Compression}
		if first, ok := seen[k]; ok {
			warnings = append(warnings, fmt.Sprintf(
				"entries %d (%s) and %d (%s) share directory %s and rename template %q; retention may delete each other's outputs",
				first+1, entries[first].Label(), i+1, entry.Label(), k.dir, entry.Rename))
			continue
		}
		seen[k] = i
	}
	return warnings
}
