package backup

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/williamokano/bak/pkg/archive"
	"github.com/williamokano/bak/pkg/config"
	"github.com/williamokano/bak/pkg/pathutil"
	"github.com/williamokano/bak/pkg/rotation"
	"github.com/williamokano/bak/pkg/storage"
	"github.com/williamokano/bak/pkg/storage/local"
)

// Status is the outcome class of one entry
type Status string

const (
	StatusDone            Status = "done"
	StatusSkippedInactive Status = "skipped_inactive"
	StatusSkippedEmpty    Status = "skipped_empty"
	StatusSkippedNoSource Status = "skipped_no_source"
	StatusFailed          Status = "failed"
)

// Statuses lists every status in report order
var Statuses = []Status{StatusDone, StatusSkippedInactive, StatusSkippedEmpty, StatusSkippedNoSource, StatusFailed}

// Result represents the outcome of one entry
type Result struct {
	Index    int // position in the config, starting at 0
	Label    string
	Status   Status
	Sources  []string // resolved sources
	Outputs  []string // written outputs
	Pruned   int      // outputs deleted by retention
	Error    error
	Duration time.Duration
}

// BackendFactory opens the destination storage rooted at root
type BackendFactory func(root string) (storage.Backend, error)

func localBackend(root string) (storage.Backend, error) {
	return local.New("destination", root)
}

// Executor runs backup entries one after the other
type Executor struct {
	strategies  archive.Registry
	logger      zerolog.Logger
	now         func() time.Time
	openBackend BackendFactory
	onStart     func(index int, entry config.BackupEntry)
	onDone      func(Result)
}

type Option func(*Executor)

// WithClock replaces time.Now for output naming
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// WithBackendFactory replaces the local destination backend
func WithBackendFactory(f BackendFactory) Option {
	return func(e *Executor) { e.openBackend = f }
}

// WithEntryHooks registers callbacks invoked by Run right before an entry is
// processed and right after its result is known. Either may be nil.
func WithEntryHooks(onStart func(index int, entry config.BackupEntry), onDone func(Result)) Option {
	return func(e *Executor) {
		e.onStart = onStart
		e.onDone = onDone
	}
}

func NewExecutor(strategies archive.Registry, logger zerolog.Logger, opts ...Option) *Executor {
	e := &Executor{
		strategies:  strategies,
		logger:      logger,
		now:         time.Now,
		openBackend: localBackend,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BackupEntry processes a single entry: resolve sources, run the archive
// strategy, then apply retention. Failures are logged and reported in the
// result, never returned.
func (e *Executor) BackupEntry(ctx context.Context, destinationRoot string, backend storage.Backend, index int, entry config.BackupEntry) Result {
	start := time.Now()
	result := Result{Index: index, Label: entry.Label()}

	entryLog := e.logger.With().
		Int("index", index+1).
		Str("entry", result.Label).
		Logger()

	finish := func(status Status, err error) Result {
		result.Status = status
		result.Error = err
		result.Duration = time.Since(start)
		return result
	}

	if !entry.Active {
		entryLog.Info().Msg("entry inactive, skipping")
		return finish(StatusSkippedInactive, nil)
	}

	if entry.Source.IsEmpty() {
		entryLog.Warn().Msg("entry has no source, skipping")
		return finish(StatusSkippedEmpty, nil)
	}

	if err := config.ValidateEntry(entry); err != nil {
		entryLog.Error().Err(err).Msg("invalid entry, skipping")
		return finish(StatusFailed, err)
	}
	if err := rotation.CheckSubfolder(entry.Subfolder); err != nil {
		entryLog.Error().Err(err).Msg("invalid entry, skipping")
		return finish(StatusFailed, errors.Mark(err, config.ErrInvalidEntry))
	}

	if entry.Description != "" {
		entryLog.Info().Str("description", entry.Description).Msg("processing entry")
	} else {
		entryLog.Info().Msg("processing entry")
	}

	sources, err := pathutil.ResolveSources(entry, entryLog)
	if err != nil {
		if errors.Is(err, pathutil.ErrNoSourceMatched) {
			entryLog.Warn().Err(err).Msg("nothing to back up, skipping")
			return finish(StatusSkippedNoSource, nil)
		}
		entryLog.Error().Err(err).Msg("cannot resolve sources")
		return finish(StatusFailed, err)
	}
	result.Sources = sources

	strategy, err := e.strategies.For(entry.Compression)
	if err != nil {
		entryLog.Error().Err(err).Msg("no archive strategy")
		return finish(StatusFailed, err)
	}

	outcome, err := strategy.Apply(ctx, archive.Job{
		Sources:         sources,
		DestinationRoot: destinationRoot,
		Entry:           entry,
		Now:             e.now,
		Logger:          entryLog.With().Str("strategy", strategy.Name()).Logger(),
	})
	result.Outputs = outcome.Outputs
	if err != nil {
		// Never prune when the new output failed
		entryLog.Error().Err(err).Str("strategy", strategy.Name()).Msg("backup failed, skipping retention")
		return finish(StatusFailed, err)
	}
	if outcome.Failed > 0 {
		entryLog.Warn().
			Int("failed_sources", outcome.Failed).
			Int("written", len(outcome.Outputs)).
			Msg("backup completed with failures")
	}

	pruned, err := rotation.NewPruner(backend, entryLog).Prune(ctx, entry, outcome.PruneSources)
	result.Pruned = pruned.Deleted
	if err != nil {
		entryLog.Error().Err(err).Msg("retention failed")
	}

	entryLog.Info().
		Int("outputs", len(outcome.Outputs)).
		Int("pruned", pruned.Deleted).
		Dur("duration", time.Since(start)).
		Msg("entry completed")

	return finish(StatusDone, nil)
}
