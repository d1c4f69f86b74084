package archive

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	cp "github.com/otiai10/copy"
)

// CopyStrategy copies every source recursively to its own destination,
// overwriting what a previous run left there
type CopyStrategy struct{}

func (CopyStrategy) Name() string { return "copy" }

func (CopyStrategy) Apply(ctx context.Context, job Job) (Outcome, error) {
	var outcome Outcome
	var lastErr error

	for _, src := range job.Sources {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}

		dest, err := copySource(job, src)
		if err != nil {
			job.Logger.Error().
				Err(err).
				Str("source", src).
				Msg("copy failed")
			outcome.Failed++
			lastErr = err
			continue
		}

		job.Logger.Info().
			Strs("from", []string{src}).
			Str("to", dest).
			Msg("copied")
		outcome.Outputs = append(outcome.Outputs, dest)
		outcome.PruneSources = append(outcome.PruneSources, src)
	}

	if len(outcome.Outputs) == 0 && outcome.Failed > 0 {
		return outcome, errors.Wrapf(lastErr, "all %d sources failed to copy", outcome.Failed)
	}
	return outcome, nil
}

func copySource(job Job, src string) (string, error) {
	dest, err := job.destination(src)
	if err != nil {
		return "", err
	}

	if dest == src || strings.HasPrefix(dest, src+string(filepath.Separator)) {
		return "", errors.Newf("destination %s is inside source %s", dest, src)
	}

	opts := cp.Options{
		OnDirExists: func(_, _ string) cp.DirExistsAction { return cp.Merge },
		OnSymlink:   func(string) cp.SymlinkAction { return cp.Shallow },
	}
	if err := cp.Copy(src, dest, opts); err != nil {
		return "", errors.Wrapf(err, "copy %s to %s", src, dest)
	}
	return dest, nil
}
