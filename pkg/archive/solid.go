package archive

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	stderrTailLines = 20
	maxOutputLine   = 1 << 20
)

// ArchiverError reports a failed run of the external archiver
type ArchiverError struct {
	Binary   string
	ExitCode int    // -1 when the process never ran to completion
	Stderr   string // last lines written to stderr
	Err      error
}

func (e *ArchiverError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Binary, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	if e.Err != nil {
		msg += " (" + e.Err.Error() + ")"
	}
	return msg
}

func (e *ArchiverError) Unwrap() error { return e.Err }

// SolidStrategy packs all sources into one 7z archive named after the first
// source, using the external archiver
type SolidStrategy struct {
	Binary string
}

func (SolidStrategy) Name() string { return "solid" }

func (s SolidStrategy) Apply(ctx context.Context, job Job) (Outcome, error) {
	first, err := firstSource(job)
	if err != nil {
		return Outcome{}, err
	}

	dest, err := job.destination(first)
	if err != nil {
		return Outcome{}, err
	}

	// the archiver would otherwise add to a previous archive
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return Outcome{}, errors.Wrapf(err, "remove stale archive %s", dest)
	}

	if err := s.run(ctx, dest, job.Sources, job.Logger); err != nil {
		os.Remove(dest)
		return Outcome{}, err
	}

	job.Logger.Info().
		Strs("from", job.Sources).
		Str("to", dest).
		Msg("solid archive created")

	return Outcome{
		Outputs:      []string{dest},
		PruneSources: []string{first},
	}, nil
}

func (s SolidStrategy) binary() string {
	if s.Binary == "" {
		return "7z"
	}
	return s.Binary
}

// run executes the archiver and blocks until it exits
func (s SolidStrategy) run(ctx context.Context, dest string, sources []string, logger zerolog.Logger) error {
	bin := s.binary()
	args := append([]string{"a", "-t7z", "-y", dest}, sources...)
	cmd := exec.CommandContext(ctx, bin, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &ArchiverError{Binary: bin, ExitCode: -1, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &ArchiverError{Binary: bin, ExitCode: -1, Err: err}
	}

	logger.Debug().
		Str("binary", bin).
		Strs("args", args).
		Msg("starting archiver")

	if err := cmd.Start(); err != nil {
		return &ArchiverError{Binary: bin, ExitCode: -1, Err: err}
	}

	tail := newLineTail(stderrTailLines)
	var g errgroup.Group
	g.Go(func() error {
		return drain(stdout, func(line string) {
			logger.Debug().Str("stream", "stdout").Msg(line)
		})
	})
	g.Go(func() error {
		return drain(stderr, func(line string) {
			logger.Debug().Str("stream", "stderr").Msg(line)
			tail.add(line)
		})
	})

	// pipes must be fully read before Wait closes them
	drainErr := g.Wait()
	waitErr := cmd.Wait()

	if waitErr != nil {
		archErr := &ArchiverError{Binary: bin, ExitCode: -1, Stderr: tail.String(), Err: waitErr}
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			archErr.ExitCode = exitErr.ExitCode()
		}
		return archErr
	}
	if drainErr != nil {
		logger.Warn().Err(drainErr).Msg("failed to read archiver output")
	}

	return nil
}

// drain passes every non-blank line of r to fn. It always reads r to EOF,
// discarding whatever follows a line it cannot scan, so the process on the
// other end never blocks on a full pipe.
func drain(r io.Reader, fn func(string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxOutputLine)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			fn(line)
		}
	}
	if err := scanner.Err(); err != nil {
		_, _ = io.Copy(io.Discard, r)
		return err
	}
	return nil
}

// lineTail keeps the last n lines it was given. It is only written by one
// goroutine and read after that goroutine finished.
type lineTail struct {
	n     int
	lines []string
}

func newLineTail(n int) *lineTail {
	return &lineTail{n: n}
}

func (t *lineTail) add(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > t.n {
		t.lines = t.lines[len(t.lines)-t.n:]
	}
}

func (t *lineTail) String() string {
	return strings.Join(t.lines, "\n")
}
