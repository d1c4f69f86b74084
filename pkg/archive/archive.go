// Package archive holds the strategies that turn a resolved source set into
// outputs under the destination tree: a plain recursive copy, a solid 7z
// archive built by the external archiver, or a zip archive.
package archive

import (
	"context"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/williamokano/bak/pkg/config"
	"github.com/williamokano/bak/pkg/rotation"
)

// Job is one entry's work for a strategy
type Job struct {
	Sources         []string // resolved absolute paths, at least one
	DestinationRoot string
	Entry           config.BackupEntry
	Now             func() time.Time // nil means time.Now
	Logger          zerolog.Logger
}

func (j Job) now() time.Time {
	if j.Now == nil {
		return time.Now()
	}
	return j.Now()
}

// destination formats the output path named after source with a freshly
// captured timestamp
func (j Job) destination(source string) (string, error) {
	return rotation.FormatDestination(j.DestinationRoot, filepath.Base(source), j.Entry, j.now())
}

// Outcome describes what a strategy wrote
type Outcome struct {
	Outputs      []string // absolute paths written
	PruneSources []string // sources whose previous outputs are subject to retention
	Failed       int      // sources that could not be backed up
}

// Strategy writes the outputs of one entry
type Strategy interface {
	Name() string
	Apply(ctx context.Context, job Job) (Outcome, error)
}

// Registry maps every compression mode to its strategy
type Registry map[config.Compression]Strategy

// NewRegistry returns the built-in strategies. sevenZipBin is the archiver
// executable used for solid archives.
func NewRegistry(sevenZipBin string) Registry {
	return Registry{
		config.CompressionNone:  CopyStrategy{},
		config.CompressionSolid: SolidStrategy{Binary: sevenZipBin},
		config.CompressionZip:   ZipStrategy{},
	}
}

// For returns the strategy for c
func (r Registry) For(c config.Compression) (Strategy, error) {
	s, ok := r[c]
	if !ok {
		return nil, errors.Newf("no archive strategy for compression %s", c)
	}
	return s, nil
}

func firstSource(job Job) (string, error) {
	if len(job.Sources) == 0 {
		return "", errors.New("no sources to archive")
	}
	return job.Sources[0], nil
}
