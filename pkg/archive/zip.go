package archive

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog"
)

// ZipStrategy packs all sources into one deflated zip archive named after
// the first source. Files sit at the archive root; directories keep their
// own name as the top folder.
type ZipStrategy struct{}

func (ZipStrategy) Name() string { return "zip" }

func (ZipStrategy) Apply(ctx context.Context, job Job) (Outcome, error) {
	first, err := firstSource(job)
	if err != nil {
		return Outcome{}, err
	}

	dest, err := job.destination(first)
	if err != nil {
		return Outcome{}, err
	}

	skipped, err := writeZip(ctx, dest, job.Sources, job.Logger)
	if err != nil {
		return Outcome{}, err
	}

	job.Logger.Info().
		Strs("from", job.Sources).
		Str("to", dest).
		Int("skipped_files", skipped).
		Msg("zip archive created")

	return Outcome{
		Outputs:      []string{dest},
		PruneSources: []string{first},
	}, nil
}

// writeZip builds the archive in a temporary file next to dest and renames it
// into place once complete
func writeZip(ctx context.Context, dest string, sources []string, logger zerolog.Logger) (skipped int, err error) {
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return 0, errors.Wrap(err, "create temporary archive")
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	zw := zip.NewWriter(tmp)
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return skipped, err
		}

		n, err := addSource(zw, src, tmp.Name(), filepath.Dir(dest), logger)
		skipped += n
		if err != nil {
			return skipped, errors.Wrapf(err, "add %s to archive", src)
		}
	}

	if err := zw.Close(); err != nil {
		return skipped, errors.Wrap(err, "finish archive")
	}
	if err := tmp.Close(); err != nil {
		return skipped, errors.Wrap(err, "close temporary archive")
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return skipped, errors.Wrapf(err, "move archive to %s", dest)
	}

	return skipped, nil
}

// addSource writes one source below its basename and returns how many
// unreadable files were left out. The archive being written is never added
// to itself, and a target directory nested in src is left out so earlier
// outputs don't end up in the new archive.
func addSource(zw *zip.Writer, src, self, targetDir string, logger zerolog.Logger) (int, error) {
	info, err := os.Stat(src)
	if err != nil {
		return 0, err
	}

	if !info.IsDir() {
		return 0, addFile(zw, src, filepath.Base(src), info)
	}

	if targetDir == src {
		logger.Warn().
			Str("source", src).
			Msg("target directory is the source itself, earlier outputs are archived too")
	}

	root := filepath.Dir(src)
	skipped := 0
	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			logger.Warn().Err(walkErr).Str("path", path).Msg("cannot read, leaving it out of the archive")
			skipped++
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if path == self {
			return nil
		}
		if d.IsDir() && path == targetDir && path != src {
			logger.Warn().Str("path", path).Msg("target directory is inside the source, leaving it out of the archive")
			return filepath.SkipDir
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)

		if d.IsDir() {
			_, err := zw.Create(name + "/")
			return err
		}

		fi, err := os.Stat(path)
		if err != nil || !fi.Mode().IsRegular() {
			logger.Debug().Str("path", path).Msg("not a regular file, leaving it out of the archive")
			skipped++
			return nil
		}

		if err := addFile(zw, path, name, fi); err != nil {
			if errors.Is(err, fs.ErrPermission) {
				logger.Warn().Err(err).Str("path", path).Msg("cannot read, leaving it out of the archive")
				skipped++
				return nil
			}
			return err
		}
		return nil
	})

	return skipped, err
}

func addFile(zw *zip.Writer, path, name string, info fs.FileInfo) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}
