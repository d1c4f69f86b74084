package archive

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williamokano/bak/pkg/config"
)

var fixedNow = func() time.Time { return time.Date(2024, 3, 5, 14, 30, 7, 0, time.Local) }

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// fixture creates a source tree with a file and a directory
func fixture(t *testing.T) (file, dir string) {
	t.Helper()
	src := t.TempDir()
	file = filepath.Join(src, "notes.txt")
	dir = filepath.Join(src, "photos")
	writeFile(t, file, "hello")
	writeFile(t, filepath.Join(dir, "a.jpg"), "AAA")
	writeFile(t, filepath.Join(dir, "nested", "b.jpg"), "BBB")
	return file, dir
}

// snapshot reads every file under root into a map keyed by relative path
func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	require.NoError(t, filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		require.NoError(t, err)
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		require.NoError(t, err)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	}))
	return out
}

func TestRegistry(t *testing.T) {
	r := NewRegistry("/opt/7zz")

	s, err := r.For(config.CompressionNone)
	require.NoError(t, err)
	assert.Equal(t, "copy", s.Name())

	s, err = r.For(config.CompressionSolid)
	require.NoError(t, err)
	assert.Equal(t, "solid", s.Name())
	assert.Equal(t, "/opt/7zz", s.(SolidStrategy).Binary)

	s, err = r.For(config.CompressionZip)
	require.NoError(t, err)
	assert.Equal(t, "zip", s.Name())

	_, err = r.For(config.Compression(42))
	assert.Error(t, err)
}

func TestCopyStrategy(t *testing.T) {
	file, dir := fixture(t)
	dest := t.TempDir()

	job := Job{
		Sources:         []string{file, dir},
		DestinationRoot: dest,
		Entry:           config.BackupEntry{Subfolder: "mirror"},
		Now:             fixedNow,
		Logger:          zerolog.Nop(),
	}

	outcome, err := CopyStrategy{}.Apply(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dest, "mirror", "notes.txt"),
		filepath.Join(dest, "mirror", "photos"),
	}, outcome.Outputs)
	assert.Equal(t, job.Sources, outcome.PruneSources)
	assert.Zero(t, outcome.Failed)

	assert.Equal(t, map[string]string{
		"mirror/notes.txt":           "hello",
		"mirror/photos/a.jpg":        "AAA",
		"mirror/photos/nested/b.jpg": "BBB",
	}, snapshot(t, dest))
}

func TestCopyStrategy_Idempotent(t *testing.T) {
	file, dir := fixture(t)
	dest := t.TempDir()
	job := Job{
		Sources:         []string{file, dir},
		DestinationRoot: dest,
		Entry:           config.BackupEntry{},
		Now:             fixedNow,
		Logger:          zerolog.Nop(),
	}

	_, err := CopyStrategy{}.Apply(context.Background(), job)
	require.NoError(t, err)
	first := snapshot(t, dest)

	_, err = CopyStrategy{}.Apply(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, first, snapshot(t, dest))
}

func TestCopyStrategy_Overwrites(t *testing.T) {
	file, _ := fixture(t)
	dest := t.TempDir()
	writeFile(t, filepath.Join(dest, "notes.txt"), "stale content that is longer")

	job := Job{Sources: []string{file}, DestinationRoot: dest, Now: fixedNow, Logger: zerolog.Nop()}
	_, err := CopyStrategy{}.Apply(context.Background(), job)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dest, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestCopyStrategy_PartialFailure(t *testing.T) {
	file, _ := fixture(t)
	dest := t.TempDir()
	gone := filepath.Join(t.TempDir(), "vanished.txt")

	job := Job{Sources: []string{gone, file}, DestinationRoot: dest, Now: fixedNow, Logger: zerolog.Nop()}
	outcome, err := CopyStrategy{}.Apply(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Failed)
	assert.Equal(t, []string{file}, outcome.PruneSources)

	job.Sources = []string{gone}
	outcome, err = CopyStrategy{}.Apply(context.Background(), job)
	require.Error(t, err)
	assert.Equal(t, 1, outcome.Failed)
	assert.Empty(t, outcome.Outputs)
}

func TestCopyStrategy_DestinationInsideSource(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "f"), "x")

	job := Job{
		Sources:         []string{src},
		DestinationRoot: src,
		Entry:           config.BackupEntry{Rename: "/o"},
		Now:             fixedNow,
		Logger:          zerolog.Nop(),
	}
	_, err := CopyStrategy{}.Apply(context.Background(), job)
	assert.Error(t, err)
}

func readZip(t *testing.T, path string) map[string]string {
	t.Helper()
	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	out := map[string]string{}
	for _, f := range r.File {
		if strings.HasSuffix(f.Name, "/") {
			out[f.Name] = ""
			continue
		}
		assert.Equal(t, zip.Deflate, f.Method, f.Name)
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		out[f.Name] = string(data)
	}
	return out
}

func TestZipStrategy(t *testing.T) {
	file, dir := fixture(t)
	dest := t.TempDir()

	job := Job{
		Sources:         []string{file, dir},
		DestinationRoot: dest,
		Entry:           config.BackupEntry{Name: "N", Rename: "/n_/d", Compression: config.CompressionZip},
		Now:             fixedNow,
		Logger:          zerolog.Nop(),
	}

	outcome, err := ZipStrategy{}.Apply(context.Background(), job)
	require.NoError(t, err)

	out := filepath.Join(dest, "N_20240305.zip")
	assert.Equal(t, []string{out}, outcome.Outputs)
	assert.Equal(t, []string{file}, outcome.PruneSources)

	assert.Equal(t, map[string]string{
		"notes.txt":           "hello",
		"photos/":             "",
		"photos/a.jpg":        "AAA",
		"photos/nested/":      "",
		"photos/nested/b.jpg": "BBB",
	}, readZip(t, out))

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temporary files left behind")
}

func TestZipStrategy_ReplacesExisting(t *testing.T) {
	file, _ := fixture(t)
	dest := t.TempDir()
	writeFile(t, filepath.Join(dest, "notes.txt.zip"), "not a zip")

	job := Job{
		Sources:         []string{file},
		DestinationRoot: dest,
		Entry:           config.BackupEntry{Compression: config.CompressionZip},
		Now:             fixedNow,
		Logger:          zerolog.Nop(),
	}
	_, err := ZipStrategy{}.Apply(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"notes.txt": "hello"}, readZip(t, filepath.Join(dest, "notes.txt.zip")))
}

func TestZipStrategy_LeavesOutNestedTargetDir(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "data.txt"), "data")

	clock := time.Date(2024, 3, 5, 10, 0, 0, 0, time.Local)
	job := Job{
		Sources:         []string{src},
		DestinationRoot: src,
		Entry:           config.BackupEntry{Subfolder: "backups", Rename: "data_/s", Compression: config.CompressionZip},
		Now:             func() time.Time { return clock },
		Logger:          zerolog.Nop(),
	}

	for i := 0; i < 2; i++ {
		_, err := ZipStrategy{}.Apply(context.Background(), job)
		require.NoError(t, err)
		clock = clock.Add(time.Minute)
	}

	base := filepath.Base(src)
	second := filepath.Join(src, "backups", "data_20240305100100.zip")
	assert.Equal(t, map[string]string{
		base + "/":         "",
		base + "/data.txt": "data",
	}, readZip(t, second))
}

func TestZipStrategy_NoSources(t *testing.T) {
	_, err := ZipStrategy{}.Apply(context.Background(), Job{DestinationRoot: t.TempDir(), Logger: zerolog.Nop()})
	assert.Error(t, err)
}

// fakeArchiver writes a shell script standing in for 7z
func fakeArchiver(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script archiver stand-in needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "7z")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return path
}

func TestSolidStrategy(t *testing.T) {
	// records its arguments into the archive path ($4)
	bin := fakeArchiver(t, `echo "7-Zip (fake)"; dest="$4"; printf '%s\n' "$@" > "$dest"`)
	file, dir := fixture(t)
	dest := t.TempDir()
	writeFile(t, filepath.Join(dest, "notes.txt.7z"), "stale")

	var logs bytes.Buffer
	job := Job{
		Sources:         []string{file, dir},
		DestinationRoot: dest,
		Entry:           config.BackupEntry{Compression: config.CompressionSolid},
		Now:             fixedNow,
		Logger:          zerolog.New(zerolog.SyncWriter(&logs)).Level(zerolog.DebugLevel),
	}

	outcome, err := SolidStrategy{Binary: bin}.Apply(context.Background(), job)
	require.NoError(t, err)

	out := filepath.Join(dest, "notes.txt.7z")
	assert.Equal(t, []string{out}, outcome.Outputs)
	assert.Equal(t, []string{file}, outcome.PruneSources)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{"a", "-t7z", "-y", out, file, dir}, "\n")+"\n", string(data))
	assert.Contains(t, logs.String(), "7-Zip (fake)")
}

func TestSolidStrategy_ExitFailure(t *testing.T) {
	bin := fakeArchiver(t, `echo "first" >&2; echo "disk full" >&2; exit 2`)
	file, _ := fixture(t)

	job := Job{
		Sources:         []string{file},
		DestinationRoot: t.TempDir(),
		Entry:           config.BackupEntry{Compression: config.CompressionSolid},
		Now:             fixedNow,
		Logger:          zerolog.Nop(),
	}

	outcome, err := SolidStrategy{Binary: bin}.Apply(context.Background(), job)
	require.Error(t, err)
	assert.Empty(t, outcome.Outputs)

	var archErr *ArchiverError
	require.True(t, errors.As(err, &archErr))
	assert.Equal(t, 2, archErr.ExitCode)
	assert.Equal(t, "first\ndisk full", archErr.Stderr)
	assert.Contains(t, err.Error(), "disk full")
}

func TestSolidStrategy_MissingBinary(t *testing.T) {
	file, _ := fixture(t)
	job := Job{
		Sources:         []string{file},
		DestinationRoot: t.TempDir(),
		Entry:           config.BackupEntry{Compression: config.CompressionSolid},
		Now:             fixedNow,
		Logger:          zerolog.Nop(),
	}

	_, err := SolidStrategy{Binary: filepath.Join(t.TempDir(), "no-such-7z")}.Apply(context.Background(), job)
	var archErr *ArchiverError
	require.True(t, errors.As(err, &archErr))
	assert.Equal(t, -1, archErr.ExitCode)
}

func TestDrain_ReadsPastOverlongLine(t *testing.T) {
	long := strings.Repeat("x", maxOutputLine+1)
	r := &countingReader{r: strings.NewReader("first\n" + long + "\nafter\n")}

	var lines []string
	err := drain(r, func(l string) { lines = append(lines, l) })

	require.Error(t, err)
	assert.True(t, errors.Is(err, bufio.ErrTooLong))
	assert.Equal(t, []string{"first"}, lines)
	assert.Equal(t, len("first\n")+len(long)+len("\nafter\n"), r.n, "input must be consumed to EOF")
}

func TestDrain_SkipsBlankLines(t *testing.T) {
	var lines []string
	err := drain(strings.NewReader("a\n\n  \nb"), func(l string) { lines = append(lines, l) })
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, lines)
}

type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}

func TestLineTail(t *testing.T) {
	tail := newLineTail(3)
	for _, l := range []string{"1", "2", "3", "4", "5"} {
		tail.add(l)
	}
	assert.Equal(t, "3\n4\n5", tail.String())
}
