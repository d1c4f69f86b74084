// Package pathutil turns configured source specifications into concrete paths.
//
// Sources may carry %NAME% environment placeholders, and a directory source
// combined with an entry's match pattern expands to the matching children of
// that directory. A source whose last element contains * or ? is expanded
// against its parent directory the same way.
package pathutil

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/williamokano/bak/pkg/config"
)

// ErrNoSourceMatched means an entry resolved to zero existing paths. Callers
// skip the entry; it is never fatal.
var ErrNoSourceMatched = errors.New("no file or folder matched")

var placeholder = regexp.MustCompile(`%([^%]+)%`)

// ExpandEnv replaces %NAME% placeholders with the value of the environment
// variable NAME. Unset variables expand to the empty string.
func ExpandEnv(s string) string {
	return placeholder.ReplaceAllStringFunc(s, func(m string) string {
		return os.Getenv(m[1 : len(m)-1])
	})
}

// Resolve expands placeholders and returns the absolute, cleaned path
func Resolve(p string) (string, error) {
	abs, err := filepath.Abs(ExpandEnv(p))
	if err != nil {
		return "", errors.Wrapf(err, "resolve %s", p)
	}
	return filepath.Clean(abs), nil
}

// CompileMatcher compiles a wildcard pattern into a case-insensitive regexp
// matching whole file names. '*' matches any run of characters, '?' exactly
// one, and ';' separates alternatives. Everything else is literal.
func CompileMatcher(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString(`(?is)^(?:`)
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(`.*`)
		case '?':
			b.WriteString(`.`)
		case ';':
			b.WriteString(`|`)
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString(`)$`)

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, errors.Wrapf(err, "compile match pattern %q", pattern)
	}
	return re, nil
}

func hasWildcard(s string) bool {
	return strings.ContainsAny(s, "*?")
}

// ResolveSources expands every source of entry into existing absolute paths.
// Missing sources are logged and skipped. An empty result is reported as
// ErrNoSourceMatched.
func ResolveSources(entry config.BackupEntry, logger zerolog.Logger) ([]string, error) {
	var matcher *regexp.Regexp
	if entry.Match != "" {
		m, err := CompileMatcher(entry.Match)
		if err != nil {
			return nil, err
		}
		matcher = m
	}

	var resolved []string
	for i, src := range entry.Source {
		if strings.TrimSpace(src) == "" {
			logger.Warn().Int("position", i+1).Msg("blank source, skipping")
			continue
		}

		abs, err := Resolve(src)
		if err != nil {
			logger.Warn().Err(err).Str("source", src).Msg("cannot resolve source path, skipping")
			continue
		}

		info, err := os.Stat(abs)
		switch {
		case err == nil && info.IsDir() && matcher != nil:
			children, err := listMatching(abs, matcher)
			if err != nil {
				logger.Warn().Err(err).Str("path", abs).Msg("cannot list source directory, skipping")
				continue
			}
			resolved = append(resolved, children...)

		case err == nil:
			resolved = append(resolved, abs)

		case hasWildcard(filepath.Base(abs)) && !hasWildcard(filepath.Dir(abs)):
			children, err := expandWildcard(abs, matcher)
			if err != nil {
				logger.Warn().Err(err).Str("path", abs).Msg("file or folder doesn't exist, skipping")
				continue
			}
			if len(children) == 0 {
				logger.Warn().Str("path", abs).Msg("wildcard matched nothing, skipping")
			}
			resolved = append(resolved, children...)

		default:
			logger.Warn().Str("path", abs).Msg("file or folder doesn't exist, skipping")
		}
	}

	if len(resolved) == 0 {
		return nil, errors.Wrapf(ErrNoSourceMatched, "entry %q", entry.Label())
	}

	return resolved, nil
}

// listMatching returns the immediate children of dir whose names match,
// joined under dir, in name order.
func listMatching(dir string, matcher *regexp.Regexp) ([]string, error) {
	children, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read directory %s", dir)
	}

	var matched []string
	for _, child := range children {
		if matcher.MatchString(child.Name()) {
			matched = append(matched, filepath.Join(dir, child.Name()))
		}
	}
	return matched, nil
}

// expandWildcard treats the last element of path as a wildcard over its
// parent directory, additionally filtered by the entry matcher when set.
func expandWildcard(path string, entryMatcher *regexp.Regexp) ([]string, error) {
	dir := filepath.Dir(path)
	if !IsDir(dir) {
		return nil, errors.Newf("directory %s doesn't exist", dir)
	}

	baseMatcher, err := CompileMatcher(filepath.Base(path))
	if err != nil {
		return nil, err
	}

	matched, err := listMatching(dir, baseMatcher)
	if err != nil || entryMatcher == nil {
		return matched, err
	}

	filtered := matched[:0]
	for _, m := range matched {
		if entryMatcher.MatchString(filepath.Base(m)) {
			filtered = append(filtered, m)
		}
	}
	return filtered, nil
}
