package rotation

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/williamokano/bak/pkg/config"
	"github.com/williamokano/bak/pkg/pathutil"
)

const (
	// Template tokens, each written as a slash followed by a letter
	TokenStamp    = 's' // full timestamp
	TokenDate     = 'd' // date only
	TokenTime     = 't' // time only
	TokenOriginal = 'o' // source basename
	TokenName     = 'n' // entry name
	TokenBase     = 'b' // last element of the entry subfolder

	// Timestamp layouts used by the time tokens
	StampFormat = "20060102150405"
	DateFormat  = "20060102"
	TimeFormat  = "150405"
)

// walkTemplate scans tmpl once, left to right. For every known token it calls
// token; everything else, unknown /x sequences included, goes through literal.
// Substituted values are never scanned again.
func walkTemplate(tmpl string, token func(byte) (string, bool), literal func(string) string) string {
	var b strings.Builder
	for i := 0; i < len(tmpl); i++ {
		if tmpl[i] == '/' && i+1 < len(tmpl) {
			if v, ok := token(tmpl[i+1]); ok {
				b.WriteString(v)
				i++
				continue
			}
		}
		b.WriteString(literal(tmpl[i : i+1]))
	}
	return b.String()
}

// ExpandSubfolder substitutes %NAME% placeholders in a subfolder and cleans it.
// An empty subfolder becomes ".".
func ExpandSubfolder(subfolder string) string {
	return filepath.Clean(pathutil.ExpandEnv(subfolder))
}

// ErrSubfolderOutsideRoot means a subfolder, once expanded, points outside the
// destination root
var ErrSubfolderOutsideRoot = errors.New("subfolder points outside the destination root")

// CheckSubfolder verifies that the expanded subfolder stays below the
// destination root
func CheckSubfolder(subfolder string) error {
	sub := ExpandSubfolder(subfolder)
	if filepath.IsAbs(sub) || sub == ".." || strings.HasPrefix(sub, ".."+string(filepath.Separator)) {
		return errors.Wrapf(ErrSubfolderOutsideRoot, "%q expands to %q", subfolder, sub)
	}
	return nil
}

// SubfolderName returns the last element of the expanded subfolder, or "" when
// there is none
func SubfolderName(subfolder string) string {
	if strings.TrimSpace(subfolder) == "" {
		return ""
	}
	base := filepath.Base(ExpandSubfolder(subfolder))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return base
}

// ExpandTemplate substitutes the rename tokens of tmpl.
//
//	/s -> 20240305143000   /d -> 20240305   /t -> 143000
//	/o -> source basename  /n -> entry name /b -> subfolder name
func ExpandTemplate(tmpl, sourceBase string, entry config.BackupEntry, now time.Time) string {
	return walkTemplate(tmpl, func(tok byte) (string, bool) {
		switch tok {
		case TokenStamp:
			return now.Format(StampFormat), true
		case TokenDate:
			return now.Format(DateFormat), true
		case TokenTime:
			return now.Format(TimeFormat), true
		case TokenOriginal:
			return sourceBase, true
		case TokenName:
			return entry.Name, true
		case TokenBase:
			return SubfolderName(entry.Subfolder), true
		}
		return "", false
	}, func(s string) string { return s })
}

// BuildMatcher reconstructs, from the entry's rename template, a regexp that
// recognizes every output the template could have produced for sourceBase.
// Time tokens become digit runs of their formatted width.
func BuildMatcher(entry config.BackupEntry, sourceBase string) (*regexp.Regexp, error) {
	body := walkTemplate(entry.Rename, func(tok byte) (string, bool) {
		switch tok {
		case TokenStamp:
			return `\d{14}`, true
		case TokenDate:
			return `\d{8}`, true
		case TokenTime:
			return `\d{6}`, true
		case TokenOriginal:
			return regexp.QuoteMeta(sourceBase), true
		case TokenName:
			return regexp.QuoteMeta(entry.Name), true
		case TokenBase:
			return regexp.QuoteMeta(SubfolderName(entry.Subfolder)), true
		}
		return "", false
	}, regexp.QuoteMeta)

	pattern := "^" + body + regexp.QuoteMeta(entry.Compression.Extension()) + "$"
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "build retention matcher from %q", entry.Rename)
	}
	return re, nil
}

// TargetDir returns the directory outputs of an entry are written to
func TargetDir(destinationRoot, subfolder string) string {
	return filepath.Join(destinationRoot, ExpandSubfolder(subfolder))
}

// OutputName returns the basename of an output, extension included
func OutputName(sourceBase string, entry config.BackupEntry, now time.Time) string {
	name := sourceBase
	if entry.Rename != "" {
		name = ExpandTemplate(entry.Rename, sourceBase, entry, now)
	}
	return name + entry.Compression.Extension()
}

// FormatDestination computes the output path for sourceBase and creates the
// target directory with its ancestors when missing
func FormatDestination(destinationRoot, sourceBase string, entry config.BackupEntry, now time.Time) (string, error) {
	dir := TargetDir(destinationRoot, entry.Subfolder)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrapf(err, "create target directory %s", dir)
	}
	return filepath.Join(dir, OutputName(sourceBase, entry, now)), nil
}
