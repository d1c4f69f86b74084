package config

import (
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/goccy/go-json"
)

var (
	// ErrConfigRead marks any failure to load a configuration file (IO, schema, decode)
	ErrConfigRead = errors.New("cannot read configuration")

	// ErrInvalidEntry marks a backup entry rejected by validation
	ErrInvalidEntry = errors.New("invalid backup entry")
)

// Compression selects the archive strategy of an entry
type Compression int

const (
	CompressionNone Compression = iota
	CompressionSolid
	CompressionZip
)

// ParseCompression accepts the canonical names plus the aliases older configs use
// ("" for none, "7z"/"7zip" for solid).
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", "none":
		return CompressionNone, nil
	case "solid", "7z", "7zip":
		return CompressionSolid, nil
	case "zip":
		return CompressionZip, nil
	default:
		return CompressionNone, errors.Newf("unknown compression %q (want none, solid or zip)", s)
	}
}

func (c Compression) String() string {
	switch c {
	case CompressionSolid:
		return "solid"
	case CompressionZip:
		return "zip"
	default:
		return "none"
	}
}

// Extension returns the suffix appended to output names, including the dot
func (c Compression) Extension() string {
	switch c {
	case CompressionSolid:
		return ".7z"
	case CompressionZip:
		return ".zip"
	default:
		return ""
	}
}

func (c Compression) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Compression) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrap(err, "compression must be a string")
	}
	parsed, err := ParseCompression(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Sources holds the source paths of an entry. In JSON it is either a single
// string or an array of strings.
type Sources []string

func (s *Sources) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = nil
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*s = nil
		} else {
			*s = Sources{single}
		}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return errors.Wrap(err, "source must be a string or an array of strings")
	}
	*s = many
	return nil
}

func (s Sources) MarshalJSON() ([]byte, error) {
	if len(s) == 1 {
		return json.Marshal(s[0])
	}
	if s == nil {
		return []byte(`[]`), nil
	}
	return json.Marshal([]string(s))
}

// IsEmpty reports whether no usable source path is configured
func (s Sources) IsEmpty() bool {
	for _, p := range s {
		if strings.TrimSpace(p) != "" {
			return false
		}
	}
	return true
}

// BackupEntry is one configured source-to-destination backup rule
type BackupEntry struct {
	Source      Sources     `json:"source" validate:"sources"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Compression Compression `json:"compression" validate:"oneof=0 1 2"`
	Subfolder   string      `json:"subfolder" validate:"relpath"`
	Match       string      `json:"match"`
	Rename      string      `json:"rename"`
	Keep        int         `json:"keep" validate:"gte=0"`
	Active      bool        `json:"active"`
}

// DefaultEntry returns the default table applied to fields absent from a
// config document:
//
//	name, description, subfolder, match, rename: ""
//	compression: none
//	keep:        0 (unlimited)
//	active:      true
func DefaultEntry() BackupEntry {
	return BackupEntry{
		Compression: CompressionNone,
		Keep:        0,
		Active:      true,
	}
}

// UnmarshalJSON decodes an entry on top of DefaultEntry, so absent fields keep
// their documented defaults. The legacy "path" and "from" keys are accepted
// when "source" is missing.
func (e *BackupEntry) UnmarshalJSON(data []byte) error {
	type plain BackupEntry
	p := plain(DefaultEntry())
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	if len(p.Source) == 0 {
		var legacy struct {
			Path Sources `json:"path"`
			From Sources `json:"from"`
		}
		if err := json.Unmarshal(data, &legacy); err != nil {
			return err
		}
		if len(legacy.Path) > 0 {
			p.Source = legacy.Path
		} else {
			p.Source = legacy.From
		}
	}

	*e = BackupEntry(p)
	return nil
}

// Label is the display name of the entry: its name, or the basename of its
// first source.
func (e BackupEntry) Label() string {
	if e.Name != "" {
		return e.Name
	}
	for _, src := range e.Source {
		if strings.TrimSpace(src) != "" {
			return filepath.Base(filepath.Clean(src))
		}
	}
	return "(no source)"
}

// BackupConfig is the root configuration document
type BackupConfig struct {
	DestinationRoot string        `json:"destinationRoot"`
	Entries         []BackupEntry `json:"entries"`
}

// UnmarshalJSON accepts the legacy "path" and "backup" keys as well
func (c *BackupConfig) UnmarshalJSON(data []byte) error {
	type plain BackupConfig
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	if p.DestinationRoot == "" || p.Entries == nil {
		var legacy struct {
			Path   string        `json:"path"`
			Backup []BackupEntry `json:"backup"`
		}
		if err := json.Unmarshal(data, &legacy); err != nil {
			return err
		}
		if p.DestinationRoot == "" {
			p.DestinationRoot = legacy.Path
		}
		if p.Entries == nil {
			p.Entries = legacy.Backup
		}
	}

	if p.Entries == nil {
		p.Entries = []BackupEntry{}
	}

	*c = BackupConfig(p)
	return nil
}

// HasSource reports whether any entry already backs up the given path, compared
// both as written and as resolved by resolve.
func (c *BackupConfig) HasSource(written, resolved string, resolve func(string) (string, error)) bool {
	written = filepath.Clean(written)
	for _, entry := range c.Entries {
		for _, src := range entry.Source {
			if filepath.Clean(src) == written {
				return true
			}
			if abs, err := resolve(src); err == nil && abs == resolved {
				return true
			}
		}
	}
	return false
}
