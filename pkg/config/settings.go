package config

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// SettingsEnvPrefix prefixes environment overrides: BAK_LOG_LEVEL -> log_level
const SettingsEnvPrefix = "BAK_"

// Settings configures the tool itself, as opposed to the backup entries
type Settings struct {
	LogLevel    string `koanf:"log_level"`    // debug, info, warn, error
	LogFormat   string `koanf:"log_format"`   // json, console
	SevenZipBin string `koanf:"sevenzip_bin"` // archiver used for solid compression
	MetricsFile string `koanf:"metrics_file"` // optional Prometheus textfile output
}

// DefaultSettings returns the built-in settings
func DefaultSettings() Settings {
	return Settings{
		LogLevel:    "info",
		LogFormat:   "console",
		SevenZipBin: "7z",
	}
}

// LoadSettings layers defaults, an optional YAML file and BAK_* environment
// variables, later layers winning.
func LoadSettings(path string) (Settings, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultSettings(), "koanf"), nil); err != nil {
		return Settings{}, errors.Wrap(err, "failed to load default settings")
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Settings{}, errors.Wrapf(err, "failed to load settings file %s", path)
		}
	}

	envProvider := env.Provider(SettingsEnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, SettingsEnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Settings{}, errors.Wrap(err, "failed to load settings from environment")
	}

	var s Settings
	if err := k.Unmarshal("", &s); err != nil {
		return Settings{}, errors.Wrap(err, "failed to unmarshal settings")
	}

	return s, nil
}
