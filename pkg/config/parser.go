package config

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/goccy/go-json"
)

// Read loads, validates and decodes a configuration file. Missing optional
// fields are filled from the default table. Every failure is marked with
// ErrConfigRead.
func Read(configFile string) (*BackupConfig, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to open config file"), ErrConfigRead)
	}

	if err := ValidateDocument(data); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "%s", configFile), ErrConfigRead)
	}

	var config BackupConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to parse config file"), ErrConfigRead)
	}

	return &config, nil
}

// Write replaces the configuration file with cfg, using the canonical field names
func Write(configFile string, cfg *BackupConfig) error {
	out := *cfg
	if out.Entries == nil {
		out.Entries = []BackupEntry{}
	}

	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode config")
	}

	if err := os.WriteFile(configFile, append(data, '\n'), 0644); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}

	return nil
}
