package cli

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/williamokano/bak/pkg/config"
	"github.com/williamokano/bak/pkg/pathutil"
)

// entryFlags are the add flags describing the new entry
var entryFlags = []string{"name", "description", "compression", "subfolder", "match", "rename", "keep", "inactive"}

type addOptions struct {
	name        string
	description string
	compression string
	subfolder   string
	match       string
	rename      string
	keep        int
	inactive    bool
}

func newAddCommand(a *app) *cobra.Command {
	var opts addOptions

	cmd := &cobra.Command{
		Use:   "add <path> <config>",
		Short: "Add a file or folder to a configuration",
		Long: `Add a source path as a new entry. The entry is described by flags; without
any entry flag and with a terminal attached, a form asks for the details.
Paths containing %VAR% placeholders are stored as written.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			written, configFile := args[0], args[1]

			resolved, err := pathutil.Resolve(written)
			if err != nil {
				return err
			}
			if !pathutil.Exists(resolved) {
				return errors.Newf("path %s doesn't exist", resolved)
			}
			if !pathutil.IsFile(configFile) {
				return errors.Newf("config file %s doesn't exist, create it first", configFile)
			}

			cfg, err := config.Read(configFile)
			if err != nil {
				return err
			}
			if cfg.HasSource(written, resolved, pathutil.Resolve) {
				return errors.Newf("%s is already in %s", resolved, configFile)
			}

			source := resolved
			if strings.Contains(written, "%") {
				source = written
			}

			entry := config.DefaultEntry()
			entry.Source = config.Sources{source}

			switch {
			case anyChanged(cmd, entryFlags):
				if entry, err = opts.apply(entry); err != nil {
					return err
				}
			case !a.noInput && a.isTerminal():
				if entry, err = a.prompter.Prompt(cmd.Context(), entry); err != nil {
					return err
				}
			}

			if err := config.ValidateEntry(entry); err != nil {
				return err
			}

			cfg.Entries = append(cfg.Entries, entry)
			if err := config.Write(configFile, cfg); err != nil {
				return err
			}

			a.logger.Debug().Str("config", configFile).Strs("source", entry.Source).Msg("entry added")
			a.out.Success("Added %s as entry %d (%s)", a.out.Path(source), len(cfg.Entries), entry.Compression)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.name, "name", "", "entry name")
	f.StringVar(&opts.description, "description", "", "entry description")
	f.StringVar(&opts.compression, "compression", "none", "none, solid (7z) or zip")
	f.StringVar(&opts.subfolder, "subfolder", "", "subfolder below the destination root")
	f.StringVar(&opts.match, "match", "", "wildcard filter for folder contents, e.g. *.log;*.txt")
	f.StringVar(&opts.rename, "rename", "", "output name template (/s /d /t /o /n /b)")
	f.IntVar(&opts.keep, "keep", 0, "newest outputs to keep when renaming, 0 keeps all")
	f.BoolVar(&opts.inactive, "inactive", false, "add the entry disabled")

	return cmd
}

func (o addOptions) apply(entry config.BackupEntry) (config.BackupEntry, error) {
	compression, err := config.ParseCompression(o.compression)
	if err != nil {
		return entry, err
	}

	entry.Name = o.name
	entry.Description = o.description
	entry.Compression = compression
	entry.Subfolder = o.subfolder
	entry.Match = o.match
	entry.Rename = o.rename
	entry.Keep = o.keep
	entry.Active = !o.inactive
	return entry, nil
}

func anyChanged(cmd *cobra.Command, names []string) bool {
	for _, name := range names {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}
