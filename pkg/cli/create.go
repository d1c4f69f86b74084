package cli

import (
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/williamokano/bak/pkg/config"
	"github.com/williamokano/bak/pkg/pathutil"
)

func newCreateCommand(a *app) *cobra.Command {
	var destination string

	cmd := &cobra.Command{
		Use:   "create <config>",
		Short: "Create an empty configuration file",
		Long: `Create a configuration file with no entries. Outputs go to --destination,
which must already exist, or to the directory holding the configuration.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configFile, err := pathutil.Resolve(args[0])
			if err != nil {
				return err
			}
			if pathutil.Exists(configFile) {
				return errors.Newf("config file %s already exists", configFile)
			}

			if destination == "" {
				destination = filepath.Dir(configFile)
			}
			root, err := pathutil.Resolve(destination)
			if err != nil {
				return err
			}
			if !pathutil.IsDir(root) {
				return errors.Newf("destination %s doesn't exist or is not a directory", root)
			}

			cfg := &config.BackupConfig{DestinationRoot: root, Entries: []config.BackupEntry{}}
			if err := config.Write(configFile, cfg); err != nil {
				return err
			}

			a.logger.Debug().Str("config", configFile).Str("destination", root).Msg("configuration created")
			a.out.Success("Created %s", a.out.Path(configFile))
			a.out.Println("Backups will be written to", a.out.Path(root))
			return nil
		},
	}

	cmd.Flags().StringVarP(&destination, "destination", "d", "", "destination root (default: the config file's directory)")
	return cmd
}
