// Package cli implements the bak command line: create a configuration, add
// entries to it, and run it.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/williamokano/bak/pkg/config"
	"github.com/williamokano/bak/pkg/logger"
)

// app carries the state shared by all commands of one invocation
type app struct {
	logLevel     string
	logFormat    string
	settingsFile string
	noInput      bool

	settings config.Settings
	logger   zerolog.Logger
	out      *printer

	prompter   Prompter
	isTerminal func() bool
}

func stdinIsTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func newApp() *app {
	return &app{
		settings:   config.DefaultSettings(),
		logger:     zerolog.Nop(),
		prompter:   huhPrompter{},
		isTerminal: stdinIsTerminal,
	}
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "bak",
		Short: "Declarative file and folder backups",
		Long: `bak copies or archives the sources listed in a JSON configuration into a
destination tree, optionally renaming outputs from a template and keeping only
the newest N of them.`,
		Example: `  # Create a configuration backing up into /mnt/backup
  bak create backup.json --destination /mnt/backup

  # Add a folder, zipped, keeping the last 7 archives
  bak add ~/Documents backup.json --compression zip --rename "/o_/d" --keep 7

  # Run every active entry
  bak run backup.json`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format: console, json")
	root.PersistentFlags().StringVar(&a.settingsFile, "settings", "", "YAML settings file")
	root.PersistentFlags().BoolVar(&a.noInput, "no-input", false, "never prompt, use flags and defaults only")

	root.AddCommand(newCreateCommand(a), newAddCommand(a), newRunCommand(a))
	return root
}

// setup loads the tool settings, lets explicit flags win over them, and
// initializes logging and console output
func (a *app) setup(cmd *cobra.Command) error {
	settings, err := config.LoadSettings(a.settingsFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		settings.LogLevel = a.logLevel
	}
	if cmd.Flags().Changed("log-format") {
		settings.LogFormat = a.logFormat
	}

	a.settings = settings
	a.logger = logger.Init(cmd.ErrOrStderr(), settings.LogLevel, settings.LogFormat)
	a.out = newPrinter(cmd.OutOrStdout())
	return nil
}

// run executes the command line args and returns the process exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCommand(newApp())
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		newPrinter(stderr).Error("Error: %v", err)
		return 1
	}
	return 0
}

// Execute runs bak with the process arguments
func Execute(ctx context.Context) int {
	return run(ctx, os.Args[1:], color.Output, color.Error)
}
