package cli

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/williamokano/bak/pkg/archive"
	"github.com/williamokano/bak/pkg/backup"
	"github.com/williamokano/bak/pkg/config"
	"github.com/williamokano/bak/pkg/metrics"
	"github.com/williamokano/bak/pkg/pathutil"
)

func newRunCommand(a *app) *cobra.Command {
	var metricsFile string

	cmd := &cobra.Command{
		Use:   "run <config>",
		Short: "Back up every active entry of a configuration",
		Long: `Run processes the entries in order. A failing entry is reported and the
run moves on; only an unreadable configuration, a missing destination root or
an empty entry list stop it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configFile := args[0]
			if !pathutil.IsFile(configFile) {
				return errors.Newf("config file %s doesn't exist", configFile)
			}

			cfg, err := config.Read(configFile)
			if err != nil {
				return err
			}

			executor := backup.NewExecutor(
				archive.NewRegistry(a.settings.SevenZipBin),
				a.logger,
				backup.WithEntryHooks(a.printEntryHeader, a.printResult),
			)
			summary, err := executor.Run(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			a.printTotals(summary)

			if metricsFile == "" {
				metricsFile = a.settings.MetricsFile
			}
			if metricsFile != "" {
				m := metrics.New()
				m.Observe(summary)
				if err := m.WriteTextfile(metricsFile); err != nil {
					a.logger.Warn().Err(err).Msg("failed to write metrics")
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write run metrics in Prometheus text format to this file")
	return cmd
}

func (a *app) printEntryHeader(index int, entry config.BackupEntry) {
	a.out.Println(fmt.Sprintf("%d. %s", index+1, entry.Label()))
	if entry.Description != "" {
		a.out.Println("   " + a.out.Faint(entry.Description))
	}
}

func (a *app) printResult(r backup.Result) {
	switch r.Status {
	case backup.StatusDone:
		for _, o := range r.Outputs {
			a.out.Success("   -> %s", a.out.Path(o))
		}
		if r.Pruned > 0 {
			a.out.Println(fmt.Sprintf("   removed %d old backup(s)", r.Pruned))
		}
	case backup.StatusFailed:
		a.out.Error("   failed: %v", r.Error)
	default:
		a.out.Warn("   %s", statusText(r.Status))
	}
}

func (a *app) printTotals(summary backup.Summary) {
	a.out.Println(fmt.Sprintf("\n%d done, %d skipped, %d failed in %s",
		summary.Count(backup.StatusDone),
		summary.Skipped(),
		summary.Count(backup.StatusFailed),
		summary.Duration.Round(time.Millisecond),
	))
}

func statusText(s backup.Status) string {
	switch s {
	case backup.StatusSkippedInactive:
		return "skipped: inactive"
	case backup.StatusSkippedEmpty:
		return "skipped: no source configured"
	case backup.StatusSkippedNoSource:
		return "skipped: nothing found to back up"
	default:
		return string(s)
	}
}
