// Package main is the sikulibot command. With no subcommand it performs one
// run: pick today's untested installer, fetch the matching test suite,
// install, run the UI tests and post the failures to chat.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sikuli-bot/src/broker"
	"sikuli-bot/src/config"
	"sikuli-bot/src/failure"
	"sikuli-bot/src/logger"
	"sikuli-bot/src/pipeline"
	"sikuli-bot/src/store"
)

var (
	flags     config.Flags
	appConfig *config.Config
	log       logger.Logger
	zapLog    *logger.ZapLogger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sikulibot",
	Short: "sikulibot - continuous UI testing of nightly installers",
	Long: `sikulibot tests the newest installer build that has no test log yet.

One run:
- Finds today's installers and logs and selects the first untested build
- Resolves the build's branch to a repository and ref on GitHub
- Clones the test suite, runs the installer silently and runs the UI tests
- Archives the test log and posts the failing tests to Zulip

It is meant to be started by a scheduler; at most one run happens at a time.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flags.ConfigPath)
		if err != nil {
			return err
		}
		flags.Apply(cfg)
		appConfig = cfg

		zapLog = logger.NewZapLogger(logger.ZapOptions{
			Console:    os.Stderr,
			File:       cfg.Logging.File,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Verbose:    cfg.Logging.Verbose,
		})
		log = zapLog
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if zapLog != nil {
			zapLog.Close()
		}
	},
	RunE: runRun,
}

// openBackends connects the history store and event broker. A run keeps
// going without them: an unreachable backend falls back to memory.
func openBackends(ctx context.Context) *pipeline.Backends {
	backends, err := pipeline.OpenBackends(ctx, appConfig, log)
	if err != nil {
		log.Warn("Run history and events unavailable, keeping them in memory: %v", err)
		return &pipeline.Backends{
			Mode:   pipeline.LocalMode,
			Store:  store.NewMemoryStore(),
			Broker: broker.NewInMemoryBroker(100),
		}
	}
	return backends
}

func init() {
	config.BindFlags(rootCmd.PersistentFlags(), &flags)
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Scan and resolve the branch only; fetch, install and report nothing")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(eventsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, failure.WrapError(err))
		os.Exit(failure.ExitCode(err))
	}
}
