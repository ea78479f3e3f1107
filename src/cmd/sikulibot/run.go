package main

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"sikuli-bot/src/failure"
	"sikuli-bot/src/pipeline"
)

var dryRun bool

// runCmd performs one run
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Test today's first untested installer (default)",
	Long: `Tests today's first untested installer and reports the result.

Exits 0 when there is nothing to test, the tests ran (whatever their
verdict) or the checkout holds no test suite. Exits non-zero when a step
before the tests fails: git's exit status for a failed clone or checkout,
1 otherwise.

With --dry-run the run stops after resolving the branch: no logs are
purged, nothing is fetched, installed, recorded or posted.

Example:
  sikulibot run --config sikulibot.yaml`,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	if dryRun {
		appConfig.Notify.Enabled = false
	}
	// Secrets are checked once a build is selected
	if err := appConfig.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	bot, err := pipeline.New(appConfig, nil, log, pipeline.Options{
		DryRun:  dryRun,
		Output:  os.Stdout,
		Connect: openBackends,
	})
	if err != nil {
		return err
	}

	res := bot.Run(ctx)
	if res.Err != nil {
		return failure.WithExitCode(res.Err, res.ExitCode)
	}
	return nil
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Scan and resolve the branch only; fetch, install and report nothing")
}
