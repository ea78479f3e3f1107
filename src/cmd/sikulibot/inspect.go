package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"sikuli-bot/src/artifact"
	"sikuli-bot/src/branch"
	"sikuli-bot/src/clock"
	"sikuli-bot/src/contracts"
	"sikuli-bot/src/logger"
	"sikuli-bot/src/pipeline"
	"sikuli-bot/src/tui"
)

var (
	historyLimit int
	jsonOutput   bool
)

// scanCmd shows what the next run would pick
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Show today's installers and logs and the build a run would test",
	Long: `Lists today's installers and test logs and names the first untested
installer with its branch. Read-only: stale logs are not purged.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sel, err := pipeline.NewScanner(appConfig).Scan(clock.StartOfDay(time.Now()), false)
		if err != nil {
			return err
		}
		parser, err := branch.New(appConfig.Branch.Pattern, appConfig.Branch.Prefix, appConfig.Branch.Suffix)
		if err != nil {
			return err
		}
		printSelection(os.Stdout, sel, parser)
		return nil
	},
}

// historyCmd prints recorded runs
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		backends, err := pipeline.OpenBackends(cmd.Context(), appConfig, log)
		if err != nil {
			return err
		}
		defer backends.Close()

		runs, err := backends.Store.ListRuns(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(runs)
		}
		printHistory(os.Stdout, runs)
		return nil
	},
}

// viewCmd launches the history TUI
var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Browse recorded runs in an interactive TUI",
	Long: `Browses recorded runs. With Redpanda brokers configured the header
follows runs as they happen and the list reloads when one finishes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// The TUI owns the terminal
		quiet := logger.NewSilentLogger()
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		backends, err := pipeline.OpenBackends(ctx, appConfig, quiet)
		if err != nil {
			return err
		}
		defer backends.Close()

		var events <-chan contracts.RunEvent
		if backends.Mode == pipeline.DistributedMode {
			events, err = pipeline.StreamEvents(ctx, backends.Broker, "sikulibot-view-"+uuid.NewString(), quiet)
			if err != nil {
				return err
			}
		}

		load := func() ([]contracts.RunRecord, error) {
			return backends.Store.ListRuns(ctx, 0)
		}
		return tui.Start(load, events)
	},
}

// eventsCmd tails run events
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Print run events as they are published",
	Long: `Prints every stage transition of runs published to the broker until
interrupted. Only useful with Redpanda brokers configured: without them
events never leave the process that runs the bot.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		backends, err := pipeline.OpenBackends(ctx, appConfig, log)
		if err != nil {
			return err
		}
		defer backends.Close()
		if backends.Mode != pipeline.DistributedMode {
			log.Warn("No brokers configured; only events from this process would appear")
		}

		events, err := pipeline.StreamEvents(ctx, backends.Broker, "sikulibot-events-"+uuid.NewString(), log)
		if err != nil {
			return err
		}
		for ev := range events {
			if jsonOutput {
				data, _ := json.Marshal(ev)
				fmt.Println(string(data))
				continue
			}
			fmt.Println(formatEvent(ev))
		}
		return nil
	},
}

func printSelection(w io.Writer, sel *artifact.Selection, parser *branch.Parser) {
	fmt.Fprintf(w, "Installers today (%d):\n", len(sel.Installers))
	for _, name := range sel.Installers {
		fmt.Fprintf(w, "  %s\n", name)
	}
	fmt.Fprintf(w, "Logs today (%d):\n", len(sel.Logs))
	for _, name := range sel.Logs {
		fmt.Fprintf(w, "  %s\n", name)
	}

	if sel.Installer == "" {
		fmt.Fprintln(w, "No new installer today")
		return
	}
	fmt.Fprintf(w, "Next: %s\n", sel.Installer)
	if b, err := parser.Branch(sel.Installer); err != nil {
		fmt.Fprintf(w, "Branch: %v\n", err)
	} else {
		fmt.Fprintf(w, "Branch: %s\n", b)
	}
}

func printHistory(w io.Writer, runs []contracts.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return
	}
	fmt.Fprintf(w, "%-16s  %-12s  %-8s  %s\n", "STARTED", "STATUS", "FAILURES", "BUILD")
	for _, r := range runs {
		failures := fmt.Sprintf("%d", len(r.Failures))
		if len(r.NewFailures) > 0 {
			failures += fmt.Sprintf(" (+%d)", len(r.NewFailures))
		}
		build := r.BuildName
		if r.Error != "" {
			build += "  " + firstLine(r.Error)
		}
		fmt.Fprintf(w, "%-16s  %-12s  %-8s  %s\n",
			r.StartedAt.Format("2006-01-02 15:04"), r.Status, failures, build)
	}
}

func formatEvent(ev contracts.RunEvent) string {
	parts := []string{ev.Timestamp.Format("15:04:05"), ev.Stage, string(ev.Status)}
	if ev.BuildName != "" {
		parts = append(parts, ev.BuildName)
	}
	if ev.Stage == contracts.StageDone && ev.Failures > 0 {
		parts = append(parts, fmt.Sprintf("%d failures", ev.Failures))
	}
	if ev.Message != "" && ev.Message != string(ev.Status) {
		parts = append(parts, ev.Message)
	}
	return strings.Join(parts, "  ")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show (0 for all)")
	historyCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print runs as JSON")
	eventsCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print events as JSON lines")
}
