// Package main serves the sikuli-bot run history over the Model Context
// Protocol on stdin/stdout.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"sikuli-bot/src/branch"
	"sikuli-bot/src/clock"
	"sikuli-bot/src/config"
	"sikuli-bot/src/failure"
	"sikuli-bot/src/logger"
	"sikuli-bot/src/mcp"
	"sikuli-bot/src/pipeline"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, failure.WrapError(err))
		os.Exit(failure.ExitCode(err))
	}
}

func run(args []string) error {
	var flags config.Flags
	fs := pflag.NewFlagSet("mcp-server", pflag.ContinueOnError)
	config.BindFlags(fs, &flags)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return err
	}
	flags.Apply(cfg)

	// stdout carries the protocol
	zapLog := logger.NewZapLogger(logger.ZapOptions{
		Console:    os.Stderr,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Verbose:    cfg.Logging.Verbose,
	})
	defer zapLog.Close()

	backends, err := pipeline.OpenBackends(context.Background(), cfg, zapLog)
	if err != nil {
		return err
	}
	defer backends.Close()

	parser, err := branch.New(cfg.Branch.Pattern, cfg.Branch.Prefix, cfg.Branch.Suffix)
	if err != nil {
		return err
	}

	zapLog.Info("Serving run history over MCP (%s mode)", backends.Mode)
	server := mcp.NewServer(backends.Store, pipeline.NewScanner(cfg), parser, clock.Real())
	return server.Run()
}
