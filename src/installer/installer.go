// Package installer runs a product installer unattended.
package installer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sikuli-bot/src/execute"
	"sikuli-bot/src/failure"
	"sikuli-bot/src/logger"
)

// Runner installs one build.
type Runner struct {
	Exec execute.Runner
	// Args are passed to the installer; "/SILENT" for Inno Setup.
	Args    []string
	Timeout time.Duration
	// Verifier, when set, must accept the installer before it runs.
	Verifier *Verifier
	Logger   logger.Logger
}

// Install runs path with the configured arguments and waits for it. Any
// non-zero exit is fatal with exit status 1.
func (r *Runner) Install(ctx context.Context, path string) error {
	log := r.Logger
	if log == nil {
		log = logger.NewSilentLogger()
	}

	if r.Verifier != nil {
		signer, err := r.Verifier.Verify(path)
		if err != nil {
			return failure.WithExitCode(err, 1)
		}
		log.Info("Installer signed by %s", signer)
	}

	res := r.Exec.Run(ctx, execute.Command{
		Name:        path,
		Args:        r.Args,
		Timeout:     r.Timeout,
		Description: "install",
	})
	if !res.Success {
		detail := strings.TrimSpace(res.Stderr)
		if detail == "" && res.Error != nil {
			detail = res.Error.Error()
		}
		return failure.WithExitCode(
			fmt.Errorf("%w: %s exited with %d: %s", failure.ErrInstallFailed, path, res.ExitCode, detail), 1)
	}

	log.Info("Installed successfully in %v", res.Duration.Round(time.Second))
	return nil
}
