// Package source prepares a clean checkout of the branch an installer was
// built from.
package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"sikuli-bot/src/execute"
	"sikuli-bot/src/failure"
	"sikuli-bot/src/logger"
)

// Fetcher clones a remote into a workspace and checks out a ref.
type Fetcher struct {
	Runner execute.Runner
	// CloneURL is a fmt template taking "owner/repo".
	CloneURL string
	// SSHHome becomes HOME for git so ssh finds its key and known_hosts.
	SSHHome string
	// KeyFile, when set, is passed to ssh explicitly and checked up front.
	KeyFile string
	Timeout time.Duration
	Logger  logger.Logger
}

// Fetch replaces dest with a fresh clone of remote at ref.
func (f *Fetcher) Fetch(ctx context.Context, remote, ref, dest string) error {
	if f.KeyFile != "" {
		if err := CheckKey(f.KeyFile); err != nil {
			return failure.WithExitCode(err, 1)
		}
	}

	if err := ResetDir(dest); err != nil {
		return failure.WithExitCode(err, 1)
	}

	env := map[string]string{}
	if f.SSHHome != "" {
		env["HOME"] = f.SSHHome
	}
	if f.KeyFile != "" {
		env["GIT_SSH_COMMAND"] = fmt.Sprintf(`ssh -i "%s" -o IdentitiesOnly=yes`, filepath.ToSlash(f.KeyFile))
	}

	cloneURL := f.cloneURL(remote)
	f.log().Info("Cloning %s into %s", cloneURL, dest)
	res := f.Runner.Run(ctx, execute.Command{
		Name:        "git",
		Args:        []string{"clone", cloneURL, dest},
		Env:         env,
		Timeout:     f.Timeout,
		Description: "clone " + remote,
	})
	if !res.Success {
		return failure.WithExitCode(
			fmt.Errorf("%w: %s: %s", failure.ErrCloneFailed, remote, gitDetail(res)), res.ExitCode)
	}

	f.log().Info("Checking out %s:%s", remote, ref)
	res = f.Runner.Run(ctx, execute.Command{
		Name:        "git",
		Args:        []string{"-C", dest, "checkout", "--quiet", ref},
		Env:         env,
		Timeout:     f.Timeout,
		Description: "checkout " + ref,
	})
	if !res.Success {
		return failure.WithExitCode(
			fmt.Errorf("%w: %s:%s: %s", failure.ErrCheckoutFailed, remote, ref, gitDetail(res)), res.ExitCode)
	}
	return nil
}

func (f *Fetcher) cloneURL(remote string) string {
	tmpl := f.CloneURL
	if tmpl == "" {
		tmpl = "git@github.com:%s"
	}
	return fmt.Sprintf(tmpl, remote)
}

func (f *Fetcher) log() logger.Logger {
	if f.Logger == nil {
		return logger.NewSilentLogger()
	}
	return f.Logger
}

func gitDetail(res *execute.Result) string {
	if msg := strings.TrimSpace(res.Stderr); msg != "" {
		return msg
	}
	if res.Error != nil {
		return res.Error.Error()
	}
	return fmt.Sprintf("exit status %d", res.ExitCode)
}

// ResetDir removes dir and everything below it, then recreates it empty.
// Files left read-only by a previous checkout are made writable and the
// removal is retried once.
func ResetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		makeWritable(dir)
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("clean workspace %s: %w", dir, err)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create workspace %s: %w", dir, err)
	}
	return nil
}

func makeWritable(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		_ = os.Chmod(path, info.Mode().Perm()|0o200)
		return nil
	})
}

// CheckKey verifies that the private key at path exists and can be used
// without a passphrase, since git runs unattended.
func CheckKey(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", failure.ErrSSHKey, err)
	}
	if _, err := ssh.ParsePrivateKey(data); err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			return fmt.Errorf("%w: %s is passphrase protected", failure.ErrSSHKey, path)
		}
		return fmt.Errorf("%w: %s: %v", failure.ErrSSHKey, path, err)
	}
	return nil
}
