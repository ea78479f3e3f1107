package source

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/ssh"

	"sikuli-bot/src/execute"
	"sikuli-bot/src/failure"
)

func writeKey(t *testing.T, passphrase string) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(priv, "sikuli-bot")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "sikuli-bot", []byte(passphrase))
	}
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFetch(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "workspace")
	os.MkdirAll(filepath.Join(dest, "stale"), 0o755)
	os.WriteFile(filepath.Join(dest, "stale", "old.txt"), []byte("x"), 0o444)

	runner := execute.NewFakeRunner()
	f := &Fetcher{Runner: runner, SSHHome: "E:/application/github"}

	if err := f.Fetch(context.Background(), "bob/InSight", "abc123", dest); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(dest, "stale")); !os.IsNotExist(err) {
		t.Error("workspace was not cleaned")
	}
	if len(runner.Calls) != 2 {
		t.Fatalf("ran %d commands, want 2", len(runner.Calls))
	}

	clone := runner.Calls[0]
	if clone.String() != "git clone git@github.com:bob/InSight "+dest {
		t.Errorf("clone = %q", clone.String())
	}
	if clone.Env["HOME"] != "E:/application/github" {
		t.Errorf("HOME = %q", clone.Env["HOME"])
	}
	if _, ok := clone.Env["GIT_SSH_COMMAND"]; ok {
		t.Error("GIT_SSH_COMMAND set without a key file")
	}

	checkout := runner.Calls[1]
	if checkout.String() != "git -C "+dest+" checkout --quiet abc123" {
		t.Errorf("checkout = %q", checkout.String())
	}
}

func TestFetch_KeyFile(t *testing.T) {
	key := writeKey(t, "")
	runner := execute.NewFakeRunner()
	f := &Fetcher{Runner: runner, KeyFile: key, CloneURL: "https://example.com/%s.git"}

	if err := f.Fetch(context.Background(), "o/r", "main", filepath.Join(t.TempDir(), "ws")); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	clone := runner.Calls[0]
	if clone.Args[1] != "https://example.com/o/r.git" {
		t.Errorf("clone url = %q", clone.Args[1])
	}
	if !strings.Contains(clone.Env["GIT_SSH_COMMAND"], filepath.ToSlash(key)) {
		t.Errorf("GIT_SSH_COMMAND = %q", clone.Env["GIT_SSH_COMMAND"])
	}
}

func TestFetch_CloneFailure(t *testing.T) {
	runner := execute.NewFakeRunner()
	runner.Script("git", execute.Failed(128, "fatal: repository not found"))
	f := &Fetcher{Runner: runner}

	err := f.Fetch(context.Background(), "gone/InSight", "main", filepath.Join(t.TempDir(), "ws"))
	if !errors.Is(err, failure.ErrCloneFailed) {
		t.Fatalf("error = %v, want ErrCloneFailed", err)
	}
	if got := failure.ExitCode(err); got != 128 {
		t.Errorf("ExitCode = %d, want git's 128", got)
	}
	if !strings.Contains(err.Error(), "repository not found") {
		t.Errorf("error lacks git stderr: %v", err)
	}
	if len(runner.Calls) != 1 {
		t.Errorf("checkout attempted after failed clone")
	}
}

func TestFetch_CheckoutFailure(t *testing.T) {
	runner := execute.NewFakeRunner()
	runner.Script("git", &execute.Result{Success: true}, execute.Failed(1, "error: pathspec 'nope' did not match"))
	f := &Fetcher{Runner: runner}

	err := f.Fetch(context.Background(), "o/r", "nope", filepath.Join(t.TempDir(), "ws"))
	if !errors.Is(err, failure.ErrCheckoutFailed) {
		t.Fatalf("error = %v, want ErrCheckoutFailed", err)
	}
	if got := failure.ExitCode(err); got != 1 {
		t.Errorf("ExitCode = %d, want 1", got)
	}
}

func TestFetch_KilledGit(t *testing.T) {
	runner := execute.NewFakeRunner()
	runner.Script("git", execute.Failed(-1, ""))
	f := &Fetcher{Runner: runner}

	err := f.Fetch(context.Background(), "o/r", "main", filepath.Join(t.TempDir(), "ws"))
	if got := failure.ExitCode(err); got != 1 {
		t.Errorf("ExitCode = %d, want 1 for a git that never exited", got)
	}
}

func TestCheckKey(t *testing.T) {
	if err := CheckKey(writeKey(t, "")); err != nil {
		t.Errorf("CheckKey(plain) error = %v", err)
	}

	tests := []struct {
		name string
		path string
	}{
		{name: "passphrase", path: writeKey(t, "hunter2")},
		{name: "missing", path: filepath.Join(t.TempDir(), "nope")},
		{name: "garbage", path: func() string {
			p := filepath.Join(t.TempDir(), "garbage")
			os.WriteFile(p, []byte("not a key"), 0o600)
			return p
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := CheckKey(tt.path); !errors.Is(err, failure.ErrSSHKey) {
				t.Errorf("CheckKey() error = %v, want ErrSSHKey", err)
			}
		})
	}
}

func TestFetch_BadKeyStopsBeforeGit(t *testing.T) {
	runner := execute.NewFakeRunner()
	f := &Fetcher{Runner: runner, KeyFile: writeKey(t, "secret")}

	err := f.Fetch(context.Background(), "o/r", "main", filepath.Join(t.TempDir(), "ws"))
	if !errors.Is(err, failure.ErrSSHKey) {
		t.Fatalf("error = %v, want ErrSSHKey", err)
	}
	if len(runner.Calls) != 0 {
		t.Errorf("git ran with an unusable key")
	}
}

func TestResetDir_ReadOnlyTree(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ws")
	sub := filepath.Join(dir, ".git", "objects")
	os.MkdirAll(sub, 0o755)
	os.WriteFile(filepath.Join(sub, "pack"), []byte("x"), 0o444)
	os.Chmod(sub, 0o555)
	t.Cleanup(func() { os.Chmod(sub, 0o755) })

	if err := ResetDir(dir); err != nil {
		t.Fatalf("ResetDir() error = %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("workspace not recreated: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("workspace not empty: %d entries", len(entries))
	}
}
