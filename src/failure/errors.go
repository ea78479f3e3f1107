// Package failure defines the named failure kinds a run can end with and
// the helpers that turn them into exit codes and operator-facing messages.
package failure

import (
	"errors"
	"fmt"
)

var (
	ErrScanFailed             = errors.New("artifact scan failed")
	ErrMalformedInstallerName = errors.New("malformed installer name")
	ErrTokenMissing           = errors.New("github token missing")
	ErrAuthFailed             = errors.New("authentication failed")
	ErrRateLimited            = errors.New("rate limited")
	ErrSSHKey                 = errors.New("unusable ssh key")
	ErrCloneFailed            = errors.New("git clone failed")
	ErrCheckoutFailed         = errors.New("git checkout failed")
	ErrInstallFailed          = errors.New("installer failed")
	ErrSignatureInvalid       = errors.New("installer signature invalid")
	ErrSuiteFailed            = errors.New("test suite could not be run")
	ErrArchiveFailed          = errors.New("log archive failed")
	ErrNotifyFailed           = errors.New("chat notification failed")
	ErrLocked                 = errors.New("another run holds the lock")
	ErrConfig                 = errors.New("invalid configuration")
)

// kinds maps each sentinel to the short name used in chat and logs.
var kinds = []struct {
	err  error
	name string
}{
	{ErrScanFailed, "scan"},
	{ErrMalformedInstallerName, "installer-name"},
	{ErrTokenMissing, "token"},
	{ErrAuthFailed, "auth"},
	{ErrRateLimited, "rate-limit"},
	{ErrSSHKey, "ssh-key"},
	{ErrCloneFailed, "clone"},
	{ErrCheckoutFailed, "checkout"},
	{ErrInstallFailed, "install"},
	{ErrSignatureInvalid, "signature"},
	{ErrSuiteFailed, "suite"},
	{ErrArchiveFailed, "archive"},
	{ErrNotifyFailed, "notify"},
	{ErrLocked, "locked"},
	{ErrConfig, "config"},
}

// Kind returns the short name of the first failure kind err wraps, or
// "unknown".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "unknown"
}

// ExitError carries the process exit status a fatal failure should end with.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%v (exit %d)", e.Err, e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// WithExitCode wraps err so that ExitCode reports code. A zero or negative
// code is replaced by 1: fatal failures never exit cleanly.
func WithExitCode(err error, code int) error {
	if err == nil {
		return nil
	}
	if code <= 0 {
		code = 1
	}
	return &ExitError{Code: code, Err: err}
}

// ExitCode returns the exit status for err: 0 for nil, the carried code for
// an ExitError anywhere in the chain, 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

// UserError wraps errors with user-friendly messages
type UserError struct {
	Message string
	Hint    string
	Err     error
}

func (e *UserError) Error() string {
	msg := e.Message
	if e.Hint != "" {
		msg += "\n\nHint: " + e.Hint
	}
	if e.Err != nil {
		msg += fmt.Sprintf("\n\nDetails: %v", e.Err)
	}
	return msg
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// WrapError converts known failures to user-friendly messages
func WrapError(err error) error {
	if err == nil {
		return nil
	}

	var userErr *UserError
	if errors.As(err, &userErr) {
		return err
	}

	switch {
	case errors.Is(err, ErrTokenMissing):
		return &UserError{
			Message: "GitHub token not found",
			Hint:    "Set github.token_file in the config file or export GITHUB_TOKEN.",
			Err:     err,
		}
	case errors.Is(err, ErrAuthFailed):
		return &UserError{
			Message: "Authentication failed",
			Hint:    "Check that the GitHub token is valid and can read pull requests of the configured repository.",
			Err:     err,
		}
	case errors.Is(err, ErrMalformedInstallerName):
		return &UserError{
			Message: "Installer name does not match the configured pattern",
			Hint:    "Update branch.pattern (or branch.prefix/branch.suffix) to the current installer naming convention.",
			Err:     err,
		}
	case errors.Is(err, ErrSSHKey):
		return &UserError{
			Message: "SSH key cannot be used for git",
			Hint:    "The key under ssh.home must exist and must not be protected by a passphrase.",
			Err:     err,
		}
	case errors.Is(err, ErrLocked):
		return &UserError{
			Message: "Another run is in progress",
			Hint:    "Wait for it to finish, or remove the lock file if that run was killed.",
			Err:     err,
		}
	}

	return err
}
