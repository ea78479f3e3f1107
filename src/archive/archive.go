// Package archive keeps a copy of each run's test log in the log
// directory. The archived file's presence marks a build as tested.
package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"sikuli-bot/src/failure"
)

// Path is where the log of buildName is archived.
func Path(logDir, buildName string) string {
	return filepath.Join(logDir, buildName+".txt")
}

// Archive copies rawLog to <logDir>/<buildName>.txt. When rawLog does not
// exist an empty placeholder is created instead, or an existing archive is
// touched so its modification time is now.
func Archive(rawLog, logDir, buildName string) (string, error) {
	target := Path(logDir, buildName)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", failure.ErrArchiveFailed, err)
	}

	src, err := os.Open(rawLog)
	if errors.Is(err, os.ErrNotExist) || rawLog == "" {
		if err := Touch(target); err != nil {
			return "", fmt.Errorf("%w: %v", failure.ErrArchiveFailed, err)
		}
		return target, nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", failure.ErrArchiveFailed, err)
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("%w: %v", failure.ErrArchiveFailed, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("%w: copy %s: %v", failure.ErrArchiveFailed, rawLog, err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", failure.ErrArchiveFailed, err)
	}
	return target, nil
}

// Touch creates path if missing and sets its times to now.
func Touch(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	now := time.Now()
	return os.Chtimes(path, now, now)
}
