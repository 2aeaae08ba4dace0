package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/and161185/homedisk/internal/errs"
)

// CreateDir creates abs and any missing parents. It fails if abs exists and
// is not a directory.
func CreateDir(abs string) error {
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotADirectory, abs)
	}
	if err := os.MkdirAll(abs, userDirPerm); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	return nil
}

// Remove deletes the file or directory tree at abs.
func Remove(abs string) error {
	info, err := os.Lstat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", errs.ErrNotFound, abs)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnreadableEntry, abs, err)
	}
	if info.IsDir() {
		err = os.RemoveAll(abs)
	} else {
		err = os.Remove(abs)
	}
	if err != nil {
		return fmt.Errorf("remove: %w", err)
	}
	return nil
}
