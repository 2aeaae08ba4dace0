// Package storage maps client paths onto per-user directories and lists them.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/and161185/homedisk/internal/crypto"
	"github.com/and161185/homedisk/internal/errs"
)

const userDirPerm = 0o750

// UserRoot returns the storage directory of username under storageRoot.
func UserRoot(storageRoot, username string) string {
	return filepath.Join(storageRoot, crypto.NormalizeUsername(username))
}

// EnsureUserRoot creates the storage directory of username if it is missing
// and returns its path.
func EnsureUserRoot(storageRoot, username string) (string, error) {
	if err := checkUserDir(crypto.NormalizeUsername(username)); err != nil {
		return "", err
	}
	dir := UserRoot(storageRoot, username)
	if err := os.MkdirAll(dir, userDirPerm); err != nil {
		return "", fmt.Errorf("create user dir: %w", err)
	}
	return dir, nil
}

// Resolve joins storageRoot, userDir and the client-supplied rel path.
//
// The check is purely lexical: rel must be relative and must not climb out of
// the user directory once cleaned. An empty rel (or ".") resolves to the user
// directory itself. The filesystem is never consulted.
func Resolve(storageRoot, userDir, rel string) (string, error) {
	if err := checkUserDir(userDir); err != nil {
		return "", err
	}
	cleaned, err := cleanRelative(rel)
	if err != nil {
		return "", err
	}
	return filepath.Join(storageRoot, userDir, cleaned), nil
}

// IsUserRoot reports whether rel resolves to the user directory itself.
func IsUserRoot(rel string) bool {
	cleaned, err := cleanRelative(rel)
	return err == nil && cleaned == "."
}

func cleanRelative(rel string) (string, error) {
	if strings.ContainsRune(rel, 0) {
		return "", fmt.Errorf("%w: NUL byte in path", errs.ErrInvalidPath)
	}
	if strings.HasPrefix(rel, "/") || strings.HasPrefix(rel, `\`) || filepath.IsAbs(rel) || filepath.VolumeName(rel) != "" {
		return "", fmt.Errorf("%w: %q is absolute", errs.ErrInvalidPath, rel)
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q leaves the user directory", errs.ErrInvalidPath, rel)
	}
	return cleaned, nil
}

// checkUserDir ensures the per-user component is a single, plain path element.
func checkUserDir(userDir string) error {
	if userDir == "" || userDir == "." || userDir == ".." ||
		strings.ContainsAny(userDir, `/\`) || strings.ContainsRune(userDir, 0) {
		return fmt.Errorf("%w: bad user directory %q", errs.ErrInvalidPath, userDir)
	}
	return nil
}
