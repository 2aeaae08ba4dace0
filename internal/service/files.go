package service

import (
	"context"
	"fmt"

	"github.com/and161185/homedisk/internal/errs"
	"github.com/and161185/homedisk/internal/model"
	"github.com/and161185/homedisk/internal/storage"
)

// ErrUserRoot is returned when an operation would create or delete the user directory itself.
var ErrUserRoot = fmt.Errorf("%w: operation not allowed on the user directory", errs.ErrInvalidPath)

// FileService operates on a user's directory tree.
type FileService interface {
	List(ctx context.Context, u *model.User, rel string) (storage.Listing, error)
	CreateDir(ctx context.Context, u *model.User, rel string) error
	Delete(ctx context.Context, u *model.User, rel string) error
}

// FileServiceImpl is the filesystem-backed FileService.
type FileServiceImpl struct {
	root   string
	lister *storage.Lister
}

// NewFileService constructs a FileService rooted at storageRoot.
func NewFileService(storageRoot string, lister *storage.Lister) *FileServiceImpl {
	return &FileServiceImpl{root: storageRoot, lister: lister}
}

// List lists rel inside the user's directory. An empty rel lists the directory itself.
func (s *FileServiceImpl) List(ctx context.Context, u *model.User, rel string) (storage.Listing, error) {
	abs, err := s.resolve(u, rel)
	if err != nil {
		return storage.Listing{}, err
	}
	return s.lister.List(ctx, abs)
}

// CreateDir creates rel and any missing parents.
func (s *FileServiceImpl) CreateDir(ctx context.Context, u *model.User, rel string) error {
	abs, err := s.resolveBelowRoot(u, rel)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return storage.CreateDir(abs)
}

// Delete removes the file or directory tree at rel.
func (s *FileServiceImpl) Delete(ctx context.Context, u *model.User, rel string) error {
	abs, err := s.resolveBelowRoot(u, rel)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return storage.Remove(abs)
}

func (s *FileServiceImpl) resolve(u *model.User, rel string) (string, error) {
	if u == nil {
		return "", errs.ErrUnauthorized
	}
	return storage.Resolve(s.root, u.Username, rel)
}

func (s *FileServiceImpl) resolveBelowRoot(u *model.User, rel string) (string, error) {
	abs, err := s.resolve(u, rel)
	if err != nil {
		return "", err
	}
	if storage.IsUserRoot(rel) {
		return "", ErrUserRoot
	}
	return abs, nil
}
