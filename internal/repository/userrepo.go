// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/homedisk/internal/model"
	"github.com/gofrs/uuid/v5"
)

// UserRepository persists user records. Implementations report a duplicate
// ID or username as errs.ErrAlreadyExists and a missing user as errs.ErrNotFound.
type UserRepository interface {
	// Create inserts a new user.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByUsername loads a user by its lowercase username.
	GetByUsername(ctx context.Context, username string) (*model.User, error)
}
