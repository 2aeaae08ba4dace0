// Package service contains application services for authentication and file access.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/homedisk/internal/crypto"
	"github.com/and161185/homedisk/internal/errs"
	"github.com/and161185/homedisk/internal/limiter"
	"github.com/and161185/homedisk/internal/model"
	"github.com/and161185/homedisk/internal/repository"
	"github.com/and161185/homedisk/internal/storage"
	"github.com/and161185/homedisk/internal/token"
)

// AuthService defines registration, login and bearer token authentication.
type AuthService interface {
	// Register creates the user, its storage directory, and returns a session token.
	Register(ctx context.Context, username, password string) (model.Tokens, error)
	// Login applies rate-limiting and authenticates the user.
	Login(ctx context.Context, username, password, ip string) (model.Tokens, error)
	// Authenticate resolves a bearer token to its user.
	Authenticate(ctx context.Context, accessToken string) (*model.User, error)
}

// CredentialCodec derives and checks stored credentials. *crypto.Codec implements it.
type CredentialCodec interface {
	Hash(username, password string) string
	Verify(username, password, stored string) bool
	NewUser(username, password string) model.User
}

var _ CredentialCodec = (*crypto.Codec)(nil)

// decoyUsername is hashed against when a login names no existing user.
const decoyUsername = "homedisk-no-such-user"

// AuthServiceImpl is the default AuthService.
type AuthServiceImpl struct {
	users       repository.UserRepository
	codec       CredentialCodec
	tokens      *token.Service
	lim         limiter.Limiter
	storageRoot string
	decoyHash   string
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, codec CredentialCodec, tokens *token.Service, lim limiter.Limiter, storageRoot string) *AuthServiceImpl {
	return &AuthServiceImpl{
		users:       users,
		codec:       codec,
		tokens:      tokens,
		lim:         lim,
		storageRoot: storageRoot,
		decoyHash:   codec.Hash(decoyUsername, decoyUsername),
	}
}

// Register validates the credentials, creates the storage directory and the
// user record, then issues a token. The directory exists before the user does,
// so a token can never point at a user without storage.
func (s *AuthServiceImpl) Register(ctx context.Context, username, password string) (model.Tokens, error) {
	if err := ValidateCredentials(username, password); err != nil {
		return model.Tokens{}, err
	}
	if _, err := storage.EnsureUserRoot(s.storageRoot, username); err != nil {
		return model.Tokens{}, err
	}

	u := s.codec.NewUser(username, password)
	if err := s.users.Create(ctx, &u); err != nil {
		return model.Tokens{}, err
	}
	return s.issue(u.ID)
}

// Login authenticates with rate limiting by (username, ip).
func (s *AuthServiceImpl) Login(ctx context.Context, username, password, ip string) (model.Tokens, error) {
	username = crypto.NormalizeUsername(username)
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, username, ipHash)
	if err != nil {
		return model.Tokens{}, err
	}
	if !allowed {
		return model.Tokens{}, errs.ErrRateLimited
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.Tokens{}, err
	}
	var ok bool
	if err != nil {
		// Unknown users cost one Verify, the same as a wrong password.
		s.codec.Verify(username, password, s.decoyHash)
	} else {
		ok = s.codec.Verify(username, password, u.PasswordHash)
	}
	if !ok {
		if blocked, _, ferr := s.lim.Failure(ctx, username, ipHash); ferr == nil && blocked {
			return model.Tokens{}, errs.ErrRateLimited
		}
		// Unknown user and wrong password look the same to the caller.
		return model.Tokens{}, errs.ErrUnauthorized
	}

	// Success: reset counters (best-effort).
	_ = s.lim.Success(ctx, username, ipHash)

	return s.issue(u.ID)
}

// Authenticate verifies the token and loads its subject.
func (s *AuthServiceImpl) Authenticate(ctx context.Context, accessToken string) (*model.User, error) {
	claims, err := s.tokens.Verify(accessToken)
	if err != nil {
		return nil, err
	}
	id, err := uuid.FromString(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: subject is not a user id", token.ErrMalformed)
	}
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown user", errs.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *AuthServiceImpl) issue(id uuid.UUID) (model.Tokens, error) {
	access, exp, err := s.tokens.Issue(id.String())
	if err != nil {
		return model.Tokens{}, err
	}
	return model.Tokens{AccessToken: access, ExpiresAt: exp}, nil
}
