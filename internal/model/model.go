// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Tokens collects an issued access token and its expiry.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time
}

// User represents an account stored on the server. The password itself is never stored.
type User struct {
	ID           uuid.UUID // UUIDv5 of the lowercase username
	Username     string    // lowercase, unique
	PasswordHash string    // hex digest of "username$password"
	CreatedAt    time.Time
}
