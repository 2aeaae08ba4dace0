// Package crypto derives user identifiers and credential hashes.
package crypto

import (
	"crypto/sha1"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/homedisk/internal/model"
)

// saltSeparator joins username and password before hashing.
const saltSeparator = "$"

// Scheme selects the digest used for credential hashes.
type Scheme string

const (
	// SchemeSHA512 hashes "username$password" with SHA-512.
	SchemeSHA512 Scheme = "sha512"
	// SchemeArgon2id hashes the password with Argon2id and a username-derived salt.
	SchemeArgon2id Scheme = "argon2id"
)

// ParseScheme validates a scheme name coming from configuration.
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(strings.ToLower(s)) {
	case "", SchemeSHA512:
		return SchemeSHA512, nil
	case SchemeArgon2id:
		return SchemeArgon2id, nil
	default:
		return "", fmt.Errorf("unknown hash scheme %q", s)
	}
}

// NormalizeUsername returns the canonical (lowercase) form of a username.
func NormalizeUsername(username string) string {
	return strings.ToLower(username)
}

// DeriveID returns the stable identifier of a user: a UUIDv5 in the X.500
// namespace whose name is the SHA-1 digest of the lowercase username.
// The password plays no part, so the same username always maps to the same ID.
func DeriveID(username string) uuid.UUID {
	sum := sha1.Sum([]byte(NormalizeUsername(username)))
	return uuid.NewV5(uuid.NamespaceX500, string(sum[:]))
}

// Codec hashes and verifies credentials. It is immutable and safe for concurrent use.
type Codec struct {
	scheme Scheme
}

// NewCodec constructs a Codec for the given scheme.
func NewCodec(scheme Scheme) (*Codec, error) {
	s, err := ParseScheme(string(scheme))
	if err != nil {
		return nil, err
	}
	return &Codec{scheme: s}, nil
}

// Scheme reports the configured digest scheme.
func (c *Codec) Scheme() Scheme { return c.scheme }

// Hash returns the hex-encoded credential hash of (username, password).
// The result is deterministic: equal inputs always give equal output.
func (c *Codec) Hash(username, password string) string {
	username = NormalizeUsername(username)
	switch c.scheme {
	case SchemeArgon2id:
		return hex.EncodeToString(hashArgon2id(username, password))
	default:
		sum := sha512.Sum512([]byte(username + saltSeparator + password))
		return hex.EncodeToString(sum[:])
	}
}

// Verify recomputes the hash of (username, password) and compares it with
// stored in constant time.
func (c *Codec) Verify(username, password, stored string) bool {
	got := c.Hash(username, password)
	return subtle.ConstantTimeCompare([]byte(got), []byte(stored)) == 1
}

// NewUser builds the user record for a registration. It does not persist anything.
func (c *Codec) NewUser(username, password string) model.User {
	return model.User{
		ID:           DeriveID(username),
		Username:     NormalizeUsername(username),
		PasswordHash: c.Hash(username, password),
	}
}
