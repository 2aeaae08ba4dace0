// Package token issues and verifies signed, time-bounded session tokens (HS256 JWT).
package token

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/homedisk/internal/errs"
)

// Verification failures. All of them wrap errs.ErrUnauthorized.
var (
	ErrMalformed        = fmt.Errorf("%w: malformed token", errs.ErrUnauthorized)
	ErrInvalidSignature = fmt.Errorf("%w: invalid token signature", errs.ErrUnauthorized)
	ErrExpired          = fmt.Errorf("%w: token expired", errs.ErrUnauthorized)
)

var signingMethod = jwt.SigningMethodHS256

// Claims is the verified content of a session token.
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Service issues and verifies tokens. It holds only immutable configuration
// and is safe for concurrent use.
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces the wall clock used for issuance and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService constructs a token service signing with secret; tokens live for ttl.
func NewService(secret []byte, ttl time.Duration, opts ...Option) (*Service, error) {
	if len(secret) == 0 {
		return nil, errors.New("token: empty signing secret")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token: non-positive ttl %s", ttl)
	}
	s := &Service{
		secret: append([]byte(nil), secret...),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// NewServiceHours is NewService with the expiry expressed in whole hours.
func NewServiceHours(secret []byte, hours int, opts ...Option) (*Service, error) {
	return NewService(secret, time.Duration(hours)*time.Hour, opts...)
}

// Issue creates a signed token for subject and returns it with its expiry.
func (s *Service) Issue(subject string) (string, time.Time, error) {
	now := s.now()
	iat := jwt.NewNumericDate(now)
	exp := jwt.NewNumericDate(now.Add(s.ttl))
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  iat,
		ExpiresAt: exp,
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("token: sign: %w", err)
	}
	return signed, exp.Time, nil
}

// Verify checks the signature first, then decodes the claims and checks expiry
// against the current clock. Claims are never trusted before the signature matches.
func (s *Service) Verify(tok string) (*Claims, error) {
	// The signature covers everything before the last dot, so a moved or
	// extra separator fails here rather than as a decoding error.
	dot := strings.LastIndexByte(tok, '.')
	if dot <= 0 {
		return nil, ErrMalformed
	}

	sig, err := base64.RawURLEncoding.Strict().DecodeString(tok[dot+1:])
	if err != nil {
		return nil, ErrInvalidSignature
	}
	if err := signingMethod.Verify(tok[:dot], sig, s.secret); err != nil {
		return nil, ErrInvalidSignature
	}

	var rc jwt.RegisteredClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if _, err := parser.ParseWithClaims(tok, &rc, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}); err != nil {
		return nil, ErrMalformed
	}
	if rc.ExpiresAt == nil || rc.Subject == "" {
		return nil, ErrMalformed
	}

	if !s.now().Before(rc.ExpiresAt.Time) {
		return nil, ErrExpired
	}

	c := &Claims{Subject: rc.Subject, ExpiresAt: rc.ExpiresAt.Time}
	if rc.IssuedAt != nil {
		c.IssuedAt = rc.IssuedAt.Time
	}
	return c, nil
}
