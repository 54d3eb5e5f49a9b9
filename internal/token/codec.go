// Package token issues and verifies the signed access and refresh tokens that
// carry a principal identifier between requests.
package token

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind separates short-lived access tokens from refresh tokens.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

const minSecretLength = 32

// Verification failures. Each wraps ErrInvalid.
var (
	ErrInvalid          = errors.New("token: invalid")
	ErrMalformed        = fmt.Errorf("%w: malformed", ErrInvalid)
	ErrExpired          = fmt.Errorf("%w: expired", ErrInvalid)
	ErrSignatureInvalid = fmt.Errorf("%w: signature invalid", ErrInvalid)
)

// ErrPrincipalID is returned by Issue for ids Verify would never accept.
var ErrPrincipalID = errors.New("token: principal id must be positive")

// Reason returns a short label for a verification failure, suitable for logs
// and metrics.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrSignatureInvalid):
		return "signature_invalid"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "unknown"
	}
}

// Config holds signing material and lifetimes.
type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// Validate checks that secrets are present, long enough and distinct, and
// that refresh tokens outlive access tokens.
func (c Config) Validate() error {
	if len(c.AccessSecret) < minSecretLength {
		return fmt.Errorf("token: access secret must be at least %d characters", minSecretLength)
	}
	if len(c.RefreshSecret) < minSecretLength {
		return fmt.Errorf("token: refresh secret must be at least %d characters", minSecretLength)
	}
	if c.AccessSecret == c.RefreshSecret {
		return errors.New("token: access and refresh secrets must differ")
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return errors.New("token: lifetimes must be positive")
	}
	if c.RefreshTTL <= c.AccessTTL {
		return errors.New("token: refresh lifetime must exceed access lifetime")
	}
	return nil
}

// Claims is the signed payload.
type Claims struct {
	PrincipalID int64 `json:"uid"`
	Kind        Kind  `json:"kind"`
	jwt.RegisteredClaims
}

// Token is an issued, signed token.
type Token struct {
	Value       string
	Kind        Kind
	PrincipalID int64
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// Pair bundles the access and refresh tokens returned by login and refresh.
type Pair struct {
	Access  Token
	Refresh Token
}

// Option customises a Codec.
type Option func(*Codec)

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// Codec signs and verifies tokens.
type Codec struct {
	secrets map[Kind][]byte
	ttls    map[Kind]time.Duration
	issuer  string
	now     func() time.Time
	parser  *jwt.Parser
}

// NewCodec validates cfg and builds a Codec.
func NewCodec(cfg Config, opts ...Option) (*Codec, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Codec{
		secrets: map[Kind][]byte{
			KindAccess:  []byte(cfg.AccessSecret),
			KindRefresh: []byte(cfg.RefreshSecret),
		},
		ttls: map[Kind]time.Duration{
			KindAccess:  cfg.AccessTTL,
			KindRefresh: cfg.RefreshTTL,
		},
		issuer: cfg.Issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(c.issuer))
	}
	c.parser = jwt.NewParser(parserOpts...)
	return c, nil
}

// Issue signs a token of kind for principalID.
func (c *Codec) Issue(principalID int64, kind Kind) (Token, error) {
	if principalID <= 0 {
		return Token{}, fmt.Errorf("%w: %d", ErrPrincipalID, principalID)
	}
	secret, ok := c.secrets[kind]
	if !ok {
		return Token{}, fmt.Errorf("token: unknown kind %q", kind)
	}
	issuedAt := c.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(c.ttls[kind])
	claims := Claims{
		PrincipalID: principalID,
		Kind:        kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(principalID, 10),
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return Token{}, fmt.Errorf("token: sign %s: %w", kind, err)
	}
	return Token{
		Value:       signed,
		Kind:        kind,
		PrincipalID: principalID,
		IssuedAt:    issuedAt,
		ExpiresAt:   expiresAt,
	}, nil
}

// IssuePair signs a fresh access and refresh token for principalID.
func (c *Codec) IssuePair(principalID int64) (Pair, error) {
	access, err := c.Issue(principalID, KindAccess)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := c.Issue(principalID, KindRefresh)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Access: access, Refresh: refresh}, nil
}

// Verify checks the signature and expiry of raw as a token of kind. Failures
// are one of ErrMalformed, ErrExpired or ErrSignatureInvalid, or the context
// error when ctx is already done.
func (c *Codec) Verify(ctx context.Context, raw string, kind Kind) (Claims, error) {
	if err := ctx.Err(); err != nil {
		return Claims{}, err
	}
	secret, ok := c.secrets[kind]
	if !ok {
		return Claims{}, fmt.Errorf("token: unknown kind %q", kind)
	}
	if raw == "" {
		return Claims{}, ErrMalformed
	}
	var claims Claims
	_, err := c.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return Claims{}, classify(err)
	}
	if claims.Kind != kind || claims.PrincipalID <= 0 {
		return Claims{}, ErrMalformed
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
