// Package auth signs and verifies the service's bearer tokens and loads the
// RSA keypair they are signed with.
package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophreview/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType distinguishes access tokens from refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// DefaultIssuer is written to the iss claim and required on verification.
const DefaultIssuer = "gophreview"

// ErrNoSigningKey is returned by Issue on a verify-only codec.
var ErrNoSigningKey = errors.New("codec has no signing key")

// Claims is the token payload: standard registered claims plus the token
// kind and the subject user id.
type Claims struct {
	jwt.RegisteredClaims
	Type   TokenType `json:"type"`
	UserID string    `json:"userid"`
}

// Codec issues RS256 tokens with the private key and verifies them with the
// public key. It holds no mutable state and is safe for concurrent use.
type Codec struct {
	private *rsa.PrivateKey
	public  *rsa.PublicKey
	issuer  string
	now     func() time.Time
}

type CodecOption func(*Codec)

// WithClock replaces time.Now as the source for issuance and expiry checks.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) { c.now = now }
}

// WithIssuer overrides DefaultIssuer.
func WithIssuer(iss string) CodecOption {
	return func(c *Codec) { c.issuer = iss }
}

// NewCodec builds a codec able to both issue and verify.
func NewCodec(keys *KeyPair, opts ...CodecOption) *Codec {
	c := &Codec{private: keys.Private, public: keys.Public}
	return c.apply(opts)
}

// NewVerifier builds a codec that can only verify.
func NewVerifier(public *rsa.PublicKey, opts ...CodecOption) *Codec {
	c := &Codec{public: public}
	return c.apply(opts)
}

func (c *Codec) apply(opts []CodecOption) *Codec {
	c.issuer = DefaultIssuer
	c.now = time.Now
	for _, o := range opts {
		o(c)
	}
	return c
}

// Issue signs a token of the given kind for userID, valid for ttl from now.
// Timestamps are absolute UTC instants in whole seconds; exp is rounded up
// so a token never expires before now+ttl.
func (c *Codec) Issue(kind TokenType, userID string, ttl time.Duration) (string, error) {
	if c.private == nil {
		return "", ErrNoSigningKey
	}

	now := c.now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(ceilSecond(now.Add(ttl))),
			ID:        uuid.NewString(),
		},
		Type:   kind,
		UserID: userID,
	})

	signed, err := token.SignedString(c.private)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func ceilSecond(t time.Time) time.Time {
	if r := t.Truncate(time.Second); r.Before(t) {
		return r.Add(time.Second)
	}
	return t
}

// Verify checks signature, structure and expiry and returns the claims.
// Failures wrap common.ErrTokenSignatureInvalid, common.ErrTokenMalformed or
// common.ErrTokenExpired.
func (c *Codec) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(tokenString, claims, c.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(c.issuer),
	)
	if err != nil {
		return nil, classify(err)
	}

	if claims.UserID == "" || claims.Subject != claims.UserID {
		return nil, fmt.Errorf("%w: missing or inconsistent subject", common.ErrTokenMalformed)
	}
	if claims.Type != TokenTypeAccess && claims.Type != TokenTypeRefresh {
		return nil, fmt.Errorf("%w: unknown token type %q", common.ErrTokenMalformed, claims.Type)
	}

	return claims, nil
}

func (c *Codec) keyFunc(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
		return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
	}
	return c.public, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", common.ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %w", common.ErrTokenSignatureInvalid, err)
	default:
		return fmt.Errorf("%w: %w", common.ErrTokenMalformed, err)
	}
}
