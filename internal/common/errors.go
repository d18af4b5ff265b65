// Package common defines shared constants and sentinel errors used across
// the gophreview server and tools. Callers should use errors.Is to match
// these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Sign-up input validation.
	ErrInvalidEmail    = errors.New("invalid email")
	ErrInvalidUsername = errors.New("invalid username")
	ErrInvalidPassword = errors.New("invalid password")

	// Sign-up conflicts.
	ErrDuplicateEmail    = errors.New("user with that email already exists")
	ErrDuplicateUsername = errors.New("user with that username already exists")

	// Sign-in failures. Both must look the same to the client.
	ErrUserNotFound      = fmt.Errorf("%w: user not found", ErrorUnauthorized)
	ErrIncorrectPassword = fmt.Errorf("%w: incorrect password", ErrorUnauthorized)

	// Auth errors (invalid or malformed token).
	ErrInvalidToken          = errors.New("invalid token")
	ErrTokenExpired          = fmt.Errorf("%w: token expired", ErrInvalidToken)
	ErrTokenMalformed        = fmt.Errorf("%w: token malformed", ErrInvalidToken)
	ErrTokenSignatureInvalid = fmt.Errorf("%w: token signature invalid", ErrInvalidToken)
	ErrTokenIsNotAccess      = fmt.Errorf("%w: token is not an access token", ErrInvalidToken)
	ErrTokenIsNotRefresh     = fmt.Errorf("%w: token is not a refresh token", ErrInvalidToken)

	// Key material could not be loaded; the auth surface stays disabled.
	ErrKeysUnavailable = errors.New("signing keys unavailable")
)

// ErrorKind groups errors by how the caller may react to them.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindConflict
	KindUnauthorized
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

// Kind classifies err. Anything not recognised is internal.
func Kind(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrInvalidEmail), errors.Is(err, ErrInvalidUsername), errors.Is(err, ErrInvalidPassword):
		return KindValidation
	case errors.Is(err, ErrDuplicateEmail), errors.Is(err, ErrDuplicateUsername):
		return KindConflict
	case errors.Is(err, ErrorUnauthorized), errors.Is(err, ErrInvalidToken):
		return KindUnauthorized
	default:
		return KindInternal
	}
}
