// Package services contains server-side business logic. This file implements
// SessionService, which signs users up and in, and issues and checks the
// stateless access/refresh token pair.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/gophreview/internal/common"
	"github.com/dmitrijs2005/gophreview/internal/logging"
	"github.com/dmitrijs2005/gophreview/internal/server/auth"
	"github.com/dmitrijs2005/gophreview/internal/server/models"
	"github.com/dmitrijs2005/gophreview/internal/server/repositories/users"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

const (
	// MinPasswordLength is the shortest password accepted at sign-up.
	MinPasswordLength = 8

	// maxIDAttempts bounds the search for an unused user id.
	maxIDAttempts = 100

	dummyPassword = "gophreview-dummy-password"
)

// Tokens is returned by sign-up and sign-in.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	UserID       string `json:"userId"`
	Username     string `json:"username"`
}

// Profile is the public view of a signed-in user.
type Profile struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// PasswordHasher derives and checks salted password hashes.
type PasswordHasher interface {
	Hash(password string) (string, []byte, error)
	Verify(password, encoded string, salt []byte) (bool, error)
}

// TokenCodec issues and verifies signed tokens.
type TokenCodec interface {
	Issue(kind auth.TokenType, userID string, ttl time.Duration) (string, error)
	Verify(token string) (*auth.Claims, error)
}

// AuthRecorder receives one call per finished operation.
type AuthRecorder interface {
	RecordAuth(operation, outcome string)
}

type SessionOption func(*SessionService)

// WithLogger sets the logger used for internal failures.
func WithLogger(l logging.Logger) SessionOption {
	return func(s *SessionService) { s.logger = l }
}

// WithRecorder reports operation outcomes, typically to prometheus.
func WithRecorder(r AuthRecorder) SessionOption {
	return func(s *SessionService) { s.recorder = r }
}

// WithIDGenerator replaces the user id generator.
func WithIDGenerator(fn func() string) SessionOption {
	return func(s *SessionService) { s.newID = fn }
}

// SessionService holds no per-request state; it is safe for concurrent use.
type SessionService struct {
	users      users.Repository
	hasher     PasswordHasher
	codec      TokenCodec
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     logging.Logger
	recorder   AuthRecorder
	newID      func() string

	// dummy credentials verified against when the email is unknown
	dummyHash string
	dummySalt []byte
}

// NewSessionService wires the credential store, the hasher and the codec.
func NewSessionService(repo users.Repository, hasher PasswordHasher, codec TokenCodec, accessTTL, refreshTTL time.Duration, opts ...SessionOption) *SessionService {
	s := &SessionService{
		users:      repo,
		hasher:     hasher,
		codec:      codec,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		logger:     logging.Nop(),
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}

	hash, salt, err := hasher.Hash(dummyPassword)
	if err != nil {
		s.logger.Error(context.Background(), "dummy hash unavailable, sign-in timing is not equalised", "error", err)
	} else {
		s.dummyHash, s.dummySalt = hash, salt
	}
	return s
}

// SignUp validates the input, creates the user and returns a fresh token pair.
func (s *SessionService) SignUp(ctx context.Context, email, username, password string) (tokens *Tokens, err error) {
	defer s.record("sign_up", &err)

	if err := validateSignUp(email, username, password); err != nil {
		return nil, err
	}

	if err := s.ensureFree(ctx, email, username); err != nil {
		return nil, err
	}

	id, err := s.freeUserID(ctx)
	if err != nil {
		return nil, err
	}

	hash, salt, err := s.hasher.Hash(password)
	if err != nil {
		return nil, s.internal(ctx, "sign_up", err)
	}

	user := &models.User{
		ID:           id,
		Email:        email,
		UserName:     username,
		PasswordHash: hash,
		Salt:         salt,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if common.Kind(err) == common.KindConflict {
			return nil, err
		}
		return nil, s.internal(ctx, "sign_up", err)
	}

	return s.issuePair(ctx, "sign_up", user)
}

// SignIn checks the email/password pair. Unknown email and wrong password
// are reported as ErrUserNotFound and ErrIncorrectPassword; both match
// common.ErrorUnauthorized.
func (s *SessionService) SignIn(ctx context.Context, email, password string) (tokens *Tokens, err error) {
	defer s.record("sign_in", &err)

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.burnDummyVerify(password)
			return nil, common.ErrUserNotFound
		}
		return nil, s.internal(ctx, "sign_in", err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash, user.Salt)
	if err != nil {
		return nil, s.internal(ctx, "sign_in", err)
	}
	if !ok {
		return nil, common.ErrIncorrectPassword
	}

	return s.issuePair(ctx, "sign_in", user)
}

// VerifyAccess returns the claims of a valid access token.
func (s *SessionService) VerifyAccess(token string) (*auth.Claims, error) {
	return s.verifyKind(token, auth.TokenTypeAccess, common.ErrTokenIsNotAccess)
}

// VerifyRefresh returns the claims of a valid refresh token.
func (s *SessionService) VerifyRefresh(token string) (*auth.Claims, error) {
	return s.verifyKind(token, auth.TokenTypeRefresh, common.ErrTokenIsNotRefresh)
}

// RefreshAccess trades a refresh token for a new access token. The refresh
// token itself is not rotated.
func (s *SessionService) RefreshAccess(ctx context.Context, refreshToken string) (access string, err error) {
	defer s.record("refresh_access", &err)

	claims, err := s.VerifyRefresh(refreshToken)
	if err != nil {
		return "", err
	}

	access, err = s.codec.Issue(auth.TokenTypeAccess, claims.UserID, s.accessTTL)
	if err != nil {
		return "", s.internal(ctx, "refresh_access", err)
	}
	return access, nil
}

// Profile resolves an access token to the user it was issued for.
func (s *SessionService) Profile(ctx context.Context, accessToken string) (p *Profile, err error) {
	defer s.record("profile", &err)

	claims, err := s.VerifyAccess(accessToken)
	if err != nil {
		return nil, err
	}
	return s.profileByID(ctx, claims.UserID)
}

// ProfileByID loads the profile for an already verified user id.
func (s *SessionService) ProfileByID(ctx context.Context, userID string) (p *Profile, err error) {
	defer s.record("profile", &err)
	return s.profileByID(ctx, userID)
}

func (s *SessionService) profileByID(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, s.internal(ctx, "profile", err)
	}
	return &Profile{UserID: user.ID, Username: user.UserName, Email: user.Email}, nil
}

func (s *SessionService) verifyKind(token string, want auth.TokenType, mismatch error) (*auth.Claims, error) {
	claims, err := s.codec.Verify(token)
	if err != nil {
		return nil, err
	}
	if claims.Type != want {
		return nil, mismatch
	}
	return claims, nil
}

func validateSignUp(email, username, password string) error {
	switch {
	case isBlank(email) || !strings.Contains(email, "@"):
		return common.ErrInvalidEmail
	case isBlank(username):
		return common.ErrInvalidUsername
	case isBlank(password) || utf8.RuneCountInString(password) < MinPasswordLength:
		return common.ErrInvalidPassword
	}
	return nil
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }

func (s *SessionService) ensureFree(ctx context.Context, email, username string) error {
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return common.ErrDuplicateEmail
	} else if !errors.Is(err, common.ErrorNotFound) {
		return s.internal(ctx, "sign_up", err)
	}

	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		return common.ErrDuplicateUsername
	} else if !errors.Is(err, common.ErrorNotFound) {
		return s.internal(ctx, "sign_up", err)
	}
	return nil
}

func (s *SessionService) freeUserID(ctx context.Context) (string, error) {
	for range maxIDAttempts {
		id := s.newID()
		_, err := s.users.FindByID(ctx, id)
		if errors.Is(err, common.ErrorNotFound) {
			return id, nil
		}
		if err != nil {
			return "", s.internal(ctx, "sign_up", err)
		}
	}
	return "", s.internal(ctx, "sign_up", fmt.Errorf("no free user id after %d attempts", maxIDAttempts))
}

func (s *SessionService) issuePair(ctx context.Context, op string, user *models.User) (*Tokens, error) {
	access, err := s.codec.Issue(auth.TokenTypeAccess, user.ID, s.accessTTL)
	if err != nil {
		return nil, s.internal(ctx, op, err)
	}
	refresh, err := s.codec.Issue(auth.TokenTypeRefresh, user.ID, s.refreshTTL)
	if err != nil {
		return nil, s.internal(ctx, op, err)
	}
	return &Tokens{
		AccessToken:  access,
		RefreshToken: refresh,
		UserID:       user.ID,
		Username:     user.UserName,
	}, nil
}

// burnDummyVerify spends the same time on an unknown email as on a known one.
func (s *SessionService) burnDummyVerify(password string) {
	if s.dummyHash == "" {
		return
	}
	_, _ = s.hasher.Verify(password, s.dummyHash, s.dummySalt)
}

func (s *SessionService) internal(ctx context.Context, op string, err error) error {
	s.logger.Error(ctx, "auth operation failed", "operation", op, "error", err)
	return oops.
		Code("AUTH_INTERNAL").
		With("operation", op).
		Wrap(fmt.Errorf("%w: %w", common.ErrorInternal, err))
}

func (s *SessionService) record(op string, errp *error) {
	if s.recorder == nil {
		return
	}
	outcome := "success"
	if *errp != nil {
		outcome = common.Kind(*errp).String()
	}
	s.recorder.RecordAuth(op, outcome)
}
