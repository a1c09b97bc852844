package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"

	"clipstream/internal/models"
)

var (
	// ErrTokenRevoked is returned when a refresh token verifies
	// cryptographically but no longer matches the stored value, which is
	// the state after logout or a prior rotation.
	ErrTokenRevoked = errors.New("refresh token revoked")

	// ErrIdentityNotFound is returned when the token names an account that
	// no longer exists.
	ErrIdentityNotFound = errors.New("account not found")
)

// IdentityStore is the persistence contract the session service needs. A
// false boolean from RotateRefreshToken means the stored token changed
// between read and write and the rotation was not applied.
type IdentityStore interface {
	GetUser(ctx context.Context, id string) (models.User, bool, error)
	FindUserByLogin(ctx context.Context, login string) (models.User, bool, error)
	SetRefreshToken(ctx context.Context, id, token string) error
	RotateRefreshToken(ctx context.Context, id, current, next string) (bool, error)
	ClearRefreshToken(ctx context.Context, id string) error
}

// SessionService implements credential login, refresh-token rotation, and
// logout over a token issuer and an identity store. At most one refresh token
// is valid per account; overwriting or clearing the stored value is the only
// revocation mechanism.
type SessionService struct {
	issuer *TokenIssuer
	store  IdentityStore
	logger *slog.Logger
}

func NewSessionService(issuer *TokenIssuer, store IdentityStore, logger *slog.Logger) *SessionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{issuer: issuer, store: store, logger: logger}
}

// Issuer exposes the underlying token issuer for access-token verification.
func (s *SessionService) Issuer() *TokenIssuer {
	return s.issuer
}

// Login verifies credentials and starts a session, replacing any previously
// stored refresh token for the account.
func (s *SessionService) Login(ctx context.Context, login, password string) (models.User, TokenPair, error) {
	if password == "" {
		return models.User{}, TokenPair{}, ErrInvalidCredentials
	}
	user, ok, err := s.store.FindUserByLogin(ctx, login)
	if err != nil {
		return models.User{}, TokenPair{}, fmt.Errorf("find account: %w", err)
	}
	if !ok || user.PasswordHash == "" {
		return models.User{}, TokenPair{}, ErrInvalidCredentials
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return models.User{}, TokenPair{}, ErrInvalidCredentials
		}
		return models.User{}, TokenPair{}, err
	}
	pair, err := s.issuer.IssuePair(user.ID)
	if err != nil {
		return models.User{}, TokenPair{}, err
	}
	if err := s.store.SetRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return models.User{}, TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}
	user.RefreshToken = pair.RefreshToken
	return user, pair, nil
}

// Refresh rotates a presented refresh token into a fresh pair. The token must
// verify cryptographically, name an existing account, and match the stored
// value byte for byte; the stored slot is then swapped atomically so that
// concurrent refreshes admit exactly one winner.
func (s *SessionService) Refresh(ctx context.Context, presented string) (models.User, TokenPair, error) {
	userID, err := s.issuer.VerifyRefreshToken(presented)
	if err != nil {
		return models.User{}, TokenPair{}, ErrInvalidToken
	}
	user, ok, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return models.User{}, TokenPair{}, fmt.Errorf("load account: %w", err)
	}
	if !ok {
		return models.User{}, TokenPair{}, ErrIdentityNotFound
	}
	if user.RefreshToken == "" ||
		subtle.ConstantTimeCompare([]byte(user.RefreshToken), []byte(presented)) != 1 {
		return models.User{}, TokenPair{}, ErrTokenRevoked
	}
	pair, err := s.issuer.IssuePair(user.ID)
	if err != nil {
		return models.User{}, TokenPair{}, err
	}
	swapped, err := s.store.RotateRefreshToken(ctx, user.ID, presented, pair.RefreshToken)
	if err != nil {
		return models.User{}, TokenPair{}, fmt.Errorf("rotate refresh token: %w", err)
	}
	if !swapped {
		return models.User{}, TokenPair{}, ErrTokenRevoked
	}
	user.RefreshToken = pair.RefreshToken
	return user, pair, nil
}

// Logout clears the stored refresh token, forcing every future refresh with
// the old token into the revoked rejection. Calling it for an account with no
// active session succeeds.
func (s *SessionService) Logout(ctx context.Context, userID string) error {
	if err := s.store.ClearRefreshToken(ctx, userID); err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}
