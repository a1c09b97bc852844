package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned when a presented token is absent, malformed,
// carries a bad signature, or has expired.
var ErrInvalidToken = errors.New("invalid or expired token")

// TokenConfig carries the signing secrets and lifetimes for both token kinds.
// Access and refresh tokens are signed with independent secrets so that one
// can be rotated without invalidating the other kind.
type TokenConfig struct {
	AccessSecret  []byte
	AccessTTL     time.Duration
	RefreshSecret []byte
	RefreshTTL    time.Duration
}

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

func (cfg TokenConfig) withDefaults() TokenConfig {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = defaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = defaultRefreshTTL
	}
	return cfg
}

// Validate reports configuration errors that must fail startup.
func (cfg TokenConfig) Validate() error {
	if len(cfg.AccessSecret) == 0 {
		return errors.New("access token secret is required")
	}
	if len(cfg.RefreshSecret) == 0 {
		return errors.New("refresh token secret is required")
	}
	return nil
}

// Claims is the JWT payload carried by both token kinds.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
}

// TokenPair bundles a freshly issued access/refresh pair with the expiry of
// each token, which callers need to set cookie lifetimes.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// TokenIssuer mints and verifies signed, self-contained session tokens.
// Signature and expiry checks need no store lookup; only refresh tokens are
// additionally matched against server-side state by the session service.
type TokenIssuer struct {
	cfg TokenConfig
	now func() time.Time
}

// NewTokenIssuer constructs an issuer from an explicit configuration value.
func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &TokenIssuer{cfg: cfg.withDefaults(), now: time.Now}, nil
}

// IssueAccessToken mints a short-lived stateless token for the user.
func (i *TokenIssuer) IssueAccessToken(userID string) (string, time.Time, error) {
	return i.issue(userID, i.cfg.AccessSecret, i.cfg.AccessTTL)
}

// IssueRefreshToken mints a longer-lived token for the user. The caller is
// responsible for persisting it as the account's current refresh token.
func (i *TokenIssuer) IssueRefreshToken(userID string) (string, time.Time, error) {
	return i.issue(userID, i.cfg.RefreshSecret, i.cfg.RefreshTTL)
}

// IssuePair mints a fresh access/refresh pair.
func (i *TokenIssuer) IssuePair(userID string) (TokenPair, error) {
	access, accessExpiry, err := i.IssueAccessToken(userID)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExpiry, err := i.IssueRefreshToken(userID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExpiry,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}

// VerifyAccessToken validates signature and expiry and returns the user ID.
func (i *TokenIssuer) VerifyAccessToken(token string) (string, error) {
	return i.verify(token, i.cfg.AccessSecret)
}

// VerifyRefreshToken validates signature and expiry only; the revocation
// check against the stored token belongs to the session service.
func (i *TokenIssuer) VerifyRefreshToken(token string) (string, error) {
	return i.verify(token, i.cfg.RefreshSecret)
}

func (i *TokenIssuer) issue(userID string, secret []byte, ttl time.Duration) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, errors.New("userID is required")
	}
	issuedAt := i.now().UTC()
	expiresAt := issuedAt.Add(ttl)
	// The jti claim keeps two tokens minted within the same second from
	// being byte-identical, which rotation depends on.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: userID,
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (i *TokenIssuer) verify(tokenString string, secret []byte) (string, error) {
	if tokenString == "" {
		return "", ErrInvalidToken
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.UserID == "" {
		return "", ErrInvalidToken
	}
	return claims.UserID, nil
}
