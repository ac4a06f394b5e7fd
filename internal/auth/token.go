package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingToken = errors.New("missing token")
)

// Authenticator resolves a bearer token to a user id.
type Authenticator interface {
	ValidateToken(ctx context.Context, token string) (string, error)
}

// Claims are the token claims issued by the account service. The user id travels in "id",
// with "sub" accepted as a fallback.
type Claims struct {
	AccountID string `json:"id,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the identity carried by the claims.
func (c *Claims) UserID() string {
	if c.AccountID != "" {
		return c.AccountID
	}
	return c.Subject
}

// JWTAuthenticator validates HS256 tokens signed with a shared secret.
type JWTAuthenticator struct {
	secret []byte
	parser *jwt.Parser
}

// NewJWTAuthenticator returns nil when secret is empty, which disables token checks.
func NewJWTAuthenticator(secret string) *JWTAuthenticator {
	if secret == "" {
		return nil
	}
	return &JWTAuthenticator{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

// FromSecret returns a JWT authenticator, or a nil Authenticator when secret is empty.
func FromSecret(secret string) Authenticator {
	if a := NewJWTAuthenticator(secret); a != nil {
		return a
	}
	return nil
}

// ValidateToken verifies signature and expiry and returns the user id.
func (a *JWTAuthenticator) ValidateToken(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}
	claims := &Claims{}
	parsed, err := a.parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	userID := claims.UserID()
	if userID == "" {
		return "", ErrInvalidToken
	}
	return userID, nil
}

// GenerateToken signs a token for userID. Used by tests and local tooling.
func (a *JWTAuthenticator) GenerateToken(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		AccountID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}
