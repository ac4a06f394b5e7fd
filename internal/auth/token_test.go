package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTokenRoundTrip(t *testing.T) {
	a := NewJWTAuthenticator("secret")
	token, err := a.GenerateToken("alice", time.Minute)
	require.NoError(t, err)

	userID, err := a.ValidateToken(context.Background(), token)

	require.NoError(t, err)
	assert.Equal(t, "alice", userID)
}

func TestValidateTokenFallsBackToSubject(t *testing.T) {
	a := NewJWTAuthenticator("secret")
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "bob",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	userID, err := a.ValidateToken(context.Background(), token)

	require.NoError(t, err)
	assert.Equal(t, "bob", userID)
}

func TestValidateTokenRejects(t *testing.T) {
	a := NewJWTAuthenticator("secret")

	expired, err := a.GenerateToken("alice", -time.Minute)
	require.NoError(t, err)
	otherKey, err := NewJWTAuthenticator("other").GenerateToken("alice", time.Minute)
	require.NoError(t, err)
	noIdentity, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	wrongAlg, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{AccountID: "alice"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := map[string]string{
		"expired":     expired,
		"wrong key":   otherKey,
		"no identity": noIdentity,
		"wrong alg":   wrongAlg,
		"garbage":     "not.a.token",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := a.ValidateToken(context.Background(), token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	_, err = a.ValidateToken(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestFromSecret(t *testing.T) {
	assert.Nil(t, FromSecret(""))
	assert.Nil(t, NewJWTAuthenticator(""))
	assert.NotNil(t, FromSecret("secret"))
}
