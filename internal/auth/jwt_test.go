package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, subject string, roles []string, expiry time.Duration) string {
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
		},
		Roles: roles,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestJWTVerifierAcceptsValidToken(t *testing.T) {
	v := NewJWTVerifier("test-secret")
	token := signToken(t, "test-secret", "alice", []string{"operator"}, time.Hour)

	p, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, "alice", p.Subject)
	require.True(t, p.HasRole("operator"))
	require.False(t, p.HasRole("admin"))
}

func TestJWTVerifierRejectsExpiredToken(t *testing.T) {
	v := NewJWTVerifier("test-secret")
	token := signToken(t, "test-secret", "alice", nil, -time.Hour)

	_, err := v.Verify(context.Background(), token)
	require.Error(t, err)
}

func TestJWTVerifierRejectsWrongSecret(t *testing.T) {
	v := NewJWTVerifier("test-secret")
	token := signToken(t, "other-secret", "alice", nil, time.Hour)

	_, err := v.Verify(context.Background(), token)
	require.Error(t, err)
}
