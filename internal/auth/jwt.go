package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v4"

	"github.com/camerarecorder/cctv-service/internal/apperrors"
)

// JWTVerifier is the reference AuthVerifier implementation: a
// HMAC-signed, long-lived JWT carrying the principal's subject and roles.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

type claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

func (v *JWTVerifier) Verify(ctx context.Context, token string) (Principal, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Principal{}, apperrors.New(apperrors.KindAuth, "auth.Verify", "invalid or expired token")
	}

	c, ok := parsed.Claims.(*claims)
	if !ok {
		return Principal{}, apperrors.New(apperrors.KindAuth, "auth.Verify", "unexpected claims shape")
	}

	return Principal{Subject: c.Subject, Roles: c.Roles}, nil
}

var _ Verifier = (*JWTVerifier)(nil)
