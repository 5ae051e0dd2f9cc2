package server

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/vulture/internal/config"
)

func newTestJWTService(t *testing.T, secret string) *JWTService {
	t.Helper()
	cfg, err := config.NewJWTConfig(config.AuthSettings{JWTSecret: secret, JWTExpirationHours: 1})
	require.NoError(t, err)
	return NewJWTService(cfg)
}

func TestJWTService_RoundTrip(t *testing.T) {
	svc := newTestJWTService(t, "test-secret")

	token, err := svc.GenerateToken("operator")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "operator", claims.Subject)
	assert.Equal(t, tokenIssuer, claims.Issuer)

	sub, err := svc.AsTokenValidator().ValidateToken(token)
	require.NoError(t, err)
	operator, err := sub.GetSubject()
	require.NoError(t, err)
	assert.Equal(t, "operator", operator)
}

func TestJWTService_RejectsForeignSecret(t *testing.T) {
	token, err := newTestJWTService(t, "secret-a").GenerateToken("operator")
	require.NoError(t, err)

	_, err = newTestJWTService(t, "secret-b").ValidateToken(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestJWTService_RejectsExpired(t *testing.T) {
	svc := newTestJWTService(t, "test-secret")
	issued := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issued }

	token, err := svc.GenerateToken("operator")
	require.NoError(t, err)

	svc.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestJWTService_RejectsMalformedAndEmpty(t *testing.T) {
	svc := newTestJWTService(t, "test-secret")

	_, err := svc.ValidateToken("")
	assert.Error(t, err)

	_, err = svc.ValidateToken("not.a.jwt")
	require.Error(t, err)
	assert.ErrorIs(t, err, jwt.ErrTokenMalformed)
}

func TestJWTService_RejectsOtherSigningMethod(t *testing.T) {
	svc := newTestJWTService(t, "test-secret")

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "operator", Issuer: tokenIssuer})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}
