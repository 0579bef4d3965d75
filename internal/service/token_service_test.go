package service_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinsight/internal/config"
	"clinsight/internal/domain"
	"clinsight/internal/service"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:         "test-secret-that-is-long-enough",
		Issuer:         "clinsight-test",
		DevTokenExpiry: time.Hour,
	}
}

func TestTokenService_IssueAndValidate(t *testing.T) {
	svc := service.NewTokenService(testJWTConfig())

	token, expiresAt, err := svc.IssueToken(testUser, "doc@example.com", 10*time.Minute)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), expiresAt, 5*time.Second)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, testUser, claims.UserID())
	assert.Equal(t, "doc@example.com", claims.Email)
	assert.Equal(t, "clinsight-test", claims.Issuer)
}

func TestTokenService_DefaultExpiry(t *testing.T) {
	svc := service.NewTokenService(testJWTConfig())

	_, expiresAt, err := svc.IssueToken(testUser, "", 0)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)
}

func TestTokenService_IssueRequiresUser(t *testing.T) {
	svc := service.NewTokenService(testJWTConfig())

	_, _, err := svc.IssueToken("", "", time.Minute)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestTokenService_RejectsWrongSecret(t *testing.T) {
	other := testJWTConfig()
	other.Secret = "a-completely-different-secret"
	token, _, err := service.NewTokenService(other).IssueToken(testUser, "", time.Minute)
	require.NoError(t, err)

	_, err = service.NewTokenService(testJWTConfig()).ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenService_RejectsWrongIssuer(t *testing.T) {
	other := testJWTConfig()
	other.Issuer = "someone-else"
	token, _, err := service.NewTokenService(other).IssueToken(testUser, "", time.Minute)
	require.NoError(t, err)

	_, err = service.NewTokenService(testJWTConfig()).ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenService_RejectsExpired(t *testing.T) {
	cfg := testJWTConfig()
	claims := service.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   testUser,
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{"access"},
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	require.NoError(t, err)

	_, err = service.NewTokenService(cfg).ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenService_RejectsMissingSubject(t *testing.T) {
	cfg := testJWTConfig()
	claims := service.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{"access"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	require.NoError(t, err)

	_, err = service.NewTokenService(cfg).ValidateToken(token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestTokenService_RejectsGarbage(t *testing.T) {
	_, err := service.NewTokenService(testJWTConfig()).ValidateToken("not-a-token")
	assert.Error(t, err)
}
