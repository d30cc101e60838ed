package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-health-api/internal/models"
	appErrors "github.com/noah-isme/sma-health-api/pkg/errors"
)

func signTestToken(t *testing.T, secret string, method jwt.SigningMethod, claims *models.JWTClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func nurseClaims(expiresIn time.Duration) *models.JWTClaims {
	now := time.Now().UTC()
	return &models.JWTClaims{
		UserID: "nurse-1",
		Role:   models.RoleNurse,
		Email:  "nurse@school.test",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "identity",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
	}
}

func TestAuthServiceValidateToken(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret", Issuer: "identity"})

	claims, err := svc.ValidateToken(signTestToken(t, "secret", jwt.SigningMethodHS256, nurseClaims(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, "nurse-1", claims.UserID)
	assert.Equal(t, models.RoleNurse, claims.Role)
}

func TestAuthServiceValidateTokenRejects(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret", Issuer: "identity"})

	cases := map[string]string{
		"wrong secret": signTestToken(t, "other", jwt.SigningMethodHS256, nurseClaims(time.Hour)),
		"expired":      signTestToken(t, "secret", jwt.SigningMethodHS256, nurseClaims(-time.Minute)),
		"wrong method": signTestToken(t, "secret", jwt.SigningMethodHS512, nurseClaims(time.Hour)),
		"garbage":      "not-a-token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
		})
	}
}

func TestAuthServiceValidateTokenRequiresKnownRole(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret"})
	claims := nurseClaims(time.Hour)
	claims.Role = "JANITOR"

	_, err := svc.ValidateToken(signTestToken(t, "secret", jwt.SigningMethodHS256, claims))
	require.Error(t, err)
}
