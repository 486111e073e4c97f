package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type stubVerifier struct {
	claims *Claims
}

func (v stubVerifier) Validate(token string) (*Claims, error) {
	if v.claims == nil || token != "oidc-token" {
		return nil, errors.New("rejected")
	}
	return v.claims, nil
}

func (stubVerifier) Close() error { return nil }

func TestBearerToken(t *testing.T) {
	token, err := BearerToken("Bearer abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	token, err = BearerToken("bearer  abc ")
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	_, err = BearerToken("")
	assert.ErrorIs(t, err, ErrMissingToken)

	for _, h := range []string{"abc", "Basic abc", "Bearer "} {
		_, err = BearerToken(h)
		assert.ErrorIs(t, err, ErrMalformedHeader, h)
	}
}

func TestLegacyToken(t *testing.T) {
	token, err := IssueLegacyToken(testSecret, "user-1", "a@example.com", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateLegacyToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, LegacyIssuer, claims.Issuer)

	_, err = ValidateLegacyToken(token, "other-secret")
	assert.Error(t, err)

	_, err = IssueLegacyToken("", "user-1", "", 0)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestLegacyToken_RejectsExpiredAndForeignAlg(t *testing.T) {
	claims := LegacyClaims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = ValidateLegacyToken(expired, testSecret)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, LegacyClaims{UserID: "user-1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ValidateLegacyToken(none, testSecret)
	assert.Error(t, err)
}

func TestAuthenticator(t *testing.T) {
	legacy, err := IssueLegacyToken(testSecret, "user-2", "b@example.com", time.Hour)
	require.NoError(t, err)

	a := NewAuthenticator(stubVerifier{claims: &Claims{UserID: "user-1", Name: "Ada"}}, testSecret)

	id, err := a.FromHeader("Bearer oidc-token")
	require.NoError(t, err)
	assert.Equal(t, &Identity{UserID: "user-1", Name: "Ada"}, id)

	id, err = a.FromHeader("Bearer " + legacy)
	require.NoError(t, err)
	assert.Equal(t, "user-2", id.UserID)

	_, err = a.Validate("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	jwksOnly := NewAuthenticator(stubVerifier{claims: &Claims{UserID: "user-1"}}, "")
	_, err = jwksOnly.Validate(legacy)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewAuthenticator(nil, "").Validate(legacy)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
