package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func signToken(t *testing.T, method jwt.SigningMethod, secret string, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims() Claims {
	return Claims{
		PreferredUsername: "alice",
		Email:             "alice@hdr.local",
		Groups:            []string{"hdr-users"},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "uid=alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestJWTAuthenticator_Valid(t *testing.T) {
	a := NewJWTAuthenticator(testSecret)
	req := httptest.NewRequest("GET", "/history", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.SigningMethodHS256, testSecret, validClaims()))

	id, err := a.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, "alice", id.Username)
	assert.Equal(t, "alice@hdr.local", id.Email)
	assert.True(t, id.InGroup("hdr-users"))
	assert.False(t, id.InGroup("admins"))
}

func TestJWTAuthenticator_FallsBackToSubject(t *testing.T) {
	claims := validClaims()
	claims.PreferredUsername = ""

	a := NewJWTAuthenticator(testSecret)
	req := httptest.NewRequest("GET", "/history", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.SigningMethodHS256, testSecret, claims))

	id, err := a.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, "uid=alice", id.Username)
}

func TestJWTAuthenticator_Rejects(t *testing.T) {
	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	noExpiry := validClaims()
	noExpiry.ExpiresAt = nil

	cases := map[string]struct {
		header string
		want   error
	}{
		"missing":      {"", ErrMissingCredentials},
		"not bearer":   {"Basic abc", ErrInvalidToken},
		"garbage":      {"Bearer not-a-token", ErrInvalidToken},
		"wrong secret": {"Bearer " + signToken(t, jwt.SigningMethodHS256, "another-secret-another-secret-xx", validClaims()), ErrInvalidToken},
		"wrong alg":    {"Bearer " + signToken(t, jwt.SigningMethodHS512, testSecret, validClaims()), ErrInvalidToken},
		"expired":      {"Bearer " + signToken(t, jwt.SigningMethodHS256, testSecret, expired), ErrExpiredToken},
		"no expiry":    {"Bearer " + signToken(t, jwt.SigningMethodHS256, testSecret, noExpiry), ErrInvalidToken},
	}

	a := NewJWTAuthenticator(testSecret)
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/history", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			_, err := a.Authenticate(req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestNoneAuthenticator(t *testing.T) {
	id, err := NewNoneAuthenticator("developer").Authenticate(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, "developer", id.Username)
}
