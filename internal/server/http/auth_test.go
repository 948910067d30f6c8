package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/syllabus-review-service/internal/config"
	"github.com/helixir/syllabus-review-service/internal/domain"
)

const testSecret = "test-secret-at-least-32-bytes-long!!"

func mintToken(t *testing.T, secret string, method jwt.SigningMethod, claims Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func validClaims() Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "hod-7",
			Issuer:    "helixir-idp",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			ID:        "jti-1",
		},
		Role: "HOD",
	}
}

func TestAuthenticator_Verify(t *testing.T) {
	auth := NewAuthenticator(config.AuthConfig{JWTSecret: testSecret, Issuer: "helixir-idp"})

	t.Run("valid token", func(t *testing.T) {
		claims := validClaims()
		claims.SessionID = "sess-42"
		actor, sid, err := auth.Verify(mintToken(t, testSecret, jwt.SigningMethodHS256, claims))
		require.NoError(t, err)
		assert.Equal(t, domain.Actor{ID: "hod-7", Role: domain.RoleHOD}, actor)
		assert.Equal(t, "sess-42", sid)
	})

	t.Run("session falls back to token ID", func(t *testing.T) {
		_, sid, err := auth.Verify(mintToken(t, testSecret, jwt.SigningMethodHS256, validClaims()))
		require.NoError(t, err)
		assert.Equal(t, "jti-1", sid)
	})

	tests := []struct {
		name   string
		mutate func(*Claims)
		secret string
		method jwt.SigningMethod
	}{
		{name: "wrong secret", secret: "another-secret-entirely-0123456789"},
		{name: "wrong algorithm", method: jwt.SigningMethodHS512},
		{name: "expired", mutate: func(c *Claims) { c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute)) }},
		{name: "no expiry", mutate: func(c *Claims) { c.ExpiresAt = nil }},
		{name: "wrong issuer", mutate: func(c *Claims) { c.Issuer = "someone-else" }},
		{name: "no subject", mutate: func(c *Claims) { c.Subject = "" }},
		{name: "unknown role", mutate: func(c *Claims) { c.Role = "DEAN" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims()
			if tt.mutate != nil {
				tt.mutate(&claims)
			}
			secret := testSecret
			if tt.secret != "" {
				secret = tt.secret
			}
			method := jwt.SigningMethod(jwt.SigningMethodHS256)
			if tt.method != nil {
				method = tt.method
			}
			_, _, err := auth.Verify(mintToken(t, secret, method, claims))
			assert.Error(t, err)
		})
	}
}

func TestAuthenticator_VerifyWithoutSecret(t *testing.T) {
	auth := NewAuthenticator(config.AuthConfig{})
	_, _, err := auth.Verify(mintToken(t, testSecret, jwt.SigningMethodHS256, validClaims()))
	assert.Error(t, err)
}

func TestAuthenticator_Middleware(t *testing.T) {
	var got domain.Actor
	var gotSession string
	var seen bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, seen = actorFromContext(r.Context())
		gotSession = sessionIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	serve := func(auth *Authenticator, header map[string]string) int {
		seen, got, gotSession = false, domain.Actor{}, ""
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		for k, v := range header {
			req.Header.Set(k, v)
		}
		rr := httptest.NewRecorder()
		auth.Middleware(next).ServeHTTP(rr, req)
		return rr.Code
	}

	strict := NewAuthenticator(config.AuthConfig{JWTSecret: testSecret})
	dev := NewAuthenticator(config.AuthConfig{JWTSecret: testSecret, AllowDevHeaders: true})
	token := mintToken(t, testSecret, jwt.SigningMethodHS256, validClaims())

	assert.Equal(t, http.StatusOK, serve(strict, map[string]string{"Authorization": "Bearer " + token}))
	assert.True(t, seen)
	assert.Equal(t, "hod-7", got.ID)
	assert.Equal(t, "jti-1", gotSession)

	assert.Equal(t, http.StatusUnauthorized, serve(strict, map[string]string{"Authorization": "Bearer garbage"}))
	assert.Equal(t, http.StatusUnauthorized, serve(strict, map[string]string{"Authorization": "Basic abc"}))

	// Dev headers are ignored unless enabled.
	devHeaders := map[string]string{headerDevUserID: "lect-1", headerDevUserRole: "lecturer", headerSessionID: "tab-1"}
	assert.Equal(t, http.StatusOK, serve(strict, devHeaders))
	assert.False(t, seen)

	assert.Equal(t, http.StatusOK, serve(dev, devHeaders))
	assert.True(t, seen)
	assert.Equal(t, domain.Actor{ID: "lect-1", Role: domain.RoleLecturer}, got)
	assert.Equal(t, "tab-1", gotSession)

	devHeaders[headerDevUserRole] = "janitor"
	assert.Equal(t, http.StatusUnauthorized, serve(dev, devHeaders))
}
