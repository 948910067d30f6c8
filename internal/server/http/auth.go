package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/helixir/syllabus-review-service/internal/config"
	"github.com/helixir/syllabus-review-service/internal/domain"
)

// Headers accepted when dev headers are enabled.
const (
	headerDevUserID   = "X-User-ID"
	headerDevUserRole = "X-User-Role"
	headerSessionID   = "X-Session-ID"
)

// Claims are the bearer token claims issued by the identity provider.
type Claims struct {
	jwt.RegisteredClaims
	Role      string `json:"role"`
	SessionID string `json:"sid,omitempty"`
}

// Authenticator verifies HMAC-signed bearer tokens and turns them into actors.
type Authenticator struct {
	secret          []byte
	issuer          string
	allowDevHeaders bool
}

// NewAuthenticator creates an Authenticator from auth settings.
func NewAuthenticator(cfg config.AuthConfig) *Authenticator {
	return &Authenticator{
		secret:          []byte(cfg.JWTSecret),
		issuer:          cfg.Issuer,
		allowDevHeaders: cfg.AllowDevHeaders,
	}
}

// Middleware authenticates the request. Requests with an invalid token are
// rejected; requests without one continue anonymously (or as the dev-header
// actor) and are rejected later by requireActor.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		switch {
		case header != "":
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				writeErrorCode(w, http.StatusUnauthorized, "unauthorized", "expected a bearer token")
				return
			}
			actor, sessionID, err := a.Verify(strings.TrimSpace(token))
			if err != nil {
				writeErrorCode(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}
			if sessionID == "" {
				sessionID = r.Header.Get(headerSessionID)
			}
			r = r.WithContext(withActor(r.Context(), actor, sessionID))

		case a.allowDevHeaders && r.Header.Get(headerDevUserID) != "":
			role, ok := domain.ParseRole(r.Header.Get(headerDevUserRole))
			if !ok {
				writeErrorCode(w, http.StatusUnauthorized, "unauthorized", "unknown role")
				return
			}
			actor := domain.Actor{ID: r.Header.Get(headerDevUserID), Role: role}
			r = r.WithContext(withActor(r.Context(), actor, r.Header.Get(headerSessionID)))
		}
		next.ServeHTTP(w, r)
	})
}

// Verify parses and validates token.
func (a *Authenticator) Verify(token string) (domain.Actor, string, error) {
	if len(a.secret) == 0 {
		return domain.Actor{}, "", errors.New("token verification is not configured")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return domain.Actor{}, "", fmt.Errorf("parse token: %w", err)
	}
	if claims.Subject == "" {
		return domain.Actor{}, "", errors.New("token has no subject")
	}
	role, ok := domain.ParseRole(claims.Role)
	if !ok {
		return domain.Actor{}, "", fmt.Errorf("token has unknown role %q", claims.Role)
	}

	sessionID := claims.SessionID
	if sessionID == "" {
		sessionID = claims.ID
	}
	return domain.Actor{ID: claims.Subject, Role: role}, sessionID, nil
}
