/*
auth.go - Authentication glue for the HTTP layer

PURPOSE:
  Issues and verifies bearer tokens and resolves them to the
  authenticated-actor record the engine consumes on every call. The engine
  itself never touches tokens or passwords; everything credential-shaped
  stays in this file.

TOKENS:
  JWT HS256, 24h expiry. Claims carry the employee id, email and role; the
  actor record is still re-read from the store on every request so role or
  manager changes take effect before the token expires.
*/
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/nimbushr/absence-engine/absence"
)

// TokenAuthority signs and verifies bearer tokens.
type TokenAuthority struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenAuthority creates a token authority with the given HMAC secret.
func NewTokenAuthority(secret string, ttl time.Duration) *TokenAuthority {
	return &TokenAuthority{secret: []byte(secret), ttl: ttl}
}

// Issue creates a signed token for the employee.
func (ta *TokenAuthority) Issue(e *absence.Employee) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   e.ID,
		"email": e.Email,
		"role":  string(e.Role),
		"iat":   now.Unix(),
		"exp":   now.Add(ta.ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ta.secret)
}

// Verify parses a token and returns the subject employee id.
func (ta *TokenAuthority) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return ta.secret, nil
	})
	if err != nil {
		return "", err
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", jwt.ErrTokenInvalidSubject
	}
	return sub, nil
}

// =============================================================================
// PASSWORDS
// =============================================================================

func hashPassword(plaintext string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	return string(b), err
}

func checkPassword(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

type contextKey string

const actorKey contextKey = "actor"

// RequireAuth resolves the bearer token to an absence.Actor and stores it
// in the request context. Requests without a valid token get 401.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
			return
		}

		sub, err := h.Auth.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token", err)
			return
		}

		e, err := h.Store.GetEmployee(r.Context(), sub)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Unknown token subject", err)
			return
		}

		actor := absence.Actor{ID: e.ID, Role: e.Role, ManagerID: e.ManagerID}
		ctx := context.WithValue(r.Context(), actorKey, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// actorFrom returns the actor injected by RequireAuth.
func actorFrom(r *http.Request) absence.Actor {
	actor, _ := r.Context().Value(actorKey).(absence.Actor)
	return actor
}
