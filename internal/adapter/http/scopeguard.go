package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/prontolabs/pronto/internal/domain"
)

// ScopeGuard resolves the acting identity from a signed token and enforces
// the URL scope perimeter: a request under /{scope}/api/... must carry a
// token whose active scope matches, except for the system role which
// always passes. Denials distinguish missing authentication (401, so the
// caller re-authenticates) from an authenticated scope mismatch (403), and
// never enumerate scopes beyond the one the requester attempted.
type ScopeGuard struct {
	secret     []byte
	cookieName string
}

// NewScopeGuard creates a guard validating HMAC-signed tokens. Credential
// minting lives with the identity issuer; this side only verifies.
func NewScopeGuard(secret []byte) *ScopeGuard {
	return &ScopeGuard{secret: secret, cookieName: "access_token"}
}

type tokenClaims struct {
	ActorID     int64  `json:"actor_id"`
	ActiveScope string `json:"active_scope"`
	jwt.RegisteredClaims
}

// Middleware wraps a handler with perimeter enforcement. Paths outside the
// /{scope}/api/ perimeter (docs, health) pass through untouched; a perimeter
// path whose scope segment is not a defined scope is rejected outright, so
// an unrecognized segment can never slip past authentication into the
// wildcard-routed handlers.
func (g *ScopeGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		required, guarded := scopeFromPath(r.URL.Path)
		if !guarded {
			next.ServeHTTP(w, r)
			return
		}
		if required == "" {
			writeDenied(w, http.StatusNotFound, "SCOPE_UNKNOWN", "unknown section")
			return
		}

		identity, err := g.resolve(r)
		if err != nil {
			writeDenied(w, http.StatusUnauthorized, "SCOPE_MISSING", "authentication required")
			return
		}

		if identity.Scope != domain.ScopeSystem && identity.Scope != required {
			writeDenied(w, http.StatusForbidden, "SCOPE_MISMATCH",
				fmt.Sprintf("access denied: this section requires %q scope", required))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// resolve extracts and verifies the token from the Authorization header or
// the session cookie.
func (g *ScopeGuard) resolve(r *http.Request) (Identity, error) {
	raw := ""
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		raw = strings.TrimPrefix(auth, "Bearer ")
	} else if cookie, err := r.Cookie(g.cookieName); err == nil {
		raw = cookie.Value
	}
	if raw == "" {
		return Identity{}, fmt.Errorf("no credential presented")
	}

	var claims tokenClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return g.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("verifying token: %w", err)
	}

	scope := domain.Scope(claims.ActiveScope)
	if claims.ActorID == 0 || !domain.ValidScope(scope) {
		return Identity{}, fmt.Errorf("token carries no usable identity")
	}

	return Identity{ActorID: claims.ActorID, Scope: scope}, nil
}

// scopeFromPath extracts the perimeter scope from "/{scope}/api/..." paths.
// guarded reports whether the path lies inside the perimeter at all; a
// guarded path with an unrecognized scope segment yields ("", true).
func scopeFromPath(path string) (scope domain.Scope, guarded bool) {
	parts := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 3)
	if len(parts) < 2 || parts[1] != "api" {
		return "", false
	}
	scope = domain.Scope(parts[0])
	if !domain.ValidScope(scope) {
		return "", true
	}
	return scope, true
}

func writeDenied(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": message,
		"code":  code,
	})
}
