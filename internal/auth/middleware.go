package auth

import (
	"context"
	"net/http"
	"strings"
)

// Claims are the verified token claims used by the API.
type Claims struct {
	Subject string   `json:"sub"`
	Roles   []string `json:"roles,omitempty"`
	Scopes  []string `json:"scopes"`
}

// HasScope reports whether the claims grant scope.
func (c *Claims) HasScope(scope string) bool {
	if c == nil {
		return false
	}
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Roles.
const (
	RoleViewer     = "viewer"
	RoleController = "controller"
)

// Scopes.
const (
	ScopeRead      = "read"
	ScopeControl   = "control"
	ScopeTelemetry = "telemetry"
)

var (
	knownRoles  = map[string]bool{RoleViewer: true, RoleController: true}
	knownScopes = map[string]bool{ScopeRead: true, ScopeControl: true, ScopeTelemetry: true}
)

type claimsKey struct{}

// WithClaims attaches claims to ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFrom returns the claims attached to ctx, or nil.
func ClaimsFrom(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey{}).(*Claims)
	return c
}

// TokenVerifier verifies bearer tokens. *Verifier implements it.
type TokenVerifier interface {
	VerifyToken(token string) (*Claims, error)
}

// ErrorWriter writes an API error response.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, status int, code, message string)

// Middleware authenticates requests and checks scopes.
type Middleware struct {
	verifier TokenVerifier
	writeErr ErrorWriter
	public   map[string]bool
}

// NewMiddleware creates a middleware. Paths in public skip authentication.
// A nil verifier disables authentication: every request then carries
// claims for the "anonymous" subject with all scopes.
func NewMiddleware(verifier TokenVerifier, writeErr ErrorWriter, public ...string) *Middleware {
	m := &Middleware{verifier: verifier, writeErr: writeErr, public: make(map[string]bool)}
	for _, p := range public {
		m.public[p] = true
	}
	return m
}

// Anonymous are the claims used when authentication is disabled.
var Anonymous = &Claims{
	Subject: "anonymous",
	Scopes:  []string{ScopeRead, ScopeControl, ScopeTelemetry},
}

// RequireAuth rejects requests without a valid bearer token.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.public[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}
		if m.verifier == nil {
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), Anonymous)))
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			m.writeErr(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}
		claims, err := m.verifier.VerifyToken(token)
		if err != nil {
			m.writeErr(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// RequireScope wraps next so it only runs for claims holding every scope.
func (m *Middleware) RequireScope(next http.HandlerFunc, scopes ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFrom(r.Context())
		if claims == nil {
			m.writeErr(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}
		for _, s := range scopes {
			if !claims.HasScope(s) {
				m.writeErr(w, r, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
				return
			}
		}
		next(w, r)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return token, token != ""
}
