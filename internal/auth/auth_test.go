package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func hsToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func validClaims(scopes ...interface{}) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":    "operator",
		"scopes": scopes,
		"exp":    time.Now().Add(time.Hour).Unix(),
	}
}

func TestVerifyHS256(t *testing.T) {
	v, err := NewVerifier(VerifierConfig{Algorithm: AlgorithmHS256, Secret: secret})
	require.NoError(t, err)

	claims, err := v.VerifyToken(hsToken(t, validClaims(ScopeRead, ScopeTelemetry)))
	require.NoError(t, err)
	assert.Equal(t, "operator", claims.Subject)
	assert.True(t, claims.HasScope(ScopeRead))
	assert.False(t, claims.HasScope(ScopeControl))

	spaced := validClaims()
	spaced["scopes"] = "read control"
	claims, err = v.VerifyToken(hsToken(t, spaced))
	require.NoError(t, err)
	assert.True(t, claims.HasScope(ScopeControl))
}

func TestVerifyRejects(t *testing.T) {
	v, err := NewVerifier(VerifierConfig{Algorithm: AlgorithmHS256, Secret: secret, Issuer: "ftm", Audience: "node"})
	require.NoError(t, err)

	good := validClaims(ScopeRead)
	good["iss"] = "ftm"
	good["aud"] = "node"
	_, err = v.VerifyToken(hsToken(t, good))
	require.NoError(t, err)

	expired := validClaims(ScopeRead)
	expired["iss"], expired["aud"] = "ftm", "node"
	expired["exp"] = time.Now().Add(-time.Hour).Unix()

	wrongIssuer := validClaims(ScopeRead)
	wrongIssuer["iss"], wrongIssuer["aud"] = "other", "node"

	noSubject := validClaims(ScopeRead)
	noSubject["iss"], noSubject["aud"] = "ftm", "node"
	delete(noSubject, "sub")

	badScope := validClaims("admin")
	badScope["iss"], badScope["aud"] = "ftm", "node"

	badRole := validClaims(ScopeRead)
	badRole["iss"], badRole["aud"] = "ftm", "node"
	badRole["roles"] = []interface{}{"root"}

	otherKey, err := jwt.NewWithClaims(jwt.SigningMethodHS256, good).SignedString([]byte("other"))
	require.NoError(t, err)

	tokens := map[string]string{
		"empty":        "",
		"garbage":      "not-a-jwt",
		"expired":      hsToken(t, expired),
		"wrong issuer": hsToken(t, wrongIssuer),
		"no subject":   hsToken(t, noSubject),
		"bad scope":    hsToken(t, badScope),
		"bad role":     hsToken(t, badRole),
		"wrong key":    otherKey,
	}
	for name, token := range tokens {
		t.Run(name, func(t *testing.T) {
			_, err := v.VerifyToken(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestVerifyRS256FromFile(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "pub.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), 0o600))

	v, err := NewVerifierFromFile(VerifierConfig{Algorithm: AlgorithmRS256}, path)
	require.NoError(t, err)

	claims := validClaims(ScopeControl)
	claims["roles"] = []interface{}{RoleController}
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	got, err := v.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, []string{RoleController}, got.Roles)

	_, err = v.VerifyToken(hsToken(t, validClaims(ScopeRead)))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewVerifierConfigErrors(t *testing.T) {
	_, err := NewVerifier(VerifierConfig{Algorithm: AlgorithmHS256})
	assert.Error(t, err)
	_, err = NewVerifier(VerifierConfig{Algorithm: AlgorithmRS256, PublicKeyPEM: "nope"})
	assert.Error(t, err)
	_, err = NewVerifier(VerifierConfig{Algorithm: "none"})
	assert.Error(t, err)
	_, err = NewVerifierFromFile(VerifierConfig{Algorithm: AlgorithmRS256}, filepath.Join(t.TempDir(), "missing.pem"))
	assert.Error(t, err)
}

func recordError(w http.ResponseWriter, _ *http.Request, status int, code, _ string) {
	w.Header().Set("X-Code", code)
	w.WriteHeader(status)
}

func TestMiddleware(t *testing.T) {
	v, err := NewVerifier(VerifierConfig{Algorithm: AlgorithmHS256, Secret: secret})
	require.NoError(t, err)
	m := NewMiddleware(v, recordError, "/api/v1/health")

	var seen *Claims
	ok := func(w http.ResponseWriter, r *http.Request) {
		seen = ClaimsFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/health", ok)
	mux.HandleFunc("/api/v1/range", m.RequireScope(ok, ScopeControl))
	handler := m.RequireAuth(mux)

	do := func(path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	rec := do("/api/v1/health", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, seen)

	rec = do("/api/v1/range", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", rec.Header().Get("X-Code"))

	rec = do("/api/v1/range", "bogus")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do("/api/v1/range", hsToken(t, validClaims(ScopeRead)))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", rec.Header().Get("X-Code"))

	rec = do("/api/v1/range", hsToken(t, validClaims(ScopeRead, ScopeControl)))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "operator", seen.Subject)
}

func TestMiddlewareDisabled(t *testing.T) {
	m := NewMiddleware(nil, recordError)
	var seen *Claims
	h := m.RequireAuth(m.RequireScope(func(w http.ResponseWriter, r *http.Request) {
		seen = ClaimsFrom(r.Context())
	}, ScopeControl))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/range", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Same(t, Anonymous, seen)
}
