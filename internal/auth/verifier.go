// Package auth verifies bearer tokens for the node API and enforces
// per-route scopes.
//
// Tokens are JWTs signed with HS256 (shared secret) or RS256 (PEM public
// key). Every token must carry a subject and at least one known scope.
package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Supported signing algorithms.
const (
	AlgorithmHS256 = "HS256"
	AlgorithmRS256 = "RS256"
)

// ErrInvalidToken wraps every verification failure.
var ErrInvalidToken = errors.New("auth: invalid token")

// VerifierConfig configures a Verifier.
type VerifierConfig struct {
	Algorithm string

	// Secret is the HS256 shared key.
	Secret string

	// PublicKeyPEM is the RS256 key as a PKIX PEM block.
	PublicKeyPEM string

	// Issuer and Audience, when set, must match the token.
	Issuer   string
	Audience string

	// Leeway tolerates clock skew on exp and nbf.
	Leeway time.Duration
}

// Verifier checks signed tokens.
type Verifier struct {
	cfg    VerifierConfig
	key    interface{}
	parser *jwt.Parser
}

// NewVerifier creates a verifier for cfg.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	v := &Verifier{cfg: cfg}

	switch cfg.Algorithm {
	case AlgorithmHS256:
		if cfg.Secret == "" {
			return nil, fmt.Errorf("HS256 requires secret key")
		}
		v.key = []byte(cfg.Secret)
	case AlgorithmRS256:
		key, err := ParseRSAPublicKey([]byte(cfg.PublicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("failed to load public key from PEM: %w", err)
		}
		v.key = key
	default:
		return nil, fmt.Errorf("unsupported algorithm: %s", cfg.Algorithm)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{cfg.Algorithm}),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	v.parser = jwt.NewParser(opts...)
	return v, nil
}

// NewVerifierFromFile is NewVerifier with the RS256 key read from path.
func NewVerifierFromFile(cfg VerifierConfig, path string) (*Verifier, error) {
	if cfg.Algorithm == AlgorithmRS256 && path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read public key: %w", err)
		}
		cfg.PublicKeyPEM = string(data)
	}
	return NewVerifier(cfg)
}

// VerifyToken checks the signature and registered claims of token and
// returns its node claims.
func (v *Verifier) VerifyToken(token string) (*Claims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: token cannot be empty", ErrInvalidToken)
	}

	mc := jwt.MapClaims{}
	parsed, err := v.parser.ParseWithClaims(token, mc, func(*jwt.Token) (interface{}, error) {
		return v.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claimsFromMap(mc)
}

func claimsFromMap(mc jwt.MapClaims) (*Claims, error) {
	sub, err := mc.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("%w: missing or invalid 'sub' claim", ErrInvalidToken)
	}

	scopes, err := stringSlice(mc, "scopes")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if len(scopes) == 0 {
		return nil, fmt.Errorf("%w: no scopes", ErrInvalidToken)
	}
	for _, s := range scopes {
		if !knownScopes[s] {
			return nil, fmt.Errorf("%w: unknown scope %q", ErrInvalidToken, s)
		}
	}

	var roles []string
	if _, ok := mc["roles"]; ok {
		if roles, err = stringSlice(mc, "roles"); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		for _, r := range roles {
			if !knownRoles[r] {
				return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, r)
			}
		}
	}

	return &Claims{Subject: sub, Roles: roles, Scopes: scopes}, nil
}

func stringSlice(mc jwt.MapClaims, key string) ([]string, error) {
	value, ok := mc[key]
	if !ok {
		return nil, fmt.Errorf("missing claim: %s", key)
	}
	switch val := value.(type) {
	case []string:
		return val, nil
	case []interface{}:
		out := make([]string, len(val))
		for i, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("invalid %s claim: not a string", key)
			}
			out[i] = s
		}
		return out, nil
	case string:
		return strings.Fields(val), nil
	default:
		return nil, fmt.Errorf("invalid %s claim: not a string array", key)
	}
}

// ParseRSAPublicKey decodes a PKIX PEM RSA public key.
func ParseRSAPublicKey(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA public key")
	}
	return rsaPub, nil
}
