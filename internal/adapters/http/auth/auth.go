// Package auth resolves the caller identity of an HTTP request.
//
// The oracle core treats provider ids as already authenticated; this
// package is where that trust is established.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/okian/quorum/internal/domain/types"
)

// CallerHeader carries the caller id for HeaderAuthenticator.
const CallerHeader = "X-Oracle-Caller"

// Sentinel kinds for authentication failures.
var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Authenticator extracts the caller from a request.
type Authenticator interface {
	Authenticate(r *http.Request) (types.ProviderID, error)
}

// HeaderAuthenticator trusts the CallerHeader as is. Only suitable behind a
// gateway that sets the header itself, or for local development.
type HeaderAuthenticator struct{}

// NewHeaderAuthenticator returns a HeaderAuthenticator.
func NewHeaderAuthenticator() HeaderAuthenticator { return HeaderAuthenticator{} }

// Authenticate implements Authenticator.
func (HeaderAuthenticator) Authenticate(r *http.Request) (types.ProviderID, error) {
	caller := strings.TrimSpace(r.Header.Get(CallerHeader))
	if caller == "" {
		return "", ErrMissingCredentials
	}
	return types.ProviderID(caller), nil
}

// JWTAuthenticator accepts HS256 bearer tokens and uses the subject claim as
// the caller id.
type JWTAuthenticator struct {
	secret []byte
	issuer string
	leeway time.Duration
}

// JWTOption applies a configuration option to the JWTAuthenticator.
type JWTOption func(*JWTAuthenticator)

// WithIssuer requires tokens to carry the given iss claim.
func WithIssuer(issuer string) JWTOption {
	return func(a *JWTAuthenticator) {
		a.issuer = issuer
	}
}

// WithLeeway tolerates clock skew when checking exp and nbf.
func WithLeeway(d time.Duration) JWTOption {
	return func(a *JWTAuthenticator) {
		if d > 0 {
			a.leeway = d
		}
	}
}

// NewJWTAuthenticator creates a JWTAuthenticator verifying with secret.
func NewJWTAuthenticator(secret []byte, opts ...JWTOption) *JWTAuthenticator {
	a := &JWTAuthenticator{secret: secret}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authenticate implements Authenticator.
func (a *JWTAuthenticator) Authenticate(r *http.Request) (types.ProviderID, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingCredentials
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("%w: expected bearer token", ErrInvalidCredentials)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(a.leeway),
	}
	if a.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(a.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, parserOpts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", ErrInvalidCredentials)
	}
	return types.ProviderID(claims.Subject), nil
}

// IssueToken signs an HS256 token for subject. Used by operators to mint
// provider credentials.
func IssueToken(secret []byte, subject, issuer string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  subject,
		Issuer:   issuer,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
