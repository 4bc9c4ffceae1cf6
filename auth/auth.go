/*
Package auth resolves the authenticated principal for a request.

PURPOSE:
  Session and credential handling live outside this service. What reaches
  us is a bearer token signed with a shared HS256 secret; this package
  verifies it once per request and hands the rest of the code an explicit
  Principal.

CLAIMS:
  sub   - stable user identifier (required)
  email - display only
  exp   - expiry (required)

USAGE:
  v, _ := auth.NewVerifier(secret, 12*time.Hour)
  r.Use(auth.Middleware(v, writeUnauthorized))

  p, ok := auth.FromContext(r.Context())

SEE ALSO:
  - api/server.go: where the middleware is mounted
  - cmd/server: `token` subcommand issues development tokens
*/
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/warp/extrahours/generic"
)

// Principal is the caller every core operation acts on behalf of.
type Principal struct {
	UserID string
	Email  string
}

func (p Principal) IsZero() bool {
	return p.UserID == ""
}

type contextKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok && !p.IsZero()
}

// =============================================================================
// TOKENS
// =============================================================================

type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks and issues HS256 tokens.
type Verifier struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewVerifier(secret string, ttl time.Duration) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("auth: empty signing secret")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Verifier{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for p. Used by tests and the dev CLI.
func (v *Verifier) Issue(p Principal) (string, time.Time, error) {
	if p.IsZero() {
		return "", time.Time{}, errors.New("auth: principal has no user id")
	}
	now := v.now().UTC()
	exp := now.Add(v.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email: p.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})

	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify parses raw and returns its principal. Every failure wraps
// generic.ErrAuthentication.
func (v *Verifier) Verify(raw string) (Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", generic.ErrAuthentication, err)
	}
	if !token.Valid || claims.Subject == "" {
		return Principal{}, fmt.Errorf("%w: token has no subject", generic.ErrAuthentication)
	}
	return Principal{UserID: claims.Subject, Email: claims.Email}, nil
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return raw, raw != ""
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

// Middleware rejects requests without a valid bearer token and stores the
// principal in the request context. onError writes the 401 response.
func Middleware(v *Verifier, onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := BearerToken(r)
			if !ok {
				onError(w, r, fmt.Errorf("%w: missing bearer token", generic.ErrAuthentication))
				return
			}
			p, err := v.Verify(raw)
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}
