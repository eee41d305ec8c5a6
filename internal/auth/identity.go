// Package auth verifies bearer tokens issued by the hosted identity provider
// and carries the caller identity through request contexts.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthenticated is returned when a request carries no valid identity.
var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is the authenticated caller. Records are owned by Email.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Claims are the JWT claims the identity provider issues.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 tokens.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier returns a verifier for the shared secret. An empty issuer
// accepts tokens from any issuer.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses and validates a raw token.
func (v *Verifier) Verify(token string) (Identity, error) {
	if v == nil || len(v.secret) == 0 {
		return Identity{}, fmt.Errorf("%w: verifier not configured", ErrUnauthenticated)
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Identity{}, fmt.Errorf("%w: invalid claims", ErrUnauthenticated)
	}
	if claims.Subject == "" || claims.Email == "" {
		return Identity{}, fmt.Errorf("%w: token missing sub or email", ErrUnauthenticated)
	}
	return Identity{UserID: claims.Subject, Email: strings.ToLower(claims.Email)}, nil
}

// VerifyHeader validates an "Authorization: Bearer <token>" header value.
func (v *Verifier) VerifyHeader(header string) (Identity, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return Identity{}, ErrUnauthenticated
	}
	return v.Verify(strings.TrimSpace(token))
}

// Issue signs a token for id. Used by local tooling and tests; production
// tokens come from the identity provider.
func (v *Verifier) Issue(id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(v.secret)
}

type ctxKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the caller identity or ErrUnauthenticated.
func FromContext(ctx context.Context) (Identity, error) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	if !ok || id.Email == "" {
		return Identity{}, ErrUnauthenticated
	}
	return id, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// identity in the request context. Browsers cannot set headers on WebSocket
// upgrades, so the access_token query parameter is accepted as well.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			id  Identity
			err error
		)
		if h := r.Header.Get("Authorization"); h != "" {
			id, err = v.VerifyHeader(h)
		} else if tok := r.URL.Query().Get("access_token"); tok != "" {
			id, err = v.Verify(tok)
		} else {
			err = ErrUnauthenticated
		}
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}
