// Package auth carries the authenticated user through request contexts and
// verifies the bearer tokens issued by the hosted auth provider.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"dompet/internal/core"
)

type contextKey string

const userContextKey contextKey = "user"

var ErrInvalidToken = errors.New("invalid token")

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u core.User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (core.User, bool) {
	u, ok := ctx.Value(userContextKey).(core.User)
	if !ok || u.ID == "" {
		return core.User{}, false
	}
	return u, true
}

// Claims mirrors the access token claims of the hosted auth provider.
// The subject is the user id.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 access tokens signed with the project JWT secret.
type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// WithIssuer makes Verify also require the "iss" claim to equal issuer.
func (v *Verifier) WithIssuer(issuer string) *Verifier {
	v.issuer = issuer
	return v
}

// Verify parses token and returns the user it identifies.
func (v *Verifier) Verify(token string) (core.User, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		return core.User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return core.User{}, ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return core.User{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return core.User{ID: sub, Email: claims.Email}, nil
}

// Sign issues a token for u. Used by tests and local tooling.
func (v *Verifier) Sign(u core.User, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = u.ID
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Email: u.Email, Role: "authenticated", RegisteredClaims: claims})
	return tok.SignedString(v.secret)
}

// Middleware resolves the bearer token into a user on the request context.
// Requests without a valid token are rejected with 401.
func Middleware(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				writeUnauthorized(w)
				return
			}
			u, err := v.Verify(strings.TrimSpace(token))
			if err != nil {
				slog.WarnContext(r.Context(), "Rejected access token",
					"component", "auth",
					"path", r.URL.Path,
					"error", err)
				writeUnauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="dompet"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + core.ErrUnauthenticated.Error() + `"}`))
}
