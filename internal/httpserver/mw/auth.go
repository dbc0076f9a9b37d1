package mw

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/satchelhq/satchel/internal/auth"
	"github.com/satchelhq/satchel/internal/logger"
)

type ctxKey int

const (
	claimsKey ctxKey = iota
	logStateKey
)

// WithClaims returns a context carrying the verified access claims.
func WithClaims(ctx context.Context, c *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFrom returns the verified access claims, if any.
func ClaimsFrom(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*auth.Claims)
	return c, ok
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

// Auth rejects requests without a valid access token and stores the
// claims on the request context for handlers.
func Auth(tokens *auth.TokenIssuer, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := BearerToken(r)
			if raw == "" {
				unauthorized(w, "missing bearer token")
				return
			}

			claims, err := tokens.Verify(raw)
			if err != nil {
				log.Debug("rejected access token", logger.Error(err))
				unauthorized(w, "invalid or expired token")
				return
			}

			MarkUser(r.Context(), claims.UserID())
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="satchel"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
