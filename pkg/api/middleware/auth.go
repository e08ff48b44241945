// Package middleware carries the HTTP middleware of the FileMill API:
// request logging and JWT bearer authentication.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/filemill/filemill/internal/logger"
	"github.com/filemill/filemill/pkg/api/auth"
)

type contextKey string

// claimsContextKey carries the authenticated claims through the request.
const claimsContextKey contextKey = "claims"

// GetClaimsFromContext returns the claims JWTAuth stored on the request,
// or nil on routes the middleware never saw.
func GetClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsContextKey).(*auth.Claims)
	return claims
}

// WithClaims returns a context carrying the given claims. Exposed for
// handler tests that bypass the middleware.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// bearerToken pulls the token out of the Authorization header. The scheme
// comparison is case-insensitive per RFC 7235.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	return token, true
}

// unauthorized writes a 401 RFC 7807 problem response. Duplicated from the
// handlers package because handlers imports this package for claims access.
func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "about:blank",
		"title":  "Unauthorized",
		"status": http.StatusUnauthorized,
		"detail": detail,
	})
}

// JWTAuth admits only requests carrying a valid access token. The claims
// land on the request context, and the logging context, when present,
// picks up the user id so downstream lines carry it.
func JWTAuth(tokens *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				unauthorized(w, "Authorization header required")
				return
			}

			claims, err := tokens.ValidateAccessToken(tokenString)
			if err != nil {
				unauthorized(w, "Invalid or expired token")
				return
			}

			ctx := WithClaims(r.Context(), claims)
			if lc := logger.FromContext(ctx); lc != nil {
				ctx = logger.WithContext(ctx, lc.WithUser(claims.UserID))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
