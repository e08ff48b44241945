package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"

	"github.com/filemill/filemill/internal/telemetry"
	"github.com/filemill/filemill/pkg/api/auth"
	"github.com/filemill/filemill/pkg/api/middleware"
)

// decodeJSONBody decodes the request body into v. On failure it writes
// the 400 itself and returns false, so callers can just return.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequest(w, "Invalid request body")
		return false
	}
	return true
}

// requestClaims returns the authenticated claims, or writes a 401 and
// returns nil when the route was reached without the auth middleware.
func requestClaims(w http.ResponseWriter, r *http.Request) *auth.Claims {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		Unauthorized(w, "Authentication required")
		return nil
	}
	return claims
}

// pathID returns the {id} path parameter of the matched route.
func pathID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

// apiSpan opens a root span for an endpoint that mutates state, tagged
// with the caller identity and client address.
func apiSpan(r *http.Request, name, userID string) (context.Context, trace.Span) {
	ctx, span := telemetry.StartSpan(r.Context(), name)
	telemetry.SetAttributes(ctx,
		telemetry.UserID(userID),
		telemetry.ClientIP(r.RemoteAddr),
	)
	return ctx, span
}
