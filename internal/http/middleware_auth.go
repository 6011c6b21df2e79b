package http

import (
	"context"
	"net/http"
	"strings"

	"expensed/internal/core"
)

type contextKey string

const identityKey contextKey = "identity"

// TokenVerifier resolves a bearer token to the identity it carries.
// Implemented by *auth.Service.
type TokenVerifier interface {
	Verify(tokenString string) (core.Identity, error)
}

// requireAuth rejects requests without a valid bearer token and stores the
// caller's identity in the request context.
func requireAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				respondWithJSON(w, http.StatusUnauthorized, map[string]string{"error": "Missing or invalid authorization header"})
				return
			}

			identity, err := verifier.Verify(strings.TrimSpace(token))
			if err != nil {
				respondWithJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid or expired token"})
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// identityFromContext returns the authenticated caller set by requireAuth.
func identityFromContext(ctx context.Context) (core.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(core.Identity)
	return identity, ok
}
