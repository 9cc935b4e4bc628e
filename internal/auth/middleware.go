package auth

import (
	"context"
	"net/http"
	"strings"

	"api-gateway/internal/common/errors"
	"api-gateway/internal/common/logging"
)

type contextKey struct{}

// ContextWithPrincipal stores p in ctx.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// PrincipalFromContext returns the principal RequireAuth stored, if any.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(*Principal)
	return p, ok && p != nil
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[7:])
	return token, token != ""
}

// RequireAuth rejects requests without a valid access token.
func (m *Manager) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := BearerToken(r)
		if !ok {
			errors.WriteHTTP(w, errors.AuthError(errors.CodeTokenMalformed, "missing bearer token"))
			return
		}

		principal, err := m.Verify(r.Context(), token)
		if err != nil {
			errors.WriteHTTP(w, err)
			return
		}

		ctx := ContextWithPrincipal(r.Context(), principal)
		ctx = logging.ContextWithClientID(ctx, principal.ClientID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireScope must run after RequireAuth.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				errors.WriteHTTP(w, errors.AuthError(errors.CodeTokenMalformed, "missing bearer token"))
				return
			}
			if !principal.HasScope(scope) {
				errors.WriteHTTP(w, errors.ForbiddenError(scope))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
