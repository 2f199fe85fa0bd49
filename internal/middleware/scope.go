package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/splitledger/splitledger/internal/auth"
	"github.com/splitledger/splitledger/internal/model"
)

// RequireScope lets a request through when its key holds any of the scopes.
// Admin keys hold every scope. Must run after Auth.
func RequireScope(anyOf ...string) func(http.Handler) http.Handler {
	denied := "Insufficient permissions. Required scope: " + strings.Join(anyOf, " or ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := auth.AuthFromContext(r.Context())
			if authCtx == nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
				return
			}
			if !slices.ContainsFunc(anyOf, authCtx.HasScope) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", denied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRead guards ledger reads: groups, balances, settlements, the feed.
func RequireRead() func(http.Handler) http.Handler {
	return RequireScope(model.ScopeRead)
}

// RequireWrite guards ledger changes.
func RequireWrite() func(http.Handler) http.Handler {
	return RequireScope(model.ScopeWrite)
}

// RequireAdmin guards key management and the admin routes.
func RequireAdmin() func(http.Handler) http.Handler {
	return RequireScope(model.ScopeAdmin)
}
