package auth

import (
	"context"

	"github.com/splitledger/splitledger/internal/model"
)

type authContextKey struct{}

// ContextWithAuth attaches the authenticated caller to ctx.
func ContextWithAuth(ctx context.Context, ac *model.AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, ac)
}

// AuthFromContext returns the caller attached by the auth middleware, or nil.
func AuthFromContext(ctx context.Context) *model.AuthContext {
	ac, _ := ctx.Value(authContextKey{}).(*model.AuthContext)
	return ac
}

// ActorFromContext returns the user every ledger operation acts as.
// ok is false for anonymous requests and for keys without a user.
func ActorFromContext(ctx context.Context) (userID string, ok bool) {
	ac := AuthFromContext(ctx)
	if ac == nil || ac.UserID == "" {
		return "", false
	}
	return ac.UserID, true
}
