package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/splitledger/splitledger/internal/auth"
	"github.com/splitledger/splitledger/internal/model"
)

// minAuthDuration pads every authentication attempt so that a cache hit, a
// miss and a failure take the same time from the outside.
const minAuthDuration = 200 * time.Millisecond

// KeyStore finds API keys for authentication.
type KeyStore interface {
	GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*model.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id string) error
}

// AuthCache remembers resolved keys by auth.CacheKey of the plaintext.
// A nil context from GetAuthContext is a miss.
type AuthCache interface {
	GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error)
	SetAuthContext(ctx context.Context, cacheKey string, authCtx *model.AuthContext) error
}

// AuthConfig wires the auth middleware.
type AuthConfig struct {
	Logger *slog.Logger
	Keys   KeyStore
	Cache  AuthCache
	// MinDuration overrides minAuthDuration; tests set it to a tiny value.
	MinDuration time.Duration
}

// Auth resolves the API key on each request into the acting user. Every
// failure answers with the same 401 body so that callers cannot tell a
// malformed key from an unknown or revoked one.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	floor := cfg.MinDuration
	if floor == 0 {
		floor = minAuthDuration
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			defer func() {
				if wait := floor - time.Since(start); wait > 0 {
					time.Sleep(wait)
				}
			}()

			authCtx, cacheHit, reason := resolveKey(r, cfg)
			if authCtx == nil {
				cfg.Logger.WarnContext(r.Context(), "authentication failed",
					slog.String("reason", reason),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing API key")
				return
			}

			cfg.Logger.DebugContext(r.Context(), "authenticated",
				slog.String("key_prefix", authCtx.KeyPrefix),
				slog.String("user_id", authCtx.UserID),
				slog.Bool("cache_hit", cacheHit),
				slog.String("request_id", GetRequestID(r.Context())),
			)
			next.ServeHTTP(w, r.WithContext(auth.ContextWithAuth(r.Context(), authCtx)))
		})
	}
}

// resolveKey returns the caller's auth context, or nil and a log reason.
func resolveKey(r *http.Request, cfg AuthConfig) (*model.AuthContext, bool, string) {
	key := extractAPIKey(r)
	if key == "" {
		return nil, false, "missing_key"
	}
	parsed, err := auth.ParseAPIKey(key)
	if err != nil {
		return nil, false, "invalid_format"
	}

	ctx := r.Context()
	cacheKey := auth.CacheKey(key)
	if cached, _ := cfg.Cache.GetAuthContext(ctx, cacheKey); cached != nil {
		return cached, true, ""
	}

	candidates, err := cfg.Keys.GetAPIKeysByPrefix(ctx, parsed.Prefix)
	if err != nil {
		cfg.Logger.ErrorContext(ctx, "api key lookup failed", slog.String("error", err.Error()))
		return nil, false, "lookup_error"
	}

	// Prefixes are short and may collide, so every candidate is verified.
	var matched *model.APIKey
	for _, k := range candidates {
		if ok, err := auth.VerifyKey(key, k.KeyHash); err == nil && ok {
			matched = k
			break
		}
	}
	if matched == nil || matched.IsRevoked() {
		return nil, false, "invalid_key"
	}

	authCtx := &model.AuthContext{
		KeyID:         matched.ID,
		KeyPrefix:     matched.KeyPrefix,
		UserID:        matched.UserID,
		Scopes:        matched.Scopes,
		RateLimitTier: matched.RateLimitTier,
	}
	if err := cfg.Cache.SetAuthContext(ctx, cacheKey, authCtx); err != nil {
		cfg.Logger.WarnContext(ctx, "auth cache write failed", slog.String("error", err.Error()))
	}

	bg := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(bg, 5*time.Second)
		defer cancel()
		_ = cfg.Keys.UpdateAPIKeyLastUsed(ctx, matched.ID)
	}()

	return authCtx, false, ""
}

// extractAPIKey reads "Authorization: Bearer <key>", falling back to X-API-Key.
func extractAPIKey(r *http.Request) string {
	if key, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(key)
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}
