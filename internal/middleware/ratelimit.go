package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/splitledger/splitledger/internal/auth"
	"github.com/splitledger/splitledger/internal/cache"
	"github.com/splitledger/splitledger/internal/model"
)

// Limiter takes one token for a caller.
type Limiter interface {
	AllowKey(ctx context.Context, keyID string, l cache.Limit) (cache.Decision, error)
	AllowIP(ctx context.Context, ip string, l cache.Limit) (cache.Decision, error)
}

// RateLimitConfig configures both limiters. Limiter errors fail open.
type RateLimitConfig struct {
	Logger  *slog.Logger
	Limiter Limiter
	// APIEnabled limits authenticated requests by API key tier.
	APIEnabled bool
	// IPEnabled limits the unauthenticated realtime endpoint by client address.
	IPEnabled bool
	IPRPS     int
	IPBurst   int
}

// RateLimitAPI limits requests per API key according to the key's tier.
// Must run after Auth.
func RateLimitAPI(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := auth.AuthFromContext(r.Context())
			if !cfg.APIEnabled || authCtx == nil {
				next.ServeHTTP(w, r)
				return
			}

			tier := model.TierLimit(authCtx.RateLimitTier)
			limit := cache.PerMinute(tier.RequestsPerMinute, tier.Burst)
			if limit.Unlimited() {
				next.ServeHTTP(w, r)
				return
			}

			d, err := cfg.Limiter.AllowKey(r.Context(), authCtx.KeyID, limit)
			if err != nil {
				cfg.Logger.ErrorContext(r.Context(), "rate limit check failed",
					slog.String("error", err.Error()),
					slog.String("key_id", authCtx.KeyID),
				)
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, tier.RequestsPerMinute, d)
			if !d.Allowed {
				rejectRateLimited(w, r, cfg.Logger, d, slog.String("type", "api"), slog.String("key_id", authCtx.KeyID))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitIP limits requests per client address. It guards /ws, where the
// handshake carries no API key.
func RateLimitIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.IPEnabled {
				next.ServeHTTP(w, r)
				return
			}

			ip := clientIP(r)
			d, err := cfg.Limiter.AllowIP(r.Context(), ip, cache.Limit{PerSecond: float64(cfg.IPRPS), Burst: cfg.IPBurst})
			if err != nil {
				cfg.Logger.ErrorContext(r.Context(), "ip rate limit check failed",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if !d.Allowed {
				rejectRateLimited(w, r, cfg.Logger, d, slog.String("type", "ip"), slog.String("ip", ip))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// setRateLimitHeaders advertises the per-minute quota of the caller's tier.
func setRateLimitHeaders(w http.ResponseWriter, perMinute int, d cache.Decision) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(perMinute))
	h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
}

func rejectRateLimited(w http.ResponseWriter, r *http.Request, logger *slog.Logger, d cache.Decision, attrs ...slog.Attr) {
	seconds := retryAfterSeconds(d.RetryAfter)
	attrs = append(attrs,
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.Int("retry_after_seconds", seconds),
		slog.String("request_id", GetRequestID(r.Context())),
	)
	logger.LogAttrs(r.Context(), slog.LevelWarn, "rate limit exceeded", attrs...)

	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	writeError(w, http.StatusTooManyRequests, "RATE_LIMITED",
		"Rate limit exceeded. Retry after "+strconv.Itoa(seconds)+" seconds.")
}

// retryAfterSeconds rounds up so that a client honouring Retry-After finds a
// token waiting.
func retryAfterSeconds(d time.Duration) int {
	s := int((d + time.Second - 1) / time.Second)
	if s < 1 {
		return 1
	}
	return s
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// connection's host. Ports are dropped so one client shares one bucket.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
