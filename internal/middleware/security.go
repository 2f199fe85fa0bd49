package middleware

import (
	"net/http"
)

// SecurityConfig controls response hardening.
type SecurityConfig struct {
	// IsDevelopment omits HSTS so that plain-HTTP local servers stay reachable.
	IsDevelopment bool
	// AllowedOrigins are the browser origins of the web client.
	AllowedOrigins []string
	// MaxRequestBodySize caps JSON request bodies on the API routes.
	MaxRequestBodySize int64
}

// DefaultSecurityConfig returns production settings with a 1MB body cap.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{MaxRequestBodySize: 1 << 20}
}

const hstsHeader = "max-age=31536000; includeSubDomains; preload"

// apiHeaders apply to every response, including /ws upgrades.
var apiHeaders = []struct{ name, value string }{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"X-XSS-Protection", "0"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=(), usb=()"},
	{"Cross-Origin-Opener-Policy", "same-origin"},
	{"Cross-Origin-Resource-Policy", "same-origin"},
	{"Cache-Control", "no-store"},
}

// Security sets the hardening headers before the handler runs, so error
// responses written by later middleware carry them too.
func Security(cfg SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, hdr := range apiHeaders {
				h.Set(hdr.name, hdr.value)
			}
			if !cfg.IsDevelopment {
				h.Set("Strict-Transport-Security", hstsHeader)
			}
			h.Del("Server")

			next.ServeHTTP(w, r)
		})
	}
}

// MaxBodySize rejects requests whose declared length exceeds maxBytes and
// caps streamed bodies so decoding fails once the limit is crossed.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
