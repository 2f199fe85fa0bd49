package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig lists the browser origins allowed to call the ledger API.
// An entry like "https://*.example.com" admits any subdomain of example.com.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	// MaxAge is the preflight cache lifetime in seconds; 0 omits the header.
	MaxAge int
}

// DefaultCORSConfig denies every origin until AllowedOrigins is filled in.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key", RequestIDHeader},
		ExposedHeaders: []string{
			RequestIDHeader,
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
			"X-RateLimit-Reset",
			"Retry-After",
		},
		MaxAge: 86400,
	}
}

type wildcardOrigin struct {
	scheme string // "https://", or empty for any scheme
	suffix string // ".example.com"
}

// originMatcher holds the lowercased allowed origins.
type originMatcher struct {
	exact     map[string]struct{}
	wildcards []wildcardOrigin
}

func newOriginMatcher(origins []string) originMatcher {
	m := originMatcher{exact: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		o = strings.ToLower(strings.TrimSpace(o))
		if scheme, host, ok := strings.Cut(o, "://*."); ok {
			m.wildcards = append(m.wildcards, wildcardOrigin{scheme: scheme + "://", suffix: "." + host})
			continue
		}
		if host, ok := strings.CutPrefix(o, "*."); ok {
			m.wildcards = append(m.wildcards, wildcardOrigin{suffix: "." + host})
			continue
		}
		if o != "" {
			m.exact[o] = struct{}{}
		}
	}
	return m
}

func (m originMatcher) allows(origin string) bool {
	origin = strings.ToLower(origin)
	if _, ok := m.exact[origin]; ok {
		return true
	}
	for _, w := range m.wildcards {
		var host string
		var ok bool
		if w.scheme != "" {
			host, ok = strings.CutPrefix(origin, w.scheme)
		} else {
			_, host, ok = strings.Cut(origin, "://")
		}
		if !ok {
			continue
		}
		sub, ok := strings.CutSuffix(host, w.suffix)
		if ok && sub != "" && !strings.ContainsAny(sub, "/:") {
			return true
		}
	}
	return false
}

// CORS answers preflights and tags responses for allowed origins. Requests
// from other origins pass through untagged, so the browser hides the body;
// their preflights get 403.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	matcher := newOriginMatcher(cfg.AllowedOrigins)
	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")
	exposed := strings.Join(cfg.ExposedHeaders, ", ")
	maxAge := ""
	if cfg.MaxAge > 0 {
		maxAge = strconv.Itoa(cfg.MaxAge)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
			h := w.Header()
			h.Add("Vary", "Origin")

			if !matcher.allows(origin) {
				if preflight {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			h.Set("Access-Control-Allow-Origin", origin)
			if cfg.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			if exposed != "" {
				h.Set("Access-Control-Expose-Headers", exposed)
			}

			if preflight {
				h.Set("Access-Control-Allow-Methods", methods)
				h.Set("Access-Control-Allow-Headers", headers)
				if maxAge != "" {
					h.Set("Access-Control-Max-Age", maxAge)
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
