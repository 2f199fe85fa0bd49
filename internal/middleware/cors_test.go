package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func corsRequest(method, origin string, preflight bool) *http.Request {
	req := httptest.NewRequest(method, "/api/v1/groups/01HZX0000000000000000GROUP/expenses", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if preflight {
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	}
	return req
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		allowed    []string
		origin     string
		method     string
		preflight  bool
		wantStatus int
		wantOrigin string
	}{
		{name: "nothing_configured", origin: "https://app.splitledger.test", method: http.MethodGet, wantStatus: http.StatusOK},
		{name: "exact_origin", allowed: []string{"https://app.splitledger.test"}, origin: "https://app.splitledger.test", method: http.MethodGet, wantStatus: http.StatusOK, wantOrigin: "https://app.splitledger.test"},
		{name: "case_insensitive", allowed: []string{"HTTPS://APP.SPLITLEDGER.TEST"}, origin: "https://app.splitledger.test", method: http.MethodGet, wantStatus: http.StatusOK, wantOrigin: "https://app.splitledger.test"},
		{name: "preflight_allowed", allowed: []string{"https://app.splitledger.test"}, origin: "https://app.splitledger.test", method: http.MethodOptions, preflight: true, wantStatus: http.StatusNoContent, wantOrigin: "https://app.splitledger.test"},
		{name: "preflight_denied", allowed: []string{"https://app.splitledger.test"}, origin: "https://evil.test", method: http.MethodOptions, preflight: true, wantStatus: http.StatusForbidden},
		{name: "bare_options_reaches_router", allowed: []string{"https://app.splitledger.test"}, origin: "https://evil.test", method: http.MethodOptions, wantStatus: http.StatusOK},
		{name: "denied_request_passes_untagged", allowed: []string{"https://app.splitledger.test"}, origin: "https://evil.test", method: http.MethodPost, wantStatus: http.StatusOK},
		{name: "no_origin_header", allowed: []string{"https://app.splitledger.test"}, method: http.MethodGet, wantStatus: http.StatusOK},
		{name: "wildcard_subdomain", allowed: []string{"https://*.splitledger.test"}, origin: "https://web.splitledger.test", method: http.MethodGet, wantStatus: http.StatusOK, wantOrigin: "https://web.splitledger.test"},
		{name: "wildcard_wrong_scheme", allowed: []string{"https://*.splitledger.test"}, origin: "http://web.splitledger.test", method: http.MethodGet, wantStatus: http.StatusOK},
		{name: "wildcard_needs_subdomain", allowed: []string{"https://*.splitledger.test"}, origin: "https://splitledger.test", method: http.MethodGet, wantStatus: http.StatusOK},
		{name: "wildcard_rejects_lookalike", allowed: []string{"*.splitledger.test"}, origin: "https://evilsplitledger.test", method: http.MethodGet, wantStatus: http.StatusOK},
		{name: "bare_wildcard_any_scheme", allowed: []string{"*.splitledger.test"}, origin: "http://dev.splitledger.test", method: http.MethodGet, wantStatus: http.StatusOK, wantOrigin: "http://dev.splitledger.test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultCORSConfig()
			cfg.AllowedOrigins = tt.allowed

			handler := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, corsRequest(tt.method, tt.origin, tt.preflight))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if tt.origin != "" && rec.Header().Get("Vary") != "Origin" {
				t.Errorf("expected Vary: Origin for cross-origin requests, got %q", rec.Header().Get("Vary"))
			}
		})
	}
}

func TestCORS_PreflightAdvertisesLedgerMethods(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://app.splitledger.test"}

	handler := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight must not reach the router")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, corsRequest(http.MethodOptions, "https://app.splitledger.test", true))

	methods := rec.Header().Get("Access-Control-Allow-Methods")
	for _, m := range []string{http.MethodPut, http.MethodDelete} {
		if !strings.Contains(methods, m) {
			t.Errorf("Access-Control-Allow-Methods %q lacks %s", methods, m)
		}
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Headers"), "Authorization") {
		t.Errorf("Authorization must be an allowed header, got %q", rec.Header().Get("Access-Control-Allow-Headers"))
	}
	if rec.Header().Get("Access-Control-Max-Age") != "86400" {
		t.Errorf("Access-Control-Max-Age = %q", rec.Header().Get("Access-Control-Max-Age"))
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "" {
		t.Error("credentials are not allowed by default")
	}
}

func TestCORS_ExposesRateLimitHeaders(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://app.splitledger.test"}

	handler := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, corsRequest(http.MethodGet, "https://app.splitledger.test", false))

	exposed := rec.Header().Get("Access-Control-Expose-Headers")
	for _, h := range []string{RequestIDHeader, "X-RateLimit-Remaining", "Retry-After"} {
		if !strings.Contains(exposed, h) {
			t.Errorf("Access-Control-Expose-Headers %q lacks %s", exposed, h)
		}
	}
}
