package model

import (
	"slices"
	"time"
)

// API key scopes. Admin implies the others.
const (
	ScopeRead  = "read"
	ScopeWrite = "write"
	ScopeAdmin = "admin"
)

// ValidScopes lists the scopes a key may be issued with.
var ValidScopes = []string{ScopeRead, ScopeWrite, ScopeAdmin}

// ValidScope reports whether s can be granted to a key.
func ValidScope(s string) bool {
	return slices.Contains(ValidScopes, s)
}

func grantsScope(held []string, scope string) bool {
	return slices.Contains(held, ScopeAdmin) || slices.Contains(held, scope)
}

// Rate limit tiers.
const (
	TierFree      = "free"
	TierPro       = "pro"
	TierUnlimited = "unlimited"
)

// RateLimitConfig is a tier's token bucket. Zero RequestsPerMinute means
// unlimited.
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// TierConfigs holds the limits of each tier.
var TierConfigs = map[string]RateLimitConfig{
	TierFree:      {RequestsPerMinute: 60, Burst: 10},
	TierPro:       {RequestsPerMinute: 600, Burst: 50},
	TierUnlimited: {},
}

// TierLimit returns the limits of tier. Unknown tiers get the free limits,
// never unlimited.
func TierLimit(tier string) RateLimitConfig {
	if cfg, ok := TierConfigs[tier]; ok {
		return cfg
	}
	return TierConfigs[TierFree]
}

// APIKey is a credential that acts for UserID in every ledger operation.
type APIKey struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	KeyHash       string     `json:"-"`
	KeyPrefix     string     `json:"key_prefix"`
	Scopes        []string   `json:"scopes"`
	RateLimitTier string     `json:"rate_limit_tier"`
	Name          string     `json:"name,omitempty"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
	LastUsedAt    *time.Time `json:"last_used_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (k *APIKey) IsRevoked() bool {
	return k.RevokedAt != nil
}

func (k *APIKey) HasScope(scope string) bool {
	return grantsScope(k.Scopes, scope)
}

// AuthContext is what the auth middleware attaches to a request. UserID is
// the acting user.
type AuthContext struct {
	KeyID         string
	KeyPrefix     string
	UserID        string
	Scopes        []string
	RateLimitTier string
}

func (a *AuthContext) HasScope(scope string) bool {
	return grantsScope(a.Scopes, scope)
}

// APIKeyCreateRequest represents a request to create a new API key.
type APIKeyCreateRequest struct {
	Name   string   `json:"name,omitempty"`
	Scopes []string `json:"scopes"`
}

// APIKeyResponse represents the response for an API key (without secrets).
type APIKeyResponse struct {
	ID            string     `json:"id"`
	Name          string     `json:"name,omitempty"`
	KeyPrefix     string     `json:"key_prefix"`
	Scopes        []string   `json:"scopes"`
	RateLimitTier string     `json:"rate_limit_tier"`
	CreatedAt     time.Time  `json:"created_at"`
	LastUsedAt    *time.Time `json:"last_used_at,omitempty"`
	Revoked       bool       `json:"revoked"`
}

// ToResponse converts an APIKey to APIKeyResponse.
func (k *APIKey) ToResponse() APIKeyResponse {
	return APIKeyResponse{
		ID:            k.ID,
		Name:          k.Name,
		KeyPrefix:     k.KeyPrefix,
		Scopes:        k.Scopes,
		RateLimitTier: k.RateLimitTier,
		CreatedAt:     k.CreatedAt,
		LastUsedAt:    k.LastUsedAt,
		Revoked:       k.IsRevoked(),
	}
}

// APIKeyCreateResponse includes the plaintext key (shown only once).
type APIKeyCreateResponse struct {
	ID            string    `json:"id"`
	Key           string    `json:"key"` // Plaintext - display once only!
	Name          string    `json:"name,omitempty"`
	KeyPrefix     string    `json:"key_prefix"`
	Scopes        []string  `json:"scopes"`
	RateLimitTier string    `json:"rate_limit_tier"`
	CreatedAt     time.Time `json:"created_at"`
}

// APIKeyRotateResponse includes both old and new key information.
type APIKeyRotateResponse struct {
	OldKeyID        string               `json:"old_key_id"`
	OldKeyRevokedAt time.Time            `json:"old_key_revoked_at"`
	NewKey          APIKeyCreateResponse `json:"new_key"`
}
