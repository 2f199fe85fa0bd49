package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/splitledger/splitledger/internal/model"
)

// Resolved API keys live under auth:ctx:<CacheKey(plaintext)>. Each key id has
// an index set of those entries so that revocation and rotation can drop them
// without knowing the plaintext.
const (
	authEntryPrefix = "auth:ctx:"
	authIndexPrefix = "auth:key:"
	authTTL         = 5 * time.Minute
)

type authEntry struct {
	KeyID         string   `json:"key_id"`
	KeyPrefix     string   `json:"key_prefix"`
	UserID        string   `json:"user_id"`
	Scopes        []string `json:"scopes"`
	RateLimitTier string   `json:"rate_limit_tier"`
}

// GetAuthContext returns the cached resolution of a key, or nil on a miss.
// An undecodable entry counts as a miss.
func (c *Cache) GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error) {
	data, err := c.rdb.Get(ctx, authEntryPrefix+cacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: get auth context: %w", err)
	}

	var e authEntry
	if json.Unmarshal(data, &e) != nil || e.KeyID == "" || e.UserID == "" {
		return nil, nil
	}
	return &model.AuthContext{
		KeyID:         e.KeyID,
		KeyPrefix:     e.KeyPrefix,
		UserID:        e.UserID,
		Scopes:        e.Scopes,
		RateLimitTier: e.RateLimitTier,
	}, nil
}

// SetAuthContext caches a resolved key and indexes it by key id.
func (c *Cache) SetAuthContext(ctx context.Context, cacheKey string, authCtx *model.AuthContext) error {
	data, err := json.Marshal(authEntry{
		KeyID:         authCtx.KeyID,
		KeyPrefix:     authCtx.KeyPrefix,
		UserID:        authCtx.UserID,
		Scopes:        authCtx.Scopes,
		RateLimitTier: authCtx.RateLimitTier,
	})
	if err != nil {
		return fmt.Errorf("cache: encode auth context: %w", err)
	}

	entry := authEntryPrefix + cacheKey
	index := authIndexPrefix + authCtx.KeyID
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, entry, data, authTTL)
		pipe.SAdd(ctx, index, entry)
		pipe.Expire(ctx, index, authTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache: set auth context: %w", err)
	}
	return nil
}

// InvalidateKey drops every cached resolution of keyID.
func (c *Cache) InvalidateKey(ctx context.Context, keyID string) error {
	index := authIndexPrefix + keyID
	entries, err := c.rdb.SMembers(ctx, index).Result()
	if err != nil {
		return fmt.Errorf("cache: read auth index: %w", err)
	}
	if err := c.rdb.Del(ctx, append(entries, index)...).Err(); err != nil {
		return fmt.Errorf("cache: invalidate key %s: %w", keyID, err)
	}
	return nil
}
