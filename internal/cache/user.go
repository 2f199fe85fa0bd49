package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/splitledger/splitledger/internal/model"
)

// Cache key prefixes and TTLs.
const (
	userKeyPrefix     = "user:email:"
	negCacheKeySuffix = ":neg"

	// DefaultUserTTL is the TTL for cached user lookups.
	DefaultUserTTL = time.Hour

	// NegativeCacheTTL is the TTL for negative cache entries.
	NegativeCacheTTL = time.Minute
)

// Common cache errors.
var (
	ErrCacheMiss = errors.New("cache miss")
)

// userKey builds the cache key for an email. Emails are matched case-insensitively.
func userKey(email string) string {
	return userKeyPrefix + model.NormalizeEmail(email)
}

// GetUser retrieves a user from cache by email.
// Returns ErrCacheMiss if not found.
func (c *Cache) GetUser(ctx context.Context, email string) (*model.User, error) {
	result, err := c.rdb.HGetAll(ctx, userKey(email)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}
	if len(result) == 0 {
		return nil, ErrCacheMiss
	}
	return userFromHash(result)
}

// SetUser stores a user in cache and clears any negative entry for the email.
func (c *Cache) SetUser(ctx context.Context, user *model.User) error {
	key := userKey(user.Email)

	pipe := c.rdb.Pipeline()
	pipe.HSet(ctx, key, userToHash(user))
	pipe.Expire(ctx, key, DefaultUserTTL)
	pipe.Del(ctx, key+negCacheKeySuffix)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache user: %w", err)
	}
	return nil
}

// DeleteUser removes both the positive and negative entries for an email.
func (c *Cache) DeleteUser(ctx context.Context, email string) error {
	key := userKey(email)

	pipe := c.rdb.Pipeline()
	pipe.Del(ctx, key)
	pipe.Del(ctx, key+negCacheKeySuffix)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete user from cache: %w", err)
	}
	return nil
}

// IsNegativelyCached checks if an email is known not to belong to any user.
func (c *Cache) IsNegativelyCached(ctx context.Context, email string) (bool, error) {
	exists, err := c.rdb.Exists(ctx, userKey(email)+negCacheKeySuffix).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check negative cache: %w", err)
	}
	return exists > 0, nil
}

// SetNegativeCache marks an email as not found.
func (c *Cache) SetNegativeCache(ctx context.Context, email string) error {
	err := c.rdb.SetEx(ctx, userKey(email)+negCacheKeySuffix, "", NegativeCacheTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to set negative cache: %w", err)
	}
	return nil
}

func userToHash(u *model.User) map[string]any {
	return map[string]any{
		"id":         u.ID,
		"email":      u.Email,
		"name":       u.Name,
		"created_at": u.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func userFromHash(fields map[string]string) (*model.User, error) {
	if fields["id"] == "" || fields["email"] == "" {
		return nil, ErrCacheMiss
	}
	u := &model.User{
		ID:    fields["id"],
		Email: fields["email"],
		Name:  fields["name"],
	}
	if raw := fields["created_at"]; raw != "" {
		createdAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt cached user: %w", err)
		}
		u.CreatedAt = createdAt
	}
	return u, nil
}
