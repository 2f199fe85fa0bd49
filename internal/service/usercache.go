package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/splitledger/splitledger/internal/cache"
	"github.com/splitledger/splitledger/internal/model"
	"github.com/splitledger/splitledger/internal/repository"
)

// UserCache caches email lookups, including misses.
type UserCache interface {
	GetUser(ctx context.Context, email string) (*model.User, error)
	SetUser(ctx context.Context, user *model.User) error
	IsNegativelyCached(ctx context.Context, email string) (bool, error)
	SetNegativeCache(ctx context.Context, email string) error
}

var _ UserCache = (*cache.Cache)(nil)

// cachedStore serves GetUserByEmail from cache. Cache failures fall back to the store.
type cachedStore struct {
	Store
	cache  UserCache
	logger *slog.Logger
}

// WithUserCache wraps store so single-email lookups go through c.
func WithUserCache(store Store, c UserCache, logger *slog.Logger) Store {
	if c == nil {
		return store
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &cachedStore{Store: store, cache: c, logger: logger}
}

func (s *cachedStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	if neg, err := s.cache.IsNegativelyCached(ctx, email); err == nil && neg {
		return nil, repository.ErrUserNotFound
	}

	u, err := s.cache.GetUser(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("user cache read failed", "error", err)
	}

	u, err = s.Store.GetUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		if cerr := s.cache.SetNegativeCache(ctx, email); cerr != nil {
			s.logger.Warn("user negative cache write failed", "error", cerr)
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	if cerr := s.cache.SetUser(ctx, u); cerr != nil {
		s.logger.Warn("user cache write failed", "error", cerr)
	}
	return u, nil
}
