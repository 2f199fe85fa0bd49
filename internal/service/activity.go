package service

import (
	"context"

	"github.com/splitledger/splitledger/internal/model"
)

// Feed page bounds.
const (
	DefaultActivityLimit = 50
	MaxActivityLimit     = 200
)

// ActivityService reads group activity feeds.
type ActivityService struct {
	*core
}

// ListActivity returns the group's most recent activity, newest first.
// The actor must hold a membership. limit is clamped to MaxActivityLimit
// and a non-positive limit selects DefaultActivityLimit.
func (s *ActivityService) ListActivity(ctx context.Context, actorID, groupID string, limit int) ([]*model.Activity, error) {
	switch {
	case limit <= 0:
		limit = DefaultActivityLimit
	case limit > MaxActivityLimit:
		limit = MaxActivityLimit
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.loadGroup(ctx, actorID, groupID); err != nil {
		return nil, err
	}

	activities, err := s.store.ListActivities(ctx, groupID, limit)
	if err != nil {
		return nil, storeError("failed to list activity", err)
	}
	if activities == nil {
		activities = []*model.Activity{}
	}
	return activities, nil
}
