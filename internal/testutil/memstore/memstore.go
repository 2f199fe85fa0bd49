// Package memstore is an in-memory stand-in for the Postgres repository.
// It mirrors the repository's error values and version checks.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/splitledger/splitledger/internal/model"
	"github.com/splitledger/splitledger/internal/repository"
)

// Store keeps users, groups, notifications and activity in memory.
type Store struct {
	mu            sync.Mutex
	users         map[string]*model.User
	groups        map[string]*model.Group
	notifications map[string]*model.Notification
	activities    []*model.Activity
	activitySeq   int

	// BeforeSave, when set, runs before every SaveGroup with the lock released.
	BeforeSave func(g *model.Group)
	// Err, when set, is returned by every call.
	Err error

	saves int
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:         make(map[string]*model.User),
		groups:        make(map[string]*model.Group),
		notifications: make(map[string]*model.Notification),
	}
}

// AddUser seeds a user.
func (s *Store) AddUser(u *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *u
	s.users[u.ID] = &c
}

// Saves returns the number of successful SaveGroup calls.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// Notifications returns the stored notifications for userID, oldest first.
func (s *Store) Notifications(userID string) []*model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notificationsFor(userID, "")
}

// Bump increments the stored version of a group, simulating a concurrent writer.
func (s *Store) Bump(groupID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.groups[groupID]; ok {
		g.Version++
	}
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, u := range s.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (s *Store) GetUsersByEmails(_ context.Context, emails []string) ([]*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var found []*model.User
	for _, e := range emails {
		for _, u := range s.users {
			if u.Email == e {
				c := *u
				found = append(found, &c)
				break
			}
		}
	}
	return found, nil
}

func (s *Store) GetUsersByIDs(_ context.Context, ids []string) (map[string]*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	found := make(map[string]*model.User, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			c := *u
			found[id] = &c
		}
	}
	return found, nil
}

func (s *Store) CreateGroup(_ context.Context, g *model.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	g.Version = 1
	s.groups[g.ID] = g.Clone()
	return nil
}

func (s *Store) SaveGroup(_ context.Context, g *model.Group) error {
	if s.BeforeSave != nil {
		s.BeforeSave(g)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	stored, ok := s.groups[g.ID]
	if !ok {
		return repository.ErrGroupNotFound
	}
	if stored.Version != g.Version {
		return repository.ErrVersionConflict
	}
	g.Version++
	s.groups[g.ID] = g.Clone()
	s.saves++
	return nil
}

func (s *Store) GetGroup(_ context.Context, id string) (*model.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	g, ok := s.groups[id]
	if !ok {
		return nil, repository.ErrGroupNotFound
	}
	return g.Clone(), nil
}

func (s *Store) ListGroupsByMember(_ context.Context, userID string, status model.MemberStatus) ([]*model.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var groups []*model.Group
	for _, g := range s.groups {
		if m, ok := g.Member(userID); ok && m.Status == status {
			groups = append(groups, g.Clone())
		}
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].CreatedAt.After(groups[j].CreatedAt)
	})
	return groups, nil
}

func (s *Store) DeleteGroup(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.groups[id]; !ok {
		return repository.ErrGroupNotFound
	}
	for nid, n := range s.notifications {
		if n.GroupID == id {
			delete(s.notifications, nid)
		}
	}
	kept := s.activities[:0]
	for _, a := range s.activities {
		if a.GroupID != id {
			kept = append(kept, a)
		}
	}
	s.activities = kept
	delete(s.groups, id)
	return nil
}

func (s *Store) CreateNotification(_ context.Context, n *model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	c := *n
	s.notifications[n.ID] = &c
	return nil
}

func (s *Store) ConsumeNotification(_ context.Context, id, userID, groupID string) (*model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	n, ok := s.notifications[id]
	if !ok || n.UserID != userID || n.GroupID != groupID {
		return nil, repository.ErrNotificationNotFound
	}
	delete(s.notifications, id)
	return n, nil
}

func (s *Store) ListNotificationsByUser(_ context.Context, userID string, status model.NotificationStatus) ([]*model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	list := s.notificationsFor(userID, status)
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
	return list, nil
}

// notificationsFor returns copies ordered oldest first. An empty status matches all.
func (s *Store) notificationsFor(userID string, status model.NotificationStatus) []*model.Notification {
	var list []*model.Notification
	for _, n := range s.notifications {
		if n.UserID != userID || (status != "" && n.Status != status) {
			continue
		}
		c := *n
		list = append(list, &c)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list
}

// Record stores a feed entry synchronously, so the store can stand in for
// the stream publisher in tests.
func (s *Store) Record(ctx context.Context, a *model.Activity) {
	_ = s.InsertActivities(ctx, []*model.Activity{a})
}

// InsertActivities skips entries with a known event id or a missing group.
func (s *Store) InsertActivities(_ context.Context, activities []*model.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for _, a := range activities {
		c := *a
		s.activitySeq++
		if c.ID == "" {
			c.ID = fmt.Sprintf("act-%06d", s.activitySeq)
		}
		if c.EventID == "" {
			c.EventID = c.ID
		}
		if _, ok := s.groups[c.GroupID]; !ok {
			continue
		}
		if s.hasEvent(c.EventID) {
			continue
		}
		s.activities = append(s.activities, &c)
	}
	return nil
}

func (s *Store) hasEvent(eventID string) bool {
	for _, a := range s.activities {
		if a.EventID == eventID {
			return true
		}
	}
	return false
}

// ListActivities returns copies newest first.
func (s *Store) ListActivities(_ context.Context, groupID string, limit int) ([]*model.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	list := []*model.Activity{}
	for i := len(s.activities) - 1; i >= 0 && len(list) < limit; i-- {
		if a := s.activities[i]; a.GroupID == groupID {
			c := *a
			list = append(list, &c)
		}
	}
	return list, nil
}
