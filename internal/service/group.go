package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/splitledger/splitledger/internal/metrics"
	"github.com/splitledger/splitledger/internal/model"
)

// GroupService manages groups and the membership state machine.
type GroupService struct {
	*core
}

// CreateGroupInput defines input for creating a group.
type CreateGroupInput struct {
	ActorID      string
	Name         string
	MemberEmails []string
}

// AddMemberInput defines input for inviting a user into a group.
type AddMemberInput struct {
	ActorID string
	GroupID string
	Email   string
}

// RespondInviteInput defines an invitee's answer to an invite.
type RespondInviteInput struct {
	ActorID        string
	GroupID        string
	NotificationID string
	Status         model.MemberStatus
}

// MemberDetail is a membership joined with the member's user record.
type MemberDetail struct {
	model.Membership
	Email string
	Name  string
}

// GroupDetail is a group with member user details.
type GroupDetail struct {
	Group   *model.Group
	Members []MemberDetail
}

// CreateGroup creates a group with the actor as accepted admin and invites
// every resolvable email as a pending member. Unknown emails are dropped.
func (s *GroupService) CreateGroup(ctx context.Context, input CreateGroupInput) (*model.Group, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrGroupNameRequired
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	invitees, err := s.resolveInvitees(ctx, input.ActorID, input.MemberEmails)
	if err != nil {
		return nil, err
	}
	if len(invitees) == 0 {
		return nil, ErrNoValidMembers
	}

	now := s.now()
	g := &model.Group{
		ID:        generateULID(),
		Name:      name,
		CreatedBy: input.ActorID,
		Members: []model.Membership{
			{UserID: input.ActorID, Status: model.MemberAccepted, Role: model.RoleAdmin},
		},
		Expenses:  []model.Expense{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, u := range invitees {
		g.Members = append(g.Members, model.Membership{
			UserID: u.ID,
			Status: model.MemberPending,
			Role:   model.RoleMember,
		})
	}

	if err := s.store.CreateGroup(ctx, g); err != nil {
		return nil, storeError("failed to create group", err)
	}
	s.metrics.IncGroupCreated()
	s.record(ctx, model.Activity{
		GroupID: g.ID,
		ActorID: input.ActorID,
		Kind:    model.ActivityGroupCreated,
		Detail:  g.Name,
	})

	for _, u := range invitees {
		s.invite(ctx, g, input.ActorID, u.ID)
	}

	return g, nil
}

// AddMember invites the user with the given email as a pending member.
func (s *GroupService) AddMember(ctx context.Context, input AddMemberInput) (*model.Group, error) {
	email := model.NormalizeEmail(input.Email)
	if email == "" {
		return nil, ErrEmailRequired
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var invitee *model.User
	g, err := s.mutate(ctx, input.GroupID, func(g *model.Group) error {
		if !g.IsAdmin(input.ActorID) {
			return ErrNotAdmin
		}
		if invitee == nil {
			u, err := s.store.GetUserByEmail(ctx, email)
			if err != nil {
				return storeError("failed to resolve user", err)
			}
			invitee = u
		}
		if _, ok := g.Member(invitee.ID); ok {
			return ErrAlreadyMember
		}
		g.Members = append(g.Members, model.Membership{
			UserID: invitee.ID,
			Status: model.MemberPending,
			Role:   model.RoleMember,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncMembershipChange(metrics.MemberAdded)
	s.invite(ctx, g, input.ActorID, invitee.ID)
	return g, nil
}

// RemoveMember deletes a membership. Historical splits of the member are kept.
// Removing a user who is not a member succeeds without changes.
func (s *GroupService) RemoveMember(ctx context.Context, actorID, groupID, memberID string) (*model.Group, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var removed bool
	g, err := s.mutate(ctx, groupID, func(g *model.Group) error {
		removed = false
		if !g.IsAdmin(actorID) {
			return ErrNotAdmin
		}
		if memberID == g.CreatedBy {
			return ErrCannotRemoveCreator
		}
		if !g.RemoveMember(memberID) {
			return errUnchanged
		}
		removed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if removed {
		s.metrics.IncMembershipChange(metrics.MemberRemoved)
		s.record(ctx, model.Activity{
			GroupID:   groupID,
			ActorID:   actorID,
			Kind:      model.ActivityMemberRemoved,
			SubjectID: memberID,
		})
	}
	return g, nil
}

// RespondInvite records the actor's answer to an invite. The invite
// notification is consumed first, so a second response fails with ErrNotificationNotFound.
func (s *GroupService) RespondInvite(ctx context.Context, input RespondInviteInput) (*model.Group, error) {
	if !input.Status.IsResponse() {
		return nil, ErrInvalidResponse
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.store.ConsumeNotification(ctx, input.NotificationID, input.ActorID, input.GroupID); err != nil {
		return nil, storeError("failed to consume notification", err)
	}

	g, err := s.mutate(ctx, input.GroupID, func(g *model.Group) error {
		m, ok := g.Member(input.ActorID)
		if !ok {
			return ErrNotInvited
		}
		m.Status = input.Status
		return nil
	})
	if err != nil {
		return nil, err
	}

	kind := model.ActivityInviteAccepted
	if input.Status == model.MemberAccepted {
		s.metrics.IncMembershipChange(metrics.MemberAccepted)
	} else {
		kind = model.ActivityInviteRejected
		s.metrics.IncMembershipChange(metrics.MemberRejected)
	}
	s.record(ctx, model.Activity{GroupID: g.ID, ActorID: input.ActorID, Kind: kind})
	return g, nil
}

// DeleteGroup removes a group and its notifications. Only the creator may delete.
func (s *GroupService) DeleteGroup(ctx context.Context, actorID, groupID string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	unlock := s.locks.lock(groupID)
	defer unlock()

	g, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return storeError("failed to load group", err)
	}
	if g.CreatedBy != actorID {
		return ErrNotCreator
	}

	if err := s.store.DeleteGroup(ctx, groupID); err != nil {
		return storeError("failed to delete group", err)
	}
	s.metrics.IncGroupDeleted()
	return nil
}

// ListMyGroups returns the groups the actor has accepted, newest first.
// Each group lists only its accepted members.
func (s *GroupService) ListMyGroups(ctx context.Context, actorID string) ([]GroupDetail, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	groups, err := s.store.ListGroupsByMember(ctx, actorID, model.MemberAccepted)
	if err != nil {
		return nil, storeError("failed to list groups", err)
	}

	var ids []string
	for _, g := range groups {
		for _, m := range g.Members {
			if m.Status == model.MemberAccepted {
				ids = append(ids, m.UserID)
			}
		}
	}
	users, err := s.users(ctx, ids)
	if err != nil {
		return nil, err
	}

	details := make([]GroupDetail, 0, len(groups))
	for _, g := range groups {
		details = append(details, detail(g, users, func(m model.Membership) bool {
			return m.Status == model.MemberAccepted
		}))
	}
	return details, nil
}

// GetGroup returns a group with all member details. The actor must hold a membership.
func (s *GroupService) GetGroup(ctx context.Context, actorID, groupID string) (*GroupDetail, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	g, err := s.loadGroup(ctx, actorID, groupID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		ids = append(ids, m.UserID)
	}
	users, err := s.users(ctx, ids)
	if err != nil {
		return nil, err
	}

	d := detail(g, users, func(model.Membership) bool { return true })
	return &d, nil
}

// invite records an in-app invite and attempts live delivery.
// Failures are logged; the membership stays pending either way.
func (s *GroupService) invite(ctx context.Context, g *model.Group, actorID, userID string) {
	s.record(ctx, model.Activity{
		GroupID:   g.ID,
		ActorID:   actorID,
		Kind:      model.ActivityMemberInvited,
		SubjectID: userID,
	})

	n := &model.Notification{
		ID:        generateULID(),
		UserID:    userID,
		Message:   model.InviteMessage(g.Name),
		Type:      model.NotificationInApp,
		Status:    model.NotificationSent,
		GroupID:   g.ID,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		s.logger().Warn("failed to record invite",
			slog.String("group_id", g.ID),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.notifier.Notify(ctx, userID, n)
}

func (s *GroupService) resolveInvitees(ctx context.Context, actorID string, emails []string) ([]*model.User, error) {
	seen := make(map[string]struct{}, len(emails))
	normalized := make([]string, 0, len(emails))
	for _, e := range emails {
		e = model.NormalizeEmail(e)
		if e == "" {
			continue
		}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		normalized = append(normalized, e)
	}
	if len(normalized) == 0 {
		return nil, nil
	}

	found, err := s.store.GetUsersByEmails(ctx, normalized)
	if err != nil {
		return nil, storeError("failed to resolve members", err)
	}

	invitees := make([]*model.User, 0, len(found))
	ids := make(map[string]struct{}, len(found))
	for _, u := range found {
		if u.ID == actorID {
			continue
		}
		if _, dup := ids[u.ID]; dup {
			continue
		}
		ids[u.ID] = struct{}{}
		invitees = append(invitees, u)
	}
	return invitees, nil
}

func (c *core) users(ctx context.Context, ids []string) (map[string]*model.User, error) {
	if len(ids) == 0 {
		return map[string]*model.User{}, nil
	}
	users, err := c.store.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, storeError("failed to load users", err)
	}
	return users, nil
}

func detail(g *model.Group, users map[string]*model.User, keep func(model.Membership) bool) GroupDetail {
	d := GroupDetail{Group: g, Members: make([]MemberDetail, 0, len(g.Members))}
	for _, m := range g.Members {
		if !keep(m) {
			continue
		}
		md := MemberDetail{Membership: m}
		if u, ok := users[m.UserID]; ok {
			md.Email = u.Email
			md.Name = u.Name
		}
		d.Members = append(d.Members, md)
	}
	return d
}
