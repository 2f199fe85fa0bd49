package service

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/splitledger/splitledger/internal/model"
)

func kinds(activities []*model.Activity) []model.ActivityKind {
	out := make([]model.ActivityKind, 0, len(activities))
	for _, a := range activities {
		out = append(out, a.Kind)
	}
	return out
}

func TestActivityFeed(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	g := env.newGroup(t)
	env.accept(t, g, env.bob.ID)

	e, err := env.svc.Expenses.AddExpense(ctx, AddExpenseInput{
		ActorID:     env.bob.ID,
		GroupID:     g.ID,
		Description: "Fuel",
		Amount:      decimal.NewFromInt(60),
		PaidBy:      env.bob.ID,
	})
	if err != nil {
		t.Fatalf("AddExpense failed: %v", err)
	}
	if _, err := env.svc.Expenses.EditExpense(ctx, EditExpenseInput{
		ActorID:     env.alice.ID,
		GroupID:     g.ID,
		ExpenseID:   e.ID,
		Description: "Fuel and tolls",
		Amount:      decimal.NewFromInt(80),
	}); err != nil {
		t.Fatalf("EditExpense failed: %v", err)
	}
	if err := env.svc.Expenses.DeleteExpense(ctx, env.alice.ID, g.ID, e.ID); err != nil {
		t.Fatalf("DeleteExpense failed: %v", err)
	}
	// A no-op delete leaves no trace.
	if err := env.svc.Expenses.DeleteExpense(ctx, env.alice.ID, g.ID, e.ID); err != nil {
		t.Fatalf("DeleteExpense failed: %v", err)
	}
	if _, err := env.svc.Groups.RemoveMember(ctx, env.alice.ID, g.ID, env.bob.ID); err != nil {
		t.Fatalf("RemoveMember failed: %v", err)
	}

	feed, err := env.svc.Activity.ListActivity(ctx, env.alice.ID, g.ID, 0)
	if err != nil {
		t.Fatalf("ListActivity failed: %v", err)
	}

	want := []model.ActivityKind{
		model.ActivityMemberRemoved,
		model.ActivityExpenseDeleted,
		model.ActivityExpenseEdited,
		model.ActivityExpenseAdded,
		model.ActivityInviteAccepted,
		model.ActivityMemberInvited,
		model.ActivityGroupCreated,
	}
	if got := kinds(feed); !slices.Equal(got, want) {
		t.Fatalf("feed = %v, want %v", got, want)
	}

	edited := feed[2]
	if edited.ActorID != env.alice.ID || edited.SubjectID != e.ID {
		t.Errorf("unexpected edit entry: %+v", edited)
	}
	if edited.Amount == nil || !edited.Amount.Equal(decimal.NewFromInt(80)) || edited.Detail != "Fuel and tolls" {
		t.Errorf("edit entry should carry the new amount and description: %+v", edited)
	}
	if invited := feed[5]; invited.SubjectID != env.bob.ID || invited.ActorID != env.alice.ID {
		t.Errorf("unexpected invite entry: %+v", invited)
	}
	if !feed[0].OccurredAt.Equal(env.clock.Now()) {
		t.Errorf("expected entries stamped by the service clock, got %v", feed[0].OccurredAt)
	}
}

func TestActivityFeed_Limit(t *testing.T) {
	env := newTestEnv(t)
	g := env.newGroup(t)

	feed, err := env.svc.Activity.ListActivity(context.Background(), env.alice.ID, g.ID, 1)
	if err != nil {
		t.Fatalf("ListActivity failed: %v", err)
	}
	if len(feed) != 1 || feed[0].Kind != model.ActivityMemberInvited {
		t.Fatalf("expected only the newest entry, got %v", kinds(feed))
	}
}

func TestActivityFeed_Access(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	g := env.newGroup(t)

	// Pending invitees may read, like every other read operation.
	if _, err := env.svc.Activity.ListActivity(ctx, env.bob.ID, g.ID, 10); err != nil {
		t.Fatalf("pending member should read the feed: %v", err)
	}
	if _, err := env.svc.Activity.ListActivity(ctx, env.carol.ID, g.ID, 10); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-member, got %v", err)
	}
	if _, err := env.svc.Activity.ListActivity(ctx, env.alice.ID, "missing", 10); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestActivityFeed_RemovedWithGroup(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	g := env.newGroup(t)

	if err := env.svc.Groups.DeleteGroup(ctx, env.alice.ID, g.ID); err != nil {
		t.Fatalf("DeleteGroup failed: %v", err)
	}
	left, err := env.store.ListActivities(ctx, g.ID, 10)
	if err != nil {
		t.Fatalf("ListActivities failed: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("expected feed to be removed with the group, got %v", kinds(left))
	}
}

func TestActivityFeed_DiscardedByDefault(t *testing.T) {
	env := newTestEnv(t)
	env.svc = New(env.store, env.notifier, env.recorder, Options{Now: env.clock.Now})
	g := env.newGroup(t)

	feed, err := env.svc.Activity.ListActivity(context.Background(), env.alice.ID, g.ID, 10)
	if err != nil {
		t.Fatalf("ListActivity failed: %v", err)
	}
	if len(feed) != 0 {
		t.Fatalf("expected no entries without a recorder, got %v", kinds(feed))
	}
}
