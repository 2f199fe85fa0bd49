package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ActivityKind names a change to a group's membership or ledger.
type ActivityKind string

// Activity kinds.
const (
	ActivityGroupCreated   ActivityKind = "group_created"
	ActivityMemberInvited  ActivityKind = "member_invited"
	ActivityMemberRemoved  ActivityKind = "member_removed"
	ActivityInviteAccepted ActivityKind = "invite_accepted"
	ActivityInviteRejected ActivityKind = "invite_rejected"
	ActivityExpenseAdded   ActivityKind = "expense_added"
	ActivityExpenseEdited  ActivityKind = "expense_edited"
	ActivityExpenseDeleted ActivityKind = "expense_deleted"
)

var activityKinds = map[ActivityKind]struct{}{
	ActivityGroupCreated:   {},
	ActivityMemberInvited:  {},
	ActivityMemberRemoved:  {},
	ActivityInviteAccepted: {},
	ActivityInviteRejected: {},
	ActivityExpenseAdded:   {},
	ActivityExpenseEdited:  {},
	ActivityExpenseDeleted: {},
}

// Valid reports whether k is a known kind.
func (k ActivityKind) Valid() bool {
	_, ok := activityKinds[k]
	return ok
}

// Activity is one entry of a group's activity feed.
// SubjectID is the affected member or expense, depending on Kind.
type Activity struct {
	ID         string           `json:"id"`
	EventID    string           `json:"-"` // stream entry id, unique per event
	GroupID    string           `json:"group_id"`
	ActorID    string           `json:"actor_id"`
	Kind       ActivityKind     `json:"kind"`
	SubjectID  string           `json:"subject_id,omitempty"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	Detail     string           `json:"detail,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}
