package model

import "time"

// MemberStatus is the invitation state of a membership.
type MemberStatus string

const (
	MemberPending  MemberStatus = "pending"
	MemberAccepted MemberStatus = "accepted"
	MemberRejected MemberStatus = "rejected"
)

// IsValid reports whether s is a known status.
func (s MemberStatus) IsValid() bool {
	switch s {
	case MemberPending, MemberAccepted, MemberRejected:
		return true
	}
	return false
}

// IsResponse reports whether s is a status an invitee may respond with.
func (s MemberStatus) IsResponse() bool {
	return s == MemberAccepted || s == MemberRejected
}

// MemberRole is the role a member holds in a group.
type MemberRole string

const (
	RoleAdmin  MemberRole = "admin"
	RoleMember MemberRole = "member"
)

// Membership links a user to a group.
type Membership struct {
	UserID string       `json:"user_id"`
	Status MemberStatus `json:"status"`
	Role   MemberRole   `json:"role"`
}

// Group is the aggregate root owning memberships and expenses.
// Version increments on every successful save.
type Group struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	CreatedBy string       `json:"created_by"`
	Members   []Membership `json:"members"`
	Expenses  []Expense    `json:"expenses"`
	Version   int64        `json:"version"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Member returns the membership of userID, if any.
func (g *Group) Member(userID string) (*Membership, bool) {
	for i := range g.Members {
		if g.Members[i].UserID == userID {
			return &g.Members[i], true
		}
	}
	return nil, false
}

// IsAcceptedMember reports whether userID has accepted membership.
func (g *Group) IsAcceptedMember(userID string) bool {
	m, ok := g.Member(userID)
	return ok && m.Status == MemberAccepted
}

// IsAdmin reports whether userID is an accepted admin.
func (g *Group) IsAdmin(userID string) bool {
	m, ok := g.Member(userID)
	return ok && m.Status == MemberAccepted && m.Role == RoleAdmin
}

// RemoveMember deletes the membership of userID and reports whether one existed.
func (g *Group) RemoveMember(userID string) bool {
	for i := range g.Members {
		if g.Members[i].UserID == userID {
			g.Members = append(g.Members[:i], g.Members[i+1:]...)
			return true
		}
	}
	return false
}

// Expense returns the expense with the given id.
func (g *Group) Expense(id string) (*Expense, bool) {
	for i := range g.Expenses {
		if g.Expenses[i].ID == id {
			return &g.Expenses[i], true
		}
	}
	return nil, false
}

// RemoveExpense filters out the expense with the given id.
func (g *Group) RemoveExpense(id string) {
	kept := g.Expenses[:0]
	for _, e := range g.Expenses {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	g.Expenses = kept
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (g *Group) Clone() *Group {
	c := *g
	c.Members = append([]Membership(nil), g.Members...)
	c.Expenses = make([]Expense, len(g.Expenses))
	for i, e := range g.Expenses {
		e.Splits = append([]Split(nil), e.Splits...)
		c.Expenses[i] = e
	}
	return &c
}
