package dto

import (
	"time"

	"github.com/splitledger/splitledger/internal/model"
	"github.com/splitledger/splitledger/internal/service"
)

// CreateGroupRequest represents the request body for creating a group.
// Members is a list of emails; it must be present.
type CreateGroupRequest struct {
	Name    string    `json:"name"`
	Members *[]string `json:"members"`
}

// AddMemberRequest represents the request body for inviting a member.
type AddMemberRequest struct {
	Email string `json:"email"`
}

// RespondInviteRequest represents an invitee's answer.
type RespondInviteRequest struct {
	NotificationID string `json:"notification_id"`
	Status         string `json:"status"`
}

// MemberResponse represents a membership with user details.
type MemberResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
	Status string `json:"status"`
	Role   string `json:"role"`
}

// GroupResponse represents a group in API responses.
type GroupResponse struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	CreatedBy string            `json:"created_by"`
	Members   []MemberResponse  `json:"members"`
	Expenses  []ExpenseResponse `json:"expenses,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// ToGroupResponse converts a group without user details.
func ToGroupResponse(g *model.Group) *GroupResponse {
	members := make([]MemberResponse, 0, len(g.Members))
	for _, m := range g.Members {
		members = append(members, MemberResponse{
			UserID: m.UserID,
			Status: string(m.Status),
			Role:   string(m.Role),
		})
	}
	return &GroupResponse{
		ID:        g.ID,
		Name:      g.Name,
		CreatedBy: g.CreatedBy,
		Members:   members,
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
	}
}

// ToGroupDetailResponse converts a group with member details and its expenses.
func ToGroupDetailResponse(d *service.GroupDetail, withExpenses bool) *GroupResponse {
	resp := ToGroupResponse(d.Group)
	resp.Members = make([]MemberResponse, 0, len(d.Members))
	for _, m := range d.Members {
		resp.Members = append(resp.Members, MemberResponse{
			UserID: m.UserID,
			Email:  m.Email,
			Name:   m.Name,
			Status: string(m.Status),
			Role:   string(m.Role),
		})
	}
	if withExpenses {
		resp.Expenses = ToExpenseResponses(d.Group.Expenses)
	}
	return resp
}

// ToGroupListResponse converts the caller's groups. Each entry carries its
// expenses, as the detail view does.
func ToGroupListResponse(details []service.GroupDetail) []*GroupResponse {
	groups := make([]*GroupResponse, 0, len(details))
	for i := range details {
		groups = append(groups, ToGroupDetailResponse(&details[i], true))
	}
	return groups
}
