package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/splitledger/splitledger/internal/model"
	"github.com/splitledger/splitledger/internal/service"
)

// SplitRequest is one entry of an expense split.
type SplitRequest struct {
	UserID string          `json:"user_id"`
	Share  decimal.Decimal `json:"share"`
}

// AddExpenseRequest represents the request body for adding an expense.
type AddExpenseRequest struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	PaidBy      string          `json:"paid_by"`
	Date        *time.Time      `json:"date,omitempty"`
	SplitAmong  []SplitRequest  `json:"split_among"`
}

// EditExpenseRequest represents the request body for editing an expense.
type EditExpenseRequest struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// SplitResponse is a split in API responses.
type SplitResponse struct {
	UserID string          `json:"user_id"`
	Share  decimal.Decimal `json:"share"`
}

// ExpenseResponse represents an expense in API responses.
type ExpenseResponse struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	PaidBy      string          `json:"paid_by"`
	Date        time.Time       `json:"date"`
	SplitAmong  []SplitResponse `json:"split_among"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ToSplits converts request splits to model splits.
func ToSplits(req []SplitRequest) []model.Split {
	splits := make([]model.Split, 0, len(req))
	for _, s := range req {
		splits = append(splits, model.Split{UserID: s.UserID, Share: s.Share})
	}
	return splits
}

// ToExpenseResponse converts an Expense model to its DTO.
func ToExpenseResponse(e *model.Expense) ExpenseResponse {
	splits := make([]SplitResponse, 0, len(e.Splits))
	for _, s := range e.Splits {
		splits = append(splits, SplitResponse{UserID: s.UserID, Share: s.Share})
	}
	return ExpenseResponse{
		ID:          e.ID,
		Description: e.Description,
		Amount:      e.Amount,
		PaidBy:      e.PaidBy,
		Date:        e.Date,
		SplitAmong:  splits,
		CreatedAt:   e.CreatedAt,
	}
}

// ToExpenseResponses converts a ledger slice.
func ToExpenseResponses(expenses []model.Expense) []ExpenseResponse {
	out := make([]ExpenseResponse, 0, len(expenses))
	for i := range expenses {
		out = append(out, ToExpenseResponse(&expenses[i]))
	}
	return out
}

// BalanceEntry is one member's balance with user details.
type BalanceEntry struct {
	UserID string          `json:"user_id"`
	Email  string          `json:"email,omitempty"`
	Name   string          `json:"name,omitempty"`
	Amount decimal.Decimal `json:"balance"`
}

// TransferEntry is a suggested payment.
type TransferEntry struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

// BalanceResponse represents the balances of a group.
type BalanceResponse struct {
	GroupID   string          `json:"group_id"`
	Year      int             `json:"year,omitempty"`
	Month     int             `json:"month,omitempty"`
	Balances  []BalanceEntry  `json:"balances"`
	Transfers []TransferEntry `json:"transfers,omitempty"`
}

// ToBalanceResponse converts a balance report.
func ToBalanceResponse(r *service.BalanceReport) *BalanceResponse {
	resp := &BalanceResponse{
		GroupID:  r.GroupID,
		Balances: make([]BalanceEntry, 0, len(r.Balances)),
	}
	if r.Period != nil {
		resp.Year = r.Period.Year
		resp.Month = int(r.Period.Month)
	}
	for _, b := range r.Balances {
		entry := BalanceEntry{UserID: b.UserID, Amount: b.Amount}
		if u, ok := r.Users[b.UserID]; ok {
			entry.Email = u.Email
			entry.Name = u.Name
		}
		resp.Balances = append(resp.Balances, entry)
	}
	if r.Transfers != nil {
		resp.Transfers = make([]TransferEntry, 0, len(r.Transfers))
		for _, t := range r.Transfers {
			resp.Transfers = append(resp.Transfers, TransferEntry{From: t.From, To: t.To, Amount: t.Amount})
		}
	}
	return resp
}
