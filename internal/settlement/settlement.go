// Package settlement derives net balances from a group's ledger.
package settlement

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/splitledger/splitledger/internal/model"
)

// Balance is a member's signed net position.
// Positive means the member is owed money, negative means they owe.
type Balance struct {
	UserID string
	Amount decimal.Decimal
}

// Transfer is a suggested payment that moves balances toward zero.
type Transfer struct {
	From   string
	To     string
	Amount decimal.Decimal
}

// Calculate returns one balance per current member, in membership order.
//
// Expenses outside period are ignored (nil selects all). The payer is credited
// with the full amount and each split user is debited their share. Either side
// is skipped when the user is no longer a member, so splits of removed members
// do not affect the result.
func Calculate(g *model.Group, period *model.Period) []Balance {
	balances := make([]Balance, len(g.Members))
	index := make(map[string]int, len(g.Members))
	for i, m := range g.Members {
		balances[i] = Balance{UserID: m.UserID, Amount: decimal.Zero}
		index[m.UserID] = i
	}

	for _, e := range g.Expenses {
		if !period.Contains(e.CreatedAt) {
			continue
		}
		if i, ok := index[e.PaidBy]; ok {
			balances[i].Amount = balances[i].Amount.Add(e.Amount)
		}
		for _, s := range e.Splits {
			if i, ok := index[s.UserID]; ok {
				balances[i].Amount = balances[i].Amount.Sub(s.Share)
			}
		}
	}

	return balances
}

// Filter returns the expenses whose creation time falls in period, preserving order.
func Filter(expenses []model.Expense, period *model.Period) []model.Expense {
	filtered := make([]model.Expense, 0, len(expenses))
	for _, e := range expenses {
		if period.Contains(e.CreatedAt) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// Simplify turns balances into a short list of transfers using greedy
// matching of the largest debtor with the largest creditor.
// Balances that do not net to zero leave the remainder unassigned.
func Simplify(balances []Balance) []Transfer {
	var creditors, debtors []Balance
	for _, b := range balances {
		switch b.Amount.Sign() {
		case 1:
			creditors = append(creditors, b)
		case -1:
			debtors = append(debtors, Balance{UserID: b.UserID, Amount: b.Amount.Neg()})
		}
	}

	byAmountDesc := func(s []Balance) {
		sort.SliceStable(s, func(i, j int) bool {
			return s[i].Amount.GreaterThan(s[j].Amount)
		})
	}
	byAmountDesc(creditors)
	byAmountDesc(debtors)

	transfers := []Transfer{}
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		amount := decimal.Min(debtors[i].Amount, creditors[j].Amount)
		if amount.IsPositive() {
			transfers = append(transfers, Transfer{
				From:   debtors[i].UserID,
				To:     creditors[j].UserID,
				Amount: amount,
			})
		}

		debtors[i].Amount = debtors[i].Amount.Sub(amount)
		creditors[j].Amount = creditors[j].Amount.Sub(amount)

		if !debtors[i].Amount.IsPositive() {
			i++
		}
		if !creditors[j].Amount.IsPositive() {
			j++
		}
	}

	return transfers
}
