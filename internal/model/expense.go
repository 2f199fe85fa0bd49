package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places stored for amounts and shares.
const MoneyScale = 2

// maxMoney bounds amounts and shares to what NUMERIC(14, 2) holds.
var maxMoney = decimal.New(1, 12)

// ValidMoney reports whether d fits the stored money column without rounding.
func ValidMoney(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MoneyScale)) && d.Abs().LessThan(maxMoney)
}

// Split is one user's share of an expense.
type Split struct {
	UserID string          `json:"user_id"`
	Share  decimal.Decimal `json:"share"`
}

// Expense is a single ledger entry paid by one user and split among many.
type Expense struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	PaidBy      string          `json:"paid_by"`
	Date        time.Time       `json:"date"`
	Splits      []Split         `json:"splits"`
	CreatedAt   time.Time       `json:"created_at"`
}

// SplitTotal sums all split shares.
func (e *Expense) SplitTotal() decimal.Decimal {
	total := decimal.Zero
	for _, s := range e.Splits {
		total = total.Add(s.Share)
	}
	return total
}

// RedistributeEqually sets every split share to amount divided by the split count.
// Quotients finer than a cent are rounded half away from zero; the residue is not reassigned.
func (e *Expense) RedistributeEqually() {
	if len(e.Splits) == 0 {
		return
	}
	share := e.Amount.DivRound(decimal.NewFromInt(int64(len(e.Splits))), MoneyScale)
	for i := range e.Splits {
		e.Splits[i].Share = share
	}
}
