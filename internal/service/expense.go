package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/splitledger/splitledger/internal/metrics"
	"github.com/splitledger/splitledger/internal/model"
	"github.com/splitledger/splitledger/internal/settlement"
)

// ExpenseService manages a group's ledger.
type ExpenseService struct {
	*core
}

// AddExpenseInput defines input for recording an expense.
type AddExpenseInput struct {
	ActorID     string
	GroupID     string
	Description string
	Amount      decimal.Decimal
	PaidBy      string
	// Date defaults to the current time.
	Date   time.Time
	Splits []model.Split
}

// EditExpenseInput defines input for editing an expense.
type EditExpenseInput struct {
	ActorID     string
	GroupID     string
	ExpenseID   string
	Description string
	Amount      decimal.Decimal
}

// MonthFilter selects a calendar month. The zero value selects everything.
type MonthFilter struct {
	Year  int
	Month int

	requested bool
}

// Month returns a filter for an explicitly requested month. Unlike a bare
// literal, Month(0, 0) is validated instead of selecting everything.
func Month(year, month int) MonthFilter {
	return MonthFilter{Year: year, Month: month, requested: true}
}

// IsZero reports whether no month was requested.
func (f MonthFilter) IsZero() bool {
	return !f.requested && f.Year == 0 && f.Month == 0
}

// period resolves f in the configured location.
func (c *core) period(f MonthFilter) (*model.Period, error) {
	if f.IsZero() {
		return nil, nil
	}
	p, err := model.NewPeriod(f.Year, f.Month, c.opts.Location)
	if err != nil {
		return nil, ErrInvalidPeriod
	}
	return p, nil
}

// AddExpense appends an expense to the group's ledger. Splits are stored as given.
func (s *ExpenseService) AddExpense(ctx context.Context, input AddExpenseInput) (*model.Expense, error) {
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, ErrDescriptionRequired
	}
	if !input.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !model.ValidMoney(input.Amount) {
		return nil, ErrAmountPrecision
	}
	if input.PaidBy == "" {
		return nil, ErrPaidByRequired
	}
	for _, split := range input.Splits {
		if !model.ValidMoney(split.Share) {
			return nil, ErrInvalidShare
		}
	}

	now := s.now()
	expense := model.Expense{
		ID:          generateULID(),
		Description: description,
		Amount:      input.Amount,
		PaidBy:      input.PaidBy,
		Date:        input.Date,
		Splits:      append([]model.Split{}, input.Splits...),
		CreatedAt:   now,
	}
	if expense.Date.IsZero() {
		expense.Date = now
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.mutate(ctx, input.GroupID, func(g *model.Group) error {
		if !g.IsAcceptedMember(input.ActorID) {
			return ErrNotMember
		}
		g.Expenses = append(g.Expenses, expense)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncExpenseMutation(metrics.ExpenseAdded)
	s.recordExpense(ctx, input.ActorID, input.GroupID, model.ActivityExpenseAdded, &expense)
	return &expense, nil
}

// EditExpense updates description and amount and resets every split to an equal share.
func (s *ExpenseService) EditExpense(ctx context.Context, input EditExpenseInput) (*model.Expense, error) {
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, ErrDescriptionRequired
	}
	if !input.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !model.ValidMoney(input.Amount) {
		return nil, ErrAmountPrecision
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var edited model.Expense
	_, err := s.mutate(ctx, input.GroupID, func(g *model.Group) error {
		if !g.IsAcceptedMember(input.ActorID) {
			return ErrNotMember
		}
		e, ok := g.Expense(input.ExpenseID)
		if !ok {
			return ErrExpenseNotFound
		}
		e.Description = description
		e.Amount = input.Amount
		e.RedistributeEqually()

		edited = *e
		edited.Splits = append([]model.Split{}, e.Splits...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncExpenseMutation(metrics.ExpenseEdited)
	s.recordExpense(ctx, input.ActorID, input.GroupID, model.ActivityExpenseEdited, &edited)
	return &edited, nil
}

// DeleteExpense removes an expense. An unknown expense id succeeds without changes.
func (s *ExpenseService) DeleteExpense(ctx context.Context, actorID, groupID, expenseID string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var deleted bool
	_, err := s.mutate(ctx, groupID, func(g *model.Group) error {
		deleted = false
		if !g.IsAcceptedMember(actorID) {
			return ErrNotMember
		}
		if _, ok := g.Expense(expenseID); !ok {
			return errUnchanged
		}
		g.RemoveExpense(expenseID)
		deleted = true
		return nil
	})
	if err != nil {
		return err
	}

	if deleted {
		s.metrics.IncExpenseMutation(metrics.ExpenseDeleted)
		s.record(ctx, model.Activity{
			GroupID:   groupID,
			ActorID:   actorID,
			Kind:      model.ActivityExpenseDeleted,
			SubjectID: expenseID,
		})
	}
	return nil
}

func (s *ExpenseService) recordExpense(ctx context.Context, actorID, groupID string, kind model.ActivityKind, e *model.Expense) {
	amount := e.Amount
	s.record(ctx, model.Activity{
		GroupID:   groupID,
		ActorID:   actorID,
		Kind:      kind,
		SubjectID: e.ID,
		Amount:    &amount,
		Detail:    e.Description,
	})
}

// ListExpenses returns the group's expenses created within the month filter, in ledger order.
func (s *ExpenseService) ListExpenses(ctx context.Context, actorID, groupID string, filter MonthFilter) ([]model.Expense, error) {
	period, err := s.period(filter)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	g, err := s.loadGroup(ctx, actorID, groupID)
	if err != nil {
		return nil, err
	}
	return settlement.Filter(g.Expenses, period), nil
}
