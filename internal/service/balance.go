package service

import (
	"context"
	"time"

	"github.com/splitledger/splitledger/internal/model"
	"github.com/splitledger/splitledger/internal/settlement"
)

// BalanceService computes balances and settlement suggestions.
type BalanceService struct {
	*core
}

// BalanceReport is the result of a balance computation.
// Users holds the user records referenced by Balances and Transfers.
type BalanceReport struct {
	GroupID   string
	Period    *model.Period
	Balances  []settlement.Balance
	Transfers []settlement.Transfer
	Users     map[string]*model.User
}

// CalculateBalance returns each current member's net balance over the month filter.
func (s *BalanceService) CalculateBalance(ctx context.Context, actorID, groupID string, filter MonthFilter) (*BalanceReport, error) {
	return s.report(ctx, actorID, groupID, filter, false)
}

// SuggestSettlements returns the balances plus a transfer list that settles them.
func (s *BalanceService) SuggestSettlements(ctx context.Context, actorID, groupID string, filter MonthFilter) (*BalanceReport, error) {
	return s.report(ctx, actorID, groupID, filter, true)
}

func (s *BalanceService) report(ctx context.Context, actorID, groupID string, filter MonthFilter, transfers bool) (*BalanceReport, error) {
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

	start := time.Now()
	r := &BalanceReport{
		GroupID:  g.ID,
		Period:   period,
		Balances: settlement.Calculate(g, period),
	}
	if transfers {
		r.Transfers = settlement.Simplify(r.Balances)
	}
	s.metrics.ObserveBalanceDuration(time.Since(start))

	ids := make([]string, 0, len(r.Balances))
	for _, b := range r.Balances {
		ids = append(ids, b.UserID)
	}
	r.Users, err = s.users(ctx, ids)
	if err != nil {
		return nil, err
	}
	return r, nil
}
