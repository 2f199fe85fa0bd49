package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/splitledger/splitledger/internal/handler/dto"
	"github.com/splitledger/splitledger/internal/service"
)

// ExpenseHandler handles HTTP requests for the ledger and balances.
type ExpenseHandler struct {
	expenses *service.ExpenseService
	balances *service.BalanceService
	logger   *slog.Logger
}

// NewExpenseHandler creates a new ExpenseHandler.
func NewExpenseHandler(expenses *service.ExpenseService, balances *service.BalanceService, logger *slog.Logger) *ExpenseHandler {
	return &ExpenseHandler{
		expenses: expenses,
		balances: balances,
		logger:   logger,
	}
}

// Add handles POST /api/v1/groups/{groupID}/expenses.
func (h *ExpenseHandler) Add(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	var req dto.AddExpenseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var date time.Time
	if req.Date != nil {
		date = *req.Date
	}

	e, err := h.expenses.AddExpense(r.Context(), service.AddExpenseInput{
		ActorID:     actor,
		GroupID:     chi.URLParam(r, "groupID"),
		Description: req.Description,
		Amount:      req.Amount,
		PaidBy:      req.PaidBy,
		Date:        date,
		Splits:      dto.ToSplits(req.SplitAmong),
	})
	if err != nil {
		handleServiceError(h.logger, w, err)
		return
	}

	h.logger.Info("expense_added",
		"expense_id", e.ID,
		"splits", len(e.Splits),
	)

	writeData(w, http.StatusCreated, dto.ToExpenseResponse(e))
}

// List handles GET /api/v1/groups/{groupID}/expenses?month=&year=.
func (h *ExpenseHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	filter, ok := parseMonthFilter(w, r)
	if !ok {
		return
	}

	expenses, err := h.expenses.ListExpenses(r.Context(), actor, chi.URLParam(r, "groupID"), filter)
	if err != nil {
		handleServiceError(h.logger, w, err)
		return
	}

	writeData(w, http.StatusOK, dto.ToExpenseResponses(expenses))
}

// Edit handles PUT /api/v1/groups/{groupID}/expenses/{expenseID}.
func (h *ExpenseHandler) Edit(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	var req dto.EditExpenseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	e, err := h.expenses.EditExpense(r.Context(), service.EditExpenseInput{
		ActorID:     actor,
		GroupID:     chi.URLParam(r, "groupID"),
		ExpenseID:   chi.URLParam(r, "expenseID"),
		Description: req.Description,
		Amount:      req.Amount,
	})
	if err != nil {
		handleServiceError(h.logger, w, err)
		return
	}

	h.logger.Info("expense_edited", "expense_id", e.ID)

	writeData(w, http.StatusOK, dto.ToExpenseResponse(e))
}

// Delete handles DELETE /api/v1/groups/{groupID}/expenses/{expenseID}.
func (h *ExpenseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	expenseID := chi.URLParam(r, "expenseID")
	if err := h.expenses.DeleteExpense(r.Context(), actor, chi.URLParam(r, "groupID"), expenseID); err != nil {
		handleServiceError(h.logger, w, err)
		return
	}

	h.logger.Info("expense_deleted", "expense_id", expenseID)

	writeData(w, http.StatusOK, dto.MessageResponse{Message: "Expense deleted"})
}

// Balance handles GET /api/v1/groups/{groupID}/balance?month=&year=.
func (h *ExpenseHandler) Balance(w http.ResponseWriter, r *http.Request) {
	h.report(w, r, false)
}

// Settlements handles GET /api/v1/groups/{groupID}/settlements?month=&year=.
func (h *ExpenseHandler) Settlements(w http.ResponseWriter, r *http.Request) {
	h.report(w, r, true)
}

func (h *ExpenseHandler) report(w http.ResponseWriter, r *http.Request, transfers bool) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	filter, ok := parseMonthFilter(w, r)
	if !ok {
		return
	}

	calc := h.balances.CalculateBalance
	if transfers {
		calc = h.balances.SuggestSettlements
	}
	report, err := calc(r.Context(), actor, chi.URLParam(r, "groupID"), filter)
	if err != nil {
		handleServiceError(h.logger, w, err)
		return
	}

	writeData(w, http.StatusOK, dto.ToBalanceResponse(report))
}

// parseMonthFilter reads month and year query parameters. Both or neither must be set.
func parseMonthFilter(w http.ResponseWriter, r *http.Request) (service.MonthFilter, bool) {
	q := r.URL.Query()
	monthStr, yearStr := q.Get("month"), q.Get("year")
	if monthStr == "" && yearStr == "" {
		return service.MonthFilter{}, true
	}

	month, errMonth := strconv.Atoi(monthStr)
	year, errYear := strconv.Atoi(yearStr)
	if errMonth != nil || errYear != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "month and year must both be numbers")
		return service.MonthFilter{}, false
	}
	return service.Month(year, month), true
}
