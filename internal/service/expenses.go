package service

import (
	"context"
	"fmt"
	"strings"

	"clothpos/backend/internal/domain"
	"clothpos/backend/internal/reconcile"
	"clothpos/backend/internal/store"
)

func (s *Service) RecordExpense(ctx context.Context, req domain.ExpenseCreateRequest) (domain.Expense, error) {
	req.Category = domain.ExpenseCategory(strings.ToLower(strings.TrimSpace(string(req.Category))))
	req.ExpenseDate = strings.TrimSpace(req.ExpenseDate)
	req.Description = strings.TrimSpace(req.Description)
	if err := s.checkStruct(req); err != nil {
		return domain.Expense{}, err
	}

	fields := map[string]string{}
	if !req.Amount.IsPositive() {
		fields["amount"] = "must be greater than zero"
	}
	placesOnly(fields, "amount", req.Amount)
	if len(fields) > 0 {
		return domain.Expense{}, &store.ValidationError{Fields: fields}
	}
	if req.ExpenseDate == "" {
		req.ExpenseDate = s.today()
	}

	created, err := s.repo.CreateExpense(ctx, domain.Expense{
		Category:    req.Category,
		Amount:      req.Amount,
		ExpenseDate: req.ExpenseDate,
		Description: req.Description,
	})
	if err != nil {
		return domain.Expense{}, err
	}

	s.logAudit(ctx, "expense_create", "expense", created.ID,
		fmt.Sprintf("category=%s,amount=%s,date=%s", created.Category, created.Amount, created.ExpenseDate))
	return *created, nil
}

func (s *Service) ListExpenses(ctx context.Context, filter domain.ExpenseFilter) ([]domain.Expense, error) {
	if filter.ExpenseDate != "" {
		date, err := ParseDate("date", filter.ExpenseDate)
		if err != nil {
			return nil, err
		}
		filter.ExpenseDate = date
	}
	if filter.Year != 0 || filter.Month != 0 {
		if err := checkYearMonth(filter.Year, filter.Month); err != nil {
			return nil, err
		}
	}
	return s.repo.ListExpenses(ctx, filter)
}

func (s *Service) DeleteExpense(ctx context.Context, id string) (domain.Expense, error) {
	if err := requireOwner(ctx); err != nil {
		return domain.Expense{}, err
	}
	deleted, err := s.repo.DeleteExpense(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Expense{}, err
	}

	s.logAudit(ctx, "expense_delete", "expense", deleted.ID,
		fmt.Sprintf("category=%s,amount=%s,date=%s", deleted.Category, deleted.Amount, deleted.ExpenseDate))
	return *deleted, nil
}

func (s *Service) ExpenseSummary(ctx context.Context, date string) (domain.ExpenseSummary, error) {
	date, err := ParseDate("date", date)
	if err != nil {
		return domain.ExpenseSummary{}, err
	}
	expenses, err := s.repo.ListExpenses(ctx, domain.ExpenseFilter{ExpenseDate: date})
	if err != nil {
		return domain.ExpenseSummary{}, err
	}
	return reconcile.ExpenseSummary(date, expenses), nil
}

// FinancialReport sets the month's sales profit against its expenses.
func (s *Service) FinancialReport(ctx context.Context, year int, month int) (domain.FinancialReport, error) {
	if err := checkYearMonth(year, month); err != nil {
		return domain.FinancialReport{}, err
	}
	from, to := reconcile.MonthBounds(year, month)
	totals, err := s.repo.GetSalesTotals(ctx, from, to)
	if err != nil {
		return domain.FinancialReport{}, err
	}
	expenses, err := s.repo.ListExpenses(ctx, domain.ExpenseFilter{Year: year, Month: month})
	if err != nil {
		return domain.FinancialReport{}, err
	}
	return reconcile.FinancialReport(year, month, totals, expenses), nil
}
