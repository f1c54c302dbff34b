package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"clothpos/backend/internal/domain"
	"clothpos/backend/internal/store"
	"clothpos/backend/internal/xid"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// recordMovement appends a movement inside the caller's transaction. The
// stock_after column is summed from the variety's lots as the transaction
// sees them, so it must run after the lot change it describes.
func recordMovement(ctx context.Context, tx execer, m domain.InventoryMovement) error {
	if m.ID == "" {
		m.ID = xid.New("mov")
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.MovementDate == "" {
		m.MovementDate = m.CreatedAt.Format(domain.DateLayout)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO inventory_movements (id, variety_id, lot_id, movement_type, quantity, reference_type,
			reference_id, movement_date, stock_after, created_at)
		SELECT $1::text, $2::text, $3::text, $4::text, $5::numeric, $6::text, $7::text, $8::date,
			COALESCE(SUM(l.quantity_remaining), 0), $9::timestamptz
		FROM inventory_lots l
		WHERE l.variety_id = $2::text
	`, m.ID, m.VarietyID, nullIfEmpty(m.LotID), string(m.MovementType), m.Quantity, m.ReferenceType,
		m.ReferenceID, m.MovementDate, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("record %s movement: %w", m.MovementType, err)
	}
	return nil
}

func (s *Store) ListInventoryMovements(ctx context.Context, filter domain.MovementFilter) ([]domain.InventoryMovement, error) {
	clauses := make([]string, 0, 4)
	args := make([]any, 0, 5)
	if filter.VarietyID != "" {
		args = append(args, filter.VarietyID)
		clauses = append(clauses, fmt.Sprintf("variety_id = $%d", len(args)))
	}
	if filter.LotID != "" {
		args = append(args, filter.LotID)
		clauses = append(clauses, fmt.Sprintf("lot_id = $%d", len(args)))
	}
	if filter.From != "" {
		args = append(args, filter.From)
		clauses = append(clauses, fmt.Sprintf("movement_date >= $%d::date", len(args)))
	}
	if filter.To != "" {
		args = append(args, filter.To)
		clauses = append(clauses, fmt.Sprintf("movement_date <= $%d::date", len(args)))
	}

	query := `
		SELECT id, variety_id, COALESCE(lot_id, ''), movement_type, quantity, reference_type, reference_id,
			to_char(movement_date, 'YYYY-MM-DD'), stock_after, created_at
		FROM inventory_movements`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY seq DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movements := make([]domain.InventoryMovement, 0, 32)
	for rows.Next() {
		var m domain.InventoryMovement
		var movementType string
		if err := rows.Scan(&m.ID, &m.VarietyID, &m.LotID, &movementType, &m.Quantity, &m.ReferenceType,
			&m.ReferenceID, &m.MovementDate, &m.StockAfter, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.MovementType = domain.MovementType(movementType)
		m.CreatedAt = m.CreatedAt.UTC()
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

const expenseColumns = `id, category, amount, to_char(expense_date, 'YYYY-MM-DD'), description, created_at`

func scanExpense(row rowScanner) (domain.Expense, error) {
	var e domain.Expense
	var category string
	err := row.Scan(&e.ID, &category, &e.Amount, &e.ExpenseDate, &e.Description, &e.CreatedAt)
	e.Category = domain.ExpenseCategory(category)
	e.CreatedAt = e.CreatedAt.UTC()
	return e, err
}

func (s *Store) CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (id, category, amount, expense_date, description, created_at)
		VALUES ($1,$2,$3,$4::date,$5,$6)
	`, expense.ID, string(expense.Category), expense.Amount, expense.ExpenseDate, expense.Description, expense.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &expense, nil
}

func (s *Store) ListExpenses(ctx context.Context, filter domain.ExpenseFilter) ([]domain.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses`
	args := make([]any, 0, 2)
	switch {
	case filter.ExpenseDate != "":
		query += " WHERE expense_date = $1::date"
		args = append(args, filter.ExpenseDate)
	case filter.Year > 0:
		query += " WHERE EXTRACT(YEAR FROM expense_date) = $1 AND EXTRACT(MONTH FROM expense_date) = $2"
		args = append(args, filter.Year, filter.Month)
	}
	query += " ORDER BY expense_date DESC, created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := make([]domain.Expense, 0, 32)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func (s *Store) DeleteExpense(ctx context.Context, id string) (*domain.Expense, error) {
	e, err := scanExpense(s.db.QueryRowContext(ctx, `DELETE FROM expenses WHERE id = $1 RETURNING `+expenseColumns, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (s *Store) GetSalesTotals(ctx context.Context, from string, to string) (domain.SalesTotals, error) {
	var totals domain.SalesTotals
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(selling_price), 0), COALESCE(SUM(profit), 0), COUNT(id)
		FROM sales
		WHERE sale_date BETWEEN $1::date AND $2::date
	`, from, to).Scan(&totals.TotalSalesAmount, &totals.TotalProfit, &totals.SalesCount)
	return totals, err
}
