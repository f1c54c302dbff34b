package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"clothpos/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrValidation        = errors.New("validation failed")
)

// ValidationError lists the offending fields of a rejected request.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field string, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, key := range slices.Sorted(maps.Keys(e.Fields)) {
		parts = append(parts, fmt.Sprintf("%s: %s", key, e.Fields[key]))
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// InsufficientStockError reports how much was asked for against what the
// matching lots could cover at the time of the check.
type InsufficientStockError struct {
	VarietyID string
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for variety %s: requested %s, available %s",
		e.VarietyID, e.Requested.String(), e.Available.String())
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

type Repository interface {
	ListVarieties(ctx context.Context) ([]domain.Variety, error)
	GetVariety(ctx context.Context, id string) (*domain.Variety, error)
	CreateVariety(ctx context.Context, variety domain.Variety) (*domain.Variety, error)
	UpdateVariety(ctx context.Context, variety domain.Variety) (*domain.Variety, error)
	DeleteVariety(ctx context.Context, id string) error

	CreateInventoryLot(ctx context.Context, lot domain.InventoryLot) (*domain.InventoryLot, error)
	GetInventoryLot(ctx context.Context, id string) (*domain.InventoryLot, error)
	ListInventoryLots(ctx context.Context, filter domain.LotFilter) ([]domain.InventoryLot, error)
	DeleteInventoryLot(ctx context.Context, id string) error

	// CreateSale inserts the sale and, for new stock, decrements its lot in
	// one atomic step. The decrement is conditional on the lot still holding
	// the full quantity.
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	FindSaleByIdempotency(ctx context.Context, key string) (*domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, limit int) ([]domain.Sale, error)
	ListSalesByDate(ctx context.Context, date string) ([]domain.Sale, error)
	UpdateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	// DeleteSale removes the sale and restores its lot in one atomic step.
	DeleteSale(ctx context.Context, id string) (*domain.Sale, error)

	// CreateReturn allocates the quantity FIFO across the supplier's lots of
	// the variety, records the allocations and decrements each lot atomically.
	CreateReturn(ctx context.Context, ret domain.SupplierReturn) (*domain.SupplierReturn, error)
	ListReturns(ctx context.Context, filter domain.ReturnFilter) ([]domain.SupplierReturn, error)
	DeleteReturn(ctx context.Context, id string) (*domain.SupplierReturn, error)

	// GetDailyReport returns the raw ledger aggregate for the date. Its
	// total_quantity_sold is a naive quantity sum.
	GetDailyReport(ctx context.Context, date string) (domain.DailyReport, error)

	// GetSalesTotals aggregates sales dated in [from, to], both inclusive.
	GetSalesTotals(ctx context.Context, from string, to string) (domain.SalesTotals, error)

	// ListInventoryMovements returns movements newest first. Movements are
	// written by the lot, sale and return operations in the same atomic step
	// as the lot change they record.
	ListInventoryMovements(ctx context.Context, filter domain.MovementFilter) ([]domain.InventoryMovement, error)

	CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	ListExpenses(ctx context.Context, filter domain.ExpenseFilter) ([]domain.Expense, error)
	DeleteExpense(ctx context.Context, id string) (*domain.Expense, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
