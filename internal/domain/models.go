package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire and storage format for business dates.
const DateLayout = "2006-01-02"

type Unit string

const (
	UnitPieces Unit = "pieces"
	UnitMeters Unit = "meters"
	UnitYards  Unit = "yards"
)

func (u Unit) Valid() bool {
	switch u {
	case UnitPieces, UnitMeters, UnitYards:
		return true
	}
	return false
}

// LengthBased reports whether quantities of this unit measure a cut length
// rather than a count of items.
func (u Unit) LengthBased() bool {
	return u == UnitMeters || u == UnitYards
}

type StockType string

const (
	StockOld StockType = "old_stock"
	StockNew StockType = "new_stock"
)

const (
	RoleOwner       = "owner"
	RoleSalesperson = "salesperson"
)

type Variety struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Unit             Unit             `json:"measurement_unit"`
	StandardLength   *decimal.Decimal `json:"standard_length,omitempty"`
	Description      string           `json:"description,omitempty"`
	DefaultCostPrice *decimal.Decimal `json:"default_cost_price,omitempty"`
	MinStockLevel    *decimal.Decimal `json:"min_stock_level,omitempty"`
	CurrentStock     decimal.Decimal  `json:"current_stock"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

type VarietyCreateRequest struct {
	Name             string           `json:"name" validate:"required,max=100"`
	Unit             Unit             `json:"measurement_unit" validate:"required,oneof=pieces meters yards"`
	StandardLength   *decimal.Decimal `json:"standard_length,omitempty"`
	Description      string           `json:"description,omitempty"`
	DefaultCostPrice *decimal.Decimal `json:"default_cost_price,omitempty"`
	MinStockLevel    *decimal.Decimal `json:"min_stock_level,omitempty"`
}

// VarietyUpdateRequest patches a variety. A nil field is left unchanged; the
// Clear flags remove an optional amount.
type VarietyUpdateRequest struct {
	Name                  *string          `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Unit                  *Unit            `json:"measurement_unit,omitempty" validate:"omitempty,oneof=pieces meters yards"`
	StandardLength        *decimal.Decimal `json:"standard_length,omitempty"`
	Description           *string          `json:"description,omitempty"`
	DefaultCostPrice      *decimal.Decimal `json:"default_cost_price,omitempty"`
	MinStockLevel         *decimal.Decimal `json:"min_stock_level,omitempty"`
	ClearStandardLength   bool             `json:"clear_standard_length,omitempty"`
	ClearDefaultCostPrice bool             `json:"clear_default_cost_price,omitempty"`
	ClearMinStockLevel    bool             `json:"clear_min_stock_level,omitempty"`
}

type InventoryLot struct {
	ID                string          `json:"id"`
	VarietyID         string          `json:"variety_id"`
	SupplierName      string          `json:"supplier_name"`
	Quantity          decimal.Decimal `json:"quantity"`
	PricePerItem      decimal.Decimal `json:"price_per_item"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	SupplyDate        string          `json:"supply_date"`
	QuantityUsed      decimal.Decimal `json:"quantity_used"`
	QuantityReturned  decimal.Decimal `json:"quantity_returned"`
	QuantityRemaining decimal.Decimal `json:"quantity_remaining"`
	CreatedAt         time.Time       `json:"created_at"`
}

type LotReceiveRequest struct {
	SupplierName string          `json:"supplier_name" validate:"required,max=100"`
	VarietyID    string          `json:"variety_id" validate:"required"`
	Quantity     decimal.Decimal `json:"quantity"`
	PricePerItem decimal.Decimal `json:"price_per_item"`
	SupplyDate   string          `json:"supply_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

type LotFilter struct {
	VarietyID     string
	SupplierName  string
	SupplyDate    string
	AvailableOnly bool
}

type Sale struct {
	ID              string          `json:"id"`
	SalespersonName string          `json:"salesperson_name"`
	CustomerName    string          `json:"customer_name,omitempty"`
	VarietyID       string          `json:"variety_id"`
	Quantity        decimal.Decimal `json:"quantity"`
	SellingPrice    decimal.Decimal `json:"selling_price"`
	CostPrice       decimal.Decimal `json:"cost_price"`
	Profit          decimal.Decimal `json:"profit"`
	StockType       StockType       `json:"stock_type"`
	LotID           string          `json:"supplier_inventory_id,omitempty"`
	SaleDate        string          `json:"sale_date"`
	SaleTimestamp   time.Time       `json:"sale_timestamp"`
	IdempotencyKey  string          `json:"idempotency_key,omitempty"`
}

type SaleCreateRequest struct {
	SalespersonName string           `json:"salesperson_name" validate:"required,max=100"`
	CustomerName    string           `json:"customer_name,omitempty" validate:"max=100"`
	VarietyID       string           `json:"variety_id" validate:"required"`
	Quantity        decimal.Decimal  `json:"quantity"`
	SellingPrice    decimal.Decimal  `json:"selling_price"`
	CostPrice       *decimal.Decimal `json:"cost_price,omitempty"`
	StockType       StockType        `json:"stock_type,omitempty" validate:"omitempty,oneof=old_stock new_stock"`
	LotID           string           `json:"supplier_inventory_id,omitempty"`
	SaleDate        string           `json:"sale_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	IdempotencyKey  string           `json:"idempotency_key,omitempty" validate:"max=128"`
}

type SaleUpdateRequest struct {
	SalespersonName *string          `json:"salesperson_name,omitempty" validate:"omitempty,min=1,max=100"`
	CustomerName    *string          `json:"customer_name,omitempty" validate:"omitempty,max=100"`
	SellingPrice    *decimal.Decimal `json:"selling_price,omitempty"`
	CostPrice       *decimal.Decimal `json:"cost_price,omitempty"`
	SaleDate        *string          `json:"sale_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

type SaleResponse struct {
	Sale      Sale `json:"sale"`
	Duplicate bool `json:"duplicate"`
}

type ReturnAllocation struct {
	LotID    string          `json:"lot_id"`
	Quantity decimal.Decimal `json:"quantity"`
}

type SupplierReturn struct {
	ID           string             `json:"id"`
	SupplierName string             `json:"supplier_name"`
	VarietyID    string             `json:"variety_id"`
	Quantity     decimal.Decimal    `json:"quantity"`
	PricePerItem decimal.Decimal    `json:"price_per_item"`
	TotalAmount  decimal.Decimal    `json:"total_amount"`
	ReturnDate   string             `json:"return_date"`
	Reason       string             `json:"reason,omitempty"`
	Allocations  []ReturnAllocation `json:"allocations"`
	CreatedAt    time.Time          `json:"created_at"`
}

type ReturnCreateRequest struct {
	SupplierName string           `json:"supplier_name" validate:"required,max=100"`
	VarietyID    string           `json:"variety_id" validate:"required"`
	Quantity     decimal.Decimal  `json:"quantity"`
	PricePerItem *decimal.Decimal `json:"price_per_item,omitempty"`
	ReturnDate   string           `json:"return_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Reason       string           `json:"reason,omitempty" validate:"max=500"`
}

type ReturnFilter struct {
	ReturnDate string
	Year       int
	Month      int
}

type DailySupplierSummary struct {
	Date         string          `json:"date"`
	TotalSupply  decimal.Decimal `json:"total_supply"`
	TotalReturns decimal.Decimal `json:"total_returns"`
	NetAmount    decimal.Decimal `json:"net_amount"`
	SupplyCount  int64           `json:"supply_count"`
	ReturnCount  int64           `json:"return_count"`
}

type DailySalesSummary struct {
	Date              string          `json:"date"`
	TotalSalesAmount  decimal.Decimal `json:"total_sales_amount"`
	TotalProfit       decimal.Decimal `json:"total_profit"`
	TotalQuantitySold decimal.Decimal `json:"total_quantity_sold"`
	SalesCount        int64           `json:"sales_count"`
}

type DailyReport struct {
	Date              string               `json:"date"`
	SupplierSummary   DailySupplierSummary `json:"supplier_summary"`
	SalesSummary      DailySalesSummary    `json:"sales_summary"`
	NetInventoryValue decimal.Decimal      `json:"net_inventory_value"`
}

type VarietyProfit struct {
	VarietyID     string          `json:"variety_id"`
	VarietyName   string          `json:"variety_name"`
	TotalProfit   decimal.Decimal `json:"total_profit"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
	ItemCount     decimal.Decimal `json:"item_count"`
}

type SalespersonProfit struct {
	SalespersonName string          `json:"salesperson_name"`
	TotalProfit     decimal.Decimal `json:"total_profit"`
	TotalQuantity   decimal.Decimal `json:"total_quantity"`
	SalesCount      int64           `json:"sales_count"`
}

type ProfitReport struct {
	Date                string              `json:"date"`
	TotalProfit         decimal.Decimal     `json:"total_profit"`
	ProfitByVariety     []VarietyProfit     `json:"profit_by_variety"`
	ProfitBySalesperson []SalespersonProfit `json:"profit_by_salesperson"`
}

type SupplierReturnTotals struct {
	SupplierName  string          `json:"supplier_name"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	ReturnCount   int64           `json:"return_count"`
}

type MonthlyReturnsReport struct {
	Year          int                    `json:"year"`
	Month         int                    `json:"month"`
	Suppliers     []SupplierReturnTotals `json:"suppliers"`
	TotalQuantity decimal.Decimal        `json:"total_quantity"`
	TotalAmount   decimal.Decimal        `json:"total_amount"`
	ReturnCount   int64                  `json:"return_count"`
}

type SupplierDayRow struct {
	SupplierName   string          `json:"supplier_name"`
	TotalSupply    decimal.Decimal `json:"total_supply"`
	SupplyQuantity decimal.Decimal `json:"supply_quantity"`
	SupplyRecords  int64           `json:"supply_records"`
	TotalReturns   decimal.Decimal `json:"total_returns"`
	ReturnQuantity decimal.Decimal `json:"return_quantity"`
	ReturnRecords  int64           `json:"return_records"`
	NetAmount      decimal.Decimal `json:"net_amount"`
}

type SupplierDaySummary struct {
	Date      string           `json:"date"`
	Suppliers []SupplierDayRow `json:"suppliers"`
}

type MovementType string

const (
	MovementLotReceived   MovementType = "lot_received"
	MovementLotDeleted    MovementType = "lot_deleted"
	MovementSale          MovementType = "sale"
	MovementSaleDeleted   MovementType = "sale_deleted"
	MovementReturn        MovementType = "supplier_return"
	MovementReturnDeleted MovementType = "return_deleted"
)

// InventoryMovement is one signed change to a variety's lot stock. StockAfter
// is the variety's current stock once the change is applied.
type InventoryMovement struct {
	ID            string          `json:"id"`
	VarietyID     string          `json:"variety_id"`
	LotID         string          `json:"lot_id,omitempty"`
	MovementType  MovementType    `json:"movement_type"`
	Quantity      decimal.Decimal `json:"quantity"`
	ReferenceType string          `json:"reference_type"`
	ReferenceID   string          `json:"reference_id"`
	MovementDate  string          `json:"movement_date"`
	StockAfter    decimal.Decimal `json:"stock_after"`
	CreatedAt     time.Time       `json:"created_at"`
}

type MovementFilter struct {
	VarietyID string
	LotID     string
	From      string
	To        string
	Limit     int
}

type ExpenseCategory string

const (
	ExpenseRent           ExpenseCategory = "rent"
	ExpenseUtilities      ExpenseCategory = "utilities"
	ExpenseSalaries       ExpenseCategory = "salaries"
	ExpenseMarketing      ExpenseCategory = "marketing"
	ExpenseTransportation ExpenseCategory = "transportation"
	ExpenseOfficeSupplies ExpenseCategory = "office_supplies"
	ExpenseMaintenance    ExpenseCategory = "maintenance"
	ExpenseInsurance      ExpenseCategory = "insurance"
	ExpenseTaxes          ExpenseCategory = "taxes"
	ExpenseOther          ExpenseCategory = "other"
)

type Expense struct {
	ID          string          `json:"id"`
	Category    ExpenseCategory `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	ExpenseDate string          `json:"expense_date"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type ExpenseCreateRequest struct {
	Category    ExpenseCategory `json:"category" validate:"required,oneof=rent utilities salaries marketing transportation office_supplies maintenance insurance taxes other"`
	Amount      decimal.Decimal `json:"amount"`
	ExpenseDate string          `json:"expense_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Description string          `json:"description,omitempty" validate:"max=500"`
}

type ExpenseFilter struct {
	ExpenseDate string
	Year        int
	Month       int
}

type ExpenseSummary struct {
	Date              string                              `json:"date"`
	TotalExpenses     decimal.Decimal                     `json:"total_expenses"`
	CategoryBreakdown map[ExpenseCategory]decimal.Decimal `json:"category_breakdown"`
	ExpenseCount      int64                               `json:"expense_count"`
}

// SalesTotals is the raw sales aggregate over a period.
type SalesTotals struct {
	TotalSalesAmount decimal.Decimal `json:"total_sales_amount"`
	TotalProfit      decimal.Decimal `json:"total_profit"`
	SalesCount       int64           `json:"sales_count"`
}

// FinancialReport sets a month's sales profit against its expenses. Margin
// and ratio are percentages of revenue.
type FinancialReport struct {
	Year          int             `json:"year"`
	Month         int             `json:"month"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	TotalProfit   decimal.Decimal `json:"total_profit"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	NetIncome     decimal.Decimal `json:"net_income"`
	ProfitMargin  decimal.Decimal `json:"profit_margin"`
	ExpenseRatio  decimal.Decimal `json:"expense_ratio"`
	SalesCount    int64           `json:"sales_count"`
	ExpenseCount  int64           `json:"expense_count"`
}

type LowStockVariety struct {
	Variety       Variety         `json:"variety"`
	CurrentStock  decimal.Decimal `json:"current_stock"`
	MinStockLevel decimal.Decimal `json:"min_stock_level"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}
