package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"clothpos/backend/internal/domain"
	"clothpos/backend/internal/reconcile"
	"clothpos/backend/internal/store"
	"clothpos/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// NewWithDB wraps an existing handle. Used by tests.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

const varietyColumns = `
	v.id, v.name, v.measurement_unit, v.standard_length, v.description,
	v.default_cost_price, v.min_stock_level, v.created_at, v.updated_at,
	COALESCE((SELECT SUM(l.quantity_remaining) FROM inventory_lots l WHERE l.variety_id = v.id), 0)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVariety(row rowScanner) (domain.Variety, error) {
	var v domain.Variety
	var unit string
	var standardLength, defaultCost, minStock decimal.NullDecimal
	if err := row.Scan(&v.ID, &v.Name, &unit, &standardLength, &v.Description,
		&defaultCost, &minStock, &v.CreatedAt, &v.UpdatedAt, &v.CurrentStock); err != nil {
		return v, err
	}
	v.Unit = domain.Unit(unit)
	v.StandardLength = fromNull(standardLength)
	v.DefaultCostPrice = fromNull(defaultCost)
	v.MinStockLevel = fromNull(minStock)
	v.CreatedAt = v.CreatedAt.UTC()
	v.UpdatedAt = v.UpdatedAt.UTC()
	return v, nil
}

func (s *Store) ListVarieties(ctx context.Context) ([]domain.Variety, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+varietyColumns+` FROM varieties v ORDER BY lower(v.name)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	varieties := make([]domain.Variety, 0, 32)
	for rows.Next() {
		v, err := scanVariety(rows)
		if err != nil {
			return nil, err
		}
		varieties = append(varieties, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return varieties, nil
}

func (s *Store) GetVariety(ctx context.Context, id string) (*domain.Variety, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+varietyColumns+` FROM varieties v WHERE v.id = $1`, id)
	v, err := scanVariety(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (s *Store) CreateVariety(ctx context.Context, variety domain.Variety) (*domain.Variety, error) {
	if variety.ID == "" {
		variety.ID = xid.New("var")
	}
	if variety.CreatedAt.IsZero() {
		variety.CreatedAt = time.Now().UTC()
	}
	variety.UpdatedAt = variety.CreatedAt
	variety.CurrentStock = decimal.Zero

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO varieties (id, name, measurement_unit, standard_length, description,
			default_cost_price, min_stock_level, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, variety.ID, variety.Name, string(variety.Unit), toNull(variety.StandardLength), variety.Description,
		toNull(variety.DefaultCostPrice), toNull(variety.MinStockLevel), variety.CreatedAt, variety.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.NewValidationError("name", "a variety with this name already exists")
		}
		return nil, err
	}
	return &variety, nil
}

func (s *Store) UpdateVariety(ctx context.Context, variety domain.Variety) (*domain.Variety, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE varieties
		SET name = $2, measurement_unit = $3, standard_length = $4, description = $5,
			default_cost_price = $6, min_stock_level = $7, updated_at = now()
		WHERE id = $1
	`, variety.ID, variety.Name, string(variety.Unit), toNull(variety.StandardLength), variety.Description,
		toNull(variety.DefaultCostPrice), toNull(variety.MinStockLevel))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.NewValidationError("name", "a variety with this name already exists")
		}
		return nil, err
	}
	if err := expectAffected(res); err != nil {
		return nil, err
	}
	return s.GetVariety(ctx, variety.ID)
}

func (s *Store) DeleteVariety(ctx context.Context, id string) error {
	pgTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = pgTx.Rollback() }()

	var inUse bool
	if err := pgTx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM inventory_lots WHERE variety_id = $1)
			OR EXISTS (SELECT 1 FROM sales WHERE variety_id = $1)
			OR EXISTS (SELECT 1 FROM supplier_returns WHERE variety_id = $1)
	`, id).Scan(&inUse); err != nil {
		return err
	}
	if inUse {
		return store.NewValidationError("variety_id", "variety has inventory, sales or returns")
	}

	res, err := pgTx.ExecContext(ctx, `DELETE FROM varieties WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if err := expectAffected(res); err != nil {
		return err
	}
	return pgTx.Commit()
}

const lotColumns = `
	id, variety_id, supplier_name, quantity, price_per_item, total_amount,
	to_char(supply_date, 'YYYY-MM-DD'), quantity_used, quantity_returned, quantity_remaining, created_at`

func scanLot(row rowScanner) (domain.InventoryLot, error) {
	var lot domain.InventoryLot
	err := row.Scan(&lot.ID, &lot.VarietyID, &lot.SupplierName, &lot.Quantity, &lot.PricePerItem, &lot.TotalAmount,
		&lot.SupplyDate, &lot.QuantityUsed, &lot.QuantityReturned, &lot.QuantityRemaining, &lot.CreatedAt)
	lot.CreatedAt = lot.CreatedAt.UTC()
	return lot, err
}

func (s *Store) CreateInventoryLot(ctx context.Context, lot domain.InventoryLot) (*domain.InventoryLot, error) {
	if lot.ID == "" {
		lot.ID = xid.New("lot")
	}
	if lot.CreatedAt.IsZero() {
		lot.CreatedAt = time.Now().UTC()
	}
	lot.QuantityUsed = decimal.Zero
	lot.QuantityReturned = decimal.Zero
	lot.QuantityRemaining = lot.Quantity

	pgTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO inventory_lots (id, variety_id, supplier_name, quantity, price_per_item, total_amount,
			supply_date, quantity_used, quantity_returned, quantity_remaining, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7::date,0,0,$4,$8)
	`, lot.ID, lot.VarietyID, lot.SupplierName, lot.Quantity, lot.PricePerItem, lot.TotalAmount, lot.SupplyDate, lot.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.NewValidationError("variety_id", "variety not found")
		}
		return nil, err
	}
	if err := recordMovement(ctx, pgTx, domain.InventoryMovement{
		VarietyID:     lot.VarietyID,
		LotID:         lot.ID,
		MovementType:  domain.MovementLotReceived,
		Quantity:      lot.Quantity,
		ReferenceType: "inventory_lot",
		ReferenceID:   lot.ID,
		MovementDate:  lot.SupplyDate,
	}); err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &lot, nil
}

func (s *Store) GetInventoryLot(ctx context.Context, id string) (*domain.InventoryLot, error) {
	lot, err := scanLot(s.db.QueryRowContext(ctx, `SELECT `+lotColumns+` FROM inventory_lots WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &lot, nil
}

func (s *Store) ListInventoryLots(ctx context.Context, filter domain.LotFilter) ([]domain.InventoryLot, error) {
	clauses := make([]string, 0, 4)
	args := make([]any, 0, 4)
	if filter.VarietyID != "" {
		args = append(args, filter.VarietyID)
		clauses = append(clauses, fmt.Sprintf("variety_id = $%d", len(args)))
	}
	if filter.SupplierName != "" {
		args = append(args, strings.ToLower(strings.TrimSpace(filter.SupplierName)))
		clauses = append(clauses, fmt.Sprintf("lower(trim(supplier_name)) = $%d", len(args)))
	}
	if filter.SupplyDate != "" {
		args = append(args, filter.SupplyDate)
		clauses = append(clauses, fmt.Sprintf("supply_date = $%d::date", len(args)))
	}
	if filter.AvailableOnly {
		clauses = append(clauses, "quantity_remaining > 0")
	}

	query := `SELECT ` + lotColumns + ` FROM inventory_lots`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY supply_date DESC, created_at DESC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLots(rows)
}

func collectLots(rows *sql.Rows) ([]domain.InventoryLot, error) {
	lots := make([]domain.InventoryLot, 0, 32)
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lots, nil
}

func (s *Store) DeleteInventoryLot(ctx context.Context, id string) error {
	pgTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = pgTx.Rollback() }()

	var varietyID string
	var quantity decimal.Decimal
	err = pgTx.QueryRowContext(ctx, `
		DELETE FROM inventory_lots
		WHERE id = $1 AND quantity_used = 0 AND quantity_returned = 0
		RETURNING variety_id, quantity
	`, id).Scan(&varietyID, &quantity)
	if errors.Is(err, sql.ErrNoRows) {
		_ = pgTx.Rollback()
		if _, err := s.GetInventoryLot(ctx, id); err != nil {
			return err
		}
		return store.NewValidationError("id", "lot has sales or returns against it")
	}
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.NewValidationError("id", "lot has sales or returns against it")
		}
		return err
	}
	if err := recordMovement(ctx, pgTx, domain.InventoryMovement{
		VarietyID:     varietyID,
		LotID:         id,
		MovementType:  domain.MovementLotDeleted,
		Quantity:      quantity.Neg(),
		ReferenceType: "inventory_lot",
		ReferenceID:   id,
	}); err != nil {
		return err
	}
	return pgTx.Commit()
}

const saleColumns = `
	id, salesperson_name, customer_name, variety_id, quantity, selling_price, cost_price, profit,
	stock_type, COALESCE(lot_id, ''), to_char(sale_date, 'YYYY-MM-DD'), sale_timestamp, COALESCE(idempotency_key, '')`

func scanSale(row rowScanner) (domain.Sale, error) {
	var sale domain.Sale
	var stockType string
	err := row.Scan(&sale.ID, &sale.SalespersonName, &sale.CustomerName, &sale.VarietyID, &sale.Quantity,
		&sale.SellingPrice, &sale.CostPrice, &sale.Profit, &stockType, &sale.LotID, &sale.SaleDate,
		&sale.SaleTimestamp, &sale.IdempotencyKey)
	sale.StockType = domain.StockType(stockType)
	sale.SaleTimestamp = sale.SaleTimestamp.UTC()
	return sale, err
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	return retryConflict(func() (*domain.Sale, error) { return s.createSale(ctx, sale) })
}

func (s *Store) createSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.IdempotencyKey != "" {
		if existing, err := s.FindSaleByIdempotency(ctx, sale.IdempotencyKey); err == nil {
			return existing, nil
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.SaleTimestamp.IsZero() {
		sale.SaleTimestamp = time.Now().UTC()
	}

	pgTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	if sale.StockType == domain.StockNew {
		var lotVariety string
		var remaining decimal.Decimal
		err := pgTx.QueryRowContext(ctx, `
			SELECT variety_id, quantity_remaining
			FROM inventory_lots
			WHERE id = $1
			FOR UPDATE
		`, sale.LotID).Scan(&lotVariety, &remaining)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && lotVariety != sale.VarietyID) {
			return nil, store.NewValidationError("supplier_inventory_id", "lot not found for this variety")
		}
		if err != nil {
			return nil, err
		}

		res, err := pgTx.ExecContext(ctx, `
			UPDATE inventory_lots
			SET quantity_remaining = quantity_remaining - $1,
				quantity_used = quantity_used + $1
			WHERE id = $2 AND quantity_remaining >= $1
		`, sale.Quantity, sale.LotID)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, &store.InsufficientStockError{VarietyID: sale.VarietyID, Requested: sale.Quantity, Available: remaining}
		}
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO sales (id, salesperson_name, customer_name, variety_id, quantity, selling_price, cost_price,
			profit, stock_type, lot_id, sale_date, sale_timestamp, idempotency_key)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11::date,$12,$13)
	`, sale.ID, sale.SalespersonName, sale.CustomerName, sale.VarietyID, sale.Quantity, sale.SellingPrice,
		sale.CostPrice, sale.Profit, string(sale.StockType), nullIfEmpty(sale.LotID), sale.SaleDate,
		sale.SaleTimestamp, nullIfEmpty(sale.IdempotencyKey))
	if err != nil {
		if isUniqueViolation(err) && sale.IdempotencyKey != "" {
			_ = pgTx.Rollback()
			return s.FindSaleByIdempotency(ctx, sale.IdempotencyKey)
		}
		if isForeignKeyViolation(err) {
			return nil, store.NewValidationError("variety_id", "variety not found")
		}
		return nil, err
	}
	if sale.StockType == domain.StockNew {
		if err := recordMovement(ctx, pgTx, domain.InventoryMovement{
			VarietyID:     sale.VarietyID,
			LotID:         sale.LotID,
			MovementType:  domain.MovementSale,
			Quantity:      sale.Quantity.Neg(),
			ReferenceType: "sale",
			ReferenceID:   sale.ID,
			MovementDate:  sale.SaleDate,
		}); err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) FindSaleByIdempotency(ctx context.Context, key string) (*domain.Sale, error) {
	return s.findSale(ctx, "idempotency_key", key)
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	return s.findSale(ctx, "id", id)
}

func (s *Store) findSale(ctx context.Context, column string, value string) (*domain.Sale, error) {
	sale, err := scanSale(s.db.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE `+column+` = $1`, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		ORDER BY sale_timestamp DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSales(rows)
}

func (s *Store) ListSalesByDate(ctx context.Context, date string) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE sale_date = $1::date
		ORDER BY sale_timestamp DESC, id DESC
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSales(rows)
}

func collectSales(rows *sql.Rows) ([]domain.Sale, error) {
	sales := make([]domain.Sale, 0, 64)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) UpdateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sales
		SET salesperson_name = $2, customer_name = $3, selling_price = $4, cost_price = $5,
			profit = $6, sale_date = $7::date
		WHERE id = $1
	`, sale.ID, sale.SalespersonName, sale.CustomerName, sale.SellingPrice, sale.CostPrice, sale.Profit, sale.SaleDate)
	if err != nil {
		return nil, err
	}
	if err := expectAffected(res); err != nil {
		return nil, err
	}
	return s.GetSale(ctx, sale.ID)
}

func (s *Store) DeleteSale(ctx context.Context, id string) (*domain.Sale, error) {
	return retryConflict(func() (*domain.Sale, error) { return s.deleteSale(ctx, id) })
}

func (s *Store) deleteSale(ctx context.Context, id string) (*domain.Sale, error) {
	pgTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	sale, err := scanSale(pgTx.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	if _, err := pgTx.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id); err != nil {
		return nil, err
	}
	if sale.LotID != "" {
		if _, err := pgTx.ExecContext(ctx, `
			UPDATE inventory_lots
			SET quantity_remaining = quantity_remaining + $1,
				quantity_used = quantity_used - $1
			WHERE id = $2
		`, sale.Quantity, sale.LotID); err != nil {
			return nil, err
		}
		if err := recordMovement(ctx, pgTx, domain.InventoryMovement{
			VarietyID:     sale.VarietyID,
			LotID:         sale.LotID,
			MovementType:  domain.MovementSaleDeleted,
			Quantity:      sale.Quantity,
			ReferenceType: "sale",
			ReferenceID:   sale.ID,
		}); err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) CreateReturn(ctx context.Context, ret domain.SupplierReturn) (*domain.SupplierReturn, error) {
	return retryConflict(func() (*domain.SupplierReturn, error) { return s.createReturn(ctx, ret) })
}

func (s *Store) createReturn(ctx context.Context, ret domain.SupplierReturn) (*domain.SupplierReturn, error) {
	if ret.ID == "" {
		ret.ID = xid.New("ret")
	}
	if ret.CreatedAt.IsZero() {
		ret.CreatedAt = time.Now().UTC()
	}

	pgTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	rows, err := pgTx.QueryContext(ctx, `
		SELECT `+lotColumns+`
		FROM inventory_lots
		WHERE variety_id = $1 AND lower(trim(supplier_name)) = $2 AND quantity_remaining > 0
		ORDER BY supply_date ASC, created_at ASC, id ASC
		FOR UPDATE
	`, ret.VarietyID, strings.ToLower(strings.TrimSpace(ret.SupplierName)))
	if err != nil {
		return nil, err
	}
	lots, err := collectLots(rows)
	_ = rows.Close()
	if err != nil {
		return nil, err
	}

	allocations, err := reconcile.PlanReturn(lots, ret.VarietyID, ret.Quantity)
	if err != nil {
		return nil, err
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO supplier_returns (id, supplier_name, variety_id, quantity, price_per_item, total_amount,
			return_date, reason, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7::date,$8,$9)
	`, ret.ID, ret.SupplierName, ret.VarietyID, ret.Quantity, ret.PricePerItem, ret.TotalAmount,
		ret.ReturnDate, ret.Reason, ret.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.NewValidationError("variety_id", "variety not found")
		}
		return nil, err
	}

	for i, alloc := range allocations {
		res, err := pgTx.ExecContext(ctx, `
			UPDATE inventory_lots
			SET quantity_remaining = quantity_remaining - $1,
				quantity_returned = quantity_returned + $1
			WHERE id = $2 AND quantity_remaining >= $1
		`, alloc.Quantity, alloc.LotID)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, &store.InsufficientStockError{VarietyID: ret.VarietyID, Requested: ret.Quantity, Available: reconcile.Available(lots)}
		}
		if _, err := pgTx.ExecContext(ctx, `
			INSERT INTO return_allocations (return_id, lot_id, quantity, position)
			VALUES ($1,$2,$3,$4)
		`, ret.ID, alloc.LotID, alloc.Quantity, i); err != nil {
			return nil, err
		}
		if err := recordMovement(ctx, pgTx, domain.InventoryMovement{
			VarietyID:     ret.VarietyID,
			LotID:         alloc.LotID,
			MovementType:  domain.MovementReturn,
			Quantity:      alloc.Quantity.Neg(),
			ReferenceType: "supplier_return",
			ReferenceID:   ret.ID,
			MovementDate:  ret.ReturnDate,
		}); err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	ret.Allocations = allocations
	return &ret, nil
}

const returnColumns = `
	id, supplier_name, variety_id, quantity, price_per_item, total_amount,
	to_char(return_date, 'YYYY-MM-DD'), reason, created_at`

func (s *Store) ListReturns(ctx context.Context, filter domain.ReturnFilter) ([]domain.SupplierReturn, error) {
	query := `SELECT ` + returnColumns + ` FROM supplier_returns`
	args := make([]any, 0, 2)
	switch {
	case filter.ReturnDate != "":
		query += " WHERE return_date = $1::date"
		args = append(args, filter.ReturnDate)
	case filter.Year > 0:
		query += " WHERE EXTRACT(YEAR FROM return_date) = $1 AND EXTRACT(MONTH FROM return_date) = $2"
		args = append(args, filter.Year, filter.Month)
	}
	query += " ORDER BY return_date DESC, created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	returns := make([]domain.SupplierReturn, 0, 32)
	index := make(map[string]int)
	for rows.Next() {
		var ret domain.SupplierReturn
		if err := rows.Scan(&ret.ID, &ret.SupplierName, &ret.VarietyID, &ret.Quantity, &ret.PricePerItem,
			&ret.TotalAmount, &ret.ReturnDate, &ret.Reason, &ret.CreatedAt); err != nil {
			return nil, err
		}
		ret.CreatedAt = ret.CreatedAt.UTC()
		ret.Allocations = []domain.ReturnAllocation{}
		index[ret.ID] = len(returns)
		returns = append(returns, ret)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(returns) == 0 {
		return returns, nil
	}

	ids := make([]string, 0, len(returns))
	for _, ret := range returns {
		ids = append(ids, ret.ID)
	}
	allocRows, err := s.db.QueryContext(ctx, `
		SELECT return_id, lot_id, quantity
		FROM return_allocations
		WHERE return_id = ANY($1)
		ORDER BY return_id, position
	`, ids)
	if err != nil {
		return nil, err
	}
	defer allocRows.Close()
	for allocRows.Next() {
		var returnID string
		var alloc domain.ReturnAllocation
		if err := allocRows.Scan(&returnID, &alloc.LotID, &alloc.Quantity); err != nil {
			return nil, err
		}
		if i, ok := index[returnID]; ok {
			returns[i].Allocations = append(returns[i].Allocations, alloc)
		}
	}
	if err := allocRows.Err(); err != nil {
		return nil, err
	}
	return returns, nil
}

func (s *Store) DeleteReturn(ctx context.Context, id string) (*domain.SupplierReturn, error) {
	return retryConflict(func() (*domain.SupplierReturn, error) { return s.deleteReturn(ctx, id) })
}

func (s *Store) deleteReturn(ctx context.Context, id string) (*domain.SupplierReturn, error) {
	pgTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var ret domain.SupplierReturn
	err = pgTx.QueryRowContext(ctx, `SELECT `+returnColumns+` FROM supplier_returns WHERE id = $1 FOR UPDATE`, id).
		Scan(&ret.ID, &ret.SupplierName, &ret.VarietyID, &ret.Quantity, &ret.PricePerItem,
			&ret.TotalAmount, &ret.ReturnDate, &ret.Reason, &ret.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	rows, err := pgTx.QueryContext(ctx, `
		SELECT lot_id, quantity FROM return_allocations WHERE return_id = $1 ORDER BY position
	`, id)
	if err != nil {
		return nil, err
	}
	ret.Allocations = make([]domain.ReturnAllocation, 0, 2)
	for rows.Next() {
		var alloc domain.ReturnAllocation
		if err := rows.Scan(&alloc.LotID, &alloc.Quantity); err != nil {
			_ = rows.Close()
			return nil, err
		}
		ret.Allocations = append(ret.Allocations, alloc)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	for _, alloc := range ret.Allocations {
		if _, err := pgTx.ExecContext(ctx, `
			UPDATE inventory_lots
			SET quantity_remaining = quantity_remaining + $1,
				quantity_returned = quantity_returned - $1
			WHERE id = $2
		`, alloc.Quantity, alloc.LotID); err != nil {
			return nil, err
		}
		if err := recordMovement(ctx, pgTx, domain.InventoryMovement{
			VarietyID:     ret.VarietyID,
			LotID:         alloc.LotID,
			MovementType:  domain.MovementReturnDeleted,
			Quantity:      alloc.Quantity,
			ReferenceType: "supplier_return",
			ReferenceID:   ret.ID,
		}); err != nil {
			return nil, err
		}
	}
	if _, err := pgTx.ExecContext(ctx, `DELETE FROM supplier_returns WHERE id = $1`, id); err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	ret.CreatedAt = ret.CreatedAt.UTC()
	return &ret, nil
}

func (s *Store) GetDailyReport(ctx context.Context, date string) (domain.DailyReport, error) {
	report := domain.DailyReport{Date: date}
	supplier := domain.DailySupplierSummary{Date: date}
	sales := domain.DailySalesSummary{Date: date}

	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_amount), 0), COUNT(id)
		FROM inventory_lots
		WHERE supply_date = $1::date
	`, date).Scan(&supplier.TotalSupply, &supplier.SupplyCount)
	if err != nil {
		return report, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_amount), 0), COUNT(id)
		FROM supplier_returns
		WHERE return_date = $1::date
	`, date).Scan(&supplier.TotalReturns, &supplier.ReturnCount)
	if err != nil {
		return report, err
	}
	supplier.NetAmount = supplier.TotalSupply.Sub(supplier.TotalReturns)

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(selling_price), 0), COALESCE(SUM(profit), 0), COALESCE(SUM(quantity), 0), COUNT(id)
		FROM sales
		WHERE sale_date = $1::date
	`, date).Scan(&sales.TotalSalesAmount, &sales.TotalProfit, &sales.TotalQuantitySold, &sales.SalesCount)
	if err != nil {
		return report, err
	}

	report.SupplierSummary = supplier
	report.SalesSummary = sales
	report.NetInventoryValue = supplier.NetAmount
	return report, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, 64)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action,
			&entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.NewValidationError("username", "username and password are required")
	}
	if user.Role == "" {
		user.Role = domain.RoleSalesperson
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.NewValidationError("username", "already exists")
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.NewValidationError("password", "required")
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func expectAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// retryConflict runs a stock transaction once more when PostgreSQL aborts it
// with a serialization failure or a deadlock.
func retryConflict[T any](run func() (T, error)) (T, error) {
	out, err := run()
	if isTxConflict(err) {
		return run()
	}
	return out, err
}

func isTxConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func toNull(val *decimal.Decimal) decimal.NullDecimal {
	if val == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *val, Valid: true}
}

func fromNull(val decimal.NullDecimal) *decimal.Decimal {
	if !val.Valid {
		return nil
	}
	d := val.Decimal
	return &d
}
