package memory

import (
	"context"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"clothpos/backend/internal/domain"
	"clothpos/backend/internal/reconcile"
	"clothpos/backend/internal/store"
	"clothpos/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	varieties       map[string]domain.Variety
	lots            map[string]domain.InventoryLot
	sales           map[string]domain.Sale
	salesByIdem     map[string]string
	returns         map[string]domain.SupplierReturn
	movements       []domain.InventoryMovement
	expenses        map[string]domain.Expense
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the dev/demo accounts. Passwords come from
// SEED_OWNER_PASSWORD and SEED_SALESPERSON_PASSWORD with dev fallbacks.
func seedUsers() map[string]domain.UserAccount {
	ownerPwd := envOr("SEED_OWNER_PASSWORD", "owner123")
	salesPwd := envOr("SEED_SALESPERSON_PASSWORD", "sales123")
	if os.Getenv("SEED_OWNER_PASSWORD") == "" || os.Getenv("SEED_SALESPERSON_PASSWORD") == "" {
		zap.L().Warn("memory store using default dev credentials; set SEED_OWNER_PASSWORD and SEED_SALESPERSON_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"owner", ownerPwd, domain.RoleOwner},
		{"sales", salesPwd, domain.RoleSalesperson},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			zap.L().Fatal("hash seed password", zap.String("username", u.username), zap.Error(err))
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// New returns an empty ledger with the seed user accounts.
func New() *Store {
	return &Store{
		varieties:       make(map[string]domain.Variety),
		lots:            make(map[string]domain.InventoryLot),
		sales:           make(map[string]domain.Sale),
		salesByIdem:     make(map[string]string),
		returns:         make(map[string]domain.SupplierReturn),
		movements:       make([]domain.InventoryMovement, 0, 128),
		expenses:        make(map[string]domain.Expense),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: seedUsers(),
	}
}

// NewSeeded returns a ledger with a small demo catalog and stock.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()
	today := now.Format(domain.DateLayout)

	price := func(v string) *decimal.Decimal {
		d := decimal.RequireFromString(v)
		return &d
	}
	varieties := []domain.Variety{
		{ID: "var-cotton-print", Name: "Cotton Print", Unit: domain.UnitMeters, StandardLength: price("2.5"), DefaultCostPrice: price("80"), MinStockLevel: price("20")},
		{ID: "var-silk-saree", Name: "Silk Saree", Unit: domain.UnitPieces, DefaultCostPrice: price("1200"), MinStockLevel: price("5")},
		{ID: "var-denim", Name: "Denim", Unit: domain.UnitYards, MinStockLevel: price("10")},
	}
	for _, v := range varieties {
		v.CreatedAt = now
		v.UpdatedAt = now
		s.varieties[v.ID] = v
	}

	lots := []domain.InventoryLot{
		{ID: "lot-seed-cotton", VarietyID: "var-cotton-print", SupplierName: "Lakshmi Textiles", Quantity: decimal.NewFromInt(120), PricePerItem: decimal.NewFromInt(85)},
		{ID: "lot-seed-saree", VarietyID: "var-silk-saree", SupplierName: "Kanchi Weavers", Quantity: decimal.NewFromInt(12), PricePerItem: decimal.NewFromInt(1350)},
		{ID: "lot-seed-denim", VarietyID: "var-denim", SupplierName: "Lakshmi Textiles", Quantity: decimal.NewFromInt(40), PricePerItem: decimal.NewFromInt(150)},
	}
	for _, lot := range lots {
		lot.SupplyDate = today
		lot.TotalAmount = lot.Quantity.Mul(lot.PricePerItem)
		lot.QuantityRemaining = lot.Quantity
		lot.CreatedAt = now
		s.lots[lot.ID] = lot
		s.recordMovement(domain.InventoryMovement{
			VarietyID:     lot.VarietyID,
			LotID:         lot.ID,
			MovementType:  domain.MovementLotReceived,
			Quantity:      lot.Quantity,
			ReferenceType: "inventory_lot",
			ReferenceID:   lot.ID,
			MovementDate:  today,
		})
	}
	return s
}

func (s *Store) ListVarieties(_ context.Context) ([]domain.Variety, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stock := reconcile.StockByVariety(s.lotSlice())
	result := make([]domain.Variety, 0, len(s.varieties))
	for _, v := range s.varieties {
		v.CurrentStock = stock[v.ID]
		result = append(result, cloneVariety(v))
	}
	slices.SortFunc(result, func(a, b domain.Variety) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return result, nil
}

func (s *Store) GetVariety(_ context.Context, id string) (*domain.Variety, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.varieties[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	v.CurrentStock = reconcile.StockByVariety(s.lotSlice())[id]
	out := cloneVariety(v)
	return &out, nil
}

func (s *Store) CreateVariety(_ context.Context, variety domain.Variety) (*domain.Variety, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nameTaken(variety.Name, "") {
		return nil, store.NewValidationError("name", "a variety with this name already exists")
	}
	if variety.ID == "" {
		variety.ID = xid.New("var")
	}
	now := time.Now().UTC()
	if variety.CreatedAt.IsZero() {
		variety.CreatedAt = now
	}
	variety.UpdatedAt = variety.CreatedAt
	variety.CurrentStock = decimal.Zero
	s.varieties[variety.ID] = cloneVariety(variety)

	out := cloneVariety(variety)
	return &out, nil
}

func (s *Store) UpdateVariety(_ context.Context, variety domain.Variety) (*domain.Variety, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.varieties[variety.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if s.nameTaken(variety.Name, variety.ID) {
		return nil, store.NewValidationError("name", "a variety with this name already exists")
	}
	variety.CreatedAt = existing.CreatedAt
	variety.UpdatedAt = time.Now().UTC()
	s.varieties[variety.ID] = cloneVariety(variety)

	out := cloneVariety(variety)
	out.CurrentStock = reconcile.StockByVariety(s.lotSlice())[variety.ID]
	return &out, nil
}

func (s *Store) DeleteVariety(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.varieties[id]; !ok {
		return store.ErrNotFound
	}
	for _, lot := range s.lots {
		if lot.VarietyID == id {
			return store.NewValidationError("variety_id", "variety has supplier inventory")
		}
	}
	for _, sale := range s.sales {
		if sale.VarietyID == id {
			return store.NewValidationError("variety_id", "variety has sales")
		}
	}
	delete(s.varieties, id)
	s.movements = slices.DeleteFunc(s.movements, func(m domain.InventoryMovement) bool {
		return m.VarietyID == id
	})
	return nil
}

func (s *Store) CreateInventoryLot(_ context.Context, lot domain.InventoryLot) (*domain.InventoryLot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.varieties[lot.VarietyID]; !ok {
		return nil, store.NewValidationError("variety_id", "variety not found")
	}
	if lot.ID == "" {
		lot.ID = xid.New("lot")
	}
	if lot.CreatedAt.IsZero() {
		lot.CreatedAt = time.Now().UTC()
	}
	lot.QuantityUsed = decimal.Zero
	lot.QuantityReturned = decimal.Zero
	lot.QuantityRemaining = lot.Quantity
	s.lots[lot.ID] = lot
	s.recordMovement(domain.InventoryMovement{
		VarietyID:     lot.VarietyID,
		LotID:         lot.ID,
		MovementType:  domain.MovementLotReceived,
		Quantity:      lot.Quantity,
		ReferenceType: "inventory_lot",
		ReferenceID:   lot.ID,
		MovementDate:  lot.SupplyDate,
	})

	created := lot
	return &created, nil
}

func (s *Store) GetInventoryLot(_ context.Context, id string) (*domain.InventoryLot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lot, ok := s.lots[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &lot, nil
}

func (s *Store) ListInventoryLots(_ context.Context, filter domain.LotFilter) ([]domain.InventoryLot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.InventoryLot, 0, len(s.lots))
	for _, lot := range s.lots {
		if filter.VarietyID != "" && lot.VarietyID != filter.VarietyID {
			continue
		}
		if filter.SupplierName != "" && !reconcile.SupplierMatches(lot.SupplierName, filter.SupplierName) {
			continue
		}
		if filter.SupplyDate != "" && lot.SupplyDate != filter.SupplyDate {
			continue
		}
		if filter.AvailableOnly && !lot.QuantityRemaining.IsPositive() {
			continue
		}
		result = append(result, lot)
	}
	slices.SortFunc(result, reconcile.CompareNewestFirst)
	return result, nil
}

func (s *Store) DeleteInventoryLot(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lot, ok := s.lots[id]
	if !ok {
		return store.ErrNotFound
	}
	if lot.QuantityUsed.IsPositive() || lot.QuantityReturned.IsPositive() {
		return store.NewValidationError("id", "lot has sales or returns against it")
	}
	delete(s.lots, id)
	s.recordMovement(domain.InventoryMovement{
		VarietyID:     lot.VarietyID,
		LotID:         lot.ID,
		MovementType:  domain.MovementLotDeleted,
		Quantity:      lot.Quantity.Neg(),
		ReferenceType: "inventory_lot",
		ReferenceID:   lot.ID,
	})
	return nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.IdempotencyKey != "" {
		if existingID, ok := s.salesByIdem[sale.IdempotencyKey]; ok {
			existing := s.sales[existingID]
			return &existing, nil
		}
	}
	if _, ok := s.varieties[sale.VarietyID]; !ok {
		return nil, store.NewValidationError("variety_id", "variety not found")
	}

	if sale.StockType == domain.StockNew {
		lot, ok := s.lots[sale.LotID]
		if !ok || lot.VarietyID != sale.VarietyID {
			return nil, store.NewValidationError("supplier_inventory_id", "lot not found for this variety")
		}
		if lot.QuantityRemaining.LessThan(sale.Quantity) {
			return nil, &store.InsufficientStockError{VarietyID: sale.VarietyID, Requested: sale.Quantity, Available: lot.QuantityRemaining}
		}
		lot.QuantityUsed = lot.QuantityUsed.Add(sale.Quantity)
		lot.QuantityRemaining = lot.QuantityRemaining.Sub(sale.Quantity)
		s.lots[lot.ID] = lot
	}

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.StockType == domain.StockNew {
		s.recordMovement(domain.InventoryMovement{
			VarietyID:     sale.VarietyID,
			LotID:         sale.LotID,
			MovementType:  domain.MovementSale,
			Quantity:      sale.Quantity.Neg(),
			ReferenceType: "sale",
			ReferenceID:   sale.ID,
			MovementDate:  sale.SaleDate,
		})
	}
	if sale.SaleTimestamp.IsZero() {
		sale.SaleTimestamp = time.Now().UTC()
	}
	s.sales[sale.ID] = sale
	if sale.IdempotencyKey != "" {
		s.salesByIdem[sale.IdempotencyKey] = sale.ID
	}

	created := sale
	return &created, nil
}

func (s *Store) FindSaleByIdempotency(_ context.Context, key string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.salesByIdem[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	sale := s.sales[id]
	return &sale, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sale, nil
}

func (s *Store) ListSales(_ context.Context, limit int) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		result = append(result, sale)
	}
	slices.SortFunc(result, compareSaleNewestFirst)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) ListSalesByDate(_ context.Context, date string) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.salesOn(date), nil
}

func (s *Store) UpdateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.sales[sale.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	existing.SalespersonName = sale.SalespersonName
	existing.CustomerName = sale.CustomerName
	existing.SellingPrice = sale.SellingPrice
	existing.CostPrice = sale.CostPrice
	existing.Profit = sale.Profit
	existing.SaleDate = sale.SaleDate
	s.sales[sale.ID] = existing

	updated := existing
	return &updated, nil
}

func (s *Store) DeleteSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if sale.LotID != "" {
		if lot, ok := s.lots[sale.LotID]; ok {
			lot.QuantityUsed = lot.QuantityUsed.Sub(sale.Quantity)
			lot.QuantityRemaining = lot.QuantityRemaining.Add(sale.Quantity)
			s.lots[lot.ID] = lot
			s.recordMovement(domain.InventoryMovement{
				VarietyID:     sale.VarietyID,
				LotID:         lot.ID,
				MovementType:  domain.MovementSaleDeleted,
				Quantity:      sale.Quantity,
				ReferenceType: "sale",
				ReferenceID:   sale.ID,
			})
		}
	}
	delete(s.sales, id)
	if sale.IdempotencyKey != "" {
		delete(s.salesByIdem, sale.IdempotencyKey)
	}
	return &sale, nil
}

func (s *Store) CreateReturn(_ context.Context, ret domain.SupplierReturn) (*domain.SupplierReturn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.varieties[ret.VarietyID]; !ok {
		return nil, store.NewValidationError("variety_id", "variety not found")
	}
	candidates := reconcile.ReturnCandidates(s.lotSlice(), ret.SupplierName, ret.VarietyID)
	allocations, err := reconcile.PlanReturn(candidates, ret.VarietyID, ret.Quantity)
	if err != nil {
		return nil, err
	}
	if ret.ID == "" {
		ret.ID = xid.New("ret")
	}
	for _, alloc := range allocations {
		lot := s.lots[alloc.LotID]
		lot.QuantityReturned = lot.QuantityReturned.Add(alloc.Quantity)
		lot.QuantityRemaining = lot.QuantityRemaining.Sub(alloc.Quantity)
		s.lots[lot.ID] = lot
		s.recordMovement(domain.InventoryMovement{
			VarietyID:     ret.VarietyID,
			LotID:         lot.ID,
			MovementType:  domain.MovementReturn,
			Quantity:      alloc.Quantity.Neg(),
			ReferenceType: "supplier_return",
			ReferenceID:   ret.ID,
			MovementDate:  ret.ReturnDate,
		})
	}
	if ret.CreatedAt.IsZero() {
		ret.CreatedAt = time.Now().UTC()
	}
	ret.Allocations = allocations
	s.returns[ret.ID] = cloneReturn(ret)

	created := cloneReturn(ret)
	return &created, nil
}

func (s *Store) ListReturns(_ context.Context, filter domain.ReturnFilter) ([]domain.SupplierReturn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.SupplierReturn, 0, len(s.returns))
	for _, ret := range s.returns {
		if filter.ReturnDate != "" && ret.ReturnDate != filter.ReturnDate {
			continue
		}
		if filter.Year > 0 && !reconcile.InMonth(ret.ReturnDate, filter.Year, filter.Month) {
			continue
		}
		result = append(result, cloneReturn(ret))
	}
	slices.SortFunc(result, compareReturnNewestFirst)
	return result, nil
}

func (s *Store) DeleteReturn(_ context.Context, id string) (*domain.SupplierReturn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ret, ok := s.returns[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	for _, alloc := range ret.Allocations {
		lot, ok := s.lots[alloc.LotID]
		if !ok {
			continue
		}
		lot.QuantityReturned = lot.QuantityReturned.Sub(alloc.Quantity)
		lot.QuantityRemaining = lot.QuantityRemaining.Add(alloc.Quantity)
		s.lots[lot.ID] = lot
		s.recordMovement(domain.InventoryMovement{
			VarietyID:     ret.VarietyID,
			LotID:         lot.ID,
			MovementType:  domain.MovementReturnDeleted,
			Quantity:      alloc.Quantity,
			ReferenceType: "supplier_return",
			ReferenceID:   ret.ID,
		})
	}
	delete(s.returns, id)
	out := cloneReturn(ret)
	return &out, nil
}

func (s *Store) GetDailyReport(_ context.Context, date string) (domain.DailyReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	supplier := domain.DailySupplierSummary{Date: date}
	for _, lot := range s.lots {
		if lot.SupplyDate != date {
			continue
		}
		supplier.TotalSupply = supplier.TotalSupply.Add(lot.TotalAmount)
		supplier.SupplyCount++
	}
	for _, ret := range s.returns {
		if ret.ReturnDate != date {
			continue
		}
		supplier.TotalReturns = supplier.TotalReturns.Add(ret.TotalAmount)
		supplier.ReturnCount++
	}
	supplier.NetAmount = supplier.TotalSupply.Sub(supplier.TotalReturns)

	sales := domain.DailySalesSummary{Date: date}
	for _, sale := range s.salesOn(date) {
		sales.TotalSalesAmount = sales.TotalSalesAmount.Add(sale.SellingPrice)
		sales.TotalProfit = sales.TotalProfit.Add(sale.Profit)
		sales.TotalQuantitySold = sales.TotalQuantitySold.Add(sale.Quantity)
		sales.SalesCount++
	}

	return domain.DailyReport{
		Date:              date,
		SupplierSummary:   supplier,
		SalesSummary:      sales,
		NetInventoryValue: supplier.NetAmount,
	}, nil
}

func (s *Store) GetSalesTotals(_ context.Context, from string, to string) (domain.SalesTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var totals domain.SalesTotals
	for _, sale := range s.sales {
		if sale.SaleDate < from || sale.SaleDate > to {
			continue
		}
		totals.TotalSalesAmount = totals.TotalSalesAmount.Add(sale.SellingPrice)
		totals.TotalProfit = totals.TotalProfit.Add(sale.Profit)
		totals.SalesCount++
	}
	return totals, nil
}

func (s *Store) ListInventoryMovements(_ context.Context, filter domain.MovementFilter) ([]domain.InventoryMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.InventoryMovement, 0, 32)
	for i := len(s.movements) - 1; i >= 0; i-- {
		m := s.movements[i]
		if filter.VarietyID != "" && m.VarietyID != filter.VarietyID {
			continue
		}
		if filter.LotID != "" && m.LotID != filter.LotID {
			continue
		}
		if filter.From != "" && m.MovementDate < filter.From {
			continue
		}
		if filter.To != "" && m.MovementDate > filter.To {
			continue
		}
		result = append(result, m)
		if filter.Limit > 0 && len(result) == filter.Limit {
			break
		}
	}
	return result, nil
}

func (s *Store) CreateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}
	s.expenses[expense.ID] = expense

	created := expense
	return &created, nil
}

func (s *Store) ListExpenses(_ context.Context, filter domain.ExpenseFilter) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Expense, 0, len(s.expenses))
	for _, e := range s.expenses {
		if filter.ExpenseDate != "" && e.ExpenseDate != filter.ExpenseDate {
			continue
		}
		if filter.Year > 0 && !reconcile.InMonth(e.ExpenseDate, filter.Year, filter.Month) {
			continue
		}
		result = append(result, e)
	}
	slices.SortFunc(result, func(a, b domain.Expense) int {
		if c := strings.Compare(b.ExpenseDate, a.ExpenseDate); c != 0 {
			return c
		}
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return result, nil
}

func (s *Store) DeleteExpense(_ context.Context, id string) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.expenses[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	delete(s.expenses, id)
	return &e, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}
	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.NewValidationError("username", "username and password are required")
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.NewValidationError("username", "already exists")
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleSalesperson
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.NewValidationError("password", "required")
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

// recordMovement appends a movement with the variety's stock as it stands
// after the change. The write lock must be held.
func (s *Store) recordMovement(m domain.InventoryMovement) {
	if m.ID == "" {
		m.ID = xid.New("mov")
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.MovementDate == "" {
		m.MovementDate = m.CreatedAt.Format(domain.DateLayout)
	}
	m.StockAfter = reconcile.StockByVariety(s.lotSlice())[m.VarietyID]
	s.movements = append(s.movements, m)
}

// lotSlice must be called with the lock held.
func (s *Store) lotSlice() []domain.InventoryLot {
	lots := make([]domain.InventoryLot, 0, len(s.lots))
	for _, lot := range s.lots {
		lots = append(lots, lot)
	}
	return lots
}

func (s *Store) salesOn(date string) []domain.Sale {
	result := make([]domain.Sale, 0)
	for _, sale := range s.sales {
		if sale.SaleDate == date {
			result = append(result, sale)
		}
	}
	slices.SortFunc(result, compareSaleNewestFirst)
	return result
}

func (s *Store) nameTaken(name string, exceptID string) bool {
	for id, v := range s.varieties {
		if id != exceptID && strings.EqualFold(strings.TrimSpace(v.Name), strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}

func compareSaleNewestFirst(a domain.Sale, b domain.Sale) int {
	if c := b.SaleTimestamp.Compare(a.SaleTimestamp); c != 0 {
		return c
	}
	return strings.Compare(b.ID, a.ID)
}

func compareReturnNewestFirst(a domain.SupplierReturn, b domain.SupplierReturn) int {
	if c := strings.Compare(b.ReturnDate, a.ReturnDate); c != 0 {
		return c
	}
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(b.ID, a.ID)
}

func cloneVariety(src domain.Variety) domain.Variety {
	dup := src
	dup.StandardLength = cloneDecimal(src.StandardLength)
	dup.DefaultCostPrice = cloneDecimal(src.DefaultCostPrice)
	dup.MinStockLevel = cloneDecimal(src.MinStockLevel)
	return dup
}

func cloneReturn(src domain.SupplierReturn) domain.SupplierReturn {
	dup := src
	dup.Allocations = make([]domain.ReturnAllocation, len(src.Allocations))
	copy(dup.Allocations, src.Allocations)
	return dup
}

func cloneDecimal(src *decimal.Decimal) *decimal.Decimal {
	if src == nil {
		return nil
	}
	dup := *src
	return &dup
}
