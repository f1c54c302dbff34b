// Package reconcile holds the pure stock and pricing rules shared by the
// ledger stores, the service layer and the remote client. Nothing here does
// I/O; callers load catalog and lot state and pass it in.
package reconcile

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"clothpos/backend/internal/domain"
	"clothpos/backend/internal/store"
)

// CompareNewestFirst orders lots by supply date descending, then by creation
// time descending, then by id so the order is total.
func CompareNewestFirst(a domain.InventoryLot, b domain.InventoryLot) int {
	if c := strings.Compare(b.SupplyDate, a.SupplyDate); c != 0 {
		return c
	}
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// CompareOldestFirst is the FIFO order used when a return draws across lots.
func CompareOldestFirst(a domain.InventoryLot, b domain.InventoryLot) int {
	if c := strings.Compare(a.SupplyDate, b.SupplyDate); c != 0 {
		return c
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// SaleCandidates returns the variety's lots that still hold stock, most
// recent supply first.
func SaleCandidates(lots []domain.InventoryLot, varietyID string) []domain.InventoryLot {
	out := make([]domain.InventoryLot, 0, len(lots))
	for _, lot := range lots {
		if lot.VarietyID == varietyID && lot.QuantityRemaining.IsPositive() {
			out = append(out, lot)
		}
	}
	slices.SortFunc(out, CompareNewestFirst)
	return out
}

// SupplierMatches compares supplier names the way a person typing them would
// expect: trimmed and case-insensitive.
func SupplierMatches(a string, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// ReturnCandidates returns the supplier's lots of the variety that still hold
// stock, oldest supply first.
func ReturnCandidates(lots []domain.InventoryLot, supplierName string, varietyID string) []domain.InventoryLot {
	out := make([]domain.InventoryLot, 0, len(lots))
	for _, lot := range lots {
		if lot.VarietyID != varietyID || !lot.QuantityRemaining.IsPositive() {
			continue
		}
		if !SupplierMatches(lot.SupplierName, supplierName) {
			continue
		}
		out = append(out, lot)
	}
	slices.SortFunc(out, CompareOldestFirst)
	return out
}

func Available(lots []domain.InventoryLot) decimal.Decimal {
	total := decimal.Zero
	for _, lot := range lots {
		if lot.QuantityRemaining.IsPositive() {
			total = total.Add(lot.QuantityRemaining)
		}
	}
	return total
}

// PlanReturn draws qty from lots in the order given. Lots are expected in
// FIFO order, as produced by ReturnCandidates.
func PlanReturn(lots []domain.InventoryLot, varietyID string, qty decimal.Decimal) ([]domain.ReturnAllocation, error) {
	available := Available(lots)
	if qty.GreaterThan(available) {
		return nil, &store.InsufficientStockError{VarietyID: varietyID, Requested: qty, Available: available}
	}

	allocations := make([]domain.ReturnAllocation, 0, 2)
	left := qty
	for _, lot := range lots {
		if !left.IsPositive() {
			break
		}
		if !lot.QuantityRemaining.IsPositive() {
			continue
		}
		take := decimal.Min(left, lot.QuantityRemaining)
		allocations = append(allocations, domain.ReturnAllocation{LotID: lot.ID, Quantity: take})
		left = left.Sub(take)
	}
	return allocations, nil
}

// StockByVariety sums remaining quantity per variety.
func StockByVariety(lots []domain.InventoryLot) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, lot := range lots {
		if !lot.QuantityRemaining.IsPositive() {
			continue
		}
		out[lot.VarietyID] = out[lot.VarietyID].Add(lot.QuantityRemaining)
	}
	return out
}

// LowStock lists varieties with a minimum level whose current stock is at or
// below it, ordered by name.
func LowStock(varieties []domain.Variety) []domain.LowStockVariety {
	out := make([]domain.LowStockVariety, 0)
	for _, v := range varieties {
		if v.MinStockLevel == nil {
			continue
		}
		if v.CurrentStock.GreaterThan(*v.MinStockLevel) {
			continue
		}
		out = append(out, domain.LowStockVariety{Variety: v, CurrentStock: v.CurrentStock, MinStockLevel: *v.MinStockLevel})
	}
	slices.SortFunc(out, func(a, b domain.LowStockVariety) int {
		return strings.Compare(strings.ToLower(a.Variety.Name), strings.ToLower(b.Variety.Name))
	})
	return out
}
