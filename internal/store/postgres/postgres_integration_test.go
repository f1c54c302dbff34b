package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"clothpos/backend/internal/domain"
	"clothpos/backend/internal/store"
)

func TestSaleAndReturnRoundTripRestoresLots(t *testing.T) {
	databaseURL := os.Getenv("CLOTHPOS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set CLOTHPOS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.Migrate(zap.NewNop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	stamp := time.Now().UnixNano()
	supplier := fmt.Sprintf("Supplier IT %d", stamp)
	variety, err := s.CreateVariety(ctx, domain.Variety{Name: fmt.Sprintf("Voile IT %d", stamp), Unit: domain.UnitMeters})
	if err != nil {
		t.Fatalf("create variety: %v", err)
	}

	older, err := s.CreateInventoryLot(ctx, domain.InventoryLot{
		VarietyID: variety.ID, SupplierName: supplier, Quantity: decimal.NewFromInt(2),
		PricePerItem: decimal.NewFromInt(50), TotalAmount: decimal.NewFromInt(100), SupplyDate: "2026-01-01",
	})
	if err != nil {
		t.Fatalf("create older lot: %v", err)
	}
	newer, err := s.CreateInventoryLot(ctx, domain.InventoryLot{
		VarietyID: variety.ID, SupplierName: supplier, Quantity: decimal.NewFromInt(10),
		PricePerItem: decimal.NewFromInt(55), TotalAmount: decimal.NewFromInt(550), SupplyDate: "2026-02-01",
	})
	if err != nil {
		t.Fatalf("create newer lot: %v", err)
	}

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE variety_id = $1`, variety.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM supplier_returns WHERE variety_id = $1`, variety.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM inventory_lots WHERE variety_id = $1`, variety.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM varieties WHERE id = $1`, variety.ID)
	})

	sale, err := s.CreateSale(ctx, domain.Sale{
		SalespersonName: "IT", VarietyID: variety.ID, Quantity: decimal.NewFromInt(9),
		SellingPrice: decimal.NewFromInt(900), CostPrice: decimal.NewFromInt(495), Profit: decimal.NewFromInt(405),
		StockType: domain.StockNew, LotID: newer.ID, SaleDate: "2026-03-01",
		IdempotencyKey: fmt.Sprintf("idem-it-%d", stamp),
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	replay, err := s.CreateSale(ctx, *sale)
	if err != nil || replay.ID != sale.ID {
		t.Fatalf("expected idempotent replay, got %v %v", replay, err)
	}

	_, err = s.CreateSale(ctx, domain.Sale{
		SalespersonName: "IT", VarietyID: variety.ID, Quantity: decimal.NewFromInt(2),
		SellingPrice: decimal.NewFromInt(200), StockType: domain.StockNew, LotID: newer.ID, SaleDate: "2026-03-01",
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	ret, err := s.CreateReturn(ctx, domain.SupplierReturn{
		SupplierName: supplier, VarietyID: variety.ID, Quantity: decimal.NewFromInt(3),
		PricePerItem: decimal.NewFromInt(55), TotalAmount: decimal.NewFromInt(165), ReturnDate: "2026-03-01",
	})
	if err != nil {
		t.Fatalf("create return: %v", err)
	}
	if len(ret.Allocations) != 2 || ret.Allocations[0].LotID != older.ID {
		t.Fatalf("expected FIFO allocations starting at older lot, got %+v", ret.Allocations)
	}

	if _, err := s.DeleteReturn(ctx, ret.ID); err != nil {
		t.Fatalf("delete return: %v", err)
	}
	if _, err := s.DeleteSale(ctx, sale.ID); err != nil {
		t.Fatalf("delete sale: %v", err)
	}

	for _, id := range []string{older.ID, newer.ID} {
		lot, err := s.GetInventoryLot(ctx, id)
		if err != nil {
			t.Fatalf("get lot: %v", err)
		}
		if !lot.QuantityRemaining.Equal(lot.Quantity) {
			t.Fatalf("lot %s not restored: remaining %s of %s", id, lot.QuantityRemaining, lot.Quantity)
		}
	}
}
