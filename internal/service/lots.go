package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"clothpos/backend/internal/domain"
	"clothpos/backend/internal/store"
)

func (s *Service) ReceiveLot(ctx context.Context, req domain.LotReceiveRequest) (domain.InventoryLot, error) {
	req.SupplierName = strings.TrimSpace(req.SupplierName)
	req.VarietyID = strings.TrimSpace(req.VarietyID)
	req.SupplyDate = strings.TrimSpace(req.SupplyDate)
	if err := s.checkStruct(req); err != nil {
		return domain.InventoryLot{}, err
	}

	fields := map[string]string{}
	if !req.Quantity.IsPositive() {
		fields["quantity"] = "must be greater than zero"
	}
	if req.PricePerItem.IsNegative() {
		fields["price_per_item"] = "must not be negative"
	}
	placesOnly(fields, "quantity", req.Quantity)
	placesOnly(fields, "price_per_item", req.PricePerItem)
	if len(fields) > 0 {
		return domain.InventoryLot{}, &store.ValidationError{Fields: fields}
	}

	if _, err := s.repo.GetVariety(ctx, req.VarietyID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.InventoryLot{}, store.NewValidationError("variety_id", "variety not found")
		}
		return domain.InventoryLot{}, err
	}

	if req.SupplyDate == "" {
		req.SupplyDate = s.today()
	}
	created, err := s.repo.CreateInventoryLot(ctx, domain.InventoryLot{
		VarietyID:    req.VarietyID,
		SupplierName: req.SupplierName,
		Quantity:     req.Quantity,
		PricePerItem: req.PricePerItem,
		TotalAmount:  req.Quantity.Mul(req.PricePerItem).Round(moneyPlaces),
		SupplyDate:   req.SupplyDate,
	})
	if err != nil {
		return domain.InventoryLot{}, err
	}

	s.invalidateReports(ctx, created.SupplyDate)
	s.logAudit(ctx, "lot_receive", "inventory_lot", created.ID,
		fmt.Sprintf("variety=%s,supplier=%s,qty=%s,price=%s", created.VarietyID, created.SupplierName, created.Quantity, created.PricePerItem))
	return *created, nil
}

func (s *Service) GetLot(ctx context.Context, id string) (domain.InventoryLot, error) {
	lot, err := s.repo.GetInventoryLot(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.InventoryLot{}, err
	}
	return *lot, nil
}

func (s *Service) ListLots(ctx context.Context, filter domain.LotFilter) ([]domain.InventoryLot, error) {
	filter.VarietyID = strings.TrimSpace(filter.VarietyID)
	filter.SupplierName = strings.TrimSpace(filter.SupplierName)
	if filter.SupplyDate != "" {
		date, err := ParseDate("date", filter.SupplyDate)
		if err != nil {
			return nil, err
		}
		filter.SupplyDate = date
	}
	return s.repo.ListInventoryLots(ctx, filter)
}

// DeleteLot removes a lot nothing has drawn from yet.
func (s *Service) DeleteLot(ctx context.Context, id string) error {
	if err := requireOwner(ctx); err != nil {
		return err
	}
	lot, err := s.repo.GetInventoryLot(ctx, strings.TrimSpace(id))
	if err != nil {
		return err
	}
	if err := s.repo.DeleteInventoryLot(ctx, lot.ID); err != nil {
		return err
	}

	s.invalidateReports(ctx, lot.SupplyDate)
	s.logAudit(ctx, "lot_delete", "inventory_lot", lot.ID, fmt.Sprintf("variety=%s,supplier=%s", lot.VarietyID, lot.SupplierName))
	return nil
}

const (
	defaultMovementLimit = 100
	maxMovementLimit     = 500
)

// ListMovements returns the stock history newest first.
func (s *Service) ListMovements(ctx context.Context, filter domain.MovementFilter) ([]domain.InventoryMovement, error) {
	filter.VarietyID = strings.TrimSpace(filter.VarietyID)
	filter.LotID = strings.TrimSpace(filter.LotID)
	if filter.From != "" {
		from, err := ParseDate("from", filter.From)
		if err != nil {
			return nil, err
		}
		filter.From = from
	}
	if filter.To != "" {
		to, err := ParseDate("to", filter.To)
		if err != nil {
			return nil, err
		}
		filter.To = to
	}
	if filter.From != "" && filter.To != "" && filter.From > filter.To {
		return nil, store.NewValidationError("from", "must not be after to")
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultMovementLimit
	case filter.Limit > maxMovementLimit:
		filter.Limit = maxMovementLimit
	}
	return s.repo.ListInventoryMovements(ctx, filter)
}
