package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"clothpos/backend/internal/domain"
	"clothpos/backend/internal/reconcile"
	"clothpos/backend/internal/store"
	"clothpos/backend/internal/xid"
)

func saleForm(req domain.SaleCreateRequest) reconcile.SaleForm {
	return reconcile.SaleForm{
		SalespersonName: req.SalespersonName,
		VarietyID:       req.VarietyID,
		Quantity:        req.Quantity,
		SellingPrice:    req.SellingPrice,
		CostPrice:       req.CostPrice,
		StockType:       req.StockType,
		LotID:           req.LotID,
	}
}

// lookupVariety returns nil without error when the id does not resolve.
func (s *Service) lookupVariety(ctx context.Context, id string) (*domain.Variety, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	variety, err := s.repo.GetVariety(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return variety, err
}

func (s *Service) deriveSale(ctx context.Context, form reconcile.SaleForm) (reconcile.SaleFormState, error) {
	variety, err := s.lookupVariety(ctx, form.VarietyID)
	if err != nil {
		return reconcile.SaleFormState{}, err
	}
	var lots []domain.InventoryLot
	if variety != nil && form.StockType == domain.StockNew {
		lots, err = s.repo.ListInventoryLots(ctx, domain.LotFilter{VarietyID: variety.ID, AvailableOnly: true})
		if err != nil {
			return reconcile.SaleFormState{}, err
		}
	}
	return reconcile.DeriveSale(form, variety, lots), nil
}

// PreviewSale derives lot choice, pricing and stock sufficiency without
// writing anything.
func (s *Service) PreviewSale(ctx context.Context, req domain.SaleCreateRequest) (reconcile.SaleFormState, error) {
	return s.deriveSale(ctx, saleForm(req))
}

func (s *Service) RecordSale(ctx context.Context, req domain.SaleCreateRequest) (domain.SaleResponse, error) {
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.SaleDate = strings.TrimSpace(req.SaleDate)
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	if err := s.checkStruct(req); err != nil {
		return domain.SaleResponse{}, err
	}

	if req.IdempotencyKey != "" {
		existing, err := s.repo.FindSaleByIdempotency(ctx, req.IdempotencyKey)
		if err == nil {
			return domain.SaleResponse{Sale: *existing, Duplicate: true}, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return domain.SaleResponse{}, err
		}
	}

	state, err := s.deriveSale(ctx, saleForm(req))
	if err != nil {
		return domain.SaleResponse{}, err
	}
	if err := state.Err(); err != nil {
		return domain.SaleResponse{}, err
	}

	if req.SaleDate == "" {
		req.SaleDate = s.today()
	}
	sale := domain.Sale{
		ID:              xid.New("sale"),
		SalespersonName: state.Form.SalespersonName,
		CustomerName:    req.CustomerName,
		VarietyID:       state.Form.VarietyID,
		Quantity:        state.Form.Quantity,
		SellingPrice:    state.Form.SellingPrice,
		CostPrice:       state.CostPrice,
		StockType:       state.Form.StockType,
		SaleDate:        req.SaleDate,
		IdempotencyKey:  req.IdempotencyKey,
	}
	sale.Profit = sale.SellingPrice.Sub(sale.CostPrice)
	if state.SelectedLot != nil {
		sale.LotID = state.SelectedLot.ID
	}

	created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		return domain.SaleResponse{}, err
	}
	if created.ID != sale.ID {
		return domain.SaleResponse{Sale: *created, Duplicate: true}, nil
	}

	s.invalidateReports(ctx, created.SaleDate)
	s.logAudit(ctx, "sale_create", "sale", created.ID,
		fmt.Sprintf("variety=%s,qty=%s,stock=%s,lot=%s,cost=%s,selling=%s",
			created.VarietyID, created.Quantity, created.StockType, created.LotID, created.CostPrice, created.SellingPrice))
	return domain.SaleResponse{Sale: *created}, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSale(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) ListSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx, limit)
}

func (s *Service) ListSalesByDate(ctx context.Context, date string) ([]domain.Sale, error) {
	date, err := ParseDate("date", date)
	if err != nil {
		return nil, err
	}
	return s.repo.ListSalesByDate(ctx, date)
}

// UpdateSale edits the descriptive and price fields of a sale. Quantity,
// variety, stock type and lot are fixed once recorded. A cost determined by
// a lot or a default price cannot be overridden; profit is always
// recomputed.
func (s *Service) UpdateSale(ctx context.Context, id string, req domain.SaleUpdateRequest) (domain.Sale, error) {
	if err := s.checkStruct(req); err != nil {
		return domain.Sale{}, err
	}
	existing, err := s.repo.GetSale(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Sale{}, err
	}

	updated := *existing
	fields := map[string]string{}
	if req.SalespersonName != nil {
		name := strings.TrimSpace(*req.SalespersonName)
		if name == "" {
			fields["salesperson_name"] = "must not be empty"
		}
		updated.SalespersonName = name
	}
	if req.CustomerName != nil {
		updated.CustomerName = strings.TrimSpace(*req.CustomerName)
	}
	if req.SellingPrice != nil {
		if !req.SellingPrice.IsPositive() {
			fields["selling_price"] = "must be greater than zero"
		}
		placesOnly(fields, "selling_price", *req.SellingPrice)
		updated.SellingPrice = *req.SellingPrice
	}
	if req.SaleDate != nil {
		updated.SaleDate = strings.TrimSpace(*req.SaleDate)
	}
	if req.CostPrice != nil {
		nonNegative(fields, "cost_price", req.CostPrice)
		placesOnly(fields, "cost_price", *req.CostPrice)
		source, err := s.costSource(ctx, *existing)
		if err != nil {
			return domain.Sale{}, err
		}
		switch source {
		case reconcile.CostFromLot:
			fields["cost_price"] = "set by the lot price for new stock sales"
		case reconcile.CostFromDefault:
			fields["cost_price"] = "set by the variety default cost price"
		default:
			updated.CostPrice = *req.CostPrice
		}
	}
	if len(fields) > 0 {
		return domain.Sale{}, &store.ValidationError{Fields: fields}
	}
	updated.Profit = updated.SellingPrice.Sub(updated.CostPrice)

	saved, err := s.repo.UpdateSale(ctx, updated)
	if err != nil {
		return domain.Sale{}, err
	}

	s.invalidateReports(ctx, existing.SaleDate, saved.SaleDate)
	s.logAudit(ctx, "sale_update", "sale", saved.ID,
		fmt.Sprintf("selling=%s,cost=%s,date=%s", saved.SellingPrice, saved.CostPrice, saved.SaleDate))
	return *saved, nil
}

// costSource reports where the cost of a recorded sale comes from. Only an
// input cost may be edited.
func (s *Service) costSource(ctx context.Context, sale domain.Sale) (string, error) {
	if sale.StockType == domain.StockNew {
		return reconcile.CostFromLot, nil
	}
	variety, err := s.lookupVariety(ctx, sale.VarietyID)
	if err != nil {
		return "", err
	}
	if variety != nil && variety.DefaultCostPrice != nil {
		return reconcile.CostFromDefault, nil
	}
	return reconcile.CostFromInput, nil
}

// DeleteSale removes the sale and restores any lot quantity it drew.
func (s *Service) DeleteSale(ctx context.Context, id string) (domain.Sale, error) {
	deleted, err := s.repo.DeleteSale(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Sale{}, err
	}

	s.invalidateReports(ctx, deleted.SaleDate)
	s.logAudit(ctx, "sale_delete", "sale", deleted.ID,
		fmt.Sprintf("variety=%s,qty=%s,lot=%s", deleted.VarietyID, deleted.Quantity, deleted.LotID))
	return *deleted, nil
}
