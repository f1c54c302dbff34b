package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"clothpos/backend/internal/domain"
	"clothpos/backend/internal/reconcile"
	"clothpos/backend/internal/store"
	"clothpos/backend/internal/xid"
)

func (s *Service) deriveReturn(ctx context.Context, form reconcile.ReturnForm) (reconcile.ReturnFormState, error) {
	variety, err := s.lookupVariety(ctx, form.VarietyID)
	if err != nil {
		return reconcile.ReturnFormState{}, err
	}
	var lots []domain.InventoryLot
	if variety != nil {
		lots, err = s.repo.ListInventoryLots(ctx, domain.LotFilter{VarietyID: variety.ID, AvailableOnly: true})
		if err != nil {
			return reconcile.ReturnFormState{}, err
		}
	}
	return reconcile.DeriveReturn(form, variety, lots), nil
}

// PreviewReturn reports the pre-filled price, the matching lots and the
// quantity available to return to the supplier. A zero quantity only
// pre-fills.
func (s *Service) PreviewReturn(ctx context.Context, supplierName string, varietyID string, quantity decimal.Decimal) (reconcile.ReturnFormState, error) {
	return s.deriveReturn(ctx, reconcile.ReturnForm{
		SupplierName: supplierName,
		VarietyID:    varietyID,
		Quantity:     quantity,
	})
}

func (s *Service) RecordReturn(ctx context.Context, req domain.ReturnCreateRequest) (domain.SupplierReturn, error) {
	req.ReturnDate = strings.TrimSpace(req.ReturnDate)
	req.Reason = strings.TrimSpace(req.Reason)
	if err := s.checkStruct(req); err != nil {
		return domain.SupplierReturn{}, err
	}

	state, err := s.deriveReturn(ctx, reconcile.ReturnForm{
		SupplierName: req.SupplierName,
		VarietyID:    req.VarietyID,
		Quantity:     req.Quantity,
		PricePerItem: req.PricePerItem,
	})
	if err != nil {
		return domain.SupplierReturn{}, err
	}
	if err := state.Err(); err != nil {
		return domain.SupplierReturn{}, err
	}

	if req.ReturnDate == "" {
		req.ReturnDate = s.today()
	}
	created, err := s.repo.CreateReturn(ctx, domain.SupplierReturn{
		ID:           xid.New("ret"),
		SupplierName: state.Form.SupplierName,
		VarietyID:    state.Form.VarietyID,
		Quantity:     state.Form.Quantity,
		PricePerItem: state.PricePerItem,
		TotalAmount:  state.TotalAmount,
		ReturnDate:   req.ReturnDate,
		Reason:       req.Reason,
	})
	if err != nil {
		return domain.SupplierReturn{}, err
	}

	s.invalidateReports(ctx, created.ReturnDate)
	s.logAudit(ctx, "return_create", "supplier_return", created.ID,
		fmt.Sprintf("supplier=%s,variety=%s,qty=%s,total=%s,lots=%d",
			created.SupplierName, created.VarietyID, created.Quantity, created.TotalAmount, len(created.Allocations)))
	return *created, nil
}

func (s *Service) ListReturns(ctx context.Context, filter domain.ReturnFilter) ([]domain.SupplierReturn, error) {
	if filter.ReturnDate != "" {
		date, err := ParseDate("date", filter.ReturnDate)
		if err != nil {
			return nil, err
		}
		filter.ReturnDate = date
	}
	if filter.Year != 0 || filter.Month != 0 {
		if err := checkYearMonth(filter.Year, filter.Month); err != nil {
			return nil, err
		}
	}
	return s.repo.ListReturns(ctx, filter)
}

// DeleteReturn removes the return and restores every lot it drew from.
func (s *Service) DeleteReturn(ctx context.Context, id string) (domain.SupplierReturn, error) {
	if err := requireOwner(ctx); err != nil {
		return domain.SupplierReturn{}, err
	}
	deleted, err := s.repo.DeleteReturn(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.SupplierReturn{}, err
	}

	s.invalidateReports(ctx, deleted.ReturnDate)
	s.logAudit(ctx, "return_delete", "supplier_return", deleted.ID,
		fmt.Sprintf("supplier=%s,variety=%s,qty=%s", deleted.SupplierName, deleted.VarietyID, deleted.Quantity))
	return *deleted, nil
}

func checkYearMonth(year int, month int) error {
	fields := map[string]string{}
	if year < 2000 || year > 9999 {
		fields["year"] = "must be a four digit year"
	}
	if month < 1 || month > 12 {
		fields["month"] = "must be between 1 and 12"
	}
	if len(fields) > 0 {
		return &store.ValidationError{Fields: fields}
	}
	return nil
}
