package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"clothpos/backend/internal/domain"
	"clothpos/backend/internal/reconcile"
	"clothpos/backend/internal/store"
)

func (s *Service) ListVarieties(ctx context.Context) ([]domain.Variety, error) {
	return s.repo.ListVarieties(ctx)
}

func (s *Service) GetVariety(ctx context.Context, id string) (domain.Variety, error) {
	variety, err := s.repo.GetVariety(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Variety{}, err
	}
	return *variety, nil
}

func (s *Service) LowStock(ctx context.Context) ([]domain.LowStockVariety, error) {
	varieties, err := s.repo.ListVarieties(ctx)
	if err != nil {
		return nil, err
	}
	return reconcile.LowStock(varieties), nil
}

func (s *Service) CreateVariety(ctx context.Context, req domain.VarietyCreateRequest) (domain.Variety, error) {
	if err := requireOwner(ctx); err != nil {
		return domain.Variety{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	req.Unit = domain.Unit(strings.ToLower(strings.TrimSpace(string(req.Unit))))
	if err := s.checkStruct(req); err != nil {
		return domain.Variety{}, err
	}

	variety := domain.Variety{
		Name:             req.Name,
		Unit:             req.Unit,
		StandardLength:   roundPtr(req.StandardLength),
		Description:      req.Description,
		DefaultCostPrice: roundPtr(req.DefaultCostPrice),
		MinStockLevel:    roundPtr(req.MinStockLevel),
	}
	if err := checkVarietyAmounts(&variety); err != nil {
		return domain.Variety{}, err
	}

	created, err := s.repo.CreateVariety(ctx, variety)
	if err != nil {
		return domain.Variety{}, err
	}

	s.logAudit(ctx, "variety_create", "variety", created.ID, fmt.Sprintf("name=%s,unit=%s", created.Name, created.Unit))
	return *created, nil
}

func (s *Service) UpdateVariety(ctx context.Context, id string, req domain.VarietyUpdateRequest) (domain.Variety, error) {
	if err := requireOwner(ctx); err != nil {
		return domain.Variety{}, err
	}
	if err := s.checkStruct(req); err != nil {
		return domain.Variety{}, err
	}

	existing, err := s.repo.GetVariety(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Variety{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Variety{}, store.NewValidationError("name", "must not be empty")
		}
		updated.Name = name
	}
	if req.Unit != nil {
		updated.Unit = domain.Unit(strings.ToLower(strings.TrimSpace(string(*req.Unit))))
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}

	fields := map[string]string{}
	updated.StandardLength = patchAmount(fields, "standard_length", updated.StandardLength, req.StandardLength, req.ClearStandardLength)
	updated.DefaultCostPrice = patchAmount(fields, "default_cost_price", updated.DefaultCostPrice, req.DefaultCostPrice, req.ClearDefaultCostPrice)
	updated.MinStockLevel = patchAmount(fields, "min_stock_level", updated.MinStockLevel, req.MinStockLevel, req.ClearMinStockLevel)
	if len(fields) > 0 {
		return domain.Variety{}, &store.ValidationError{Fields: fields}
	}
	if err := checkVarietyAmounts(&updated); err != nil {
		return domain.Variety{}, err
	}

	saved, err := s.repo.UpdateVariety(ctx, updated)
	if err != nil {
		return domain.Variety{}, err
	}

	if saved.Unit != existing.Unit {
		if err := s.reports.Flush(ctx); err != nil {
			s.logger.Warn("flush daily report cache", zap.Error(err))
		}
	}
	s.logAudit(ctx, "variety_update", "variety", saved.ID, fmt.Sprintf("name=%s,unit=%s", saved.Name, saved.Unit))
	return *saved, nil
}

func (s *Service) DeleteVariety(ctx context.Context, id string) error {
	if err := requireOwner(ctx); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if err := s.repo.DeleteVariety(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "variety_delete", "variety", id, "")
	return nil
}

// patchAmount applies one optional amount of an update. Setting and clearing
// the same field is rejected.
func patchAmount(fields map[string]string, name string, current *decimal.Decimal, value *decimal.Decimal, unset bool) *decimal.Decimal {
	switch {
	case unset && value != nil:
		fields[name] = "cannot be set and cleared together"
		return current
	case unset:
		return nil
	case value != nil:
		return roundPtr(value)
	}
	return current
}

// checkVarietyAmounts enforces the numeric rules shared by create and update.
// A standard length only applies to length-based units and is cleared for
// pieces.
func checkVarietyAmounts(v *domain.Variety) error {
	fields := map[string]string{}
	if !v.Unit.Valid() {
		fields["measurement_unit"] = "must be one of: pieces meters yards"
	}
	nonNegative(fields, "default_cost_price", v.DefaultCostPrice)
	nonNegative(fields, "min_stock_level", v.MinStockLevel)
	if v.StandardLength != nil && !v.StandardLength.IsPositive() {
		fields["standard_length"] = "must be greater than zero"
	}
	if len(fields) > 0 {
		return &store.ValidationError{Fields: fields}
	}
	if !v.Unit.LengthBased() {
		v.StandardLength = nil
	}
	return nil
}
