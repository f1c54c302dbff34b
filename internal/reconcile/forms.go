package reconcile

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"clothpos/backend/internal/domain"
	"clothpos/backend/internal/store"
)

const moneyPlaces = 2

// PlacesMessage is the field error for amounts finer than a paisa or a
// centimetre.
const PlacesMessage = "must have at most 2 decimal places"

// ExcessPlaces reports whether value carries more than two decimal places.
func ExcessPlaces(value decimal.Decimal) bool {
	return !value.Equal(value.Round(moneyPlaces))
}

func checkPlaces(errs map[string]string, field string, value decimal.Decimal) {
	if _, taken := errs[field]; !taken && ExcessPlaces(value) {
		errs[field] = PlacesMessage
	}
}

// Cost sources reported by SaleFormState.
const (
	CostFromLot     = "lot"
	CostFromDefault = "default"
	CostFromInput   = "input"
)

// SaleForm is the serializable input of a sale entry.
type SaleForm struct {
	SalespersonName string           `json:"salesperson_name"`
	VarietyID       string           `json:"variety_id"`
	Quantity        decimal.Decimal  `json:"quantity"`
	SellingPrice    decimal.Decimal  `json:"selling_price"`
	CostPrice       *decimal.Decimal `json:"cost_price,omitempty"`
	StockType       domain.StockType `json:"stock_type"`
	LotID           string           `json:"supplier_inventory_id,omitempty"`
}

// SaleFormState is everything derived from a SaleForm and the current
// catalog and lot state.
type SaleFormState struct {
	Form         SaleForm              `json:"form"`
	Unit         domain.Unit           `json:"measurement_unit,omitempty"`
	Candidates   []domain.InventoryLot `json:"candidates"`
	SelectedLot  *domain.InventoryLot  `json:"selected_lot,omitempty"`
	Available    decimal.Decimal       `json:"available"`
	CostPrice    decimal.Decimal       `json:"cost_price"`
	CostSource   string                `json:"cost_source"`
	Profit       decimal.Decimal       `json:"profit"`
	Errors       map[string]string     `json:"errors,omitempty"`
	Insufficient bool                  `json:"insufficient"`
	Ready        bool                  `json:"ready"`

	insufficient *store.InsufficientStockError
	lotChoice    bool
}

// DeriveSale resolves pricing and lot selection for a sale form. variety is
// nil when the id did not resolve. lots may hold lots of any variety.
func DeriveSale(form SaleForm, variety *domain.Variety, lots []domain.InventoryLot) SaleFormState {
	form.SalespersonName = strings.TrimSpace(form.SalespersonName)
	form.VarietyID = strings.TrimSpace(form.VarietyID)
	form.LotID = strings.TrimSpace(form.LotID)
	if form.StockType == "" {
		form.StockType = domain.StockOld
	}

	state := SaleFormState{Form: form, Errors: map[string]string{}, Candidates: []domain.InventoryLot{}}

	if form.SalespersonName == "" {
		state.Errors["salesperson_name"] = "required"
	}
	switch {
	case form.VarietyID == "":
		state.Errors["variety_id"] = "required"
	case variety == nil:
		state.Errors["variety_id"] = "variety not found"
	default:
		state.Unit = variety.Unit
	}
	if !form.Quantity.IsPositive() {
		state.Errors["quantity"] = "must be greater than zero"
	}
	if !form.SellingPrice.IsPositive() {
		state.Errors["selling_price"] = "must be greater than zero"
	}
	if form.CostPrice != nil && form.CostPrice.IsNegative() {
		state.Errors["cost_price"] = "must not be negative"
	}
	checkPlaces(state.Errors, "quantity", form.Quantity)
	checkPlaces(state.Errors, "selling_price", form.SellingPrice)
	if form.CostPrice != nil {
		checkPlaces(state.Errors, "cost_price", *form.CostPrice)
	}
	if form.StockType != domain.StockOld && form.StockType != domain.StockNew {
		state.Errors["stock_type"] = "must be old_stock or new_stock"
	}

	if form.CostPrice != nil {
		state.CostPrice = form.CostPrice.Round(moneyPlaces)
		state.CostSource = CostFromInput
	}

	if variety != nil {
		switch form.StockType {
		case domain.StockNew:
			state.deriveNewStock(form, variety, lots)
		case domain.StockOld:
			if form.LotID != "" {
				state.Errors["supplier_inventory_id"] = "old stock sales are not tied to a lot"
			}
			if variety.DefaultCostPrice != nil && form.Quantity.IsPositive() {
				state.CostPrice = variety.DefaultCostPrice.Mul(form.Quantity).Round(moneyPlaces)
				state.CostSource = CostFromDefault
			}
		}
	}

	if state.CostSource == "" {
		state.CostPrice = decimal.Zero
		state.CostSource = CostFromInput
	}
	state.Profit = form.SellingPrice.Sub(state.CostPrice)
	state.Insufficient = state.insufficient != nil
	state.Ready = len(state.Errors) == 0 && !state.Insufficient
	if len(state.Errors) == 0 {
		state.Errors = nil
	}
	return state
}

func (s *SaleFormState) deriveNewStock(form SaleForm, variety *domain.Variety, lots []domain.InventoryLot) {
	s.Candidates = SaleCandidates(lots, variety.ID)
	s.Available = Available(s.Candidates)

	if form.Quantity.IsPositive() && form.Quantity.GreaterThan(s.Available) {
		s.insufficient = &store.InsufficientStockError{VarietyID: variety.ID, Requested: form.Quantity, Available: s.Available}
		return
	}

	var selected *domain.InventoryLot
	switch {
	case form.LotID != "":
		for i := range s.Candidates {
			if s.Candidates[i].ID == form.LotID {
				selected = &s.Candidates[i]
				break
			}
		}
		if selected == nil {
			s.Errors["supplier_inventory_id"] = "lot has no remaining stock for this variety"
			return
		}
	case len(s.Candidates) == 1:
		selected = &s.Candidates[0]
	case len(s.Candidates) > 1:
		s.lotChoice = true
		s.Errors["supplier_inventory_id"] = fmt.Sprintf("choose one of %d lots; most recent is %s", len(s.Candidates), s.Candidates[0].ID)
		return
	default:
		s.Errors["supplier_inventory_id"] = "no lot with remaining stock"
		return
	}

	lot := *selected
	s.SelectedLot = &lot
	s.Form.LotID = lot.ID
	if form.Quantity.IsPositive() {
		s.CostPrice = lot.PricePerItem.Mul(form.Quantity).Round(moneyPlaces)
		s.CostSource = CostFromLot
		if form.Quantity.GreaterThan(lot.QuantityRemaining) {
			s.insufficient = &store.InsufficientStockError{VarietyID: variety.ID, Requested: form.Quantity, Available: lot.QuantityRemaining}
		}
	}
}

// Err converts the derived state into the error a recorder should return.
// Missing or malformed fields win over stock shortfalls; a shortfall across
// all lots wins over an unresolved lot choice.
func (s SaleFormState) Err() error {
	fields := make(map[string]string, len(s.Errors))
	for k, v := range s.Errors {
		if k == "supplier_inventory_id" {
			continue
		}
		fields[k] = v
	}
	if len(fields) > 0 {
		if msg, ok := s.Errors["supplier_inventory_id"]; ok {
			fields["supplier_inventory_id"] = msg
		}
		return &store.ValidationError{Fields: fields}
	}
	if s.insufficient != nil {
		return s.insufficient
	}
	if msg, ok := s.Errors["supplier_inventory_id"]; ok {
		return store.NewValidationError("supplier_inventory_id", msg)
	}
	return nil
}

// NeedsLotChoice reports whether several lots qualify and none was picked.
func (s SaleFormState) NeedsLotChoice() bool {
	return s.lotChoice
}

// ReturnForm is the serializable input of a supplier return entry.
type ReturnForm struct {
	SupplierName string           `json:"supplier_name"`
	VarietyID    string           `json:"variety_id"`
	Quantity     decimal.Decimal  `json:"quantity"`
	PricePerItem *decimal.Decimal `json:"price_per_item,omitempty"`
}

type ReturnFormState struct {
	Form           ReturnForm                `json:"form"`
	MatchingLots   []domain.InventoryLot     `json:"matching_lots"`
	SuggestedPrice *decimal.Decimal          `json:"suggested_price,omitempty"`
	Available      decimal.Decimal           `json:"available"`
	PricePerItem   decimal.Decimal           `json:"price_per_item"`
	TotalAmount    decimal.Decimal           `json:"total_amount"`
	Allocations    []domain.ReturnAllocation `json:"allocations,omitempty"`
	Warnings       []string                  `json:"warnings,omitempty"`
	Errors         map[string]string         `json:"errors,omitempty"`
	Ready          bool                      `json:"ready"`

	insufficient error
}

// DeriveReturn pre-fills the price from the most recent matching lot, totals
// the matching remaining stock and plans the FIFO draw.
func DeriveReturn(form ReturnForm, variety *domain.Variety, lots []domain.InventoryLot) ReturnFormState {
	form.SupplierName = strings.TrimSpace(form.SupplierName)
	form.VarietyID = strings.TrimSpace(form.VarietyID)

	state := ReturnFormState{Form: form, Errors: map[string]string{}, MatchingLots: []domain.InventoryLot{}}

	if form.SupplierName == "" {
		state.Errors["supplier_name"] = "required"
	}
	switch {
	case form.VarietyID == "":
		state.Errors["variety_id"] = "required"
	case variety == nil:
		state.Errors["variety_id"] = "variety not found"
	}
	if !form.Quantity.IsPositive() {
		state.Errors["quantity"] = "must be greater than zero"
	}
	checkPlaces(state.Errors, "quantity", form.Quantity)

	if variety != nil && form.SupplierName != "" {
		state.MatchingLots = ReturnCandidates(lots, form.SupplierName, variety.ID)
		state.Available = Available(state.MatchingLots)
		if n := len(state.MatchingLots); n > 0 {
			newest := state.MatchingLots[n-1]
			price := newest.PricePerItem
			state.SuggestedPrice = &price
		} else {
			state.Warnings = append(state.Warnings, "no stock from this supplier for this variety")
		}
	}

	switch {
	case form.PricePerItem != nil:
		if form.PricePerItem.IsNegative() {
			state.Errors["price_per_item"] = "must not be negative"
		}
		checkPlaces(state.Errors, "price_per_item", *form.PricePerItem)
		state.PricePerItem = *form.PricePerItem
	case state.SuggestedPrice != nil:
		state.PricePerItem = *state.SuggestedPrice
	default:
		state.Errors["price_per_item"] = "required"
	}

	if form.Quantity.IsPositive() && !ExcessPlaces(form.Quantity) {
		state.TotalAmount = form.Quantity.Mul(state.PricePerItem).Round(moneyPlaces)
		if variety != nil && len(state.Errors) == 0 {
			allocations, err := PlanReturn(state.MatchingLots, variety.ID, form.Quantity)
			if err != nil {
				state.insufficient = err
				state.Warnings = append(state.Warnings, fmt.Sprintf("only %s available from this supplier", state.Available.String()))
			} else {
				state.Allocations = allocations
			}
		}
	}

	state.Ready = len(state.Errors) == 0 && state.insufficient == nil
	if len(state.Errors) == 0 {
		state.Errors = nil
	}
	return state
}

func (s ReturnFormState) Err() error {
	if len(s.Errors) > 0 {
		return &store.ValidationError{Fields: s.Errors}
	}
	return s.insufficient
}
