package reconcile

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"clothpos/backend/internal/domain"
)

// ItemCount is the number of items one sale contributes to "items sold".
// A cut of a length-based variety is one item however long it is; a count
// of pieces is the whole number of pieces.
func ItemCount(unit domain.Unit, qty decimal.Decimal) decimal.Decimal {
	if unit.LengthBased() {
		return decimal.NewFromInt(1)
	}
	return qty.Floor()
}

// UnitIndex maps variety id to unit.
func UnitIndex(varieties []domain.Variety) map[string]domain.Unit {
	out := make(map[string]domain.Unit, len(varieties))
	for _, v := range varieties {
		out[v.ID] = v.Unit
	}
	return out
}

// CountItems sums ItemCount over sales. A sale whose variety is missing from
// units counts as pieces.
func CountItems(sales []domain.Sale, units map[string]domain.Unit) decimal.Decimal {
	total := decimal.Zero
	for _, sale := range sales {
		unit, ok := units[sale.VarietyID]
		if !ok {
			unit = domain.UnitPieces
		}
		total = total.Add(ItemCount(unit, sale.Quantity))
	}
	return total
}

// CorrectDailyReport replaces the naive quantity sum of a raw ledger report
// with the unit-aware item count of the day's sales.
func CorrectDailyReport(report domain.DailyReport, sales []domain.Sale, varieties []domain.Variety) domain.DailyReport {
	report.SalesSummary.TotalQuantitySold = CountItems(sales, UnitIndex(varieties))
	return report
}

// MonthlyReturns filters returns to year/month and totals them per supplier.
func MonthlyReturns(returns []domain.SupplierReturn, year int, month int) domain.MonthlyReturnsReport {
	report := domain.MonthlyReturnsReport{
		Year:          year,
		Month:         month,
		Suppliers:     []domain.SupplierReturnTotals{},
		TotalQuantity: decimal.Zero,
		TotalAmount:   decimal.Zero,
	}

	bySupplier := make(map[string]*domain.SupplierReturnTotals)
	order := make([]string, 0)
	for _, ret := range returns {
		if !InMonth(ret.ReturnDate, year, month) {
			continue
		}
		name := strings.TrimSpace(ret.SupplierName)
		key := strings.ToLower(name)
		row, ok := bySupplier[key]
		if !ok {
			row = &domain.SupplierReturnTotals{SupplierName: name}
			bySupplier[key] = row
			order = append(order, key)
		}
		row.TotalQuantity = row.TotalQuantity.Add(ret.Quantity)
		row.TotalAmount = row.TotalAmount.Add(ret.TotalAmount)
		row.ReturnCount++

		report.TotalQuantity = report.TotalQuantity.Add(ret.Quantity)
		report.TotalAmount = report.TotalAmount.Add(ret.TotalAmount)
		report.ReturnCount++
	}

	slices.Sort(order)
	for _, key := range order {
		report.Suppliers = append(report.Suppliers, *bySupplier[key])
	}
	return report
}

// InMonth reports whether a YYYY-MM-DD date falls in year/month.
func InMonth(date string, year int, month int) bool {
	return strings.HasPrefix(date, fmt.Sprintf("%04d-%02d-", year, month))
}

// ProfitReport groups a day's sales by variety and by salesperson.
func ProfitReport(date string, sales []domain.Sale, varieties []domain.Variety) domain.ProfitReport {
	names := make(map[string]string, len(varieties))
	for _, v := range varieties {
		names[v.ID] = v.Name
	}
	units := UnitIndex(varieties)

	report := domain.ProfitReport{
		Date:                date,
		TotalProfit:         decimal.Zero,
		ProfitByVariety:     []domain.VarietyProfit{},
		ProfitBySalesperson: []domain.SalespersonProfit{},
	}
	byVariety := make(map[string]*domain.VarietyProfit)
	bySalesperson := make(map[string]*domain.SalespersonProfit)

	for _, sale := range sales {
		report.TotalProfit = report.TotalProfit.Add(sale.Profit)

		vp, ok := byVariety[sale.VarietyID]
		if !ok {
			vp = &domain.VarietyProfit{VarietyID: sale.VarietyID, VarietyName: names[sale.VarietyID]}
			byVariety[sale.VarietyID] = vp
		}
		unit, known := units[sale.VarietyID]
		if !known {
			unit = domain.UnitPieces
		}
		vp.TotalProfit = vp.TotalProfit.Add(sale.Profit)
		vp.TotalQuantity = vp.TotalQuantity.Add(sale.Quantity)
		vp.ItemCount = vp.ItemCount.Add(ItemCount(unit, sale.Quantity))

		sp, ok := bySalesperson[sale.SalespersonName]
		if !ok {
			sp = &domain.SalespersonProfit{SalespersonName: sale.SalespersonName}
			bySalesperson[sale.SalespersonName] = sp
		}
		sp.TotalProfit = sp.TotalProfit.Add(sale.Profit)
		sp.TotalQuantity = sp.TotalQuantity.Add(sale.Quantity)
		sp.SalesCount++
	}

	for _, vp := range byVariety {
		report.ProfitByVariety = append(report.ProfitByVariety, *vp)
	}
	slices.SortFunc(report.ProfitByVariety, func(a, b domain.VarietyProfit) int {
		if c := b.TotalProfit.Cmp(a.TotalProfit); c != 0 {
			return c
		}
		return strings.Compare(a.VarietyID, b.VarietyID)
	})
	for _, sp := range bySalesperson {
		report.ProfitBySalesperson = append(report.ProfitBySalesperson, *sp)
	}
	slices.SortFunc(report.ProfitBySalesperson, func(a, b domain.SalespersonProfit) int {
		if c := b.TotalProfit.Cmp(a.TotalProfit); c != 0 {
			return c
		}
		return strings.Compare(a.SalespersonName, b.SalespersonName)
	})
	return report
}

// SupplierDay compares per-supplier supply against returns for one date.
func SupplierDay(date string, lots []domain.InventoryLot, returns []domain.SupplierReturn) domain.SupplierDaySummary {
	rows := make(map[string]*domain.SupplierDayRow)
	get := func(name string) *domain.SupplierDayRow {
		key := strings.ToLower(strings.TrimSpace(name))
		row, ok := rows[key]
		if !ok {
			row = &domain.SupplierDayRow{SupplierName: strings.TrimSpace(name)}
			rows[key] = row
		}
		return row
	}

	for _, lot := range lots {
		if lot.SupplyDate != date {
			continue
		}
		row := get(lot.SupplierName)
		row.TotalSupply = row.TotalSupply.Add(lot.TotalAmount)
		row.SupplyQuantity = row.SupplyQuantity.Add(lot.Quantity)
		row.SupplyRecords++
	}
	for _, ret := range returns {
		if ret.ReturnDate != date {
			continue
		}
		row := get(ret.SupplierName)
		row.TotalReturns = row.TotalReturns.Add(ret.TotalAmount)
		row.ReturnQuantity = row.ReturnQuantity.Add(ret.Quantity)
		row.ReturnRecords++
	}

	summary := domain.SupplierDaySummary{Date: date, Suppliers: make([]domain.SupplierDayRow, 0, len(rows))}
	for _, row := range rows {
		row.NetAmount = row.TotalSupply.Sub(row.TotalReturns)
		summary.Suppliers = append(summary.Suppliers, *row)
	}
	slices.SortFunc(summary.Suppliers, func(a, b domain.SupplierDayRow) int {
		return strings.Compare(strings.ToLower(a.SupplierName), strings.ToLower(b.SupplierName))
	})
	return summary
}

// MonthBounds returns the first and last YYYY-MM-DD dates of year/month.
func MonthBounds(year int, month int) (string, string) {
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return first.Format(domain.DateLayout), last.Format(domain.DateLayout)
}

// ExpenseSummary totals one day's expenses per category.
func ExpenseSummary(date string, expenses []domain.Expense) domain.ExpenseSummary {
	summary := domain.ExpenseSummary{
		Date:              date,
		TotalExpenses:     decimal.Zero,
		CategoryBreakdown: map[domain.ExpenseCategory]decimal.Decimal{},
	}
	for _, e := range expenses {
		if e.ExpenseDate != date {
			continue
		}
		summary.TotalExpenses = summary.TotalExpenses.Add(e.Amount)
		summary.CategoryBreakdown[e.Category] = summary.CategoryBreakdown[e.Category].Add(e.Amount)
		summary.ExpenseCount++
	}
	return summary
}

// FinancialReport sets a month's sales totals against the expenses dated in
// that month. Margin and expense ratio are zero when there is no revenue.
func FinancialReport(year int, month int, sales domain.SalesTotals, expenses []domain.Expense) domain.FinancialReport {
	report := domain.FinancialReport{
		Year:          year,
		Month:         month,
		TotalRevenue:  sales.TotalSalesAmount,
		TotalProfit:   sales.TotalProfit,
		TotalExpenses: decimal.Zero,
		ProfitMargin:  decimal.Zero,
		ExpenseRatio:  decimal.Zero,
		SalesCount:    sales.SalesCount,
	}
	for _, e := range expenses {
		if !InMonth(e.ExpenseDate, year, month) {
			continue
		}
		report.TotalExpenses = report.TotalExpenses.Add(e.Amount)
		report.ExpenseCount++
	}
	report.NetIncome = report.TotalProfit.Sub(report.TotalExpenses)
	if report.TotalRevenue.IsPositive() {
		hundred := decimal.NewFromInt(100)
		report.ProfitMargin = report.TotalProfit.Div(report.TotalRevenue).Mul(hundred).Round(moneyPlaces)
		report.ExpenseRatio = report.TotalExpenses.Div(report.TotalRevenue).Mul(hundred).Round(moneyPlaces)
	}
	return report
}
