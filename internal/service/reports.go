package service

import (
	"context"

	"go.uber.org/zap"

	"clothpos/backend/internal/domain"
	"clothpos/backend/internal/reconcile"
)

// DailyReport returns the day's ledger aggregate with total_quantity_sold
// replaced by the unit-aware item count. Results are cached per date until a
// write touches that date.
func (s *Service) DailyReport(ctx context.Context, date string) (domain.DailyReport, error) {
	date, err := ParseDate("date", date)
	if err != nil {
		return domain.DailyReport{}, err
	}

	if cached, ok, err := s.reports.Get(ctx, date); err != nil {
		s.logger.Warn("read daily report cache", zap.String("date", date), zap.Error(err))
	} else if ok {
		return *cached, nil
	}

	raw, err := s.repo.GetDailyReport(ctx, date)
	if err != nil {
		return domain.DailyReport{}, err
	}
	sales, err := s.repo.ListSalesByDate(ctx, date)
	if err != nil {
		return domain.DailyReport{}, err
	}
	varieties, err := s.repo.ListVarieties(ctx)
	if err != nil {
		return domain.DailyReport{}, err
	}

	report := reconcile.CorrectDailyReport(raw, sales, varieties)
	if err := s.reports.Set(ctx, date, &report, s.reportTTL); err != nil {
		s.logger.Warn("write daily report cache", zap.String("date", date), zap.Error(err))
	}
	return report, nil
}

func (s *Service) ProfitReport(ctx context.Context, date string) (domain.ProfitReport, error) {
	date, err := ParseDate("date", date)
	if err != nil {
		return domain.ProfitReport{}, err
	}
	sales, err := s.repo.ListSalesByDate(ctx, date)
	if err != nil {
		return domain.ProfitReport{}, err
	}
	varieties, err := s.repo.ListVarieties(ctx)
	if err != nil {
		return domain.ProfitReport{}, err
	}
	return reconcile.ProfitReport(date, sales, varieties), nil
}

func (s *Service) MonthlyReturns(ctx context.Context, year int, month int) (domain.MonthlyReturnsReport, error) {
	if err := checkYearMonth(year, month); err != nil {
		return domain.MonthlyReturnsReport{}, err
	}
	returns, err := s.repo.ListReturns(ctx, domain.ReturnFilter{Year: year, Month: month})
	if err != nil {
		return domain.MonthlyReturnsReport{}, err
	}
	return reconcile.MonthlyReturns(returns, year, month), nil
}

func (s *Service) SupplierDay(ctx context.Context, date string) (domain.SupplierDaySummary, error) {
	date, err := ParseDate("date", date)
	if err != nil {
		return domain.SupplierDaySummary{}, err
	}
	lots, err := s.repo.ListInventoryLots(ctx, domain.LotFilter{SupplyDate: date})
	if err != nil {
		return domain.SupplierDaySummary{}, err
	}
	returns, err := s.repo.ListReturns(ctx, domain.ReturnFilter{ReturnDate: date})
	if err != nil {
		return domain.SupplierDaySummary{}, err
	}
	return reconcile.SupplierDay(date, lots, returns), nil
}
