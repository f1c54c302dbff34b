package cache

import (
	"context"
	"time"

	"clothpos/backend/internal/domain"
)

// ReportCache holds corrected daily reports keyed by business date.
type ReportCache interface {
	Get(ctx context.Context, date string) (*domain.DailyReport, bool, error)
	Set(ctx context.Context, date string, value *domain.DailyReport, ttl time.Duration) error
	Invalidate(ctx context.Context, dates ...string) error
	// Flush drops every cached report, for changes that can touch any date.
	Flush(ctx context.Context) error
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string) (*domain.DailyReport, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ *domain.DailyReport, _ time.Duration) error {
	return nil
}

func (NoopReportCache) Invalidate(_ context.Context, _ ...string) error {
	return nil
}

func (NoopReportCache) Flush(_ context.Context) error {
	return nil
}

const dailyReportPrefix = "clothpos:report:daily:"

func dailyReportKey(date string) string {
	return dailyReportPrefix + date
}
