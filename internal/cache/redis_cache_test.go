package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clothpos/backend/internal/domain"
)

func TestRedisReportCacheRoundTripAndInvalidate(t *testing.T) {
	addr := os.Getenv("CLOTHPOS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set CLOTHPOS_TEST_REDIS_ADDR to run redis integration test")
	}

	ctx := context.Background()
	c := NewRedisReportCache(addr, "", 0)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Ping(ctx))

	date := "1999-12-31"
	report := &domain.DailyReport{Date: date, SalesSummary: domain.DailySalesSummary{TotalQuantitySold: decimal.NewFromInt(13)}}
	require.NoError(t, c.Set(ctx, date, report, time.Minute))

	got, ok, err := c.Get(ctx, date)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(13).Equal(got.SalesSummary.TotalQuantitySold))

	require.NoError(t, c.Invalidate(ctx, date, ""))
	_, ok, err = c.Get(ctx, date)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNoopReportCacheNeverHits(t *testing.T) {
	var c ReportCache = NoopReportCache{}
	require.NoError(t, c.Set(context.Background(), "2026-01-01", &domain.DailyReport{}, time.Minute))
	_, ok, err := c.Get(context.Background(), "2026-01-01")
	require.NoError(t, err)
	assert.False(t, ok)
}
