package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clothpos/backend/internal/domain"
)

func TestRupeesGroupsThousands(t *testing.T) {
	cases := map[string]string{
		"0":         "0.00",
		"240":       "240.00",
		"1700":      "1,700.00",
		"1234567.5": "1,234,567.50",
		"-98765.4":  "-98,765.40",
	}
	for in, want := range cases {
		assert.Equal(t, want, rupees(decimal.RequireFromString(in)), in)
	}
}

func TestDailySummaryMessage(t *testing.T) {
	msg := DailySummary(domain.DailyReport{
		Date: "2026-03-14",
		SalesSummary: domain.DailySalesSummary{
			TotalSalesAmount:  decimal.NewFromInt(1700),
			TotalProfit:       decimal.RequireFromString("212.5"),
			TotalQuantitySold: decimal.NewFromInt(13),
			SalesCount:        2,
		},
		SupplierSummary: domain.DailySupplierSummary{
			TotalSupply:  decimal.NewFromInt(1200),
			TotalReturns: decimal.NewFromInt(240),
			SupplyCount:  1,
			ReturnCount:  1,
		},
		NetInventoryValue: decimal.NewFromInt(960),
	})

	assert.Contains(t, msg, "*Daily Sales Summary - 2026-03-14*")
	assert.Contains(t, msg, "Total Sales: Rs. 1,700.00")
	assert.Contains(t, msg, "Transactions: 2")
	assert.Contains(t, msg, "Items Sold: 13")
	assert.Contains(t, msg, "Profit: Rs. 212.50")
	assert.Contains(t, msg, "Supplier Returns: Rs. 240.00 (1 returns)")
}

func TestLowStockAlertMessage(t *testing.T) {
	msg := LowStockAlert(domain.LowStockVariety{
		Variety:       domain.Variety{Name: "Cotton Print", Unit: domain.UnitMeters},
		CurrentStock:  decimal.RequireFromString("12.5"),
		MinStockLevel: decimal.NewFromInt(20),
	})

	assert.Contains(t, msg, "*Low Stock Alert*")
	assert.Contains(t, msg, "Product: Cotton Print")
	assert.Contains(t, msg, "Current Stock: 12.5 meters")
	assert.Contains(t, msg, "Minimum Level: 20 meters")
}

func TestBridgeClientSend(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/send-message", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"message":"Message sent successfully","id":"wamid.1"}`))
	}))
	defer server.Close()

	client := NewBridgeClient(server.URL + "/")
	require.NoError(t, client.Send(context.Background(), "+919812345678", "hello"))
	assert.Equal(t, "919812345678", got["phone"])
	assert.Equal(t, "hello", got["message"])
}

func TestBridgeClientErrors(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusServiceUnavailable)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(int(status.Load()))
		_, _ = w.Write([]byte(`{"success":false,"error":"WhatsApp client not ready"}`))
	}))
	defer server.Close()

	client := NewBridgeClient(server.URL)
	err := client.Send(context.Background(), "919812345678", "hello")
	assert.ErrorIs(t, err, ErrBridgeNotReady)

	status.Store(http.StatusBadGateway)
	err = client.Send(context.Background(), "919812345678", "hello")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBridgeNotReady)
	assert.Contains(t, err.Error(), "status=502")
}
