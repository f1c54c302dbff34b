package httpapi

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"clothpos/backend/internal/domain"
	"clothpos/backend/internal/service"
	"clothpos/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()
	t.Setenv("SEED_OWNER_PASSWORD", "owner-pass")
	t.Setenv("SEED_SALESPERSON_PASSWORD", "sales-pass")

	repo := memory.NewSeeded()
	svc := service.New(repo, nil, time.Minute, nil)
	auth := NewAuthManager(context.Background(), "test-secret-key", time.Hour, repo)

	return New(svc, auth, Options{AllowedOrigin: "*", RateLimitRPS: 1000, RateLimitBurst: 1000})
}

func login(t *testing.T, handler http.Handler, username, password string) string {
	t.Helper()
	payload, _ := json.Marshal(domain.LoginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d (%s)", username, rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return resp.AccessToken
}

func do(t *testing.T, handler http.Handler, token, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v (%s)", err, rec.Body.String())
	}
	return out
}

func today() string {
	return time.Now().Format(domain.DateLayout)
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	rec := do(t, api.Handler(), "", http.MethodGet, "/healthz", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody[map[string]any](t, rec)
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_WrongPassword(t *testing.T) {
	api := newTestAPI(t)
	rec := do(t, api.Handler(), "", http.MethodPost, "/auth/login", domain.LoginRequest{Username: "owner", Password: "bad"})

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	body := decodeBody[map[string]any](t, rec)
	if body["detail"] == "" {
		t.Fatalf("expected detail message")
	}
}

func TestRoutesRequireBearerToken(t *testing.T) {
	api := newTestAPI(t)
	rec := do(t, api.Handler(), "", http.MethodGet, "/varieties/", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestListVarietiesIncludesCurrentStock(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "sales", "sales-pass")

	rec := do(t, handler, token, http.MethodGet, "/varieties/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	varieties := decodeBody[[]domain.Variety](t, rec)
	if len(varieties) != 3 {
		t.Fatalf("expected 3 seeded varieties, got %d", len(varieties))
	}
	for _, v := range varieties {
		if v.ID == "var-cotton-print" && !v.CurrentStock.Equal(decimal.NewFromInt(120)) {
			t.Fatalf("expected cotton stock 120, got %s", v.CurrentStock)
		}
	}
}

func TestSalespersonCannotCreateVariety(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "sales", "sales-pass")

	rec := do(t, handler, token, http.MethodPost, "/varieties/", map[string]any{"name": "Linen", "measurement_unit": "meters"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d (%s)", rec.Code, rec.Body.String())
	}

	owner := login(t, handler, "owner", "owner-pass")
	rec = do(t, handler, owner, http.MethodPost, "/varieties/", map[string]any{"name": "Linen", "measurement_unit": "meters"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestRecordSaleNewStockDeductsAndIdempotencyHeaderReplays(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "sales", "sales-pass")

	body := map[string]any{
		"salesperson_name": "Asha",
		"variety_id":       "var-silk-saree",
		"quantity":         "2",
		"selling_price":    "3200",
		"stock_type":       "new_stock",
	}
	send := func() *httptest.ResponseRecorder {
		payload, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, "/sales/", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set(idempotencyHeader, "idem-http-1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	first := send()
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", first.Code, first.Body.String())
	}
	created := decodeBody[domain.SaleResponse](t, first)
	if !created.Sale.CostPrice.Equal(decimal.NewFromInt(2700)) {
		t.Fatalf("expected cost 2700 from lot price, got %s", created.Sale.CostPrice)
	}
	if created.Sale.LotID != "lot-seed-saree" {
		t.Fatalf("expected seeded lot, got %q", created.Sale.LotID)
	}

	second := send()
	if second.Code != http.StatusOK {
		t.Fatalf("expected 200 on replay, got %d", second.Code)
	}
	replayed := decodeBody[domain.SaleResponse](t, second)
	if !replayed.Duplicate || replayed.Sale.ID != created.Sale.ID {
		t.Fatalf("expected duplicate of %s, got %+v", created.Sale.ID, replayed)
	}

	rec := do(t, handler, token, http.MethodGet, "/supplier/inventory/lot-seed-saree", nil)
	lot := decodeBody[domain.InventoryLot](t, rec)
	if !lot.QuantityRemaining.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected remaining 10 after one deduction, got %s", lot.QuantityRemaining)
	}
}

func TestRecordSaleInsufficientStockReturns409(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "sales", "sales-pass")

	rec := do(t, handler, token, http.MethodPost, "/sales/", map[string]any{
		"salesperson_name": "Asha",
		"variety_id":       "var-silk-saree",
		"quantity":         "13",
		"selling_price":    "20000",
		"stock_type":       "new_stock",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (%s)", rec.Code, rec.Body.String())
	}
	body := decodeBody[map[string]any](t, rec)
	if body["available"] != "12" {
		t.Fatalf("expected available 12, got %v", body["available"])
	}
}

func TestRecordSaleValidationReturns400WithFields(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "sales", "sales-pass")

	rec := do(t, handler, token, http.MethodPost, "/sales/", map[string]any{
		"variety_id":    "var-denim",
		"quantity":      "1",
		"selling_price": "0",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body := decodeBody[map[string]any](t, rec)
	fields, ok := body["fields"].(map[string]any)
	if !ok || fields["salesperson_name"] == nil {
		t.Fatalf("expected salesperson_name in fields, got %v", body)
	}
}

func TestSalePreviewReportsCost(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "sales", "sales-pass")

	rec := do(t, handler, token, http.MethodPost, "/sales/preview", map[string]any{
		"salesperson_name": "Asha",
		"variety_id":       "var-cotton-print",
		"quantity":         "3",
		"selling_price":    "400",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	preview := decodeBody[map[string]any](t, rec)
	if preview["cost_price"] != "240" || preview["ready"] != true {
		t.Fatalf("expected ready preview with cost 240, got %v", preview)
	}
}

func TestReturnFlowAndMonthlyReport(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "sales", "sales-pass")
	owner := login(t, handler, "owner", "owner-pass")

	rec := do(t, handler, token, http.MethodGet, "/supplier/returns/prefill?supplier=lakshmi%20textiles&variety_id=var-denim", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("prefill: expected 200, got %d", rec.Code)
	}
	prefill := decodeBody[map[string]any](t, rec)
	if prefill["suggested_price"] != "150" || prefill["available"] != "40" {
		t.Fatalf("unexpected prefill %v", prefill)
	}

	rec = do(t, handler, token, http.MethodPost, "/supplier/returns", map[string]any{
		"supplier_name":  "Lakshmi Textiles",
		"variety_id":     "var-denim",
		"quantity":       "3",
		"price_per_item": "50",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("return: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	ret := decodeBody[domain.SupplierReturn](t, rec)
	if !ret.TotalAmount.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("expected total 150, got %s", ret.TotalAmount)
	}

	now := time.Now()
	rec = do(t, handler, token, http.MethodGet, fmt.Sprintf("/reports/returns/monthly/%d/%d", now.Year(), int(now.Month())), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("monthly: expected 200, got %d", rec.Code)
	}
	monthly := decodeBody[domain.MonthlyReturnsReport](t, rec)
	if monthly.ReturnCount != 1 || len(monthly.Suppliers) != 1 {
		t.Fatalf("unexpected monthly report %+v", monthly)
	}

	rec = do(t, handler, token, http.MethodDelete, "/supplier/returns/"+ret.ID, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("salesperson delete: expected 403, got %d", rec.Code)
	}
	rec = do(t, handler, owner, http.MethodDelete, "/supplier/returns/"+ret.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("owner delete: expected 200, got %d", rec.Code)
	}
	rec = do(t, handler, token, http.MethodGet, "/supplier/inventory/lot-seed-denim", nil)
	lot := decodeBody[domain.InventoryLot](t, rec)
	if !lot.QuantityRemaining.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected restored remaining 40, got %s", lot.QuantityRemaining)
	}
}

func TestDailyReportJSONAndCSV(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "sales", "sales-pass")

	for _, sale := range []map[string]any{
		{"salesperson_name": "Asha", "variety_id": "var-cotton-print", "quantity": "3.5", "selling_price": "500"},
		{"salesperson_name": "Asha", "variety_id": "var-silk-saree", "quantity": "2", "selling_price": "3000"},
	} {
		if rec := do(t, handler, token, http.MethodPost, "/sales/", sale); rec.Code != http.StatusCreated {
			t.Fatalf("record sale: %d (%s)", rec.Code, rec.Body.String())
		}
	}

	rec := do(t, handler, token, http.MethodGet, "/reports/daily/"+today(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	report := decodeBody[domain.DailyReport](t, rec)
	if !report.SalesSummary.TotalQuantitySold.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("expected 3 items sold, got %s", report.SalesSummary.TotalQuantitySold)
	}
	if report.SalesSummary.SalesCount != 2 {
		t.Fatalf("expected 2 sales, got %d", report.SalesSummary.SalesCount)
	}

	rec = do(t, handler, token, http.MethodGet, "/reports/daily/"+today()+"?format=csv", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("csv: expected 200, got %d", rec.Code)
	}
	rows, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	found := false
	for _, row := range rows {
		if row[1] == "total_quantity_sold" && row[2] == "3" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected total_quantity_sold row, got %v", rows)
	}
}

func TestDailyReportRejectsBadDate(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "sales", "sales-pass")

	rec := do(t, handler, token, http.MethodGet, "/reports/daily/14-03-2026", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUnknownSaleReturns404(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "sales", "sales-pass")

	rec := do(t, handler, token, http.MethodDelete, "/sales/sale-missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAuditLogsAreOwnerOnly(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	sales := login(t, handler, "sales", "sales-pass")
	owner := login(t, handler, "owner", "owner-pass")

	if rec := do(t, handler, sales, http.MethodGet, "/audit-logs", nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for salesperson, got %d", rec.Code)
	}

	do(t, handler, sales, http.MethodPost, "/sales/", map[string]any{
		"salesperson_name": "Asha", "variety_id": "var-denim", "quantity": "1", "selling_price": "200", "cost_price": "150",
	})
	rec := do(t, handler, owner, http.MethodGet, "/audit-logs", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	logs := decodeBody[[]domain.AuditLog](t, rec)
	if len(logs) != 1 || logs[0].ActorUsername != "sales" {
		t.Fatalf("expected one audit entry by sales, got %+v", logs)
	}
}

func TestOwnerManagesSalespersonAccounts(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	owner := login(t, handler, "owner", "owner-pass")
	sales := login(t, handler, "sales", "sales-pass")

	rec := do(t, handler, sales, http.MethodPost, "/users", UserCreateRequest{Username: "meena", Password: "meena-pass"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected salesperson to be forbidden, got %d", rec.Code)
	}

	rec = do(t, handler, owner, http.MethodPost, "/users", UserCreateRequest{Username: "Meena", Password: "meena-pass"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	created := decodeBody[UserView](t, rec)
	if created.Username != "meena" || created.Role != domain.RoleSalesperson {
		t.Fatalf("unexpected user %+v", created)
	}

	rec = do(t, handler, owner, http.MethodPost, "/users", UserCreateRequest{Username: "meena", Password: "meena-pass"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected duplicate username to be rejected, got %d", rec.Code)
	}

	rec = do(t, handler, owner, http.MethodGet, "/users", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if users := decodeBody[[]UserView](t, rec); len(users) != 3 {
		t.Fatalf("expected 3 users, got %+v", users)
	}
	if rec.Body.Len() > 0 && bytes.Contains(rec.Body.Bytes(), []byte("$2")) {
		t.Fatalf("password hashes must not be listed")
	}

	login(t, handler, "meena", "meena-pass")
}

func TestProfitAndSupplierSummaryRoutes(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "sales", "sales-pass")

	rec := do(t, handler, token, http.MethodPost, "/sales/", map[string]any{
		"salesperson_name": "Asha",
		"variety_id":       "var-cotton-print",
		"quantity":         "2",
		"selling_price":    "200",
		"stock_type":       "old_stock",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = do(t, handler, token, http.MethodGet, "/reports/profit/"+today(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	profit := decodeBody[domain.ProfitReport](t, rec)
	if !profit.TotalProfit.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected profit 40, got %s", profit.TotalProfit)
	}
	if len(profit.ProfitBySalesperson) != 1 || profit.ProfitBySalesperson[0].SalespersonName != "Asha" {
		t.Fatalf("unexpected salesperson rows %+v", profit.ProfitBySalesperson)
	}

	rec = do(t, handler, token, http.MethodGet, "/supplier/summary/"+today(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	summary := decodeBody[domain.SupplierDaySummary](t, rec)
	if len(summary.Suppliers) != 2 {
		t.Fatalf("expected two suppliers, got %+v", summary.Suppliers)
	}
	if summary.Suppliers[0].SupplierName != "Kanchi Weavers" || !summary.Suppliers[0].TotalSupply.Equal(decimal.NewFromInt(16200)) {
		t.Fatalf("unexpected first row %+v", summary.Suppliers[0])
	}
	if summary.Suppliers[1].SupplyRecords != 2 || !summary.Suppliers[1].TotalSupply.Equal(decimal.NewFromInt(16200)) {
		t.Fatalf("unexpected second row %+v", summary.Suppliers[1])
	}
}

func TestMovementsExpensesAndFinancialReport(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	owner := login(t, handler, "owner", "owner-pass")
	sales := login(t, handler, "sales", "sales-pass")

	rec := do(t, handler, sales, http.MethodPost, "/sales/", map[string]any{
		"salesperson_name": "Asha",
		"variety_id":       "var-denim",
		"quantity":         "0.004",
		"selling_price":    "10",
		"stock_type":       "new_stock",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a three-place quantity, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = do(t, handler, sales, http.MethodPost, "/sales/", map[string]any{
		"salesperson_name": "Asha",
		"variety_id":       "var-denim",
		"quantity":         "3",
		"selling_price":    "600",
		"stock_type":       "new_stock",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = do(t, handler, sales, http.MethodGet, "/inventory/movements?variety_id=var-denim", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	movements := decodeBody[[]domain.InventoryMovement](t, rec)
	if len(movements) != 2 {
		t.Fatalf("expected receipt and sale movements, got %+v", movements)
	}
	if movements[0].MovementType != domain.MovementSale || !movements[0].Quantity.Equal(decimal.NewFromInt(-3)) ||
		!movements[0].StockAfter.Equal(decimal.NewFromInt(37)) {
		t.Fatalf("unexpected sale movement %+v", movements[0])
	}
	if movements[1].MovementType != domain.MovementLotReceived || !movements[1].StockAfter.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("unexpected receipt movement %+v", movements[1])
	}

	rec = do(t, handler, sales, http.MethodPost, "/expenses", map[string]any{"category": "party", "amount": "100"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown category, got %d", rec.Code)
	}
	rec = do(t, handler, sales, http.MethodPost, "/expenses", map[string]any{"category": "rent", "amount": "100", "description": "shop rent"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	expense := decodeBody[domain.Expense](t, rec)

	rec = do(t, handler, sales, http.MethodGet, "/expenses/summary/"+today(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	summary := decodeBody[domain.ExpenseSummary](t, rec)
	if summary.ExpenseCount != 1 || !summary.CategoryBreakdown[domain.ExpenseRent].Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected expense summary %+v", summary)
	}

	now, _ := time.Parse(domain.DateLayout, today())
	rec = do(t, handler, sales, http.MethodGet, fmt.Sprintf("/reports/financial/%d/%d", now.Year(), int(now.Month())), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	report := decodeBody[domain.FinancialReport](t, rec)
	// revenue 600, cost 3 x 150
	if !report.TotalRevenue.Equal(decimal.NewFromInt(600)) || !report.TotalProfit.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("unexpected revenue and profit %+v", report)
	}
	if !report.NetIncome.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected net income 50, got %s", report.NetIncome)
	}
	if !report.ProfitMargin.Equal(decimal.NewFromInt(25)) || !report.ExpenseRatio.Equal(decimal.RequireFromString("16.67")) {
		t.Fatalf("unexpected ratios margin=%s expense=%s", report.ProfitMargin, report.ExpenseRatio)
	}

	if rec := do(t, handler, sales, http.MethodDelete, "/expenses/"+expense.ID, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected salesperson delete to be forbidden, got %d", rec.Code)
	}
	if rec := do(t, handler, owner, http.MethodDelete, "/expenses/"+expense.ID, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected owner delete to succeed, got %d", rec.Code)
	}
	if rec := do(t, handler, owner, http.MethodDelete, "/expenses/"+expense.ID, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rec.Code)
	}
}

func TestUpdateVarietyClearsDefaultCost(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	owner := login(t, handler, "owner", "owner-pass")

	rec := do(t, handler, owner, http.MethodPut, "/varieties/var-cotton-print", map[string]any{
		"clear_default_cost_price": true,
		"clear_min_stock_level":    true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	variety := decodeBody[domain.Variety](t, rec)
	if variety.DefaultCostPrice != nil || variety.MinStockLevel != nil {
		t.Fatalf("expected cleared amounts, got %+v", variety)
	}
}
