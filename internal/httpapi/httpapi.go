package httpapi

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"clothpos/backend/internal/domain"
	"clothpos/backend/internal/reconcile"
	"clothpos/backend/internal/service"
	"clothpos/backend/internal/store"
)

const idempotencyHeader = "Idempotency-Key"

type Options struct {
	AllowedOrigin  string
	RateLimitRPS   float64
	RateLimitBurst int
	Logger         *zap.Logger
}

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	logger        *zap.Logger
	limiter       *clientLimiter
	loginLimiter  *clientLimiter
}

func New(svc *service.Service, auth *AuthManager, opts Options) *API {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.RateLimitRPS <= 0 {
		opts.RateLimitRPS = 20
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = 40
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: opts.AllowedOrigin,
		logger:        opts.Logger,
		limiter:       newClientLimiter(rate.Limit(opts.RateLimitRPS), opts.RateLimitBurst),
		loginLimiter:  newClientLimiter(rate.Every(12*time.Second), 5),
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	anyone := []string{domain.RoleOwner, domain.RoleSalesperson}

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/auth/login", a.handleLogin)

	mux.HandleFunc("/varieties", a.requireAuth(a.handleVarieties, anyone...))
	mux.HandleFunc("/varieties/{$}", a.requireAuth(a.handleVarieties, anyone...))
	mux.HandleFunc("/varieties/low-stock", a.requireAuth(a.handleLowStock, anyone...))
	mux.HandleFunc("/varieties/{id}", a.requireAuth(a.handleVarietyActions, anyone...))

	mux.HandleFunc("/supplier/inventory", a.requireAuth(a.handleLots, anyone...))
	mux.HandleFunc("/supplier/inventory/{id}", a.requireAuth(a.handleLotActions, anyone...))
	mux.HandleFunc("/supplier/returns", a.requireAuth(a.handleReturns, anyone...))
	mux.HandleFunc("/supplier/returns/prefill", a.requireAuth(a.handleReturnPrefill, anyone...))
	mux.HandleFunc("/supplier/returns/{id}", a.requireAuth(a.handleReturnActions, anyone...))
	mux.HandleFunc("/supplier/summary/{date}", a.requireAuth(a.handleSupplierSummary, anyone...))

	mux.HandleFunc("/sales", a.requireAuth(a.handleSales, anyone...))
	mux.HandleFunc("/sales/{$}", a.requireAuth(a.handleSales, anyone...))
	mux.HandleFunc("/sales/preview", a.requireAuth(a.handleSalePreview, anyone...))
	mux.HandleFunc("/sales/date/{date}", a.requireAuth(a.handleSalesByDate, anyone...))
	mux.HandleFunc("/sales/{id}", a.requireAuth(a.handleSaleActions, anyone...))

	mux.HandleFunc("/reports/daily/{date}", a.requireAuth(a.handleDailyReport, anyone...))
	mux.HandleFunc("/reports/profit/{date}", a.requireAuth(a.handleProfitReport, anyone...))
	mux.HandleFunc("/reports/returns/monthly/{year}/{month}", a.requireAuth(a.handleMonthlyReturns, anyone...))
	mux.HandleFunc("/reports/financial/{year}/{month}", a.requireAuth(a.handleFinancialReport, anyone...))

	mux.HandleFunc("/inventory/movements", a.requireAuth(a.handleMovements, anyone...))
	mux.HandleFunc("/expenses", a.requireAuth(a.handleExpenses, anyone...))
	mux.HandleFunc("/expenses/{$}", a.requireAuth(a.handleExpenses, anyone...))
	mux.HandleFunc("/expenses/summary/{date}", a.requireAuth(a.handleExpenseSummary, anyone...))
	mux.HandleFunc("/expenses/{id}", a.requireAuth(a.handleExpenseActions, anyone...))

	mux.HandleFunc("/audit-logs", a.requireAuth(a.handleAuditLogs, domain.RoleOwner))
	mux.HandleFunc("/users", a.requireAuth(a.handleUsers, domain.RoleOwner))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleVarieties(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		varieties, err := a.service.ListVarieties(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, varieties)
	case http.MethodPost:
		var req domain.VarietyCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		variety, err := a.service.CreateVariety(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, variety)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleLowStock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	low, err := a.service.LowStock(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, low)
}

func (a *API) handleVarietyActions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		variety, err := a.service.GetVariety(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, variety)
	case http.MethodPut, http.MethodPatch:
		var req domain.VarietyUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		variety, err := a.service.UpdateVariety(r.Context(), id, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, variety)
	case http.MethodDelete:
		if err := a.service.DeleteVariety(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleLots(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		query := r.URL.Query()
		lots, err := a.service.ListLots(r.Context(), domain.LotFilter{
			VarietyID:     query.Get("variety_id"),
			SupplierName:  query.Get("supplier"),
			SupplyDate:    query.Get("date"),
			AvailableOnly: query.Get("available") == "true",
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, lots)
	case http.MethodPost:
		var req domain.LotReceiveRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		lot, err := a.service.ReceiveLot(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, lot)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleLotActions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		lot, err := a.service.GetLot(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, lot)
	case http.MethodDelete:
		if err := a.service.DeleteLot(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSales(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sales, err := a.service.ListSales(r.Context(), parsePositiveLimit(r.URL.Query().Get("limit"), 100, 1000))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sales)
	case http.MethodPost:
		var req domain.SaleCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if key := strings.TrimSpace(r.Header.Get(idempotencyHeader)); key != "" && req.IdempotencyKey == "" {
			req.IdempotencyKey = key
		}
		resp, err := a.service.RecordSale(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		status := http.StatusCreated
		if resp.Duplicate {
			status = http.StatusOK
		}
		writeJSON(w, status, resp)
	default:
		writeMethodNotAllowed(w)
	}
}

type salePreview struct {
	reconcile.SaleFormState
	NeedsLotChoice bool `json:"needs_lot_choice"`
}

func (a *API) handleSalePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req domain.SaleCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	state, err := a.service.PreviewSale(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, salePreview{SaleFormState: state, NeedsLotChoice: state.NeedsLotChoice()})
}

func (a *API) handleSalesByDate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	sales, err := a.service.ListSalesByDate(r.Context(), r.PathValue("date"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sales)
}

func (a *API) handleSaleActions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		sale, err := a.service.GetSale(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sale)
	case http.MethodPut, http.MethodPatch:
		var req domain.SaleUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		sale, err := a.service.UpdateSale(r.Context(), id, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sale)
	case http.MethodDelete:
		sale, err := a.service.DeleteSale(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sale)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleReturns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		filter, err := returnFilterFromQuery(r)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		returns, err := a.service.ListReturns(r.Context(), filter)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, returns)
	case http.MethodPost:
		var req domain.ReturnCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		ret, err := a.service.RecordReturn(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, ret)
	default:
		writeMethodNotAllowed(w)
	}
}

func returnFilterFromQuery(r *http.Request) (domain.ReturnFilter, error) {
	date, year, month, err := periodFromQuery(r)
	return domain.ReturnFilter{ReturnDate: date, Year: year, Month: month}, err
}

// periodFromQuery reads the optional date, year and month query filters.
func periodFromQuery(r *http.Request) (string, int, int, error) {
	query := r.URL.Query()
	var year, month int
	for name, dest := range map[string]*int{"year": &year, "month": &month} {
		raw := strings.TrimSpace(query.Get(name))
		if raw == "" {
			continue
		}
		value, err := strconv.Atoi(raw)
		if err != nil {
			return "", 0, 0, store.NewValidationError(name, "must be a number")
		}
		*dest = value
	}
	return strings.TrimSpace(query.Get("date")), year, month, nil
}

func (a *API) handleReturnPrefill(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	query := r.URL.Query()
	quantity := decimal.Zero
	if raw := strings.TrimSpace(query.Get("quantity")); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			writeServiceError(w, store.NewValidationError("quantity", "must be a number"))
			return
		}
		quantity = parsed
	}
	state, err := a.service.PreviewReturn(r.Context(), query.Get("supplier"), query.Get("variety_id"), quantity)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (a *API) handleReturnActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w)
		return
	}
	ret, err := a.service.DeleteReturn(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ret)
}

func (a *API) handleSupplierSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	summary, err := a.service.SupplierDay(r.Context(), r.PathValue("date"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	report, err := a.service.DailyReport(r.Context(), r.PathValue("date"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if strings.EqualFold(r.URL.Query().Get("format"), "csv") {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", "attachment; filename=daily-report-"+report.Date+".csv")
		w.WriteHeader(http.StatusOK)
		if err := writeDailyReportCSV(w, report); err != nil {
			a.logger.Warn("write daily report csv", zap.String("date", report.Date), zap.Error(err))
		}
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleProfitReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	report, err := a.service.ProfitReport(r.Context(), r.PathValue("date"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleMonthlyReturns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	year, yearErr := strconv.Atoi(r.PathValue("year"))
	month, monthErr := strconv.Atoi(r.PathValue("month"))
	if yearErr != nil || monthErr != nil {
		writeServiceError(w, store.NewValidationError("period", "year and month must be numbers"))
		return
	}
	report, err := a.service.MonthlyReturns(r.Context(), year, month)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleFinancialReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	year, yearErr := strconv.Atoi(r.PathValue("year"))
	month, monthErr := strconv.Atoi(r.PathValue("month"))
	if yearErr != nil || monthErr != nil {
		writeServiceError(w, store.NewValidationError("period", "year and month must be numbers"))
		return
	}
	report, err := a.service.FinancialReport(r.Context(), year, month)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleMovements(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	query := r.URL.Query()
	movements, err := a.service.ListMovements(r.Context(), domain.MovementFilter{
		VarietyID: query.Get("variety_id"),
		LotID:     query.Get("lot_id"),
		From:      strings.TrimSpace(query.Get("from")),
		To:        strings.TrimSpace(query.Get("to")),
		Limit:     parsePositiveLimit(query.Get("limit"), 100, 500),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, movements)
}

func (a *API) handleExpenses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		date, year, month, err := periodFromQuery(r)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		expenses, err := a.service.ListExpenses(r.Context(), domain.ExpenseFilter{ExpenseDate: date, Year: year, Month: month})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, expenses)
	case http.MethodPost:
		var req domain.ExpenseCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		expense, err := a.service.RecordExpense(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, expense)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleExpenseSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	summary, err := a.service.ExpenseSummary(r.Context(), r.PathValue("date"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleExpenseActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w)
		return
	}
	expense, err := a.service.DeleteExpense(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, expense)
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	query := r.URL.Query()
	to := time.Now().UTC()
	from := to.Add(-24 * time.Hour)
	if raw := strings.TrimSpace(query.Get("from")); raw != "" {
		parsed, err := parseTimeParam(raw)
		if err != nil {
			writeServiceError(w, store.NewValidationError("from", "must be RFC3339 or YYYY-MM-DD"))
			return
		}
		from = parsed
	}
	if raw := strings.TrimSpace(query.Get("to")); raw != "" {
		parsed, err := parseTimeParam(raw)
		if err != nil {
			writeServiceError(w, store.NewValidationError("to", "must be RFC3339 or YYYY-MM-DD"))
			return
		}
		to = parsed
	}

	logs, err := a.service.ListAuditLogs(r.Context(), from, to, parsePositiveLimit(query.Get("limit"), 200, 1000))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func parseTimeParam(raw string) (time.Time, error) {
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed, nil
	}
	return time.Parse(domain.DateLayout, raw)
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, a.auth.ListUsers(r.Context()))
	case http.MethodPost:
		var req UserCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		user, err := a.auth.CreateSalesperson(r.Context(), req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, user)
	default:
		writeMethodNotAllowed(w)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Idempotency-Key")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if !a.limiter.Allow(clientKey(r)) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
			return
		}

		startedAt := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(startedAt)),
		)
	})
}

func writeDailyReportCSV(w http.ResponseWriter, report domain.DailyReport) error {
	rows := [][]string{
		{"section", "key", "value"},
		{"summary", "date", report.Date},
		{"supplier", "total_supply", report.SupplierSummary.TotalSupply.StringFixed(2)},
		{"supplier", "total_returns", report.SupplierSummary.TotalReturns.StringFixed(2)},
		{"supplier", "net_amount", report.SupplierSummary.NetAmount.StringFixed(2)},
		{"supplier", "supply_count", strconv.FormatInt(report.SupplierSummary.SupplyCount, 10)},
		{"supplier", "return_count", strconv.FormatInt(report.SupplierSummary.ReturnCount, 10)},
		{"sales", "total_sales_amount", report.SalesSummary.TotalSalesAmount.StringFixed(2)},
		{"sales", "total_profit", report.SalesSummary.TotalProfit.StringFixed(2)},
		{"sales", "total_quantity_sold", report.SalesSummary.TotalQuantitySold.String()},
		{"sales", "sales_count", strconv.FormatInt(report.SalesSummary.SalesCount, 10)},
		{"summary", "net_inventory_value", report.NetInventoryValue.StringFixed(2)},
	}
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

// statusFor maps the error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= 500 {
		writeError(w, status, err)
		return
	}

	body := map[string]any{"detail": err.Error()}
	var verr *store.ValidationError
	if errors.As(err, &verr) {
		body["fields"] = verr.Fields
	}
	var serr *store.InsufficientStockError
	if errors.As(err, &serr) {
		body["requested"] = serr.Requested
		body["available"] = serr.Available
	}
	writeJSON(w, status, body)
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

// writeError hides the cause of 5xx responses from the client.
func writeError(w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	if status >= 500 {
		zap.L().Error("internal error", zap.Int("status", status), zap.Error(err))
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"detail": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
