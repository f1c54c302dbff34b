// Package ledgerclient talks to the ledger API over HTTP. Every call carries a
// timeout and failures surface as *PersistenceError.
package ledgerclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"clothpos/backend/internal/domain"
	"clothpos/backend/internal/reconcile"
	"clothpos/backend/internal/store"
)

const (
	defaultTimeout  = 10 * time.Second
	tokenRefreshGap = time.Minute
	genericDetail   = "ledger service request failed"
)

// PersistenceError reports a failed ledger call. Status is zero when the
// request never got a response.
type PersistenceError struct {
	Status int
	Detail string
	Err    error
}

func (e *PersistenceError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("ledger unreachable: %s", e.Detail)
	}
	return fmt.Sprintf("ledger %d: %s", e.Status, e.Detail)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is lets callers test ledger failures against the store sentinels.
func (e *PersistenceError) Is(target error) bool {
	switch e.Status {
	case http.StatusBadRequest:
		return target == store.ErrValidation
	case http.StatusNotFound:
		return target == store.ErrNotFound
	case http.StatusConflict:
		return target == store.ErrInsufficientStock
	}
	return false
}

type errorBody struct {
	Detail string `json:"detail"`
}

type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

type Client struct {
	http     *resty.Client
	username string
	password string

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetTimeout(cfg.Timeout)

	return &Client{
		http:     httpClient,
		username: cfg.Username,
		password: cfg.Password,
	}
}

// Login exchanges the configured credentials for a bearer token.
func (c *Client) Login(ctx context.Context) error {
	result := new(domain.LoginResponse)
	apiErr := new(errorBody)
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(domain.LoginRequest{Username: c.username, Password: c.password}).
		SetResult(result).
		SetError(apiErr).
		Post("/auth/login")
	if err != nil {
		return &PersistenceError{Detail: err.Error(), Err: err}
	}
	if resp.IsError() {
		return persistenceError(resp.StatusCode(), apiErr)
	}

	expiresAt, err := time.Parse(time.RFC3339, result.ExpiresAt)
	if err != nil {
		expiresAt = time.Now().Add(time.Hour)
	}
	c.mu.Lock()
	c.token = result.AccessToken
	c.expiresAt = expiresAt
	c.mu.Unlock()
	return nil
}

func (c *Client) bearer(ctx context.Context) (string, error) {
	c.mu.Lock()
	token, expiresAt := c.token, c.expiresAt
	c.mu.Unlock()
	if token != "" && time.Until(expiresAt) > tokenRefreshGap {
		return token, nil
	}
	if err := c.Login(ctx); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, nil
}

func (c *Client) forgetToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// call sends an authorized request. A 401 triggers one fresh login and a
// single resend with the same body and headers.
func (c *Client) call(ctx context.Context, method string, path string, body any, result any, headers map[string]string) error {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.bearer(ctx)
		if err != nil {
			return err
		}

		apiErr := new(errorBody)
		req := c.http.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetHeaders(headers).
			SetError(apiErr)
		if body != nil {
			req.SetBody(body)
		}
		if result != nil {
			req.SetResult(result)
		}

		resp, err := req.Execute(method, path)
		if err != nil {
			return &PersistenceError{Detail: err.Error(), Err: err}
		}
		if resp.StatusCode() == http.StatusUnauthorized && attempt == 0 {
			c.forgetToken()
			continue
		}
		if resp.IsError() {
			return persistenceError(resp.StatusCode(), apiErr)
		}
		return nil
	}
	return &PersistenceError{Status: http.StatusUnauthorized, Detail: "ledger rejected credentials"}
}

func persistenceError(status int, body *errorBody) *PersistenceError {
	detail := genericDetail
	if body != nil && strings.TrimSpace(body.Detail) != "" {
		detail = body.Detail
	}
	return &PersistenceError{Status: status, Detail: detail}
}

func (c *Client) ListVarieties(ctx context.Context) ([]domain.Variety, error) {
	var out []domain.Variety
	if err := c.call(ctx, http.MethodGet, "/varieties/", nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) LowStock(ctx context.Context) ([]domain.LowStockVariety, error) {
	var out []domain.LowStockVariety
	if err := c.call(ctx, http.MethodGet, "/varieties/low-stock", nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListLots(ctx context.Context, filter domain.LotFilter) ([]domain.InventoryLot, error) {
	query := url.Values{}
	if filter.VarietyID != "" {
		query.Set("variety_id", filter.VarietyID)
	}
	if filter.SupplierName != "" {
		query.Set("supplier", filter.SupplierName)
	}
	if filter.SupplyDate != "" {
		query.Set("date", filter.SupplyDate)
	}
	if filter.AvailableOnly {
		query.Set("available", "true")
	}
	var out []domain.InventoryLot
	if err := c.call(ctx, http.MethodGet, withQuery("/supplier/inventory", query), nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListReturns(ctx context.Context, filter domain.ReturnFilter) ([]domain.SupplierReturn, error) {
	query := url.Values{}
	if filter.ReturnDate != "" {
		query.Set("date", filter.ReturnDate)
	}
	if filter.Year != 0 {
		query.Set("year", strconv.Itoa(filter.Year))
	}
	if filter.Month != 0 {
		query.Set("month", strconv.Itoa(filter.Month))
	}
	var out []domain.SupplierReturn
	if err := c.call(ctx, http.MethodGet, withQuery("/supplier/returns", query), nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) RecordReturn(ctx context.Context, req domain.ReturnCreateRequest) (domain.SupplierReturn, error) {
	var out domain.SupplierReturn
	if err := c.call(ctx, http.MethodPost, "/supplier/returns", req, &out, nil); err != nil {
		return domain.SupplierReturn{}, err
	}
	return out, nil
}

func (c *Client) DeleteReturn(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/supplier/returns/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) SalesByDate(ctx context.Context, date string) ([]domain.Sale, error) {
	var out []domain.Sale
	if err := c.call(ctx, http.MethodGet, "/sales/date/"+url.PathEscape(date), nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

// RecordSale posts a sale under an idempotency key, generating one when the
// request has none, so a resend cannot deduct stock twice.
func (c *Client) RecordSale(ctx context.Context, req domain.SaleCreateRequest) (domain.SaleResponse, error) {
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.NewString()
	}
	var out domain.SaleResponse
	headers := map[string]string{"Idempotency-Key": req.IdempotencyKey}
	if err := c.call(ctx, http.MethodPost, "/sales/", req, &out, headers); err != nil {
		return domain.SaleResponse{}, err
	}
	return out, nil
}

func (c *Client) UpdateSale(ctx context.Context, id string, req domain.SaleUpdateRequest) (domain.Sale, error) {
	var out domain.Sale
	if err := c.call(ctx, http.MethodPut, "/sales/"+url.PathEscape(id), req, &out, nil); err != nil {
		return domain.Sale{}, err
	}
	return out, nil
}

func (c *Client) DeleteSale(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/sales/"+url.PathEscape(id), nil, nil, nil)
}

// DailyReport returns the report exactly as the ledger serves it.
func (c *Client) DailyReport(ctx context.Context, date string) (domain.DailyReport, error) {
	var out domain.DailyReport
	if err := c.call(ctx, http.MethodGet, "/reports/daily/"+url.PathEscape(date), nil, &out, nil); err != nil {
		return domain.DailyReport{}, err
	}
	return out, nil
}

func (c *Client) MonthlyReturns(ctx context.Context, year int, month int) (domain.MonthlyReturnsReport, error) {
	var out domain.MonthlyReturnsReport
	path := fmt.Sprintf("/reports/returns/monthly/%d/%d", year, month)
	if err := c.call(ctx, http.MethodGet, path, nil, &out, nil); err != nil {
		return domain.MonthlyReturnsReport{}, err
	}
	return out, nil
}

// CorrectedDailySummary fetches the day's report and recomputes the items
// sold from that day's sales and the catalog units, whatever count the
// ledger reported.
func (c *Client) CorrectedDailySummary(ctx context.Context, date string) (domain.DailyReport, error) {
	report, err := c.DailyReport(ctx, date)
	if err != nil {
		return domain.DailyReport{}, err
	}
	sales, err := c.SalesByDate(ctx, date)
	if err != nil {
		return domain.DailyReport{}, err
	}
	varieties, err := c.ListVarieties(ctx)
	if err != nil {
		return domain.DailyReport{}, err
	}
	return reconcile.CorrectDailyReport(report, sales, varieties), nil
}

// IsUnavailable reports whether err means the ledger could not be reached.
func IsUnavailable(err error) bool {
	var perr *PersistenceError
	return errors.As(err, &perr) && perr.Status == 0
}

func withQuery(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}
	return path + "?" + query.Encode()
}
