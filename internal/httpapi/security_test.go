package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"clothpos/backend/internal/domain"
	"clothpos/backend/internal/service"
	"clothpos/backend/internal/store/memory"
)

func TestMiddlewareSetsSecurityHeaders(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	if got := res.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected X-Content-Type-Options nosniff, got %q", got)
	}
	if got := res.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("expected X-Frame-Options DENY, got %q", got)
	}
	if got := res.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, "Idempotency-Key") {
		t.Fatalf("expected Idempotency-Key to be an allowed header, got %q", got)
	}
}

func TestLoginRateLimitReturns429(t *testing.T) {
	api := newTestAPI(t)
	body, _ := json.Marshal(domain.LoginRequest{Username: "owner", Password: "wrong-pass"})

	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "127.0.0.1:5000"
		res := httptest.NewRecorder()

		api.Handler().ServeHTTP(res, req)

		if i < 5 && res.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d expected 401 before limit, got %d", i+1, res.Code)
		}
		if i == 5 && res.Code != http.StatusTooManyRequests {
			t.Fatalf("attempt 6 expected 429, got %d", res.Code)
		}
	}
}

func TestGlobalRateLimitIsPerClient(t *testing.T) {
	t.Setenv("SEED_OWNER_PASSWORD", "owner-pass")
	t.Setenv("SEED_SALESPERSON_PASSWORD", "sales-pass")
	repo := memory.NewSeeded()
	api := New(service.New(repo, nil, time.Minute, nil), NewAuthManager(t.Context(), "test-secret-key", time.Hour, repo),
		Options{AllowedOrigin: "*", RateLimitRPS: 0.001, RateLimitBurst: 2})
	handler := api.Handler()

	hit := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = addr
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		return res.Code
	}

	for i := 0; i < 2; i++ {
		if code := hit("10.0.0.1:4000"); code != http.StatusOK {
			t.Fatalf("request %d expected 200, got %d", i+1, code)
		}
	}
	if code := hit("10.0.0.1:4001"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", code)
	}
	if code := hit("10.0.0.2:4000"); code != http.StatusOK {
		t.Fatalf("expected other client to be unaffected, got %d", code)
	}
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	writeServiceError(rec, errSecret{})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "pq:") {
		t.Fatalf("internal detail leaked: %s", rec.Body.String())
	}
}

type errSecret struct{}

func (errSecret) Error() string { return "pq: relation sales does not exist" }

func TestUnknownJSONFieldsAreRejected(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "sales", "sales-pass")

	rec := do(t, handler, token, http.MethodPost, "/sales/", map[string]any{
		"salesperson_name": "Asha",
		"variety_id":       "var-denim",
		"quantity":         "1",
		"selling_price":    "200",
		"profit":           "9999",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected client-supplied profit to be rejected, got %d", rec.Code)
	}
}

func TestTamperedTokenIsRejected(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "sales", "sales-pass")

	rec := do(t, handler, token+"x", http.MethodGet, "/varieties/", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
