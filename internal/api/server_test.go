package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/events"
	applog "fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/services"
	"fintrack/internal/storage/memory"
)

type testServer struct {
	app    *fiber.App
	events *events.Recorder
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.New(
		core.Category{ID: "food", Kind: core.Expense, Labels: map[string]string{"en": "Food", "it": "Cibo"}},
		core.Category{ID: "salary", Kind: core.Income, Labels: map[string]string{"en": "Salary"}},
	)
	rec := &events.Recorder{}
	budgets := services.NewBudgetService(store, rec)
	dashboard := services.NewDashboardService(store, cache.NewLRUCache[services.Dashboard](16, time.Minute))

	app := New(Services{
		Transactions: services.NewTransactionService(store, rec,
			services.WithInlineReconcile(budgets),
			services.WithInvalidator(dashboard)),
		Debts:      services.NewDebtService(store, rec),
		Budgets:    budgets,
		Goals:      services.NewGoalService(store, rec),
		Dashboard:  dashboard,
		Categories: store,
	}, Config{
		AppName: "fintrack-test",
		Auth:    AuthConfig{AllowDevHeader: true},
		Logger:  applog.New(applog.Config{Level: slog.LevelError, Format: "text", Output: io.Discard}),
	})
	return &testServer{app: app, events: rec}
}

func (s *testServer) do(t *testing.T, method, path, owner string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if owner != "" {
		req.Header.Set(HeaderOwnerID, owner)
	}

	resp, err := s.app.Test(req)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func cents(t *testing.T, v any) int64 {
	t.Helper()
	m, ok := v.(map[string]any)
	require.True(t, ok, "not a money object: %v", v)
	return int64(m["cents"].(float64))
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, resp.Header.Get(HeaderRequestID))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func TestHealth_NotReady(t *testing.T) {
	app := New(Services{}, Config{
		Logger: applog.New(applog.Config{Level: slog.LevelError, Output: io.Discard}),
		Ready:  func(context.Context) error { return errors.New("db down") },
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))

	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestAuth(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodGet, "/v1/debts", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", body["code"])

	app := New(Services{}, Config{
		Logger: applog.New(applog.Config{Level: slog.LevelError, Output: io.Discard}),
	})
	req := httptest.NewRequest(http.MethodGet, "/v1/debts", nil)
	req.Header.Set(HeaderOwnerID, "u1")
	r, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, r.StatusCode, "dev header is ignored unless enabled")
}

func TestBearerAuth(t *testing.T) {
	verify := func(_ context.Context, token string) (string, error) {
		if token == "good" {
			return "user_123", nil
		}
		return "", errors.New("bad token")
	}
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(applog.New(applog.Config{Output: io.Discard}))})
	app.Get("/me", bearerAuth(verify), func(c fiber.Ctx) error {
		return c.SendString(ownerID(c))
	})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"rejected token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer good", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
			if tt.want == http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				assert.Equal(t, "user_123", string(body))
			}
		})
	}
}

func TestDebtLifecycle(t *testing.T) {
	s := newTestServer(t)

	resp, debt := s.do(t, http.MethodPost, "/v1/debts", "u1", map[string]any{
		"type":          "i_owe",
		"creditor_name": "Bank",
		"amount":        "100.00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := debt["id"].(string)
	assert.Equal(t, int64(10000), cents(t, debt["remaining"]))
	assert.Equal(t, "active", debt["status"])

	resp, debt = s.do(t, http.MethodPost, "/v1/debts/"+id+"/payments", "u1", map[string]any{"amount": "40"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(6000), cents(t, debt["remaining"]))

	resp, body := s.do(t, http.MethodPost, "/v1/debts/"+id+"/payments", "u1", map[string]any{"amount": "70"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "OVERPAYMENT", body["code"])

	resp, _ = s.do(t, http.MethodGet, "/v1/debts/"+id, "u2", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "other owners cannot see the debt")

	resp, _ = s.do(t, http.MethodGet, "/v1/debts/summary", "u1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "summary is not captured by /:id")

	resp, debt = s.do(t, http.MethodPost, "/v1/debts/"+id+"/settle", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, debt["is_settled"])
	assert.Equal(t, int64(0), cents(t, debt["remaining"]))

	resp, body = s.do(t, http.MethodPost, "/v1/debts/"+id+"/cancel", "u1", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "DEBT_CLOSED", body["code"])

	resp, summary := s.do(t, http.MethodGet, "/v1/debts/summary", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), summary["settled"])
	assert.Equal(t, int64(0), cents(t, summary["total_i_owe"]))
}

func TestCreateDebt_Validation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"bad amount", map[string]any{"type": "i_owe", "amount": "ten"}, http.StatusBadRequest},
		{"negative amount", map[string]any{"type": "i_owe", "amount": "-5"}, http.StatusBadRequest},
		{"unknown type", map[string]any{"type": "gift", "amount": "5"}, http.StatusBadRequest},
		{"not json", "{", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := s.do(t, http.MethodPost, "/v1/debts", "u1", tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
			assert.NotEmpty(t, body["code"])
		})
	}
}

func TestBudgetFollowsTransactions(t *testing.T) {
	s := newTestServer(t)

	resp, budget := s.do(t, http.MethodPost, "/v1/budgets", "u1", map[string]any{
		"category_id": "food",
		"allocated":   "50.00",
		"period":      "monthly",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := budget["id"].(string)

	resp, tx := s.do(t, http.MethodPost, "/v1/transactions", "u1", map[string]any{
		"category_id": "food",
		"kind":        "expense",
		"amount":      "60.00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, budget = s.do(t, http.MethodGet, "/v1/budgets/"+id, "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(6000), cents(t, budget["spent"]))
	assert.Equal(t, int64(-1000), cents(t, budget["remaining"]))
	assert.Equal(t, true, budget["exceeded"])

	resp, spend := s.do(t, http.MethodGet, "/v1/budgets/monthly-spend", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(6000), cents(t, spend["total"]))

	resp, _ = s.do(t, http.MethodDelete, "/v1/transactions/"+tx["id"].(string), "u1", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, result := s.do(t, http.MethodPost, "/v1/budgets/"+id+"/reconcile", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	inner := result["budget"].(map[string]any)
	assert.Equal(t, int64(0), cents(t, inner["spent"]))
	assert.Equal(t, false, inner["exceeded"])
}

func TestTransactions_ListFilters(t *testing.T) {
	s := newTestServer(t)
	for _, body := range []map[string]any{
		{"category_id": "food", "kind": "expense", "amount": "12.50", "occurred_at": "2025-01-10T12:00:00Z"},
		{"category_id": "salary", "kind": "income", "amount": "2000", "occurred_at": "2025-01-01T09:00:00Z"},
		{"kind": "expense", "amount": "3", "occurred_at": "2025-02-03T09:00:00Z"},
	} {
		resp, _ := s.do(t, http.MethodPost, "/v1/transactions", "u1", body)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"all", "", 3},
		{"by kind", "?kind=expense", 2},
		{"by category", "?category=food", 1},
		{"uncategorized", "?category=", 1},
		{"date range", "?from=2025-01-01&to=2025-01-31", 2},
		{"inclusive bare date", "?from=2025-01-10&to=2025-01-10", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := s.do(t, http.MethodGet, "/v1/transactions"+tt.query, "u1", nil)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			list, _ := body["transactions"].([]any)
			assert.Len(t, list, tt.want)
		})
	}

	resp, _ := s.do(t, http.MethodGet, "/v1/transactions?kind=gift", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = s.do(t, http.MethodGet, "/v1/transactions?from=yesterday", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTransactions_UpdateKeepsKind(t *testing.T) {
	s := newTestServer(t)
	resp, tx := s.do(t, http.MethodPost, "/v1/transactions", "u1", map[string]any{
		"category_id": "food", "kind": "expense", "amount": "10",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	path := "/v1/transactions/" + tx["id"].(string)

	resp, tx = s.do(t, http.MethodPut, path, "u1", map[string]any{
		"category_id": "food", "kind": "expense", "amount": "15", "description": "groceries",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(1500), cents(t, tx["amount"]))
	assert.Equal(t, "groceries", tx["description"])

	resp, _ = s.do(t, http.MethodPut, path, "u1", map[string]any{"kind": "income", "amount": "15"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, path, "u2", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGoalContribution(t *testing.T) {
	s := newTestServer(t)

	resp, goal := s.do(t, http.MethodPost, "/v1/goals", "u1", map[string]any{
		"name": "Bike", "target": "100", "current": "80",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	path := "/v1/goals/" + goal["id"].(string) + "/contributions"

	resp, body := s.do(t, http.MethodPost, path, "u1", map[string]any{"amount": "50"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(2000), cents(t, body["applied"]))
	assert.Equal(t, int64(3000), cents(t, body["excess"]))
	assert.Equal(t, true, body["just_achieved"])
	g := body["goal"].(map[string]any)
	assert.Equal(t, int64(10000), cents(t, g["current"]))
	assert.Equal(t, "100", g["progress"])

	resp, body = s.do(t, http.MethodPost, path, "u1", map[string]any{"amount": "5"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["just_achieved"])
	assert.Len(t, s.events.OfType(events.GoalAchieved), 1)
}

func TestCategories(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.do(t, http.MethodPost, "/v1/categories", "u1", map[string]any{
		"id": "pets", "kind": "expense", "labels": map[string]string{"en": "Pets"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := s.do(t, http.MethodGet, "/v1/categories?locale=it", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := body["categories"].([]any)
	require.Len(t, list, 3)
	labels := map[string]any{}
	for _, raw := range list {
		c := raw.(map[string]any)
		labels[c["id"].(string)] = c["label"]
	}
	assert.Equal(t, "Cibo", labels["food"])
	assert.Equal(t, "Pets", labels["pets"])

	resp, body = s.do(t, http.MethodGet, "/v1/categories", "u2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["categories"], 2, "owner categories stay private")

	resp, _ = s.do(t, http.MethodPost, "/v1/categories", "u1", map[string]any{"id": "x", "kind": "transfer"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDashboard(t *testing.T) {
	s := newTestServer(t)
	resp, _ := s.do(t, http.MethodPost, "/v1/transactions", "u1", map[string]any{
		"category_id": "food", "kind": "expense", "amount": "20",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := s.do(t, http.MethodGet, "/v1/dashboard?months=3&top=5", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["months"], 3)
	assert.Len(t, body["weekly"], 7)
	assert.Equal(t, int64(2000), cents(t, body["monthly_spend"]))
	cats := body["categories"].([]any)
	require.Len(t, cats, 1)
	assert.Equal(t, "food", cats[0].(map[string]any)["category_id"])

	resp, _ = s.do(t, http.MethodGet, "/v1/dashboard?months=-1", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = s.do(t, http.MethodGet, "/v1/dashboard?months=1000", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestToAPIError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		code string
	}{
		{"validation", &core.ValidationError{Field: "amount", Err: core.ErrInvalidAmount}, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"not found", &core.NotFoundError{Kind: core.KindDebt, ID: "d1"}, http.StatusNotFound, "NOT_FOUND"},
		{"conflict", core.ErrConflict, http.StatusConflict, "CONFLICT"},
		{"overpayment", &core.OverpaymentError{Requested: core.Cents(5), Remaining: core.Cents(1)}, http.StatusUnprocessableEntity, "OVERPAYMENT"},
		{"fiber", fiber.ErrMethodNotAllowed, http.StatusMethodNotAllowed, "HTTP_ERROR"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toAPIError(tt.err)
			assert.Equal(t, tt.want, got.StatusCode)
			assert.Equal(t, tt.code, got.Code)
		})
	}
}

func TestRateLimitPerOwner(t *testing.T) {
	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: 2})
	t.Cleanup(limiter.Stop)
	store := memory.New()
	app := New(Services{
		Debts: services.NewDebtService(store, nil),
	}, Config{
		Auth:        AuthConfig{AllowDevHeader: true},
		Logger:      applog.New(applog.Config{Level: slog.LevelError, Output: io.Discard}),
		RateLimiter: limiter,
	})

	get := func(owner string) int {
		req := httptest.NewRequest(http.MethodGet, "/v1/debts", nil)
		req.Header.Set(HeaderOwnerID, owner)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, get("u1"))
	assert.Equal(t, http.StatusOK, get("u1"))
	assert.Equal(t, http.StatusTooManyRequests, get("u1"))
	assert.Equal(t, http.StatusOK, get("u2"))
}

func TestSuspiciousRequestsAreBlocked(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.do(t, http.MethodGet, "/.env", "", nil)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
