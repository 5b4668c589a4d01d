package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"ledger/internal/core"
	"ledger/internal/gateway"
	"ledger/internal/gateway/flatstore"
	"ledger/internal/log"
	"ledger/internal/repository"
	"ledger/internal/services"
	"ledger/internal/session"
	"ledger/internal/stats"
)

type apiClient struct {
	t       *testing.T
	handler http.Handler
	token   string
}

func newAPI(t *testing.T, ready func(context.Context) error) *apiClient {
	t.Helper()
	gw := gateway.NewLazy(flatstore.New(t.TempDir(), nil))
	t.Cleanup(func() { gw.Close() })

	repos := repository.New(gw)
	logger := log.Discard()
	sessions := session.NewManager(10, time.Hour)
	auth := services.NewAuthService(repos, sessions, services.WithLogger(logger)).WithHashCost(bcrypt.MinCost)
	ledger := services.NewLedgerService(repos, services.WithLogger(logger))

	srv := NewServer(Config{RateLimitPerMinute: 1000, Ready: ready}, auth, ledger, logger)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return &apiClient{t: t, handler: srv.Handler}
}

func (c *apiClient) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (c *apiClient) login(email string) {
	c.t.Helper()
	rec := c.do(http.MethodPost, "/api/register", map[string]string{"email": email, "password": "password123"})
	require.Equal(c.t, http.StatusCreated, rec.Code, rec.Body.String())
	c.token = decode[sessionResponse](c.t, rec).Token
}

func TestHealthAndReadiness(t *testing.T) {
	c := newAPI(t, nil)
	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/readyz", nil).Code)

	down := newAPI(t, func(context.Context) error { return errors.New("disk gone") })
	assert.Equal(t, http.StatusServiceUnavailable, down.do(http.MethodGet, "/readyz", nil).Code)
}

func TestRegisterLoginLogout(t *testing.T) {
	c := newAPI(t, nil)

	rec := c.do(http.MethodPost, "/api/register", map[string]string{"email": "not-an-email", "password": "short"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "email", body.Fields["Email"])
	assert.Equal(t, "min", body.Fields["Password"])

	c.login("a@example.com")

	rec = c.do(http.MethodPost, "/api/register", map[string]string{"email": "a@example.com", "password": "password123"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = c.do(http.MethodPost, "/api/login", map[string]string{"email": "a@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = c.do(http.MethodPost, "/api/login", map[string]string{"email": "a@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusNoContent, c.do(http.MethodPost, "/api/logout", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/api/expenses", nil).Code)
}

func TestDeleteAccountEndpoint(t *testing.T) {
	c := newAPI(t, nil)
	c.login("a@example.com")
	rec := c.do(http.MethodPost, "/api/expenses", map[string]any{"description": "Lunch", "category": "Food", "amount": 12})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodDelete, "/api/me", nil).Code)
	assert.Equal(t, http.StatusNoContent, c.do(http.MethodDelete, "/api/me?confirm=true", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/api/expenses", nil).Code)

	rec = c.do(http.MethodPost, "/api/login", map[string]string{"email": "a@example.com", "password": "password123"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// The email is free again.
	c.token = ""
	c.login("a@example.com")
	list := decode[[]core.Expense](t, c.do(http.MethodGet, "/api/expenses", nil))
	assert.Empty(t, list)
}

func TestUnknownFieldsAreRejected(t *testing.T) {
	c := newAPI(t, nil)
	rec := c.do(http.MethodPost, "/api/login", map[string]string{"email": "a@example.com", "password": "x", "admin": "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIncome(t *testing.T) {
	c := newAPI(t, nil)
	c.login("a@example.com")

	rec := c.do(http.MethodPut, "/api/me/income", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodPut, "/api/me/income", map[string]any{"monthly_income": 1800.5})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(http.MethodGet, "/api/me/income", nil)
	assert.Equal(t, 1800.5, decode[map[string]float64](t, rec)["monthly_income"])
}

func TestExpenseEndpoints(t *testing.T) {
	c := newAPI(t, nil)
	c.login("a@example.com")

	rec := c.do(http.MethodPost, "/api/expenses", map[string]any{"description": "x", "category": "Food", "amount": -1})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "gt", decode[errorBody](t, rec).Fields["Amount"])

	rec = c.do(http.MethodPost, "/api/expenses", map[string]any{
		"description": "Phone", "category": "Tech", "amount": 300,
		"has_installments": true, "installments": 3, "paid_installments": 4,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodPost, "/api/expenses", map[string]any{
		"description": "Phone", "category": "Tech", "amount": 300,
		"has_installments": true, "installments": 3,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	phone := decode[core.Expense](t, rec)

	rec = c.do(http.MethodPost, "/api/expenses", map[string]any{"description": "Lunch", "category": "Food", "amount": 12})
	require.Equal(t, http.StatusCreated, rec.Code)
	lunch := decode[core.Expense](t, rec)
	assert.Equal(t, 1, lunch.Installments)

	list := decode[[]core.Expense](t, c.do(http.MethodGet, "/api/expenses", nil))
	require.Len(t, list, 2)

	rec = c.do(http.MethodPost, "/api/expenses/"+itoa(phone.ID)+"/pay", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[core.Expense](t, rec).PaidInstallments)

	rec = c.do(http.MethodPost, "/api/expenses/"+itoa(lunch.ID)+"/pay", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	active := decode[[]core.Expense](t, c.do(http.MethodGet, "/api/expenses/installments", nil))
	require.Len(t, active, 1)
	assert.Equal(t, phone.ID, active[0].ID)

	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodDelete, "/api/expenses/abc", nil).Code)
	assert.Equal(t, http.StatusNoContent, c.do(http.MethodDelete, "/api/expenses/"+itoa(lunch.ID), nil).Code)
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodDelete, "/api/expenses/"+itoa(lunch.ID), nil).Code)

	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodDelete, "/api/expenses", nil).Code)
	rec = c.do(http.MethodDelete, "/api/expenses?confirm=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[map[string]int64](t, rec)["deleted"])

	audits := decode[[]core.Audit](t, c.do(http.MethodGet, "/api/audits?limit=2", nil))
	assert.Len(t, audits, 2)
}

func TestOtherUsersCannotTouchExpenses(t *testing.T) {
	c := newAPI(t, nil)
	c.login("a@example.com")
	rec := c.do(http.MethodPost, "/api/expenses", map[string]any{"description": "x", "category": "Food", "amount": 1})
	require.Equal(t, http.StatusCreated, rec.Code)
	e := decode[core.Expense](t, rec)

	c.login("b@example.com")
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodDelete, "/api/expenses/"+itoa(e.ID), nil).Code)
}

func TestCategoryEndpoints(t *testing.T) {
	c := newAPI(t, nil)
	c.login("a@example.com")

	rec := c.do(http.MethodPost, "/api/categories", map[string]any{"name": "Travel", "color": "blue"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodPost, "/api/categories", map[string]any{"name": "Travel", "color": "#00ff00"})
	require.Equal(t, http.StatusCreated, rec.Code)
	travel := decode[core.Category](t, rec)

	rec = c.do(http.MethodPost, "/api/categories", map[string]any{"name": "TRAVEL"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = c.do(http.MethodPatch, "/api/categories/"+itoa(travel.ID), map[string]any{"icon": "plane"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "plane", decode[core.Category](t, rec).Icon)

	assert.Equal(t, http.StatusNoContent, c.do(http.MethodDelete, "/api/categories/"+itoa(travel.ID), nil).Code)
	assert.Empty(t, decode[[]core.Category](t, c.do(http.MethodGet, "/api/categories", nil)))
	assert.Len(t, decode[[]core.Category](t, c.do(http.MethodGet, "/api/categories?all=true", nil)), 1)
}

func TestStatsAndDashboardEndpoints(t *testing.T) {
	c := newAPI(t, nil)
	c.login("a@example.com")
	rec := c.do(http.MethodPost, "/api/expenses", map[string]any{"description": "Lunch", "category": "Food", "amount": 30})
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodGet, "/api/stats?period=decade", nil).Code)

	rec = c.do(http.MethodGet, "/api/stats?period=week", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sum := decode[stats.Summary](t, rec)
	assert.Equal(t, stats.PeriodWeek, sum.Period)
	assert.Len(t, sum.Points, 7)
	assert.InDelta(t, 30, sum.Total, 1e-9)

	rec = c.do(http.MethodGet, "/api/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	d := decode[services.Dashboard](t, rec)
	assert.InDelta(t, 30, d.MonthExpenses, 1e-9)
	assert.InDelta(t, -30, d.Balance, 1e-9)
}

func TestSecurityMiddlewareApplies(t *testing.T) {
	c := newAPI(t, nil)
	rec := c.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodGet, "/api/.env", nil).Code)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
