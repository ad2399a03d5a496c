package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"poscore/internal/config"
	"poscore/internal/dto"
	"poscore/internal/infra"
	"poscore/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func init() { gin.SetMode(gin.TestMode) }

type apiClient struct {
	t      *testing.T
	engine *gin.Engine
}

func (a apiClient) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func (a apiClient) login(username, password string) string {
	a.t.Helper()
	w := a.do(http.MethodPost, "/v1/auth/login", "", dto.LoginRequest{Username: username, Password: password})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	var resp dto.LoginResponse
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.AccessToken
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func newTestAPI(t *testing.T) (apiClient, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), infra.GormConfig())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, infra.Migrate(db))

	for _, u := range []struct {
		name string
		role model.Role
	}{{"admin", model.RoleAdmin}, {"caja1", model.RoleCashier}, {"caja2", model.RoleCashier}} {
		hash, err := bcrypt.GenerateFromPassword([]byte("clave123"), bcrypt.MinCost)
		require.NoError(t, err)
		require.NoError(t, db.Create(&model.User{Username: u.name, FullName: u.name, PasswordHash: string(hash), Role: u.role, Active: true}).Error)
	}

	cfg := &config.Config{Env: "test", JWTSecret: "router-secret", JWTExpirationHours: 1, JWTRefreshHours: 2}
	return apiClient{t: t, engine: New(cfg, db, nil)}, db
}

func TestHealth(t *testing.T) {
	api, _ := newTestAPI(t)
	w := api.do(http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"db":"connected","redis":"disabled"}`, w.Body.String())
}

func TestSaleLifecycle(t *testing.T) {
	api, _ := newTestAPI(t)
	admin := api.login("admin", "clave123")
	cashier := api.login("caja1", "clave123")
	other := api.login("caja2", "clave123")

	// Catalog writes are admin-only.
	barcode := "7790001"
	newProduct := dto.CreateProductRequest{Name: "Yerba 1kg", Barcode: &barcode, Price: decimal.RequireFromString("2.50"), Stock: decimal.NewFromInt(10), MinStock: decimal.NewFromInt(2)}
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPost, "/v1/products", cashier, newProduct).Code)
	w := api.do(http.MethodPost, "/v1/products", admin, newProduct)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var product dto.ProductResponse
	decode(t, w, &product)

	w = api.do(http.MethodGet, "/v1/products/barcode/7790001", cashier, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodPost, "/v1/cash-registers", cashier, map[string]interface{}{"opening_amount": "100.00"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var session dto.CashRegisterSessionResponse
	decode(t, w, &session)

	w = api.do(http.MethodPost, "/v1/cash-registers", cashier, map[string]interface{}{"opening_amount": "5"})
	assert.Equal(t, http.StatusConflict, w.Code)

	sale := map[string]interface{}{
		"session_id":     session.ID,
		"payment_method": "cash",
		"payment_amount": "50",
		"items":          []map[string]interface{}{{"product_id": product.ID, "quantity": "4"}},
	}
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPost, "/v1/sales", other, sale).Code)

	w = api.do(http.MethodPost, "/v1/sales", cashier, sale)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created dto.SaleResponse
	decode(t, w, &created)
	assert.True(t, created.Total.Equal(decimal.NewFromInt(10)))
	assert.True(t, created.ChangeAmount.Equal(decimal.NewFromInt(40)))

	sale["items"] = []map[string]interface{}{{"product_id": product.ID, "quantity": "7"}}
	w = api.do(http.MethodPost, "/v1/sales", cashier, sale)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "insufficient_stock")

	sale["items"] = []map[string]interface{}{}
	assert.Equal(t, http.StatusUnprocessableEntity, api.do(http.MethodPost, "/v1/sales", cashier, sale).Code)

	cancelPath := "/v1/sales/" + created.ID + "/cancel"
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPost, cancelPath, cashier, nil).Code)
	assert.Equal(t, http.StatusNoContent, api.do(http.MethodPost, cancelPath, admin, nil).Code)
	assert.Equal(t, http.StatusConflict, api.do(http.MethodPost, cancelPath, admin, nil).Code)

	w = api.do(http.MethodGet, "/v1/products/"+product.ID, cashier, nil)
	decode(t, w, &product)
	assert.True(t, product.Stock.Equal(decimal.NewFromInt(10)))

	w = api.do(http.MethodPost, "/v1/sales", cashier, map[string]interface{}{
		"session_id":     session.ID,
		"payment_method": "card",
		"payment_amount": "5",
		"items":          []map[string]interface{}{{"product_id": product.ID, "quantity": "2"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	closePath := "/v1/cash-registers/" + session.ID + "/close"
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPost, closePath, other, map[string]string{"closing_amount": "105"}).Code)

	w = api.do(http.MethodGet, "/v1/cash-registers/"+session.ID+"/summary", cashier, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"difference":null`)

	w = api.do(http.MethodPost, closePath, cashier, map[string]string{"closing_amount": "105"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var summary dto.CashRegisterSummaryResponse
	decode(t, w, &summary)
	assert.True(t, summary.ExpectedCash.Equal(decimal.NewFromInt(105)))
	assert.Equal(t, int64(1), summary.TotalTransactions)
	require.NotNil(t, summary.Difference)
	assert.True(t, summary.Difference.IsZero())

	assert.Equal(t, http.StatusConflict, api.do(http.MethodPost, closePath, cashier, map[string]string{"closing_amount": "1"}).Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/v1/cash-registers/open", cashier, nil).Code)
}

func TestReportsRequireAdminAndValidDates(t *testing.T) {
	api, _ := newTestAPI(t)
	admin := api.login("admin", "clave123")
	cashier := api.login("caja1", "clave123")

	assert.Equal(t, http.StatusForbidden, api.do(http.MethodGet, "/v1/reports/sales?start=2026-01-01&end=2026-01-31", cashier, nil).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/v1/reports/sales?start=enero&end=2026-01-31", admin, nil).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/v1/reports/sales?start=2026-01-01", admin, nil).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, api.do(http.MethodGet, "/v1/reports/sales?start=2026-02-01&end=2026-01-01", admin, nil).Code)

	w := api.do(http.MethodGet, "/v1/reports/sales?start=2026-01-01&end=2026-01-31", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var report dto.SalesReportResponse
	decode(t, w, &report)
	assert.Zero(t, report.TotalTransactions)
	assert.True(t, report.AverageSale.IsZero())

	assert.Equal(t, http.StatusUnprocessableEntity, api.do(http.MethodGet, "/v1/reports/top-products?start=2026-01-01&end=2026-01-31&limit=0", admin, nil).Code)
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/v1/reports/top-products?start=2026-01-01&end=2026-01-31", admin, nil).Code)
}

func TestDeadLetterRoutesWithoutRedis(t *testing.T) {
	api, _ := newTestAPI(t)
	admin := api.login("admin", "clave123")
	cashier := api.login("caja1", "clave123")

	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPost, "/v1/events/dead-letters/replay", cashier, nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, api.do(http.MethodGet, "/v1/events/dead-letters", admin, nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, api.do(http.MethodPost, "/v1/events/dead-letters/replay", admin, nil).Code)
}

func TestAuthErrors(t *testing.T) {
	api, _ := newTestAPI(t)

	w := api.do(http.MethodPost, "/v1/auth/login", "", dto.LoginRequest{Username: "admin", Password: "incorrecta"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/v1/sales", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/v1/sales", "no-es-un-token", nil).Code)
}

func TestInventoryAdjustmentRoutes(t *testing.T) {
	api, _ := newTestAPI(t)
	admin := api.login("admin", "clave123")

	w := api.do(http.MethodPost, "/v1/products", admin, dto.CreateProductRequest{Name: "Azúcar", Price: decimal.NewFromInt(1), Stock: decimal.NewFromInt(2)})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var product dto.ProductResponse
	decode(t, w, &product)

	w = api.do(http.MethodPost, "/v1/inventory/adjustments", admin, map[string]interface{}{
		"product_id": product.ID, "adjustment_type": "negative", "quantity": "3",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(http.MethodPost, "/v1/inventory/adjustments", admin, map[string]interface{}{
		"product_id": product.ID, "adjustment_type": "shrink", "quantity": "1",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = api.do(http.MethodGet, "/v1/inventory/adjustments?product_id="+product.ID, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rows []dto.AdjustmentResponse
	decode(t, w, &rows)
	assert.Len(t, rows, 1)
}
