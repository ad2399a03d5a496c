package service_test

import (
	"context"
	"sync"
	"testing"

	"poscore/internal/dto"
	"poscore/internal/infra"
	"poscore/internal/model"
	"poscore/internal/repository"
	"poscore/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ── Test environment ─────────────────────────────────────────────────────────
// Every test gets its own in-memory SQLite database. A single connection keeps
// the schema alive and serialises transactions the way row locks would.

type testEnv struct {
	db     *gorm.DB
	events *recordingDispatcher
	cache  *memoryCache

	products    service.ProductService
	sales       service.SaleService
	registers   service.CashRegisterService
	inventory   service.InventoryService
	reports     service.ReportService
	categories  service.CategoryService
	productRepo repository.ProductRepository
	saleRepo    repository.SaleRepository
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), infra.GormConfig())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, infra.Migrate(db))
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	events := &recordingDispatcher{}
	cache := newMemoryCache()

	productRepo := repository.NewProductRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	adjustmentRepo := repository.NewInventoryAdjustmentRepository(db)
	sessionRepo := repository.NewCashRegisterRepository(db)
	saleRepo := repository.NewSaleRepository(db)

	return &testEnv{
		db:          db,
		events:      events,
		cache:       cache,
		products:    service.NewProductService(productRepo, adjustmentRepo, categoryRepo, cache),
		sales:       service.NewSaleService(saleRepo, productRepo, sessionRepo, cache, events),
		registers:   service.NewCashRegisterService(sessionRepo, saleRepo, events),
		inventory:   service.NewInventoryService(productRepo, adjustmentRepo, cache, events),
		reports:     service.NewReportService(saleRepo),
		categories:  service.NewCategoryService(categoryRepo),
		productRepo: productRepo,
		saleRepo:    saleRepo,
	}
}

func (e *testEnv) user(t *testing.T, username string, role model.Role) service.Actor {
	t.Helper()
	u := &model.User{Username: username, FullName: username, PasswordHash: "x", Role: role, Active: true}
	require.NoError(t, e.db.Create(u).Error)
	return service.Actor{UserID: u.ID, Role: role}
}

func (e *testEnv) product(t *testing.T, name, price, stock string) *dto.ProductResponse {
	t.Helper()
	barcode := "bc-" + name
	p, err := e.products.Create(context.Background(), uuid.New(), dto.CreateProductRequest{
		Name:     name,
		Barcode:  &barcode,
		Price:    dec(price),
		Stock:    dec(stock),
		MinStock: dec("1"),
	})
	require.NoError(t, err)
	return p
}

func (e *testEnv) openSession(t *testing.T, actor service.Actor, opening string) *dto.CashRegisterSessionResponse {
	t.Helper()
	s, err := e.registers.Open(context.Background(), actor.UserID, dto.OpenCashRegisterRequest{OpeningAmount: dec(opening)})
	require.NoError(t, err)
	return s
}

func (e *testEnv) sell(t *testing.T, actor service.Actor, sessionID string, paid string, items ...dto.SaleItemRequest) *dto.SaleResponse {
	t.Helper()
	sale, err := e.sales.Create(context.Background(), actor, saleRequest(sessionID, paid, items...))
	require.NoError(t, err)
	return sale
}

func (e *testEnv) stockOf(t *testing.T, productID string) decimal.Decimal {
	t.Helper()
	p, err := e.products.GetByID(context.Background(), uuid.MustParse(productID))
	require.NoError(t, err)
	return p.Stock
}

func saleRequest(sessionID, paid string, items ...dto.SaleItemRequest) dto.CreateSaleRequest {
	return dto.CreateSaleRequest{
		SessionID:     uuid.MustParse(sessionID),
		PaymentMethod: "cash",
		PaymentAmount: dec(paid),
		Items:         items,
	}
}

func item(productID, qty string) dto.SaleItemRequest {
	return dto.SaleItemRequest{ProductID: uuid.MustParse(productID), Quantity: dec(qty)}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func mustUUID(s string) uuid.UUID { return uuid.MustParse(s) }

// ── Fakes ────────────────────────────────────────────────────────────────────

type recordedEvent struct {
	Type    string
	Payload interface{}
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (d *recordingDispatcher) EnqueueEvent(_ context.Context, eventType string, payload interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, recordedEvent{Type: eventType, Payload: payload})
	return nil
}

func (d *recordingDispatcher) count(eventType string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, e := range d.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

type memoryCache struct {
	mu          sync.Mutex
	entries     map[string]dto.ProductResponse
	gens        map[string]int64
	invalidated []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]dto.ProductResponse), gens: make(map[string]int64)}
}

func (c *memoryCache) Get(_ context.Context, barcode string) (*dto.ProductResponse, int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.entries[barcode]
	if !ok {
		return nil, c.gens[barcode], false
	}
	return &p, c.gens[barcode], true
}

func (c *memoryCache) Set(_ context.Context, p *dto.ProductResponse, gen int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p.Barcode != nil && c.gens[*p.Barcode] == gen {
		c.entries[*p.Barcode] = *p
	}
}

func (c *memoryCache) Invalidate(_ context.Context, barcodes ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range barcodes {
		c.gens[b]++
		delete(c.entries, b)
		c.invalidated = append(c.invalidated, b)
	}
}

func (c *memoryCache) has(barcode string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[barcode]
	return ok
}
