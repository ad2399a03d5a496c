package router

import (
	"poscore/internal/config"
	"poscore/internal/handler"
	"poscore/internal/middleware"
	"poscore/internal/model"
	"poscore/internal/repository"
	"poscore/internal/service"
	"poscore/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"
)

const apiRequestsPerMinute = 1000

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
//
// rdb may be nil: the product cache and the event queue are then disabled
// and rate limiting falls back to per-process counters.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	if cfg.OTelEnabled {
		r.Use(otelgin.Middleware(cfg.OTelServiceName))
	}
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.APIRateLimiter(rdb, apiRequestsPerMinute))

	// ── Infrastructure ───────────────────────────────────────────────────────
	var (
		events service.EventDispatcher
		cache  service.ProductCache
	)
	if rdb != nil {
		events = worker.NewDispatcher(rdb)
		cache = service.NewRedisProductCache(rdb, cfg.ProductCacheTTL)
	}

	// ── Repositories ─────────────────────────────────────────────────────────
	userRepo := repository.NewUserRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	productRepo := repository.NewProductRepository(db)
	adjustmentRepo := repository.NewInventoryAdjustmentRepository(db)
	sessionRepo := repository.NewCashRegisterRepository(db)
	saleRepo := repository.NewSaleRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	authSvc := service.NewAuthService(userRepo, cfg)
	categorySvc := service.NewCategoryService(categoryRepo)
	productSvc := service.NewProductService(productRepo, adjustmentRepo, categoryRepo, cache)
	inventorySvc := service.NewInventoryService(productRepo, adjustmentRepo, cache, events)
	cashRegisterSvc := service.NewCashRegisterService(sessionRepo, saleRepo, events)
	saleSvc := service.NewSaleService(saleRepo, productRepo, sessionRepo, cache, events)
	reportSvc := service.NewReportService(saleRepo)

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	usersH := handler.NewUsersHandler(authSvc)
	categoriesH := handler.NewCategoriesHandler(categorySvc)
	productsH := handler.NewProductsHandler(productSvc)
	inventoryH := handler.NewInventoryHandler(inventorySvc)
	cashRegistersH := handler.NewCashRegistersHandler(cashRegisterSvc)
	salesH := handler.NewSalesHandler(saleSvc)
	reportsH := handler.NewReportsHandler(reportSvc)
	eventsH := handler.NewEventsHandler(rdb)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb))

	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", middleware.LoginRateLimiter(rdb), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	admin := string(model.RoleAdmin)
	adminOnly := middleware.RequireRole(admin)
	anyRole := middleware.RequireRole(admin, string(model.RoleCashier))

	// Protected routes
	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	{
		users := v1.Group("/users", adminOnly)
		{
			users.POST("", usersH.Create)
			users.GET("", usersH.List)
		}

		v1.GET("/categories", anyRole, categoriesH.List)
		v1.POST("/categories", adminOnly, categoriesH.Create)
		v1.PUT("/categories/:id", adminOnly, categoriesH.Update)

		products := v1.Group("/products")
		{
			products.GET("", anyRole, productsH.List)
			products.GET("/search", anyRole, productsH.Search)
			products.GET("/low-stock", anyRole, productsH.LowStock)
			products.GET("/barcode/:barcode", anyRole, productsH.GetByBarcode)
			products.GET("/:id", anyRole, productsH.Get)
			products.POST("", adminOnly, productsH.Create)
			products.PUT("/:id", adminOnly, productsH.Update)
			products.DELETE("/:id", adminOnly, productsH.Deactivate)
		}

		// Ownership (owner or admin) is checked in the service layer.
		registers := v1.Group("/cash-registers")
		{
			registers.POST("", anyRole, cashRegistersH.Open)
			registers.GET("", adminOnly, cashRegistersH.List)
			registers.GET("/open", anyRole, cashRegistersH.GetOpen)
			registers.GET("/:id", anyRole, cashRegistersH.Get)
			registers.POST("/:id/close", anyRole, cashRegistersH.Close)
			registers.GET("/:id/summary", anyRole, cashRegistersH.Summary)
		}

		sales := v1.Group("/sales")
		{
			sales.POST("", anyRole, salesH.Create)
			sales.GET("", anyRole, salesH.List)
			sales.GET("/:id", anyRole, salesH.Get)
			sales.POST("/:id/cancel", adminOnly, salesH.Cancel)
		}

		reports := v1.Group("/reports", adminOnly)
		{
			reports.GET("/sales", reportsH.Sales)
			reports.GET("/top-products", reportsH.TopProducts)
		}

		inventory := v1.Group("/inventory", adminOnly)
		{
			inventory.POST("/adjustments", inventoryH.CreateAdjustment)
			inventory.GET("/adjustments", inventoryH.ListAdjustments)
		}

		events := v1.Group("/events", adminOnly)
		{
			events.GET("/dead-letters", eventsH.DeadLetters)
			events.POST("/dead-letters/replay", eventsH.ReplayDeadLetters)
		}
	}

	// Swagger UI is only served outside production.
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
