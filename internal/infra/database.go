package infra

import (
	"fmt"
	"time"

	"poscore/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PoolConfig sizes the database/sql connection pool.
type PoolConfig struct {
	MaxOpenConns int
	MaxIdleConns int
}

// GormConfig is shared by the server, the seeding tool and the tests so that
// every connection translates driver errors (gorm.ErrDuplicatedKey) and
// stamps timestamps in UTC.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}
}

// NewDatabase establishes a GORM connection backed by pgx and migrates the
// schema.
func NewDatabase(dsn string, pool PoolConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), GormConfig())
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if pool.MaxOpenConns <= 0 {
		pool.MaxOpenConns = 25
	}
	if pool.MaxIdleConns <= 0 {
		pool.MaxIdleConns = 5
	}
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate runs AutoMigrate for every model and then applies the idempotent
// patches AutoMigrate cannot express. It runs on both PostgreSQL and SQLite.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.User{},
		&model.Category{},
		&model.Product{},
		&model.CashRegisterSession{},
		&model.Sale{},
		&model.SaleItem{},
		&model.InventoryAdjustment{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

// applySchemaPatches runs idempotent DDL statements that GORM AutoMigrate cannot
// fully handle on its own. Each statement uses IF NOT EXISTS semantics so
// re-running on an already-patched DB is safe.
func applySchemaPatches(db *gorm.DB) error {
	patches := []string{
		// One open session per user. Concurrent opens race on this index,
		// not on a read-then-insert check.
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_cash_register_sessions_open_user
		    ON cash_register_sessions (user_id) WHERE status = 'open'`,
		// Reports and summaries only ever read completed sales by date or session.
		`CREATE INDEX IF NOT EXISTS idx_sales_completed_created_at
		    ON sales (created_at) WHERE status = 'completed'`,
		`CREATE INDEX IF NOT EXISTS idx_inventory_adjustments_product_created
		    ON inventory_adjustments (product_id, created_at)`,
	}

	for _, sql := range patches {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", sql[:min(len(sql), 60)], err)
		}
	}
	return nil
}
