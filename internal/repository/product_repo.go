package repository

import (
	"context"
	"strings"

	"poscore/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProductRepository defines the data access contract for products.
// Methods suffixed Tx run on the caller's transaction; the rest use the pool.
type ProductRepository interface {
	Create(ctx context.Context, p *model.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	// FindByBarcode only returns active products.
	FindByBarcode(ctx context.Context, barcode string) (*model.Product, error)
	List(ctx context.Context, activeOnly bool) ([]model.Product, error)
	Search(ctx context.Context, query string, limit int) ([]model.Product, error)
	ListLowStock(ctx context.Context) ([]model.Product, error)
	Update(ctx context.Context, p *model.Product) error
	Deactivate(ctx context.Context, id uuid.UUID) error

	CreateTx(tx *gorm.DB, p *model.Product) error
	// LockByIDsTx loads and row-locks products in id order so that concurrent
	// multi-item sales always acquire locks in the same sequence.
	LockByIDsTx(tx *gorm.DB, ids []uuid.UUID) ([]model.Product, error)
	LockByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Product, error)
	// DecrementStockTx subtracts qty only if the product is active and has
	// enough stock. It reports false when the guard rejected the update.
	DecrementStockTx(tx *gorm.DB, id uuid.UUID, qty decimal.Decimal) (bool, error)
	IncrementStockTx(tx *gorm.DB, id uuid.UUID, qty decimal.Decimal) error
	// SetStockTx writes next only if the row still holds prev.
	SetStockTx(tx *gorm.DB, id uuid.UUID, prev, next decimal.Decimal) (bool, error)

	// DB exposes the underlying *gorm.DB so services can open transactions.
	DB() *gorm.DB
}

type productRepo struct{ db *gorm.DB }

func NewProductRepository(db *gorm.DB) ProductRepository { return &productRepo{db: db} }

func (r *productRepo) DB() *gorm.DB { return r.db }

func (r *productRepo) Create(ctx context.Context, p *model.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *productRepo) CreateTx(tx *gorm.DB, p *model.Product) error {
	return tx.Create(p).Error
}

func (r *productRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	return &p, err
}

func (r *productRepo) FindByBarcode(ctx context.Context, barcode string) (*model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).Where("barcode = ? AND active = ?", barcode, true).First(&p).Error
	return &p, err
}

func (r *productRepo) List(ctx context.Context, activeOnly bool) ([]model.Product, error) {
	var products []model.Product
	q := r.db.WithContext(ctx).Model(&model.Product{})
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	err := q.Order("name ASC").Find(&products).Error
	return products, err
}

func (r *productRepo) Search(ctx context.Context, query string, limit int) ([]model.Product, error) {
	var products []model.Product
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Where("(LOWER(name) LIKE ? ESCAPE '\\' OR LOWER(barcode) LIKE ? ESCAPE '\\')", pattern, pattern).
		Order("name ASC").
		Limit(limit).
		Find(&products).Error
	return products, err
}

func (r *productRepo) ListLowStock(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).
		Where("active = ? AND stock <= min_stock", true).
		Order("stock ASC, name ASC").
		Find(&products).Error
	return products, err
}

// Update writes catalog fields only. Stock is deliberately absent from the
// column list.
func (r *productRepo) Update(ctx context.Context, p *model.Product) error {
	return r.db.WithContext(ctx).Model(p).
		Select("name", "barcode", "price", "unit", "category_id", "min_stock", "updated_at").
		Updates(p).Error
}

func (r *productRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&model.Product{}).Where("id = ?", id).Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *productRepo) LockByIDsTx(tx *gorm.DB, ids []uuid.UUID) ([]model.Product, error) {
	var products []model.Product
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id").
		Find(&products).Error
	return products, err
}

func (r *productRepo) LockByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Product, error) {
	var p model.Product
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&p).Error
	return &p, err
}

func (r *productRepo) DecrementStockTx(tx *gorm.DB, id uuid.UUID, qty decimal.Decimal) (bool, error) {
	res := tx.Model(&model.Product{}).
		Where("id = ? AND active = ? AND stock >= ?", id, true, qty).
		Update("stock", gorm.Expr("stock - ?", qty))
	return res.RowsAffected == 1, res.Error
}

func (r *productRepo) IncrementStockTx(tx *gorm.DB, id uuid.UUID, qty decimal.Decimal) error {
	res := tx.Model(&model.Product{}).
		Where("id = ?", id).
		Update("stock", gorm.Expr("stock + ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *productRepo) SetStockTx(tx *gorm.DB, id uuid.UUID, prev, next decimal.Decimal) (bool, error) {
	res := tx.Model(&model.Product{}).
		Where("id = ? AND stock = ?", id, prev).
		Update("stock", next)
	return res.RowsAffected == 1, res.Error
}

// escapeLike neutralises LIKE wildcards typed by the user.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
