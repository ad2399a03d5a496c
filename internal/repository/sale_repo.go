package repository

import (
	"context"
	"time"

	"poscore/internal/dto"
	"poscore/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TopProductRow is one aggregated line of the top-products report.
type TopProductRow struct {
	ProductID     uuid.UUID
	ProductName   string
	TotalQuantity decimal.Decimal
	TotalRevenue  decimal.Decimal
}

type SaleRepository interface {
	// CreateTx inserts the sale together with its items.
	CreateTx(tx *gorm.DB, s *model.Sale) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Sale, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*model.Sale, error)
	List(ctx context.Context, filter dto.SaleFilter) ([]model.Sale, error)
	// CompletedTotals returns the total of every completed sale of a session.
	CompletedTotals(ctx context.Context, sessionID uuid.UUID) ([]decimal.Decimal, error)
	TopProducts(ctx context.Context, start, end time.Time, limit int) ([]TopProductRow, error)

	LockByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Sale, error)
	CompletedTotalsTx(tx *gorm.DB, sessionID uuid.UUID) ([]decimal.Decimal, error)
	// MarkCancelledTx moves completed → cancelled and reports false when the
	// sale was not completed any more.
	MarkCancelledTx(tx *gorm.DB, id uuid.UUID, at time.Time) (bool, error)

	DB() *gorm.DB
}

type saleRepo struct{ db *gorm.DB }

func NewSaleRepository(db *gorm.DB) SaleRepository { return &saleRepo{db: db} }

func (r *saleRepo) DB() *gorm.DB { return r.db }

func (r *saleRepo) CreateTx(tx *gorm.DB, s *model.Sale) error {
	return tx.Create(s).Error
}

func (r *saleRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Sale, error) {
	var s model.Sale
	err := r.db.WithContext(ctx).
		Preload("Items", orderedItems).
		Where("id = ?", id).
		First(&s).Error
	return &s, err
}

func (r *saleRepo) FindByIdempotencyKey(ctx context.Context, key string) (*model.Sale, error) {
	var s model.Sale
	err := r.db.WithContext(ctx).
		Preload("Items", orderedItems).
		Where("idempotency_key = ?", key).
		First(&s).Error
	return &s, err
}

func (r *saleRepo) List(ctx context.Context, filter dto.SaleFilter) ([]model.Sale, error) {
	var sales []model.Sale
	q := r.db.WithContext(ctx).Model(&model.Sale{})
	if filter.SessionID != nil {
		q = q.Where("session_id = ?", *filter.SessionID)
	}
	if filter.Start != nil {
		q = q.Where("created_at >= ?", *filter.Start)
	}
	if filter.End != nil {
		q = q.Where("created_at <= ?", *filter.End)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	err := q.Preload("Items", orderedItems).
		Order("created_at DESC").
		Find(&sales).Error
	return sales, err
}

func (r *saleRepo) CompletedTotals(ctx context.Context, sessionID uuid.UUID) ([]decimal.Decimal, error) {
	return r.CompletedTotalsTx(r.db.WithContext(ctx), sessionID)
}

func (r *saleRepo) CompletedTotalsTx(tx *gorm.DB, sessionID uuid.UUID) ([]decimal.Decimal, error) {
	var rows []struct{ Total decimal.Decimal }
	err := tx.Model(&model.Sale{}).
		Select("total").
		Where("session_id = ? AND status = ?", sessionID, model.SaleCompleted).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	totals := make([]decimal.Decimal, len(rows))
	for i, row := range rows {
		totals[i] = row.Total
	}
	return totals, nil
}

// TopProducts groups items of completed sales in [start, end] by product.
// Ties on quantity are broken by product id so the order is stable.
// A non-positive limit means no limit.
func (r *saleRepo) TopProducts(ctx context.Context, start, end time.Time, limit int) ([]TopProductRow, error) {
	var rows []TopProductRow
	q := r.db.WithContext(ctx).
		Table("sale_items AS si").
		Select(`si.product_id AS product_id,
			MAX(si.product_name) AS product_name,
			SUM(si.quantity) AS total_quantity,
			SUM(si.subtotal) AS total_revenue`).
		Joins("JOIN sales s ON s.id = si.sale_id").
		Where("s.status = ? AND s.created_at >= ? AND s.created_at <= ?", model.SaleCompleted, start, end).
		Group("si.product_id").
		Order("total_quantity DESC, si.product_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Scan(&rows).Error
	return rows, err
}

// LockByIDTx row-locks the sale and then loads its items. Items are read in a
// second statement so the lock clause only applies to the sale row.
func (r *saleRepo) LockByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Sale, error) {
	var s model.Sale
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&s).Error; err != nil {
		return &s, err
	}
	err := tx.Where("sale_id = ?", id).Order("position ASC").Find(&s.Items).Error
	return &s, err
}

func (r *saleRepo) MarkCancelledTx(tx *gorm.DB, id uuid.UUID, at time.Time) (bool, error) {
	res := tx.Model(&model.Sale{}).
		Where("id = ? AND status = ?", id, model.SaleCompleted).
		Updates(map[string]interface{}{
			"status":       model.SaleCancelled,
			"cancelled_at": at,
		})
	return res.RowsAffected == 1, res.Error
}

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}
