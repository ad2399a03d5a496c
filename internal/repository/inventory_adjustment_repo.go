package repository

import (
	"context"

	"poscore/internal/dto"
	"poscore/internal/model"

	"gorm.io/gorm"
)

// InventoryAdjustmentRepository is append-only: there is no Update or Delete.
type InventoryAdjustmentRepository interface {
	CreateTx(tx *gorm.DB, a *model.InventoryAdjustment) error
	List(ctx context.Context, filter dto.AdjustmentFilter) ([]model.InventoryAdjustment, error)
}

type inventoryAdjustmentRepo struct{ db *gorm.DB }

func NewInventoryAdjustmentRepository(db *gorm.DB) InventoryAdjustmentRepository {
	return &inventoryAdjustmentRepo{db: db}
}

func (r *inventoryAdjustmentRepo) CreateTx(tx *gorm.DB, a *model.InventoryAdjustment) error {
	return tx.Create(a).Error
}

func (r *inventoryAdjustmentRepo) List(ctx context.Context, filter dto.AdjustmentFilter) ([]model.InventoryAdjustment, error) {
	var adjustments []model.InventoryAdjustment
	q := r.db.WithContext(ctx).Model(&model.InventoryAdjustment{})
	if filter.ProductID != nil {
		q = q.Where("product_id = ?", *filter.ProductID)
	}
	if filter.Start != nil {
		q = q.Where("created_at >= ?", *filter.Start)
	}
	if filter.End != nil {
		q = q.Where("created_at <= ?", *filter.End)
	}
	err := q.Order("created_at DESC").Find(&adjustments).Error
	return adjustments, err
}
