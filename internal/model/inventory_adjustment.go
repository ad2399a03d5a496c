package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AdjustmentType is the kind of manual stock change.
//   - add:      restock (merchandise received)
//   - positive: physical count found more than recorded
//   - negative: physical count found less than recorded (shrinkage, damage)
type AdjustmentType string

const (
	AdjustmentAdd      AdjustmentType = "add"
	AdjustmentPositive AdjustmentType = "positive"
	AdjustmentNegative AdjustmentType = "negative"
)

func (t AdjustmentType) Valid() bool {
	switch t {
	case AdjustmentAdd, AdjustmentPositive, AdjustmentNegative:
		return true
	}
	return false
}

// InventoryAdjustment is an append-only ledger row. Rows are never updated
// or deleted; PreviousStock and NewStock capture the product's stock around
// the change.
type InventoryAdjustment struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ProductID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	UserID         uuid.UUID       `gorm:"type:uuid;not null"`
	AdjustmentType AdjustmentType  `gorm:"type:varchar(10);not null"`
	Quantity       decimal.Decimal `gorm:"type:decimal(12,3);not null"`
	PreviousStock  decimal.Decimal `gorm:"type:decimal(12,3);not null"`
	NewStock       decimal.Decimal `gorm:"type:decimal(12,3);not null"`
	Reason         *string
	CreatedAt      time.Time `gorm:"not null;index"`

	Product *Product `gorm:"foreignKey:ProductID"`
}

func (a *InventoryAdjustment) BeforeCreate(*gorm.DB) error {
	assignID(&a.ID)
	return nil
}
