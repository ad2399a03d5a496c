package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a sellable catalog entry. Stock is a non-negative decimal so that
// weighed goods (kg, litro) and counted goods share the same column.
// Rows are never deleted: Active=false is the soft-delete path.
type Product struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Name       string          `gorm:"index;not null"`
	Barcode    *string         `gorm:"uniqueIndex"`
	Price      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Unit       string          `gorm:"type:varchar(20);not null;default:'pieza'"`
	CategoryID *uuid.UUID      `gorm:"type:uuid;index"`
	Stock      decimal.Decimal `gorm:"type:decimal(12,3);not null;default:0;check:chk_products_stock_non_negative,stock >= 0"`
	MinStock   decimal.Decimal `gorm:"type:decimal(12,3);not null;default:0"`
	Active     bool            `gorm:"not null;default:true"`
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Category *Category `gorm:"foreignKey:CategoryID"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// IsLowStock reports whether stock sits at or below the configured minimum.
func (p *Product) IsLowStock() bool {
	return p.Stock.LessThanOrEqual(p.MinStock)
}

func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
