package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SaleStatus: completed → cancelled. Cancelled is terminal.
type SaleStatus string

const (
	SaleCompleted SaleStatus = "completed"
	SaleCancelled SaleStatus = "cancelled"
)

func (s SaleStatus) Valid() bool {
	switch s {
	case SaleCompleted, SaleCancelled:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentTransfer:
		return true
	}
	return false
}

// Sale is created atomically with its items and only ever mutated by
// cancellation. Total always equals the sum of item subtotals.
// UserID is always the session owner; SoldBy is who submitted the sale,
// which differs when an admin sells on a cashier's session.
type Sale struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	SessionID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	UserID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	SoldBy         uuid.UUID       `gorm:"type:uuid;not null"`
	Total          decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	PaymentMethod  PaymentMethod   `gorm:"type:varchar(20);not null;default:'cash'"`
	PaymentAmount  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	ChangeAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Status         SaleStatus      `gorm:"type:varchar(20);not null;default:'completed';index"`
	IdempotencyKey *string         `gorm:"type:varchar(64);uniqueIndex"`
	CreatedAt      time.Time       `gorm:"not null;index"`
	CancelledAt    *time.Time

	Items []SaleItem `gorm:"foreignKey:SaleID"`
}

func (s *Sale) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}

// SaleItem is an immutable price/quantity snapshot. ProductName and UnitPrice
// are copied from the catalog at sale time.
type SaleItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	SaleID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position    int             `gorm:"not null"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductName string          `gorm:"not null"`
	Quantity    decimal.Decimal `gorm:"type:decimal(12,3);not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
}

func (i *SaleItem) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}
