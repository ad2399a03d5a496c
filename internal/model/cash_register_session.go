package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SessionStatus is the lifecycle state of a cash register session.
// Transitions: open → closed. Closed is terminal.
type SessionStatus string

const (
	SessionOpen   SessionStatus = "open"
	SessionClosed SessionStatus = "closed"
)

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionOpen, SessionClosed:
		return true
	}
	return false
}

// CashRegisterSession is one user's cash drawer shift. At most one row per
// user may be open; the partial unique index ux_cash_register_sessions_open_user
// enforces it (see infra.Migrate).
type CashRegisterSession struct {
	ID            uuid.UUID        `gorm:"type:uuid;primaryKey"`
	UserID        uuid.UUID        `gorm:"type:uuid;not null;index"`
	Status        SessionStatus    `gorm:"type:varchar(10);not null;default:'open'"`
	OpeningAmount decimal.Decimal  `gorm:"type:decimal(12,2);not null"`
	ExchangeRate  *decimal.Decimal `gorm:"type:decimal(12,4)"`
	OpenedAt      time.Time        `gorm:"not null;index"`
	// ClosingAmount and ClosedAt are written exactly once, on close.
	ClosingAmount *decimal.Decimal `gorm:"type:decimal(12,2)"`
	ClosedAt      *time.Time

	User *User `gorm:"foreignKey:UserID"`
}

func (s *CashRegisterSession) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}
