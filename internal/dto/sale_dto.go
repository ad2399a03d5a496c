package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type SaleItemRequest struct {
	ProductID uuid.UUID       `json:"product_id" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity"   validate:"gt=0"`
}

type CreateSaleRequest struct {
	SessionID     uuid.UUID         `json:"session_id"     validate:"required"`
	PaymentMethod string            `json:"payment_method" validate:"required,oneof=cash card transfer"`
	PaymentAmount decimal.Decimal   `json:"payment_amount" validate:"min=0"`
	Items         []SaleItemRequest `json:"items"          validate:"required,min=1,dive"`
	// IdempotencyKey lets a client resubmit after a timeout without
	// creating a second sale.
	IdempotencyKey *string `json:"idempotency_key" validate:"omitempty,min=8,max=64"`
}

type SaleFilter struct {
	SessionID *uuid.UUID
	Start     *time.Time
	End       *time.Time
	Status    string
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type SaleItemResponse struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type SaleResponse struct {
	ID            string             `json:"id"`
	SessionID     string             `json:"session_id"`
	UserID        string             `json:"user_id"`
	SoldBy        string             `json:"sold_by"`
	Items         []SaleItemResponse `json:"items"`
	Total         decimal.Decimal    `json:"total"`
	PaymentMethod string             `json:"payment_method"`
	PaymentAmount decimal.Decimal    `json:"payment_amount"`
	ChangeAmount  decimal.Decimal    `json:"change_amount"`
	Status        string             `json:"status"`
	CreatedAt     time.Time          `json:"created_at"`
	CancelledAt   *time.Time         `json:"cancelled_at"`
}
