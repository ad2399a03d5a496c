package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreateAdjustmentRequest struct {
	ProductID      uuid.UUID       `json:"product_id"      validate:"required"`
	AdjustmentType string          `json:"adjustment_type" validate:"required,oneof=add positive negative"`
	Quantity       decimal.Decimal `json:"quantity"        validate:"gt=0"`
	Reason         *string         `json:"reason"          validate:"omitempty,max=255"`
}

type AdjustmentFilter struct {
	ProductID *uuid.UUID
	Start     *time.Time
	End       *time.Time
}

type AdjustmentResponse struct {
	ID             string          `json:"id"`
	ProductID      string          `json:"product_id"`
	UserID         string          `json:"user_id"`
	AdjustmentType string          `json:"adjustment_type"`
	Quantity       decimal.Decimal `json:"quantity"`
	PreviousStock  decimal.Decimal `json:"previous_stock"`
	NewStock       decimal.Decimal `json:"new_stock"`
	Reason         *string         `json:"reason"`
	CreatedAt      time.Time       `json:"created_at"`
}
