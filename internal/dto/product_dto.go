package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateProductRequest: any initial stock is booked through the inventory
// ledger as an "add" adjustment.
type CreateProductRequest struct {
	Name       string          `json:"name"        validate:"required,min=1,max=200"`
	Barcode    *string         `json:"barcode"     validate:"omitempty,min=1,max=64"`
	Price      decimal.Decimal `json:"price"       validate:"min=0"`
	Unit       string          `json:"unit"        validate:"omitempty,max=20"`
	CategoryID *uuid.UUID      `json:"category_id"`
	Stock      decimal.Decimal `json:"stock"       validate:"min=0"`
	MinStock   decimal.Decimal `json:"min_stock"   validate:"min=0"`
}

// UpdateProductRequest never touches stock; use the inventory ledger.
type UpdateProductRequest struct {
	Name       string          `json:"name"        validate:"required,min=1,max=200"`
	Barcode    *string         `json:"barcode"     validate:"omitempty,min=1,max=64"`
	Price      decimal.Decimal `json:"price"       validate:"min=0"`
	Unit       string          `json:"unit"        validate:"omitempty,max=20"`
	CategoryID *uuid.UUID      `json:"category_id"`
	MinStock   decimal.Decimal `json:"min_stock"   validate:"min=0"`
}

type ProductResponse struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Barcode    *string         `json:"barcode"`
	Price      decimal.Decimal `json:"price"`
	Unit       string          `json:"unit"`
	CategoryID *string         `json:"category_id"`
	Stock      decimal.Decimal `json:"stock"`
	MinStock   decimal.Decimal `json:"min_stock"`
	Active     bool            `json:"active"`
	LowStock   bool            `json:"low_stock"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
