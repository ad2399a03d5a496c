package worker

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Domain event types published after a transaction commits.
const (
	EventSaleCompleted      = "sale.completed"
	EventSaleCancelled      = "sale.cancelled"
	EventInventoryAdjusted  = "inventory.adjusted"
	EventCashRegisterOpened = "cash_register.opened"
	EventCashRegisterClosed = "cash_register.closed"
	EventStockLow           = "stock.low"
)

// Event is the envelope written to the queue and then to the broker. ID is
// assigned at enqueue time so consumers can deduplicate redeliveries.
type Event struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

type SaleEventPayload struct {
	SaleID        string          `json:"sale_id"`
	SessionID     string          `json:"session_id"`
	UserID        string          `json:"user_id"`
	SoldBy        string          `json:"sold_by"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"payment_method"`
	ItemCount     int             `json:"item_count"`
}

type StockLowPayload struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Stock     decimal.Decimal `json:"stock"`
	MinStock  decimal.Decimal `json:"min_stock"`
}

type AdjustmentEventPayload struct {
	AdjustmentID   string          `json:"adjustment_id"`
	ProductID      string          `json:"product_id"`
	AdjustmentType string          `json:"adjustment_type"`
	Quantity       decimal.Decimal `json:"quantity"`
	PreviousStock  decimal.Decimal `json:"previous_stock"`
	NewStock       decimal.Decimal `json:"new_stock"`
}

type SessionEventPayload struct {
	SessionID     string           `json:"session_id"`
	UserID        string           `json:"user_id"`
	OpeningAmount decimal.Decimal  `json:"opening_amount"`
	ExpectedCash  *decimal.Decimal `json:"expected_cash,omitempty"`
	ClosingAmount *decimal.Decimal `json:"closing_amount,omitempty"`
	Difference    *decimal.Decimal `json:"difference,omitempty"`
}
