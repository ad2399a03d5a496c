package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type OpenCashRegisterRequest struct {
	OpeningAmount decimal.Decimal  `json:"opening_amount" validate:"min=0"`
	ExchangeRate  *decimal.Decimal `json:"exchange_rate"`
}

type CloseCashRegisterRequest struct {
	// ClosingAmount is the physical cash counted in the drawer.
	ClosingAmount decimal.Decimal `json:"closing_amount" validate:"min=0"`
}

type SessionFilter struct {
	UserID *uuid.UUID
	Start  *time.Time
	End    *time.Time
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type CashRegisterSessionResponse struct {
	ID            string           `json:"id"`
	UserID        string           `json:"user_id"`
	Status        string           `json:"status"`
	OpeningAmount decimal.Decimal  `json:"opening_amount"`
	ExchangeRate  *decimal.Decimal `json:"exchange_rate"`
	OpenedAt      time.Time        `json:"opened_at"`
	ClosingAmount *decimal.Decimal `json:"closing_amount"`
	ClosedAt      *time.Time       `json:"closed_at"`
}

// CashRegisterSummaryResponse is the reconciliation of a session. TotalCash
// and Difference stay null while the session is open.
type CashRegisterSummaryResponse struct {
	Session           CashRegisterSessionResponse `json:"session"`
	TotalSales        decimal.Decimal             `json:"total_sales"`
	TotalTransactions int64                       `json:"total_transactions"`
	ExpectedCash      decimal.Decimal             `json:"expected_cash"`
	TotalCash         *decimal.Decimal            `json:"total_cash"`
	Difference        *decimal.Decimal            `json:"difference"`
}
