package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderResponse is returned when an order is created
type OrderResponse struct {
	OrderID      string          `json:"order_id"`
	Reference    string          `json:"reference"`
	Status       Status          `json:"status"`
	OccurrenceID string          `json:"occurrence_id"`
	Seats        []string        `json:"seats"`
	Quote        Quote           `json:"quote"`
	PaymentURL   string          `json:"payment_url"`
	Total        decimal.Decimal `json:"total"`
	CreatedAt    time.Time       `json:"created_at"`
}

// OrderListResponse pages orders of an account
type OrderListResponse struct {
	Orders     []Order `json:"orders"`
	TotalCount int64   `json:"total_count"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
}
