package promocodes

import (
	"time"

	"github.com/shopspring/decimal"
)

type UpsertPromocodeRequest struct {
	Code            string          `json:"code" binding:"required,min=2,max=50"`
	DiscountPercent decimal.Decimal `json:"discount_percent" binding:"required"`
	Active          *bool           `json:"active"`
	ExpiresAt       *time.Time      `json:"expires_at"`
	MaxTickets      *int            `json:"max_tickets" binding:"omitempty,min=1"`
	OccurrenceIDs   []string        `json:"occurrence_ids" binding:"omitempty,dive,uuid"`
}

type ValidateQuery struct {
	OccurrenceID string `form:"occurrence_id" binding:"required,uuid"`
	Tickets      int    `form:"tickets" binding:"required,min=1"`
}
