package seats

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateOccurrenceRequest generates an occurrence with its full seat map
type CreateOccurrenceRequest struct {
	EventName  string           `json:"event_name" binding:"required,max=200"`
	HallID     string           `json:"hall_id" binding:"required,max=100,excludes=/"`
	StartsAt   time.Time        `json:"starts_at" binding:"required"`
	Currency   string           `json:"currency" binding:"omitempty,len=3,alpha"`
	Categories []CategoryLayout `json:"categories" binding:"required,min=1,dive"`
}

// CategoryLayout describes a block of rows sharing one price
type CategoryLayout struct {
	Name        string          `json:"name" binding:"required,max=100,excludes=/"`
	Price       decimal.Decimal `json:"price"`
	RowStart    string          `json:"row_start" binding:"required"`
	RowEnd      string          `json:"row_end" binding:"required"`
	SeatsPerRow int             `json:"seats_per_row" binding:"required,min=1,max=500"`
}
