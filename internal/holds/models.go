package holds

import (
	"time"

	"seatflow/internal/seats"
	"seatflow/internal/shared/apperr"

	"github.com/shopspring/decimal"
)

// Hold is an active soft reservation of one seat for one identity
type Hold struct {
	OccurrenceID string          `json:"occurrence_id"`
	Seat         string          `json:"seat"`
	Category     string          `json:"category"`
	Identity     string          `json:"-"`
	ExpiresAt    time.Time       `json:"expires_at"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
}

func holdFromTicket(t seats.Ticket) Hold {
	h := Hold{
		OccurrenceID: t.OccurrenceID.String(),
		Seat:         t.Key().String(),
		Category:     t.Category,
		Price:        t.Price,
		Currency:     t.Currency,
	}
	if t.HeldBy != nil {
		h.Identity = *t.HeldBy
	}
	if t.HoldExpiresAt != nil {
		h.ExpiresAt = *t.HoldExpiresAt
	}
	return h
}

// Cart lists the active holds of an identity
type Cart struct {
	Holds       []Hold                     `json:"holds"`
	Count       int                        `json:"count"`
	Subtotals   map[string]decimal.Decimal `json:"subtotals"`
	ServiceFees map[string]decimal.Decimal `json:"service_fees"`
	Totals      map[string]decimal.Decimal `json:"totals"`
	ExpiresAt   *time.Time                 `json:"expires_at,omitempty"`
}

// TransferResult reports an identity merge
type TransferResult struct {
	Moved   int `json:"moved"`
	Dropped int `json:"dropped"`
}

var (
	ErrHoldConflict    = apperr.Conflict(apperr.CodeHoldConflict, "seat already taken, pick another")
	ErrHoldExpired     = apperr.Conflict(apperr.CodeHoldExpired, "hold is no longer active")
	ErrMissingIdentity = apperr.Validation(apperr.CodeInvalidInput, "identity is required")
	ErrInvalidTTL      = apperr.Validation(apperr.CodeInvalidInput, "hold ttl out of range")
)
