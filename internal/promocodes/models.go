package promocodes

import (
	"strings"
	"time"

	"seatflow/internal/shared/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Promocode is a percentage discount code
type Promocode struct {
	ID              uuid.UUID        `json:"id" gorm:"type:uuid;primaryKey"`
	Code            string           `json:"code" gorm:"uniqueIndex;not null;size:50"`
	DiscountPercent decimal.Decimal  `json:"discount_percent" gorm:"type:numeric(5,2);not null"`
	Active          bool             `json:"active" gorm:"default:true"`
	ExpiresAt       *time.Time       `json:"expires_at,omitempty"`
	MaxTickets      *int             `json:"max_tickets,omitempty"`
	Scopes          []PromocodeScope `json:"scopes,omitempty" gorm:"foreignKey:PromocodeID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time        `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time        `json:"updated_at" gorm:"autoUpdateTime"`
}

// PromocodeScope restricts a promocode to one occurrence. No scope rows means every occurrence.
type PromocodeScope struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	PromocodeID  uuid.UUID `json:"promocode_id" gorm:"type:uuid;not null;uniqueIndex:idx_promocode_scope_unique"`
	OccurrenceID uuid.UUID `json:"occurrence_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_promocode_scope_unique"`
}

func (Promocode) TableName() string {
	return "promocodes"
}

func (PromocodeScope) TableName() string {
	return "promocode_scopes"
}

// InScope reports whether the code applies to the occurrence
func (p *Promocode) InScope(occurrenceID uuid.UUID) bool {
	if len(p.Scopes) == 0 {
		return true
	}
	for _, s := range p.Scopes {
		if s.OccurrenceID == occurrenceID {
			return true
		}
	}
	return false
}

// Rejection reasons, in evaluation order
const (
	ReasonNotFound     = "not_found"
	ReasonExpired      = "expired"
	ReasonExceedsLimit = "exceeds_limit"
	ReasonOutOfScope   = "out_of_scope"
)

var (
	hundred = decimal.NewFromInt(100)

	ErrRejected = apperr.Validation(apperr.CodePromoRejected, "promocode rejected")
)

// Rejected builds the rejection error for reason
func Rejected(reason string) *apperr.Error {
	return ErrRejected.WithField("reason", reason)
}

// RejectionReason extracts the reason of a Rejected error
func RejectionReason(err error) (string, bool) {
	appErr, ok := apperr.As(err)
	if !ok || appErr.Code != apperr.CodePromoRejected {
		return "", false
	}
	reason, ok := appErr.Fields["reason"].(string)
	return reason, ok
}

// Normalize canonicalizes a user supplied code
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ClampPercent bounds a discount to [0, 100]
func ClampPercent(pct decimal.Decimal) decimal.Decimal {
	if pct.IsNegative() {
		return decimal.Zero
	}
	if pct.GreaterThan(hundred) {
		return hundred
	}
	return pct
}
