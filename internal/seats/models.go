package seats

import (
	"fmt"
	"strings"
	"time"

	"seatflow/internal/shared/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Occurrence is one scheduled instance of an event in a hall
type Occurrence struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	EventName string    `gorm:"type:varchar(200);not null" json:"event_name"`
	HallID    string    `gorm:"type:varchar(100);not null;index" json:"hall_id"`
	StartsAt  time.Time `gorm:"not null;index" json:"starts_at"`
	Currency  string    `gorm:"type:varchar(3);not null" json:"currency"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName sets the table name for Occurrence
func (Occurrence) TableName() string {
	return "occurrences"
}

// Ticket is the allocation unit: one row per seat of an occurrence.
// The (Status, HeldBy, HoldExpiresAt) tuple is the only seat state in the system.
type Ticket struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	OccurrenceID  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_ticket_seat,priority:1;index:idx_ticket_occurrence_status,priority:1" json:"occurrence_id"`
	HallID        string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_ticket_seat,priority:2" json:"hall_id"`
	Category      string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_ticket_seat,priority:3" json:"category"`
	Row           string          `gorm:"column:seat_row;type:varchar(20);not null;uniqueIndex:idx_ticket_seat,priority:4" json:"row"`
	Number        string          `gorm:"column:seat_number;type:varchar(20);not null;uniqueIndex:idx_ticket_seat,priority:5" json:"number"`
	Position      int             `gorm:"not null;default:0" json:"position"`
	Status        Status          `gorm:"type:varchar(20);not null;default:'FREE';check:status IN ('FREE','HELD','ORDERED','PAID');index:idx_ticket_occurrence_status,priority:2" json:"status"`
	HeldBy        *string         `gorm:"type:varchar(100);index" json:"held_by,omitempty"`
	HoldExpiresAt *time.Time      `gorm:"index" json:"hold_expires_at,omitempty"`
	OrderID       *uuid.UUID      `gorm:"type:uuid;index" json:"order_id,omitempty"`
	Price         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Currency      string          `gorm:"type:varchar(3);not null" json:"currency"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TableName sets the table name for Ticket
func (Ticket) TableName() string {
	return "tickets"
}

// Key returns the seat key of the ticket
func (t *Ticket) Key() SeatKey {
	return SeatKey{HallID: t.HallID, Category: t.Category, Row: t.Row, Number: t.Number}
}

// EffectiveStatus applies lazy expiry: a HELD ticket whose hold has lapsed reads as FREE
func (t *Ticket) EffectiveStatus(now time.Time) Status {
	if t.Status == StatusHeld && !t.holdActive(now) {
		return StatusFree
	}
	return t.Status
}

// IsHeldBy reports whether identity owns an unexpired hold on the ticket
func (t *Ticket) IsHeldBy(identity string, now time.Time) bool {
	return t.Status == StatusHeld && t.HeldBy != nil && *t.HeldBy == identity && t.holdActive(now)
}

func (t *Ticket) holdActive(now time.Time) bool {
	return t.HoldExpiresAt != nil && t.HoldExpiresAt.After(now)
}

// SeatKey identifies a physical seat
type SeatKey struct {
	HallID   string `json:"hall_id"`
	Category string `json:"category"`
	Row      string `json:"row"`
	Number   string `json:"number"`
}

const seatKeySeparator = "/"

// String renders the key as hall/category/row/number
func (k SeatKey) String() string {
	return strings.Join([]string{k.HallID, k.Category, k.Row, k.Number}, seatKeySeparator)
}

// Validate checks that every part is present and free of separators
func (k SeatKey) Validate() error {
	for _, part := range []string{k.HallID, k.Category, k.Row, k.Number} {
		if strings.TrimSpace(part) == "" || strings.Contains(part, seatKeySeparator) {
			return ErrInvalidSeatKey.WithField("seat", k.String())
		}
	}
	return nil
}

// ParseSeatKey parses the hall/category/row/number form
func ParseSeatKey(s string) (SeatKey, error) {
	parts := strings.Split(s, seatKeySeparator)
	if len(parts) != 4 {
		return SeatKey{}, ErrInvalidSeatKey.WithField("seat", s)
	}
	k := SeatKey{HallID: parts[0], Category: parts[1], Row: parts[2], Number: parts[3]}
	if err := k.Validate(); err != nil {
		return SeatKey{}, err
	}
	return k, nil
}

// ParseSeatKeys parses and de-duplicates a list of seat keys, preserving order
func ParseSeatKeys(raw []string) ([]SeatKey, error) {
	keys := make([]SeatKey, 0, len(raw))
	seen := make(map[SeatKey]struct{}, len(raw))
	for _, s := range raw {
		k, err := ParseSeatKey(s)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[k]; dup {
			return nil, apperr.Validation(apperr.CodeInvalidSeat, fmt.Sprintf("seat %s listed twice", s)).WithField("seat", s)
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys, nil
}

var (
	ErrInvalidSeatKey      = apperr.Validation(apperr.CodeInvalidSeat, "seat key must be hall/category/row/number")
	ErrOccurrenceNotFound  = apperr.NotFound(apperr.CodeOccurrenceNotFound, "occurrence not found")
	ErrSeatNotFound        = apperr.NotFound(apperr.CodeSeatNotFound, "seat does not exist in this occurrence")
	ErrInvalidOccurrenceID = apperr.Validation(apperr.CodeInvalidInput, "invalid occurrence ID")
)

// ParseOccurrenceID parses an occurrence UUID
func ParseOccurrenceID(id string) (uuid.UUID, error) {
	occurrenceID, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, ErrInvalidOccurrenceID
	}
	return occurrenceID, nil
}
