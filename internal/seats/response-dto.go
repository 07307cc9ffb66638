package seats

import (
	"time"

	"github.com/shopspring/decimal"
)

// AvailabilityView is the per-seat status of an occurrence as of GeneratedAt
type AvailabilityView struct {
	OccurrenceID string             `json:"occurrence_id"`
	EventName    string             `json:"event_name"`
	HallID       string             `json:"hall_id"`
	StartsAt     time.Time          `json:"starts_at"`
	Currency     string             `json:"currency"`
	Seats        []SeatAvailability `json:"seats"`
	Summary      map[Status]int     `json:"summary"`
	GeneratedAt  time.Time          `json:"generated_at"`
}

// SeatAvailability is one seat in the availability view
type SeatAvailability struct {
	Seat          string          `json:"seat"`
	Category      string          `json:"category"`
	Row           string          `json:"row"`
	Number        string          `json:"number"`
	Status        Status          `json:"status"`
	Price         decimal.Decimal `json:"price"`
	Mine          bool            `json:"mine,omitempty"`
	HoldExpiresAt *time.Time      `json:"hold_expires_at,omitempty"`
}

// StatusOf returns the status reported for a seat key string
func (v *AvailabilityView) StatusOf(seat string) (Status, bool) {
	for _, s := range v.Seats {
		if s.Seat == seat {
			return s.Status, true
		}
	}
	return "", false
}

// OccurrenceResponse is returned after seat map generation
type OccurrenceResponse struct {
	Occurrence  *Occurrence `json:"occurrence"`
	TicketCount int         `json:"ticket_count"`
}

// snapshot is the cached raw ticket state of an occurrence. Lazy expiry is
// applied after reading it, never before caching.
type snapshot struct {
	Occurrence Occurrence    `json:"occurrence"`
	Tickets    []ticketState `json:"tickets"`
}

type ticketState struct {
	Key           SeatKey         `json:"key"`
	Position      int             `json:"position"`
	Status        Status          `json:"status"`
	HeldBy        string          `json:"held_by,omitempty"`
	HoldExpiresAt *time.Time      `json:"hold_expires_at,omitempty"`
	Price         decimal.Decimal `json:"price"`
}
