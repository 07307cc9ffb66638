package delivery

import (
	"encoding/json"
	"time"

	"seatflow/internal/orders"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Request asks the delivery worker to render and send the tickets of a paid order
type Request struct {
	OrderID      uuid.UUID       `json:"order_id"`
	Reference    string          `json:"reference"`
	Email        string          `json:"email"`
	OccurrenceID uuid.UUID       `json:"occurrence_id"`
	Currency     string          `json:"currency"`
	Total        decimal.Decimal `json:"total"`
	Tickets      []TicketLine    `json:"tickets"`
	PaidAt       time.Time       `json:"paid_at"`
	RequestedAt  time.Time       `json:"requested_at"`
}

// TicketLine is one seat printed on the delivered document
type TicketLine struct {
	TicketID uuid.UUID       `json:"ticket_id"`
	Seat     string          `json:"seat"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
}

// NewRequest builds the delivery request of a paid order. Items must be loaded.
func NewRequest(order *orders.Order, now time.Time) *Request {
	req := &Request{
		OrderID:      order.ID,
		Reference:    order.Reference,
		Email:        order.Email,
		OccurrenceID: order.OccurrenceID,
		Currency:     order.Currency,
		Total:        order.Total,
		Tickets:      make([]TicketLine, 0, len(order.Items)),
		RequestedAt:  now,
	}
	if order.PaidAt != nil {
		req.PaidAt = *order.PaidAt
	}
	for _, item := range order.Items {
		req.Tickets = append(req.Tickets, TicketLine{
			TicketID: item.TicketID,
			Seat:     item.Seat,
			Category: item.Category,
			Price:    item.Price,
		})
	}
	return req
}

// PartitionKey keeps every message of one order on the same partition
func (r *Request) PartitionKey() string {
	return r.OrderID.String()
}

func (r *Request) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// ParseRequest decodes a message payload
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}
