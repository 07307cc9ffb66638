package orders

import (
	"time"

	"seatflow/internal/shared/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order is a priced claim over a set of tickets of one occurrence
type Order struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Reference        string          `gorm:"type:varchar(32);uniqueIndex;not null" json:"reference"`
	AccountID        uuid.UUID       `gorm:"type:uuid;index;not null" json:"account_id"`
	Email            string          `gorm:"type:varchar(255);not null" json:"email"`
	OccurrenceID     uuid.UUID       `gorm:"type:uuid;index;not null" json:"occurrence_id"`
	Currency         string          `gorm:"type:varchar(3);not null" json:"currency"`
	Subtotal         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	DiscountPercent  decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0" json:"discount_percent"`
	DiscountAmount   decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"discount_amount"`
	ServiceFee       decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"service_fee"`
	Total            decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
	PromoCode        *string         `gorm:"type:varchar(50)" json:"promo_code,omitempty"`
	Status           Status          `gorm:"type:varchar(20);not null;index;check:status IN ('PENDING_PAYMENT','PAID','CANCELED')" json:"status"`
	PaymentSessionID *string         `gorm:"type:varchar(255)" json:"payment_session_id,omitempty"`
	PaymentURL       string          `gorm:"type:text" json:"payment_url,omitempty"`
	CancelReason     string          `gorm:"type:varchar(50)" json:"cancel_reason,omitempty"`
	DeliveryStatus   DeliveryStatus  `gorm:"type:varchar(20);not null;default:'NONE';index" json:"delivery_status"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
	CanceledAt       *time.Time      `json:"canceled_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`

	// Relationships
	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE;" json:"items,omitempty"`
}

// OrderItem records one ticket of an order with the price charged for it
type OrderItem struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID      uuid.UUID       `gorm:"type:uuid;index;not null" json:"order_id"`
	TicketID     uuid.UUID       `gorm:"type:uuid;index;not null" json:"ticket_id"`
	OccurrenceID uuid.UUID       `gorm:"type:uuid;not null" json:"occurrence_id"`
	Seat         string          `gorm:"type:varchar(255);not null" json:"seat"`
	Category     string          `gorm:"type:varchar(100);not null" json:"category"`
	Price        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	CreatedAt    time.Time       `json:"created_at"`
}

// TableName sets the table name for Order
func (Order) TableName() string {
	return "orders"
}

// TableName sets the table name for OrderItem
func (OrderItem) TableName() string {
	return "order_items"
}

// TicketIDs lists the tickets of the order
func (o *Order) TicketIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(o.Items))
	for i, item := range o.Items {
		ids[i] = item.TicketID
	}
	return ids
}

var (
	ErrOrderNotFound    = apperr.NotFound(apperr.CodeOrderNotFound, "order not found")
	ErrSeatUnavailable  = apperr.Conflict(apperr.CodeSeatUnavailable, "seat already taken, pick another")
	ErrInvalidOrderID   = apperr.Validation(apperr.CodeInvalidInput, "invalid order ID")
	ErrCurrencyMismatch = apperr.Validation(apperr.CodeCurrencyMismatch, "all seats of an order must share one currency")
	ErrTicketMismatch   = apperr.Fatal("order tickets are not in the expected state", nil)
)

// ParseOrderID parses an order UUID
func ParseOrderID(id string) (uuid.UUID, error) {
	orderID, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, ErrInvalidOrderID
	}
	return orderID, nil
}
