package reconciliation

import (
	"time"

	"seatflow/internal/payments"
)

// WebhookPayload is the provider callback body. Either field identifies the order.
type WebhookPayload struct {
	OrderID   string `json:"order_id" validate:"omitempty,uuid"`
	Reference string `json:"client_reference_id"`
	Event     string `json:"event"`
}

type ReconcileResponse struct {
	OrderID        string          `json:"order_id"`
	Reference      string          `json:"reference"`
	Status         string          `json:"status"`
	Outcome        Outcome         `json:"outcome"`
	PaymentStatus  payments.Status `json:"payment_status,omitempty"`
	Transitioned   bool            `json:"transitioned"`
	DeliveryStatus string          `json:"delivery_status"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
	CanceledAt     *time.Time      `json:"canceled_at,omitempty"`
	CancelReason   string          `json:"cancel_reason,omitempty"`
}

func toReconcileResponse(result *Result) *ReconcileResponse {
	order := result.Order
	return &ReconcileResponse{
		OrderID:        order.ID.String(),
		Reference:      order.Reference,
		Status:         order.Status.String(),
		Outcome:        result.Outcome,
		PaymentStatus:  result.PaymentStatus,
		Transitioned:   result.Transitioned,
		DeliveryStatus: string(order.DeliveryStatus),
		PaidAt:         order.PaidAt,
		CanceledAt:     order.CanceledAt,
		CancelReason:   order.CancelReason,
	}
}
