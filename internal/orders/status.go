package orders

type Status string

const (
	StatusPendingPayment Status = "PENDING_PAYMENT"
	StatusPaid           Status = "PAID"
	StatusCanceled       Status = "CANCELED"
)

// IsValid checks if the order status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusPendingPayment, StatusPaid, StatusCanceled:
		return true
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is possible
func (s Status) IsTerminal() bool {
	return s == StatusPaid || s == StatusCanceled
}

// DeliveryStatus tracks the outbox state of the delivery request of a PAID order
type DeliveryStatus string

const (
	DeliveryNone      DeliveryStatus = "NONE"
	DeliveryPending   DeliveryStatus = "PENDING"
	DeliveryRequested DeliveryStatus = "REQUESTED"
)

// Cancel reasons
const (
	CancelPaymentSessionFailed = "payment_session_failed"
	CancelPaymentExpired       = "payment_expired"
	CancelPaymentUnpaid        = "payment_unpaid"
	CancelPaymentCanceled      = "payment_canceled"
	CancelPaymentNotFound      = "payment_not_found"
)
