package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the authoritative payment outcome of an order reference
type Status string

const (
	StatusPaid     Status = "paid"
	StatusUnpaid   Status = "unpaid"
	StatusExpired  Status = "expired"
	StatusCanceled Status = "canceled"
	StatusPending  Status = "pending"
	StatusNotFound Status = "not_found"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPaid, StatusUnpaid, StatusExpired, StatusCanceled, StatusPending, StatusNotFound:
		return true
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// SessionRequest asks the authority to open a checkout session
type SessionRequest struct {
	OrderID     uuid.UUID
	OrderRef    string
	Amount      decimal.Decimal
	Currency    string
	Email       string
	Description string
}

// Session is an opened checkout session
type Session struct {
	ID        string     `json:"id"`
	URL       string     `json:"url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Authority is the external payment provider. Both calls are safe to retry.
type Authority interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	QueryStatus(ctx context.Context, orderRef string) (Status, error)
}

var ErrUnavailable = errors.New("payment authority unavailable")

// StatusError is a non-success response from the authority
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("payment authority %s failed with status %d: %s", e.Op, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrUnavailable
}

// Retryable reports whether the call may succeed if repeated
func (e *StatusError) Retryable() bool {
	return e.Code == 429 || e.Code >= 500
}

// IsRetryable classifies errors returned by an Authority
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrBreakerOpen) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return true
}
