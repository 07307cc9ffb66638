package payments

import (
	"context"
	"time"

	"seatflow/pkg/logger"
	"seatflow/pkg/metrics"
)

// Resilient wraps an Authority with a circuit breaker and bounded retries
// with exponential backoff.
type Resilient struct {
	inner      Authority
	breaker    *CircuitBreaker
	maxRetries int
	backoff    time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewResilient(inner Authority, breaker *CircuitBreaker, maxRetries int, backoff time.Duration) *Resilient {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Resilient{
		inner:      inner,
		breaker:    breaker,
		maxRetries: maxRetries,
		backoff:    backoff,
		sleep:      sleepContext,
	}
}

func (r *Resilient) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	var session *Session
	err := r.call(ctx, "create_session", func() error {
		var err error
		session, err = r.inner.CreateSession(ctx, req)
		return err
	})
	return session, err
}

func (r *Resilient) QueryStatus(ctx context.Context, orderRef string) (Status, error) {
	var status Status
	err := r.call(ctx, "query_status", func() error {
		var err error
		status, err = r.inner.QueryStatus(ctx, orderRef)
		return err
	})
	return status, err
}

func (r *Resilient) call(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			wait := r.backoff * time.Duration(1<<(attempt-1))
			if sleepErr := r.sleep(ctx, wait); sleepErr != nil {
				return err
			}
		}

		started := time.Now()
		err = r.breaker.Execute(fn, IsRetryable)
		metrics.ObservePaymentCall(op, started, err)
		if err == nil || !IsRetryable(err) {
			return err
		}
		logger.GetDefault().WarnContext(ctx, "payment authority call failed", "operation", op, "attempt", attempt+1, "error", err)
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
