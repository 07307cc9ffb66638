package reconciliation

import (
	"context"
	"errors"
	"time"

	"seatflow/internal/delivery"
	"seatflow/internal/orders"
	"seatflow/internal/payments"
	"seatflow/internal/seats"
	"seatflow/internal/shared/apperr"
	"seatflow/internal/shared/clock"
	"seatflow/pkg/logger"
	"seatflow/pkg/metrics"

	"github.com/google/uuid"
)

type changeNotifier interface {
	SeatsChanged(ctx context.Context, occurrenceID uuid.UUID, status seats.Status, keys ...seats.SeatKey)
}

// Outcome is the order state a reconcile call leaves behind
type Outcome string

const (
	OutcomePaid     Outcome = "paid"
	OutcomeCanceled Outcome = "canceled"
	OutcomePending  Outcome = "pending"
)

// Result of one reconcile call. Transitioned is true only for the call that
// moved the order out of PENDING_PAYMENT.
type Result struct {
	Order         *orders.Order   `json:"order"`
	Outcome       Outcome         `json:"outcome"`
	PaymentStatus payments.Status `json:"payment_status,omitempty"`
	Transitioned  bool            `json:"transitioned"`
}

var cancelReasons = map[payments.Status]string{
	payments.StatusExpired:  orders.CancelPaymentExpired,
	payments.StatusUnpaid:   orders.CancelPaymentUnpaid,
	payments.StatusCanceled: orders.CancelPaymentCanceled,
	payments.StatusNotFound: orders.CancelPaymentNotFound,
}

// Service settles pending orders against the payment authority
type Service struct {
	repo      orders.Repository
	authority payments.Authority
	publisher delivery.Publisher
	notifier  changeNotifier
	clock     clock.Clock
}

func NewService(repo orders.Repository, authority payments.Authority, publisher delivery.Publisher, notifier changeNotifier, clk clock.Clock) *Service {
	return &Service{
		repo:      repo,
		authority: authority,
		publisher: publisher,
		notifier:  notifier,
		clock:     clk,
	}
}

// Reconcile asks the authority for the payment status of an order and applies it.
// Safe to call any number of times from any trigger.
func (s *Service) Reconcile(ctx context.Context, orderID uuid.UUID) (*Result, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		result := &Result{Order: order, Outcome: outcomeOf(order.Status)}
		s.record(ctx, result)
		return result, nil
	}

	status, err := s.authority.QueryStatus(ctx, order.Reference)
	if err != nil {
		metrics.RecordReconciliation("authority_error", false)
		logger.GetDefault().ErrorWithContext(ctx, "payment status query failed", err, map[string]interface{}{
			"order_id":  order.ID.String(),
			"reference": order.Reference,
		})
		return nil, apperr.Transient(apperr.CodePaymentUnavailable, "payment provider unavailable, try again later", err)
	}

	transitioned, err := s.apply(ctx, order, status)
	if err != nil {
		return nil, err
	}

	// reload: a concurrent call may have won the transition
	if order, err = s.load(ctx, orderID); err != nil {
		return nil, err
	}
	if transitioned && order.Status == orders.StatusPaid {
		s.requestDelivery(ctx, order)
	}

	result := &Result{
		Order:         order,
		Outcome:       outcomeOf(order.Status),
		PaymentStatus: status,
		Transitioned:  transitioned,
	}
	s.record(ctx, result)
	return result, nil
}

func (s *Service) apply(ctx context.Context, order *orders.Order, status payments.Status) (bool, error) {
	now := s.clock.Now()

	switch status {
	case payments.StatusPaid:
		paid, transitioned, err := s.repo.MarkPaid(ctx, order.ID, now)
		if err != nil {
			return false, s.storeError(ctx, order, "mark paid", err)
		}
		if transitioned {
			s.notify(ctx, order.OccurrenceID, seats.StatusPaid, paid)
		}
		return transitioned, nil

	case payments.StatusPending:
		return false, nil
	}

	reason, ok := cancelReasons[status]
	if !ok {
		return false, apperr.Transient(apperr.CodePaymentUnavailable, "payment provider returned an unknown status", nil).
			WithField("status", string(status))
	}
	freed, transitioned, err := s.repo.MarkCanceled(ctx, order.ID, reason, now)
	if err != nil {
		return false, s.storeError(ctx, order, "mark canceled", err)
	}
	if transitioned {
		s.notify(ctx, order.OccurrenceID, seats.StatusFree, freed)
	}
	return transitioned, nil
}

func (s *Service) storeError(ctx context.Context, order *orders.Order, op string, err error) error {
	if apperr.IsKind(err, apperr.KindFatal) {
		logger.GetDefault().LogInvariantViolation(ctx, "reconcile "+op+" rolled back", err, map[string]interface{}{
			"order_id":  order.ID.String(),
			"reference": order.Reference,
		})
		metrics.RecordReconciliation("invariant_violation", false)
		return err
	}
	metrics.RecordReconciliation("store_error", false)
	return apperr.Transient(apperr.CodeStoreUnavailable, "failed to update order", err)
}

func (s *Service) load(ctx context.Context, orderID uuid.UUID) (*orders.Order, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			return nil, err
		}
		return nil, apperr.Transient(apperr.CodeStoreUnavailable, "failed to load order", err)
	}
	return order, nil
}

// requestDelivery publishes the outbox entry of a paid order. Failures leave
// delivery_status PENDING for the retry job and never undo the payment.
func (s *Service) requestDelivery(ctx context.Context, order *orders.Order) bool {
	req := delivery.NewRequest(order, s.clock.Now())
	if err := s.publisher.Publish(ctx, req); err != nil {
		logger.GetDefault().ErrorWithContext(ctx, "delivery publish failed, will retry", err, map[string]interface{}{
			"order_id": order.ID.String(),
		})
		return false
	}
	if err := s.repo.MarkDeliveryRequested(ctx, order.ID); err != nil {
		logger.GetDefault().ErrorWithContext(ctx, "failed to mark delivery requested", err, map[string]interface{}{
			"order_id": order.ID.String(),
		})
		return false
	}
	order.DeliveryStatus = orders.DeliveryRequested
	return true
}

func (s *Service) notify(ctx context.Context, occurrenceID uuid.UUID, status seats.Status, tickets []seats.Ticket) {
	if len(tickets) == 0 {
		return
	}
	keys := make([]seats.SeatKey, len(tickets))
	for i, t := range tickets {
		keys[i] = t.Key()
	}
	s.notifier.SeatsChanged(ctx, occurrenceID, status, keys...)
}

func (s *Service) record(ctx context.Context, result *Result) {
	metrics.RecordReconciliation(string(result.Outcome), result.Transitioned)
	logger.GetDefault().LogOrderReconciled(ctx, result.Order.ID.String(), string(result.Outcome),
		result.Order.Status.String(), result.Transitioned)
}

func outcomeOf(status orders.Status) Outcome {
	switch status {
	case orders.StatusPaid:
		return OutcomePaid
	case orders.StatusCanceled:
		return OutcomeCanceled
	default:
		return OutcomePending
	}
}

// ReconcileStale settles PENDING_PAYMENT orders older than maxAge.
// Returns how many orders this call moved to PAID or CANCELED.
func (s *Service) ReconcileStale(ctx context.Context, maxAge time.Duration, limit int) (int, error) {
	stale, err := s.repo.ListStalePending(ctx, s.clock.Now().Add(-maxAge), limit)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, order := range stale {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}
		result, err := s.Reconcile(ctx, order.ID)
		if err != nil {
			logger.GetDefault().WithError(err).Warn("stale order reconcile failed", "order_id", order.ID.String())
			continue
		}
		if result.Transitioned {
			settled++
		}
	}
	return settled, nil
}

// RetryDeliveries republishes paid orders whose delivery request never went out
func (s *Service) RetryDeliveries(ctx context.Context, limit int) (int, error) {
	pending, err := s.repo.ListPendingDelivery(ctx, limit)
	if err != nil {
		return 0, err
	}

	published := 0
	for i := range pending {
		if ctx.Err() != nil {
			return published, ctx.Err()
		}
		if s.requestDelivery(ctx, &pending[i]) {
			published++
		}
	}
	return published, nil
}

// ReconcileReference reconciles the order carrying a provider reference
func (s *Service) ReconcileReference(ctx context.Context, reference string) (*Result, error) {
	order, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			return nil, err
		}
		return nil, apperr.Transient(apperr.CodeStoreUnavailable, "failed to load order", err)
	}
	return s.Reconcile(ctx, order.ID)
}
