package holds

import (
	"context"
	"sort"
	"strings"
	"time"

	"seatflow/internal/seats"
	"seatflow/internal/shared/apperr"
	"seatflow/internal/shared/clock"
	"seatflow/internal/shared/config"
	"seatflow/pkg/logger"
	"seatflow/pkg/metrics"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ticketResolver interface {
	ResolveTickets(ctx context.Context, occurrenceID uuid.UUID, keys []seats.SeatKey) ([]seats.Ticket, error)
}

type changeNotifier interface {
	SeatsChanged(ctx context.Context, occurrenceID uuid.UUID, status seats.Status, keys ...seats.SeatKey)
}

var hundred = decimal.NewFromInt(100)

// Service manages per-seat holds. A hold is valid iff the ticket is HELD by
// the identity and hold_expires_at is in the future.
type Service struct {
	store     Store
	inventory ticketResolver
	notifier  changeNotifier
	clock     clock.Clock
	config    *config.Config
}

func NewService(store Store, inventory ticketResolver, notifier changeNotifier, clk clock.Clock, cfg *config.Config) *Service {
	return &Service{
		store:     store,
		inventory: inventory,
		notifier:  notifier,
		clock:     clk,
		config:    cfg,
	}
}

// Acquire places a hold on one seat. Re-acquiring an own active hold refreshes it.
// ttl <= 0 uses the configured default.
func (s *Service) Acquire(ctx context.Context, identity string, occurrenceID uuid.UUID, key seats.SeatKey, ttl time.Duration) (*Hold, error) {
	ticket, expiresAt, err := s.prepare(ctx, identity, occurrenceID, key, ttl)
	if err != nil {
		return nil, err
	}

	ok, err := s.store.AcquireHold(ctx, ticket.ID, identity, s.clock.Now(), expiresAt)
	if err != nil {
		metrics.RecordHold("acquire", "error")
		return nil, apperr.Transient(apperr.CodeStoreUnavailable, "failed to acquire hold", err)
	}
	if !ok {
		metrics.RecordHold("acquire", "conflict")
		return nil, ErrHoldConflict.WithField("seat", key.String())
	}

	metrics.RecordHold("acquire", "ok")
	logger.GetDefault().LogHoldAcquired(ctx, occurrenceID.String(), key.String(), identity, expiresAt)
	s.notify(ctx, occurrenceID, seats.StatusHeld, key)

	hold := holdFromTicket(*ticket)
	hold.Identity = identity
	hold.ExpiresAt = expiresAt
	return &hold, nil
}

// Extend pushes the expiry of an active hold owned by identity
func (s *Service) Extend(ctx context.Context, identity string, occurrenceID uuid.UUID, key seats.SeatKey, ttl time.Duration) (*Hold, error) {
	ticket, expiresAt, err := s.prepare(ctx, identity, occurrenceID, key, ttl)
	if err != nil {
		return nil, err
	}

	ok, err := s.store.ExtendHold(ctx, ticket.ID, identity, s.clock.Now(), expiresAt)
	if err != nil {
		metrics.RecordHold("extend", "error")
		return nil, apperr.Transient(apperr.CodeStoreUnavailable, "failed to extend hold", err)
	}
	if !ok {
		metrics.RecordHold("extend", "expired")
		return nil, ErrHoldExpired.WithField("seat", key.String())
	}
	metrics.RecordHold("extend", "ok")

	hold := holdFromTicket(*ticket)
	hold.Identity = identity
	hold.ExpiresAt = expiresAt
	return &hold, nil
}

// Release drops a hold owned by identity. Releasing a seat the identity does
// not hold is a no-op.
func (s *Service) Release(ctx context.Context, identity string, occurrenceID uuid.UUID, key seats.SeatKey) error {
	if err := validateIdentity(identity); err != nil {
		return err
	}
	tickets, err := s.inventory.ResolveTickets(ctx, occurrenceID, []seats.SeatKey{key})
	if err != nil {
		return err
	}

	released, err := s.store.ReleaseHold(ctx, tickets[0].ID, identity)
	if err != nil {
		metrics.RecordHold("release", "error")
		return apperr.Transient(apperr.CodeStoreUnavailable, "failed to release hold", err)
	}
	if released {
		metrics.RecordHold("release", "ok")
		s.notify(ctx, occurrenceID, seats.StatusFree, key)
	} else {
		metrics.RecordHold("release", "noop")
	}
	return nil
}

// ReleaseAll drops every hold of identity and returns how many were active or lapsed
func (s *Service) ReleaseAll(ctx context.Context, identity string) (int, error) {
	if err := validateIdentity(identity); err != nil {
		return 0, err
	}
	released, err := s.store.ReleaseAllHolds(ctx, identity)
	if err != nil {
		metrics.RecordHold("release_all", "error")
		return 0, apperr.Transient(apperr.CodeStoreUnavailable, "failed to release holds", err)
	}
	metrics.RecordHold("release_all", "ok")
	s.notifyTickets(ctx, seats.StatusFree, released)
	return len(released), nil
}

// Transfer moves every active hold of from to to. Lapsed holds of from are
// freed instead of moved.
func (s *Service) Transfer(ctx context.Context, from, to string) (*TransferResult, error) {
	if err := validateIdentity(from); err != nil {
		return nil, err
	}
	if err := validateIdentity(to); err != nil {
		return nil, err
	}
	if from == to {
		return &TransferResult{}, nil
	}

	moved, dropped, err := s.store.TransferHolds(ctx, from, to, s.clock.Now())
	if err != nil {
		metrics.RecordHold("transfer", "error")
		return nil, apperr.Transient(apperr.CodeStoreUnavailable, "failed to transfer holds", err)
	}
	metrics.RecordHold("transfer", "ok")
	logger.GetDefault().LogHoldsTransferred(ctx, from, to, int64(len(moved)), int64(len(dropped)))

	s.notifyTickets(ctx, seats.StatusHeld, moved)
	s.notifyTickets(ctx, seats.StatusFree, dropped)
	return &TransferResult{Moved: len(moved), Dropped: len(dropped)}, nil
}

// Cart lists the active holds of identity
func (s *Service) Cart(ctx context.Context, identity string) (*Cart, error) {
	if err := validateIdentity(identity); err != nil {
		return nil, err
	}
	tickets, err := s.store.ListActiveHolds(ctx, identity, s.clock.Now())
	if err != nil {
		return nil, apperr.Transient(apperr.CodeStoreUnavailable, "failed to list holds", err)
	}

	cart := &Cart{
		Holds:       make([]Hold, 0, len(tickets)),
		Subtotals:   make(map[string]decimal.Decimal),
		ServiceFees: make(map[string]decimal.Decimal),
		Totals:      make(map[string]decimal.Decimal),
	}
	for _, t := range tickets {
		h := holdFromTicket(t)
		cart.Holds = append(cart.Holds, h)
		cart.Subtotals[h.Currency] = cart.Subtotals[h.Currency].Add(h.Price)
		if cart.ExpiresAt == nil || h.ExpiresAt.Before(*cart.ExpiresAt) {
			exp := h.ExpiresAt
			cart.ExpiresAt = &exp
		}
	}
	sort.SliceStable(cart.Holds, func(i, j int) bool {
		if cart.Holds[i].OccurrenceID != cart.Holds[j].OccurrenceID {
			return cart.Holds[i].OccurrenceID < cart.Holds[j].OccurrenceID
		}
		return cart.Holds[i].Seat < cart.Holds[j].Seat
	})
	cart.Count = len(cart.Holds)

	// fee line mirrors order pricing: percent of subtotal, never discounted
	feePercent := s.config.Booking.ServiceFeePercent
	for currency, subtotal := range cart.Subtotals {
		fee := decimal.Zero
		if feePercent.IsPositive() {
			fee = subtotal.Mul(decimal.Min(feePercent, hundred)).Div(hundred).Round(2)
		}
		cart.ServiceFees[currency] = fee
		cart.Totals[currency] = subtotal.Add(fee).Round(2)
	}
	return cart, nil
}

// SweepExpired rewrites up to limit lapsed holds to FREE. Readers already
// treat them as FREE; this only keeps the table tidy.
func (s *Service) SweepExpired(ctx context.Context, limit int) (int, error) {
	swept, err := s.store.SweepExpiredHolds(ctx, s.clock.Now(), limit)
	if err != nil {
		return 0, apperr.Transient(apperr.CodeStoreUnavailable, "failed to sweep holds", err)
	}
	metrics.AddSweptHolds(int64(len(swept)))
	s.notifyTickets(ctx, seats.StatusFree, swept)
	return len(swept), nil
}

func (s *Service) prepare(ctx context.Context, identity string, occurrenceID uuid.UUID, key seats.SeatKey, ttl time.Duration) (*seats.Ticket, time.Time, error) {
	if err := validateIdentity(identity); err != nil {
		return nil, time.Time{}, err
	}
	ttl, err := s.resolveTTL(ttl)
	if err != nil {
		return nil, time.Time{}, err
	}
	tickets, err := s.inventory.ResolveTickets(ctx, occurrenceID, []seats.SeatKey{key})
	if err != nil {
		return nil, time.Time{}, err
	}
	return &tickets[0], s.clock.Now().Add(ttl), nil
}

func (s *Service) resolveTTL(ttl time.Duration) (time.Duration, error) {
	if ttl <= 0 {
		return s.config.Booking.HoldTTL, nil
	}
	if limit := s.config.Booking.MaxHoldTTL; limit > 0 && ttl > limit {
		return 0, ErrInvalidTTL.WithField("max_ttl", limit.String())
	}
	return ttl, nil
}

func validateIdentity(identity string) error {
	if strings.TrimSpace(identity) == "" {
		return ErrMissingIdentity
	}
	return nil
}

func (s *Service) notify(ctx context.Context, occurrenceID uuid.UUID, status seats.Status, keys ...seats.SeatKey) {
	if s.notifier != nil {
		s.notifier.SeatsChanged(ctx, occurrenceID, status, keys...)
	}
}

func (s *Service) notifyTickets(ctx context.Context, status seats.Status, tickets []seats.Ticket) {
	byOccurrence := make(map[uuid.UUID][]seats.SeatKey)
	for _, t := range tickets {
		byOccurrence[t.OccurrenceID] = append(byOccurrence[t.OccurrenceID], t.Key())
	}
	for occurrenceID, keys := range byOccurrence {
		s.notify(ctx, occurrenceID, status, keys...)
	}
}
