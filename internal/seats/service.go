package seats

import (
	"context"
	"sort"
	"strings"
	"time"

	"seatflow/internal/shared/apperr"
	"seatflow/internal/shared/clock"
	"seatflow/internal/shared/config"
	"seatflow/internal/shared/constants"
	"seatflow/pkg/cache"
	"seatflow/pkg/logger"
	"seatflow/pkg/realtime"

	"github.com/google/uuid"
)

// Service is the seat inventory read model
type Service struct {
	repo         Repository
	cacheService cache.Service
	broadcaster  realtime.Broadcaster
	clock        clock.Clock
	config       *config.Config
}

func NewService(repo Repository, cacheService cache.Service, broadcaster realtime.Broadcaster, clk clock.Clock, cfg *config.Config) *Service {
	if cacheService == nil {
		cacheService = cache.NewNop()
	}
	if broadcaster == nil {
		broadcaster = realtime.Nop{}
	}
	return &Service{
		repo:         repo,
		cacheService: cacheService,
		broadcaster:  broadcaster,
		clock:        clk,
		config:       cfg,
	}
}

// Availability reports every seat of the occurrence with lazy expiry applied.
// viewer, when non-empty, marks the seats held by that identity.
func (s *Service) Availability(ctx context.Context, occurrenceID uuid.UUID, viewer string) (*AvailabilityView, error) {
	snap, err := s.loadSnapshot(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	view := &AvailabilityView{
		OccurrenceID: snap.Occurrence.ID.String(),
		EventName:    snap.Occurrence.EventName,
		HallID:       snap.Occurrence.HallID,
		StartsAt:     snap.Occurrence.StartsAt,
		Currency:     snap.Occurrence.Currency,
		Seats:        make([]SeatAvailability, 0, len(snap.Tickets)),
		Summary:      map[Status]int{StatusFree: 0, StatusHeld: 0, StatusOrdered: 0, StatusPaid: 0},
		GeneratedAt:  now,
	}

	for _, ts := range snap.Tickets {
		t := Ticket{Status: ts.Status, HoldExpiresAt: ts.HoldExpiresAt}
		if ts.HeldBy != "" {
			heldBy := ts.HeldBy
			t.HeldBy = &heldBy
		}
		seat := SeatAvailability{
			Seat:     ts.Key.String(),
			Category: ts.Key.Category,
			Row:      ts.Key.Row,
			Number:   ts.Key.Number,
			Status:   t.EffectiveStatus(now),
			Price:    ts.Price,
		}
		if viewer != "" && t.IsHeldBy(viewer, now) {
			seat.Mine = true
			seat.HoldExpiresAt = ts.HoldExpiresAt
		}
		view.Summary[seat.Status]++
		view.Seats = append(view.Seats, seat)
	}

	return view, nil
}

// loadSnapshot reads the snapshot cached under the occurrence's current
// version. A snapshot built across a SeatsChanged lands under a version no
// reader asks for again.
func (s *Service) loadSnapshot(ctx context.Context, occurrenceID uuid.UUID) (*snapshot, error) {
	version, err := s.cacheService.Counter(ctx, constants.BuildSeatAvailabilityVersionKey(occurrenceID.String()))
	if err != nil {
		logger.GetDefault().WithError(err).Warn("availability version unreadable, skipping cache", "occurrence_id", occurrenceID.String())
		snap, err := s.buildSnapshot(ctx, occurrenceID)
		if err != nil {
			return nil, wrapSnapshotError(err)
		}
		return snap, nil
	}

	var snap snapshot
	err = s.cacheService.GetOrSet(ctx, constants.BuildSeatAvailabilityKey(occurrenceID.String(), version), s.availabilityTTL(),
		func() (interface{}, error) {
			return s.buildSnapshot(ctx, occurrenceID)
		}, &snap)
	if err != nil {
		return nil, wrapSnapshotError(err)
	}
	return &snap, nil
}

func wrapSnapshotError(err error) error {
	if appErr, ok := apperr.As(err); ok {
		return appErr
	}
	return apperr.Transient(apperr.CodeStoreUnavailable, "failed to load seat availability", err)
}

func (s *Service) buildSnapshot(ctx context.Context, occurrenceID uuid.UUID) (*snapshot, error) {
	occ, err := s.repo.GetOccurrence(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}
	tickets, err := s.repo.ListTickets(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(tickets, func(i, j int) bool {
		if tickets[i].Category != tickets[j].Category {
			return tickets[i].Category < tickets[j].Category
		}
		return tickets[i].Position < tickets[j].Position
	})

	snap := &snapshot{Occurrence: *occ, Tickets: make([]ticketState, 0, len(tickets))}
	for _, t := range tickets {
		ts := ticketState{
			Key:           t.Key(),
			Position:      t.Position,
			Status:        t.Status,
			HoldExpiresAt: t.HoldExpiresAt,
			Price:         t.Price,
		}
		if t.HeldBy != nil {
			ts.HeldBy = *t.HeldBy
		}
		snap.Tickets = append(snap.Tickets, ts)
	}
	return snap, nil
}

func (s *Service) availabilityTTL() time.Duration {
	if s.config != nil && s.config.Redis.AvailabilityTTL > 0 {
		return s.config.Redis.AvailabilityTTL
	}
	return constants.TTL_SEATS_AVAILABILITY
}

// GetOccurrence returns an occurrence or ErrOccurrenceNotFound
func (s *Service) GetOccurrence(ctx context.Context, occurrenceID uuid.UUID) (*Occurrence, error) {
	return s.repo.GetOccurrence(ctx, occurrenceID)
}

// ResolveTickets returns the tickets for keys in request order, failing on
// the first key that is not part of the occurrence.
func (s *Service) ResolveTickets(ctx context.Context, occurrenceID uuid.UUID, keys []SeatKey) ([]Ticket, error) {
	if _, err := s.repo.GetOccurrence(ctx, occurrenceID); err != nil {
		return nil, err
	}
	found, err := s.repo.FindTickets(ctx, occurrenceID, keys)
	if err != nil {
		return nil, apperr.Transient(apperr.CodeStoreUnavailable, "failed to read tickets", err)
	}

	byKey := make(map[SeatKey]Ticket, len(found))
	for _, t := range found {
		byKey[t.Key()] = t
	}
	out := make([]Ticket, 0, len(keys))
	for _, k := range keys {
		t, ok := byKey[k]
		if !ok {
			return nil, ErrSeatNotFound.WithField("seat", k.String())
		}
		out = append(out, t)
	}
	return out, nil
}

// CreateOccurrence generates the seat map and FREE tickets of a new occurrence
func (s *Service) CreateOccurrence(ctx context.Context, req CreateOccurrenceRequest) (*OccurrenceResponse, error) {
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.config.Booking.DefaultCurrency
	}

	occ := &Occurrence{
		ID:        uuid.New(),
		EventName: strings.TrimSpace(req.EventName),
		HallID:    strings.TrimSpace(req.HallID),
		StartsAt:  req.StartsAt.UTC(),
		Currency:  currency,
	}

	tickets, err := buildTickets(occ, req.Categories)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateOccurrence(ctx, occ, tickets); err != nil {
		return nil, apperr.Transient(apperr.CodeStoreUnavailable, "failed to create occurrence", err)
	}

	logger.GetDefault().InfoWithContext(ctx, "Occurrence Created", map[string]interface{}{
		"occurrence_id": occ.ID.String(),
		"tickets":       len(tickets),
	})
	return &OccurrenceResponse{Occurrence: occ, TicketCount: len(tickets)}, nil
}

// invalidateSnapshots moves readers to a fresh version; when the counter
// cannot be bumped every cached version is dropped instead
func (s *Service) invalidateSnapshots(ctx context.Context, occurrenceID uuid.UUID) {
	id := occurrenceID.String()
	if _, err := s.cacheService.Incr(ctx, constants.BuildSeatAvailabilityVersionKey(id), constants.TTL_SEATS_AVAILABILITY_VERSION); err == nil {
		return
	}
	if err := s.cacheService.DeletePattern(ctx, constants.BuildSeatAvailabilityPattern(id)); err != nil {
		logger.GetDefault().ErrorWithContext(ctx, "failed to invalidate availability cache", err, map[string]interface{}{
			"occurrence_id": id,
		})
	}
}

// SeatsChanged invalidates the cached availability of an occurrence and
// pushes the new status of the given seats to live viewers. Best effort.
func (s *Service) SeatsChanged(ctx context.Context, occurrenceID uuid.UUID, status Status, keys ...SeatKey) {
	if len(keys) == 0 {
		return
	}
	s.invalidateSnapshots(ctx, occurrenceID)

	updates := make([]realtime.SeatUpdate, len(keys))
	for i, k := range keys {
		updates[i] = realtime.SeatUpdate{Seat: k.String(), Status: status.String()}
	}
	// broadcaster logs its own failures
	_ = s.broadcaster.SeatsChanged(ctx, occurrenceID.String(), updates)
}
