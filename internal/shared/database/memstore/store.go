// Package memstore is an in-process implementation of every repository, used
// with DB_DRIVER=memory and by service tests. Each method applies the same
// conditional writes as the SQL repositories while holding one mutex, so a
// method call is the unit of atomicity.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"seatflow/internal/orders"
	"seatflow/internal/promocodes"
	"seatflow/internal/seats"
	"seatflow/internal/shared/clock"
	"seatflow/internal/users"

	"github.com/google/uuid"
)

var ErrDuplicate = errors.New("duplicate key")

type Store struct {
	mu    sync.Mutex
	clock clock.Clock

	occurrences map[uuid.UUID]seats.Occurrence
	tickets     map[uuid.UUID]*seats.Ticket
	seatIndex   map[seatIndexKey]uuid.UUID
	promocodes  map[string]promocodes.Promocode
	users       map[uuid.UUID]users.User
	emails      map[string]uuid.UUID
	orders      map[uuid.UUID]*orders.Order
	references  map[string]uuid.UUID
}

type seatIndexKey struct {
	occurrenceID uuid.UUID
	key          seats.SeatKey
}

func New(clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.System{}
	}
	return &Store{
		clock:       clk,
		occurrences: make(map[uuid.UUID]seats.Occurrence),
		tickets:     make(map[uuid.UUID]*seats.Ticket),
		seatIndex:   make(map[seatIndexKey]uuid.UUID),
		promocodes:  make(map[string]promocodes.Promocode),
		users:       make(map[uuid.UUID]users.User),
		emails:      make(map[string]uuid.UUID),
		orders:      make(map[uuid.UUID]*orders.Order),
		references:  make(map[string]uuid.UUID),
	}
}

func (s *Store) lock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	return nil
}

// ================== SEATS ==================

func (s *Store) CreateOccurrence(ctx context.Context, occ *seats.Occurrence, tickets []seats.Ticket) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if _, exists := s.occurrences[occ.ID]; exists {
		return fmt.Errorf("occurrence %s: %w", occ.ID, ErrDuplicate)
	}
	for _, t := range tickets {
		if _, taken := s.seatIndex[seatIndexKey{t.OccurrenceID, t.Key()}]; taken {
			return fmt.Errorf("seat %s: %w", t.Key(), ErrDuplicate)
		}
	}

	now := s.clock.Now()
	stamp(&occ.CreatedAt, &occ.UpdatedAt, now)
	s.occurrences[occ.ID] = *occ
	for i := range tickets {
		t := tickets[i]
		stamp(&t.CreatedAt, &t.UpdatedAt, now)
		if t.Status == "" {
			t.Status = seats.StatusFree
		}
		s.tickets[t.ID] = &t
		s.seatIndex[seatIndexKey{t.OccurrenceID, t.Key()}] = t.ID
	}
	return nil
}

func (s *Store) GetOccurrence(ctx context.Context, id uuid.UUID) (*seats.Occurrence, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	occ, ok := s.occurrences[id]
	if !ok {
		return nil, seats.ErrOccurrenceNotFound
	}
	return &occ, nil
}

func (s *Store) ListTickets(ctx context.Context, occurrenceID uuid.UUID) ([]seats.Ticket, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	result := s.filterTickets(func(t *seats.Ticket) bool { return t.OccurrenceID == occurrenceID })
	sort.Slice(result, func(i, j int) bool {
		if result[i].Category != result[j].Category {
			return result[i].Category < result[j].Category
		}
		return result[i].Position < result[j].Position
	})
	return result, nil
}

func (s *Store) FindTickets(ctx context.Context, occurrenceID uuid.UUID, keys []seats.SeatKey) ([]seats.Ticket, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	var result []seats.Ticket
	for _, k := range keys {
		if id, ok := s.seatIndex[seatIndexKey{occurrenceID, k}]; ok {
			result = append(result, *s.tickets[id])
		}
	}
	return result, nil
}

// ================== HOLDS ==================

func (s *Store) AcquireHold(ctx context.Context, ticketID uuid.UUID, identity string, now, expiresAt time.Time) (bool, error) {
	if err := s.lock(ctx); err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	t, ok := s.tickets[ticketID]
	if !ok || !claimable(t, now, identity) {
		return false, nil
	}
	t.Status = seats.StatusHeld
	t.HeldBy = strPtr(identity)
	t.HoldExpiresAt = timePtr(expiresAt)
	t.UpdatedAt = s.clock.Now()
	return true, nil
}

func (s *Store) ExtendHold(ctx context.Context, ticketID uuid.UUID, identity string, now, expiresAt time.Time) (bool, error) {
	if err := s.lock(ctx); err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	t, ok := s.tickets[ticketID]
	if !ok || !heldBy(t, identity) || !t.HoldExpiresAt.After(now) {
		return false, nil
	}
	t.HoldExpiresAt = timePtr(expiresAt)
	t.UpdatedAt = s.clock.Now()
	return true, nil
}

func (s *Store) ReleaseHold(ctx context.Context, ticketID uuid.UUID, identity string) (bool, error) {
	if err := s.lock(ctx); err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	t, ok := s.tickets[ticketID]
	if !ok || !heldBy(t, identity) {
		return false, nil
	}
	s.free(t)
	return true, nil
}

func (s *Store) ReleaseAllHolds(ctx context.Context, identity string) ([]seats.Ticket, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	var released []seats.Ticket
	for _, t := range s.tickets {
		if heldBy(t, identity) {
			s.free(t)
			released = append(released, *t)
		}
	}
	return released, nil
}

func (s *Store) TransferHolds(ctx context.Context, from, to string, now time.Time) ([]seats.Ticket, []seats.Ticket, error) {
	if err := s.lock(ctx); err != nil {
		return nil, nil, err
	}
	defer s.mu.Unlock()

	var moved, dropped []seats.Ticket
	for _, t := range s.tickets {
		if !heldBy(t, from) {
			continue
		}
		if t.HoldExpiresAt.After(now) {
			t.HeldBy = strPtr(to)
			t.UpdatedAt = s.clock.Now()
			moved = append(moved, *t)
		} else {
			s.free(t)
			dropped = append(dropped, *t)
		}
	}
	return moved, dropped, nil
}

func (s *Store) ListActiveHolds(ctx context.Context, identity string, now time.Time) ([]seats.Ticket, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	result := s.filterTickets(func(t *seats.Ticket) bool {
		return heldBy(t, identity) && t.HoldExpiresAt.After(now)
	})
	sort.Slice(result, func(i, j int) bool { return result[i].HoldExpiresAt.Before(*result[j].HoldExpiresAt) })
	return result, nil
}

func (s *Store) SweepExpiredHolds(ctx context.Context, now time.Time, limit int) ([]seats.Ticket, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	var swept []seats.Ticket
	for _, t := range s.tickets {
		if len(swept) >= limit {
			break
		}
		if t.Status == seats.StatusHeld && t.HoldExpiresAt != nil && !t.HoldExpiresAt.After(now) {
			s.free(t)
			swept = append(swept, *t)
		}
	}
	return swept, nil
}

// ================== PROMOCODES ==================

func (s *Store) GetByCode(ctx context.Context, code string) (*promocodes.Promocode, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	promo, ok := s.promocodes[code]
	if !ok {
		return nil, promocodes.ErrPromocodeNotFound
	}
	promo.Scopes = append([]promocodes.PromocodeScope(nil), promo.Scopes...)
	return &promo, nil
}

func (s *Store) Upsert(ctx context.Context, promo *promocodes.Promocode) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()

	now := s.clock.Now()
	if existing, ok := s.promocodes[promo.Code]; ok {
		promo.ID = existing.ID
		promo.CreatedAt = existing.CreatedAt
	} else if promo.ID == uuid.Nil {
		promo.ID = uuid.New()
	}
	stamp(&promo.CreatedAt, &promo.UpdatedAt, now)
	promo.UpdatedAt = now

	scopes := make([]promocodes.PromocodeScope, len(promo.Scopes))
	for i, sc := range promo.Scopes {
		sc.ID = uuid.New()
		sc.PromocodeID = promo.ID
		scopes[i] = sc
	}
	promo.Scopes = scopes

	stored := *promo
	stored.Scopes = append([]promocodes.PromocodeScope(nil), scopes...)
	s.promocodes[promo.Code] = stored
	return nil
}

// ================== USERS ==================

func (s *Store) CreateUser(ctx context.Context, user *users.User) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()
	return s.insertUser(user)
}

func (s *Store) insertUser(user *users.User) error {
	if _, taken := s.emails[user.Email]; taken {
		return fmt.Errorf("email %s: %w", user.Email, ErrDuplicate)
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	stamp(&user.CreatedAt, &user.UpdatedAt, s.clock.Now())
	s.users[user.ID] = *user
	s.emails[user.Email] = user.ID
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*users.User, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	id, ok := s.emails[email]
	if !ok {
		return nil, users.ErrUserNotFound
	}
	user := s.users[id]
	return &user, nil
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*users.User, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, users.ErrUserNotFound
	}
	return &user, nil
}

func (s *Store) FindOrCreate(ctx context.Context, email string) (*users.User, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	if id, ok := s.emails[email]; ok {
		user := s.users[id]
		return &user, nil
	}
	user := &users.User{Email: email, Role: users.RoleUser}
	if err := s.insertUser(user); err != nil {
		return nil, err
	}
	created := *user
	return &created, nil
}

func (s *Store) ClaimPassword(ctx context.Context, id uuid.UUID, hashedPassword, firstName, lastName string) (bool, error) {
	if err := s.lock(ctx); err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok || user.HasPassword() {
		return false, nil
	}
	user.Password = strPtr(hashedPassword)
	user.FirstName = firstName
	user.LastName = lastName
	user.UpdatedAt = s.clock.Now()
	s.users[id] = user
	return true, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, id uuid.UUID, hashedPassword string) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return users.ErrUserNotFound
	}
	user.Password = strPtr(hashedPassword)
	user.UpdatedAt = s.clock.Now()
	s.users[id] = user
	return nil
}

// ================== ORDERS ==================

func (s *Store) CreateWithClaims(ctx context.Context, order *orders.Order, tickets []seats.Ticket, holders []string, now time.Time) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if _, taken := s.references[order.Reference]; taken {
		return fmt.Errorf("order reference %s: %w", order.Reference, ErrDuplicate)
	}

	if len(holders) == 0 {
		holders = []string{order.AccountID.String()}
	}
	// check every claim before writing any, which is the rollback
	for _, t := range tickets {
		stored, ok := s.tickets[t.ID]
		if !ok || !claimable(stored, now, holders...) {
			return orders.ErrSeatUnavailable.WithField("seat", t.Key().String())
		}
	}

	orderID := order.ID
	for _, t := range tickets {
		stored := s.tickets[t.ID]
		stored.Status = seats.StatusOrdered
		stored.OrderID = &orderID
		stored.HeldBy = nil
		stored.HoldExpiresAt = nil
		stored.UpdatedAt = s.clock.Now()
	}

	stamp(&order.CreatedAt, &order.UpdatedAt, s.clock.Now())
	for i := range order.Items {
		if order.Items[i].CreatedAt.IsZero() {
			order.Items[i].CreatedAt = order.CreatedAt
		}
	}
	s.orders[order.ID] = copyOrder(order)
	s.references[order.Reference] = order.ID
	return nil
}

func (s *Store) AttachPaymentSession(ctx context.Context, orderID uuid.UUID, sessionID, url string) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok || o.Status != orders.StatusPendingPayment {
		return orders.ErrOrderNotFound
	}
	o.PaymentSessionID = strPtr(sessionID)
	o.PaymentURL = url
	o.UpdatedAt = s.clock.Now()
	return nil
}

func (s *Store) GetByID(ctx context.Context, orderID uuid.UUID) (*orders.Order, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return nil, orders.ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (s *Store) GetByReference(ctx context.Context, reference string) (*orders.Order, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	id, ok := s.references[reference]
	if !ok {
		return nil, orders.ErrOrderNotFound
	}
	return copyOrder(s.orders[id]), nil
}

func (s *Store) ListByAccount(ctx context.Context, accountID uuid.UUID, query orders.ListQuery) ([]orders.Order, int64, error) {
	if err := s.lock(ctx); err != nil {
		return nil, 0, err
	}
	defer s.mu.Unlock()

	query = query.WithDefaults()
	var matched []orders.Order
	for _, o := range s.orders {
		if o.AccountID != accountID {
			continue
		}
		if query.Status != "" && o.Status != query.Status {
			continue
		}
		matched = append(matched, *copyOrder(o))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := int64(len(matched))
	offset := (query.Page - 1) * query.Limit
	if offset >= len(matched) {
		return []orders.Order{}, total, nil
	}
	end := offset + query.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (s *Store) MarkPaid(ctx context.Context, orderID uuid.UUID, now time.Time) ([]seats.Ticket, bool, error) {
	if err := s.lock(ctx); err != nil {
		return nil, false, err
	}
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok || o.Status != orders.StatusPendingPayment {
		return nil, false, nil
	}
	owned := s.orderTickets(orderID, seats.StatusOrdered)
	if len(owned) != len(o.Items) {
		return nil, false, orders.ErrTicketMismatch.WithField("order_id", orderID.String()).
			WithField("expected", len(o.Items)).WithField("updated", len(owned))
	}

	paid := make([]seats.Ticket, 0, len(owned))
	for _, t := range owned {
		t.Status = seats.StatusPaid
		t.UpdatedAt = s.clock.Now()
		paid = append(paid, *t)
	}
	o.Status = orders.StatusPaid
	o.PaidAt = timePtr(now)
	o.DeliveryStatus = orders.DeliveryPending
	o.UpdatedAt = s.clock.Now()
	return paid, true, nil
}

func (s *Store) MarkCanceled(ctx context.Context, orderID uuid.UUID, reason string, now time.Time) ([]seats.Ticket, bool, error) {
	if err := s.lock(ctx); err != nil {
		return nil, false, err
	}
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok || o.Status != orders.StatusPendingPayment {
		return nil, false, nil
	}
	owned := s.orderTickets(orderID, seats.StatusOrdered)
	if len(owned) != len(o.Items) {
		return nil, false, orders.ErrTicketMismatch.WithField("order_id", orderID.String()).
			WithField("expected", len(o.Items)).WithField("updated", len(owned))
	}

	freed := make([]seats.Ticket, 0, len(owned))
	for _, t := range owned {
		t.Status = seats.StatusFree
		t.OrderID = nil
		t.UpdatedAt = s.clock.Now()
		freed = append(freed, *t)
	}
	o.Status = orders.StatusCanceled
	o.CancelReason = reason
	o.CanceledAt = timePtr(now)
	o.UpdatedAt = s.clock.Now()
	return freed, true, nil
}

func (s *Store) MarkDeliveryRequested(ctx context.Context, orderID uuid.UUID) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if o, ok := s.orders[orderID]; ok && o.Status == orders.StatusPaid && o.DeliveryStatus == orders.DeliveryPending {
		o.DeliveryStatus = orders.DeliveryRequested
		o.UpdatedAt = s.clock.Now()
	}
	return nil
}

func (s *Store) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]orders.Order, error) {
	return s.listOrders(ctx, limit, func(o *orders.Order) bool {
		return o.Status == orders.StatusPendingPayment && o.CreatedAt.Before(createdBefore)
	})
}

func (s *Store) ListPendingDelivery(ctx context.Context, limit int) ([]orders.Order, error) {
	return s.listOrders(ctx, limit, func(o *orders.Order) bool {
		return o.Status == orders.StatusPaid && o.DeliveryStatus == orders.DeliveryPending
	})
}

func (s *Store) listOrders(ctx context.Context, limit int, match func(*orders.Order) bool) ([]orders.Order, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	var result []orders.Order
	for _, o := range s.orders {
		if match(o) {
			result = append(result, *copyOrder(o))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ================== HELPERS ==================

// Ticket returns a copy of a stored ticket
func (s *Store) Ticket(id uuid.UUID) (seats.Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return seats.Ticket{}, false
	}
	return *t, true
}

func (s *Store) filterTickets(match func(*seats.Ticket) bool) []seats.Ticket {
	var result []seats.Ticket
	for _, t := range s.tickets {
		if match(t) {
			result = append(result, *t)
		}
	}
	return result
}

func (s *Store) orderTickets(orderID uuid.UUID, status seats.Status) []*seats.Ticket {
	var result []*seats.Ticket
	for _, t := range s.tickets {
		if t.OrderID != nil && *t.OrderID == orderID && t.Status == status {
			result = append(result, t)
		}
	}
	return result
}

func (s *Store) free(t *seats.Ticket) {
	t.Status = seats.StatusFree
	t.HeldBy = nil
	t.HoldExpiresAt = nil
	t.UpdatedAt = s.clock.Now()
}

// claimable mirrors: FREE, or HELD and (lapsed or held by identity)
func claimable(t *seats.Ticket, now time.Time, holders ...string) bool {
	switch t.Status {
	case seats.StatusFree:
		return true
	case seats.StatusHeld:
		if t.HoldExpiresAt == nil || !t.HoldExpiresAt.After(now) || t.HeldBy == nil {
			return true
		}
		for _, h := range holders {
			if h != "" && *t.HeldBy == h {
				return true
			}
		}
	}
	return false
}

func heldBy(t *seats.Ticket, identity string) bool {
	return t.Status == seats.StatusHeld && t.HeldBy != nil && *t.HeldBy == identity && t.HoldExpiresAt != nil
}

func copyOrder(o *orders.Order) *orders.Order {
	c := *o
	c.Items = append([]orders.OrderItem(nil), o.Items...)
	sort.Slice(c.Items, func(i, j int) bool { return strings.Compare(c.Items[i].Seat, c.Items[j].Seat) < 0 })
	return &c
}

func stamp(createdAt, updatedAt *time.Time, now time.Time) {
	if createdAt.IsZero() {
		*createdAt = now
	}
	if updatedAt.IsZero() {
		*updatedAt = now
	}
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }
