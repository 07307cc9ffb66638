package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"seatflow/internal/orders"
	"seatflow/internal/seats"
	"seatflow/internal/shared/apperr"
	"seatflow/internal/shared/clock"
	"seatflow/internal/users"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

func seedOccurrence(t *testing.T, s *Store, n int) (*seats.Occurrence, []seats.Ticket) {
	t.Helper()
	occ := &seats.Occurrence{ID: uuid.New(), EventName: "Show", HallID: "h1", StartsAt: t0.Add(48 * time.Hour), Currency: "EUR"}
	tickets := make([]seats.Ticket, n)
	for i := range tickets {
		tickets[i] = seats.Ticket{
			ID:           uuid.New(),
			OccurrenceID: occ.ID,
			HallID:       "h1",
			Category:     "stalls",
			Row:          "A",
			Number:       string(rune('1' + i)),
			Position:     i + 1,
			Price:        decimal.NewFromInt(20),
			Currency:     "EUR",
		}
	}
	require.NoError(t, s.CreateOccurrence(context.Background(), occ, tickets))
	return occ, tickets
}

func newOrder(accountID uuid.UUID, occ *seats.Occurrence, tickets []seats.Ticket) *orders.Order {
	o := &orders.Order{
		ID:           uuid.New(),
		Reference:    "SF-" + uuid.NewString()[:8],
		AccountID:    accountID,
		Email:        "buyer@example.com",
		OccurrenceID: occ.ID,
		Currency:     "EUR",
		Status:       orders.StatusPendingPayment,
	}
	for _, tk := range tickets {
		o.Items = append(o.Items, orders.OrderItem{ID: uuid.New(), OrderID: o.ID, TicketID: tk.ID, Seat: tk.Key().String(), Price: tk.Price})
	}
	return o
}

func TestCreateOccurrenceRejectsDuplicateSeat(t *testing.T) {
	s := New(clock.NewFake(t0))
	_, tickets := seedOccurrence(t, s, 1)

	occ := &seats.Occurrence{ID: tickets[0].OccurrenceID}
	dup := tickets[0]
	dup.ID = uuid.New()
	err := s.CreateOccurrence(context.Background(), &seats.Occurrence{ID: uuid.New()}, []seats.Ticket{dup})
	assert.ErrorIs(t, err, ErrDuplicate)

	err = s.CreateOccurrence(context.Background(), occ, nil)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestHoldLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New(clock.NewFake(t0))
	_, tickets := seedOccurrence(t, s, 1)
	id := tickets[0].ID

	ok, err := s.AcquireHold(ctx, id, "alice", t0, t0.Add(10*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = s.AcquireHold(ctx, id, "bob", t0.Add(time.Minute), t0.Add(11*time.Minute))
	assert.False(t, ok, "active hold of another identity blocks")

	ok, _ = s.ExtendHold(ctx, id, "alice", t0.Add(time.Minute), t0.Add(20*time.Minute))
	assert.True(t, ok)

	ok, _ = s.ExtendHold(ctx, id, "alice", t0.Add(21*time.Minute), t0.Add(30*time.Minute))
	assert.False(t, ok, "a lapsed hold cannot be extended")

	ok, _ = s.AcquireHold(ctx, id, "bob", t0.Add(21*time.Minute), t0.Add(31*time.Minute))
	assert.True(t, ok, "a lapsed hold can be taken over")

	ok, _ = s.ReleaseHold(ctx, id, "alice")
	assert.False(t, ok)
	ok, _ = s.ReleaseHold(ctx, id, "bob")
	assert.True(t, ok)

	stored, _ := s.Ticket(id)
	assert.Equal(t, seats.StatusFree, stored.Status)
	assert.Nil(t, stored.HeldBy)
	assert.Nil(t, stored.HoldExpiresAt)
}

func TestTransferHoldsMovesActiveAndFreesLapsed(t *testing.T) {
	ctx := context.Background()
	s := New(clock.NewFake(t0))
	_, tickets := seedOccurrence(t, s, 2)

	_, _ = s.AcquireHold(ctx, tickets[0].ID, "guest:1", t0, t0.Add(15*time.Minute))
	_, _ = s.AcquireHold(ctx, tickets[1].ID, "guest:1", t0, t0.Add(time.Minute))

	moved, dropped, err := s.TransferHolds(ctx, "guest:1", "acct", t0.Add(5*time.Minute))
	require.NoError(t, err)
	require.Len(t, moved, 1)
	require.Len(t, dropped, 1)
	assert.Equal(t, tickets[0].ID, moved[0].ID)
	assert.Equal(t, "acct", *moved[0].HeldBy)

	stored, _ := s.Ticket(tickets[1].ID)
	assert.Equal(t, seats.StatusFree, stored.Status)
}

func TestSweepExpiredHoldsRespectsLimit(t *testing.T) {
	ctx := context.Background()
	s := New(clock.NewFake(t0))
	_, tickets := seedOccurrence(t, s, 3)
	for _, tk := range tickets {
		_, _ = s.AcquireHold(ctx, tk.ID, "alice", t0, t0.Add(time.Minute))
	}

	swept, err := s.SweepExpiredHolds(ctx, t0.Add(2*time.Minute), 2)
	require.NoError(t, err)
	assert.Len(t, swept, 2)

	swept, err = s.SweepExpiredHolds(ctx, t0.Add(2*time.Minute), 10)
	require.NoError(t, err)
	assert.Len(t, swept, 1)
}

func TestCreateWithClaimsIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := New(clock.NewFake(t0))
	occ, tickets := seedOccurrence(t, s, 2)
	buyer := uuid.New()

	_, _ = s.AcquireHold(ctx, tickets[0].ID, buyer.String(), t0, t0.Add(10*time.Minute))
	_, _ = s.AcquireHold(ctx, tickets[1].ID, "someone-else", t0, t0.Add(10*time.Minute))

	err := s.CreateWithClaims(ctx, newOrder(buyer, occ, tickets), tickets, []string{buyer.String()}, t0.Add(time.Minute))
	require.Error(t, err)
	assert.Equal(t, apperr.CodeSeatUnavailable, mustAppErr(t, err).Code)

	first, _ := s.Ticket(tickets[0].ID)
	assert.Equal(t, seats.StatusHeld, first.Status, "no ticket is claimed when one claim fails")
}

func TestCreateWithClaimsAcceptsSessionHolds(t *testing.T) {
	ctx := context.Background()
	s := New(clock.NewFake(t0))
	occ, tickets := seedOccurrence(t, s, 2)
	buyer := uuid.New()

	_, _ = s.AcquireHold(ctx, tickets[0].ID, "guest:1", t0, t0.Add(10*time.Minute))
	_, _ = s.AcquireHold(ctx, tickets[1].ID, buyer.String(), t0, t0.Add(10*time.Minute))

	err := s.CreateWithClaims(ctx, newOrder(buyer, occ, tickets), tickets, nil, t0.Add(time.Minute))
	assert.ErrorIs(t, err, orders.ErrSeatUnavailable, "without the session identity the guest hold blocks")

	err = s.CreateWithClaims(ctx, newOrder(buyer, occ, tickets), tickets, []string{buyer.String(), "guest:1"}, t0.Add(time.Minute))
	require.NoError(t, err)
	for _, tk := range tickets {
		stored, _ := s.Ticket(tk.ID)
		assert.Equal(t, seats.StatusOrdered, stored.Status)
	}
}

func TestMarkPaidOnlyOnce(t *testing.T) {
	ctx := context.Background()
	s := New(clock.NewFake(t0))
	occ, tickets := seedOccurrence(t, s, 2)
	order := newOrder(uuid.New(), occ, tickets)
	require.NoError(t, s.CreateWithClaims(ctx, order, tickets, nil, t0))

	paid, transitioned, err := s.MarkPaid(ctx, order.ID, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, transitioned)
	assert.Len(t, paid, 2)

	_, transitioned, err = s.MarkPaid(ctx, order.ID, t0.Add(2*time.Minute))
	require.NoError(t, err)
	assert.False(t, transitioned)

	_, transitioned, err = s.MarkCanceled(ctx, order.ID, orders.CancelPaymentExpired, t0.Add(3*time.Minute))
	require.NoError(t, err)
	assert.False(t, transitioned, "a paid order never cancels")

	stored, err := s.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, stored.Status)
	assert.Equal(t, orders.DeliveryPending, stored.DeliveryStatus)

	require.NoError(t, s.MarkDeliveryRequested(ctx, order.ID))
	pending, err := s.ListPendingDelivery(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMarkCanceledFreesTickets(t *testing.T) {
	ctx := context.Background()
	s := New(clock.NewFake(t0))
	occ, tickets := seedOccurrence(t, s, 1)
	order := newOrder(uuid.New(), occ, tickets)
	require.NoError(t, s.CreateWithClaims(ctx, order, tickets, nil, t0))

	freed, transitioned, err := s.MarkCanceled(ctx, order.ID, orders.CancelPaymentUnpaid, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, transitioned)
	require.Len(t, freed, 1)

	stored, _ := s.Ticket(tickets[0].ID)
	assert.Equal(t, seats.StatusFree, stored.Status)
	assert.Nil(t, stored.OrderID)
}

func TestMarkPaidDetectsTicketMismatch(t *testing.T) {
	ctx := context.Background()
	s := New(clock.NewFake(t0))
	occ, tickets := seedOccurrence(t, s, 2)
	order := newOrder(uuid.New(), occ, tickets)
	require.NoError(t, s.CreateWithClaims(ctx, order, tickets, nil, t0))

	s.tickets[tickets[1].ID].Status = seats.StatusFree

	_, _, err := s.MarkPaid(ctx, order.ID, t0)
	require.Error(t, err)
	assert.Equal(t, apperr.KindFatal, mustAppErr(t, err).Kind)
}

func TestListByAccountPaginates(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(t0)
	s := New(clk)
	occ, tickets := seedOccurrence(t, s, 3)
	buyer := uuid.New()

	for _, tk := range tickets {
		clk.Advance(time.Minute)
		require.NoError(t, s.CreateWithClaims(ctx, newOrder(buyer, occ, []seats.Ticket{tk}), []seats.Ticket{tk}, nil, clk.Now()))
	}

	page, total, err := s.ListByAccount(ctx, buyer, orders.ListQuery{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, page, 2)
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt))

	page, _, err = s.ListByAccount(ctx, buyer, orders.ListQuery{Page: 3, Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestFindOrCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New(nil)

	first, err := s.FindOrCreate(ctx, "buyer@example.com")
	require.NoError(t, err)
	second, err := s.FindOrCreate(ctx, "buyer@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	claimed, err := s.ClaimPassword(ctx, first.ID, "hash", "Ada", "Lovelace")
	require.NoError(t, err)
	assert.True(t, claimed)
	claimed, err = s.ClaimPassword(ctx, first.ID, "other", "Ada", "Lovelace")
	require.NoError(t, err)
	assert.False(t, claimed)

	_, err = s.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, users.ErrUserNotFound)
}

func TestCanceledContextIsRejected(t *testing.T) {
	s := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.GetOccurrence(ctx, uuid.New())
	assert.True(t, errors.Is(err, context.Canceled))
}

func mustAppErr(t *testing.T, err error) *apperr.Error {
	t.Helper()
	appErr, ok := apperr.As(err)
	require.True(t, ok, "expected *apperr.Error, got %T", err)
	return appErr
}
