package holds_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"seatflow/internal/holds"
	"seatflow/internal/seats"
	"seatflow/internal/shared/clock"
	"seatflow/internal/shared/config"
	"seatflow/internal/shared/database/memstore"
	"seatflow/pkg/cache"
	"seatflow/pkg/realtime"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 4, 2, 20, 0, 0, 0, time.UTC)

type fixture struct {
	holds     *holds.Service
	inventory *seats.Service
	store     *memstore.Store
	clock     *clock.Fake
	occ       uuid.UUID
}

func newFixture(t *testing.T, seatsPerRow int) *fixture {
	t.Helper()
	clk := clock.NewFake(t0)
	store := memstore.New(clk)
	cfg := &config.Config{Booking: config.BookingConfig{
		HoldTTL:           15 * time.Minute,
		MaxHoldTTL:        30 * time.Minute,
		ServiceFeePercent: decimal.RequireFromString("2.5"),
		DefaultCurrency:   "EUR",
	}}
	inventory := seats.NewService(store, cache.NewNop(), realtime.Nop{}, clk, cfg)

	created, err := inventory.CreateOccurrence(context.Background(), seats.CreateOccurrenceRequest{
		EventName: "Concert",
		HallID:    "h1",
		StartsAt:  t0.Add(24 * time.Hour),
		Categories: []seats.CategoryLayout{
			{Name: "floor", Price: decimal.NewFromInt(40), RowStart: "A", RowEnd: "A", SeatsPerRow: seatsPerRow},
		},
	})
	require.NoError(t, err)

	return &fixture{
		holds:     holds.NewService(store, inventory, inventory, clk, cfg),
		inventory: inventory,
		store:     store,
		clock:     clk,
		occ:       created.Occurrence.ID,
	}
}

func seat(n string) seats.SeatKey {
	return seats.SeatKey{HallID: "h1", Category: "floor", Row: "A", Number: n}
}

func (f *fixture) status(t *testing.T, n string) seats.Status {
	t.Helper()
	view, err := f.inventory.Availability(context.Background(), f.occ, "")
	require.NoError(t, err)
	status, ok := view.StatusOf(seat(n).String())
	require.True(t, ok)
	return status
}

func TestConcurrentAcquireHasOneWinner(t *testing.T) {
	f := newFixture(t, 1)

	const buyers = 50
	var wins, conflicts int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := f.holds.Acquire(context.Background(), uuid.NewString(), f.occ, seat("1"), 0)
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case errors.Is(err, holds.ErrHoldConflict):
				atomic.AddInt32(&conflicts, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, 1, wins)
	assert.EqualValues(t, buyers-1, conflicts)
}

func TestLapsedHoldCanBeTakenWithoutSweep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)

	hold, err := f.holds.Acquire(ctx, "guest:a", f.occ, seat("1"), 0)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(15*time.Minute), hold.ExpiresAt)
	assert.Equal(t, seats.StatusHeld, f.status(t, "1"))

	_, err = f.holds.Acquire(ctx, "guest:b", f.occ, seat("1"), 0)
	assert.ErrorIs(t, err, holds.ErrHoldConflict)

	f.clock.Advance(16 * time.Minute)
	assert.Equal(t, seats.StatusFree, f.status(t, "1"))

	_, err = f.holds.Extend(ctx, "guest:a", f.occ, seat("1"), 0)
	assert.ErrorIs(t, err, holds.ErrHoldExpired)

	hold, err = f.holds.Acquire(ctx, "guest:b", f.occ, seat("1"), 0)
	require.NoError(t, err)
	assert.Equal(t, "guest:b", hold.Identity)

	cart, err := f.holds.Cart(ctx, "guest:a")
	require.NoError(t, err)
	assert.Zero(t, cart.Count)
}

func TestReacquireRefreshesOwnHold(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)

	_, err := f.holds.Acquire(ctx, "acct-1", f.occ, seat("1"), 0)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)
	hold, err := f.holds.Acquire(ctx, "acct-1", f.occ, seat("1"), 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(15*time.Minute), hold.ExpiresAt)

	extended, err := f.holds.Extend(ctx, "acct-1", f.occ, seat("1"), 20*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(30*time.Minute), extended.ExpiresAt)
}

func TestAcquireValidatesInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)

	_, err := f.holds.Acquire(ctx, " ", f.occ, seat("1"), 0)
	assert.ErrorIs(t, err, holds.ErrMissingIdentity)

	_, err = f.holds.Acquire(ctx, "acct-1", f.occ, seat("1"), time.Hour)
	assert.ErrorIs(t, err, holds.ErrInvalidTTL)

	_, err = f.holds.Acquire(ctx, "acct-1", f.occ, seat("7"), 0)
	assert.ErrorIs(t, err, seats.ErrSeatNotFound)

	_, err = f.holds.Acquire(ctx, "acct-1", uuid.New(), seat("1"), 0)
	assert.ErrorIs(t, err, seats.ErrOccurrenceNotFound)
}

func TestReleaseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)

	_, err := f.holds.Acquire(ctx, "acct-1", f.occ, seat("1"), 0)
	require.NoError(t, err)

	require.NoError(t, f.holds.Release(ctx, "acct-2", f.occ, seat("1")))
	assert.Equal(t, seats.StatusHeld, f.status(t, "1"), "releasing someone else's hold changes nothing")

	require.NoError(t, f.holds.Release(ctx, "acct-1", f.occ, seat("1")))
	require.NoError(t, f.holds.Release(ctx, "acct-1", f.occ, seat("1")))
	assert.Equal(t, seats.StatusFree, f.status(t, "1"))
}

func TestReleaseAllAndCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3)

	_, err := f.holds.Acquire(ctx, "acct-1", f.occ, seat("1"), 10*time.Minute)
	require.NoError(t, err)
	_, err = f.holds.Acquire(ctx, "acct-1", f.occ, seat("2"), 0)
	require.NoError(t, err)

	cart, err := f.holds.Cart(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, 2, cart.Count)
	assert.Equal(t, "80", cart.Subtotals["EUR"].String())
	assert.Equal(t, "2", cart.ServiceFees["EUR"].String())
	assert.Equal(t, "82", cart.Totals["EUR"].String())
	require.NotNil(t, cart.ExpiresAt)
	assert.Equal(t, t0.Add(10*time.Minute), *cart.ExpiresAt)
	assert.Equal(t, seat("1").String(), cart.Holds[0].Seat)

	released, err := f.holds.ReleaseAll(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, 2, released)

	released, err = f.holds.ReleaseAll(ctx, "acct-1")
	require.NoError(t, err)
	assert.Zero(t, released)
}

func TestTransferMovesActiveHolds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)

	_, err := f.holds.Acquire(ctx, "guest:s1", f.occ, seat("1"), 20*time.Minute)
	require.NoError(t, err)
	_, err = f.holds.Acquire(ctx, "guest:s1", f.occ, seat("2"), 2*time.Minute)
	require.NoError(t, err)

	f.clock.Advance(5 * time.Minute)
	result, err := f.holds.Transfer(ctx, "guest:s1", "acct-9")
	require.NoError(t, err)
	assert.Equal(t, &holds.TransferResult{Moved: 1, Dropped: 1}, result)

	cart, err := f.holds.Cart(ctx, "acct-9")
	require.NoError(t, err)
	require.Equal(t, 1, cart.Count)
	assert.Equal(t, t0.Add(20*time.Minute), cart.Holds[0].ExpiresAt, "transfer keeps the original expiry")

	result, err = f.holds.Transfer(ctx, "acct-9", "acct-9")
	require.NoError(t, err)
	assert.Zero(t, result.Moved)

	result, err = f.holds.Transfer(ctx, "guest:s1", "acct-9")
	require.NoError(t, err)
	assert.Equal(t, &holds.TransferResult{}, result)
}

func TestSweepExpired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3)

	for _, n := range []string{"1", "2"} {
		_, err := f.holds.Acquire(ctx, "acct-1", f.occ, seat(n), time.Minute)
		require.NoError(t, err)
	}
	_, err := f.holds.Acquire(ctx, "acct-1", f.occ, seat("3"), 0)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)
	n, err := f.holds.SweepExpired(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	cart, err := f.holds.Cart(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, 1, cart.Count)
}
