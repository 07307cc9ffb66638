package seats_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"seatflow/internal/seats"
	"seatflow/internal/shared/apperr"
	"seatflow/internal/shared/clock"
	"seatflow/internal/shared/config"
	"seatflow/internal/shared/database/memstore"
	"seatflow/pkg/cache"
	"seatflow/pkg/realtime"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var t0 = time.Date(2026, 5, 10, 19, 0, 0, 0, time.UTC)

type recordingBroadcaster struct {
	mu      sync.Mutex
	updates map[string][]realtime.SeatUpdate
}

func (b *recordingBroadcaster) SeatsChanged(_ context.Context, occurrenceID string, updates []realtime.SeatUpdate) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.updates == nil {
		b.updates = make(map[string][]realtime.SeatUpdate)
	}
	b.updates[occurrenceID] = append(b.updates[occurrenceID], updates...)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{Booking: config.BookingConfig{DefaultCurrency: "EUR", HoldTTL: 15 * time.Minute}}
}

func setup(t *testing.T) (*seats.Service, *memstore.Store, *clock.Fake, *recordingBroadcaster, *seats.Occurrence) {
	t.Helper()
	clk := clock.NewFake(t0)
	store := memstore.New(clk)
	bc := &recordingBroadcaster{}
	svc := seats.NewService(store, cache.NewNop(), bc, clk, testConfig())

	created, err := svc.CreateOccurrence(context.Background(), seats.CreateOccurrenceRequest{
		EventName: "Hamlet",
		HallID:    "h1",
		StartsAt:  t0.Add(72 * time.Hour),
		Categories: []seats.CategoryLayout{
			{Name: "stalls", Price: decimal.NewFromInt(30), RowStart: "A", RowEnd: "A", SeatsPerRow: 4},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, created.TicketCount)
	assert.Equal(t, "EUR", created.Occurrence.Currency)
	return svc, store, clk, bc, created.Occurrence
}

func key(n string) seats.SeatKey {
	return seats.SeatKey{HallID: "h1", Category: "stalls", Row: "A", Number: n}
}

func TestAvailabilityAppliesLazyExpiry(t *testing.T) {
	ctx := context.Background()
	svc, store, clk, _, occ := setup(t)

	tickets, err := svc.ResolveTickets(ctx, occ.ID, []seats.SeatKey{key("1"), key("2")})
	require.NoError(t, err)

	_, err = store.AcquireHold(ctx, tickets[0].ID, "guest:a", t0, t0.Add(15*time.Minute))
	require.NoError(t, err)
	_, err = store.AcquireHold(ctx, tickets[1].ID, "guest:b", t0, t0.Add(5*time.Minute))
	require.NoError(t, err)

	view, err := svc.Availability(ctx, occ.ID, "guest:a")
	require.NoError(t, err)
	assert.Len(t, view.Seats, 4)
	assert.Equal(t, 2, view.Summary[seats.StatusHeld])
	assert.True(t, view.Seats[0].Mine)
	assert.False(t, view.Seats[1].Mine)

	clk.Advance(6 * time.Minute)
	view, err = svc.Availability(ctx, occ.ID, "")
	require.NoError(t, err)
	status, ok := view.StatusOf("h1/stalls/A/2")
	require.True(t, ok)
	assert.Equal(t, seats.StatusFree, status, "a lapsed hold reads as FREE without any sweep")
	assert.Equal(t, 3, view.Summary[seats.StatusFree])
	assert.False(t, view.Seats[0].Mine, "anonymous viewers own nothing")
}

func TestAvailabilityUnknownOccurrence(t *testing.T) {
	svc, _, _, _, _ := setup(t)

	_, err := svc.Availability(context.Background(), uuid.New(), "")
	assert.ErrorIs(t, err, seats.ErrOccurrenceNotFound)
}

func TestResolveTicketsPreservesOrderAndRejectsUnknownSeats(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _, occ := setup(t)

	tickets, err := svc.ResolveTickets(ctx, occ.ID, []seats.SeatKey{key("3"), key("1")})
	require.NoError(t, err)
	assert.Equal(t, "3", tickets[0].Number)
	assert.Equal(t, "1", tickets[1].Number)

	_, err = svc.ResolveTickets(ctx, occ.ID, []seats.SeatKey{key("1"), key("9")})
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeSeatNotFound, appErr.Code)
	assert.Equal(t, "h1/stalls/A/9", appErr.Fields["seat"])
}

func TestSeatsChangedBroadcasts(t *testing.T) {
	svc, _, _, bc, occ := setup(t)

	svc.SeatsChanged(context.Background(), occ.ID, seats.StatusHeld, key("1"), key("2"))
	svc.SeatsChanged(context.Background(), occ.ID, seats.StatusFree)

	updates := bc.updates[occ.ID.String()]
	require.Len(t, updates, 2)
	assert.Equal(t, realtime.SeatUpdate{Seat: "h1/stalls/A/1", Status: "HELD"}, updates[0])
}

// mapCache is an in-process cache.Service; onFetched runs between building
// a value and storing it
type mapCache struct {
	mu        sync.Mutex
	values    map[string][]byte
	counters  map[string]int64
	onFetched func()
}

func newMapCache() *mapCache {
	return &mapCache{values: map[string][]byte{}, counters: map[string]int64{}}
}

func (c *mapCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	raw, ok := c.values[key]
	c.mu.Unlock()
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *mapCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.values[key] = raw
	c.mu.Unlock()
	return nil
}

func (c *mapCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.values, k)
	}
	return nil
}

func (c *mapCache) DeletePattern(context.Context, string) error { return nil }

func (c *mapCache) Exists(_ context.Context, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.values[key]
	return ok
}

func (c *mapCache) Counter(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters[key], nil
}

func (c *mapCache) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[key]++
	return c.counters[key], nil
}

func (c *mapCache) GetOrSet(ctx context.Context, key string, ttl time.Duration, fetcher func() (interface{}, error), dest interface{}) error {
	if err := c.Get(ctx, key, dest); err == nil {
		return nil
	}
	data, err := fetcher()
	if err != nil {
		return err
	}
	if hook := c.onFetched; hook != nil {
		c.onFetched = nil
		hook()
	}
	if err := c.Set(ctx, key, data, ttl); err != nil {
		return err
	}
	raw, _ := json.Marshal(data)
	return json.Unmarshal(raw, dest)
}

func (c *mapCache) Ping(context.Context) error { return nil }

func TestSnapshotBuiltDuringChangeIsNotServed(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(t0)
	store := memstore.New(clk)
	mc := newMapCache()
	svc := seats.NewService(store, mc, realtime.Nop{}, clk, testConfig())

	created, err := svc.CreateOccurrence(ctx, seats.CreateOccurrenceRequest{
		EventName: "Opera",
		HallID:    "h1",
		StartsAt:  t0.Add(24 * time.Hour),
		Categories: []seats.CategoryLayout{
			{Name: "stalls", Price: decimal.NewFromInt(30), RowStart: "A", RowEnd: "A", SeatsPerRow: 2},
		},
	})
	require.NoError(t, err)
	occID := created.Occurrence.ID
	tickets, err := svc.ResolveTickets(ctx, occID, []seats.SeatKey{key("1")})
	require.NoError(t, err)

	// a hold lands after the snapshot was read but before it is cached
	mc.onFetched = func() {
		ok, err := store.AcquireHold(ctx, tickets[0].ID, "guest:1", t0, t0.Add(15*time.Minute))
		require.NoError(t, err)
		require.True(t, ok)
		svc.SeatsChanged(ctx, occID, seats.StatusHeld, key("1"))
	}

	view, err := svc.Availability(ctx, occID, "")
	require.NoError(t, err)
	status, _ := view.StatusOf(key("1").String())
	assert.Equal(t, seats.StatusFree, status, "the racing read sees the old state once")

	view, err = svc.Availability(ctx, occID, "")
	require.NoError(t, err)
	status, _ = view.StatusOf(key("1").String())
	assert.Equal(t, seats.StatusHeld, status)
}

type stubInventory struct {
	view   *seats.AvailabilityView
	err    error
	viewer string
}

func (s *stubInventory) Availability(_ context.Context, occurrenceID uuid.UUID, viewer string) (*seats.AvailabilityView, error) {
	s.viewer = viewer
	if s.err != nil {
		return nil, s.err
	}
	return s.view, nil
}

func (s *stubInventory) CreateOccurrence(context.Context, seats.CreateOccurrenceRequest) (*seats.OccurrenceResponse, error) {
	return &seats.OccurrenceResponse{Occurrence: &seats.Occurrence{ID: uuid.New()}, TicketCount: 1}, nil
}

func serve(controller *seats.Controller, method, path, body string) *httptest.ResponseRecorder {
	engine := gin.New()
	engine.GET("/occurrences/:occurrenceId/availability", controller.GetAvailability)
	engine.POST("/admin/occurrences", controller.CreateOccurrence)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestControllerGetAvailability(t *testing.T) {
	id := uuid.New()
	stub := &stubInventory{view: &seats.AvailabilityView{OccurrenceID: id.String()}}
	controller := seats.NewController(stub)

	w := serve(controller, http.MethodGet, "/occurrences/"+id.String()+"/availability", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, id.String(), body["data"].(map[string]interface{})["occurrence_id"])

	w = serve(controller, http.MethodGet, "/occurrences/not-a-uuid/availability", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	stub.err = seats.ErrOccurrenceNotFound
	w = serve(controller, http.MethodGet, "/occurrences/"+id.String()+"/availability", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestControllerCreateOccurrenceValidatesBody(t *testing.T) {
	controller := seats.NewController(&stubInventory{})

	w := serve(controller, http.MethodPost, "/admin/occurrences", `{"event_name":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(controller, http.MethodPost, "/admin/occurrences", `{
		"event_name": "Hamlet",
		"hall_id": "h1",
		"starts_at": "2026-06-01T19:00:00Z",
		"categories": [{"name": "stalls", "price": "20", "row_start": "A", "row_end": "B", "seats_per_row": 10}]
	}`)
	assert.Equal(t, http.StatusCreated, w.Code)
}
