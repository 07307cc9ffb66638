package payments

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyAuthority fails the first n status queries
type flakyAuthority struct {
	MockAuthority
	failures int
	calls    int
	err      error
}

func (f *flakyAuthority) QueryStatus(ctx context.Context, orderRef string) (Status, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", f.err
	}
	return StatusPaid, nil
}

func newTestResilient(inner Authority, maxRetries int) (*Resilient, *[]time.Duration) {
	var waits []time.Duration
	r := NewResilient(inner, NewCircuitBreaker("test", 10, time.Minute), maxRetries, 100*time.Millisecond)
	r.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return r, &waits
}

func TestResilientRetriesWithBackoff(t *testing.T) {
	inner := &flakyAuthority{failures: 2, err: errors.New("timeout")}
	r, waits := newTestResilient(inner, 3)

	status, err := r.QueryStatus(context.Background(), "SF-1")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, status)
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, *waits)
}

func TestResilientGivesUpAfterMaxRetries(t *testing.T) {
	inner := &flakyAuthority{failures: 10, err: errors.New("timeout")}
	r, _ := newTestResilient(inner, 2)

	_, err := r.QueryStatus(context.Background(), "SF-1")
	require.Error(t, err)
	assert.Equal(t, 3, inner.calls)
}

func TestResilientDoesNotRetryClientErrors(t *testing.T) {
	inner := &flakyAuthority{failures: 10, err: &StatusError{Op: "query_status", Code: http.StatusBadRequest}}
	r, _ := newTestResilient(inner, 3)

	_, err := r.QueryStatus(context.Background(), "SF-1")
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestCircuitBreakerTripsAndProbes(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("test", 2, time.Minute)
	cb.now = func() time.Time { return now }

	fail := func() error { return errors.New("down") }
	always := func(error) bool { return true }

	assert.Error(t, cb.Execute(fail, always))
	assert.Equal(t, StateClosed, cb.State())
	assert.Error(t, cb.Execute(fail, always))
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil }, always)
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.False(t, called)

	now = now.Add(time.Minute)
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Execute(func() error { return nil }, always))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerIgnoresUncountedErrors(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, time.Minute)
	never := func(error) bool { return false }

	for i := 0; i < 3; i++ {
		assert.Error(t, cb.Execute(func() error { return errors.New("bad request") }, never))
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestMockAuthority(t *testing.T) {
	ctx := context.Background()
	mock := NewMockAuthority("http://localhost:8080/", false)

	status, err := mock.QueryStatus(ctx, "SF-1")
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, status)

	session, err := mock.CreateSession(ctx, SessionRequest{OrderRef: "SF-1"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/mock-checkout/SF-1", session.URL)

	status, _ = mock.QueryStatus(ctx, "SF-1")
	assert.Equal(t, StatusPending, status)

	mock.SetStatus("SF-1", StatusPaid)
	status, _ = mock.QueryStatus(ctx, "SF-1")
	assert.Equal(t, StatusPaid, status)

	mock.FailNext(ErrUnavailable)
	_, err = mock.QueryStatus(ctx, "SF-1")
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = mock.QueryStatus(ctx, "SF-1")
	assert.NoError(t, err)

	auto := NewMockAuthority("", true)
	_, _ = auto.CreateSession(ctx, SessionRequest{OrderRef: "SF-2"})
	status, _ = auto.QueryStatus(ctx, "SF-2")
	assert.Equal(t, StatusPaid, status)
}
