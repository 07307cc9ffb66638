package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"seatflow/internal/shared/config"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthority(t *testing.T, handler http.HandlerFunc) *HTTPAuthority {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPAuthority(config.PaymentConfig{
		BaseURL:   srv.URL,
		APIKey:    "sk_test",
		ReturnURL: "https://shop.example/api/v1/payments/return?order_id={ORDER_ID}",
		Timeout:   2 * time.Second,
	}, nil)
}

func TestCreateSessionSendsMinorUnits(t *testing.T) {
	orderID := uuid.New()
	var got createSessionBody

	authority := newTestAuthority(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		assert.Equal(t, "SF-ABC", r.Header.Get("Idempotency-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(sessionPayload{ID: "cs_1", URL: "https://pay.example/cs_1", ExpiresAt: 1900000000})
	})

	session, err := authority.CreateSession(context.Background(), SessionRequest{
		OrderID:  orderID,
		OrderRef: "SF-ABC",
		Amount:   decimal.RequireFromString("93.105"),
		Currency: "EUR",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_1", session.ID)
	require.NotNil(t, session.ExpiresAt)

	assert.EqualValues(t, 9311, got.AmountMinor)
	assert.Equal(t, "eur", got.Currency)
	assert.Equal(t, "https://shop.example/api/v1/payments/return?order_id="+orderID.String(), got.SuccessURL)
	assert.Equal(t, got.SuccessURL, got.CancelURL)
}

func TestQueryStatusMapping(t *testing.T) {
	cases := []struct {
		name    string
		code    int
		payload sessionList
		want    Status
	}{
		{"paid", http.StatusOK, sessionList{Data: []sessionPayload{{Status: "complete", PaymentStatus: "paid"}}}, StatusPaid},
		{"expired", http.StatusOK, sessionList{Data: []sessionPayload{{Status: "expired", PaymentStatus: "unpaid"}}}, StatusExpired},
		{"open", http.StatusOK, sessionList{Data: []sessionPayload{{Status: "open", PaymentStatus: "unpaid"}}}, StatusPending},
		{"complete unpaid", http.StatusOK, sessionList{Data: []sessionPayload{{Status: "complete", PaymentStatus: "unpaid"}}}, StatusUnpaid},
		{"empty list", http.StatusOK, sessionList{}, StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			authority := newTestAuthority(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "SF-1", r.URL.Query().Get("client_reference_id"))
				w.WriteHeader(tc.code)
				_ = json.NewEncoder(w).Encode(tc.payload)
			})
			status, err := authority.QueryStatus(context.Background(), "SF-1")
			require.NoError(t, err)
			assert.Equal(t, tc.want, status)
		})
	}
}

func TestQueryStatusServerErrorIsRetryable(t *testing.T) {
	authority := newTestAuthority(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := authority.QueryStatus(context.Background(), "SF-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.True(t, IsRetryable(err))
}

func TestQueryStatusNotFoundResponseIsAnError(t *testing.T) {
	authority := newTestAuthority(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such route", http.StatusNotFound)
	})

	status, err := authority.QueryStatus(context.Background(), "SF-1")
	require.Error(t, err)
	assert.Empty(t, status)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(ErrBreakerOpen))
	assert.False(t, IsRetryable(&StatusError{Code: http.StatusUnauthorized}))
	assert.True(t, IsRetryable(&StatusError{Code: http.StatusTooManyRequests}))
	assert.True(t, IsRetryable(errors.New("connection reset")))
}
