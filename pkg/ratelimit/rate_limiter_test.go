package ratelimit

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		Enabled:         true,
		WindowDuration:  time.Minute,
		DefaultRequests: 60,
		PublicRequests:  120,
		AuthRequests:    10,
		HoldRequests:    30,
		OrderRequests:   5,
		PaymentRequests: 20,
		AdminRequests:   200,
	}
}

func TestCheckLimitAllowed(t *testing.T) {
	client, mock := redismock.NewClientMock()
	rl := NewRateLimiter(client, testConfig())
	now := time.UnixMilli(1_700_000_000_000)

	mock.ExpectEval(slidingWindowScript, []string{"seatflow:ratelimit:10.0.0.1:hold"},
		now.Add(-time.Minute).UnixMilli(), now.UnixMilli(), 30, int64(60000), "1700000000000000000").
		SetVal([]interface{}{int64(1), int64(29)})

	res, err := rl.checkLimit(context.Background(), buildKey("10.0.0.1", RateLimitTypeHold), 30, now)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 29, res.Remaining)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckLimitExceeded(t *testing.T) {
	client, mock := redismock.NewClientMock()
	rl := NewRateLimiter(client, testConfig())
	now := time.UnixMilli(1_700_000_000_000)

	mock.ExpectEval(slidingWindowScript, []string{"seatflow:ratelimit:10.0.0.1:order"},
		now.Add(-time.Minute).UnixMilli(), now.UnixMilli(), 5, int64(60000), "1700000000000000000").
		SetVal([]interface{}{int64(0), int64(0)})

	res, err := rl.checkLimit(context.Background(), buildKey("10.0.0.1", RateLimitTypeOrder), 5, now)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
}

func TestIsAllowedSkipsRedisWhenDisabledOrWhitelisted(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cfg := testConfig()
	cfg.WhitelistedIPs = []string{"127.0.0.1"}
	rl := NewRateLimiter(client, cfg)

	res, err := rl.IsAllowed(context.Background(), "127.0.0.1", RateLimitTypeOrder)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 5, res.Limit)

	cfg.Enabled = false
	res, err = rl.IsAllowed(context.Background(), "10.1.1.1", RateLimitTypeAuth)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRateLimitType(t *testing.T) {
	cases := []struct {
		method string
		path   string
		want   RateLimitType
	}{
		{http.MethodGet, "/health", RateLimitTypeHealth},
		{http.MethodGet, "/metrics", RateLimitTypeHealth},
		{http.MethodPost, "/api/v1/admin/occurrences", RateLimitTypeAdmin},
		{http.MethodPost, "/api/v1/auth/login", RateLimitTypeAuth},
		{http.MethodPost, "/api/v1/holds", RateLimitTypeHold},
		{http.MethodDelete, "/api/v1/holds", RateLimitTypeHold},
		{http.MethodPost, "/api/v1/orders", RateLimitTypeOrder},
		{http.MethodGet, "/api/v1/orders", RateLimitTypePublic},
		{http.MethodPost, "/api/v1/orders/:id/reconcile", RateLimitTypePayment},
		{http.MethodPost, "/api/v1/payments/webhook", RateLimitTypePayment},
		{http.MethodGet, "/api/v1/occurrences/:occurrenceId/availability", RateLimitTypePublic},
		{http.MethodGet, "/unknown", RateLimitTypeDefault},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, getRateLimitType(tc.method, tc.path), tc.method+" "+tc.path)
	}
}
