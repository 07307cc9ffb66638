package orders

import (
	"testing"
	"time"

	"seatflow/internal/seats"
	"seatflow/internal/shared/apperr"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ticket(number, price, currency string) seats.Ticket {
	return seats.Ticket{HallID: "h1", Category: "stalls", Row: "A", Number: number, Price: decimal.RequireFromString(price), Currency: currency}
}

func TestPriceAppliesDiscountThenFee(t *testing.T) {
	tickets := []seats.Ticket{ticket("1", "40.00", "EUR"), ticket("2", "40.00", "EUR"), ticket("3", "19.99", "EUR")}

	q, err := Price(tickets, decimal.NewFromInt(10), decimal.NewFromInt(5))
	require.NoError(t, err)

	assert.Equal(t, "EUR", q.Currency)
	assert.Equal(t, "99.99", q.Subtotal.StringFixed(2))
	assert.Equal(t, "10.00", q.DiscountAmount.StringFixed(2))
	assert.Equal(t, "5.00", q.ServiceFee.StringFixed(2), "the fee ignores the discount")
	assert.Equal(t, "94.99", q.Total.StringFixed(2))
}

func TestPriceClampsPercentages(t *testing.T) {
	tickets := []seats.Ticket{ticket("1", "30", "EUR")}

	q, err := Price(tickets, decimal.NewFromInt(150), decimal.NewFromInt(-3))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(q.DiscountPercent))
	assert.True(t, q.ServiceFee.IsZero())
	assert.True(t, q.Total.IsZero())
}

func TestPriceRejectsMixedCurrencies(t *testing.T) {
	_, err := Price([]seats.Ticket{ticket("1", "10", "EUR"), ticket("2", "10", "USD")}, decimal.Zero, decimal.Zero)
	require.Error(t, err)

	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeCurrencyMismatch, appErr.Code)
	assert.Equal(t, "h1/stalls/A/2", appErr.Fields["seat"])
}

func TestGenerateOrderReference(t *testing.T) {
	ref, err := generateOrderReference(time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Regexp(t, `^ORD-20260501-[A-Z0-9]{6}$`, ref)
}
