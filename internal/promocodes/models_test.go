package promocodes

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func intPtr(n int) *int { return &n }

func TestEvaluateRuleOrder(t *testing.T) {
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	occ := uuid.New()

	// expired, over the cap and out of scope at once: expiry is reported first
	promo := &Promocode{
		Code:            "ALL",
		DiscountPercent: decimal.NewFromInt(10),
		Active:          true,
		ExpiresAt:       &past,
		MaxTickets:      intPtr(1),
		Scopes:          []PromocodeScope{{OccurrenceID: uuid.New()}},
	}
	_, reason := Evaluate(promo, 3, occ, now)
	assert.Equal(t, ReasonExpired, reason)

	promo.ExpiresAt = nil
	_, reason = Evaluate(promo, 3, occ, now)
	assert.Equal(t, ReasonExceedsLimit, reason)

	promo.MaxTickets = nil
	_, reason = Evaluate(promo, 3, occ, now)
	assert.Equal(t, ReasonOutOfScope, reason)

	promo.Scopes = append(promo.Scopes, PromocodeScope{OccurrenceID: occ})
	pct, reason := Evaluate(promo, 3, occ, now)
	assert.Empty(t, reason)
	assert.True(t, decimal.NewFromInt(10).Equal(pct))

	promo.Active = false
	_, reason = Evaluate(promo, 3, occ, now)
	assert.Equal(t, ReasonNotFound, reason)

	_, reason = Evaluate(nil, 1, occ, now)
	assert.Equal(t, ReasonNotFound, reason)
}

func TestEvaluateBoundaries(t *testing.T) {
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	promo := &Promocode{DiscountPercent: decimal.NewFromInt(20), Active: true, ExpiresAt: &now, MaxTickets: intPtr(2)}

	_, reason := Evaluate(promo, 2, uuid.New(), now)
	assert.Equal(t, ReasonExpired, reason, "expiry instant is exclusive")

	later := now.Add(time.Second)
	promo.ExpiresAt = &later
	_, reason = Evaluate(promo, 2, uuid.New(), now)
	assert.Empty(t, reason, "the cap is inclusive")
}

func TestClampPercent(t *testing.T) {
	assert.True(t, decimal.Zero.Equal(ClampPercent(decimal.NewFromInt(-5))))
	assert.True(t, decimal.NewFromInt(100).Equal(ClampPercent(decimal.NewFromInt(150))))
	assert.True(t, decimal.RequireFromString("12.5").Equal(ClampPercent(decimal.RequireFromString("12.5"))))
}

func TestNormalizeAndRejectionReason(t *testing.T) {
	assert.Equal(t, "SPRING24", Normalize("  spring24 "))

	reason, ok := RejectionReason(Rejected(ReasonOutOfScope))
	assert.True(t, ok)
	assert.Equal(t, ReasonOutOfScope, reason)

	_, ok = RejectionReason(assert.AnError)
	assert.False(t, ok)
}
