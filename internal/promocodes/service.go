package promocodes

import (
	"context"
	"errors"
	"time"

	"seatflow/internal/shared/apperr"
	"seatflow/internal/shared/clock"
	"seatflow/internal/shared/constants"
	"seatflow/pkg/cache"
	"seatflow/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service validates promocodes and serves admin upserts
type Service struct {
	repo         Repository
	cacheService cache.Service
	clock        clock.Clock
}

func NewService(repo Repository, cacheService cache.Service, clk clock.Clock) *Service {
	if cacheService == nil {
		cacheService = cache.NewNop()
	}
	return &Service{repo: repo, cacheService: cacheService, clock: clk}
}

// Validate checks code against the order being placed. It reads only.
func (s *Service) Validate(ctx context.Context, code string, ticketCount int, occurrenceID uuid.UUID) (*Validation, error) {
	code = Normalize(code)
	if code == "" {
		return nil, Rejected(ReasonNotFound)
	}

	var promo Promocode
	err := s.cacheService.GetOrSet(ctx, constants.BuildPromocodeKey(code), constants.TTL_PROMOCODE, func() (interface{}, error) {
		return s.repo.GetByCode(ctx, code)
	}, &promo)
	if err != nil {
		if errors.Is(err, ErrPromocodeNotFound) {
			return nil, Rejected(ReasonNotFound)
		}
		return nil, apperr.Transient(apperr.CodeStoreUnavailable, "failed to load promocode", err)
	}

	pct, reason := Evaluate(&promo, ticketCount, occurrenceID, s.clock.Now())
	if reason != "" {
		return nil, Rejected(reason)
	}
	return &Validation{Code: promo.Code, DiscountPercent: pct, Eligible: true}, nil
}

// Evaluate applies the rules in order and returns the clamped discount or
// the first rejection reason.
func Evaluate(promo *Promocode, ticketCount int, occurrenceID uuid.UUID, now time.Time) (decimal.Decimal, string) {
	if promo == nil || !promo.Active {
		return decimal.Zero, ReasonNotFound
	}
	if promo.ExpiresAt != nil && !now.Before(*promo.ExpiresAt) {
		return decimal.Zero, ReasonExpired
	}
	if promo.MaxTickets != nil && ticketCount > *promo.MaxTickets {
		return decimal.Zero, ReasonExceedsLimit
	}
	if !promo.InScope(occurrenceID) {
		return decimal.Zero, ReasonOutOfScope
	}
	return ClampPercent(promo.DiscountPercent), ""
}

// Upsert creates or replaces a promocode
func (s *Service) Upsert(ctx context.Context, req UpsertPromocodeRequest) (*Promocode, error) {
	code := Normalize(req.Code)
	if code == "" {
		return nil, apperr.Validation(apperr.CodeInvalidInput, "code is required")
	}
	if req.DiscountPercent.IsNegative() || req.DiscountPercent.GreaterThan(hundred) {
		return nil, apperr.Validation(apperr.CodeInvalidInput, "discount_percent must be between 0 and 100")
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	promo := &Promocode{
		ID:              uuid.New(),
		Code:            code,
		DiscountPercent: req.DiscountPercent,
		Active:          active,
		ExpiresAt:       req.ExpiresAt,
		MaxTickets:      req.MaxTickets,
	}
	for _, raw := range req.OccurrenceIDs {
		occurrenceID, err := uuid.Parse(raw)
		if err != nil {
			return nil, apperr.Validation(apperr.CodeInvalidInput, "invalid occurrence ID").WithField("occurrence_id", raw)
		}
		promo.Scopes = append(promo.Scopes, PromocodeScope{OccurrenceID: occurrenceID})
	}

	if err := s.repo.Upsert(ctx, promo); err != nil {
		return nil, apperr.Transient(apperr.CodeStoreUnavailable, "failed to save promocode", err)
	}
	if err := s.cacheService.Delete(ctx, constants.BuildPromocodeKey(code)); err != nil {
		logger.GetDefault().ErrorWithContext(ctx, "failed to invalidate promocode cache", err, map[string]interface{}{"code": code})
	}
	return promo, nil
}
