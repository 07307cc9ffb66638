package holds

import (
	"context"
	"net/http"
	"time"

	"seatflow/internal/seats"
	"seatflow/internal/shared/apperr"
	"seatflow/internal/shared/authtoken"
	"seatflow/internal/shared/middleware"
	"seatflow/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type holdManager interface {
	Acquire(ctx context.Context, identity string, occurrenceID uuid.UUID, key seats.SeatKey, ttl time.Duration) (*Hold, error)
	Extend(ctx context.Context, identity string, occurrenceID uuid.UUID, key seats.SeatKey, ttl time.Duration) (*Hold, error)
	Release(ctx context.Context, identity string, occurrenceID uuid.UUID, key seats.SeatKey) error
	ReleaseAll(ctx context.Context, identity string) (int, error)
	Transfer(ctx context.Context, from, to string) (*TransferResult, error)
	Cart(ctx context.Context, identity string) (*Cart, error)
}

type guestTokenParser interface {
	ParseType(tokenString string, types ...string) (*authtoken.Claims, error)
}

type Controller struct {
	service holdManager
	tokens  guestTokenParser
}

func NewController(service holdManager, tokens guestTokenParser) *Controller {
	return &Controller{service: service, tokens: tokens}
}

func (c *Controller) GetCart(ctx *gin.Context) {
	identity, _ := middleware.GetIdentity(ctx)
	cart, err := c.service.Cart(ctx.Request.Context(), identity)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Holds retrieved successfully", cart, nil)
}

func (c *Controller) AcquireHold(ctx *gin.Context) {
	identity, occurrenceID, key, req, ok := c.bindHoldRequest(ctx)
	if !ok {
		return
	}
	hold, err := c.service.Acquire(ctx.Request.Context(), identity, occurrenceID, key, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusCreated, "Seat held successfully", hold, nil)
}

func (c *Controller) ExtendHold(ctx *gin.Context) {
	identity, occurrenceID, key, req, ok := c.bindHoldRequest(ctx)
	if !ok {
		return
	}
	hold, err := c.service.Extend(ctx.Request.Context(), identity, occurrenceID, key, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Hold extended successfully", hold, nil)
}

func (c *Controller) ReleaseHold(ctx *gin.Context) {
	identity, occurrenceID, key, _, ok := c.bindHoldRequest(ctx)
	if !ok {
		return
	}
	if err := c.service.Release(ctx.Request.Context(), identity, occurrenceID, key); err != nil {
		response.RespondError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Hold released", nil, nil)
}

func (c *Controller) ReleaseAll(ctx *gin.Context) {
	identity, _ := middleware.GetIdentity(ctx)
	released, err := c.service.ReleaseAll(ctx.Request.Context(), identity)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Holds released", gin.H{"released": released}, nil)
}

// MergeGuestHolds moves the holds of a guest session into the signed-in account
func (c *Controller) MergeGuestHolds(ctx *gin.Context) {
	var req MergeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondBindingError(ctx, err)
		return
	}
	guest, err := c.tokens.ParseType(req.GuestToken, authtoken.TypeGuest)
	if err != nil {
		response.RespondError(ctx, apperr.Validation(apperr.CodeInvalidInput, "invalid guest token"))
		return
	}

	identity, _ := middleware.GetIdentity(ctx)
	result, err := c.service.Transfer(ctx.Request.Context(), guest.Identity(), identity)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Guest holds merged", result, nil)
}

func (c *Controller) bindHoldRequest(ctx *gin.Context) (string, uuid.UUID, seats.SeatKey, HoldRequest, bool) {
	var req HoldRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondBindingError(ctx, err)
		return "", uuid.Nil, seats.SeatKey{}, req, false
	}
	occurrenceID, err := seats.ParseOccurrenceID(req.OccurrenceID)
	if err != nil {
		response.RespondError(ctx, err)
		return "", uuid.Nil, seats.SeatKey{}, req, false
	}
	key, err := seats.ParseSeatKey(req.Seat)
	if err != nil {
		response.RespondError(ctx, err)
		return "", uuid.Nil, seats.SeatKey{}, req, false
	}
	identity, _ := middleware.GetIdentity(ctx)
	return identity, occurrenceID, key, req, true
}
