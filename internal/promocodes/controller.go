package promocodes

import (
	"context"
	"net/http"

	"seatflow/internal/seats"
	"seatflow/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type promoService interface {
	Validate(ctx context.Context, code string, ticketCount int, occurrenceID uuid.UUID) (*Validation, error)
	Upsert(ctx context.Context, req UpsertPromocodeRequest) (*Promocode, error)
}

type Controller struct {
	service promoService
}

func NewController(service promoService) *Controller {
	return &Controller{service: service}
}

func (c *Controller) ValidatePromocode(ctx *gin.Context) {
	var query ValidateQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		response.RespondBindingError(ctx, err)
		return
	}
	occurrenceID, err := seats.ParseOccurrenceID(query.OccurrenceID)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	result, err := c.service.Validate(ctx.Request.Context(), ctx.Param("code"), query.Tickets, occurrenceID)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Promocode is valid", result, nil)
}

func (c *Controller) UpsertPromocode(ctx *gin.Context) {
	var req UpsertPromocodeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondBindingError(ctx, err)
		return
	}

	promo, err := c.service.Upsert(ctx.Request.Context(), req)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Promocode saved successfully", promo, nil)
}
