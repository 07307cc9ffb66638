package seats

import (
	"context"
	"net/http"

	"seatflow/internal/shared/middleware"
	"seatflow/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type inventory interface {
	Availability(ctx context.Context, occurrenceID uuid.UUID, viewer string) (*AvailabilityView, error)
	CreateOccurrence(ctx context.Context, req CreateOccurrenceRequest) (*OccurrenceResponse, error)
}

type Controller struct {
	service inventory
}

func NewController(service inventory) *Controller {
	return &Controller{service: service}
}

// GetAvailability returns the seat map of an occurrence with lazy expiry applied
func (c *Controller) GetAvailability(ctx *gin.Context) {
	occurrenceID, err := ParseOccurrenceID(ctx.Param("occurrenceId"))
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	viewer, _ := middleware.GetIdentity(ctx)
	view, err := c.service.Availability(ctx.Request.Context(), occurrenceID, viewer)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Availability retrieved successfully", view, nil)
}

func (c *Controller) CreateOccurrence(ctx *gin.Context) {
	var req CreateOccurrenceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondBindingError(ctx, err)
		return
	}

	result, err := c.service.CreateOccurrence(ctx.Request.Context(), req)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Occurrence created successfully", result, nil)
}
