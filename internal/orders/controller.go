package orders

import (
	"context"
	"net/http"

	"seatflow/internal/seats"
	"seatflow/internal/shared/apperr"
	"seatflow/internal/shared/middleware"
	"seatflow/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type orderService interface {
	CreateOrder(ctx context.Context, identity string, input CreateOrderInput) (*OrderResponse, error)
	GetOrder(ctx context.Context, accountID, orderID uuid.UUID) (*Order, error)
	ListOrders(ctx context.Context, accountID uuid.UUID, query ListQuery) (*OrderListResponse, error)
}

type Controller struct {
	service orderService
}

func NewController(service orderService) *Controller {
	return &Controller{service: service}
}

// CreateOrder handles POST /api/v1/orders
func (c *Controller) CreateOrder(ctx *gin.Context) {
	var req CreateOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondBindingError(ctx, err)
		return
	}

	occurrenceID, err := seats.ParseOccurrenceID(req.OccurrenceID)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}
	keys, err := seats.ParseSeatKeys(req.Seats)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	// signed-in buyers always order under their own account
	email := req.Email
	if !middleware.IsGuest(ctx) {
		email = middleware.GetUserEmail(ctx)
	}

	identity, _ := middleware.GetIdentity(ctx)
	result, err := c.service.CreateOrder(ctx.Request.Context(), identity, CreateOrderInput{
		OccurrenceID: occurrenceID,
		Seats:        keys,
		PromoCode:    req.PromoCode,
		Email:        email,
	})
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Order created, awaiting payment", result, nil)
}

// GetOrder handles GET /api/v1/orders/:id
func (c *Controller) GetOrder(ctx *gin.Context) {
	accountID, ok := c.accountID(ctx)
	if !ok {
		return
	}
	orderID, err := ParseOrderID(ctx.Param("id"))
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	order, err := c.service.GetOrder(ctx.Request.Context(), accountID, orderID)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Order retrieved successfully", order, nil)
}

// ListOrders handles GET /api/v1/orders
func (c *Controller) ListOrders(ctx *gin.Context) {
	accountID, ok := c.accountID(ctx)
	if !ok {
		return
	}
	var query ListQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		response.RespondBindingError(ctx, err)
		return
	}

	result, err := c.service.ListOrders(ctx.Request.Context(), accountID, query)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Orders retrieved successfully", result, nil)
}

func (c *Controller) accountID(ctx *gin.Context) (uuid.UUID, bool) {
	userID, _ := middleware.GetUserID(ctx)
	accountID, err := uuid.Parse(userID)
	if err != nil {
		response.RespondError(ctx, apperr.Unauthorized("User not authenticated"))
		return uuid.Nil, false
	}
	return accountID, true
}
