package reconciliation

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"seatflow/internal/orders"
	"seatflow/internal/shared/apperr"
	"seatflow/internal/shared/config"
	"seatflow/internal/shared/utils/response"
	"seatflow/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const maxWebhookBody = 64 << 10

type reconciler interface {
	Reconcile(ctx context.Context, orderID uuid.UUID) (*Result, error)
	ReconcileReference(ctx context.Context, reference string) (*Result, error)
}

type Controller struct {
	service   reconciler
	config    config.PaymentConfig
	validator *validator.Validate
}

func NewController(service reconciler, cfg config.PaymentConfig) *Controller {
	return &Controller{service: service, config: cfg, validator: validator.New()}
}

// ReconcileOrder handles POST /api/v1/orders/:id/reconcile
func (c *Controller) ReconcileOrder(ctx *gin.Context) {
	orderID, err := orders.ParseOrderID(ctx.Param("id"))
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	result, err := c.service.Reconcile(ctx.Request.Context(), orderID)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Order reconciled", toReconcileResponse(result), nil)
}

// PaymentReturn handles GET /api/v1/payments/return?order_id=
// The redirect only tells us which order to look at; the status comes from the provider.
func (c *Controller) PaymentReturn(ctx *gin.Context) {
	rawID := ctx.Query("order_id")
	orderID, err := orders.ParseOrderID(rawID)
	if err != nil {
		ctx.Redirect(http.StatusFound, withQuery(c.config.FailureURL, rawID, "invalid_order"))
		return
	}

	result, err := c.service.Reconcile(ctx.Request.Context(), orderID)
	if err != nil {
		reason := "error"
		if appErr, ok := apperr.As(err); ok {
			reason = appErr.Code
		}
		logger.GetDefault().WithError(err).Warn("payment return reconcile failed", "order_id", rawID)
		ctx.Redirect(http.StatusFound, withQuery(c.config.FailureURL, rawID, reason))
		return
	}

	target := c.config.SuccessURL
	if result.Outcome == OutcomeCanceled {
		target = c.config.CancelURL
	}
	ctx.Redirect(http.StatusFound, withQuery(target, rawID, string(result.Outcome)))
}

// Webhook handles POST /api/v1/payments/webhook
func (c *Controller) Webhook(ctx *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(ctx.Request.Body, maxWebhookBody))
	if err != nil {
		response.RespondError(ctx, apperr.Validation(apperr.CodeInvalidInput, "unreadable body"))
		return
	}
	if !VerifySignature(c.config.WebhookSecret, body, ctx.GetHeader(SignatureHeader)) {
		logger.GetDefault().LogAuthFailure(ctx.Request.Context(), "invalid webhook signature", ctx.ClientIP())
		response.RespondError(ctx, apperr.Unauthorized("invalid webhook signature"))
		return
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		response.RespondError(ctx, apperr.Validation(apperr.CodeInvalidInput, "malformed webhook payload"))
		return
	}
	if err := c.validator.Struct(payload); err != nil {
		response.RespondBindingError(ctx, err)
		return
	}

	var result *Result
	switch {
	case payload.OrderID != "":
		result, err = c.service.Reconcile(ctx.Request.Context(), uuid.MustParse(payload.OrderID))
	case payload.Reference != "":
		result, err = c.service.ReconcileReference(ctx.Request.Context(), payload.Reference)
	default:
		err = apperr.Validation(apperr.CodeInvalidInput, "order_id or client_reference_id is required")
	}
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Webhook processed", toReconcileResponse(result), nil)
}

// withQuery appends the order id and outcome to a frontend URL
func withQuery(target, orderID, status string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	if orderID != "" {
		q.Set("order_id", orderID)
	}
	q.Set("status", status)
	u.RawQuery = q.Encode()
	return u.String()
}
