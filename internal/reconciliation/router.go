package reconciliation

import (
	"seatflow/internal/shared/authtoken"
	"seatflow/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupReconciliationRoutes configures reconcile triggers
func SetupReconciliationRoutes(rg *gin.RouterGroup, controller *Controller, issuer *authtoken.Issuer) {

	// BUYER TRIGGER

	orderRoutes := rg.Group("/orders")
	orderRoutes.Use(middleware.BuyerAuth(issuer))
	{
		orderRoutes.POST("/:id/reconcile", controller.ReconcileOrder) // POST /api/v1/orders/:id/reconcile
	}

	// PROVIDER CALLBACKS (no bearer token)

	paymentRoutes := rg.Group("/payments")
	{
		paymentRoutes.GET("/return", controller.PaymentReturn) // GET /api/v1/payments/return?order_id=
		paymentRoutes.POST("/webhook", controller.Webhook)     // POST /api/v1/payments/webhook
	}
}
