package orders

import (
	"seatflow/internal/shared/authtoken"
	"seatflow/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupOrderRoutes configures all order-related routes
func SetupOrderRoutes(rg *gin.RouterGroup, controller *Controller, issuer *authtoken.Issuer) {

	// CHECKOUT (account or guest session)

	checkout := rg.Group("/orders")
	checkout.Use(middleware.BuyerAuth(issuer))
	{
		checkout.POST("", controller.CreateOrder) // POST /api/v1/orders
	}

	// ORDER HISTORY (accounts only)

	history := rg.Group("/orders")
	history.Use(middleware.JWTAuth(issuer), middleware.RequireRoles(middleware.RoleUser, middleware.RoleAdmin))
	{
		history.GET("", controller.ListOrders)   // GET /api/v1/orders
		history.GET("/:id", controller.GetOrder) // GET /api/v1/orders/:id
	}
}

// Key flow:
// 1. Buyer holds seats with POST /holds (guest or account)
// 2. Buyer creates an order with POST /orders, seats become ORDERED
// 3. Buyer pays on the returned payment_url
// 4. The provider redirects to GET /payments/return or calls POST /payments/webhook
// 5. Reconciliation re-checks the provider and marks the order PAID or CANCELED
