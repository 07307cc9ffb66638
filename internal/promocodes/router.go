package promocodes

import (
	"seatflow/internal/shared/authtoken"
	"seatflow/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupPromocodeRoutes(rg *gin.RouterGroup, controller *Controller, issuer *authtoken.Issuer) {

	// PUBLIC ROUTES

	promocodes := rg.Group("/promocodes")
	{
		promocodes.GET("/:code/validate", controller.ValidatePromocode) // GET /api/v1/promocodes/:code/validate
	}

	// ADMIN ROUTES

	admin := rg.Group("/admin/promocodes")
	admin.Use(middleware.JWTAuth(issuer), middleware.RequireAdmin())
	{
		admin.POST("", controller.UpsertPromocode) // POST /api/v1/admin/promocodes
	}
}
