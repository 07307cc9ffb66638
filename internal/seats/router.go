package seats

import (
	"seatflow/internal/shared/authtoken"
	"seatflow/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupSeatRoutes(rg *gin.RouterGroup, controller *Controller, issuer *authtoken.Issuer) {

	// PUBLIC AVAILABILITY (identity optional, marks the caller's own holds)

	occurrences := rg.Group("/occurrences")
	occurrences.Use(middleware.OptionalAuth(issuer))
	{
		occurrences.GET("/:occurrenceId/availability", controller.GetAvailability) // GET /api/v1/occurrences/:occurrenceId/availability
	}

	// ADMIN SEAT MAP GENERATION

	admin := rg.Group("/admin/occurrences")
	admin.Use(middleware.JWTAuth(issuer), middleware.RequireAdmin())
	{
		admin.POST("", controller.CreateOccurrence) // POST /api/v1/admin/occurrences
	}
}
