package holds

import (
	"seatflow/internal/shared/authtoken"
	"seatflow/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupHoldRoutes(rg *gin.RouterGroup, controller *Controller, issuer *authtoken.Issuer) {

	// BUYER ROUTES (account or guest session)

	holds := rg.Group("/holds")
	holds.Use(middleware.BuyerAuth(issuer))
	{
		holds.GET("", controller.GetCart)              // GET /api/v1/holds
		holds.POST("", controller.AcquireHold)         // POST /api/v1/holds
		holds.POST("/extend", controller.ExtendHold)   // POST /api/v1/holds/extend
		holds.POST("/release", controller.ReleaseHold) // POST /api/v1/holds/release
		holds.DELETE("", controller.ReleaseAll)        // DELETE /api/v1/holds
	}

	// ACCOUNT ONLY

	merge := rg.Group("/holds/merge")
	merge.Use(middleware.JWTAuth(issuer))
	{
		merge.POST("", controller.MergeGuestHolds) // POST /api/v1/holds/merge
	}
}
