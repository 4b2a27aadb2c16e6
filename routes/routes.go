package routes

import (
	"checkout-service/controllers"

	"github.com/gin-gonic/gin"
)

// RegisterOrderRoutes sets up the /api routes and the 404 fallback.
func RegisterOrderRoutes(r *gin.Engine, oc *controllers.OrderController) {
	api := r.Group("/api")

	api.POST("/create-order", oc.CreateOrder)
	api.POST("/verify-payment", oc.VerifyPayment)
	api.POST("/update-order-status", oc.UpdateOrderStatus)
	api.GET("/order/:orderId", oc.GetOrder)
	api.GET("/orders/:userId", oc.ListOrders)
	api.GET("/health", oc.Health)

	r.NoRoute(controllers.NotFound)
}
