package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func Router(h *Handler) *gin.Engine {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	api := r.Group("/api/v1/inventory")
	{
		api.GET("/sku/:sku", h.GetInventoryBySKU)
		api.POST("/reserve", h.ReserveStock)
		api.POST("/reservations/:reservationId/confirm", h.ConfirmReservation)
		api.POST("/reservations/:reservationId/cancel", h.CancelReservation)
		api.GET("/orders/:orderId/reservations", h.ReservationsByOrder)
		api.POST("/stock/add", h.AddStock)
		api.POST("/availability", h.CheckAvailability)
		api.GET("/low-stock", h.LowStockItems)
		api.GET("/replenishment", h.ItemsNeedingReplenishment)
	}

	return r
}
