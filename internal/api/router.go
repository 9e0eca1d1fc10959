package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"travelmap/internal/planner"
)

// SetupRouter registers the trip API on a new engine.
func SetupRouter(mgr *planner.Manager) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := NewTripHandler(mgr)
	api := r.Group("/api/v1")
	{
		trips := api.Group("/trips")
		{
			trips.GET("", h.ListTrips)
			trips.GET("/:id", h.GetTrip)
			trips.PUT("/:id", h.PutTrip)
			trips.DELETE("/:id", h.DeleteTrip)
			trips.POST("/:id/run", h.RunTrip)
			trips.GET("/:id/report", h.GetReport)
			trips.POST("/:id/clear", h.ClearTimes)
			trips.POST("/:id/queue/:segmentId", h.Enqueue)
			trips.POST("/:id/dequeue/:segmentId", h.Dequeue)
			trips.POST("/:id/move/:segmentId", h.Move)
		}
	}

	return r
}
