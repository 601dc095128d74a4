package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dealscout/dealscout/models"
	"github.com/dealscout/dealscout/store"
)

// Health returns a handler for GET /api/v1/health.
// Reports the deal count as a cheap liveness probe of the database;
// status degrades when the database cannot be read.
func Health(st *store.Store, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "healthy"
		count, err := st.Count(c.Request.Context())
		if err != nil {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Deals:   count,
			Version: "0.1.0",
		})
	}
}
