package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dealscout/dealscout/models"
	"github.com/dealscout/dealscout/ubereats"
)

// SearchStores returns a handler for POST /api/v1/stores/search.
// Zero matches and geocoding failures are reported as a skip reason with
// HTTP 200; the search itself never errors.
func SearchStores(search *ubereats.StoreSearch) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.StoreSearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		start := time.Now()
		stores, skip := search.Search(c.Request.Context(), req)
		if stores == nil {
			stores = []models.Store{}
		}

		c.JSON(http.StatusOK, models.StoreSearchResponse{
			Success:    skip == "",
			Stores:     stores,
			SkipReason: skip,
			Timing:     models.TimingInfo{TotalMs: time.Since(start).Milliseconds()},
		})
	}
}
