package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dealscout/dealscout/models"
	"github.com/dealscout/dealscout/store"
	"github.com/dealscout/dealscout/ubereats"
)

// PlatformMenu returns a handler for POST /api/v1/ubereats/menu.
// Fetches a delivery-platform store page and extracts its priced items.
// With import set, extracted items are persisted as deals; per-item
// persistence failures are logged and skipped.
func PlatformMenu(sc *ubereats.Scraper, st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.PlatformMenuRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		start := time.Now()
		items, err := sc.FetchMenu(c.Request.Context(), req.StoreURL, req.Restaurant, req.Location)
		fetchMs := time.Since(start).Milliseconds()
		if err != nil {
			status := http.StatusBadGateway
			detail := &models.ErrorDetail{Code: models.ErrCodeFetchFailed, Message: err.Error()}
			var scrapeErr *models.ScrapeError
			if errors.As(err, &scrapeErr) {
				detail = scrapeErr.ToDetail()
			}
			c.JSON(status, models.PlatformMenuResponse{
				Success: false,
				Items:   []models.MenuItem{},
				Error:   detail,
				Timing:  models.TimingInfo{TotalMs: fetchMs, FetchMs: fetchMs},
			})
			return
		}

		imported, skipped := 0, 0
		if req.Import {
			for _, item := range items {
				if !item.HasPrice() {
					slog.Warn("skipping platform item without usable price",
						"item", item.Name, "location", req.Location)
					skipped++
					continue
				}
				deal := &models.Deal{
					Restaurant: req.Restaurant,
					ItemName:   item.Name,
					Price:      *item.Price,
					DealType:   item.Category,
					SourceURL:  item.SourceURL,
				}
				if err := st.Create(c.Request.Context(), deal); err != nil {
					slog.Warn("failed to import platform item", "item", item.Name, "error", err)
					skipped++
					continue
				}
				imported++
			}
		}

		c.JSON(http.StatusOK, models.PlatformMenuResponse{
			Success:  true,
			Items:    items,
			Imported: imported,
			Skipped:  skipped,
			Timing: models.TimingInfo{
				TotalMs: time.Since(start).Milliseconds(),
				FetchMs: fetchMs,
			},
		})
	}
}
