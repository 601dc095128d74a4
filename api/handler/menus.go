package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dealscout/dealscout/cache"
	"github.com/dealscout/dealscout/models"
	"github.com/dealscout/dealscout/ranker"
	"github.com/dealscout/dealscout/scraper"
	"github.com/dealscout/dealscout/store"
	"github.com/dealscout/dealscout/webhook"
)

// ScrapeMenus returns a handler for POST /api/v1/menus/scrape.
// Scrapes the requested chains (all known chains when none are named)
// concurrently. With max_age set, fresh cached menus are reused and only
// the misses are fetched. Per-chain failures surface as skip reasons.
// The webhook receives a scrape.completed event when any chain was fetched.
func ScrapeMenus(sc *scraper.MenuScraper, cc *cache.Cache, hook *webhook.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ScrapeMenusRequest
		if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
			badRequest(c, err.Error())
			return
		}

		slugs := req.Slugs
		if len(slugs) == 0 {
			slugs = scraper.Slugs()
		}
		for _, slug := range slugs {
			if _, ok := scraper.Targets[slug]; !ok {
				badRequest(c, "unknown restaurant slug "+slug)
				return
			}
		}

		start := time.Now()
		results := make([]models.RestaurantResult, len(slugs))

		// Serve cache hits and collect the misses to scrape.
		var missSlugs []string
		var missIdx []int
		for i, slug := range slugs {
			target := scraper.Targets[slug]
			if items, hit := cc.Get(target.Restaurant, target.URL, req.MaxAge); hit {
				results[i] = models.RestaurantResult{
					Slug:        slug,
					Restaurant:  target.Restaurant,
					Items:       items,
					CacheStatus: "hit",
				}
				continue
			}
			missSlugs = append(missSlugs, slug)
			missIdx = append(missIdx, i)
		}

		fetchStart := time.Now()
		var fetchMs int64
		if len(missSlugs) > 0 {
			scraped := sc.ScrapeAll(c.Request.Context(), missSlugs)
			fetchMs = time.Since(fetchStart).Milliseconds()
			for j, res := range scraped {
				if res.SkipReason == "" {
					target := scraper.Targets[res.Slug]
					cc.Set(target.Restaurant, target.URL, res.Items)
					res.CacheStatus = "miss"
				}
				results[missIdx[j]] = res
			}
		}

		total := 0
		for _, res := range results {
			total += len(res.Items)
		}

		if len(missSlugs) > 0 {
			hook.SendAsync(&webhook.Event{
				Type:      webhook.EventScrapeCompleted,
				RunID:     "scrape-" + randomID(),
				Timestamp: time.Now().Unix(),
				Data: gin.H{
					"chains":      len(slugs),
					"fetched":     len(missSlugs),
					"total_items": total,
				},
			})
		}

		c.JSON(http.StatusOK, models.ScrapeMenusResponse{
			Success: true,
			Results: results,
			Total:   total,
			Timing: models.TimingInfo{
				TotalMs: time.Since(start).Milliseconds(),
				FetchMs: fetchMs,
			},
		})
	}
}

// ScrapeImport returns a handler for POST /api/v1/scrape/import.
// Scrapes the requested chains and persists every priced item as a deal,
// upserting by restaurant, item name, and source URL. Items without a
// name or a positive price are skipped. Unless auto_rank is false, each
// persisted deal is scored immediately; a per-deal ranking failure is
// logged and counted as skipped without blocking the rest of the run.
func ScrapeImport(sc *scraper.MenuScraper, st *store.Store, rk *ranker.Ranker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ScrapeImportRequest
		if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
			badRequest(c, err.Error())
			return
		}

		slugs := req.Slugs
		if len(slugs) == 0 {
			slugs = scraper.Slugs()
		}
		for _, slug := range slugs {
			if _, ok := scraper.Targets[slug]; !ok {
				badRequest(c, "unknown restaurant slug "+slug)
				return
			}
		}

		start := time.Now()
		results := sc.ScrapeAll(c.Request.Context(), slugs)
		fetchMs := time.Since(start).Milliseconds()

		imported, ranked, skipped, total := 0, 0, 0, 0
		for _, res := range results {
			total += len(res.Items)
			for _, item := range res.Items {
				if item.Name == "" || !item.HasPrice() {
					skipped++
					continue
				}
				deal := &models.Deal{
					Restaurant:   item.Restaurant,
					ItemName:     item.Name,
					Price:        *item.Price,
					DealType:     item.Category,
					SourceURL:    item.SourceURL,
					Calories:     item.Calories,
					ProteinGrams: item.ProteinGrams,
				}
				if err := st.Create(c.Request.Context(), deal); err != nil {
					slog.Warn("import failed for scraped item",
						"restaurant", item.Restaurant, "item", item.Name, "error", err)
					skipped++
					continue
				}
				imported++

				if !req.RankImports() {
					continue
				}
				scored := rk.Score(c.Request.Context(), rankerInput(deal))
				if err := st.SaveRanking(c.Request.Context(), deal.ID, scored.ScoreResult, scored.Estimated); err != nil {
					slog.Warn("ranking failed for imported deal",
						"deal_id", deal.ID, "item", item.Name, "error", err)
					skipped++
					continue
				}
				ranked++
			}
		}

		c.JSON(http.StatusOK, models.ScrapeImportResponse{
			Success:  true,
			Imported: imported,
			Ranked:   ranked,
			Skipped:  skipped,
			Total:    total,
			Timing: models.TimingInfo{
				TotalMs: time.Since(start).Milliseconds(),
				FetchMs: fetchMs,
			},
		})
	}
}
