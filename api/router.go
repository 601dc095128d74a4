package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dealscout/dealscout/api/handler"
	"github.com/dealscout/dealscout/api/middleware"
	"github.com/dealscout/dealscout/cache"
	"github.com/dealscout/dealscout/config"
	"github.com/dealscout/dealscout/ranker"
	"github.com/dealscout/dealscout/scraper"
	"github.com/dealscout/dealscout/store"
	"github.com/dealscout/dealscout/ubereats"
	"github.com/dealscout/dealscout/webhook"
)

// Deps bundles the constructed components the routes need.
type Deps struct {
	Store       *store.Store
	Ranker      *ranker.Ranker
	Menus       *scraper.MenuScraper
	Platform    *ubereats.Scraper
	StoreSearch *ubereats.StoreSearch
	Cache       *cache.Cache
	Config      *config.Config
	StartTime   time.Time
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(d Deps) *gin.Engine {
	gin.SetMode(d.Config.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health — no auth required.
	v1.GET("/health", handler.Health(d.Store, d.StartTime))

	// Protected group — auth + rate limit.
	protected := v1.Group("")
	if d.Config.Auth.Enabled {
		protected.Use(middleware.Auth(d.Config.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(d.Config.RateLimit))

	// Deals
	protected.POST("/deals", handler.CreateDeal(d.Store, d.Ranker))
	protected.GET("/deals", handler.ListDeals(d.Store))
	protected.GET("/deals/top", handler.TopDeals(d.Store))
	protected.GET("/deals/:id", handler.GetDeal(d.Store))
	protected.PUT("/deals/:id", handler.UpdateDeal(d.Store))
	protected.DELETE("/deals/:id", handler.DeleteDeal(d.Store))

	hook := webhook.NewNotifier(d.Config.Webhook)

	// Ranking
	protected.POST("/deals/:id/rank", handler.RankDeal(d.Store, d.Ranker))
	protected.POST("/deals/rank-all", handler.RankAll(d.Store, d.Ranker, hook))

	// Extraction
	protected.POST("/menus/scrape", handler.ScrapeMenus(d.Menus, d.Cache, hook))
	protected.POST("/scrape/import", handler.ScrapeImport(d.Menus, d.Store, d.Ranker))
	protected.POST("/stores/search", handler.SearchStores(d.StoreSearch))
	protected.POST("/ubereats/menu", handler.PlatformMenu(d.Platform, d.Store))

	// Catalog
	protected.GET("/restaurants", handler.Restaurants(d.Store))
	protected.GET("/categories", handler.Categories(d.Store))

	return r
}
