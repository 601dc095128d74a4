package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dealscout/dealscout/config"
	"github.com/dealscout/dealscout/llm"
	"github.com/dealscout/dealscout/models"
	"github.com/dealscout/dealscout/ranker"
	"github.com/dealscout/dealscout/ratelimit"
	"github.com/dealscout/dealscout/score"
	"github.com/dealscout/dealscout/scraper"
	"github.com/dealscout/dealscout/store"
	"github.com/dealscout/dealscout/ubereats"
	"github.com/dealscout/dealscout/webhook"
)

type failingEstimator struct{}

func (failingEstimator) EstimateNutrition(context.Context, llm.EstimateRequest) (*llm.Nutrition, error) {
	return nil, errors.New("estimator unavailable")
}

func setup(t *testing.T) (*gin.Engine, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	rk := ranker.New(failingEstimator{}, ratelimit.NewGate(50, time.Minute))
	menus := scraper.NewMenuScraper(config.ScraperConfig{MenuTimeout: 5 * time.Second, MaxConcurrent: 2})
	platform := ubereats.NewScraper(config.ScraperConfig{PlatformTimeout: 5 * time.Second})

	r := gin.New()
	r.POST("/deals", CreateDeal(st, rk))
	r.GET("/deals", ListDeals(st))
	r.GET("/deals/top", TopDeals(st))
	r.GET("/deals/:id", GetDeal(st))
	r.PUT("/deals/:id", UpdateDeal(st))
	r.DELETE("/deals/:id", DeleteDeal(st))
	r.POST("/deals/:id/rank", RankDeal(st, rk))
	r.POST("/deals/rank-all", RankAll(st, rk, webhook.NewNotifier(config.WebhookConfig{})))
	r.POST("/scrape/import", ScrapeImport(menus, st, rk))
	r.POST("/ubereats/menu", PlatformMenu(platform, st))
	r.GET("/restaurants", Restaurants(st))
	r.GET("/categories", Categories(st))
	r.GET("/health", Health(st, time.Now()))
	return r, st
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestCreateDeal(t *testing.T) {
	r, _ := setup(t)

	w := doJSON(t, r, http.MethodPost, "/deals", models.DealRequest{
		Restaurant: "McDonald's",
		ItemName:   "Big Mac Meal",
		Price:      9.0,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	deal := decode[models.Deal](t, w)
	if deal.ID == 0 {
		t.Error("deal ID not assigned")
	}
}

func TestCreateDeal_AutoRank(t *testing.T) {
	r, _ := setup(t)

	w := doJSON(t, r, http.MethodPost, "/deals?auto_rank=true", models.DealRequest{
		Restaurant:   "McDonald's",
		ItemName:     "Big Mac Meal",
		Price:        9.0,
		Calories:     models.IntPtr(800),
		ProteinGrams: models.Float64Ptr(30),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	deal := decode[models.Deal](t, w)
	if deal.ValueScore == nil {
		t.Fatal("auto-ranked deal has no value score")
	}
	want := score.Value(800, 30, 9.0)
	if *deal.ValueScore != want.ValueScore {
		t.Errorf("value score = %v, want %v", *deal.ValueScore, want.ValueScore)
	}
	if deal.LastRankedAt == nil {
		t.Error("last_ranked_at not set")
	}
}

func TestCreateDeal_Validation(t *testing.T) {
	r, _ := setup(t)

	w := doJSON(t, r, http.MethodPost, "/deals", gin.H{"restaurant": "McDonald's", "price": 9.0})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing item_name: status = %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/deals", gin.H{"restaurant": "x", "item_name": "y", "price": -1})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("negative price: status = %d", w.Code)
	}
}

func TestGetDeal_NotFound(t *testing.T) {
	r, _ := setup(t)

	if w := doJSON(t, r, http.MethodGet, "/deals/42", nil); w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodGet, "/deals/abc", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("garbage id: status = %d", w.Code)
	}
}

func TestRankDeal_ProvidedNutrition(t *testing.T) {
	r, _ := setup(t)

	w := doJSON(t, r, http.MethodPost, "/deals", models.DealRequest{
		Restaurant:   "McDonald's",
		ItemName:     "Big Mac Meal",
		Price:        9.0,
		Calories:     models.IntPtr(800),
		ProteinGrams: models.Float64Ptr(30),
	})
	deal := decode[models.Deal](t, w)

	w = doJSON(t, r, http.MethodPost, "/deals/1/rank", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	got := decode[models.RankingResponse](t, w)
	want := score.Value(800, 30, 9.0)
	if got.ValueScore != want.ValueScore || got.Estimated || got.UsedDefaults {
		t.Errorf("got %+v, want value %v from provided nutrition", got, want.ValueScore)
	}
	if got.DealID != deal.ID {
		t.Errorf("deal_id = %d", got.DealID)
	}
}

func TestRankDeal_EstimatorDownFallsBackToDefaults(t *testing.T) {
	r, _ := setup(t)

	doJSON(t, r, http.MethodPost, "/deals", models.DealRequest{
		Restaurant: "Wendy's",
		ItemName:   "Mystery Meal",
		Price:      5.0,
	})
	w := doJSON(t, r, http.MethodPost, "/deals/1/rank", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	got := decode[models.RankingResponse](t, w)
	if !got.Estimated || !got.UsedDefaults {
		t.Errorf("flags = (%v, %v), want both true", got.Estimated, got.UsedDefaults)
	}
	if got.Calories != ranker.DefaultCalories || got.ProteinGrams != ranker.DefaultProteinGrams {
		t.Errorf("nutrition = (%d, %v), want defaults", got.Calories, got.ProteinGrams)
	}
}

func TestRankAllAndTop(t *testing.T) {
	r, _ := setup(t)

	for _, d := range []models.DealRequest{
		{Restaurant: "McDonald's", ItemName: "Big Mac Meal", Price: 9.0, Calories: models.IntPtr(1100), ProteinGrams: models.Float64Ptr(40)},
		{Restaurant: "Wendy's", ItemName: "Biggie Bag", Price: 5.0, Calories: models.IntPtr(1200), ProteinGrams: models.Float64Ptr(45)},
	} {
		if w := doJSON(t, r, http.MethodPost, "/deals", d); w.Code != http.StatusCreated {
			t.Fatalf("create: %d", w.Code)
		}
	}

	w := doJSON(t, r, http.MethodPost, "/deals/rank-all", models.RankAllRequest{BatchSize: 2})
	if w.Code != http.StatusOK {
		t.Fatalf("rank-all: %d, body %s", w.Code, w.Body.String())
	}
	resp := decode[models.RankAllResponse](t, w)
	if resp.Ranked != 2 || resp.Skipped != 0 {
		t.Fatalf("ranked/skipped = %d/%d", resp.Ranked, resp.Skipped)
	}

	// A second run with no force finds nothing left to rank.
	resp = decode[models.RankAllResponse](t, doJSON(t, r, http.MethodPost, "/deals/rank-all", nil))
	if resp.Ranked != 0 {
		t.Errorf("re-run ranked %d deals, want 0", resp.Ranked)
	}

	w = doJSON(t, r, http.MethodGet, "/deals/top?limit=1", nil)
	top := decode[struct {
		Deals []models.Deal `json:"deals"`
	}](t, w)
	if len(top.Deals) != 1 || top.Deals[0].ItemName != "Biggie Bag" {
		t.Errorf("top = %+v, want the cheaper bigger meal first", top.Deals)
	}
}

func TestUpdateDealClearsRankingAndDelete(t *testing.T) {
	r, _ := setup(t)

	doJSON(t, r, http.MethodPost, "/deals", models.DealRequest{
		Restaurant: "McDonald's", ItemName: "Big Mac Meal", Price: 9.0,
		Calories: models.IntPtr(800), ProteinGrams: models.Float64Ptr(30),
	})
	doJSON(t, r, http.MethodPost, "/deals/1/rank", nil)

	w := doJSON(t, r, http.MethodPut, "/deals/1", models.DealRequest{
		Restaurant: "McDonald's", ItemName: "Big Mac Meal", Price: 10.5,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update: %d", w.Code)
	}
	updated := decode[models.Deal](t, w)
	if updated.ValueScore != nil {
		t.Error("ranking should be cleared after update")
	}

	if w := doJSON(t, r, http.MethodDelete, "/deals/1", nil); w.Code != http.StatusOK {
		t.Fatalf("delete: %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodGet, "/deals/1", nil); w.Code != http.StatusNotFound {
		t.Fatalf("get after delete: %d", w.Code)
	}
}

func TestHealthAndRestaurants(t *testing.T) {
	r, _ := setup(t)

	doJSON(t, r, http.MethodPost, "/deals", models.DealRequest{Restaurant: "McDonald's", ItemName: "x", Price: 1})

	w := doJSON(t, r, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health: %d", w.Code)
	}
	health := decode[models.HealthResponse](t, w)
	if health.Status != "healthy" || health.Deals != 1 {
		t.Errorf("health = %+v", health)
	}

	names := decode[struct {
		Restaurants []string `json:"restaurants"`
	}](t, doJSON(t, r, http.MethodGet, "/restaurants", nil))
	if len(names.Restaurants) != 1 || names.Restaurants[0] != "McDonald's" {
		t.Errorf("restaurants = %v", names.Restaurants)
	}
}

const platformStatePage = `<!DOCTYPE html>
<html><head>
<script>window.__INITIAL_STATE__ = {"menu":{"sections":[{"title":"Deals","type":"section","items":[{"title":"Big Mac","priceInfo":{"price":579}},{"title":"Free Sauce","priceInfo":{"price":0}}]}]}};</script>
</head><body></body></html>`

func TestPlatformMenu_ImportSkipsUnpricedItems(t *testing.T) {
	r, st := setup(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(platformStatePage))
	}))
	defer srv.Close()

	w := doJSON(t, r, http.MethodPost, "/ubereats/menu", models.PlatformMenuRequest{
		StoreURL:   srv.URL + "/store/mcdonalds/abc123",
		Restaurant: "McDonald's",
		Location:   "20740",
		Import:     true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	resp := decode[models.PlatformMenuResponse](t, w)
	if len(resp.Items) != 2 {
		t.Fatalf("got %d items, want 2: %+v", len(resp.Items), resp.Items)
	}
	if resp.Items[0].Location != "20740" {
		t.Errorf("location = %q, want the request's delivery context", resp.Items[0].Location)
	}
	if resp.Imported != 1 || resp.Skipped != 1 {
		t.Errorf("imported/skipped = %d/%d, want 1/1 (zero-priced item filtered)", resp.Imported, resp.Skipped)
	}

	deals, err := st.List(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("list deals: %v", err)
	}
	if len(deals) != 1 || deals[0].ItemName != "Big Mac" || deals[0].Price != 5.79 {
		t.Errorf("persisted deals = %+v, want only the priced item", deals)
	}
}

const importMenuPage = `<!DOCTYPE html>
<html><head>
<script type="application/ld+json">
{
  "@type": "Menu",
  "hasMenuSection": {
    "@type": "MenuSection",
    "hasMenuItem": [
      {"@type": "MenuItem", "name": "Triple Stack Combo", "category": "Combos", "offers": {"price": "7.99"}},
      {"@type": "MenuItem", "name": "Sauce Packet", "offers": {"price": "0.00"}},
      {"@type": "MenuItem", "name": "Seasonal Special"}
    ]
  }
}
</script>
</head><body></body></html>`

func TestScrapeImport_PersistsOnlyPricedItems(t *testing.T) {
	r, st := setup(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(importMenuPage))
	}))
	defer srv.Close()

	scraper.Targets["test-chain"] = scraper.Target{Restaurant: "Testaurant", URL: srv.URL}
	defer delete(scraper.Targets, "test-chain")

	w := doJSON(t, r, http.MethodPost, "/scrape/import", models.ScrapeImportRequest{
		Slugs: []string{"test-chain"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	resp := decode[models.ScrapeImportResponse](t, w)
	if resp.Total != 3 {
		t.Fatalf("total = %d, want 3 extracted items", resp.Total)
	}
	if resp.Imported != 1 || resp.Ranked != 1 || resp.Skipped != 2 {
		t.Errorf("imported/ranked/skipped = %d/%d/%d, want 1/1/2", resp.Imported, resp.Ranked, resp.Skipped)
	}

	deals, err := st.List(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("list deals: %v", err)
	}
	if len(deals) != 1 || deals[0].ItemName != "Triple Stack Combo" {
		t.Fatalf("persisted deals = %+v, want only the priced item", deals)
	}
	if deals[0].ValueScore == nil {
		t.Error("imported deal was not auto-ranked")
	}

	cats := decode[struct {
		Categories []string `json:"categories"`
	}](t, doJSON(t, r, http.MethodGet, "/categories", nil))
	if len(cats.Categories) != 1 || cats.Categories[0] != "Combos" {
		t.Errorf("categories = %v, want the imported deal's section", cats.Categories)
	}
}

func TestScrapeImport_AutoRankDisabled(t *testing.T) {
	r, st := setup(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(importMenuPage))
	}))
	defer srv.Close()

	scraper.Targets["test-chain"] = scraper.Target{Restaurant: "Testaurant", URL: srv.URL}
	defer delete(scraper.Targets, "test-chain")

	w := doJSON(t, r, http.MethodPost, "/scrape/import", models.ScrapeImportRequest{
		Slugs:    []string{"test-chain"},
		AutoRank: models.BoolPtr(false),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	resp := decode[models.ScrapeImportResponse](t, w)
	if resp.Imported != 1 || resp.Ranked != 0 {
		t.Errorf("imported/ranked = %d/%d, want 1/0", resp.Imported, resp.Ranked)
	}

	deals, _ := st.List(context.Background(), "", 0)
	if len(deals) != 1 || deals[0].ValueScore != nil {
		t.Errorf("deals = %+v, want one unranked deal", deals)
	}
}

func TestScrapeImport_UnknownSlug(t *testing.T) {
	r, _ := setup(t)

	w := doJSON(t, r, http.MethodPost, "/scrape/import", models.ScrapeImportRequest{
		Slugs: []string{"no-such-chain"},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
