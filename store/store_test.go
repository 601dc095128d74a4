package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dealscout/dealscout/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleDeal() *models.Deal {
	return &models.Deal{
		Restaurant:  "McDonald's",
		ItemName:    "Big Mac Meal",
		Price:       9.0,
		Description: "Burger, fries, drink",
		DealType:    "combo",
		SourceURL:   "https://example.com/deals/1",
	}
}

func TestCreateAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	deal := sampleDeal()
	if err := s.Create(ctx, deal); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if deal.ID == 0 || deal.CreatedAt == 0 {
		t.Fatalf("Create did not fill identity fields: %+v", deal)
	}

	got, err := s.Get(ctx, deal.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ItemName != "Big Mac Meal" || got.Price != 9.0 {
		t.Errorf("got %+v", got)
	}
	if got.ValueScore != nil {
		t.Errorf("new deal must be unranked, got score %v", *got.ValueScore)
	}
}

func TestCreate_SameIdentityUpserts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := sampleDeal()
	if err := s.Create(ctx, first); err != nil {
		t.Fatalf("Create: %v", err)
	}

	second := sampleDeal()
	second.Price = 7.5
	if err := s.Create(ctx, second); err != nil {
		t.Fatalf("Create upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("upsert produced new ID %d, want %d", second.ID, first.ID)
	}

	deals, err := s.List(ctx, "", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(deals) != 1 {
		t.Fatalf("got %d deals, want 1", len(deals))
	}
	if deals[0].Price != 7.5 {
		t.Errorf("price = %v, want updated 7.5", deals[0].Price)
	}
}

func TestGet_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get(context.Background(), 99)
	var scrapeErr *models.ScrapeError
	if !errors.As(err, &scrapeErr) || scrapeErr.Code != models.ErrCodeNotFound {
		t.Fatalf("got %v, want NOT_FOUND", err)
	}
}

func TestSaveRankingAndTop(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	scores := []float64{55.3, 72.1, 40.0}
	for i, v := range scores {
		deal := sampleDeal()
		deal.ItemName = deal.ItemName + string(rune('A'+i))
		if err := s.Create(ctx, deal); err != nil {
			t.Fatalf("Create: %v", err)
		}
		res := models.ScoreResult{
			ValueScore:      v,
			SatietyScore:    60,
			PricePerCalorie: 0.0113,
			Calories:        800,
			ProteinGrams:    30,
		}
		if err := s.SaveRanking(ctx, deal.ID, res, true); err != nil {
			t.Fatalf("SaveRanking: %v", err)
		}
	}

	top, err := s.Top(ctx, "", 2)
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("got %d deals, want 2", len(top))
	}
	if *top[0].ValueScore != 72.1 || *top[1].ValueScore != 55.3 {
		t.Errorf("order = %v, %v", *top[0].ValueScore, *top[1].ValueScore)
	}
	if !top[0].NutritionByAI {
		t.Error("nutrition_estimated flag not persisted")
	}
	if top[0].LastRankedAt == nil {
		t.Error("last_ranked_at not set")
	}
}

func TestUpdateClearsRanking(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	deal := sampleDeal()
	if err := s.Create(ctx, deal); err != nil {
		t.Fatalf("Create: %v", err)
	}
	res := models.ScoreResult{ValueScore: 55.3, Calories: 800, ProteinGrams: 30}
	if err := s.SaveRanking(ctx, deal.ID, res, false); err != nil {
		t.Fatalf("SaveRanking: %v", err)
	}

	deal.Price = 12.0
	if err := s.Update(ctx, deal); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := s.Get(ctx, deal.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Price != 12.0 {
		t.Errorf("price = %v", got.Price)
	}
	if got.ValueScore != nil || got.LastRankedAt != nil {
		t.Errorf("ranking not cleared: %+v", got)
	}
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	deal := sampleDeal()
	if err := s.Create(ctx, deal); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Delete(ctx, deal.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, deal.ID); err == nil {
		t.Fatal("second delete should report NOT_FOUND")
	}
}

func TestRankable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ranked := sampleDeal()
	if err := s.Create(ctx, ranked); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.SaveRanking(ctx, ranked.ID, models.ScoreResult{ValueScore: 50, Calories: 600, ProteinGrams: 20}, true); err != nil {
		t.Fatalf("SaveRanking: %v", err)
	}

	unranked := sampleDeal()
	unranked.ItemName = "McChicken"
	if err := s.Create(ctx, unranked); err != nil {
		t.Fatalf("Create: %v", err)
	}

	deals, err := s.Rankable(ctx, false)
	if err != nil {
		t.Fatalf("Rankable: %v", err)
	}
	if len(deals) != 1 || deals[0].ID != unranked.ID {
		t.Errorf("got %+v, want only the unranked deal", deals)
	}

	all, err := s.Rankable(ctx, true)
	if err != nil {
		t.Fatalf("Rankable force: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("force: got %d deals, want 2", len(all))
	}
}

func TestStaleAndRestaurants(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	deal := sampleDeal()
	if err := s.Create(ctx, deal); err != nil {
		t.Fatalf("Create: %v", err)
	}
	other := sampleDeal()
	other.Restaurant = "Wendy's"
	other.ItemName = "Baconator"
	if err := s.Create(ctx, other); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.SaveRanking(ctx, deal.ID, models.ScoreResult{ValueScore: 50, Calories: 600, ProteinGrams: 20}, true); err != nil {
		t.Fatalf("SaveRanking: %v", err)
	}

	// A just-ranked deal is not stale for any positive max age.
	stale, err := s.Stale(ctx, time.Hour, 10)
	if err != nil {
		t.Fatalf("Stale: %v", err)
	}
	if len(stale) != 0 {
		t.Errorf("got %d stale deals, want 0", len(stale))
	}

	// With a negative max age the cutoff is in the future, so every
	// ranked deal qualifies; unranked deals never do.
	stale, err = s.Stale(ctx, -time.Hour, 10)
	if err != nil {
		t.Fatalf("Stale: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != deal.ID {
		t.Errorf("got %+v, want only the ranked deal", stale)
	}

	names, err := s.Restaurants(ctx)
	if err != nil {
		t.Fatalf("Restaurants: %v", err)
	}
	if len(names) != 2 || names[0] != "McDonald's" || names[1] != "Wendy's" {
		t.Errorf("restaurants = %v", names)
	}
}
