package ubereats

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dealscout/dealscout/config"
	"github.com/dealscout/dealscout/fetch"
	"github.com/dealscout/dealscout/geocode"
	"github.com/dealscout/dealscout/models"
)

func testSearch(t *testing.T, searchHTML string) *StoreSearch {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/search") {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(searchHTML))
	}))
	t.Cleanup(srv.Close)

	geoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"lat":"38.9897","lon":"-76.9378"}]`))
	}))
	t.Cleanup(geoSrv.Close)

	return &StoreSearch{
		client:   fetch.NewBrowserClient(5*time.Second, ""),
		geocoder: geocode.NewClient(config.GeocoderConfig{BaseURL: geoSrv.URL, Timeout: 5 * time.Second}),
		baseURL:  srv.URL,
	}
}

func coords() (*float64, *float64) {
	return models.Float64Ptr(38.9897), models.Float64Ptr(-76.9378)
}

func TestSearch_AnchorsDedupAndCap(t *testing.T) {
	var b strings.Builder
	for i := 1; i <= 15; i++ {
		fmt.Fprintf(&b, `<a href="/store/mcdonalds-branch-%d/id-%d">store</a>`, i, i)
	}
	// Duplicate of the first ID and a non-matching chain; neither may
	// add to the result.
	b.WriteString(`<a href="/store/mcdonalds-branch-1/id-1">dup</a>`)
	b.WriteString(`<a href="/store/burger-king-town/bk-1">other</a>`)

	lat, lon := coords()
	stores, skip := testSearch(t, b.String()).Search(context.Background(), models.StoreSearchRequest{
		Restaurant: "McDonald's",
		Location:   "20740",
		Latitude:   lat,
		Longitude:  lon,
	})
	if skip != "" {
		t.Fatalf("unexpected skip reason %q", skip)
	}
	if len(stores) != 10 {
		t.Fatalf("got %d stores, want exactly 10", len(stores))
	}
	for i, store := range stores {
		want := fmt.Sprintf("id-%d", i+1)
		if store.StoreID != want {
			t.Errorf("stores[%d].StoreID = %q, want %q (first-seen order)", i, store.StoreID, want)
		}
	}
	if !strings.Contains(stores[0].StoreURL, "diningMode=DELIVERY") || !strings.Contains(stores[0].StoreURL, "pl=") {
		t.Errorf("store URL %q missing delivery mode or location token", stores[0].StoreURL)
	}
	if stores[0].Name != "Mcdonalds Branch 1" {
		t.Errorf("name = %q", stores[0].Name)
	}
}

func TestSearch_SlugFallback(t *testing.T) {
	lat, lon := coords()
	stores, skip := testSearch(t, `<html><body>no links here</body></html>`).Search(context.Background(), models.StoreSearchRequest{
		Restaurant: "Taco Bell",
		Location:   "College Park, MD",
		Latitude:   lat,
		Longitude:  lon,
	})
	if skip != "" {
		t.Fatalf("unexpected skip reason %q", skip)
	}
	if len(stores) != 1 {
		t.Fatalf("got %d stores, want 1 from the slug table", len(stores))
	}
	if stores[0].StoreID != "taco-bell" {
		t.Errorf("StoreID = %q, want taco-bell", stores[0].StoreID)
	}
	if !strings.Contains(stores[0].StoreURL, "/store/taco-bell?") {
		t.Errorf("StoreURL = %q", stores[0].StoreURL)
	}
}

func TestSearch_LegacyStateFallback(t *testing.T) {
	page := `<html><script>window.__INITIAL_STATE__ = {"feed":[{"title":"Shake Shack (Main St)","storeUuid":"abc-123"},{"title":"Five Guys","storeUuid":"zzz-999"}]};</script></html>`

	lat, lon := coords()
	stores, skip := testSearch(t, page).Search(context.Background(), models.StoreSearchRequest{
		Restaurant: "Shake Shack",
		Location:   "20740",
		Latitude:   lat,
		Longitude:  lon,
	})
	if skip != "" {
		t.Fatalf("unexpected skip reason %q", skip)
	}
	if len(stores) != 1 {
		t.Fatalf("got %d stores, want 1 from embedded state", len(stores))
	}
	if stores[0].StoreID != "abc-123" || stores[0].Name != "Shake Shack (Main St)" {
		t.Errorf("store = %+v", stores[0])
	}
}

func TestSearch_GeocodeMissIsSkip(t *testing.T) {
	s := testSearch(t, `<html></html>`)
	geoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer geoSrv.Close()
	s.geocoder = geocode.NewClient(config.GeocoderConfig{BaseURL: geoSrv.URL, Timeout: 5 * time.Second})

	stores, skip := s.Search(context.Background(), models.StoreSearchRequest{
		Restaurant: "McDonald's",
		Location:   "Atlantis",
	})
	if stores != nil {
		t.Errorf("got stores %+v, want none", stores)
	}
	if skip == "" {
		t.Error("expected a skip reason for an ungecodable location")
	}
}

func TestSearch_NoMatchesIsSkip(t *testing.T) {
	lat, lon := coords()
	stores, skip := testSearch(t, `<html></html>`).Search(context.Background(), models.StoreSearchRequest{
		Restaurant: "Unknown Diner",
		Location:   "20740",
		Latitude:   lat,
		Longitude:  lon,
	})
	if len(stores) != 0 || skip == "" {
		t.Errorf("got (%v, %q), want empty result with a skip reason", stores, skip)
	}
}

func TestLocationToken(t *testing.T) {
	token := LocationToken("20740", 38.98976543219, -76.93781234567)
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		t.Fatalf("token is not unpadded base64url: %v", err)
	}
	want := `{"address":"20740","latitude":38.989765,"longitude":-76.937812,"reference":"manual:38.989765,-76.937812","referenceType":"manual"}`
	if string(decoded) != want {
		t.Errorf("decoded token = %s, want %s", decoded, want)
	}
}
