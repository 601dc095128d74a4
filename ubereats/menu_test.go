package ubereats

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dealscout/dealscout/config"
)

const storePage = `<!DOCTYPE html>
<html><head><title>Store</title>
<script>window.__INITIAL_STATE__ = {"menu":{"sections":[{"title":"Burgers","type":"section","items":[{"title":"Big Mac®","priceInfo":{"price":579}},{"title":"  Big   Mac® ","priceInfo":{"price":629}},{"title":"Quarter Pounder","price":1299},{"title":"Apple Pie"}]},{"title":"Drinks","type":"section","items":[{"title":"Large Coke","price":"$2.49"}]}]}};</script>
</head><body></body></html>`

func testScraper() *Scraper {
	return NewScraper(config.ScraperConfig{PlatformTimeout: 5 * time.Second})
}

func TestFetchMenu_ExtractsAndDeduplicates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(storePage))
	}))
	defer srv.Close()

	items, err := testScraper().FetchMenu(context.Background(), srv.URL+"/store/mcdonalds/abc123", "McDonald's", "20740")
	if err != nil {
		t.Fatalf("FetchMenu: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3: %+v", len(items), items)
	}

	bigMac := items[0]
	if bigMac.Name != "Big Mac" {
		t.Errorf("name = %q, want trademark stripped and whitespace collapsed", bigMac.Name)
	}
	if bigMac.Price == nil || *bigMac.Price != 5.79 {
		t.Errorf("price = %v, want 5.79 (first occurrence wins the dedup)", bigMac.Price)
	}
	if bigMac.Category != "Burgers" {
		t.Errorf("category = %q, want Burgers", bigMac.Category)
	}
	if bigMac.Restaurant != "McDonald's" {
		t.Errorf("restaurant = %q", bigMac.Restaurant)
	}
	if bigMac.Location != "20740" {
		t.Errorf("location = %q, want the delivery context carried onto items", bigMac.Location)
	}

	if items[1].Name != "Quarter Pounder" || *items[1].Price != 12.99 {
		t.Errorf("item[1] = %+v, want Quarter Pounder at 12.99", items[1])
	}
	if items[2].Name != "Large Coke" || *items[2].Price != 2.49 || items[2].Category != "Drinks" {
		t.Errorf("item[2] = %+v, want Large Coke at 2.49 in Drinks", items[2])
	}
}

func TestFetchMenu_UnparseablePageYieldsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><body><p>Please enable JavaScript</p></body></html>`))
	}))
	defer srv.Close()

	items, err := testScraper().FetchMenu(context.Background(), srv.URL, "Nowhere", "")
	if err != nil {
		t.Fatalf("FetchMenu: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("got %d items, want none", len(items))
	}
}

func TestFetchMenu_FetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	if _, err := testScraper().FetchMenu(context.Background(), srv.URL, "Blocked", ""); err == nil {
		t.Fatal("expected error for 403 response")
	}
}

func TestNormalizePrice(t *testing.T) {
	cases := []struct {
		name  string
		input any
		want  float64
		ok    bool
	}{
		{"cents above boundary", float64(1299), 12.99, true},
		{"dollars below boundary", 12.99, 12.99, true},
		{"boundary value stays in dollars", float64(20), 20.00, true},
		{"just above boundary treated as cents", 20.01, 0.20, true},
		{"string with currency symbol", "$5.99", 5.99, true},
		{"string with thousands separator", "1,299", 1299.00, true},
		{"unparsable string", "free", 0, false},
		{"unsupported type", true, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := NormalizePrice(tc.input)
			if ok != tc.ok || got != tc.want {
				t.Errorf("NormalizePrice(%v) = (%v, %v), want (%v, %v)", tc.input, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestStoreIDFromURL(t *testing.T) {
	if got := StoreIDFromURL("https://www.ubereats.com/store/mcdonalds-college-park/le7gZEtjRyexb"); got != "le7gZEtjRyexb" {
		t.Errorf("got %q", got)
	}
	if got := StoreIDFromURL("https://www.ubereats.com/"); got != "" {
		t.Errorf("got %q for bare host, want empty", got)
	}
}
