package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dealscout/dealscout/config"
)

func testClient(srvURL string) *Client {
	return NewClient(config.GeocoderConfig{BaseURL: srvURL, Timeout: 5 * time.Second})
}

func TestGeocode_TopMatch(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"lat":"38.9897","lon":"-76.9378"},{"lat":"0","lon":"0"}]`))
	}))
	defer srv.Close()

	pt, err := testClient(srv.URL).Geocode(context.Background(), "College Park, MD")
	if err != nil {
		t.Fatalf("Geocode: %v", err)
	}
	if pt == nil {
		t.Fatal("expected a point")
	}
	if pt.Latitude != 38.9897 || pt.Longitude != -76.9378 {
		t.Errorf("point = %+v, want top match", pt)
	}
	if gotQuery != "College Park, MD" {
		t.Errorf("query = %q, want raw location", gotQuery)
	}
}

func TestGeocode_ZIPGetsCountryQualifier(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"lat":"1","lon":"2"}]`))
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).Geocode(context.Background(), "20740"); err != nil {
		t.Fatalf("Geocode: %v", err)
	}
	if gotQuery != "20740, USA" {
		t.Errorf("query = %q, want ZIP with country qualifier", gotQuery)
	}
}

func TestGeocode_EmptyResultIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	pt, err := testClient(srv.URL).Geocode(context.Background(), "Nowhereville")
	if err != nil {
		t.Fatalf("empty result must not error, got %v", err)
	}
	if pt != nil {
		t.Errorf("expected nil point, got %+v", pt)
	}
}

func TestGeocode_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).Geocode(context.Background(), "anywhere"); err == nil {
		t.Fatal("expected error for 5xx response")
	}
}
