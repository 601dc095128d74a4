// Package geocode resolves free-text locations to coordinates via a
// Nominatim-compatible service.
package geocode

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"

	"github.com/go-resty/resty/v2"

	"github.com/dealscout/dealscout/config"
)

// reZIP matches US 5-digit (optionally ZIP+4) postal codes.
var reZIP = regexp.MustCompile(`^\d{5}(-\d{4})?$`)

// Point is a geocoded coordinate pair.
type Point struct {
	Latitude  float64
	Longitude float64
}

// result is the subset of a Nominatim search entry we need. The service
// returns lat/lon as strings.
type result struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Client queries a Nominatim-compatible geocoding service.
type Client struct {
	http *resty.Client
}

// NewClient creates a geocoding client for the configured service.
func NewClient(cfg config.GeocoderConfig) *Client {
	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "DealScout/1.0")
	return &Client{http: c}
}

// Geocode resolves a free-text location to coordinates. Bare ZIP codes get
// a country qualifier appended. A nil Point with nil error means the
// service had no match; callers treat that as a skip, not a failure.
func (c *Client) Geocode(ctx context.Context, location string) (*Point, error) {
	query := location
	if reZIP.MatchString(location) {
		query = location + ", USA"
	}

	var results []result
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"format": "json",
			"q":      query,
			"limit":  "1",
		}).
		SetResult(&results).
		Get("/search")
	if err != nil {
		return nil, fmt.Errorf("geocode %q: %w", location, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("geocode %q: HTTP %d", location, resp.StatusCode())
	}
	if len(results) == 0 {
		return nil, nil
	}

	lat, latErr := strconv.ParseFloat(results[0].Lat, 64)
	lon, lonErr := strconv.ParseFloat(results[0].Lon, 64)
	if latErr != nil || lonErr != nil {
		return nil, fmt.Errorf("geocode %q: malformed coordinates %q/%q", location, results[0].Lat, results[0].Lon)
	}

	slog.Info("geocoded location", "location", location, "lat", lat, "lon", lon)
	return &Point{Latitude: lat, Longitude: lon}, nil
}
