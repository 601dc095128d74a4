package ubereats

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	xhtml "golang.org/x/net/html"

	"github.com/dealscout/dealscout/config"
	"github.com/dealscout/dealscout/fetch"
	"github.com/dealscout/dealscout/geocode"
	"github.com/dealscout/dealscout/jsonstate"
	"github.com/dealscout/dealscout/models"
)

// maxStores caps how many storefronts one search returns.
const maxStores = 10

// reStoreHref matches direct store links in search result HTML, capturing
// the path and the slug/id portion.
var reStoreHref = regexp.MustCompile(`(?i)href=["'](/store/([^"']+))["']`)

// slugMap holds known chain-to-platform-slug mappings used when the search
// page yields no direct store links.
var slugMap = map[string]string{
	"mcdonald's":    "mcdonalds",
	"mcdonalds":     "mcdonalds",
	"burger king":   "burger-king",
	"wendy's":       "wendys",
	"wendys":        "wendys",
	"taco bell":     "taco-bell",
	"chipotle":      "chipotle-mexican-grill",
	"subway":        "subway",
	"kfc":           "kfc",
	"popeyes":       "popeyes",
	"chick-fil-a":   "chick-fil-a",
	"five guys":     "five-guys",
	"sonic":         "sonic-drive-in",
	"arby's":        "arbys",
	"arbys":         "arbys",
	"panda express": "panda-express",
	"panera":        "panera-bread",
	"panera bread":  "panera-bread",
}

// storeNameKeys and storeIDKeys identify store-like objects in legacy
// embedded state payloads.
var (
	storeNameKeys = []string{"title", "name", "storeName", "store_name"}
	storeIDKeys   = []string{"uuid", "storeUuid", "store_uuid", "slug"}
)

// StoreSearch resolves restaurant storefronts on Uber Eats for a location.
type StoreSearch struct {
	client   *fetch.Client
	geocoder *geocode.Client
	baseURL  string
}

// NewStoreSearch builds a storefront search over the given geocoder.
func NewStoreSearch(cfg config.ScraperConfig, geocoder *geocode.Client) *StoreSearch {
	return &StoreSearch{
		client:   fetch.NewBrowserClient(cfg.PlatformTimeout, cfg.DefaultProxy),
		geocoder: geocoder,
		baseURL:  "https://www.ubereats.com",
	}
}

// Search finds storefronts for the restaurant near the location. Every
// failure mode (geocoding, the search request, zero matches) is non-fatal
// and reported through the returned skip reason, which is empty on success.
// Results are deduplicated by store ID and capped at 10, preserving
// discovery order.
func (s *StoreSearch) Search(ctx context.Context, req models.StoreSearchRequest) ([]models.Store, string) {
	lat, lon := req.Latitude, req.Longitude
	if lat == nil || lon == nil {
		point, err := s.geocoder.Geocode(ctx, req.Location)
		if err != nil {
			slog.Warn("geocoding failed", "location", req.Location, "error", err)
			return nil, fmt.Sprintf("could not geocode location %q", req.Location)
		}
		if point == nil {
			return nil, fmt.Sprintf("no geocoding match for location %q", req.Location)
		}
		lat, lon = &point.Latitude, &point.Longitude
	}

	token := LocationToken(req.Location, *lat, *lon)

	body, err := s.fetchSearchPage(ctx, req.Restaurant, token)
	if err != nil {
		slog.Warn("store search request failed", "restaurant", req.Restaurant, "error", err)
		return nil, fmt.Sprintf("search request failed for %q", req.Restaurant)
	}

	stores := s.parseStoreAnchors(body, req.Restaurant, token, *lat, *lon)
	if len(stores) == 0 {
		slog.Info("no direct store links found, trying fallbacks", "restaurant", req.Restaurant)
		if store, ok := s.knownSlugStore(req.Restaurant, token, *lat, *lon); ok {
			stores = append(stores, store)
		}
		stores = append(stores, s.parseLegacyState(body, req.Restaurant, token, *lat, *lon)...)
	}

	stores = dedupeStores(stores)
	if len(stores) == 0 {
		return nil, fmt.Sprintf("no stores found for %q near %q", req.Restaurant, req.Location)
	}
	slog.Info("store search complete", "restaurant", req.Restaurant, "stores", len(stores))
	return stores, ""
}

func (s *StoreSearch) fetchSearchPage(ctx context.Context, restaurant, token string) (string, error) {
	params := url.Values{}
	params.Set("q", restaurant)
	params.Set("pl", token)
	params.Set("diningMode", "DELIVERY")
	params.Set("ps", "1")
	params.Set("sc", "SEARCH_SUGGESTION")
	return s.client.Get(ctx, s.baseURL+"/search?"+params.Encode(), nil)
}

// parseStoreAnchors scans search result HTML for /store/<slug>/<id> links
// whose slug loosely matches the restaurant name.
func (s *StoreSearch) parseStoreAnchors(body, restaurant, token string, lat, lon float64) []models.Store {
	nameLower := strings.ToLower(restaurant)
	hyphenated := strings.ReplaceAll(nameLower, " ", "-")
	deapostrophed := strings.ReplaceAll(nameLower, "'", "")

	var stores []models.Store
	for _, match := range reStoreHref.FindAllStringSubmatch(body, -1) {
		storePath := xhtml.UnescapeString(match[1])
		slugWithID := strings.ToLower(xhtml.UnescapeString(match[2]))

		if !strings.Contains(slugWithID, hyphenated) && !strings.Contains(slugWithID, deapostrophed) {
			continue
		}
		parts := strings.Split(slugWithID, "/")
		if len(parts) < 2 {
			continue
		}
		storeID, _, _ := strings.Cut(parts[1], "?")
		cleanPath, _, _ := strings.Cut(storePath, "?")

		stores = append(stores, models.Store{
			Name:      titleFromSlug(parts[0]),
			StoreURL:  s.storeURL(cleanPath, token),
			StoreID:   storeID,
			Latitude:  models.Float64Ptr(lat),
			Longitude: models.Float64Ptr(lon),
		})
	}
	return stores
}

// knownSlugStore synthesizes a direct store URL from the static chain
// slug table.
func (s *StoreSearch) knownSlugStore(restaurant, token string, lat, lon float64) (models.Store, bool) {
	slug, ok := slugMap[strings.ToLower(strings.TrimSpace(restaurant))]
	if !ok {
		return models.Store{}, false
	}
	return models.Store{
		Name:      restaurant,
		StoreURL:  s.storeURL("/store/"+slug, token),
		StoreID:   slug,
		Address:   fmt.Sprintf("Near %s, %s", formatCoord(lat), formatCoord(lon)),
		Latitude:  models.Float64Ptr(lat),
		Longitude: models.Float64Ptr(lon),
	}, true
}

// parseLegacyState mines embedded client-state JSON for store-like objects
// whose name contains the restaurant name.
func (s *StoreSearch) parseLegacyState(body, restaurant, token string, lat, lon float64) []models.Store {
	nameLower := strings.ToLower(restaurant)

	var stores []models.Store
	for _, payload := range jsonstate.ExtractPayloads(body) {
		var parsed any
		if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
			continue
		}
		jsonstate.Walk(parsed, func(node map[string]any, _ string) {
			name, okName := firstString(node, storeNameKeys)
			storeID, okID := firstString(node, storeIDKeys)
			if !okName || !okID || !strings.Contains(strings.ToLower(name), nameLower) {
				return
			}
			store := models.Store{
				Name:      name,
				StoreURL:  s.storeURL("/store/"+storeID, token),
				StoreID:   storeID,
				Latitude:  models.Float64Ptr(lat),
				Longitude: models.Float64Ptr(lon),
			}
			if loc, ok := node["location"].(map[string]any); ok {
				if addr, ok := loc["address"].(string); ok {
					store.Address = addr
				}
			}
			if v, ok := node["latitude"].(float64); ok {
				store.Latitude = models.Float64Ptr(v)
			}
			if v, ok := node["longitude"].(float64); ok {
				store.Longitude = models.Float64Ptr(v)
			}
			stores = append(stores, store)
		})
	}
	return stores
}

// storeURL builds an absolute store URL carrying the delivery-mode flag
// and the location token.
func (s *StoreSearch) storeURL(path, token string) string {
	params := url.Values{}
	params.Set("diningMode", "DELIVERY")
	params.Set("pl", token)
	return s.baseURL + path + "?" + params.Encode()
}

// LocationToken encodes a delivery address as the compact base64url token
// the platform expects in its pl query parameter. Coordinates are rounded
// to 6 decimal places; padding is stripped.
func LocationToken(address string, lat, lon float64) string {
	payload := struct {
		Address       string  `json:"address"`
		Latitude      float64 `json:"latitude"`
		Longitude     float64 `json:"longitude"`
		Reference     string  `json:"reference"`
		ReferenceType string  `json:"referenceType"`
	}{
		Address:       address,
		Latitude:      round6(lat),
		Longitude:     round6(lon),
		Reference:     fmt.Sprintf("manual:%s,%s", formatCoord(lat), formatCoord(lon)),
		ReferenceType: "manual",
	}
	encoded, _ := json.Marshal(payload)
	return base64.RawURLEncoding.EncodeToString(encoded)
}

// dedupeStores drops duplicate store IDs and caps the result, preserving
// first-seen order.
func dedupeStores(stores []models.Store) []models.Store {
	seen := make(map[string]bool, len(stores))
	unique := make([]models.Store, 0, len(stores))
	for _, store := range stores {
		if seen[store.StoreID] {
			continue
		}
		seen[store.StoreID] = true
		unique = append(unique, store)
		if len(unique) == maxStores {
			break
		}
	}
	return unique
}

func firstString(node map[string]any, keys []string) (string, bool) {
	for _, key := range keys {
		if s, ok := node[key].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// titleFromSlug turns "mcdonalds-college-park" into "Mcdonalds College Park".
func titleFromSlug(slug string) string {
	words := strings.Split(strings.ReplaceAll(slug, "-", " "), " ")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(round6(v), 'f', -1, 64)
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
