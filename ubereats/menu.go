// Package ubereats extracts menus and storefront listings from Uber Eats
// pages by mining the client-state JSON the site embeds for hydration.
package ubereats

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/dealscout/dealscout/config"
	"github.com/dealscout/dealscout/fetch"
	"github.com/dealscout/dealscout/jsonstate"
	"github.com/dealscout/dealscout/models"
)

var (
	reTrademark  = regexp.MustCompile(`[®™]`)
	reWhitespace = regexp.MustCompile(`\s+`)
	rePriceText  = regexp.MustCompile(`(\d+(?:\.\d{1,2})?)`)
)

// priceKeys are the flat price field names seen across Uber Eats state
// payload generations, in resolution order.
var priceKeys = []string{"price", "priceTag", "amount", "price_in_cents", "priceInCents"}

// nestedPriceKeys are (container, field) pairs for price objects.
var nestedPriceKeys = [][2]string{
	{"priceInfo", "price"},
	{"priceInfo", "unitPrice"},
	{"itemPrice", "price"},
}

// Scraper pulls menu items out of an Uber Eats store page.
type Scraper struct {
	client *fetch.Client
}

// NewScraper builds a store-page scraper using the browser-profile HTTP
// client; the platform serves an empty shell to non-browser agents.
func NewScraper(cfg config.ScraperConfig) *Scraper {
	return &Scraper{client: fetch.NewBrowserClient(cfg.PlatformTimeout, cfg.DefaultProxy)}
}

// FetchMenu retrieves a store page and extracts its priced menu items,
// each annotated with the delivery location the page was resolved for
// (empty when unknown). Items without a resolvable price or name are
// dropped; duplicates by (lowercased name, lowercased category) collapse
// to the first occurrence. Extraction is best effort: payloads that fail
// to parse are skipped and an empty slice is a valid result.
func (s *Scraper) FetchMenu(ctx context.Context, storeURL, restaurant, location string) ([]models.MenuItem, error) {
	body, err := s.client.Get(ctx, storeURL, map[string]string{
		"Referer": "https://www.ubereats.com/",
	})
	if err != nil {
		return nil, err
	}

	payloads := jsonstate.ExtractPayloads(body)
	slog.Info("extracted state payloads", "url", storeURL, "payloads", len(payloads))

	var items []models.MenuItem
	for _, payload := range payloads {
		var parsed any
		if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
			continue
		}

		before := len(items)
		jsonstate.Walk(parsed, func(node map[string]any, category string) {
			name := cleanName(jsonstate.NameField(node))
			if name == "" {
				return
			}
			price, ok := resolvePrice(node)
			if !ok {
				return
			}
			items = append(items, models.MenuItem{
				Restaurant: restaurant,
				Name:       name,
				Price:      models.Float64Ptr(price),
				Category:   cleanName(category),
				SourceURL:  storeURL,
				Location:   location,
			})
		})
		if got := len(items) - before; got > 0 {
			slog.Info("extracted items from state payload", "count", got)
		}
	}

	deduped := dedupeItems(items)
	slog.Info("store menu extracted", "url", storeURL, "unique_items", len(deduped))
	return deduped, nil
}

// resolvePrice finds a price-like field on the node and normalizes it to
// major currency units.
func resolvePrice(node map[string]any) (float64, bool) {
	for _, key := range priceKeys {
		if value, ok := node[key]; ok && value != nil {
			if price, ok := NormalizePrice(value); ok {
				return price, true
			}
		}
	}
	for _, pair := range nestedPriceKeys {
		container, ok := node[pair[0]].(map[string]any)
		if !ok {
			continue
		}
		if value, ok := container[pair[1]]; ok && value != nil {
			if price, ok := NormalizePrice(value); ok {
				return price, true
			}
		}
	}
	// Some payload generations wrap the price one level down, storing
	// minor units under "amount".
	for _, key := range priceKeys {
		if wrapped, ok := node[key].(map[string]any); ok {
			for _, inner := range []string{"amount", "price"} {
				if value, ok := wrapped[inner]; ok && value != nil {
					if price, ok := NormalizePrice(value); ok {
						return price, true
					}
				}
			}
		}
	}
	return 0, false
}

// NormalizePrice converts a raw price value to major currency units.
// Numeric values strictly greater than 20 are assumed to be minor units
// (cents) and divided by 100; a legitimately expensive dollar-priced item
// is misclassified by this heuristic, which is a known limitation of the
// unlabeled source data. Strings are parsed by their first decimal number
// and taken at face value.
func NormalizePrice(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		if v > 20 {
			return round2(v / 100), true
		}
		return round2(v), true
	case string:
		m := rePriceText.FindStringSubmatch(strings.ReplaceAll(v, ",", ""))
		if m == nil {
			return 0, false
		}
		amount, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, false
		}
		return round2(amount), true
	}
	return 0, false
}

// cleanName strips trademark glyphs and collapses runs of whitespace.
func cleanName(text string) string {
	cleaned := reTrademark.ReplaceAllString(text, "")
	cleaned = reWhitespace.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// dedupeItems collapses duplicates by (lowercased name, lowercased
// category), keeping the first occurrence.
func dedupeItems(items []models.MenuItem) []models.MenuItem {
	type key struct{ name, category string }
	seen := make(map[key]bool, len(items))
	deduped := make([]models.MenuItem, 0, len(items))
	for _, item := range items {
		k := key{strings.ToLower(item.Name), strings.ToLower(item.Category)}
		if seen[k] {
			continue
		}
		seen[k] = true
		deduped = append(deduped, item)
	}
	return deduped
}

// StoreIDFromURL returns the last path segment of a store URL, which is
// the platform's store identifier on canonical store pages.
func StoreIDFromURL(storeURL string) string {
	parsed, err := url.Parse(storeURL)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
