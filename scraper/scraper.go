// Package scraper extracts priced menu items from the public menu pages of
// known restaurant chains. Structured data is authoritative; DOM heuristics
// and a plain-text scan are strictly ordered fallbacks, never merged.
package scraper

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/dealscout/dealscout/config"
	"github.com/dealscout/dealscout/fetch"
	"github.com/dealscout/dealscout/models"
)

// Target is one known chain menu page.
type Target struct {
	Restaurant string
	URL        string
}

// Targets maps chain slugs to their public menu pages.
var Targets = map[string]Target{
	"mcdonalds":   {Restaurant: "McDonald's", URL: "https://www.mcdonalds.com/us/en-us/full-menu.html"},
	"taco-bell":   {Restaurant: "Taco Bell", URL: "https://www.tacobell.com/food"},
	"wendys":      {Restaurant: "Wendy's", URL: "https://www.wendys.com/menu"},
	"burger-king": {Restaurant: "Burger King", URL: "https://www.bk.com/menu"},
	"chick-fil-a": {Restaurant: "Chick-fil-A", URL: "https://www.chick-fil-a.com/menu"},
	"subway":      {Restaurant: "Subway", URL: "https://www.subway.com/en-us/menunutrition/menu"},
}

// Slugs returns the known chain slugs in stable order.
func Slugs() []string {
	out := make([]string, 0, len(Targets))
	for slug := range Targets {
		out = append(out, slug)
	}
	sort.Strings(out)
	return out
}

// MenuScraper fetches chain menu pages and extracts items. Safe for
// concurrent use; all state is constructed per call.
type MenuScraper struct {
	client        *fetch.Client
	maxConcurrent int
}

// NewMenuScraper creates a MenuScraper using the identified bot client.
func NewMenuScraper(cfg config.ScraperConfig) *MenuScraper {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}
	return &MenuScraper{
		client:        fetch.NewBotClient(cfg.MenuTimeout, cfg.DefaultProxy),
		maxConcurrent: maxConcurrent,
	}
}

// ScrapeRestaurant scrapes one known chain by slug.
func (s *MenuScraper) ScrapeRestaurant(ctx context.Context, slug string) ([]models.MenuItem, error) {
	target, ok := Targets[slug]
	if !ok {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "unknown restaurant slug "+slug, nil)
	}
	return s.ScrapeURL(ctx, target.Restaurant, target.URL)
}

// ScrapeURL fetches one menu page and runs the fallback chain:
//
//  1. structured-data blocks (JSON-LD)
//  2. DOM heuristics over item-listing class conventions
//  3. currency-line text scan
//
// Each stage runs only when the prior stage produced nothing. A fetch or
// parse failure returns the error; zero extracted items is not an error.
func (s *MenuScraper) ScrapeURL(ctx context.Context, restaurant, pageURL string) ([]models.MenuItem, error) {
	body, err := s.client.Get(ctx, pageURL, nil)
	if err != nil {
		return nil, err
	}

	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeParseFailed, "parse html", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	items := parseStructuredData(restaurant, pageURL, doc)
	if len(items) > 0 {
		slog.Info("extracted structured menu items", "restaurant", restaurant, "count", len(items))
		return items, nil
	}

	slog.Info("structured data not found, falling back to heuristics", "restaurant", restaurant)
	items = parseHeuristics(restaurant, pageURL, root)
	if len(items) > 0 {
		slog.Info("extracted heuristic menu items", "restaurant", restaurant, "count", len(items))
		return items, nil
	}

	items = scanText(restaurant, pageURL, body)
	if len(items) == 0 {
		slog.Warn("no menu items extracted", "restaurant", restaurant, "url", pageURL)
	}
	return items, nil
}

// ScrapeAll scrapes the given slugs (all known chains when empty)
// concurrently, bounded by the configured concurrency cap. Results preserve
// input order regardless of completion order; a failed slug yields an empty
// item list with a skip reason and never aborts its siblings.
func (s *MenuScraper) ScrapeAll(ctx context.Context, slugs []string) []models.RestaurantResult {
	if len(slugs) == 0 {
		slugs = Slugs()
	}

	results := make([]models.RestaurantResult, len(slugs))
	sem := make(chan struct{}, s.maxConcurrent)
	var wg sync.WaitGroup

	for i, slug := range slugs {
		wg.Add(1)
		go func(idx int, slug string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res := models.RestaurantResult{Slug: slug}
			if target, ok := Targets[slug]; ok {
				res.Restaurant = target.Restaurant
			}

			items, err := s.ScrapeRestaurant(ctx, slug)
			if err != nil {
				slog.Error("failed to scrape restaurant", "slug", slug, "error", err)
				res.Items = []models.MenuItem{}
				res.SkipReason = err.Error()
			} else {
				res.Items = items
			}
			results[idx] = res
		}(i, slug)
	}

	wg.Wait()
	return results
}
