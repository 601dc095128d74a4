package scraper

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/dealscout/dealscout/models"
)

// Container keys whose children may hold further menu entities.
var ldContainerKeys = []string{"hasMenu", "hasMenuItem", "hasMenuSection", "itemListElement"}

var (
	rePrice    = regexp.MustCompile(`(\d+(?:\.\d{1,2})?)`)
	reCalories = regexp.MustCompile(`(\d{2,4})`)
	reProtein  = regexp.MustCompile(`(\d+(?:\.\d+)?)`)
)

// parseStructuredData extracts menu items from JSON-LD islands. Each script
// block is decoded independently; malformed blocks are skipped.
func parseStructuredData(restaurant, pageURL string, doc *goquery.Document) []models.MenuItem {
	var items []models.MenuItem

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}

		var data any
		if err := json.Unmarshal([]byte(text), &data); err != nil {
			return
		}

		for _, entry := range flattenLDJSON(data) {
			coerced, ok := coerceMenuItem(entry, 0)
			if !ok {
				continue
			}
			raw, _ := json.Marshal(entry)
			items = append(items, models.MenuItem{
				Restaurant:   restaurant,
				Name:         coerced.name,
				Price:        coerced.price,
				Calories:     coerced.calories,
				ProteinGrams: coerced.protein,
				Category:     coerced.category,
				SourceURL:    pageURL,
				Raw:          raw,
			})
		}
	})

	return items
}

// flattenLDJSON recursively flattens nested menu/section/item-list
// containers into a flat sequence of candidate objects.
func flattenLDJSON(data any) []map[string]any {
	var out []map[string]any
	switch v := data.(type) {
	case map[string]any:
		out = append(out, v)
		for _, key := range ldContainerKeys {
			if child, ok := v[key]; ok {
				out = append(out, flattenLDJSON(child)...)
			}
		}
	case []any:
		for _, entry := range v {
			out = append(out, flattenLDJSON(entry)...)
		}
	}
	return out
}

type coercedItem struct {
	name     string
	price    *float64
	calories *int
	protein  *float64
	category string
}

// coerceMenuItem accepts an entry only when its declared type intersects
// {MenuItem, ListItem}, or when it wraps such an item under an "item" key
// (recursed once).
func coerceMenuItem(entry map[string]any, depth int) (coercedItem, bool) {
	typeValue := entry["@type"]
	if typeValue == nil {
		typeValue = entry["type"]
	}

	types := map[string]bool{}
	switch tv := typeValue.(type) {
	case string:
		types[strings.ToLower(tv)] = true
	case []any:
		for _, t := range tv {
			if s, ok := t.(string); ok {
				types[strings.ToLower(s)] = true
			}
		}
	}

	if !types["menuitem"] && !types["listitem"] {
		// Some schemas store the actual item under an "item" key.
		if depth == 0 {
			if wrapped, ok := entry["item"].(map[string]any); ok {
				return coerceMenuItem(wrapped, 1)
			}
		}
		return coercedItem{}, false
	}

	name, _ := entry["name"].(string)
	name = strings.TrimSpace(name)
	if name == "" {
		return coercedItem{}, false
	}

	out := coercedItem{
		name:  name,
		price: extractOfferPrice(entry),
	}
	out.calories, out.protein = extractNutrition(entry)
	if category, ok := entry["category"].(string); ok {
		out.category = strings.TrimSpace(category)
	}
	return out, true
}

// extractOfferPrice walks schema.org offer/price-specification structures.
func extractOfferPrice(entry map[string]any) *float64 {
	switch offers := entry["offers"].(type) {
	case map[string]any:
		if p := offerPrice(offers); p != nil {
			return p
		}
	case []any:
		for _, o := range offers {
			if offer, ok := o.(map[string]any); ok {
				if p := offerPrice(offer); p != nil {
					return p
				}
			}
		}
	}

	if p := parsePriceValue(entry["price"]); p != nil {
		return p
	}
	if spec, ok := entry["priceSpecification"].(map[string]any); ok {
		return parsePriceValue(spec["price"])
	}
	return nil
}

func offerPrice(offer map[string]any) *float64 {
	if p := parsePriceValue(offer["price"]); p != nil {
		return p
	}
	if spec, ok := offer["priceSpecification"].(map[string]any); ok {
		return parsePriceValue(spec["price"])
	}
	return nil
}

// extractNutrition reads calories and protein out of a nested nutrition
// structure, tolerating numeric or text values.
func extractNutrition(entry map[string]any) (*int, *float64) {
	nutrition, ok := entry["nutrition"].(map[string]any)
	if !ok {
		return nil, nil
	}

	calVal := nutrition["calories"]
	if calVal == nil {
		calVal = nutrition["calorieContent"]
	}

	protVal := nutrition["proteinContent"]
	if protVal == nil {
		protVal = nutrition["protein"]
	}
	if protVal == nil {
		protVal = nutrition["proteinContentValue"]
	}

	return parseCaloriesValue(calVal), parseProteinValue(protVal)
}

// parsePriceValue parses a numeric or text price, rounded to 2 decimals.
func parsePriceValue(value any) *float64 {
	switch v := value.(type) {
	case float64:
		return models.Float64Ptr(round2(v))
	case string:
		if m := rePrice.FindStringSubmatch(strings.ReplaceAll(v, ",", "")); m != nil {
			return models.Float64Ptr(round2(atof(m[1])))
		}
	}
	return nil
}

func parseCaloriesValue(value any) *int {
	switch v := value.(type) {
	case float64:
		return models.IntPtr(int(v))
	case string:
		if m := reCalories.FindStringSubmatch(strings.ReplaceAll(v, ",", "")); m != nil {
			return models.IntPtr(int(atof(m[1])))
		}
	}
	return nil
}

func parseProteinValue(value any) *float64 {
	switch v := value.(type) {
	case float64:
		return models.Float64Ptr(v)
	case string:
		if m := reProtein.FindStringSubmatch(v); m != nil {
			return models.Float64Ptr(atof(m[1]))
		}
	}
	return nil
}

// atof parses a regexp-validated decimal match.
func atof(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
