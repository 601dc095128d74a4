package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// storeSearchResponse mirrors the DealScout store search API response.
type storeSearchResponse struct {
	Success bool `json:"success"`
	Stores  []struct {
		Name     string `json:"name"`
		StoreURL string `json:"store_url"`
		StoreID  string `json:"store_id"`
		Address  string `json:"address"`
	} `json:"stores"`
	SkipReason string `json:"skip_reason"`
}

// menuResponse mirrors the DealScout platform menu API response.
type menuResponse struct {
	Success bool `json:"success"`
	Items   []struct {
		Name     string   `json:"name"`
		Price    *float64 `json:"price"`
		Category string   `json:"category"`
	} `json:"items"`
	Imported int `json:"imported"`
	Error    *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// scrapeMenusResponse mirrors the DealScout menu scrape API response.
type scrapeMenusResponse struct {
	Success bool `json:"success"`
	Results []struct {
		Slug       string `json:"slug"`
		Restaurant string `json:"restaurant"`
		Items      []struct {
			Name     string `json:"name"`
			Calories *int   `json:"calories"`
		} `json:"items"`
		SkipReason  string `json:"skip_reason"`
		CacheStatus string `json:"cache_status"`
	} `json:"results"`
	Total int `json:"total_items"`
}

// dealResponse mirrors the DealScout deal model.
type dealResponse struct {
	ID         int64    `json:"id"`
	Restaurant string   `json:"restaurant"`
	ItemName   string   `json:"item_name"`
	Price      float64  `json:"price"`
	ValueScore *float64 `json:"value_score"`
}

// rankingResponse mirrors the DealScout ranking API response.
type rankingResponse struct {
	DealID       int64   `json:"deal_id"`
	ItemName     string  `json:"item_name"`
	Restaurant   string  `json:"restaurant"`
	ValueScore   float64 `json:"value_score"`
	SatietyScore float64 `json:"satiety_score"`
	Calories     int     `json:"calories"`
	ProteinGrams float64 `json:"protein_grams"`
	Estimated    bool    `json:"estimated"`
	UsedDefaults bool    `json:"used_defaults"`
}

// topDealsResponse mirrors the DealScout top deals API response.
type topDealsResponse struct {
	Deals []struct {
		ID           int64    `json:"id"`
		Restaurant   string   `json:"restaurant"`
		ItemName     string   `json:"item_name"`
		Price        float64  `json:"price"`
		ValueScore   *float64 `json:"value_score"`
		Calories     *int     `json:"calories"`
		ProteinGrams *float64 `json:"protein_grams"`
	} `json:"deals"`
	Count int `json:"count"`
}

func main() {
	apiURL := os.Getenv("DEALSCOUT_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("DEALSCOUT_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "DEALSCOUT_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"dealscout",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	searchStoresTool := mcp.NewTool("search_stores",
		mcp.WithDescription("Search Uber Eats for restaurant store pages near a location. Returns store names and deep-link URLs usable with fetch_ubereats_menu."),
		mcp.WithString("restaurant",
			mcp.Required(),
			mcp.Description("Restaurant chain name, e.g. 'McDonald's'"),
		),
		mcp.WithString("location",
			mcp.Required(),
			mcp.Description("Free-text location or US ZIP code, e.g. '20740'"),
		),
		mcp.WithNumber("latitude",
			mcp.Description("Optional latitude; skips geocoding when provided with longitude"),
		),
		mcp.WithNumber("longitude",
			mcp.Description("Optional longitude; skips geocoding when provided with latitude"),
		),
	)
	s.AddTool(searchStoresTool, handleSearchStores(apiURL, apiKey))

	fetchMenuTool := mcp.NewTool("fetch_ubereats_menu",
		mcp.WithDescription("Fetch and parse the menu of a specific Uber Eats store page. Optionally imports priced items as deals for later scoring."),
		mcp.WithString("store_url",
			mcp.Required(),
			mcp.Description("Full Uber Eats store URL, typically from search_stores"),
		),
		mcp.WithString("restaurant",
			mcp.Required(),
			mcp.Description("Restaurant name to tag parsed items with"),
		),
		mcp.WithBoolean("import",
			mcp.Description("When true, persist priced items as deals (default: false)"),
		),
	)
	s.AddTool(fetchMenuTool, handleFetchMenu(apiURL, apiKey))

	scrapeMenusTool := mcp.NewTool("scrape_menus",
		mcp.WithDescription("Scrape the official menu pages of supported restaurant chains and return items with nutrition data. Omit slugs to scrape every supported chain."),
		mcp.WithArray("slugs",
			mcp.Description("Chain slugs to scrape, e.g. ['mcdonalds', 'taco-bell']. Omit for all chains."),
		),
	)
	s.AddTool(scrapeMenusTool, handleScrapeMenus(apiURL, apiKey))

	scoreDealTool := mcp.NewTool("score_deal",
		mcp.WithDescription("Create a deal from a menu item and price, then score its value (satiety vs. cost). Nutrition is estimated when not provided."),
		mcp.WithString("restaurant",
			mcp.Required(),
			mcp.Description("Restaurant name"),
		),
		mcp.WithString("item_name",
			mcp.Required(),
			mcp.Description("Menu item name"),
		),
		mcp.WithNumber("price",
			mcp.Required(),
			mcp.Description("Price in dollars, must be greater than zero"),
		),
		mcp.WithString("description",
			mcp.Description("Optional item description to improve nutrition estimation"),
		),
		mcp.WithNumber("calories",
			mcp.Description("Known calories; skips estimation when provided"),
		),
		mcp.WithNumber("protein_grams",
			mcp.Description("Known protein in grams"),
		),
	)
	s.AddTool(scoreDealTool, handleScoreDeal(apiURL, apiKey))

	topDealsTool := mcp.NewTool("top_deals",
		mcp.WithDescription("List the highest-value ranked deals, best first."),
		mcp.WithString("restaurant",
			mcp.Description("Optional restaurant filter"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum deals to return (default: 10, max: 50)"),
		),
	)
	s.AddTool(topDealsTool, handleTopDeals(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleSearchStores(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 120 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		restaurant, err := request.RequireString("restaurant")
		if err != nil {
			return mcp.NewToolResultError("restaurant is required"), nil
		}
		location, err := request.RequireString("location")
		if err != nil {
			return mcp.NewToolResultError("location is required"), nil
		}

		payload := map[string]interface{}{
			"restaurant": restaurant,
			"location":   location,
		}

		args := request.GetArguments()
		if lat, ok := args["latitude"]; ok {
			payload["latitude"] = lat
		}
		if lon, ok := args["longitude"]; ok {
			payload["longitude"] = lon
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/stores/search", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}

		var searchResp storeSearchResponse
		if err := json.Unmarshal(respBody, &searchResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		if !searchResp.Success {
			reason := searchResp.SkipReason
			if reason == "" {
				reason = "no stores found"
			}
			return mcp.NewToolResultText("No stores found: " + reason), nil
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Found %d store(s) for %q near %q:\n\n", len(searchResp.Stores), restaurant, location))
		for i, st := range searchResp.Stores {
			sb.WriteString(fmt.Sprintf("%d. %s\n   URL: %s\n", i+1, st.Name, st.StoreURL))
			if st.Address != "" {
				sb.WriteString("   Address: " + st.Address + "\n")
			}
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleFetchMenu(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 120 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		storeURL, err := request.RequireString("store_url")
		if err != nil {
			return mcp.NewToolResultError("store_url is required"), nil
		}
		restaurant, err := request.RequireString("restaurant")
		if err != nil {
			return mcp.NewToolResultError("restaurant is required"), nil
		}

		payload := map[string]interface{}{
			"store_url":  storeURL,
			"restaurant": restaurant,
		}
		if imp, ok := request.GetArguments()["import"]; ok {
			payload["import"] = imp
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/ubereats/menu", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}

		var menuResp menuResponse
		if err := json.Unmarshal(respBody, &menuResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		if !menuResp.Success {
			errMsg := "menu fetch failed"
			if menuResp.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", menuResp.Error.Code, menuResp.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("%s menu: %d item(s)", restaurant, len(menuResp.Items)))
		if menuResp.Imported > 0 {
			sb.WriteString(fmt.Sprintf(" (%d imported as deals)", menuResp.Imported))
		}
		sb.WriteString("\n\n")

		category := ""
		for _, item := range menuResp.Items {
			if item.Category != category {
				category = item.Category
				sb.WriteString("## " + category + "\n")
			}
			if item.Price != nil {
				sb.WriteString(fmt.Sprintf("- %s: $%.2f\n", item.Name, *item.Price))
			} else {
				sb.WriteString("- " + item.Name + "\n")
			}
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleScrapeMenus(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 600 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		payload := map[string]interface{}{}
		if slugs, ok := request.GetArguments()["slugs"]; ok {
			payload["slugs"] = slugs
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/menus/scrape", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}

		var scrapeResp scrapeMenusResponse
		if err := json.Unmarshal(respBody, &scrapeResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Scraped %d item(s) across %d chain(s):\n\n", scrapeResp.Total, len(scrapeResp.Results)))
		for _, r := range scrapeResp.Results {
			if r.SkipReason != "" {
				sb.WriteString(fmt.Sprintf("- %s: skipped (%s)\n", r.Restaurant, r.SkipReason))
				continue
			}
			line := fmt.Sprintf("- %s: %d item(s)", r.Restaurant, len(r.Items))
			if r.CacheStatus == "hit" {
				line += " [cached]"
			}
			sb.WriteString(line + "\n")
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleScoreDeal(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 120 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		restaurant, err := request.RequireString("restaurant")
		if err != nil {
			return mcp.NewToolResultError("restaurant is required"), nil
		}
		itemName, err := request.RequireString("item_name")
		if err != nil {
			return mcp.NewToolResultError("item_name is required"), nil
		}
		args := request.GetArguments()
		price, ok := args["price"].(float64)
		if !ok || price <= 0 {
			return mcp.NewToolResultError("price is required and must be greater than zero"), nil
		}

		payload := map[string]interface{}{
			"restaurant": restaurant,
			"item_name":  itemName,
			"price":      price,
		}
		if desc := request.GetString("description", ""); desc != "" {
			payload["description"] = desc
		}
		if cal, ok := args["calories"]; ok {
			payload["calories"] = cal
		}
		if protein, ok := args["protein_grams"]; ok {
			payload["protein_grams"] = protein
		}

		// Create the deal, then rank it.
		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/deals", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}

		var deal dealResponse
		if err := json.Unmarshal(respBody, &deal); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse deal response: %v", err)), nil
		}
		if deal.ID == 0 {
			return mcp.NewToolResultError("deal creation failed: " + string(respBody)), nil
		}

		rankBody, err := apiPost(ctx, client, apiURL, apiKey, fmt.Sprintf("/api/v1/deals/%d/rank", deal.ID), map[string]interface{}{})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("ranking request failed: %v", err)), nil
		}

		var ranking rankingResponse
		if err := json.Unmarshal(rankBody, &ranking); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse ranking response: %v", err)), nil
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("%s at %s ($%.2f)\n", ranking.ItemName, ranking.Restaurant, price))
		sb.WriteString(fmt.Sprintf("Value score: %.1f\nSatiety score: %.1f\n", ranking.ValueScore, ranking.SatietyScore))
		sb.WriteString(fmt.Sprintf("Nutrition: %d cal, %.1f g protein", ranking.Calories, ranking.ProteinGrams))
		switch {
		case ranking.UsedDefaults:
			sb.WriteString(" (defaults, estimation unavailable)")
		case ranking.Estimated:
			sb.WriteString(" (AI estimated)")
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleTopDeals(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		q := url.Values{}
		if restaurant := request.GetString("restaurant", ""); restaurant != "" {
			q.Set("restaurant", restaurant)
		}
		if limit, ok := request.GetArguments()["limit"].(float64); ok && limit > 0 {
			q.Set("limit", fmt.Sprintf("%d", int(limit)))
		}

		endpoint := "/api/v1/deals/top"
		if len(q) > 0 {
			endpoint += "?" + q.Encode()
		}

		respBody, err := apiGet(ctx, client, apiURL, apiKey, endpoint)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}

		var topResp topDealsResponse
		if err := json.Unmarshal(respBody, &topResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		if topResp.Count == 0 {
			return mcp.NewToolResultText("No ranked deals yet. Score deals first with score_deal or rank-all."), nil
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Top %d deal(s) by value:\n\n", topResp.Count))
		for i, d := range topResp.Deals {
			sb.WriteString(fmt.Sprintf("%d. %s at %s: $%.2f", i+1, d.ItemName, d.Restaurant, d.Price))
			if d.ValueScore != nil {
				sb.WriteString(fmt.Sprintf(" (value %.1f", *d.ValueScore))
				if d.Calories != nil {
					sb.WriteString(fmt.Sprintf(", %d cal", *d.Calories))
				}
				sb.WriteString(")")
			}
			sb.WriteString("\n")
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// apiPost sends a POST request to the DealScout API and returns the response body.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// apiGet sends a GET request to the DealScout API and returns the response body.
func apiGet(ctx context.Context, client *http.Client, apiURL, apiKey, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}
