package models

// ScrapeMenusResponse is the response for POST /api/v1/menus/scrape.
// Results are keyed by slug in request order; a failed slug yields an empty
// item list plus a skip annotation, never an error status.
type ScrapeMenusResponse struct {
	Success bool               `json:"success"`
	Results []RestaurantResult `json:"results"`
	Total   int                `json:"total_items"`
	Timing  TimingInfo         `json:"timing"`
}

// RestaurantResult is one restaurant's slice of a scrape-all run.
type RestaurantResult struct {
	Slug        string     `json:"slug"`
	Restaurant  string     `json:"restaurant"`
	Items       []MenuItem `json:"items"`
	SkipReason  string     `json:"skip_reason,omitempty"`
	CacheStatus string     `json:"cache_status,omitempty"` // "hit", "miss", or empty
}

// StoreSearchResponse is the response for POST /api/v1/stores/search.
type StoreSearchResponse struct {
	Success    bool       `json:"success"`
	Stores     []Store    `json:"stores"`
	SkipReason string     `json:"skip_reason,omitempty"`
	Timing     TimingInfo `json:"timing"`
}

// PlatformMenuResponse is the response for POST /api/v1/ubereats/menu.
type PlatformMenuResponse struct {
	Success  bool         `json:"success"`
	Items    []MenuItem   `json:"items"`
	Imported int          `json:"imported,omitempty"`
	Skipped  int          `json:"skipped,omitempty"`
	Timing   TimingInfo   `json:"timing"`
	Error    *ErrorDetail `json:"error,omitempty"`
}

// ScrapeImportResponse is the response for POST /api/v1/scrape/import.
type ScrapeImportResponse struct {
	Success  bool       `json:"success"`
	Imported int        `json:"imported"`
	Ranked   int        `json:"ranked"`
	Skipped  int        `json:"skipped"`
	Total    int        `json:"total_items"`
	Timing   TimingInfo `json:"timing"`
}

// RankingResponse is the scoring outcome for one deal.
type RankingResponse struct {
	DealID       int64   `json:"deal_id"`
	ItemName     string  `json:"item_name"`
	Restaurant   string  `json:"restaurant"`
	ValueScore   float64 `json:"value_score"`
	SatietyScore float64 `json:"satiety_score"`
	Calories     int     `json:"calories"`
	ProteinGrams float64 `json:"protein_grams"`
	Estimated    bool    `json:"estimated"`
	UsedDefaults bool    `json:"used_defaults"`
	SkipReason   string  `json:"skip_reason,omitempty"`
}

// RankAllResponse is the response for POST /api/v1/deals/rank-all.
type RankAllResponse struct {
	Success bool              `json:"success"`
	Ranked  int               `json:"ranked"`
	Skipped int               `json:"skipped"`
	Results []RankingResponse `json:"results"`
	Timing  TimingInfo        `json:"timing"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// FetchMs is the time spent on outbound network fetches.
	FetchMs int64 `json:"fetch_ms,omitempty"`

	// ExtractionMs is the time spent parsing and extracting.
	ExtractionMs int64 `json:"extraction_ms,omitempty"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status  string `json:"status"` // "healthy" or "degraded"
	Uptime  string `json:"uptime"`
	Deals   int    `json:"deals"`
	Version string `json:"version"`
}
