package models

// DealRequest is the payload for POST /api/v1/deals and PUT /api/v1/deals/:id.
type DealRequest struct {
	// Restaurant is the chain or store name. Required.
	Restaurant string `json:"restaurant" binding:"required"`

	// ItemName is the deal's menu name. Required.
	ItemName string `json:"item_name" binding:"required"`

	// Price is the deal price in dollars. Required, positive.
	Price float64 `json:"price" binding:"required,gt=0"`

	Description string `json:"description,omitempty"`
	PortionSize string `json:"portion_size,omitempty"`
	DealType    string `json:"deal_type,omitempty"`
	SourceURL   string `json:"source_url,omitempty" binding:"omitempty,url"`

	// Calories and ProteinGrams, when provided, are used directly and the
	// external estimator is never consulted.
	Calories     *int     `json:"calories,omitempty"`
	ProteinGrams *float64 `json:"protein_grams,omitempty"`
}

// ScrapeMenusRequest is the payload for POST /api/v1/menus/scrape.
type ScrapeMenusRequest struct {
	// Slugs selects known chains to scrape. Empty means all known chains.
	Slugs []string `json:"slugs,omitempty"`

	// MaxAge enables the menu cache when positive (milliseconds).
	MaxAge int `json:"max_age,omitempty" binding:"omitempty,min=0"`
}

// ScrapeImportRequest is the payload for POST /api/v1/scrape/import.
type ScrapeImportRequest struct {
	// Slugs selects known chains to scrape. Empty means all known chains.
	Slugs []string `json:"slugs,omitempty"`

	// AutoRank scores each imported deal immediately. Defaults to true.
	AutoRank *bool `json:"auto_rank,omitempty"`
}

// RankImports reports the effective auto-rank setting.
func (r *ScrapeImportRequest) RankImports() bool {
	return r.AutoRank == nil || *r.AutoRank
}

// StoreSearchRequest is the payload for POST /api/v1/stores/search.
type StoreSearchRequest struct {
	// Restaurant is the chain name to look for. Required.
	Restaurant string `json:"restaurant" binding:"required"`

	// Location is a free-text location (ZIP or "City, State"). Required.
	Location string `json:"location" binding:"required"`

	// Latitude/Longitude skip geocoding when both are set.
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// PlatformMenuRequest is the payload for POST /api/v1/ubereats/menu.
type PlatformMenuRequest struct {
	// StoreURL is the delivery-platform store page. Required.
	StoreURL string `json:"store_url" binding:"required,url"`

	// Restaurant labels the extracted items. Required.
	Restaurant string `json:"restaurant" binding:"required"`

	// Location annotates items with the delivery context they were
	// fetched under.
	Location string `json:"location,omitempty"`

	// Import persists extracted items as deals when true.
	Import bool `json:"import,omitempty"`
}

// RankAllRequest is the payload for POST /api/v1/deals/rank-all.
type RankAllRequest struct {
	// BatchSize caps deals ranked in parallel. Default: 10. Max: 20.
	BatchSize int `json:"batch_size,omitempty" binding:"omitempty,min=1,max=20"`

	// Force re-ranks deals that already carry a score.
	Force bool `json:"force,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *RankAllRequest) Defaults() {
	if r.BatchSize == 0 {
		r.BatchSize = 10
	}
}
