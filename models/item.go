package models

import "encoding/json"

// MenuItem is one extracted, priced menu entry from a restaurant page or a
// delivery-platform store. Immutable once produced; callers discard items
// without a positive price before scoring.
type MenuItem struct {
	// Restaurant is the display name of the chain or store.
	Restaurant string `json:"restaurant"`

	// Name is the item's menu name. Required.
	Name string `json:"name"`

	// Price is in major currency units, rounded to 2 decimals.
	// Minor-unit (cents) sources are converted before the record is built.
	Price *float64 `json:"price,omitempty"`

	// Calories and ProteinGrams come from structured nutrition data when
	// the source exposes it; otherwise the ranker estimates them.
	Calories     *int     `json:"calories,omitempty"`
	ProteinGrams *float64 `json:"protein_grams,omitempty"`

	// Category is the nearest enclosing menu section, when known.
	Category string `json:"category,omitempty"`

	// Location is the delivery context the price was retrieved for
	// (ZIP, city), when the caller supplied one.
	Location string `json:"location,omitempty"`

	// SourceURL is the page the item was extracted from.
	SourceURL string `json:"source_url"`

	// Raw preserves the source payload the item was coerced from.
	Raw json.RawMessage `json:"raw,omitempty"`
}

// HasPrice reports whether the item carries a usable (positive) price.
func (m *MenuItem) HasPrice() bool {
	return m.Price != nil && *m.Price > 0
}

// Store is one resolved, location-qualified delivery-platform storefront.
type Store struct {
	// Name is the storefront display name.
	Name string `json:"name"`

	// StoreURL is the direct store page URL with the location token
	// attached so the destination resolves delivery eligibility.
	StoreURL string `json:"store_url"`

	// StoreID is the platform identifier (UUID or slug); dedup key.
	StoreID string `json:"store_id"`

	// Address is the storefront address, when the listing exposes one.
	Address string `json:"address,omitempty"`

	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// Float64Ptr returns a pointer to v. Convenience for optional fields.
func Float64Ptr(v float64) *float64 { return &v }

// IntPtr returns a pointer to v. Convenience for optional fields.
func IntPtr(v int) *int { return &v }

// BoolPtr returns a pointer to v. Convenience for optional fields.
func BoolPtr(v bool) *bool { return &v }
