package domain

import "time"

// Nutrient keys recognized in the catalog. Absent nutrients are omitted from
// CatalogItem.Nutrients rather than stored as zero.
const (
	NutrientEnergy       = "energy_kcal"
	NutrientProtein      = "protein_g"
	NutrientFat          = "fat_g"
	NutrientCarbohydrate = "carbohydrate_g"
	NutrientSugars       = "sugars_g"
	NutrientFiber        = "dietary_fiber_g"
	NutrientSodium       = "sodium_mg"
)

// NutrientKeys lists the nutrient keys in their canonical column order
var NutrientKeys = []string{
	NutrientEnergy,
	NutrientProtein,
	NutrientFat,
	NutrientCarbohydrate,
	NutrientSugars,
	NutrientFiber,
	NutrientSodium,
}

// IsNutrientKey reports whether key belongs to the fixed nutrient set
func IsNutrientKey(key string) bool {
	for _, k := range NutrientKeys {
		if k == key {
			return true
		}
	}
	return false
}

// CatalogItem is a reference food in the catalog
type CatalogItem struct {
	ID          int64              `json:"id"`
	Code        string             `json:"code"`
	Name        string             `json:"name"`
	CommonName  string             `json:"commonName,omitempty"`
	ServingSize string             `json:"servingSize,omitempty"`
	Nutrients   map[string]float64 `json:"nutrients"`
}

// EmbeddingRecord is the persisted vector for a single catalog item
type EmbeddingRecord struct {
	ItemID    int64
	Dimension int
	Vector    []float32
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IndexedItem is a catalog item joined with its stored embedding
type IndexedItem struct {
	Item      CatalogItem
	Dimension int
	Vector    []float32
}

// MatchResult is a single ranked catalog match for a query
type MatchResult struct {
	Score float64     `json:"score"`
	Item  CatalogItem `json:"food"`
}

// MatchRequest is the body of a match request
type MatchRequest struct {
	Query     string   `json:"query"`
	Limit     *int     `json:"limit,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

// MatchResponse is the body of a match response
type MatchResponse struct {
	Matches []MatchResult `json:"matches"`
}

// IndexStatus describes the currently published index snapshot
type IndexStatus struct {
	Ready     bool      `json:"ready"`
	Records   int       `json:"records"`
	Dimension int       `json:"dimension"`
	LoadedAt  time.Time `json:"loadedAt,omitempty"`
}
