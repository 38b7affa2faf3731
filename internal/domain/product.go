package domain

// Product is an item sold for virtual currency. A product bundles the premium
// spreads and cards it unlocks.
type Product struct {
	ID          string        `json:"id"`
	Name        LocalizedText `json:"name"`
	Description LocalizedText `json:"description"`
	Price       int           `json:"price"`
	Glyph       string        `json:"glyph"`
	SpreadIDs   []string      `json:"spreads"`
	CardIDs     []int         `json:"cards"`
}
