package domain

// Category groups cards into the major arcana and the four minor suits.
type Category string

// Card categories.
const (
	CategoryMajor     Category = "major"
	CategoryWands     Category = "wands"
	CategoryCups      Category = "cups"
	CategorySwords    Category = "swords"
	CategoryPentacles Category = "pentacles"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryMajor, CategoryWands, CategoryCups, CategorySwords, CategoryPentacles:
		return true
	}
	return false
}

// LocalizedText holds a string in each supported display language.
type LocalizedText struct {
	En string `json:"en"`
	Zh string `json:"zh"`
}

// In returns the text for the given language code, falling back to English.
func (t LocalizedText) In(lang string) string {
	if lang == "zh" && t.Zh != "" {
		return t.Zh
	}
	if t.En != "" {
		return t.En
	}
	return t.Zh
}

// Meaning holds the interpretation of a card in each orientation.
type Meaning struct {
	Upright  LocalizedText `json:"upright"`
	Reversed LocalizedText `json:"reversed"`
}

// Card is an immutable tarot card definition.
type Card struct {
	ID       int           `json:"id"`
	Name     LocalizedText `json:"name"`
	Category Category      `json:"category"`
	Meaning  Meaning       `json:"meaning"`
	Glyph    string        `json:"glyph"`
}

// Orientation is the direction a drawn card faces.
type Orientation string

const (
	Upright  Orientation = "upright"
	Reversed Orientation = "reversed"
)

// DrawnCard is a card placed into a slot with its orientation and the meaning
// that orientation selects. Created once per slot.
type DrawnCard struct {
	Card        Card          `json:"card"`
	Orientation Orientation   `json:"orientation"`
	Meaning     LocalizedText `json:"meaning"`
}

// NewDrawnCard resolves the meaning of card for the given orientation.
func NewDrawnCard(card Card, reversed bool) DrawnCard {
	if reversed {
		return DrawnCard{Card: card, Orientation: Reversed, Meaning: card.Meaning.Reversed}
	}
	return DrawnCard{Card: card, Orientation: Upright, Meaning: card.Meaning.Upright}
}

// IsReversed reports whether the card was drawn reversed.
func (d DrawnCard) IsReversed() bool {
	return d.Orientation == Reversed
}

// RNG abstracts the random source used for draws so tests can fix outcomes.
type RNG interface {
	// Intn returns a uniform integer in [0, n).
	Intn(n int) int
}
