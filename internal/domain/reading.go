package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReadingCard is one card of a saved reading.
type ReadingCard struct {
	Position    int         `json:"position"`
	CardID      int         `json:"card_id"`
	Orientation Orientation `json:"orientation"`
}

// Reading is a completed reading persisted by the backend.
type Reading struct {
	ID         uuid.UUID     `json:"id"`
	UserID     uuid.UUID     `json:"user_id"`
	SpreadType string        `json:"spread_type"`
	Cards      []ReadingCard `json:"cards"`
	CreatedAt  time.Time     `json:"created_at"`
}

// ReadingFromSession converts a completed session into the cards to save.
func ReadingFromSession(s ReadingSession) []ReadingCard {
	cards := make([]ReadingCard, 0, len(s.Slots))
	for i, d := range s.Slots {
		if d == nil {
			continue
		}
		cards = append(cards, ReadingCard{Position: i, CardID: d.Card.ID, Orientation: d.Orientation})
	}
	return cards
}
