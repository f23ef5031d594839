package domain

import (
	"time"

	"github.com/samber/lo"
)

// Deck groups cards under a name.
// CardCount is a cache; use CountCards to recompute it rather than trusting it.
type Deck struct {
	ID          int64     `json:"id" validate:"required"`
	Name        string    `json:"name" validate:"required"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	CardCount   int       `json:"cardCount" validate:"gte=0"`
}

// CountCards returns the number of cards belonging to deckID.
func CountCards(cards []Card, deckID int64) int {
	return lo.CountBy(cards, func(c Card) bool { return c.DeckID == deckID })
}

// RecountDecks refreshes CardCount on every deck from cards.
func RecountDecks(decks []Deck, cards []Card) {
	counts := lo.CountValuesBy(cards, func(c Card) int64 { return c.DeckID })
	for i := range decks {
		decks[i].CardCount = counts[decks[i].ID]
	}
}
