package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecountDecks(t *testing.T) {
	decks := []Deck{{ID: 1, Name: "a", CardCount: 99}, {ID: 2, Name: "b", CardCount: 7}, {ID: 3, Name: "empty"}}
	cards := []Card{{ID: 10, DeckID: 1}, {ID: 11, DeckID: 1}, {ID: 12, DeckID: 2}, {ID: 13, DeckID: 42}}

	RecountDecks(decks, cards)

	assert.Equal(t, 2, decks[0].CardCount)
	assert.Equal(t, 1, decks[1].CardCount)
	assert.Equal(t, 0, decks[2].CardCount)
	assert.Equal(t, 2, CountCards(cards, 1))
}

func TestIDSequence(t *testing.T) {
	start := time.UnixMilli(1_700_000_000_000)
	seq := NewIDSequence(start)

	first := seq.Next()
	second := seq.Next()

	assert.Equal(t, start.UnixMilli(), first)
	assert.Equal(t, first+1, second)
}

func TestOutcomeValid(t *testing.T) {
	assert.True(t, Correct.Valid())
	assert.True(t, Incorrect.Valid())
	assert.False(t, Outcome("easy").Valid())
}

func TestResumeIDSequence(t *testing.T) {
	seq := ResumeIDSequence(41)
	assert.Equal(t, int64(42), seq.Next())
}
