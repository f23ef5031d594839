package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/blonki/internal/domain"
)

var clock = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func setupTestLibrary(t *testing.T) *Library {
	t.Helper()
	lib, err := Open(context.Background(), Config{Backend: BackendSQLite, Path: ":memory:"},
		WithClock(func() time.Time { return clock }))
	require.NoError(t, err)
	t.Cleanup(func() { lib.Close() })
	return lib
}

func importedCollection(name string, pairs ...string) ([]domain.Deck, []domain.Card) {
	deck := domain.Deck{ID: 1, Name: name, CreatedAt: clock, UpdatedAt: clock}
	var cards []domain.Card
	for i := 0; i+1 < len(pairs); i += 2 {
		cards = append(cards, domain.Card{
			ID:        int64(10 + i),
			DeckID:    1,
			Front:     pairs[i],
			Back:      pairs[i+1],
			CreatedAt: clock,
			UpdatedAt: clock,
			Schedule:  domain.Schedule{Interval: 1, EaseFactor: 2.5, DueDate: clock},
		})
	}
	return []domain.Deck{deck}, cards
}

func TestOpenDescription(t *testing.T) {
	lib := setupTestLibrary(t)
	assert.Equal(t, "SQLite (in-memory)", lib.Description())

	_, err := Open(context.Background(), Config{Backend: "postgres"})
	assert.Error(t, err)
}

func TestSaveCollectionReplace(t *testing.T) {
	ctx := context.Background()
	lib := setupTestLibrary(t)

	decks, cards := importedCollection("Spanish", "hola", "hello", "adiós", "goodbye")
	res, err := lib.SaveCollection(ctx, decks, cards, false)
	require.NoError(t, err)
	require.Len(t, res.Decks, 1)
	assert.Equal(t, 2, res.Decks[0].CardCount)
	assert.Equal(t, clock.UnixMilli(), res.Decks[0].ID)

	decks, cards = importedCollection("French", "bonjour", "hello")
	_, err = lib.SaveCollection(ctx, decks, cards, false)
	require.NoError(t, err)

	listed, err := lib.ListDecks(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "French", listed[0].Name)
	assert.Equal(t, 1, listed[0].CardCount)
}

func TestSaveCollectionMerge(t *testing.T) {
	ctx := context.Background()
	lib := setupTestLibrary(t)

	decks, cards := importedCollection("Spanish", "hola", "hello")
	first, err := lib.SaveCollection(ctx, decks, cards, false)
	require.NoError(t, err)

	decks, cards = importedCollection("Spanish", " HOLA ", "hello", "gato", "cat")
	res, err := lib.SaveCollection(ctx, decks, cards, true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Cards, 1)
	assert.Equal(t, first.Decks[0].ID, res.Cards[0].DeckID)
	assert.Equal(t, 2, res.Decks[0].CardCount)

	decks, cards = importedCollection("German", "hund", "dog")
	_, err = lib.SaveCollection(ctx, decks, cards, true)
	require.NoError(t, err)

	listed, err := lib.ListDecks(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 2)

	all, err := lib.CardsByDeck(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	ids := map[int64]bool{}
	for _, c := range all {
		assert.False(t, ids[c.ID], "duplicate id %d", c.ID)
		ids[c.ID] = true
	}
}

func TestSaveCollectionRepeatedDeckName(t *testing.T) {
	for _, merge := range []bool{false, true} {
		t.Run(map[bool]string{false: "replace", true: "merge"}[merge], func(t *testing.T) {
			ctx := context.Background()
			lib := setupTestLibrary(t)

			decks := []domain.Deck{
				{ID: 1, Name: "Spanish", CreatedAt: clock, UpdatedAt: clock},
				{ID: 2, Name: "Spanish", CreatedAt: clock, UpdatedAt: clock},
			}
			cards := []domain.Card{
				{ID: 10, DeckID: 1, Front: "hola", Back: "hello", CreatedAt: clock, UpdatedAt: clock},
				{ID: 11, DeckID: 2, Front: "gato", Back: "cat", CreatedAt: clock, UpdatedAt: clock},
			}
			res, err := lib.SaveCollection(ctx, decks, cards, merge)
			require.NoError(t, err)

			require.Len(t, res.Decks, 1)
			assert.Equal(t, 2, res.Decks[0].CardCount)
			require.Len(t, res.Cards, 2)
			assert.Equal(t, res.Decks[0].ID, res.Cards[1].DeckID)

			listed, err := lib.ListDecks(ctx)
			require.NoError(t, err)
			assert.Len(t, listed, 1)
		})
	}
}

func TestCardsByDeckAndDecks(t *testing.T) {
	ctx := context.Background()
	lib := setupTestLibrary(t)

	decks, cards := importedCollection("Spanish", "hola", "hello", "gato", "cat")
	res, err := lib.SaveCollection(ctx, decks, cards, false)
	require.NoError(t, err)
	deckID := res.Decks[0].ID

	got, err := lib.CardsByDeck(ctx, deckID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "hola", got[0].Front)
	assert.Equal(t, clock, got[0].DueDate)
	assert.Nil(t, got[0].LastReviewed)

	none, err := lib.CardsByDeck(ctx, deckID+1000)
	require.NoError(t, err)
	assert.Empty(t, none)

	selected, err := lib.Decks(ctx, deckID, deckID)
	require.NoError(t, err)
	assert.Len(t, selected, 1)

	_, err = lib.Decks(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordReview(t *testing.T) {
	ctx := context.Background()
	lib := setupTestLibrary(t)

	decks, cards := importedCollection("Spanish", "hola", "hello")
	res, err := lib.SaveCollection(ctx, decks, cards, false)
	require.NoError(t, err)
	cardID := res.Cards[0].ID

	reviewed := clock.Add(time.Hour)
	next := domain.Schedule{Interval: 1, Repetitions: 1, EaseFactor: 2.36, DueDate: reviewed.Add(24 * time.Hour), LastReviewed: &reviewed}
	review := domain.Review{CardID: cardID, Outcome: domain.Correct, ResponseTime: 4 * time.Second, Timestamp: reviewed}
	require.NoError(t, lib.RecordReview(ctx, review, next))

	got, err := lib.GetCard(ctx, cardID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Repetitions)
	assert.InDelta(t, 2.36, got.EaseFactor, 1e-9)
	require.NotNil(t, got.LastReviewed)
	assert.Equal(t, reviewed, *got.LastReviewed)
	assert.Equal(t, reviewed, got.UpdatedAt)

	n, err := lib.ReviewCount(ctx, cardID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	review.CardID = 999
	assert.ErrorIs(t, lib.RecordReview(ctx, review, next), ErrNotFound)

	_, err = lib.GetCard(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}
