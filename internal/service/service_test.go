package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/blonki/internal/apkg"
	"github.com/conorfennell/blonki/internal/domain"
	"github.com/conorfennell/blonki/internal/srs"
	"github.com/conorfennell/blonki/internal/storage"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	decks   []domain.Deck
	cards   map[int64]*domain.Card
	reviews []domain.Review
	saved   map[int64]domain.Schedule
	err     error
}

func (f *fakeStore) Decks(_ context.Context, ids ...int64) ([]domain.Deck, error) {
	if len(ids) == 0 {
		return f.decks, nil
	}
	var out []domain.Deck
	for _, id := range ids {
		found := false
		for _, d := range f.decks {
			if d.ID == id {
				out = append(out, d)
				found = true
			}
		}
		if !found {
			return nil, storage.ErrNotFound
		}
	}
	return out, nil
}

func (f *fakeStore) CardsByDeck(_ context.Context, deckIDs ...int64) ([]domain.Card, error) {
	var out []domain.Card
	for _, c := range f.cards {
		for _, id := range deckIDs {
			if c.DeckID == id {
				out = append(out, *c)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) GetCard(_ context.Context, id int64) (*domain.Card, error) {
	c, ok := f.cards[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) RecordReview(_ context.Context, r domain.Review, next domain.Schedule) error {
	if f.err != nil {
		return f.err
	}
	f.reviews = append(f.reviews, r)
	if f.saved == nil {
		f.saved = map[int64]domain.Schedule{}
	}
	f.saved[r.CardID] = next
	return nil
}

type fakeExporter struct {
	decks []domain.Deck
	cards []domain.Card
}

func (f *fakeExporter) Export(_ context.Context, decks []domain.Deck, cards []domain.Card) ([]byte, error) {
	f.decks, f.cards = decks, cards
	return []byte("PK"), nil
}

func newStore() *fakeStore {
	return &fakeStore{
		decks: []domain.Deck{{ID: 1, Name: "Spanish"}, {ID: 2, Name: "French"}},
		cards: map[int64]*domain.Card{
			10: {ID: 10, DeckID: 1, Front: "hola", Back: "hello", Schedule: srs.Initial(now.Add(-time.Hour))},
			11: {ID: 11, DeckID: 2, Front: "bonjour", Back: "hello", Schedule: srs.Initial(now.Add(-time.Hour))},
		},
	}
}

func newService(store Store, exp Exporter) *Service {
	return New(store, exp, srs.SM2{},
		WithClock(func() time.Time { return now }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func TestReview(t *testing.T) {
	store := newStore()
	svc := newService(store, &fakeExporter{})

	card, err := svc.Review(context.Background(), 10, domain.Correct, 4*time.Second)
	require.NoError(t, err)

	assert.Equal(t, 1, card.Repetitions)
	assert.Equal(t, 1, card.Interval)
	assert.Equal(t, now.Add(24*time.Hour), card.DueDate)
	require.NotNil(t, card.LastReviewed)
	assert.Equal(t, now, *card.LastReviewed)
	assert.Equal(t, now, card.UpdatedAt)

	require.Len(t, store.reviews, 1)
	assert.Equal(t, domain.Review{CardID: 10, Outcome: domain.Correct, ResponseTime: 4 * time.Second, Timestamp: now}, store.reviews[0])
	assert.Equal(t, card.Schedule, store.saved[10])
}

func TestReviewErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid outcome", func(t *testing.T) {
		_, err := newService(newStore(), nil).Review(ctx, 10, "maybe", 0)
		assert.ErrorIs(t, err, ErrInvalidOutcome)
	})

	t.Run("unknown card", func(t *testing.T) {
		_, err := newService(newStore(), nil).Review(ctx, 99, domain.Correct, 0)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("store failure", func(t *testing.T) {
		store := newStore()
		store.err = errors.New("disk full")
		_, err := newService(store, nil).Review(ctx, 10, domain.Incorrect, 0)
		assert.ErrorContains(t, err, "disk full")
	})
}

func TestExport(t *testing.T) {
	ctx := context.Background()

	t.Run("selected decks", func(t *testing.T) {
		exp := &fakeExporter{}
		out, err := newService(newStore(), exp).Export(ctx, 2)
		require.NoError(t, err)

		assert.Equal(t, "blonki-export-2025-03-01.apkg", out.Name)
		assert.Equal(t, []byte("PK"), out.Data)
		assert.Equal(t, 1, out.Decks)
		assert.Equal(t, 1, out.Cards)
		require.Len(t, exp.decks, 1)
		assert.Equal(t, "French", exp.decks[0].Name)
		assert.Equal(t, 1, exp.decks[0].CardCount)
	})

	t.Run("all decks", func(t *testing.T) {
		exp := &fakeExporter{}
		out, err := newService(newStore(), exp).Export(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, out.Decks)
		assert.Equal(t, 2, out.Cards)
	})

	t.Run("unknown deck", func(t *testing.T) {
		_, err := newService(newStore(), &fakeExporter{}).Export(ctx, 7)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("empty library", func(t *testing.T) {
		_, err := newService(&fakeStore{}, &fakeExporter{}).Export(ctx)
		assert.ErrorIs(t, err, apkg.ErrNoDecks)
	})
}
