// Package service combines the library store, the archive translator and the
// scheduling rule into the operations the CLI and HTTP API expose.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/conorfennell/blonki/internal/apkg"
	"github.com/conorfennell/blonki/internal/domain"
	"github.com/conorfennell/blonki/internal/srs"
)

// ErrInvalidOutcome is returned by Review for an outcome other than correct
// or incorrect.
var ErrInvalidOutcome = errors.New("outcome must be correct or incorrect")

// Store is the part of the library the service reads and updates.
type Store interface {
	Decks(ctx context.Context, ids ...int64) ([]domain.Deck, error)
	CardsByDeck(ctx context.Context, deckIDs ...int64) ([]domain.Card, error)
	GetCard(ctx context.Context, id int64) (*domain.Card, error)
	RecordReview(ctx context.Context, r domain.Review, next domain.Schedule) error
}

// Exporter packs decks and cards into an archive.
type Exporter interface {
	Export(ctx context.Context, decks []domain.Deck, cards []domain.Card) ([]byte, error)
}

// Export is a packed archive and the name it should be saved under.
type Export struct {
	Name  string
	Data  []byte
	Decks int
	Cards int
}

// Service runs reviews and exports against a Store.
type Service struct {
	store     Store
	exporter  Exporter
	algorithm srs.Algorithm
	now       func() time.Time
	log       *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// New returns a Service scheduling reviews with algorithm.
func New(store Store, exporter Exporter, algorithm srs.Algorithm, opts ...Option) *Service {
	s := &Service{
		store:     store,
		exporter:  exporter,
		algorithm: algorithm,
		now:       time.Now,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Algorithm is the scheduling rule reviews are applied with.
func (s *Service) Algorithm() srs.Algorithm {
	return s.algorithm
}

// Review applies outcome to the card, stores the new schedule and returns the
// updated card.
func (s *Service) Review(ctx context.Context, cardID int64, outcome domain.Outcome, responseTime time.Duration) (*domain.Card, error) {
	if !outcome.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOutcome, outcome)
	}
	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	next := s.algorithm.Next(card.Schedule, outcome, responseTime, now)
	review := domain.Review{
		CardID:       cardID,
		Outcome:      outcome,
		ResponseTime: responseTime,
		Timestamp:    now,
	}
	if err := s.store.RecordReview(ctx, review, next); err != nil {
		return nil, err
	}

	card.Schedule = next
	card.UpdatedAt = now
	s.log.Info("Recorded review",
		"card", cardID,
		"outcome", outcome,
		"algorithm", s.algorithm.Name(),
		"interval", next.Interval,
		"due", next.DueDate,
	)
	return card, nil
}

// Export packs the given decks, or every deck when deckIDs is empty, with
// their cards.
func (s *Service) Export(ctx context.Context, deckIDs ...int64) (*Export, error) {
	decks, err := s.store.Decks(ctx, deckIDs...)
	if err != nil {
		return nil, err
	}
	if len(decks) == 0 {
		return nil, apkg.ErrNoDecks
	}

	ids := make([]int64, len(decks))
	for i, d := range decks {
		ids[i] = d.ID
	}
	cards, err := s.store.CardsByDeck(ctx, ids...)
	if err != nil {
		return nil, err
	}
	domain.RecountDecks(decks, cards)

	data, err := s.exporter.Export(ctx, decks, cards)
	if err != nil {
		return nil, err
	}
	return &Export{
		Name:  apkg.Filename(s.now()),
		Data:  data,
		Decks: len(decks),
		Cards: len(cards),
	}, nil
}
