// Package apkg translates between the library's decks and cards and the
// .apkg collection archive used by the wider flashcard ecosystem.
package apkg

import (
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/blonki/internal/domain"
)

var (
	// ErrEmptyImport is returned when an archive yields no usable cards.
	ErrEmptyImport = errors.New("apkg: no valid cards found in archive")
	// ErrNoDecks is returned when Export is called without any deck.
	ErrNoDecks = errors.New("apkg: no decks selected for export")
)

// DefaultDeckName names the imported deck when the archive carries no usable name.
const DefaultDeckName = "Imported Deck"

// Collection is the result of an import.
type Collection struct {
	Decks    []domain.Deck  `json:"decks"`
	Cards    []domain.Card  `json:"cards"`
	Settings map[string]any `json:"settings"`
}

// Translator converts archives to collections and back. A Translator holds
// no mutable state and may be shared.
type Translator struct {
	now             func() time.Time
	log             *slog.Logger
	compress        bool
	includeSettings bool
	defaultName     string
	validate        *validator.Validate
}

// Option configures a Translator.
type Option func(*Translator)

// WithClock overrides the time source used for timestamps and ids.
func WithClock(now func() time.Time) Option {
	return func(t *Translator) { t.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(t *Translator) { t.log = l }
}

// WithCompression zstd-compresses the collection entry on export.
func WithCompression(on bool) Option {
	return func(t *Translator) { t.compress = on }
}

// WithCollectionSettings writes the collection settings blob into col.conf on export.
func WithCollectionSettings(on bool) Option {
	return func(t *Translator) { t.includeSettings = on }
}

// WithDefaultDeckName sets the name used when an archive has no usable deck name.
func WithDefaultDeckName(name string) Option {
	return func(t *Translator) {
		if name != "" {
			t.defaultName = name
		}
	}
}

// New returns a Translator. Without options it uses the wall clock,
// slog.Default, a raw collection entry and no collection settings.
func New(opts ...Option) *Translator {
	t := &Translator{
		now:         time.Now,
		log:         slog.Default(),
		defaultName: DefaultDeckName,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Filename is the name given to an archive exported at now.
func Filename(now time.Time) string {
	return "blonki-export-" + now.Format(time.DateOnly) + ".apkg"
}
