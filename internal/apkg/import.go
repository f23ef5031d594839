package apkg

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/conorfennell/blonki/internal/container"
	"github.com/conorfennell/blonki/internal/domain"
	"github.com/conorfennell/blonki/internal/fields"
	"github.com/conorfennell/blonki/internal/sanitize"
	"github.com/conorfennell/blonki/internal/snapshot"
	"github.com/conorfennell/blonki/internal/srs"
)

const (
	emptyFront      = "No front content"
	emptyBack       = "No back content"
	importedDesc    = "Imported from APKG file"
	defaultDeckSlot = "Default"
)

// Import reads an archive and returns one deck holding a card per note with
// at least two fields. Every card starts with the initial schedule.
func (t *Translator) Import(ctx context.Context, data []byte) (*Collection, error) {
	payload, entry, err := container.ReadCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}

	r, err := snapshot.Open(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %s: %w", entry, err)
	}
	defer r.Close()

	name := t.deckName(ctx, r)

	notes, err := r.Notes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read notes: %w", err)
	}

	now := t.now()
	ids := domain.NewIDSequence(now)
	deckID := ids.Next()

	cards := make([]domain.Card, 0, len(notes))
	skipped := 0
	for _, n := range notes {
		fs := fields.Decode(n.Flds)
		if len(fs) < 2 {
			t.log.Debug("skipping note with fewer than two fields", "note", n.ID, "format", fields.Format(n.Flds))
			skipped++
			continue
		}
		// Placeholders stand in for missing fields only; a field holding
		// nothing but markup cleans to empty text.
		front, back := fs[0], fs[1]
		if front == "" {
			front = emptyFront
		}
		if back == "" {
			back = emptyBack
		}
		front, back = sanitize.Clean(front), sanitize.Clean(back)
		cards = append(cards, domain.Card{
			ID:        ids.Next(),
			Front:     front,
			Back:      back,
			CreatedAt: now,
			UpdatedAt: now,
			Schedule:  srs.Initial(now),
		})
	}

	if len(cards) == 0 {
		return nil, ErrEmptyImport
	}

	deck := domain.Deck{
		ID:          deckID,
		Name:        name,
		Description: importedDesc,
		CreatedAt:   now,
		UpdatedAt:   now,
		CardCount:   len(cards),
	}
	for i := range cards {
		cards[i].DeckID = deck.ID
	}

	t.log.Info("imported collection",
		"entry", entry,
		"deck", deck.Name,
		"notes", len(notes),
		"cards", len(cards),
		"skipped", skipped,
	)

	return &Collection{
		Decks:    []domain.Deck{deck},
		Cards:    cards,
		Settings: map[string]any{},
	}, nil
}

// deckName picks the first deck of col.decks, then the first non-default row
// of the decks table, then the configured default.
func (t *Translator) deckName(ctx context.Context, r *snapshot.Reader) string {
	col, err := r.Collection(ctx)
	if err != nil {
		t.log.Warn("collection row unavailable, using fallback deck name", "error", err)
	} else if col.Decks != "" {
		name, err := firstDeckName(col.Decks)
		if err != nil {
			t.log.Warn("could not parse decks JSON", "error", err)
		} else if name != "" {
			return name
		}
	}

	names, err := r.DeckNames(ctx)
	if err != nil {
		t.log.Warn("could not read decks table", "error", err)
	}
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" && n != defaultDeckSlot {
			return n
		}
	}
	return t.defaultName
}

// firstDeckName returns the name of the first value in a JSON object of
// decks, in document order.
func firstDeckName(raw string) (string, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return "", fmt.Errorf("decks JSON is not an object")
	}
	if !dec.More() {
		return "", nil
	}
	if _, err := dec.Token(); err != nil {
		return "", err
	}
	var entry struct {
		Name string `json:"name"`
	}
	if err := dec.Decode(&entry); err != nil {
		return "", err
	}
	return entry.Name, nil
}
