package apkg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/conorfennell/blonki/internal/container"
	"github.com/conorfennell/blonki/internal/domain"
	"github.com/conorfennell/blonki/internal/fields"
	"github.com/conorfennell/blonki/internal/snapshot"
	"github.com/conorfennell/blonki/internal/srs"
)

// Export packs decks and cards into an archive. Every card becomes one note
// of the Basic model and one card row; the note reuses the card's id.
func (t *Translator) Export(ctx context.Context, decks []domain.Deck, cards []domain.Card) ([]byte, error) {
	if len(decks) == 0 {
		return nil, ErrNoDecks
	}
	for _, d := range decks {
		if err := t.validate.Struct(d); err != nil {
			return nil, fmt.Errorf("invalid deck %q: %w", d.Name, err)
		}
	}

	now := t.now()
	snap, err := t.buildSnapshot(decks, cards, now)
	if err != nil {
		return nil, err
	}

	payload, err := snapshot.Write(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("failed to write collection: %w", err)
	}

	opts := []container.Option{container.WithModified(now)}
	if t.compress {
		opts = append(opts, container.WithCompression())
	}
	archive, err := container.PackCollection(payload, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack archive: %w", err)
	}

	t.log.Info("exported collection",
		"decks", len(decks),
		"cards", len(cards),
		"compressed", t.compress,
		"bytes", len(archive),
	)
	return archive, nil
}

func (t *Translator) buildSnapshot(decks []domain.Deck, cards []domain.Card, now time.Time) (*snapshot.Snapshot, error) {
	deckConfig, err := json.Marshal(defaultDeckConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to encode deck config: %w", err)
	}
	models, err := json.Marshal(map[string]snapshot.Model{
		strconv.Itoa(modelID): basicModel(decks[0].ID, now),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode models: %w", err)
	}
	dconf, err := json.Marshal(map[string]snapshot.DeckConfig{
		strconv.Itoa(deckConfigID): defaultDeckConfig(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode deck configs: %w", err)
	}
	colDecks, err := encodeDeckEntries(decks)
	if err != nil {
		return nil, err
	}
	conf := []byte("{}")
	if t.includeSettings {
		conf, err = json.Marshal(defaultCollectionConfig(decks[0].ID))
		if err != nil {
			return nil, fmt.Errorf("failed to encode collection settings: %w", err)
		}
	}

	snap := &snapshot.Snapshot{
		Collection: snapshot.CollectionRow{
			ID:     collectionRow,
			Crt:    now.Unix(),
			Mod:    now.Unix(),
			Scm:    now.Unix(),
			Ver:    schemaVersion,
			Conf:   string(conf),
			Models: string(models),
			Decks:  colDecks,
			Dconf:  string(dconf),
			Tags:   "{}",
		},
		Decks: lo.Map(decks, func(d domain.Deck, _ int) snapshot.DeckRow {
			return snapshot.DeckRow{
				ID:        d.ID,
				Name:      d.Name,
				MtimeSecs: d.UpdatedAt.Unix(),
				Config:    string(deckConfig),
				Desc:      d.Description,
			}
		}),
		Notes: make([]snapshot.NoteRow, 0, len(cards)),
		Cards: make([]snapshot.CardRow, 0, len(cards)),
	}

	for _, c := range cards {
		mod := c.UpdatedAt.Unix()
		snap.Notes = append(snap.Notes, snapshot.NoteRow{
			ID:   c.ID,
			GUID: uuid.NewString(),
			Mid:  modelID,
			Mod:  mod,
			Flds: fields.Encode(c.Front, c.Back),
			Sfld: c.Front,
			Csum: Checksum(c.Front),
		})

		ext := srs.ExternalSchedule(c, now)
		snap.Cards = append(snap.Cards, snapshot.CardRow{
			ID:     c.ID,
			Nid:    c.ID,
			Did:    c.DeckID,
			Ord:    0,
			Mod:    mod,
			Type:   ext.Type,
			Queue:  ext.Queue,
			Due:    ext.Due,
			Ivl:    ext.Interval,
			Factor: ext.Factor,
			Reps:   ext.Reps,
			Lapses: ext.Lapses,
		})
	}
	return snap, nil
}

// encodeDeckEntries writes col.decks as a JSON object keyed by deck id,
// preserving the order of decks so the first deck is read back first.
func encodeDeckEntries(decks []domain.Deck) (string, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, d := range decks {
		if i > 0 {
			buf.WriteByte(',')
		}
		entry, err := json.Marshal(snapshot.DeckEntry{
			ID:   d.ID,
			Name: d.Name,
			Desc: d.Description,
			Mod:  d.UpdatedAt.Unix(),
			Conf: deckConfigID,
		})
		if err != nil {
			return "", fmt.Errorf("failed to encode deck %d: %w", d.ID, err)
		}
		fmt.Fprintf(&buf, "%q:", strconv.FormatInt(d.ID, 10))
		buf.Write(entry)
	}
	buf.WriteByte('}')
	return buf.String(), nil
}
