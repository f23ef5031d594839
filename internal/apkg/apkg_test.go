package apkg

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/blonki/internal/container"
	"github.com/conorfennell/blonki/internal/domain"
	"github.com/conorfennell/blonki/internal/snapshot"
	"github.com/conorfennell/blonki/internal/srs"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestTranslator(opts ...Option) *Translator {
	base := []Option{
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return New(append(base, opts...)...)
}

func spanish() ([]domain.Deck, []domain.Card) {
	created := fixedNow.Add(-48 * time.Hour)
	deck := domain.Deck{ID: 100, Name: "Spanish", Description: "verbs", CreatedAt: created, UpdatedAt: created, CardCount: 2}
	cards := []domain.Card{
		{ID: 101, DeckID: 100, Front: "<b>hablar</b>", Back: "to speak &amp; talk", CreatedAt: created, UpdatedAt: created, Schedule: srs.Initial(created)},
		{ID: 102, DeckID: 100, Front: "comer", Back: "to eat", CreatedAt: created, UpdatedAt: created,
			Schedule: domain.Schedule{Interval: 6, Repetitions: 2, EaseFactor: 2.36, DueDate: created.Add(6 * 24 * time.Hour)}},
	}
	return []domain.Deck{deck}, cards
}

// openExport unpacks an exported archive and returns a reader on its database.
func openExport(t *testing.T, archive []byte) *snapshot.Reader {
	t.Helper()
	payload, entry, err := container.ReadCollection(archive)
	require.NoError(t, err)
	assert.Equal(t, container.EntryCompressed, entry)
	r, err := snapshot.Open(context.Background(), payload)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestExportSingleDeck(t *testing.T) {
	ctx := context.Background()
	decks, cards := spanish()

	archive, err := newTestTranslator().Export(ctx, decks, cards)
	require.NoError(t, err)
	r := openExport(t, archive)

	names, err := r.DeckNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Spanish"}, names)

	dids, err := r.Column(ctx, "cards", "did")
	require.NoError(t, err)
	require.Len(t, dids, 2)
	for _, did := range dids {
		assert.EqualValues(t, 100, did)
	}

	col, err := r.Collection(ctx)
	require.NoError(t, err)
	assert.Equal(t, 11, col.Ver)
	assert.Equal(t, "{}", col.Conf)
	assert.Contains(t, col.Models, `"name":"Basic"`)
	assert.Contains(t, col.Decks, `"name":"Spanish"`)

	factor, _, err := r.FirstValue(ctx, "cards", "factor")
	require.NoError(t, err)
	assert.EqualValues(t, 2500, factor)

	queues, err := r.Column(ctx, "cards", "queue")
	require.NoError(t, err)
	assert.EqualValues(t, []any{int64(0), int64(2)}, queues)

	csums, err := r.Column(ctx, "notes", "csum")
	require.NoError(t, err)
	assert.EqualValues(t, Checksum("<b>hablar</b>"), csums[0])
}

func TestExportOptions(t *testing.T) {
	ctx := context.Background()
	decks, cards := spanish()

	archive, err := newTestTranslator(WithCompression(true), WithCollectionSettings(true)).Export(ctx, decks, cards)
	require.NoError(t, err)

	entries, err := container.Unpack(archive)
	require.NoError(t, err)
	assert.True(t, container.IsCompressed(entries[container.EntryCompressed]))
	assert.Equal(t, []byte("{}"), entries[container.EntryMedia])

	r := openExport(t, archive)
	col, err := r.Collection(ctx)
	require.NoError(t, err)
	assert.Contains(t, col.Conf, `"curDeck":100`)
	assert.Contains(t, col.Conf, `"collapseTime":1200`)
}

func TestExportValidation(t *testing.T) {
	ctx := context.Background()
	tr := newTestTranslator()

	_, err := tr.Export(ctx, nil, nil)
	assert.ErrorIs(t, err, ErrNoDecks)

	_, err = tr.Export(ctx, []domain.Deck{{ID: 1}}, nil)
	assert.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	decks, cards := spanish()

	for _, compress := range []bool{false, true} {
		tr := newTestTranslator(WithCompression(compress))
		archive, err := tr.Export(ctx, decks, cards)
		require.NoError(t, err)

		got, err := tr.Import(ctx, archive)
		require.NoError(t, err)

		require.Len(t, got.Decks, 1)
		deck := got.Decks[0]
		assert.Equal(t, "Spanish", deck.Name)
		assert.Equal(t, "Imported from APKG file", deck.Description)
		assert.Equal(t, len(cards), deck.CardCount)
		assert.Empty(t, got.Settings)

		require.Len(t, got.Cards, 2)
		assert.Equal(t, "hablar", got.Cards[0].Front)
		assert.Equal(t, "to speak & talk", got.Cards[0].Back)
		assert.Equal(t, "comer", got.Cards[1].Front)
		assert.Equal(t, "to eat", got.Cards[1].Back)
		for _, c := range got.Cards {
			assert.Equal(t, deck.ID, c.DeckID)
			assert.Equal(t, srs.Initial(fixedNow), c.Schedule)
		}
		assert.NotEqual(t, got.Cards[0].ID, got.Cards[1].ID)
	}
}

func packNotes(t *testing.T, entry string, snap *snapshot.Snapshot) []byte {
	t.Helper()
	payload, err := snapshot.Write(context.Background(), snap)
	require.NoError(t, err)
	archive, err := container.Pack(map[string][]byte{entry: payload})
	require.NoError(t, err)
	return archive
}

func TestImportLegacyEntryAndFallbacks(t *testing.T) {
	ctx := context.Background()
	snap := &snapshot.Snapshot{
		Collection: snapshot.CollectionRow{ID: 1, Ver: 11, Decks: "not json"},
		Decks: []snapshot.DeckRow{
			{ID: 1, Name: "Default"},
			{ID: 2, Name: "French"},
		},
		Notes: []snapshot.NoteRow{
			{ID: 1, GUID: "a", Flds: "bonjour\x1fhello"},
			{ID: 2, GUID: "b", Flds: "Q1|A1"},
			{ID: 3, GUID: "c", Flds: "lonely"},
			{ID: 4, GUID: "d", Flds: "<br>\x1f"},
		},
	}

	got, err := newTestTranslator().Import(ctx, packNotes(t, container.EntryLegacy, snap))
	require.NoError(t, err)

	assert.Equal(t, "French", got.Decks[0].Name)
	require.Len(t, got.Cards, 3)
	assert.Equal(t, "Q1", got.Cards[1].Front)
	assert.Equal(t, "A1", got.Cards[1].Back)
	assert.Equal(t, "", got.Cards[2].Front)
	assert.Equal(t, "No back content", got.Cards[2].Back)
}

func TestMarkupOnlyFieldRoundTrip(t *testing.T) {
	ctx := context.Background()
	deck := domain.Deck{ID: 1, Name: "Images", CreatedAt: fixedNow, UpdatedAt: fixedNow}
	cards := []domain.Card{
		{ID: 2, DeckID: 1, Front: `<img src="x.png">`, Back: "x", CreatedAt: fixedNow, UpdatedAt: fixedNow, Schedule: srs.Initial(fixedNow)},
		{ID: 3, DeckID: 1, Front: "y", Back: "<div><br></div>", CreatedAt: fixedNow, UpdatedAt: fixedNow, Schedule: srs.Initial(fixedNow)},
	}

	archive, err := newTestTranslator().Export(ctx, []domain.Deck{deck}, cards)
	require.NoError(t, err)
	got, err := newTestTranslator().Import(ctx, archive)
	require.NoError(t, err)

	require.Len(t, got.Cards, 2)
	assert.Equal(t, "", got.Cards[0].Front)
	assert.Equal(t, "x", got.Cards[0].Back)
	assert.Equal(t, "y", got.Cards[1].Front)
	assert.Equal(t, "", got.Cards[1].Back)
}

func TestImportDefaultDeckName(t *testing.T) {
	snap := &snapshot.Snapshot{
		Collection: snapshot.CollectionRow{ID: 1, Decks: "{}"},
		Decks:      []snapshot.DeckRow{{ID: 1, Name: "Default"}},
		Notes:      []snapshot.NoteRow{{ID: 1, GUID: "a", Flds: "x\x1fy"}},
	}
	archive := packNotes(t, container.EntryCompressed, snap)

	got, err := newTestTranslator().Import(context.Background(), archive)
	require.NoError(t, err)
	assert.Equal(t, DefaultDeckName, got.Decks[0].Name)

	got, err = newTestTranslator(WithDefaultDeckName("vocab")).Import(context.Background(), archive)
	require.NoError(t, err)
	assert.Equal(t, "vocab", got.Decks[0].Name)
}

func TestImportErrors(t *testing.T) {
	ctx := context.Background()
	tr := newTestTranslator()

	t.Run("missing collection entry", func(t *testing.T) {
		archive, err := container.Pack(map[string][]byte{"media": []byte("{}")})
		require.NoError(t, err)
		_, err = tr.Import(ctx, archive)
		var cerr *container.Error
		assert.True(t, errors.As(err, &cerr))
	})

	t.Run("unreadable database", func(t *testing.T) {
		archive, err := container.Pack(map[string][]byte{container.EntryLegacy: []byte("garbage")})
		require.NoError(t, err)
		_, err = tr.Import(ctx, archive)
		var serr *snapshot.Error
		assert.True(t, errors.As(err, &serr))
	})

	t.Run("no usable notes", func(t *testing.T) {
		snap := &snapshot.Snapshot{
			Collection: snapshot.CollectionRow{ID: 1},
			Notes:      []snapshot.NoteRow{{ID: 1, GUID: "a", Flds: "only one field"}},
		}
		_, err := tr.Import(ctx, packNotes(t, container.EntryCompressed, snap))
		assert.ErrorIs(t, err, ErrEmptyImport)
	})
}

func TestFirstDeckName(t *testing.T) {
	name, err := firstDeckName(`{"9":{"name":"Zeta"},"10":{"name":"Alpha"}}`)
	require.NoError(t, err)
	assert.Equal(t, "Zeta", name)

	name, err = firstDeckName(`{}`)
	require.NoError(t, err)
	assert.Equal(t, "", name)

	_, err = firstDeckName(`[1,2]`)
	assert.Error(t, err)
}

func TestChecksum(t *testing.T) {
	testCases := []struct {
		in       string
		expected int64
	}{
		{"", 0},
		{"a", 97},
		{"ab", 3105},
		{"hello", 99162322},
		{"é", 233},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.expected, Checksum(tc.in))
		})
	}

	long := "the quick brown fox jumps over the lazy dog"
	v := Checksum(long)
	assert.GreaterOrEqual(t, v, int64(0))
	assert.LessOrEqual(t, v, int64(math.MaxInt32)+1)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "blonki-export-2025-03-01.apkg", Filename(fixedNow))
}
