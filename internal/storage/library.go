// Package storage persists decks, cards and review history.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/conorfennell/blonki/internal/domain"
	"github.com/conorfennell/blonki/internal/knol"
)

// ErrNotFound is returned when a deck or card does not exist.
var ErrNotFound = errors.New("not found")

// Library is the persistent store of decks and cards. It is safe for
// concurrent use.
type Library struct {
	conn *sql.DB
	desc string
	now  func() time.Time
}

// Option configures a Library.
type Option func(*Library)

// WithClock overrides the time source used for new ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Library) { l.now = now }
}

// Open connects to the configured backend and ensures the schema is up to date.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Library, error) {
	db, err := cfg.connect()
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	l := &Library{conn: db, desc: cfg.Description(), now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Close closes the database connection.
func (l *Library) Close() error {
	return l.conn.Close()
}

// Description names the backend in use.
func (l *Library) Description() string {
	return l.desc
}

// SaveResult reports what SaveCollection stored.
type SaveResult struct {
	Decks   []domain.Deck `json:"decks"`
	Cards   []domain.Card `json:"cards"`
	Skipped int           `json:"skipped"`
}

// SaveCollection stores decks and cards under fresh ids. Without merge the
// library is emptied first. With merge an incoming deck joins an existing
// deck of the same name, and cards whose fingerprint that deck already holds
// are skipped.
func (l *Library) SaveCollection(ctx context.Context, decks []domain.Deck, cards []domain.Card, merge bool) (*SaveResult, error) {
	tx, err := l.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if !merge {
		for _, table := range []string{"reviews", "cards", "decks"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return nil, fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
	}

	ids, err := l.idSequence(ctx, tx)
	if err != nil {
		return nil, err
	}

	existing := map[string]domain.Deck{}
	if merge {
		current, err := queryDecks(ctx, tx)
		if err != nil {
			return nil, err
		}
		existing = lo.KeyBy(current, func(d domain.Deck) string { return d.Name })
	}

	now := l.now()
	result := &SaveResult{}
	deckIDs := make(map[int64]int64, len(decks))
	seen := make(map[int64]map[string]bool, len(decks))

	for _, d := range decks {
		if prior, ok := existing[d.Name]; ok {
			deckIDs[d.ID] = prior.ID
			// A name repeated within one call maps onto the deck already in the result.
			if _, done := seen[prior.ID]; done {
				continue
			}
			fps, err := fingerprints(ctx, tx, prior.ID)
			if err != nil {
				return nil, err
			}
			seen[prior.ID] = fps
			result.Decks = append(result.Decks, prior)
			continue
		}

		saved := d
		saved.ID = ids.Next()
		if saved.CreatedAt.IsZero() {
			saved.CreatedAt = now
		}
		saved.UpdatedAt = now
		_, err := tx.ExecContext(ctx, `
			INSERT INTO decks (id, name, description, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`, saved.ID, saved.Name, saved.Description, saved.CreatedAt.UnixMilli(), saved.UpdatedAt.UnixMilli())
		if err != nil {
			return nil, fmt.Errorf("failed to insert deck %q: %w", d.Name, err)
		}
		deckIDs[d.ID] = saved.ID
		seen[saved.ID] = map[string]bool{}
		existing[saved.Name] = saved
		result.Decks = append(result.Decks, saved)
	}

	for _, c := range cards {
		deckID, ok := deckIDs[c.DeckID]
		if !ok {
			return nil, fmt.Errorf("card %d references unknown deck %d", c.ID, c.DeckID)
		}
		fp := knol.Fingerprint(c)
		if merge && seen[deckID][fp] {
			result.Skipped++
			continue
		}
		seen[deckID][fp] = true

		saved := c
		saved.ID = ids.Next()
		saved.DeckID = deckID
		if err := insertCard(ctx, tx, saved, fp); err != nil {
			return nil, err
		}
		result.Cards = append(result.Cards, saved)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit collection: %w", err)
	}

	domain.RecountDecks(result.Decks, result.Cards)
	if merge {
		// Counts for merged decks include cards stored before this call.
		for i, d := range result.Decks {
			n, err := l.countCards(ctx, d.ID)
			if err != nil {
				return nil, err
			}
			result.Decks[i].CardCount = n
		}
	}
	return result, nil
}

// idSequence continues after the largest id in use, or from the clock if that
// is later.
func (l *Library) idSequence(ctx context.Context, tx *sql.Tx) (*domain.IDSequence, error) {
	var maxID int64
	err := tx.QueryRowContext(ctx, `
		SELECT MAX(COALESCE((SELECT MAX(id) FROM decks), 0), COALESCE((SELECT MAX(id) FROM cards), 0))
	`).Scan(&maxID)
	if err != nil {
		return nil, fmt.Errorf("failed to read max id: %w", err)
	}
	return domain.ResumeIDSequence(max(maxID, l.now().UnixMilli()-1)), nil
}

func fingerprints(ctx context.Context, tx *sql.Tx, deckID int64) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx, `SELECT fingerprint FROM cards WHERE deck_id = ?`, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to read fingerprints for deck %d: %w", deckID, err)
	}
	defer rows.Close()

	fps := map[string]bool{}
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, fmt.Errorf("failed to scan fingerprint: %w", err)
		}
		fps[fp] = true
	}
	return fps, rows.Err()
}

func insertCard(ctx context.Context, tx *sql.Tx, c domain.Card, fp string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO cards (id, deck_id, front, back, fingerprint, interval_days, repetitions,
		                   ease_factor, due_at, last_reviewed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID, c.DeckID, c.Front, c.Back, fp,
		c.Interval, c.Repetitions, c.EaseFactor, c.DueDate.UnixMilli(), nullMillis(c.LastReviewed),
		c.CreatedAt.UnixMilli(), c.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert card %d: %w", c.ID, err)
	}
	return nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

const deckColumns = `
	SELECT d.id, d.name, d.description, d.created_at, d.updated_at,
	       (SELECT COUNT(*) FROM cards c WHERE c.deck_id = d.id)
	FROM decks d`

func queryDecks(ctx context.Context, q querier) ([]domain.Deck, error) {
	rows, err := q.QueryContext(ctx, deckColumns+" ORDER BY d.id")
	if err != nil {
		return nil, fmt.Errorf("failed to list decks: %w", err)
	}
	defer rows.Close()

	var decks []domain.Deck
	for rows.Next() {
		var d domain.Deck
		var created, updated int64
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &created, &updated, &d.CardCount); err != nil {
			return nil, fmt.Errorf("failed to scan deck row: %w", err)
		}
		d.CreatedAt = time.UnixMilli(created).UTC()
		d.UpdatedAt = time.UnixMilli(updated).UTC()
		decks = append(decks, d)
	}
	return decks, rows.Err()
}

// ListDecks returns every deck with its current card count.
func (l *Library) ListDecks(ctx context.Context) ([]domain.Deck, error) {
	return queryDecks(ctx, l.conn)
}

// Decks returns the decks with the given ids. Unknown ids are an ErrNotFound error.
func (l *Library) Decks(ctx context.Context, ids ...int64) ([]domain.Deck, error) {
	all, err := l.ListDecks(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return all, nil
	}
	byID := lo.KeyBy(all, func(d domain.Deck) int64 { return d.ID })
	decks := make([]domain.Deck, 0, len(ids))
	for _, id := range lo.Uniq(ids) {
		d, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("deck %d: %w", id, ErrNotFound)
		}
		decks = append(decks, d)
	}
	return decks, nil
}

func (l *Library) countCards(ctx context.Context, deckID int64) (int, error) {
	var n int
	if err := l.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM cards WHERE deck_id = ?`, deckID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cards for deck %d: %w", deckID, err)
	}
	return n, nil
}

const cardColumns = `
	SELECT id, deck_id, front, back, interval_days, repetitions, ease_factor,
	       due_at, last_reviewed, created_at, updated_at
	FROM cards`

type scanner interface {
	Scan(dest ...any) error
}

func scanCard(s scanner) (domain.Card, error) {
	var c domain.Card
	var due, created, updated int64
	var last sql.NullInt64
	err := s.Scan(&c.ID, &c.DeckID, &c.Front, &c.Back, &c.Interval, &c.Repetitions, &c.EaseFactor,
		&due, &last, &created, &updated)
	if err != nil {
		return c, err
	}
	c.DueDate = time.UnixMilli(due).UTC()
	c.CreatedAt = time.UnixMilli(created).UTC()
	c.UpdatedAt = time.UnixMilli(updated).UTC()
	if last.Valid {
		t := time.UnixMilli(last.Int64).UTC()
		c.LastReviewed = &t
	}
	return c, nil
}

// CardsByDeck returns the cards of the given decks, or of every deck when no
// id is given, in id order.
func (l *Library) CardsByDeck(ctx context.Context, deckIDs ...int64) ([]domain.Card, error) {
	query := cardColumns
	args := make([]any, 0, len(deckIDs))
	if len(deckIDs) > 0 {
		query += " WHERE deck_id IN (?" + strings.Repeat(", ?", len(deckIDs)-1) + ")"
		for _, id := range deckIDs {
			args = append(args, id)
		}
	}
	rows, err := l.conn.QueryContext(ctx, query+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// GetCard returns a single card.
func (l *Library) GetCard(ctx context.Context, id int64) (*domain.Card, error) {
	c, err := scanCard(l.conn.QueryRowContext(ctx, cardColumns+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("card %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card %d: %w", id, err)
	}
	return &c, nil
}

// RecordReview stores the review and the card's new schedule together.
func (l *Library) RecordReview(ctx context.Context, r domain.Review, next domain.Schedule) error {
	tx, err := l.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE cards
		SET interval_days = ?, repetitions = ?, ease_factor = ?, due_at = ?, last_reviewed = ?, updated_at = ?
		WHERE id = ?
	`,
		next.Interval, next.Repetitions, next.EaseFactor, next.DueDate.UnixMilli(), nullMillis(next.LastReviewed),
		r.Timestamp.UnixMilli(), r.CardID,
	)
	if err != nil {
		return fmt.Errorf("failed to update schedule for card %d: %w", r.CardID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("card %d: %w", r.CardID, ErrNotFound)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reviews (card_id, outcome, response_ms, reviewed_at)
		VALUES (?, ?, ?, ?)
	`, r.CardID, string(r.Outcome), r.ResponseTime.Milliseconds(), r.Timestamp.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record review for card %d: %w", r.CardID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit review: %w", err)
	}
	return nil
}

// ReviewCount returns how many reviews have been recorded for a card.
func (l *Library) ReviewCount(ctx context.Context, cardID int64) (int, error) {
	var n int
	err := l.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM reviews WHERE card_id = ?`, cardID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count reviews for card %d: %w", cardID, err)
	}
	return n, nil
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}
