package storage

// schema is applied statement by statement on Open. Times are stored as
// Unix milliseconds so both backends scan them the same way.
var schema = []string{
	// The 'decks' table holds one row per deck; card counts are always computed.
	`CREATE TABLE IF NOT EXISTS decks (
    id          INTEGER PRIMARY KEY,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL
)`,

	// The 'cards' table stores each card with its scheduling state.
	`CREATE TABLE IF NOT EXISTS cards (
    id            INTEGER PRIMARY KEY,
    deck_id       INTEGER NOT NULL REFERENCES decks(id),
    front         TEXT NOT NULL,
    back          TEXT NOT NULL,
    fingerprint   TEXT NOT NULL,
    interval_days INTEGER NOT NULL,
    repetitions   INTEGER NOT NULL DEFAULT 0,
    ease_factor   REAL NOT NULL,
    due_at        INTEGER NOT NULL,
    last_reviewed INTEGER,
    created_at    INTEGER NOT NULL,
    updated_at    INTEGER NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_cards_deck ON cards (deck_id)`,
	`CREATE INDEX IF NOT EXISTS idx_cards_fingerprint ON cards (deck_id, fingerprint)`,

	// The 'reviews' table is an append-only log of review outcomes.
	`CREATE TABLE IF NOT EXISTS reviews (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    card_id     INTEGER NOT NULL REFERENCES cards(id),
    outcome     TEXT NOT NULL,
    response_ms INTEGER NOT NULL,
    reviewed_at INTEGER NOT NULL
)`,
}
