package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/tursodatabase/libsql-client-go/libsql" // Registers the libsql driver
	_ "modernc.org/sqlite"                               // Registers the sqlite driver
)

// Backend identifies where the library is stored.
type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendTurso  Backend = "turso"
)

// Config selects and configures the library backend.
type Config struct {
	Backend Backend `koanf:"backend" validate:"oneof=sqlite turso"`

	// SQLite
	Path string `koanf:"path" validate:"required_if=Backend sqlite"` // file path or ":memory:"

	// Turso
	TursoURL   string `koanf:"turso_url" validate:"required_if=Backend turso"` // libsql://name.turso.io
	TursoToken string `koanf:"turso_token"`
}

// Description is a human-readable summary of the backend, without secrets.
func (c Config) Description() string {
	switch c.Backend {
	case BackendTurso:
		return fmt.Sprintf("Turso (%s)", c.TursoURL)
	default:
		if c.Path == ":memory:" {
			return "SQLite (in-memory)"
		}
		return fmt.Sprintf("SQLite (%s)", c.Path)
	}
}

func (c Config) connect() (*sql.DB, error) {
	switch c.Backend {
	case BackendSQLite, "":
		path := c.Path
		if path == "" {
			path = "blonki.db"
		}
		db, err := sql.Open("sqlite", path)
		if err != nil {
			return nil, err
		}
		// One connection: SQLite serialises writers anyway and ":memory:"
		// would otherwise give every pooled connection its own database.
		db.SetMaxOpenConns(1)
		return db, nil
	case BackendTurso:
		if c.TursoURL == "" {
			return nil, fmt.Errorf("turso URL is required")
		}
		dsn := c.TursoURL
		if c.TursoToken != "" {
			dsn += "?authToken=" + c.TursoToken
		}
		return sql.Open("libsql", dsn)
	default:
		return nil, fmt.Errorf("unsupported backend: %s", c.Backend)
	}
}
