// Package snapshot reads and writes the embedded SQLite database carried
// inside an archive. Databases are read through a read-only in-memory file
// system and produced by serializing an in-memory database, so nothing
// touches the disk.
package snapshot

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"testing/fstest"

	_ "modernc.org/sqlite" // Registers the sqlite driver
	"modernc.org/sqlite/vfs"
)

const (
	driverName = "sqlite"
	// dbFile is the name the payload is served under by a Reader's file system.
	dbFile = "collection"
)

var (
	sqliteHeader = []byte("SQLite format 3\x00")
	identifier   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// ErrMissingTable is wrapped in an *Error when a queried table does not exist.
var ErrMissingTable = errors.New("table does not exist")

// Error reports a database that cannot be opened, queried or written.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("snapshot: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// serializer is implemented by the modernc.org/sqlite driver connection.
type serializer interface {
	Serialize() ([]byte, error)
}

// Reader gives read-only access to one database payload. It must be closed.
type Reader struct {
	fs   *vfs.FS
	db   *sql.DB
	conn *sql.Conn
}

// Open serves a copy of payload through a private read-only file system and
// checks that it carries a notes table.
func Open(ctx context.Context, payload []byte) (*Reader, error) {
	if !bytes.HasPrefix(payload, sqliteHeader) {
		return nil, &Error{Op: "open", Err: errors.New("payload is not a SQLite database")}
	}

	buf := make([]byte, len(payload))
	copy(buf, payload)
	// A WAL database would need its -wal and -shm files; read it as rollback-journal.
	if len(buf) > 19 {
		if buf[18] == 2 {
			buf[18] = 1
		}
		if buf[19] == 2 {
			buf[19] = 1
		}
	}

	name, fsys, err := vfs.New(fstest.MapFS{dbFile: {Data: buf}})
	if err != nil {
		return nil, &Error{Op: "register file system", Err: err}
	}
	db, err := sql.Open(driverName, "file:"+dbFile+"?mode=ro&vfs="+name)
	if err != nil {
		fsys.Close()
		return nil, &Error{Op: "open", Err: err}
	}
	db.SetMaxOpenConns(1)
	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		fsys.Close()
		return nil, &Error{Op: "open", Err: err}
	}
	r := &Reader{fs: fsys, db: db, conn: conn}

	ok, err := r.HasTable(ctx, "notes")
	if err != nil {
		r.Close()
		return nil, err
	}
	if !ok {
		r.Close()
		return nil, &Error{Op: "open", Err: fmt.Errorf("notes: %w", ErrMissingTable)}
	}
	return r, nil
}

func memoryConn(ctx context.Context) (*sql.DB, *sql.Conn, error) {
	db, err := sql.Open(driverName, ":memory:")
	if err != nil {
		return nil, nil, &Error{Op: "open memory database", Err: err}
	}
	db.SetMaxOpenConns(1)
	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, nil, &Error{Op: "open memory database", Err: err}
	}
	return db, conn, nil
}

// Close releases the connection, the database handle and the file system.
func (r *Reader) Close() error {
	connErr := r.conn.Close()
	dbErr := r.db.Close()
	fsErr := r.fs.Close()
	return errors.Join(connErr, dbErr, fsErr)
}

// HasTable reports whether a table named name exists.
func (r *Reader) HasTable(ctx context.Context, name string) (bool, error) {
	var n int
	err := r.conn.QueryRowContext(ctx,
		`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	if err != nil {
		return false, &Error{Op: "inspect schema", Err: err}
	}
	return n > 0, nil
}

// FirstValue returns column of the first row of table. found is false when
// the table has no rows.
func (r *Reader) FirstValue(ctx context.Context, table, column string) (value any, found bool, err error) {
	if err := checkIdentifiers(table, column); err != nil {
		return nil, false, err
	}
	err = r.conn.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM %s ORDER BY rowid LIMIT 1`, column, table)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &Error{Op: "read " + table + "." + column, Err: err}
	}
	return value, true, nil
}

// Column returns column for every row of table, in rowid order.
func (r *Reader) Column(ctx context.Context, table, column string) ([]any, error) {
	if err := checkIdentifiers(table, column); err != nil {
		return nil, err
	}
	rows, err := r.conn.QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM %s ORDER BY rowid`, column, table))
	if err != nil {
		return nil, &Error{Op: "read " + table + "." + column, Err: err}
	}
	defer rows.Close()

	var values []any
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, &Error{Op: "scan " + table + "." + column, Err: err}
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Op: "read " + table + "." + column, Err: err}
	}
	return values, nil
}

// Collection reads the first row of col. Missing JSON columns read as "".
func (r *Reader) Collection(ctx context.Context) (*CollectionRow, error) {
	ok, err := r.HasTable(ctx, "col")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &Error{Op: "read col", Err: fmt.Errorf("col: %w", ErrMissingTable)}
	}

	var c CollectionRow
	err = r.conn.QueryRowContext(ctx, `
		SELECT id, COALESCE(crt, 0), COALESCE(mod, 0), COALESCE(scm, 0), COALESCE(ver, 0),
		       COALESCE(dty, 0), COALESCE(usn, 0), COALESCE(ls, 0),
		       COALESCE(conf, ''), COALESCE(models, ''), COALESCE(decks, ''),
		       COALESCE(dconf, ''), COALESCE(tags, '')
		FROM col LIMIT 1`).Scan(
		&c.ID, &c.Crt, &c.Mod, &c.Scm, &c.Ver, &c.Dty, &c.Usn, &c.Ls,
		&c.Conf, &c.Models, &c.Decks, &c.Dconf, &c.Tags,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &Error{Op: "read col", Err: errors.New("collection row is missing")}
	}
	if err != nil {
		return nil, &Error{Op: "read col", Err: err}
	}
	return &c, nil
}

// Notes reads the id, guid and fields of every note in id order.
func (r *Reader) Notes(ctx context.Context) ([]NoteRow, error) {
	rows, err := r.conn.QueryContext(ctx,
		`SELECT id, COALESCE(guid, ''), COALESCE(flds, '') FROM notes ORDER BY id`)
	if err != nil {
		return nil, &Error{Op: "read notes", Err: err}
	}
	defer rows.Close()

	var notes []NoteRow
	for rows.Next() {
		var n NoteRow
		if err := rows.Scan(&n.ID, &n.GUID, &n.Flds); err != nil {
			return nil, &Error{Op: "scan note", Err: err}
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Op: "read notes", Err: err}
	}
	return notes, nil
}

// DeckNames returns the names in the decks table in id order. A database
// without a decks table yields no names.
func (r *Reader) DeckNames(ctx context.Context) ([]string, error) {
	ok, err := r.HasTable(ctx, "decks")
	if err != nil || !ok {
		return nil, err
	}
	values, err := r.Column(ctx, "decks", "name")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(values))
	for _, v := range values {
		switch s := v.(type) {
		case string:
			names = append(names, s)
		case []byte:
			names = append(names, string(s))
		}
	}
	return names, nil
}

func checkIdentifiers(names ...string) error {
	for _, n := range names {
		if !identifier.MatchString(n) {
			return &Error{Op: "query", Err: fmt.Errorf("invalid identifier %q", n)}
		}
	}
	return nil
}
