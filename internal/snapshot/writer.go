package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Write creates the four-table schema in a fresh in-memory database, inserts
// s in a single transaction and returns the serialized database file.
func Write(ctx context.Context, s *Snapshot) ([]byte, error) {
	db, conn, err := memoryConn(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, schema); err != nil {
		return nil, &Error{Op: "create schema", Err: err}
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, &Error{Op: "begin", Err: err}
	}
	if err := insertAll(ctx, tx, s); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, &Error{Op: "commit", Err: err}
	}

	var out []byte
	err = conn.Raw(func(dc any) error {
		sz, ok := dc.(serializer)
		if !ok {
			return errors.New("driver does not support serialize")
		}
		out, err = sz.Serialize()
		return err
	})
	if err != nil {
		return nil, &Error{Op: "serialize", Err: err}
	}
	return out, nil
}

func insertAll(ctx context.Context, tx *sql.Tx, s *Snapshot) error {
	c := s.Collection
	_, err := tx.ExecContext(ctx, `
		INSERT INTO col (id, crt, mod, scm, ver, dty, usn, ls, conf, models, decks, dconf, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Crt, c.Mod, c.Scm, c.Ver, c.Dty, c.Usn, c.Ls,
		c.Conf, c.Models, c.Decks, c.Dconf, c.Tags,
	)
	if err != nil {
		return &Error{Op: "insert col", Err: err}
	}

	for _, d := range s.Decks {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO decks (id, name, mtime_secs, usn, config, "desc")
			VALUES (?, ?, ?, ?, ?, ?)`,
			d.ID, d.Name, d.MtimeSecs, d.Usn, d.Config, d.Desc,
		)
		if err != nil {
			return &Error{Op: fmt.Sprintf("insert deck %d", d.ID), Err: err}
		}
	}

	for _, n := range s.Notes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO notes (id, guid, mid, mod, usn, tags, flds, sfld, csum, flags, data)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			n.ID, n.GUID, n.Mid, n.Mod, n.Usn, n.Tags, n.Flds, n.Sfld, n.Csum, n.Flags, n.Data,
		)
		if err != nil {
			return &Error{Op: fmt.Sprintf("insert note %d", n.ID), Err: err}
		}
	}

	for _, cd := range s.Cards {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cards (id, nid, did, ord, mod, usn, type, queue, due, ivl, factor,
			                   reps, lapses, "left", odue, odid, flags, data)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			cd.ID, cd.Nid, cd.Did, cd.Ord, cd.Mod, cd.Usn, cd.Type, cd.Queue, cd.Due, cd.Ivl, cd.Factor,
			cd.Reps, cd.Lapses, cd.Left, cd.Odue, cd.Odid, cd.Flags, cd.Data,
		)
		if err != nil {
			return &Error{Op: fmt.Sprintf("insert card %d", cd.ID), Err: err}
		}
	}
	return nil
}
