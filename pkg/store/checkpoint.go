package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const (
	tableSchema = `
CREATE TABLE IF NOT EXISTS items (
    key TEXT PRIMARY KEY,
    flags INTEGER,
    exptime INTEGER,
    data BLOB
);`

	statusSchema = `
CREATE TABLE IF NOT EXISTS status (
    id INTEGER PRIMARY KEY,
    commit_id BLOB
);`
)

// Checkpoint is the relational on-disk table the store batch-writes pending
// changes into. It holds every checkpointed item plus a single status row
// naming the most recent checkpointed commit id.
type Checkpoint struct {
	db     *sql.DB
	logger zerolog.Logger
}

// OpenCheckpoint opens the SQLite database at path, creating the tables if
// absent.
func OpenCheckpoint(path string) (*Checkpoint, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// The engine serializes all access; a second connection would only
	// invite SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	for _, schema := range []string{tableSchema, statusSchema} {
		if _, err := db.Exec(schema); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &Checkpoint{
		db:     db,
		logger: log.WithComponent("checkpoint"),
	}, nil
}

// Load reads every item and the last checkpointed commit id within a single
// transaction. A missing status row yields uuid.Nil.
func (c *Checkpoint) Load() (map[string]types.Item, uuid.UUID, error) {
	items := make(map[string]types.Item)

	tx, err := c.db.Begin()
	if err != nil {
		return nil, uuid.Nil, err
	}
	defer tx.Rollback()

	rows, err := tx.Query("SELECT key, flags, exptime, data FROM items")
	if err != nil {
		return nil, uuid.Nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key     string
			flags   uint16
			exptime uint32
			data    []byte
		)
		if err := rows.Scan(&key, &flags, &exptime, &data); err != nil {
			return nil, uuid.Nil, err
		}
		items[key] = types.Item{Flags: flags, Exptime: exptime, Data: data}
	}
	if err := rows.Err(); err != nil {
		return nil, uuid.Nil, err
	}

	commitID := uuid.Nil
	var raw []byte
	err = tx.QueryRow("SELECT commit_id FROM status WHERE id = 1").Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// Fresh database; no commit has ever been checkpointed.
	case err != nil:
		return nil, uuid.Nil, err
	default:
		commitID, err = uuid.FromBytes(raw)
		if err != nil {
			return nil, uuid.Nil, fmt.Errorf("bad commit id in status row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, uuid.Nil, err
	}
	return items, commitID, nil
}

// Save applies the net effect of the pending changes within a single
// transaction: upserts first, then deletes, then the status row. Either the
// whole checkpoint lands or none of it does.
func (c *Checkpoint) Save(upserts map[string]types.Item, deletes []string, commitID uuid.UUID) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if len(upserts) > 0 {
		stmt, err := tx.Prepare("INSERT OR REPLACE INTO items (key, flags, exptime, data) VALUES (?, ?, ?, ?)")
		if err != nil {
			return err
		}
		defer stmt.Close()
		for key, item := range upserts {
			metrics.NumDBUpserts.Inc()
			if _, err := stmt.Exec(key, item.Flags, item.Exptime, item.Data); err != nil {
				return fmt.Errorf("failed to upsert key %q: %w", key, err)
			}
		}
	} else {
		c.logger.Debug().Msg("no values to update")
	}

	if len(deletes) > 0 {
		stmt, err := tx.Prepare("DELETE FROM items WHERE key = ?")
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, key := range deletes {
			metrics.NumDBDeletes.Inc()
			if _, err := stmt.Exec(key); err != nil {
				return fmt.Errorf("failed to delete key %q: %w", key, err)
			}
		}
	} else {
		c.logger.Debug().Msg("no keys to delete")
	}

	c.logger.Debug().Str("commit_id", commitID.String()).Msg("saving commit id")
	if _, err := tx.Exec("INSERT OR REPLACE INTO status (id, commit_id) VALUES (1, ?)", commitID[:]); err != nil {
		return err
	}

	return tx.Commit()
}

// Close closes the database.
func (c *Checkpoint) Close() error {
	return c.db.Close()
}
