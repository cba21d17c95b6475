// Package catalog keeps a ledger of extract/inline runs in SQLite, so a
// long-lived tool can answer "what did I already do" without re-deriving
// it from the block store.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Run is one recorded extract or inline invocation.
type Run struct {
	ID        string
	Operation string // "extract" or "inline"
	RootCID   string
	Policy    string // inliner policy name, empty for extract runs
	BlockCount int
	CreatedAt time.Time
}

// Catalog is a SQLite-backed run ledger.
type Catalog struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// ensures its schema exists.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("catalog: open sqlite: %w", err)
	}

	c := &Catalog{db: db}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Catalog) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		operation TEXT NOT NULL,
		root_cid TEXT NOT NULL,
		policy TEXT,
		block_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_operation ON runs(operation);
	CREATE INDEX IF NOT EXISTS idx_runs_root_cid ON runs(root_cid);
	`
	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("catalog: create schema: %w", err)
	}
	return nil
}

// RecordExtract logs a completed extraction: rootCID is the id of the
// extracted root, blockCount the number of blocks the run produced.
func (c *Catalog) RecordExtract(ctx context.Context, rootCID string, blockCount int) (string, error) {
	return c.record(ctx, "extract", rootCID, "", blockCount)
}

// RecordInline logs a completed (non-stuck) inline run.
func (c *Catalog) RecordInline(ctx context.Context, rootCID string, policy string) (string, error) {
	return c.record(ctx, "inline", rootCID, policy, 0)
}

func (c *Catalog) record(ctx context.Context, operation, rootCID, policy string, blockCount int) (string, error) {
	id := uuid.NewString()
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO runs (id, operation, root_cid, policy, block_count) VALUES (?, ?, ?, ?, ?)`,
		id, operation, rootCID, policy, blockCount)
	if err != nil {
		return "", fmt.Errorf("catalog: record %s run: %w", operation, err)
	}
	return id, nil
}

// List returns every recorded run, most recent first.
func (c *Catalog) List(ctx context.Context) ([]Run, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, operation, root_cid, policy, block_count, created_at FROM runs ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var policy sql.NullString
		if err := rows.Scan(&r.ID, &r.Operation, &r.RootCID, &policy, &r.BlockCount, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("catalog: scan run: %w", err)
		}
		r.Policy = policy.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: list runs: %w", err)
	}
	return out, nil
}

// Close closes the underlying database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}
