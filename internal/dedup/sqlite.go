package dedup

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// schema keeps one row per registered fingerprint. The UNIQUE constraint
// on content_hash makes a re-serialized copy of an archived document
// collide even when its file hash differs.
const schema = `
CREATE TABLE IF NOT EXISTS fingerprints (
	key           TEXT PRIMARY KEY,
	file_hash     TEXT NOT NULL,
	content_hash  TEXT NOT NULL UNIQUE,
	source_file   TEXT NOT NULL,
	registered_at TEXT NOT NULL
);
`

// SQLite is a durable index stored inside the archive root, so a re-run
// over an already-archived folder skips its duplicates without rescanning
// the archive tree.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the index database at path.
func OpenSQLite(path string) (*SQLite, error) {
	const op = "OpenSQLite"

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%s: create index dir: %w", op, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%s: open database: %w", op, err)
	}
	// One connection serializes writers and avoids SQLITE_BUSY under the
	// worker pool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: apply schema: %w", op, err)
	}

	return &SQLite{db: db}, nil
}

// CheckAndRegister implements Index. The insert is ignored when either
// the composite key or the content hash is already present, which is
// exactly the duplicate condition.
func (s *SQLite) CheckAndRegister(ctx context.Context, fp Fingerprint, sourceFile string) (bool, error) {
	const op = "CheckAndRegister"

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO fingerprints (key, file_hash, content_hash, source_file, registered_at)
		 VALUES (?, ?, ?, ?, ?)`,
		fp.Key(), fp.FileHash, fp.ContentHash, sourceFile, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return inserted == 0, nil
}

// Remove implements Index.
func (s *SQLite) Remove(ctx context.Context, fp Fingerprint) error {
	const op = "Remove"

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM fingerprints WHERE key = ?`, fp.Key()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Lookup returns the original registration for a fingerprint key.
func (s *SQLite) Lookup(ctx context.Context, fp Fingerprint) (*Registration, error) {
	const op = "Lookup"

	row := s.db.QueryRowContext(ctx,
		`SELECT source_file, registered_at FROM fingerprints WHERE key = ? OR content_hash = ?`,
		fp.Key(), fp.ContentHash)

	var reg Registration
	var registeredAt string
	if err := row.Scan(&reg.SourceFile, &registeredAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if ts, err := time.Parse(time.RFC3339, registeredAt); err == nil {
		reg.RegisteredAt = ts
	}
	return &reg, nil
}

// Close implements Index.
func (s *SQLite) Close() error {
	return s.db.Close()
}
