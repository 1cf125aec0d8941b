package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLite is a ServerStorage backend over a single SQLite database file:
// an opaque key/blob table plus the metadata CAS contract, relying on
// SQLite's own writer-serialization (a single transaction per
// UpdateMetadata call) instead of a hand-rolled version column, since
// SQLite already gives a single process exactly that guarantee.
type SQLite struct {
	db   *sql.DB
	base string
	prefix string
}

// NewSQLite opens (creating if necessary) a SQLite database at path and
// initializes its schema, serving files under baseURL.
func NewSQLite(path, baseURL, prefix string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1) // one connection, so UpdateMetadata transactions run one at a time

	s := &SQLite{db: db, base: strings.TrimSuffix(baseURL, "/"), prefix: prefix}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *SQLite) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS blobs (
		key   TEXT PRIMARY KEY,
		value BLOB NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the underlying database connection.
func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) BaseURL() string { return s.base }

func (s *SQLite) key(k string) string { return s.prefix + k }

func (s *SQLite) Store(ctx context.Context, k string, blob []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blobs (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, s.key(k), blob)
	return err
}

func (s *SQLite) Read(ctx context.Context, k string) ([]byte, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM blobs WHERE key = ?`, s.key(k)).Scan(&v)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *SQLite) Delete(ctx context.Context, prefix string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM blobs WHERE key LIKE ? ESCAPE '\'`, escapeLike(s.key(prefix))+"%")
	return err
}

func (s *SQLite) UpdateMetadata(ctx context.Context, shlID string, updater MetadataUpdater) (Result, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	metaKey := s.key(shlID + "/metadata.json")

	var current []byte
	err = tx.QueryRowContext(ctx, `SELECT value FROM blobs WHERE key = ?`, metaKey).Scan(&current)
	if err == sql.ErrNoRows {
		return Result{}, ErrNotFound
	}
	if err != nil {
		return Result{}, err
	}

	upd := updater(current)
	switch {
	case upd.isNotFound():
		return Result{}, ErrNotFound
	case upd.isDeny():
		return Result{Reason: upd.reason}, tx.Commit()
	case upd.isCommit():
		if _, err := tx.ExecContext(ctx, `UPDATE blobs SET value = ? WHERE key = ?`, upd.newValue, metaKey); err != nil {
			return Result{}, err
		}
		if err := tx.Commit(); err != nil {
			return Result{}, err
		}
		return Result{Committed: true, Value: upd.newValue}, nil
	default:
		return Result{}, fmt.Errorf("storage: updater returned no result")
	}
}

// escapeLike escapes SQL LIKE metacharacters so an arbitrary key prefix
// (which may itself contain '%' or '_') can be used safely in a LIKE
// pattern.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
