package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/grovetools/wagate/errors"
	"github.com/grovetools/wagate/pkg/models"
	_ "github.com/mattn/go-sqlite3"
)

const sessionsSchema = `CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	description TEXT NOT NULL DEFAULT '',
	ready       INTEGER NOT NULL DEFAULT 0,
	position    INTEGER NOT NULL
)`

// SQLiteStore keeps one row per session. Save rewrites the table inside a
// single transaction so the whole-collection contract still holds.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite creates or opens the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.StoreUnwritable(path, fmt.Errorf("create db directory: %w", err))
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.StoreUnwritable(path, fmt.Errorf("open sqlite: %w", err))
	}
	db.SetMaxOpenConns(1) // SQLite handles one writer at a time

	if _, err := db.Exec(sessionsSchema); err != nil {
		db.Close()
		return nil, errors.StoreCorrupt(path, fmt.Errorf("init schema: %w", err))
	}

	return &SQLiteStore{db: db, path: path}, nil
}

func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Load() ([]models.SessionRecord, error) {
	rows, err := s.db.Query(`SELECT id, description, ready FROM sessions ORDER BY position`)
	if err != nil {
		return nil, errors.StoreCorrupt(s.path, err)
	}
	defer rows.Close()

	records := []models.SessionRecord{}
	for rows.Next() {
		var r models.SessionRecord
		if err := rows.Scan(&r.ID, &r.Description, &r.Ready); err != nil {
			return nil, errors.StoreCorrupt(s.path, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StoreCorrupt(s.path, err)
	}
	return records, nil
}

func (s *SQLiteStore) Save(records []models.SessionRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.StoreUnwritable(s.path, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM sessions`); err != nil {
		return errors.StoreUnwritable(s.path, err)
	}

	stmt, err := tx.Prepare(`INSERT INTO sessions (id, description, ready, position) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`)
	if err != nil {
		return errors.StoreUnwritable(s.path, err)
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.Exec(r.ID, r.Description, r.Ready, i); err != nil {
			return errors.StoreUnwritable(s.path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.StoreUnwritable(s.path, err)
	}
	return nil
}
