// ABOUTME: SQLite-backed consent store: WAL journal, single-row upsert per tool
// ABOUTME: Shares one database file safely across processes

package consent

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const consentSchema = `
CREATE TABLE IF NOT EXISTS consent (
	tool       TEXT PRIMARY KEY,
	level      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);`

// SQLite persists consent levels in a small database. WAL keeps concurrent
// readers cheap; each Set is a single upsert.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the store at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open consent db: %w", err)
	}
	if _, err := db.Exec(consentSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init consent schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Get returns the recorded level for tool, or LevelAsk.
func (s *SQLite) Get(tool string) (Level, error) {
	var level Level
	err := s.db.QueryRow(
		`SELECT level FROM consent WHERE tool = ?`, NormalizeTool(tool),
	).Scan(&level)
	if errors.Is(err, sql.ErrNoRows) {
		return LevelAsk, nil
	}
	if err != nil {
		return LevelAsk, fmt.Errorf("read consent for %s: %w", tool, err)
	}
	if !level.Valid() {
		return LevelAsk, fmt.Errorf("consent for %s holds invalid level %q", tool, level)
	}
	return level, nil
}

// Set upserts level for tool.
func (s *SQLite) Set(tool string, level Level) error {
	if err := checkSettable(level); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`INSERT INTO consent (tool, level, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(tool) DO UPDATE SET level = excluded.level, updated_at = excluded.updated_at`,
		NormalizeTool(tool), level, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("write consent for %s: %w", tool, err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}
