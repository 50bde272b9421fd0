package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
    position INTEGER PRIMARY KEY,
    id TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    title TEXT NOT NULL,
    lesson_plan TEXT NOT NULL
);
`

// SQLiteStore persists history in a local sqlite database. The whole list is
// rewritten per mutation, keeping the same overwrite semantics as FileStore
// while surviving concurrent readers.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Load() ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT id, created_at, title, lesson_plan FROM entries ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(&entry.ID, &entry.Timestamp, &entry.Title, &entry.LessonPlan); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Save(entries []Entry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM entries`); err != nil {
		return err
	}
	for i, entry := range entries {
		if _, err := tx.Exec(
			`INSERT INTO entries (position, id, created_at, title, lesson_plan) VALUES (?, ?, ?, ?, ?)`,
			i, entry.ID, entry.Timestamp, entry.Title, entry.LessonPlan); err != nil {
			return err
		}
	}
	return tx.Commit()
}
