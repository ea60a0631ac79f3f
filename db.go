package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	// migration queries
	createEntriesTableSQL = `
  CREATE TABLE IF NOT EXISTS entries (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  start_time DATETIME NOT NULL,
  end_time DATETIME,
  document TEXT NOT NULL DEFAULT '',
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP
  )`

	createStateTableSQL = `
  CREATE TABLE IF NOT EXISTS state (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL
  )`

	// entry queries
	createEntrySQL       = `INSERT INTO entries (start_time, document) VALUES (?, ?)`
	createClosedEntrySQL = `INSERT INTO entries (start_time, end_time, document) VALUES (?, ?, ?)`
	getOpenEntrySQL      = `SELECT id, start_time, end_time, document, created_at FROM entries WHERE end_time IS NULL ORDER BY start_time DESC LIMIT 1`
	closeEntrySQL        = `UPDATE entries SET end_time = ?, document = ? WHERE id = ?`
	getEntriesSQL        = `
  SELECT id, start_time, end_time, document, created_at
  FROM entries
  WHERE start_time >= ? AND start_time < ?
  ORDER BY start_time`

	// state queries
	getStateSQL = `SELECT value FROM state WHERE key = ?`
	setStateSQL = `INSERT INTO state (key, value) VALUES (?, ?)
  ON CONFLICT(key) DO UPDATE SET value = excluded.value`

	lastFilledKey = "last_filled_document"
)

type Repo struct {
	db *sql.DB
}

func NewRepo(dbPath string) (*Repo, error) {
	// ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// verify connection with database
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := &Repo{db: db}

	if err := repo.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *Repo) Close() error {
	return r.db.Close()
}

// runs migrations on initial start
func (r *Repo) runMigrations() error {
	tables := []string{
		createEntriesTableSQL,
		createStateTableSQL,
	}

	for _, tableSQL := range tables {
		if _, err := r.db.Exec(tableSQL); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// +---------------------+
// |                     |
// |    Entry Queries    |
// |                     |
// +---------------------+

// opens a new session
func (r *Repo) CreateEntry(startTime time.Time, document string) error {
	_, err := r.db.Exec(createEntrySQL, startTime, document)
	return err
}

// records a session that has no matching check-in
func (r *Repo) CreateClosedEntry(startTime, endTime time.Time, document string) error {
	_, err := r.db.Exec(createClosedEntrySQL, startTime, endTime, document)
	return err
}

// returns the most recent session without an end time, or nil
func (r *Repo) GetOpenEntry() (*Entry, error) {
	var e Entry
	err := r.db.QueryRow(getOpenEntrySQL).Scan(&e.ID, &e.StartTime, &e.EndTime, &e.Document, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error finding open entry: %w", err)
	}
	return &e, nil
}

func (r *Repo) CloseEntry(id int64, endTime time.Time, document string) error {
	if _, err := r.db.Exec(closeEntrySQL, endTime, document, id); err != nil {
		return fmt.Errorf("error while updating end time to entry: %w", err)
	}
	return nil
}

// get all sessions started in [start, end)
func (r *Repo) GetEntries(start, end time.Time) ([]Entry, error) {
	rows, err := r.db.Query(getEntriesSQL, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.StartTime, &e.EndTime, &e.Document, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// +---------------------+
// |                     |
// |    State Queries    |
// |                     |
// +---------------------+

// LastFilled returns the last document written by a fill, or "".
func (r *Repo) LastFilled() (string, error) {
	var value string
	err := r.db.QueryRow(getStateSQL, lastFilledKey).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

func (r *Repo) SetLastFilled(path string) error {
	_, err := r.db.Exec(setStateSQL, lastFilledKey, path)
	return err
}
