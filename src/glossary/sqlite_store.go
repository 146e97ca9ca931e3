package glossary

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the glossary in a single SQLite table.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// OpenSQLiteStore opens or creates the database at path and seeds Defaults into an empty table.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("glossary database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps writes serialized without busy retries.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, dbPath: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := s.seed(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed glossary: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) Path() string { return s.dbPath }

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS glossary (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		term TEXT NOT NULL,
		translation TEXT NOT NULL,
		category TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) seed() error {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM glossary`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	for _, e := range Defaults() {
		if err := insert(tx, e); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) List() ([]Entry, error) {
	rows, err := s.db.Query(`SELECT id, term, translation, category FROM glossary ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query glossary: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var cat string
		if err := rows.Scan(&e.ID, &e.Term, &e.Translation, &cat); err != nil {
			return nil, fmt.Errorf("failed to scan glossary row: %w", err)
		}
		e.Category = Category(cat)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Add(term, translation string, category Category) (Entry, error) {
	e, err := NewEntry(term, translation, category)
	if err != nil {
		return Entry{}, err
	}
	if err := insert(s.db, e); err != nil {
		return Entry{}, fmt.Errorf("failed to insert glossary entry: %w", err)
	}
	return e, nil
}

func (s *SQLiteStore) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM glossary WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete glossary entry: %w", err)
	}
	return checkDeleted(res, id)
}

func checkDeleted(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete glossary entry: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insert(x execer, e Entry) error {
	_, err := x.Exec(
		`INSERT INTO glossary (id, term, translation, category) VALUES (?, ?, ?, ?)`,
		e.ID, e.Term, e.Translation, string(e.Category),
	)
	return err
}
