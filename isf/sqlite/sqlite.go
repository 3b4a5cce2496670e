// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package sqlite provides an isf.Store persisted in a SQLite database.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tve/dash7/isf"
)

// Store implements isf.Store using SQLite.
type Store struct {
	db *sql.DB
}

// New opens (creating if necessary) the SQLite store at the given path.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("isf/sqlite: cannot create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("isf/sqlite: cannot open database: %w", err)
	}
	return newStore(db)
}

// NewInMemory creates an in-memory store for testing.
func NewInMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("isf/sqlite: cannot open in-memory database: %w", err)
	}
	// Every connection to :memory: gets its own database.
	db.SetMaxOpenConns(1)
	return newStore(db)
}

func newStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("isf/sqlite: cannot migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS isf (
		id INTEGER PRIMARY KEY,
		data BLOB NOT NULL,
		updated_at TEXT NOT NULL
	);`)
	return err
}

// Open reads the whole file into memory and returns it.
func (s *Store) Open(id isf.ID) (isf.File, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM isf WHERE id = ?`, int(id)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, isf.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("isf/sqlite: cannot read file %#02x: %w", byte(id), err)
	}
	return isf.NewFile(data), nil
}

// Put writes file id. It is used to provision the store, the link layer never writes.
func (s *Store) Put(id isf.ID, data []byte) error {
	_, err := s.db.Exec(`
	INSERT INTO isf (id, data, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		int(id), data, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("isf/sqlite: cannot write file %#02x: %w", byte(id), err)
	}
	return nil
}

// Has reports whether file id exists.
func (s *Store) Has(id isf.ID) (bool, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM isf WHERE id = ?`, int(id)).Scan(&n); err != nil {
		return false, fmt.Errorf("isf/sqlite: %w", err)
	}
	return n > 0, nil
}
