// Package store persists the client's local state: the auth token,
// user display fields, and the trial-usage counter. The contract is a
// flat key-value table under fixed keys, cleared in its entirety on
// logout or account deletion.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS state (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);`

// Fixed keys for client-local state.
const (
	KeyToken          = "token"
	KeyUserName       = "userName"
	KeyUserEmail      = "userEmail"
	KeyProfilePicture = "profilePicture"
	KeyTrialCount     = "chatTrialCount"
)

// Store is a sqlite-backed key-value store.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the state database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize state store: %w", err)
	}

	return &Store{db: db}, nil
}

// Get returns the value for key, or empty string when unset.
func (s *Store) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// Set writes the value for key, replacing any previous value.
func (s *Store) Set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO state (key, value) VALUES (?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	return err
}

// Delete removes a single key.
func (s *Store) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM state WHERE key = ?`, key)
	return err
}

// Clear wipes all local state. Called on logout and account deletion.
func (s *Store) Clear() error {
	_, err := s.db.Exec(`DELETE FROM state`)
	return err
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Token returns the stored bearer credential, empty when logged out.
func (s *Store) Token() string {
	token, err := s.Get(KeyToken)
	if err != nil {
		return ""
	}
	return token
}

// TrialCount returns the persisted unauthenticated-send counter.
func (s *Store) TrialCount() (int, error) {
	raw, err := s.Get(KeyTrialCount)
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return 0, nil
	}

	count, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("corrupt trial counter %q: %w", raw, err)
	}
	return count, nil
}

// IncrementTrial bumps and persists the trial counter, returning the
// new value.
func (s *Store) IncrementTrial() (int, error) {
	count, err := s.TrialCount()
	if err != nil {
		return 0, err
	}

	count++
	if err := s.Set(KeyTrialCount, strconv.Itoa(count)); err != nil {
		return 0, err
	}
	return count, nil
}
