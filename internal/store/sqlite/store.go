package sqlite

import (
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
)

// ErrNotFound is returned when a row does not exist or is owned by
// another user. Callers must not learn which of the two it was.
var ErrNotFound = errors.New("not found")

// Store persists users and bookmarks in a single SQLite database.
type Store struct {
	db *sql.DB

	// entropy is not safe for concurrent use; mu guards it.
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// Open opens the database at path, creating it if needed, and applies
// the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{
		db:      db,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		provider TEXT NOT NULL,
		provider_id TEXT NOT NULL,
		login TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		UNIQUE(provider, provider_id)
	);

	CREATE TABLE IF NOT EXISTS bookmarks (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		title TEXT NOT NULL,
		url TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bookmarks_user ON bookmarks(user_id, created_at DESC);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// newID returns a ULID for t. The monotonic entropy source keeps IDs
// strictly increasing within a millisecond, so lexicographic ID order
// always agrees with insertion order.
func (s *Store) newID(t time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), s.entropy).String()
}
