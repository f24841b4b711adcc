package store

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// schema is the ledger schema: the user directory plus the append-only
// receipt tables. Types are chosen to be valid on both SQLite and Postgres;
// timestamps are ISO 8601 UTC strings so ordering is lexicographic.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    phone      TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_users_name ON users(name);

CREATE TABLE IF NOT EXISTS receipts (
    id         TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL,
    role       TEXT NOT NULL,
    total      DOUBLE PRECISION NOT NULL,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_receipts_user_created ON receipts(user_id, created_at);

CREATE TABLE IF NOT EXISTS receipt_items (
    receipt_id TEXT NOT NULL,
    line_no    INTEGER NOT NULL,
    item_id    TEXT NOT NULL,
    article    TEXT NOT NULL DEFAULT '',
    depot      TEXT NOT NULL DEFAULT '',
    price      DOUBLE PRECISION NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_receipt_items_receipt ON receipt_items(receipt_id);
`

// sqlitePragmas are applied when the ledger runs on SQLite.
var sqlitePragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
}

// Store is the ledger database: user directory, receipts and their line
// items. Users and receipts are write-once; nothing here is ever updated
// or deleted.
type Store struct {
	db *sqlx.DB

	// now is the clock used for created_at stamps, overridable in tests.
	now func() time.Time
}

// NewStore opens the ledger database. driver is "sqlite" or "postgres".
func NewStore(driver, dsn string) (*Store, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ledger database: %w", err)
	}

	if driver == "sqlite" {
		// The modernc driver serializes access itself, but concurrent
		// connections to the same file still need WAL and a busy timeout.
		db.SetMaxOpenConns(1)
		for _, p := range sqlitePragmas {
			if _, err := db.Exec(p); err != nil {
				db.Close()
				return nil, fmt.Errorf("setting pragma %q: %w", p, err)
			}
		}
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// nowISO returns the current UTC time in the format stored in created_at.
func (s *Store) nowISO() string {
	return s.now().UTC().Format("2006-01-02T15:04:05")
}
