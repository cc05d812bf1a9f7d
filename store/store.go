// Package store persists channel, user and link-post records in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a record does not exist. Callers must be
// able to tell this apart from the database being unreachable.
var ErrNotFound = errors.New("store: record not found")

const sqlMigration = `BEGIN;
CREATE TABLE IF NOT EXISTS channels (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL UNIQUE collate nocase,
	connected INTEGER NOT NULL DEFAULT 0,
	offline_only INTEGER NOT NULL DEFAULT 1,
	emote_only INTEGER NOT NULL DEFAULT 0,
	subscriber_only INTEGER NOT NULL DEFAULT 0,
	followers_only_minutes INTEGER NOT NULL DEFAULT -1,
	slow_seconds INTEGER NOT NULL DEFAULT 0,
	unique_only INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL UNIQUE collate nocase,
	rank INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS link_posts (
	room_id INTEGER NOT NULL,
	link TEXT NOT NULL,
	poster TEXT NOT NULL collate nocase,
	posted_at INTEGER NOT NULL,
	PRIMARY KEY (room_id, link)
);
CREATE INDEX IF NOT EXISTS link_posts_posted_at_idx ON link_posts (posted_at);
COMMIT;`

// RoomModes are the chat mode settings cached from roomstate events.
type RoomModes struct {
	EmoteOnly            bool
	SubscriberOnly       bool
	FollowersOnlyMinutes int
	SlowSeconds          int
	UniqueOnly           bool
}

type Channel struct {
	ID          int64
	Name        string
	Connected   bool
	OfflineOnly bool
	Modes       RoomModes
}

type User struct {
	ID   int64
	Name string
	Rank int
}

type LinkPost struct {
	RoomID   int64
	Link     string
	Poster   string
	PostedAt time.Time
}

// DB is the subset of database/sql used by the store.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	logger zerolog.Logger
	db     DB
}

func New(logger zerolog.Logger, db DB) *Store {
	return &Store{
		logger: logger.With().Str("component", "store").Logger(),
		db:     db,
	}
}

// Open opens the SQLite database file.
func Open(path string) (*sql.DB, error) {
	return sql.Open("sqlite", path)
}

// Prepare applies pragmas and the schema migration.
func (s *Store) Prepare(ctx context.Context) error {
	queries := [...]string{
		"pragma journal_mode = WAL;",
		"pragma synchronous = normal;",
		"pragma temp_store = memory;",
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed running prepare query: %w", err)
		}
	}

	if _, err := s.db.ExecContext(ctx, sqlMigration); err != nil {
		return fmt.Errorf("failed running migration: %w", err)
	}

	return nil
}
