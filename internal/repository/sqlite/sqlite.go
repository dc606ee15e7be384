// Package sqlite implements the repository interfaces using SQLite as the
// storage backend via the pure-Go modernc.org/sqlite driver (no CGo, so the
// binary cross-compiles anywhere Go runs).
//
// The pot row is the unit of contention: joins and leaves mutate headcount
// under an optimistic version check inside a transaction (see membership.go),
// and the (pot_id, user_id) UNIQUE constraint is what actually guarantees
// at-most-one-membership-per-user-per-pot under race — the services' read
// checks are just a fast path in front of it.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	// Blank import: registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements the repository
// interfaces: PotRepository, MembershipRepository, UserRepository, and
// ChatMessageRepository all hang off this one type.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
// Use ":memory:" for tests.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// SQLite permits a single writer; one pooled connection avoids
	// SQLITE_BUSY churn and keeps ":memory:" databases coherent (every
	// pool connection to ":memory:" would otherwise get its own database).
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets reads proceed while a write is in flight; the busy timeout
	// makes concurrent writers queue instead of failing with SQLITE_BUSY.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool, flushing the WAL.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps this idempotent.
//
// Ownership: pots exclusively own their memberships, join log, and chat
// history — all three cascade on pot deletion. Users are never cascaded.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			nickname      TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			github_id     INTEGER NOT NULL DEFAULT 0,
			avatar_url    TEXT NOT NULL DEFAULT '',
			created_at    DATETIME NOT NULL,
			updated_at    DATETIME NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_github_id
			ON users(github_id) WHERE github_id != 0;

		CREATE TABLE IF NOT EXISTS pots (
			id                TEXT PRIMARY KEY,
			user_id           TEXT NOT NULL REFERENCES users(id),
			title             TEXT NOT NULL,
			content           TEXT NOT NULL DEFAULT '',
			product_name      TEXT NOT NULL DEFAULT '',
			price             INTEGER NOT NULL DEFAULT 0,
			maximum_headcount INTEGER NOT NULL,
			current_headcount INTEGER NOT NULL,
			latitude          REAL NOT NULL,
			longitude         REAL NOT NULL,
			address           TEXT NOT NULL DEFAULT '',
			detail_address    TEXT NOT NULL DEFAULT '',
			image_key         TEXT NOT NULL DEFAULT '',
			category          TEXT NOT NULL DEFAULT 'ETC',
			status            TEXT NOT NULL DEFAULT 'RECRUITING',
			version           INTEGER NOT NULL DEFAULT 0,
			created_at        DATETIME NOT NULL,
			updated_at        DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_pots_category ON pots(category);
		CREATE INDEX IF NOT EXISTS idx_pots_status   ON pots(status);

		CREATE TABLE IF NOT EXISTS pot_members (
			id         TEXT PRIMARY KEY,
			pot_id     TEXT NOT NULL REFERENCES pots(id) ON DELETE CASCADE,
			user_id    TEXT NOT NULL REFERENCES users(id),
			created_at DATETIME NOT NULL,
			UNIQUE (pot_id, user_id)
		);
		CREATE INDEX IF NOT EXISTS idx_pot_members_user ON pot_members(user_id);

		-- First-ever joins. Rows survive a leave (unlike pot_members), so a
		-- rejoin can be told apart from a first join.
		CREATE TABLE IF NOT EXISTS pot_join_log (
			pot_id          TEXT NOT NULL REFERENCES pots(id) ON DELETE CASCADE,
			user_id         TEXT NOT NULL REFERENCES users(id),
			first_joined_at DATETIME NOT NULL,
			PRIMARY KEY (pot_id, user_id)
		);

		CREATE TABLE IF NOT EXISTS chat_messages (
			id        TEXT PRIMARY KEY,
			pot_id    TEXT NOT NULL REFERENCES pots(id) ON DELETE CASCADE,
			sender_id TEXT NOT NULL REFERENCES users(id),
			message   TEXT NOT NULL,
			sent_at   DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_chat_messages_pot ON chat_messages(pot_id, sent_at);
	`)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
// modernc.org/sqlite surfaces constraint violations as plain errors whose
// text carries the SQLite message, so string matching is the portable check.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
