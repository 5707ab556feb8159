package database

import (
	"context"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/example/inquizitive/internal/config"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrConcurrentUpdate = errors.New("record was modified concurrently")
)

// MemoryDSN opens a private in-memory sqlite database
const MemoryDSN = ":memory:"

// Connect opens the store selected by cfg and initializes the schema
func Connect(cfg *config.Config) (*sqlx.DB, error) {
	if cfg.DBType == config.DBTypePostgres {
		return Open("postgres", cfg.DatabaseURL)
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create data directory")
	}
	return Open("sqlite3", filepath.Join(cfg.DataDir, "inquizitive.db"))
}

// Open connects with the given driver and DSN and initializes the schema
func Open(driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	if driver == "sqlite3" {
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, errors.Wrap(err, "failed to enable foreign keys")
		}
		// SQLite doesn't support multiple writers; one connection also keeps
		// an in-memory database alive and shared.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	}

	if err := initializeSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// WithTx runs fn inside a transaction, committing only when fn succeeds
func WithTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "failed to commit transaction")
}

var schema = []struct {
	name string
	ddl  string
}{
	{"review_items", `
		CREATE TABLE IF NOT EXISTS review_items (
			id TEXT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			subject TEXT NOT NULL DEFAULT 'General',
			topic TEXT NOT NULL,
			question_json TEXT NOT NULL,
			srs_level INTEGER NOT NULL DEFAULT 0,
			ease_factor DOUBLE PRECISION NOT NULL DEFAULT 2.5,
			interval_days INTEGER NOT NULL DEFAULT 1,
			last_reviewed_at TIMESTAMP,
			next_review_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL,
			tags TEXT NOT NULL DEFAULT '[]',
			version INTEGER NOT NULL DEFAULT 0
		)
	`},
	{"review_items due index", `
		CREATE INDEX IF NOT EXISTS idx_review_items_due
		ON review_items (user_id, subject, next_review_at)
	`},
	{"learning_stats", `
		CREATE TABLE IF NOT EXISTS learning_stats (
			user_id BIGINT PRIMARY KEY,
			total_xp INTEGER NOT NULL DEFAULT 0,
			current_streak INTEGER NOT NULL DEFAULT 0,
			last_activity_date TEXT NOT NULL DEFAULT '',
			items_mastered INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL
		)
	`},
	{"workspaces", `
		CREATE TABLE IF NOT EXISTS workspaces (
			id TEXT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			UNIQUE(user_id, name)
		)
	`},
}

// initializeSchema creates necessary tables if they don't exist
func initializeSchema(db *sqlx.DB) error {
	for _, s := range schema {
		if _, err := db.Exec(s.ddl); err != nil {
			return errors.Wrapf(err, "failed to create %s", s.name)
		}
	}
	return nil
}
