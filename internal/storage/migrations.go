package storage

import (
	"context"
	"fmt"
)

// migrate creates the schema if it doesn't exist.
func (db *DB) migrate() error {
	for i, stmt := range sqliteMigrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	db.logger.Info("database migrations applied", "backend", "sqlite")
	return nil
}

func (pg *Postgres) migrate(ctx context.Context) error {
	for i, stmt := range postgresMigrations {
		if _, err := pg.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	pg.logger.Info("database migrations applied", "backend", "postgres")
	return nil
}

var sqliteMigrations = []string{
	// Users (auth)
	`CREATE TABLE IF NOT EXISTS users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		username      TEXT UNIQUE NOT NULL,
		email         TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMP NOT NULL
	)`,

	// Saved stops
	`CREATE TABLE IF NOT EXISTS user_stops (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		stop_id    INTEGER NOT NULL,
		stop_name  TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (user_id, stop_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_user_stops_user ON user_stops(user_id, created_at)`,
}

var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL PRIMARY KEY,
		username      VARCHAR(50) UNIQUE NOT NULL,
		email         VARCHAR(255) UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS user_stops (
		id         BIGSERIAL PRIMARY KEY,
		user_id    BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		stop_id    INTEGER NOT NULL,
		stop_name  VARCHAR(100) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (user_id, stop_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_user_stops_user ON user_stops(user_id, created_at)`,
}
